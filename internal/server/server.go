package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Store is the persistence the HTTP API reads and writes directly.
// *storage.DB satisfies it.
type Store interface {
	ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (models.WorkoutTemplate, error)
	SaveTemplate(ctx context.Context, t models.WorkoutTemplate) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	ListSessions(ctx context.Context, start, end time.Time) ([]storage.SessionSummary, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ExerciseHistory(ctx context.Context, exerciseName string, limit int) ([]storage.ExerciseSession, error)
	GetDataStats(ctx context.Context) (*storage.DataStats, error)
	InsertSuggestion(ctx context.Context, exerciseName string, sg models.ProgressionSuggestion) error
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, limit int) ([]storage.ImportLog, error)
}

var _ Store = (*storage.DB)(nil)

// Importer parses an uploaded history export.
type Importer interface {
	Ingest(ctx context.Context, r io.Reader) (*ingest.Result, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	sessions *session.Manager
	alpha    Importer
	whois    WhoIsClient
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(db Store, sessions *session.Manager, alphaProvider Importer, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		db:       db,
		sessions: sessions,
		alpha:    alphaProvider,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale resolves request identities through the tailnet. Without it
// every request runs as the local dev user.
func (s *Server) SetTailscale(c WhoIsClient) {
	s.whois = c
}

// Mount attaches an extra handler, such as the MCP endpoint, under pattern.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	// Writes from external producers (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/alpha", s.handleAlphaIngest)
		r.Post("/suggestions", s.handleSuggestionIngest)
	})

	// App API (no auth, tsnet handles access)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)
		r.Get("/stats", s.handleStats)
		r.Get("/import-logs", s.handleImportLogs)
		r.Get("/exercises/history", s.handleExerciseHistory)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handlePutTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
		})

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)

		r.Route("/session", s.sessionRoutes)
	})
}

func (s *Server) sessionRoutes(r chi.Router) {
	r.Get("/", s.handleSessionState)
	r.Delete("/", s.handleCancelSession)
	r.Post("/start", s.handleStartSession)
	r.Post("/finish", s.handleFinishSession)
	r.Get("/changes", s.handlePendingChanges)

	r.Post("/advance", s.handleAdvance)
	r.Post("/previous", s.handlePrevious)
	r.Post("/move", s.handleMove)
	r.Post("/skip-exercise", s.handleSkipExercise)
	r.Post("/skip-module", s.handleSkipModule)
	r.Post("/position", s.handlePosition)
	r.Post("/jump", s.handleJump)
	r.Post("/refresh", s.handleRefresh)

	r.Post("/sets/log", s.handleLogSet)
	r.Post("/sets/uncheck", s.handleUncheckSet)
	r.Post("/sets/add", s.handleAddSet)
	r.Post("/sets/delete", s.handleDeleteSet)
	r.Get("/sets/prefill", s.handlePrefill)
	r.Post("/sets/draft", s.handleEditDraft)

	r.Post("/exercises", s.handleAddExercise)
	r.Post("/exercises/reorder", s.handleReorderExercise)
	r.Post("/exercises/delete", s.handleDeleteExercise)
	r.Post("/exercises/substitute", s.handleSubstituteExercise)
	r.Post("/exercises/scheme", s.handleUpdateScheme)
	r.Post("/exercises/recommendation", s.handleRecommendation)

	r.Get("/timers/rest", s.handlePollRest)
	r.Post("/timers/rest/start", s.handleStartRest)
	r.Post("/timers/rest/stop", s.handleStopRest)
	r.Post("/timers/exercise/start", s.handleStartExerciseTimer)
	r.Post("/timers/exercise/stop", s.handleStopExerciseTimer)
}
