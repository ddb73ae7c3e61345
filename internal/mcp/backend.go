package mcp

import (
	"context"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/templatediff"
	"github.com/google/uuid"
)

// Backend is what the MCP tools drive. Local runs against the in-process
// session manager; HTTPClient forwards to a remote server's REST API.
type Backend interface {
	SessionState(ctx context.Context) (session.View, error)
	ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error)
	StartSession(ctx context.Context, templateID *uuid.UUID, name string) (session.View, error)
	LogSet(ctx context.Context, ref session.SetRef, in session.SetInput) (session.LogResult, error)
	Advance(ctx context.Context) (session.Step, error)
	StartRest(ctx context.Context, seconds int) (session.View, error)
	Prefill(ctx context.Context, ref session.SetRef) (session.PrefillResult, error)
	PendingChanges(ctx context.Context) ([]templatediff.Change, error)
	FinishSession(ctx context.Context, req session.FinishRequest) (session.FinishResult, error)
	Stats(ctx context.Context) (*storage.DataStats, error)
	ExerciseHistory(ctx context.Context, exerciseName string, limit int) ([]storage.ExerciseSession, error)
}

// Catalog is the read side of storage the local backend needs.
type Catalog interface {
	ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error)
	GetDataStats(ctx context.Context) (*storage.DataStats, error)
	ExerciseHistory(ctx context.Context, exerciseName string, limit int) ([]storage.ExerciseSession, error)
}

// Local serves tools from the running process.
type Local struct {
	sessions *session.Manager
	catalog  Catalog
}

var (
	_ Backend = (*Local)(nil)
	_ Catalog = (*storage.DB)(nil)
)

// NewLocal creates a backend over the given manager and catalog.
func NewLocal(sessions *session.Manager, catalog Catalog) *Local {
	return &Local{sessions: sessions, catalog: catalog}
}

func (l *Local) SessionState(ctx context.Context) (session.View, error) {
	return l.sessions.View(ctx)
}

func (l *Local) ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error) {
	return l.catalog.ListTemplates(ctx)
}

func (l *Local) StartSession(ctx context.Context, templateID *uuid.UUID, name string) (session.View, error) {
	if templateID != nil {
		return l.sessions.Start(ctx, *templateID)
	}
	return l.sessions.StartFreestyle(ctx, name)
}

func (l *Local) LogSet(ctx context.Context, ref session.SetRef, in session.SetInput) (session.LogResult, error) {
	return l.sessions.LogSet(ctx, ref, in)
}

func (l *Local) Advance(ctx context.Context) (session.Step, error) {
	return l.sessions.Advance(ctx)
}

func (l *Local) StartRest(ctx context.Context, seconds int) (session.View, error) {
	return l.sessions.StartRest(ctx, seconds)
}

func (l *Local) Prefill(ctx context.Context, ref session.SetRef) (session.PrefillResult, error) {
	return l.sessions.Prefill(ctx, ref)
}

func (l *Local) PendingChanges(ctx context.Context) ([]templatediff.Change, error) {
	return l.sessions.PendingChanges(ctx)
}

func (l *Local) FinishSession(ctx context.Context, req session.FinishRequest) (session.FinishResult, error) {
	return l.sessions.Finish(ctx, req)
}

func (l *Local) Stats(ctx context.Context) (*storage.DataStats, error) {
	return l.catalog.GetDataStats(ctx)
}

func (l *Local) ExerciseHistory(ctx context.Context, exerciseName string, limit int) ([]storage.ExerciseSession, error) {
	return l.catalog.ExerciseHistory(ctx, exerciseName, limit)
}
