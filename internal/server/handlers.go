package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleAlphaIngest(w http.ResponseWriter, r *http.Request) {
	if s.alpha == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "alpha import not configured"})
		return
	}
	start := time.Now()
	ctx, cancel := contextWithTimeout(r, 5*time.Minute)
	defer cancel()

	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	result, err := s.alpha.Ingest(ctx, body)
	if err != nil {
		s.log.Error("alpha import failed", "error", err)
		s.logImport(ctx, storage.SourceAlpha, storage.ImportError, 0, 0, 0, start, err.Error())
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.logImport(ctx, storage.SourceAlpha, storage.ImportSuccess,
		result.SessionsReceived, result.SessionsInserted, result.SetsInserted, start, "")
	writeJSON(w, http.StatusOK, result)
}

type suggestionRequest struct {
	ExerciseName string `json:"exercise_name"`
	models.ProgressionSuggestion
}

// handleSuggestionIngest stores progression suggestions produced by an
// external planner. The body is a JSON array.
func (s *Server) handleSuggestionIngest(w http.ResponseWriter, r *http.Request) {
	var reqs []suggestionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON array"})
		return
	}
	for i, req := range reqs {
		if strings.TrimSpace(req.ExerciseName) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("item %d: exercise_name is required", i)})
			return
		}
		if !req.Metric.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("item %d: unknown metric %q", i, req.Metric)})
			return
		}
	}
	for _, req := range reqs {
		if err := s.db.InsertSuggestion(r.Context(), req.ExerciseName, req.ProgressionSuggestion); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": len(reqs)})
}

func (s *Server) logImport(ctx context.Context, source, status string, received, inserted int, sets int64, start time.Time, errMsg string) {
	dur := int(time.Since(start).Milliseconds())
	entry := storage.ImportLog{
		Source:           source,
		Status:           status,
		SessionsReceived: received,
		SessionsInserted: inserted,
		SetsInserted:     sets,
		DurationMs:       &dur,
	}
	if errMsg != "" {
		entry.ErrorMessage = &errMsg
	}
	if _, err := s.db.InsertImportLog(ctx, entry); err != nil {
		s.log.Error("failed to log import", "error", err)
	}
}

func (s *Server) handleImportLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	logs, err := s.db.QueryImportLogs(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetDataStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name parameter is required"})
		return
	}
	hist, err := s.db.ExerciseHistory(r.Context(), name, queryInt(r, "limit", 10))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.db.ListTemplates(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.db.GetTemplate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.WorkoutTemplate
	if !decodeBody(w, r, &t) {
		return
	}
	t.ID = uuid.Nil
	s.saveTemplate(w, r, t, http.StatusCreated)
}

func (s *Server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var t models.WorkoutTemplate
	if !decodeBody(w, r, &t) {
		return
	}
	t.ID = id
	s.saveTemplate(w, r, t, http.StatusOK)
}

func (s *Server) saveTemplate(w http.ResponseWriter, r *http.Request, t models.WorkoutTemplate, status int) {
	if strings.TrimSpace(t.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	assignTemplateIDs(&t)
	if err := s.db.SaveTemplate(r.Context(), t); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, t)
}

// assignTemplateIDs fills in IDs the client left empty.
func assignTemplateIDs(t *models.WorkoutTemplate) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	for mi := range t.Modules {
		m := &t.Modules[mi]
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		for ei := range m.Exercises {
			if m.Exercises[ei].ID == uuid.Nil {
				m.Exercises[ei].ID = uuid.New()
			}
		}
	}
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteTemplate(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	list, err := s.db.ListSessions(r.Context(), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess, err := s.db.GetSession(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// parseTimeRange reads start/end query params, defaulting to the last 30
// days. Both RFC 3339 timestamps and plain dates are accepted.
func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -30)
	end := now
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := parseFlexTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := parseFlexTime(v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
		}
		end = t
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

// contextWithTimeout creates a context with a timeout derived from the request context.
func contextWithTimeout(r *http.Request, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveSession), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, session.ErrSessionActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
