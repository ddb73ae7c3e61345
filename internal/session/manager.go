package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/templatediff"
	"github.com/claude/liftlog/internal/timer"
	"github.com/google/uuid"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrSessionActive   = errors.New("a session is already active")
)

// Store loads templates and persists finished work.
type Store interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (models.WorkoutTemplate, error)
	SaveTemplate(ctx context.Context, t models.WorkoutTemplate) error
	SaveSession(ctx context.Context, s *models.Session) error
}

// HistorySource returns the most recent performance of an exercise, or nil.
type HistorySource interface {
	LastPerformance(ctx context.Context, exerciseName string) (*models.Exercise, error)
}

// SuggestionSource returns the latest progression suggestion, or nil.
type SuggestionSource interface {
	LatestSuggestion(ctx context.Context, exerciseName string) (*models.ProgressionSuggestion, error)
}

// SnapshotStore keeps the serialized active session across restarts. Load
// returns nil data when nothing is stored.
type SnapshotStore interface {
	Save(ctx context.Context, sessionID uuid.UUID, data []byte) error
	Load(ctx context.Context) ([]byte, error)
	Clear(ctx context.Context) error
}

// Manager owns the single active session and serializes access to it.
type Manager struct {
	store       Store
	history     HistorySource
	suggestions SuggestionSource
	snapshots   SnapshotStore
	log         *slog.Logger
	clock       timer.Clock
	defaultRest int

	mu       sync.Mutex
	nav      *Navigator
	template *models.WorkoutTemplate
}

type Option func(*Manager)

// WithClock replaces the wall clock, for tests.
func WithClock(c timer.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithDefaultRest sets the rest started after a logged set whose group has
// no rest period of its own. Zero disables it.
func WithDefaultRest(seconds int) Option {
	return func(m *Manager) { m.defaultRest = max(seconds, 0) }
}

// NewManager creates a manager. history, suggestions and snapshots may be nil.
func NewManager(store Store, history HistorySource, suggestions SuggestionSource, snapshots SnapshotStore, log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		store:       store,
		history:     history,
		suggestions: suggestions,
		snapshots:   snapshots,
		log:         log,
		clock:       timer.SystemClock{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start begins a session from a template.
func (m *Manager) Start(ctx context.Context, templateID uuid.UUID) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav != nil {
		return View{}, ErrSessionActive
	}
	t, err := m.store.GetTemplate(ctx, templateID)
	if err != nil {
		return View{}, fmt.Errorf("loading template %s: %w", templateID, err)
	}
	s := models.NewSession(t, m.clock.Now())
	m.begin(ctx, s, &t)
	m.log.Info("session started", "session_id", s.ID, "workout", t.Name)
	return m.nav.View()
}

// StartFreestyle begins a session with no template.
func (m *Manager) StartFreestyle(ctx context.Context, name string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav != nil {
		return View{}, ErrSessionActive
	}
	s := models.NewFreestyleSession(name, m.clock.Now())
	m.begin(ctx, s, nil)
	m.log.Info("freestyle session started", "session_id", s.ID)
	return m.nav.View()
}

func (m *Manager) begin(ctx context.Context, s *models.Session, t *models.WorkoutTemplate) {
	m.nav = NewNavigator(s, m.clock, m.log)
	m.template = t
	for mi := range s.Modules {
		for ei := range s.Modules[mi].Exercises {
			m.hydrate(ctx, &s.Modules[mi].Exercises[ei])
		}
	}
	m.persist(ctx)
}

// hydrate loads last-session data and the progression suggestion for one
// exercise. Failures only cost pre-fill quality, so they are logged.
func (m *Manager) hydrate(ctx context.Context, e *models.Exercise) {
	if m.history != nil {
		last, err := m.history.LastPerformance(ctx, e.Name)
		if err != nil {
			m.log.Warn("loading last performance", "exercise", e.Name, "error", err)
		} else if last != nil {
			m.nav.SetLastSession(e.Name, last)
		}
	}
	if m.suggestions != nil {
		sg, err := m.suggestions.LatestSuggestion(ctx, e.Name)
		if err != nil {
			m.log.Warn("loading suggestion", "exercise", e.Name, "error", err)
		} else if sg != nil {
			e.Suggestion = sg
		}
	}
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nav != nil
}

// View returns a copy of the active session state.
func (m *Manager) View(ctx context.Context) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return View{}, ErrNoActiveSession
	}
	return m.nav.View()
}

// With runs fn with exclusive access to the navigator and snapshots the
// result.
func (m *Manager) With(ctx context.Context, fn func(*Navigator) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return ErrNoActiveSession
	}
	err := fn(m.nav)
	m.persist(ctx)
	return err
}

// LoadHistory fetches last-session data and suggestions for an exercise
// added during the session.
func (m *Manager) LoadHistory(ctx context.Context, module, exercise int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return ErrNoActiveSession
	}
	e := m.nav.exercise(module, exercise)
	if e == nil {
		return nil
	}
	m.hydrate(ctx, e)
	m.persist(ctx)
	return nil
}

// PendingChanges lists structural differences from the originating
// template. Freestyle sessions have none.
func (m *Manager) PendingChanges(ctx context.Context) ([]templatediff.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return nil, ErrNoActiveSession
	}
	if m.template == nil {
		return nil, nil
	}
	return templatediff.Detect(*m.template, m.nav.Session()), nil
}

// FinishRequest carries the end-of-session input.
type FinishRequest struct {
	Feeling           *int     `json:"feeling,omitempty"`
	Notes             string   `json:"notes,omitempty"`
	AcceptedChangeIDs []string `json:"accepted_change_ids,omitempty"`
}

// FinishResult reports what was persisted.
type FinishResult struct {
	Session *models.Session       `json:"session"`
	Applied []templatediff.Change `json:"applied_changes,omitempty"`
}

// Finish stamps the session, commits accepted template changes and hands
// the session to the store. On a store error the session stays active so
// the call can be retried.
func (m *Manager) Finish(ctx context.Context, req FinishRequest) (FinishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return FinishResult{}, ErrNoActiveSession
	}
	s := m.nav.Session()
	now := m.clock.Now()
	s.EndedAt = &now
	s.DurationSec = max(int(now.Sub(s.StartedAt).Seconds()), 0)
	s.Feeling = clampPtr(req.Feeling, 1, 5)
	s.Notes = req.Notes
	m.nav.StopRestTimer()
	m.nav.StopExerciseTimer()

	var applied []templatediff.Change
	if m.template != nil && len(req.AcceptedChangeIDs) > 0 {
		applied = templatediff.Select(templatediff.Detect(*m.template, s), req.AcceptedChangeIDs)
		if len(applied) > 0 {
			updated, err := templatediff.Apply(*m.template, applied)
			if err != nil {
				return FinishResult{}, fmt.Errorf("applying template changes: %w", err)
			}
			if err := m.store.SaveTemplate(ctx, updated); err != nil {
				return FinishResult{}, fmt.Errorf("saving template: %w", err)
			}
			m.log.Info("template updated", "template_id", updated.ID, "changes", len(applied))
		}
	}
	if err := m.store.SaveSession(ctx, s); err != nil {
		return FinishResult{}, fmt.Errorf("saving session: %w", err)
	}
	m.log.Info("session finished", "session_id", s.ID, "duration_sec", s.DurationSec,
		"completed_sets", s.CompletedSetCount())
	m.clear(ctx)
	return FinishResult{Session: s, Applied: applied}, nil
}

// Cancel discards the active session without persisting it.
func (m *Manager) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return ErrNoActiveSession
	}
	m.log.Info("session cancelled", "session_id", m.nav.Session().ID)
	m.clear(ctx)
	return nil
}

func (m *Manager) clear(ctx context.Context) {
	m.nav = nil
	m.template = nil
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.Clear(ctx); err != nil {
		m.log.Error("clearing snapshot", "error", err)
	}
}

// Resume restores a snapshotted session. It reports whether a session is
// active afterwards.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav != nil {
		return true, nil
	}
	if m.snapshots == nil {
		return false, nil
	}
	data, err := m.snapshots.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading snapshot: %w", err)
	}
	if data == nil {
		return false, nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return false, fmt.Errorf("decoding snapshot: %w", err)
	}
	nav, err := RestoreNavigator(st, m.clock, m.log)
	if err != nil {
		return false, err
	}
	m.nav = nav
	m.template = st.Template
	m.log.Info("session resumed", "session_id", st.Session.ID)
	return true, nil
}

// persist writes the snapshot. A failure is logged; the in-memory session
// stays authoritative.
func (m *Manager) persist(ctx context.Context) {
	if m.snapshots == nil || m.nav == nil {
		return
	}
	st := m.nav.State()
	st.Template = m.template
	data, err := json.Marshal(st)
	if err != nil {
		m.log.Error("encoding snapshot", "error", err)
		return
	}
	if err := m.snapshots.Save(ctx, st.Session.ID, data); err != nil {
		m.log.Error("saving snapshot", "error", err)
	}
}
