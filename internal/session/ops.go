package session

import (
	"context"

	"github.com/claude/liftlog/internal/prefill"
	"github.com/claude/liftlog/internal/timer"
)

// LogResult reports the effect of Manager.LogSet.
type LogResult struct {
	Logged      bool `json:"logged"`
	RestStarted int  `json:"rest_started_sec,omitempty"`
	View        View `json:"state"`
}

// LogSet records a set and applies the rest policy: a rest timer starts
// only when the exercise still has an incomplete set after the log, and
// never for recovery exercises. The group's rest period wins over the
// manager default. When the logged set belongs to the current exercise the
// cursor moves to its first incomplete set.
func (m *Manager) LogSet(ctx context.Context, ref SetRef, in SetInput) (LogResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return LogResult{}, ErrNoActiveSession
	}
	n := m.nav
	rest := n.RestPeriod(ref)
	if rest == 0 {
		rest = m.defaultRest
	}

	res := LogResult{Logged: n.LogSet(ref, in)}
	if res.Logged {
		if rest > 0 && n.ShouldStartRest(ref.Module, ref.Exercise) {
			n.StartRestTimer(rest)
			res.RestStarted = rest
		}
		c := n.Cursor()
		if c.Module == ref.Module && c.Exercise == ref.Exercise {
			n.JumpToFirstIncompleteSet()
		}
		m.persist(ctx)
	}
	v, err := n.View()
	if err != nil {
		return res, err
	}
	res.View = v
	return res, nil
}

// Step reports the effect of Manager.Advance.
type Step struct {
	Transition Transition `json:"transition"`
	State      View       `json:"state"`
}

// Advance moves to the next exercise, following superset order.
func (m *Manager) Advance(ctx context.Context) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return Step{}, ErrNoActiveSession
	}
	tr := m.nav.AdvanceToNextExercise()
	m.persist(ctx)
	v, err := m.nav.View()
	return Step{Transition: tr, State: v}, err
}

// StartRest starts the rest timer. A non-positive seconds value uses the
// rest period of the set under the cursor, then the manager default.
func (m *Manager) StartRest(ctx context.Context, seconds int) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return View{}, ErrNoActiveSession
	}
	if seconds <= 0 {
		c := m.nav.Cursor()
		seconds = m.nav.RestPeriod(SetRef(c))
	}
	if seconds <= 0 {
		seconds = m.defaultRest
	}
	if seconds > 0 {
		m.nav.StartRestTimer(seconds)
		m.persist(ctx)
	}
	return m.nav.View()
}

// RestPoll is the rest timer as seen by a polling client.
type RestPoll struct {
	Reading timer.Reading `json:"rest_timer"`
	Ended   bool          `json:"ended"`
}

// PollRest reads the rest timer. Ended is true exactly once, on the first
// poll after the countdown reached zero; the flag survives a restart.
func (m *Manager) PollRest(ctx context.Context) (RestPoll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return RestPoll{}, ErrNoActiveSession
	}
	rd, ended := m.nav.PollRestTimer()
	if ended {
		m.persist(ctx)
		m.log.Debug("rest timer ended", "session_id", m.nav.Session().ID)
	}
	return RestPoll{Reading: rd, Ended: ended}, nil
}

// PrefillResult is the resolved input state for one set.
type PrefillResult struct {
	Found bool          `json:"found"`
	Draft prefill.Draft `json:"draft"`
}

// Prefill resolves the pre-filled values for ref.
func (m *Manager) Prefill(ctx context.Context, ref SetRef) (PrefillResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nav == nil {
		return PrefillResult{}, ErrNoActiveSession
	}
	d, ok := m.nav.Prefill(ref)
	if ok {
		m.persist(ctx)
	}
	return PrefillResult{Found: ok, Draft: d}, nil
}
