package session

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/prefill"
	"github.com/claude/liftlog/internal/timer"
	"github.com/google/uuid"
)

// State is the persisted form of a navigator. Timers are stored as start
// timestamps so they keep counting across a restart.
type State struct {
	Session     *models.Session              `json:"session"`
	Template    *models.WorkoutTemplate      `json:"template,omitempty"`
	Cursor      Cursor                       `json:"cursor"`
	Rest        timer.State                  `json:"rest"`
	Exercise    timer.State                  `json:"exercise"`
	Drafts      map[uuid.UUID]*prefill.Draft `json:"drafts,omitempty"`
	LastSession map[string]*models.Exercise  `json:"last_session,omitempty"`
}

// State captures the navigator. The returned value shares memory with the
// navigator; marshal it before releasing the lock.
func (n *Navigator) State() State {
	return State{
		Session:     n.session,
		Cursor:      n.cursor,
		Rest:        n.rest.State(),
		Exercise:    n.exTimer.State(),
		Drafts:      n.drafts,
		LastSession: n.last,
	}
}

// RestoreNavigator rebuilds a navigator from a saved state.
func RestoreNavigator(st State, clock timer.Clock, log *slog.Logger) (*Navigator, error) {
	if st.Session == nil {
		return nil, fmt.Errorf("restoring navigator: state has no session")
	}
	n := NewNavigator(st.Session, clock, log)
	n.rest.Restore(st.Rest)
	n.exTimer.Restore(st.Exercise)
	if st.Drafts != nil {
		n.drafts = st.Drafts
	}
	if st.LastSession != nil {
		n.last = st.LastSession
	}
	n.cursor = st.Cursor
	n.Refresh()
	return n, nil
}

// View is a detached, read-only copy of the navigator for callers outside
// the lock.
type View struct {
	Session         *models.Session `json:"session"`
	Cursor          Cursor          `json:"cursor"`
	WorkoutComplete bool            `json:"workout_complete"`
	CurrentModule   string          `json:"current_module,omitempty"`
	CurrentExercise string          `json:"current_exercise,omitempty"`
	ExerciseState   ExerciseState   `json:"exercise_state,omitempty"`
	Siblings        []int           `json:"superset_siblings,omitempty"`
	Sets            []SetLine       `json:"sets,omitempty"`
	RestTimer       timer.Reading   `json:"rest_timer"`
	ExerciseTimer   timer.Reading   `json:"exercise_timer"`
}

// SetLine is one set of the current exercise. Summary is empty until a
// value has been entered for the set.
type SetLine struct {
	Ref       SetRef      `json:"ref"`
	SetNumber int         `json:"set_number"`
	Side      models.Side `json:"side,omitempty"`
	Completed bool        `json:"completed"`
	Summary   string      `json:"summary,omitempty"`
}

// View copies the navigator's current state.
func (n *Navigator) View() (View, error) {
	s, err := cloneSession(n.session)
	if err != nil {
		return View{}, err
	}
	v := View{
		Session:         s,
		Cursor:          n.cursor,
		WorkoutComplete: n.IsWorkoutComplete(),
		Siblings:        n.SupersetSiblings(),
		RestTimer:       n.rest.Read(),
		ExerciseTimer:   n.exTimer.Read(),
	}
	if m, ok := n.CurrentModule(); ok {
		v.CurrentModule = m.Name
	}
	if e, ok := n.CurrentExercise(); ok {
		v.CurrentExercise = e.Name
		v.ExerciseState = n.ExerciseState(n.cursor.Module, n.cursor.Exercise)
	}
	for _, ref := range n.flat {
		e, _, set, ok := n.lookup(ref)
		if !ok {
			continue
		}
		line := SetLine{Ref: ref, SetNumber: set.SetNumber, Side: set.Side, Completed: set.Completed}
		if set.HasLoggedValues() {
			line.Summary = e.Summary(set)
		}
		v.Sets = append(v.Sets, line)
	}
	return v, nil
}

func cloneSession(s *models.Session) (*models.Session, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("copying session: %w", err)
	}
	var out models.Session
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("copying session: %w", err)
	}
	return &out, nil
}
