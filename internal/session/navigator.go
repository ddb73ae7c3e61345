// Package session holds the active-session state engine: the cursor over a
// workout in progress, the mutations that keep it consistent, and the
// controller that owns the single active session.
package session

import (
	"log/slog"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/prefill"
	"github.com/claude/liftlog/internal/timer"
	"github.com/google/uuid"
)

// Cursor is the current position. Module == len(Modules) is the terminal
// "workout complete" state.
type Cursor struct {
	Module   int `json:"module"`
	Exercise int `json:"exercise"`
	SetGroup int `json:"set_group"`
	Set      int `json:"set"`
}

// SetRef addresses one set by indices.
type SetRef struct {
	Module   int `json:"module"`
	Exercise int `json:"exercise"`
	SetGroup int `json:"set_group"`
	Set      int `json:"set"`
}

// Transition reports what an advance did.
type Transition string

const (
	TransitionNone            Transition = "none"
	TransitionExercise        Transition = "exercise"
	TransitionModule          Transition = "module"
	TransitionWorkoutComplete Transition = "workout_complete"
)

// ExerciseState is the per-exercise progress state.
type ExerciseState string

const (
	StateNotStarted ExerciseState = "not_started"
	StateInProgress ExerciseState = "in_progress"
	StateCompleted  ExerciseState = "completed"
)

// Navigator wraps a session and is the only source of truth for the
// current position. It is not safe for concurrent use; Manager serializes
// access to it.
type Navigator struct {
	session *models.Session
	cursor  Cursor
	rest    *timer.Rest
	exTimer *timer.Exercise
	drafts  map[uuid.UUID]*prefill.Draft
	last    map[string]*models.Exercise
	log     *slog.Logger

	// derived views, rebuilt by Refresh
	flat      []SetRef
	supersets map[string][]int
}

// NewNavigator positions a navigator at the start of s.
func NewNavigator(s *models.Session, clock timer.Clock, log *slog.Logger) *Navigator {
	if log == nil {
		log = slog.Default()
	}
	n := &Navigator{
		session: s,
		rest:    timer.NewRest(clock),
		exTimer: timer.NewExercise(clock),
		drafts:  map[uuid.UUID]*prefill.Draft{},
		last:    map[string]*models.Exercise{},
		log:     log,
	}
	n.Refresh()
	return n
}

func (n *Navigator) Session() *models.Session { return n.session }

func (n *Navigator) Cursor() Cursor { return n.cursor }

func (n *Navigator) CurrentModule() (*models.Module, bool) {
	if n.cursor.Module < 0 || n.cursor.Module >= len(n.session.Modules) {
		return nil, false
	}
	return &n.session.Modules[n.cursor.Module], true
}

func (n *Navigator) CurrentExercise() (*models.Exercise, bool) {
	m, ok := n.CurrentModule()
	if !ok || n.cursor.Exercise < 0 || n.cursor.Exercise >= len(m.Exercises) {
		return nil, false
	}
	return &m.Exercises[n.cursor.Exercise], true
}

// IsWorkoutComplete reports the terminal state. The session still has to
// be finished explicitly.
func (n *Navigator) IsWorkoutComplete() bool {
	return n.cursor.Module >= len(n.session.Modules)
}

// AdvanceToNextExercise moves to the next superset member, then the next
// exercise, then the first exercise of the next non-empty module, and
// finally to the terminal state. Timers are left alone.
func (n *Navigator) AdvanceToNextExercise() Transition {
	if n.IsWorkoutComplete() {
		return TransitionNone
	}
	if e, ok := n.CurrentExercise(); ok && e.SupersetID != "" {
		members := n.supersets[e.SupersetID]
		for i, idx := range members {
			if idx == n.cursor.Exercise && i+1 < len(members) {
				n.moveTo(n.cursor.Module, members[i+1])
				return TransitionExercise
			}
		}
	}
	if m, ok := n.CurrentModule(); ok && n.cursor.Exercise+1 < len(m.Exercises) {
		n.moveTo(n.cursor.Module, n.cursor.Exercise+1)
		return TransitionExercise
	}
	return n.nextModule()
}

func (n *Navigator) nextModule() Transition {
	for mi := n.cursor.Module + 1; mi < len(n.session.Modules); mi++ {
		if len(n.session.Modules[mi].Exercises) > 0 {
			n.moveTo(mi, 0)
			return TransitionModule
		}
	}
	n.cursor = Cursor{Module: len(n.session.Modules)}
	n.Refresh()
	return TransitionWorkoutComplete
}

// GoToPreviousExercise steps back to the previous member of the current
// superset, or else the previous exercise in the module. From the terminal
// state it returns to the last exercise of the workout.
func (n *Navigator) GoToPreviousExercise() bool {
	if n.IsWorkoutComplete() {
		for mi := len(n.session.Modules) - 1; mi >= 0; mi-- {
			if k := len(n.session.Modules[mi].Exercises); k > 0 {
				n.moveTo(mi, k-1)
				return true
			}
		}
		return false
	}
	if e, ok := n.CurrentExercise(); ok && e.SupersetID != "" {
		members := n.supersets[e.SupersetID]
		for i, idx := range members {
			if idx == n.cursor.Exercise && i > 0 {
				n.moveTo(n.cursor.Module, members[i-1])
				return true
			}
		}
	}
	if n.cursor.Exercise > 0 {
		n.moveTo(n.cursor.Module, n.cursor.Exercise-1)
		return true
	}
	return false
}

// MoveToExercise jumps to exercise i of the current module.
func (n *Navigator) MoveToExercise(i int) bool {
	m, ok := n.CurrentModule()
	if !ok || i < 0 || i >= len(m.Exercises) {
		n.log.Debug("move to exercise ignored", "index", i)
		return false
	}
	n.moveTo(n.cursor.Module, i)
	return true
}

// SkipExercise advances without regard to incomplete sets.
func (n *Navigator) SkipExercise() Transition {
	return n.AdvanceToNextExercise()
}

// SkipModule jumps to the next non-empty module or the terminal state.
func (n *Navigator) SkipModule() Transition {
	if n.IsWorkoutComplete() {
		return TransitionNone
	}
	return n.nextModule()
}

func (n *Navigator) moveTo(module, exercise int) {
	n.cursor = Cursor{Module: module, Exercise: exercise}
	n.Refresh()
}

// SetPosition assigns the cursor, clamping every index.
func (n *Navigator) SetPosition(module, exercise, group, set int) {
	n.cursor = Cursor{Module: module, Exercise: exercise, SetGroup: group, Set: set}
	n.Refresh()
}

// JumpToSet moves within the current exercise, clamping indices.
func (n *Navigator) JumpToSet(group, set int) {
	n.cursor.SetGroup, n.cursor.Set = group, set
	n.clamp()
}

// JumpToFirstIncompleteSet positions on the first incomplete set of the
// current exercise, or on 0/0 when every set is done.
func (n *Navigator) JumpToFirstIncompleteSet() {
	n.cursor.SetGroup, n.cursor.Set = 0, 0
	e, ok := n.CurrentExercise()
	if !ok {
		return
	}
	for gi := range e.SetGroups {
		for si := range e.SetGroups[gi].Sets {
			if !e.SetGroups[gi].Sets[si].Completed {
				n.cursor.SetGroup, n.cursor.Set = gi, si
				return
			}
		}
	}
}

// Refresh rebuilds the derived views and clamps the cursor. Every mutation
// on the navigator calls it; code that edits the session directly must
// call it afterwards.
func (n *Navigator) Refresh() {
	n.clamp()
	n.flat = n.flat[:0]
	n.supersets = map[string][]int{}
	m, ok := n.CurrentModule()
	if !ok {
		return
	}
	for ei := range m.Exercises {
		if id := m.Exercises[ei].SupersetID; id != "" {
			n.supersets[id] = append(n.supersets[id], ei)
		}
	}
	e, ok := n.CurrentExercise()
	if !ok {
		return
	}
	for gi := range e.SetGroups {
		for si := range e.SetGroups[gi].Sets {
			n.flat = append(n.flat, SetRef{Module: n.cursor.Module, Exercise: n.cursor.Exercise, SetGroup: gi, Set: si})
		}
	}
}

func (n *Navigator) clamp() {
	c := &n.cursor
	c.Module = clampIndex(c.Module, len(n.session.Modules)+1)
	if c.Module == len(n.session.Modules) {
		*c = Cursor{Module: c.Module}
		return
	}
	m := &n.session.Modules[c.Module]
	c.Exercise = clampIndex(c.Exercise, len(m.Exercises))
	if len(m.Exercises) == 0 {
		c.SetGroup, c.Set = 0, 0
		return
	}
	e := &m.Exercises[c.Exercise]
	c.SetGroup = clampIndex(c.SetGroup, len(e.SetGroups))
	if len(e.SetGroups) == 0 {
		c.Set = 0
		return
	}
	c.Set = clampIndex(c.Set, len(e.SetGroups[c.SetGroup].Sets))
}

func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// FlattenedSets lists every set of the current exercise in order.
func (n *Navigator) FlattenedSets() []SetRef {
	return append([]SetRef(nil), n.flat...)
}

// SupersetSiblings returns the exercise indices sharing the current
// exercise's superset, including itself, in module order.
func (n *Navigator) SupersetSiblings() []int {
	e, ok := n.CurrentExercise()
	if !ok || e.SupersetID == "" {
		return nil
	}
	return append([]int(nil), n.supersets[e.SupersetID]...)
}

// ExerciseState reports progress for one exercise.
func (n *Navigator) ExerciseState(module, exercise int) ExerciseState {
	e := n.exercise(module, exercise)
	if e == nil {
		return StateNotStarted
	}
	if e.IsCompleted() {
		return StateCompleted
	}
	for _, g := range e.SetGroups {
		for _, s := range g.Sets {
			if s.Completed {
				return StateInProgress
			}
		}
	}
	return StateNotStarted
}

// ShouldStartRest reports whether a rest timer should follow a log on this
// exercise. It is evaluated after the log is applied: recovery exercises
// and exercises with nothing left to log get no rest.
func (n *Navigator) ShouldStartRest(module, exercise int) bool {
	e := n.exercise(module, exercise)
	if e == nil || e.Type == models.ExerciseRecovery {
		return false
	}
	return e.HasIncompleteSets()
}

// RestPeriod returns the rest configured on the group of ref, or 0.
func (n *Navigator) RestPeriod(ref SetRef) int {
	_, g, _, ok := n.lookup(ref)
	if !ok || g.RestPeriod == nil {
		return 0
	}
	return *g.RestPeriod
}

func (n *Navigator) StartRestTimer(seconds int) { n.rest.Start(seconds) }

func (n *Navigator) StopRestTimer() { n.rest.Stop() }

func (n *Navigator) RestTimer() timer.Reading { return n.rest.Read() }

// PollRestTimer reports ended=true exactly once after the countdown ends.
func (n *Navigator) PollRestTimer() (timer.Reading, bool) { return n.rest.Poll() }

// StartExerciseTimer binds the exercise timer to setID. A non-positive
// seconds value starts a stopwatch. If another set's timer is running it is
// stopped first and its elapsed time becomes that set's manual duration.
func (n *Navigator) StartExerciseTimer(seconds int, setID uuid.UUID) bool {
	if _, ok := n.findSet(setID); !ok {
		n.log.Debug("exercise timer start ignored", "set_id", setID)
		return false
	}
	prev, replaced := n.exTimer.Start(seconds, setID)
	if replaced && prev.SetID != uuid.Nil {
		n.recordDuration(prev.SetID, prev.Elapsed)
	}
	return true
}

// StopExerciseTimer stops the timer, records the elapsed seconds as the
// bound set's manual duration and returns them.
func (n *Navigator) StopExerciseTimer() int {
	id := n.exTimer.BoundTo()
	elapsed := n.exTimer.Stop()
	if id != uuid.Nil {
		n.recordDuration(id, elapsed)
	}
	return elapsed
}

func (n *Navigator) ExerciseTimer() timer.Reading { return n.exTimer.Read() }

func (n *Navigator) recordDuration(setID uuid.UUID, sec int) {
	ref, ok := n.findSet(setID)
	if !ok {
		return
	}
	d := n.syncDraft(ref)
	if d == nil {
		return
	}
	d.SetDuration(sec)
}

// SetLastSession caches the previous performance of an exercise by name.
func (n *Navigator) SetLastSession(name string, e *models.Exercise) {
	key := lastKey(name)
	if e == nil {
		delete(n.last, key)
		return
	}
	n.last[key] = e
}

func (n *Navigator) LastSession(name string) (*models.Exercise, bool) {
	e, ok := n.last[lastKey(name)]
	return e, ok
}

func lastKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Prefill resolves the input values for ref, keeping manual edits.
func (n *Navigator) Prefill(ref SetRef) (prefill.Draft, bool) {
	d := n.syncDraft(ref)
	if d == nil {
		return prefill.Draft{}, false
	}
	return *d, true
}

// EditDraft records a manual value for an unlogged set. Fields that are not
// primary for the exercise are refused.
func (n *Navigator) EditDraft(ref SetRef, field models.Field, raw string) bool {
	e, _, _, ok := n.lookup(ref)
	if !ok || !e.UsesField(field) {
		n.log.Debug("draft edit ignored", "ref", ref, "field", field)
		return false
	}
	d := n.syncDraft(ref)
	if d == nil {
		return false
	}
	d.Edit(field, raw)
	return true
}

// EditDraftMeasurable records a manual equipment value for an unlogged set.
func (n *Navigator) EditDraftMeasurable(ref SetRef, name, raw string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	d := n.syncDraft(ref)
	if d == nil {
		return false
	}
	d.EditMeasurable(name, raw)
	return true
}

func (n *Navigator) syncDraft(ref SetRef) *prefill.Draft {
	e, g, s, ok := n.lookup(ref)
	if !ok {
		return nil
	}
	d, ok := n.drafts[s.ID]
	if !ok {
		d = &prefill.Draft{}
		n.drafts[s.ID] = d
	}
	in := prefill.Input{Exercise: e, Group: g, Set: s}
	if last, ok := n.LastSession(e.Name); ok {
		in.LastSession = last
	}
	d.Sync(in)
	return d
}

func (n *Navigator) exercise(module, exercise int) *models.Exercise {
	if module < 0 || module >= len(n.session.Modules) {
		return nil
	}
	m := &n.session.Modules[module]
	if exercise < 0 || exercise >= len(m.Exercises) {
		return nil
	}
	return &m.Exercises[exercise]
}

func (n *Navigator) lookup(ref SetRef) (*models.Exercise, *models.SetGroup, *models.Set, bool) {
	e := n.exercise(ref.Module, ref.Exercise)
	if e == nil || ref.SetGroup < 0 || ref.SetGroup >= len(e.SetGroups) {
		return nil, nil, nil, false
	}
	g := &e.SetGroups[ref.SetGroup]
	if ref.Set < 0 || ref.Set >= len(g.Sets) {
		return nil, nil, nil, false
	}
	return e, g, &g.Sets[ref.Set], true
}

func (n *Navigator) findSet(id uuid.UUID) (SetRef, bool) {
	for mi := range n.session.Modules {
		m := &n.session.Modules[mi]
		for ei := range m.Exercises {
			e := &m.Exercises[ei]
			for gi := range e.SetGroups {
				for si := range e.SetGroups[gi].Sets {
					if e.SetGroups[gi].Sets[si].ID == id {
						return SetRef{Module: mi, Exercise: ei, SetGroup: gi, Set: si}, true
					}
				}
			}
		}
	}
	return SetRef{}, false
}
