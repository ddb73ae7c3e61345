package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/templatediff"
	"github.com/google/uuid"
)

type fakeStore struct {
	templates map[uuid.UUID]models.WorkoutTemplate
	saved     []*models.Session
	failSave  error
}

func (f *fakeStore) GetTemplate(_ context.Context, id uuid.UUID) (models.WorkoutTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return models.WorkoutTemplate{}, errors.New("not found")
	}
	return t, nil
}

func (f *fakeStore) SaveTemplate(_ context.Context, t models.WorkoutTemplate) error {
	f.templates[t.ID] = t
	return nil
}

func (f *fakeStore) SaveSession(_ context.Context, s *models.Session) error {
	if f.failSave != nil {
		return f.failSave
	}
	f.saved = append(f.saved, s)
	return nil
}

type fakeHistory map[string]*models.Exercise

func (f fakeHistory) LastPerformance(_ context.Context, name string) (*models.Exercise, error) {
	return f[strings.ToLower(name)], nil
}

type fakeSuggestions map[string]*models.ProgressionSuggestion

func (f fakeSuggestions) LatestSuggestion(_ context.Context, name string) (*models.ProgressionSuggestion, error) {
	return f[name], nil
}

type memSnapshots struct {
	data  []byte
	saves int
}

func (m *memSnapshots) Save(_ context.Context, _ uuid.UUID, data []byte) error {
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memSnapshots) Load(context.Context) ([]byte, error) { return m.data, nil }

func (m *memSnapshots) Clear(context.Context) error {
	m.data = nil
	return nil
}

type fixture struct {
	mgr       *Manager
	store     *fakeStore
	snapshots *memSnapshots
	clock     *manualClock
	tmpl      models.WorkoutTemplate
}

func newFixture() *fixture {
	tmpl := models.WorkoutTemplate{
		ID:   uuid.New(),
		Name: "Upper A",
		Modules: []models.ModuleTemplate{
			module("Main", exTemplate("Bench Press", 3, 135, 8), exTemplate("Row", 3, 95, 10)),
		},
	}
	last := models.NewExercise(exTemplate("Bench Press", 3, 0, 0))
	last.SetGroups[0].Sets[0].Weight = models.FloatPtr(130)
	last.SetGroups[0].Sets[0].Completed = true

	f := &fixture{
		store:     &fakeStore{templates: map[uuid.UUID]models.WorkoutTemplate{tmpl.ID: tmpl}},
		snapshots: &memSnapshots{},
		clock:     newClock(),
		tmpl:      tmpl,
	}
	f.mgr = NewManager(f.store,
		fakeHistory{"bench press": &last},
		fakeSuggestions{"Row": {Metric: models.MetricWeight, BaseValue: 95, SuggestedValue: 100}},
		f.snapshots, testLogger(), WithClock(f.clock))
	return f
}

// TestManagerStartLoadsCollaborators verifies start hydrates last session
// data and suggestions, and refuses a second session.
func TestManagerStartLoadsCollaborators(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v, err := f.mgr.Start(ctx, f.tmpl.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.CurrentExercise != "Bench Press" {
		t.Errorf("current = %q, want Bench Press", v.CurrentExercise)
	}
	if sg := v.Session.Modules[0].Exercises[1].Suggestion; sg == nil || sg.SuggestedValue != 100 {
		t.Errorf("row suggestion = %+v, want 100", sg)
	}
	err = f.mgr.With(ctx, func(n *Navigator) error {
		d, _ := n.Prefill(SetRef{})
		if d.Values.Weight == nil || *d.Values.Weight != 130 {
			t.Errorf("prefill weight = %v, want 130 from history", d.Values.Weight)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if _, err := f.mgr.StartFreestyle(ctx, ""); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second start err = %v, want ErrSessionActive", err)
	}
	if f.snapshots.data == nil {
		t.Error("no snapshot written")
	}
}

// TestManagerWithoutSession verifies the no-active-session error kind.
func TestManagerWithoutSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.mgr.With(ctx, func(*Navigator) error { return nil }); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("With err = %v, want ErrNoActiveSession", err)
	}
	if _, err := f.mgr.Finish(ctx, FinishRequest{}); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Finish err = %v, want ErrNoActiveSession", err)
	}
	if err := f.mgr.Cancel(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Cancel err = %v, want ErrNoActiveSession", err)
	}
	if _, err := f.mgr.Start(ctx, uuid.New()); err == nil {
		t.Error("Start with unknown template succeeded")
	}
}

// TestManagerFinishCommitsAccepted verifies finish stamps the session,
// applies only accepted changes and clears state.
func TestManagerFinishCommitsAccepted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}
	err := f.mgr.With(ctx, func(n *Navigator) error {
		n.LogSet(SetRef{}, SetInput{Weight: models.FloatPtr(135), Reps: models.IntPtr(8)})
		n.AddSet(0, 0)
		n.AddExercise(0, AdHocExercise{Name: "Face Pull", Type: models.ExerciseStrength})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	changes, err := f.mgr.PendingChanges(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var accept []string
	for _, c := range changes {
		if c.Kind == templatediff.KindSetCountChanged {
			accept = append(accept, c.ID)
		}
	}
	if len(changes) != 2 || len(accept) != 1 {
		t.Fatalf("changes = %+v, want one addition and one set count change", changes)
	}

	f.clock.Advance(45 * time.Minute)
	res, err := f.mgr.Finish(ctx, FinishRequest{Feeling: models.IntPtr(9), Notes: "good", AcceptedChangeIDs: accept})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	s := res.Session
	if s.DurationSec != 2700 || s.EndedAt == nil {
		t.Errorf("duration = %d ended = %v, want 2700 and set", s.DurationSec, s.EndedAt)
	}
	if s.Feeling == nil || *s.Feeling != 5 {
		t.Errorf("feeling = %v, want clamped 5", s.Feeling)
	}
	if len(f.store.saved) != 1 {
		t.Errorf("saved sessions = %d, want 1", len(f.store.saved))
	}
	updated := f.store.templates[f.tmpl.ID]
	if got := updated.Modules[0].Exercises[0].SetGroups[0].Sets; got != 4 {
		t.Errorf("template bench sets = %d, want 4", got)
	}
	if got := len(updated.Modules[0].Exercises); got != 2 {
		t.Errorf("template exercises = %d, want 2 (addition not accepted)", got)
	}
	if f.mgr.Active() {
		t.Error("session still active after finish")
	}
	if f.snapshots.data != nil {
		t.Error("snapshot not cleared")
	}
}

// TestManagerFinishStoreErrorKeepsSession verifies a failed save can be
// retried.
func TestManagerFinishStoreErrorKeepsSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.StartFreestyle(ctx, "Garage"); err != nil {
		t.Fatal(err)
	}
	f.store.failSave = errors.New("db down")
	if _, err := f.mgr.Finish(ctx, FinishRequest{}); err == nil {
		t.Fatal("Finish succeeded with failing store")
	}
	if !f.mgr.Active() {
		t.Fatal("session dropped after failed save")
	}
	f.store.failSave = nil
	if _, err := f.mgr.Finish(ctx, FinishRequest{}); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

// TestManagerCancelPersistsNothing verifies cancel discards everything.
func TestManagerCancelPersistsNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.mgr.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(f.store.saved) != 0 {
		t.Errorf("saved = %d, want 0", len(f.store.saved))
	}
	if f.snapshots.data != nil {
		t.Error("snapshot kept after cancel")
	}
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Errorf("start after cancel: %v", err)
	}
}

// TestManagerResumeRestoresTimers verifies a new manager picks up the
// snapshot, including a running rest timer and the originating template.
func TestManagerResumeRestoresTimers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}
	_ = f.mgr.With(ctx, func(n *Navigator) error {
		n.LogSet(SetRef{}, SetInput{Reps: models.IntPtr(8)})
		n.JumpToSet(0, 1)
		n.StartRestTimer(120)
		return nil
	})
	f.clock.Advance(50 * time.Second)

	restarted := NewManager(f.store, nil, nil, f.snapshots, testLogger(), WithClock(f.clock))
	ok, err := restarted.Resume(ctx)
	if err != nil || !ok {
		t.Fatalf("Resume = %v, %v", ok, err)
	}
	v, err := restarted.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.RestTimer.Remaining != 70 || !v.RestTimer.Running {
		t.Errorf("rest = %+v, want running with 70 left", v.RestTimer)
	}
	if v.Cursor.Set != 1 {
		t.Errorf("cursor = %+v, want set 1", v.Cursor)
	}
	if !v.Session.Modules[0].Exercises[0].SetGroups[0].Sets[0].Completed {
		t.Error("logged set lost")
	}
	changes, err := restarted.PendingChanges(ctx)
	if err != nil || len(changes) != 0 {
		t.Errorf("PendingChanges = %v, %v, want none", changes, err)
	}
}

// TestManagerResumeWithoutSnapshot verifies an empty store resumes nothing.
func TestManagerResumeWithoutSnapshot(t *testing.T) {
	f := newFixture()
	ok, err := f.mgr.Resume(context.Background())
	if err != nil || ok {
		t.Errorf("Resume = %v, %v, want false, nil", ok, err)
	}
}

// TestManagerLogSetRestPolicy verifies rest starts while sets remain, uses
// the group's period and moves the cursor to the next incomplete set.
func TestManagerLogSetRestPolicy(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}

	res, err := f.mgr.LogSet(ctx, SetRef{}, SetInput{Reps: models.IntPtr(8)})
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	if !res.Logged || res.RestStarted != 90 || !res.View.RestTimer.Running {
		t.Errorf("first log = %+v, want rest of 90 running", res)
	}
	if res.View.Cursor.Set != 1 {
		t.Errorf("cursor set = %d, want 1", res.View.Cursor.Set)
	}

	_, _ = f.mgr.LogSet(ctx, SetRef{Set: 1}, SetInput{Reps: models.IntPtr(8)})
	_ = f.mgr.With(ctx, func(n *Navigator) error { n.StopRestTimer(); return nil })
	res, err = f.mgr.LogSet(ctx, SetRef{Set: 2}, SetInput{Reps: models.IntPtr(8)})
	if err != nil {
		t.Fatal(err)
	}
	if res.RestStarted != 0 || res.View.RestTimer.Running {
		t.Errorf("last log = %+v, want no rest after the final set", res)
	}

	res, err = f.mgr.LogSet(ctx, SetRef{Set: 9}, SetInput{})
	if err != nil || res.Logged {
		t.Errorf("stale LogSet = %+v, %v, want not logged", res, err)
	}
}

// TestManagerLogSetDefaultRest verifies the configured default applies to
// groups without their own rest period.
func TestManagerLogSetDefaultRest(t *testing.T) {
	f := newFixture()
	mgr := NewManager(f.store, nil, nil, nil, testLogger(), WithClock(f.clock), WithDefaultRest(60))
	ctx := context.Background()
	if _, err := mgr.StartFreestyle(ctx, "Garage"); err != nil {
		t.Fatal(err)
	}
	_ = mgr.With(ctx, func(n *Navigator) error {
		n.AddExercise(0, AdHocExercise{Name: "Curl"})
		n.AddSet(0, 0)
		return nil
	})
	res, err := mgr.LogSet(ctx, SetRef{}, SetInput{Reps: models.IntPtr(10)})
	if err != nil {
		t.Fatal(err)
	}
	if res.RestStarted != 60 {
		t.Errorf("rest = %d, want default 60", res.RestStarted)
	}
}

// TestManagerAdvanceAndRest verifies the convenience operations used by the
// transports.
func TestManagerAdvanceAndRest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Advance(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Advance err = %v, want ErrNoActiveSession", err)
	}
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}

	v, err := f.mgr.StartRest(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if v.RestTimer.Total != 90 {
		t.Errorf("rest total = %d, want group rest 90", v.RestTimer.Total)
	}

	step, err := f.mgr.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if step.Transition != TransitionExercise || step.State.CurrentExercise != "Row" {
		t.Errorf("step = %s to %q, want exercise to Row", step.Transition, step.State.CurrentExercise)
	}

	p, err := f.mgr.Prefill(ctx, SetRef{Exercise: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !p.Found || p.Draft.Values.Weight == nil || *p.Draft.Values.Weight != 95 {
		t.Errorf("prefill = %+v, want suggestion base 95", p)
	}
	if p, _ := f.mgr.Prefill(ctx, SetRef{Exercise: 7}); p.Found {
		t.Error("prefill found a stale ref")
	}
}

// TestManagerLogSetNonFiniteInput verifies a NaN weight is dropped, so the
// state stays readable and snapshots keep being written.
func TestManagerLogSetNonFiniteInput(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}

	res, err := f.mgr.LogSet(ctx, SetRef{}, ParseSetInput(map[string]string{"weight": "NaN", "reps": "8"}))
	if err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	s := res.View.Session.Modules[0].Exercises[0].SetGroups[0].Sets[0]
	if !s.Completed || s.Weight != nil || s.Reps == nil || *s.Reps != 8 {
		t.Errorf("set = completed %v weight %v reps %v, want completed, no weight, 8 reps", s.Completed, s.Weight, s.Reps)
	}

	saves := f.snapshots.saves
	if _, err := f.mgr.Advance(ctx); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.snapshots.saves != saves+1 {
		t.Errorf("snapshot saves = %d, want %d", f.snapshots.saves, saves+1)
	}
	resumed := NewManager(f.store, nil, nil, f.snapshots, testLogger(), WithClock(f.clock))
	if ok, err := resumed.Resume(ctx); err != nil || !ok {
		t.Errorf("Resume = %v, %v, want true", ok, err)
	}
	if _, err := f.mgr.Finish(ctx, FinishRequest{}); err != nil {
		t.Errorf("Finish: %v", err)
	}
}

// TestManagerPollRest verifies the end of a rest is reported exactly once.
func TestManagerPollRest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.PollRest(ctx); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("PollRest without session = %v, want ErrNoActiveSession", err)
	}
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.mgr.StartRest(ctx, 60); err != nil {
		t.Fatal(err)
	}

	p, err := f.mgr.PollRest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.Ended || !p.Reading.Running {
		t.Errorf("poll during rest = %+v, want running", p)
	}

	f.clock.Advance(61 * time.Second)
	if p, _ := f.mgr.PollRest(ctx); !p.Ended {
		t.Errorf("poll after rest = %+v, want ended", p)
	}
	if p, _ := f.mgr.PollRest(ctx); p.Ended {
		t.Error("ended reported twice")
	}
}

// TestViewSetSummaries verifies the view lists the current exercise's sets
// with a summary for entered values only.
func TestViewSetSummaries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if _, err := f.mgr.Start(ctx, f.tmpl.ID); err != nil {
		t.Fatal(err)
	}
	res, err := f.mgr.LogSet(ctx, SetRef{}, SetInput{Weight: models.FloatPtr(135), Reps: models.IntPtr(8)})
	if err != nil {
		t.Fatal(err)
	}
	sets := res.View.Sets
	if len(sets) != 3 {
		t.Fatalf("sets = %d, want 3", len(sets))
	}
	if sets[0].Summary != "135 x 8 reps" || !sets[0].Completed {
		t.Errorf("set 1 = %+v, want completed 135 x 8 reps", sets[0])
	}
	if sets[1].Summary != "" || sets[1].SetNumber != 2 || sets[1].Ref.Set != 1 {
		t.Errorf("set 2 = %+v, want no summary", sets[1])
	}
}
