package session

import (
	"math/rand"
	"testing"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func unilateralTemplate(name string, pairs int) models.ExerciseTemplate {
	return models.ExerciseTemplate{
		ID:   uuid.New(),
		Name: name,
		Type: models.ExerciseStrength,
		SetGroups: []models.SetGroupTemplate{{
			Sets:         pairs,
			IsUnilateral: true,
			Target:       models.SetTarget{Weight: models.FloatPtr(20), Reps: models.IntPtr(10)},
		}},
	}
}

func checkNumbering(t *testing.T, g *models.SetGroup) {
	t.Helper()
	for i, s := range g.Sets {
		want := i + 1
		if g.IsUnilateral {
			want = i/2 + 1
			wantSide := models.SideLeft
			if i%2 == 1 {
				wantSide = models.SideRight
			}
			if s.Side != wantSide {
				t.Errorf("set %d side = %q, want %q", i, s.Side, wantSide)
			}
		}
		if s.SetNumber != want {
			t.Errorf("set %d number = %d, want %d", i, s.SetNumber, want)
		}
	}
	if g.IsUnilateral && len(g.Sets)%2 != 0 {
		t.Errorf("unilateral group has %d sets, want even", len(g.Sets))
	}
}

// TestSetNumberingStaysContiguous runs random add/delete sequences and
// checks numbering after each step, for both group kinds.
func TestSetNumberingStaysContiguous(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 3, 135, 8), unilateralTemplate("Lunge", 3)))
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 200; step++ {
		ei := rng.Intn(2)
		e := &n.Session().Modules[0].Exercises[ei]
		if rng.Intn(2) == 0 {
			n.AddSet(0, ei)
		} else {
			g := &e.SetGroups[len(e.SetGroups)-1]
			n.DeleteSet(SetRef{Exercise: ei, SetGroup: len(e.SetGroups) - 1, Set: rng.Intn(len(g.Sets))})
		}
		for gi := range e.SetGroups {
			checkNumbering(t, &e.SetGroups[gi])
		}
		if e.LogicalSetCount() < 1 {
			t.Fatalf("step %d: exercise %s has no sets", step, e.Name)
		}
	}
}

// TestLogUncheckLogRoundTrip verifies log, uncheck, log with the same
// payload matches a single log.
func TestLogUncheckLogRoundTrip(t *testing.T) {
	in := SetInput{
		Weight:      models.FloatPtr(135),
		Reps:        models.IntPtr(8),
		RPE:         models.IntPtr(8),
		Measurables: map[string]string{"seat": "4", "grip": "wide"},
	}
	once, _ := navigatorFor(module("Main", exTemplate("Bench", 3, 135, 8)))
	twice, _ := navigatorFor(module("Main", exTemplate("Bench", 3, 135, 8)))

	once.LogSet(SetRef{}, in)
	twice.LogSet(SetRef{}, in)
	twice.UncheckSet(SetRef{})
	twice.LogSet(SetRef{}, in)

	a := once.Session().Modules[0].Exercises[0].SetGroups[0].Sets[0]
	b := twice.Session().Modules[0].Exercises[0].SetGroups[0].Sets[0]
	a.ID, b.ID = uuid.Nil, uuid.Nil
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("set differs (-once +twice):\n%s", diff)
	}
}

// TestLogMergesButAlwaysWritesRPE verifies reps-only logging keeps weight
// while a nil RPE clears the stored one.
func TestLogMergesButAlwaysWritesRPE(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 3, 135, 8)))
	ref := SetRef{}
	n.LogSet(ref, SetInput{Weight: models.FloatPtr(135), Reps: models.IntPtr(8), RPE: models.IntPtr(9)})
	n.UncheckSet(ref)
	n.LogSet(ref, SetInput{Reps: models.IntPtr(6)})

	s := n.Session().Modules[0].Exercises[0].SetGroups[0].Sets[0]
	if s.Weight == nil || *s.Weight != 135 {
		t.Errorf("weight = %v, want 135 kept", s.Weight)
	}
	if s.Reps == nil || *s.Reps != 6 {
		t.Errorf("reps = %v, want 6", s.Reps)
	}
	if s.RPE != nil {
		t.Errorf("rpe = %d, want cleared", *s.RPE)
	}
	if !s.Completed {
		t.Error("completed = false")
	}
}

// TestLogClampsAndFilters verifies RPE clamping, measurable parsing and that
// fields outside the exercise type are dropped.
func TestLogClampsAndFilters(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 3, 135, 8)))
	n.LogSet(SetRef{}, SetInput{
		Reps:        models.IntPtr(8),
		Distance:    models.FloatPtr(400),
		RPE:         models.IntPtr(14),
		Measurables: map[string]string{"seat": "4,5", "band": "red", "pin": "  "},
	})
	s := n.Session().Modules[0].Exercises[0].SetGroups[0].Sets[0]
	if s.Distance != nil {
		t.Errorf("distance = %v, want nil for strength", *s.Distance)
	}
	if s.RPE == nil || *s.RPE != 10 {
		t.Errorf("rpe = %v, want 10", s.RPE)
	}
	if mv := s.Measurables["seat"]; mv.IsString || mv.Number != 4.5 {
		t.Errorf("seat = %+v, want number 4.5", mv)
	}
	if mv := s.Measurables["band"]; !mv.IsString || mv.Text != "red" {
		t.Errorf("band = %+v, want text red", mv)
	}
	if _, ok := s.Measurables["pin"]; ok {
		t.Error("blank measurable stored")
	}
}

// TestParseSetInput verifies malformed numbers become absent fields.
func TestParseSetInput(t *testing.T) {
	in := ParseSetInput(map[string]string{
		"weight": "62,5",
		"reps":   "eight",
		"rpe":    "7",
		"seat":   "3",
	})
	if in.Weight == nil || *in.Weight != 62.5 {
		t.Errorf("weight = %v, want 62.5", in.Weight)
	}
	if in.Reps != nil {
		t.Errorf("reps = %d, want nil", *in.Reps)
	}
	if in.RPE == nil || *in.RPE != 7 {
		t.Errorf("rpe = %v, want 7", in.RPE)
	}
	if in.Measurables["seat"] != "3" {
		t.Errorf("measurables = %v, want seat=3", in.Measurables)
	}
}

// TestParseSetInputRejectsNonFinite verifies NaN and infinities are treated
// as absent, so a logged set stays encodable.
func TestParseSetInputRejectsNonFinite(t *testing.T) {
	in := ParseSetInput(map[string]string{
		"weight":   "NaN",
		"distance": "Inf",
		"height":   "-infinity",
		"reps":     "8",
		"rpe":      "nan",
	})
	if in.Weight != nil || in.Distance != nil || in.Height != nil {
		t.Errorf("weight, distance, height = %v, %v, %v, want nil", in.Weight, in.Distance, in.Height)
	}
	if in.RPE != nil {
		t.Errorf("rpe = %d, want nil", *in.RPE)
	}
	if in.Reps == nil || *in.Reps != 8 {
		t.Errorf("reps = %v, want 8", in.Reps)
	}
}

// TestIntervalRoundsFollowSets verifies add and delete keep one round per
// interval set.
func TestIntervalRoundsFollowSets(t *testing.T) {
	ex := models.ExerciseTemplate{
		ID:   uuid.New(),
		Name: "Bike Sprints",
		Type: models.ExerciseCardio,
		SetGroups: []models.SetGroupTemplate{{
			Sets:                 3,
			IsInterval:           true,
			WorkDuration:         30,
			IntervalRestDuration: 90,
		}},
	}
	n, _ := navigatorFor(module("Conditioning", ex))
	g := &n.Session().Modules[0].Exercises[0].SetGroups[0]
	if g.Rounds != 3 {
		t.Fatalf("rounds = %d, want 3", g.Rounds)
	}

	n.AddSet(0, 0)
	if len(g.Sets) != 4 || g.Rounds != 4 {
		t.Errorf("after add sets = %d rounds = %d, want 4 and 4", len(g.Sets), g.Rounds)
	}
	n.DeleteSet(SetRef{Set: 1})
	n.DeleteSet(SetRef{Set: 1})
	if len(g.Sets) != 2 || g.Rounds != 2 {
		t.Errorf("after deletes sets = %d rounds = %d, want 2 and 2", len(g.Sets), g.Rounds)
	}
}

// TestEditDraftFieldsAndMeasurables verifies manual measurable edits stick,
// and edits to fields the exercise does not track are refused.
func TestEditDraftFieldsAndMeasurables(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Leg Press", 2, 200, 10)))
	if n.EditDraft(SetRef{}, models.FieldTemperature, "20") {
		t.Error("EditDraft(temperature) on strength = true")
	}
	if !n.EditDraftMeasurable(SetRef{}, "seat", "4") {
		t.Fatal("EditDraftMeasurable = false")
	}
	if n.EditDraftMeasurable(SetRef{}, " ", "4") {
		t.Error("EditDraftMeasurable with blank name = true")
	}
	d, _ := n.Prefill(SetRef{})
	if got := d.Values.Measurables["seat"]; got != models.NumberValue(4) {
		t.Errorf("seat = %+v, want 4", got)
	}
	if !d.EditedKeys["seat"] {
		t.Error("seat not marked edited")
	}
	if d.Values.Temperature != nil {
		t.Errorf("temperature = %d, want nil", *d.Values.Temperature)
	}
}

// TestBenchPressScenario logs reps only, adds a set and deletes set 2.
func TestBenchPressScenario(t *testing.T) {
	n, _ := navigatorFor(module("Upper Body", exTemplate("Bench Press", 3, 135, 8)))
	n.LogSet(SetRef{}, SetInput{Reps: models.IntPtr(8)})

	g := &n.Session().Modules[0].Exercises[0].SetGroups[0]
	s1 := g.Sets[0]
	if s1.Weight != nil || s1.Reps == nil || *s1.Reps != 8 || !s1.Completed {
		t.Fatalf("set 1 = weight %v reps %v completed %v, want nil/8/true", s1.Weight, s1.Reps, s1.Completed)
	}

	n.AddSet(0, 0)
	if len(g.Sets) != 4 {
		t.Fatalf("sets = %d, want 4", len(g.Sets))
	}
	if w := g.Sets[1].Target.Weight; w == nil || *w != 135 {
		t.Errorf("set 2 target weight = %v, want 135 untouched", w)
	}
	if w, r := g.Sets[3].Target.Weight, g.Sets[3].Target.Reps; w == nil || *w != 135 || r == nil || *r != 8 || g.Sets[3].Completed {
		t.Errorf("set 4 = %vx%v completed %v, want incomplete 135x8", w, r, g.Sets[3].Completed)
	}

	n.DeleteSet(SetRef{Set: 1})
	if len(g.Sets) != 3 {
		t.Fatalf("sets = %d, want 3", len(g.Sets))
	}
	for i, s := range g.Sets {
		if s.SetNumber != i+1 {
			t.Errorf("set %d number = %d", i, s.SetNumber)
		}
	}
	if g.Sets[0].ID != s1.ID || !g.Sets[0].Completed || *g.Sets[0].Reps != 8 {
		t.Errorf("set 1 changed: %+v", g.Sets[0])
	}
}

// TestDeleteUnilateralRemovesPair verifies deleting one side removes both
// and the remaining pairs renumber.
func TestDeleteUnilateralRemovesPair(t *testing.T) {
	n, _ := navigatorFor(module("Main", unilateralTemplate("Lunge", 3)))
	g := &n.Session().Modules[0].Exercises[0].SetGroups[0]
	keepLeft := g.Sets[4].ID

	// right side of logical set 2
	if !n.DeleteSet(SetRef{Set: 3}) {
		t.Fatal("DeleteSet = false")
	}
	if len(g.Sets) != 4 {
		t.Fatalf("sets = %d, want 4", len(g.Sets))
	}
	checkNumbering(t, g)
	if g.Sets[2].ID != keepLeft {
		t.Error("set 3 left did not move into position 2")
	}
}

// TestDeleteRefusesLastSet verifies the exercise keeps at least one set.
func TestDeleteRefusesLastSet(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 1, 135, 8), unilateralTemplate("Lunge", 1)))
	if n.DeleteSet(SetRef{}) {
		t.Error("deleted the last set")
	}
	if n.DeleteSet(SetRef{Exercise: 1, Set: 1}) {
		t.Error("deleted the last unilateral pair")
	}
}

// TestDeleteDropsEmptyGroup verifies an emptied group is removed.
func TestDeleteDropsEmptyGroup(t *testing.T) {
	tmpl := exTemplate("Bench", 2, 135, 8)
	tmpl.SetGroups = append(tmpl.SetGroups, models.SetGroupTemplate{Sets: 1, IsAMRAP: true})
	n, _ := navigatorFor(module("Main", tmpl))
	if !n.DeleteSet(SetRef{SetGroup: 1}) {
		t.Fatal("DeleteSet = false")
	}
	if got := len(n.Session().Modules[0].Exercises[0].SetGroups); got != 1 {
		t.Errorf("groups = %d, want 1", got)
	}
}

// TestAddSetUnilateralCopiesEachSide verifies each side copies its own
// last values.
func TestAddSetUnilateralCopiesEachSide(t *testing.T) {
	n, _ := navigatorFor(module("Main", unilateralTemplate("Lunge", 1)))
	n.LogSet(SetRef{Set: 0}, SetInput{Weight: models.FloatPtr(22), Reps: models.IntPtr(10)})
	n.LogSet(SetRef{Set: 1}, SetInput{Weight: models.FloatPtr(24), Reps: models.IntPtr(9)})
	n.AddSet(0, 0)

	g := n.Session().Modules[0].Exercises[0].SetGroups[0]
	if len(g.Sets) != 4 {
		t.Fatalf("sets = %d, want 4", len(g.Sets))
	}
	if w := g.Sets[2].Target.Weight; w == nil || *w != 22 {
		t.Errorf("new left target = %v, want 22", w)
	}
	if r := g.Sets[3].Target.Reps; r == nil || *r != 9 {
		t.Errorf("new right reps target = %v, want 9", r)
	}
	checkNumbering(t, &g)
}

// TestAddSetWithoutGroups verifies an exercise with no groups gets one.
func TestAddSetWithoutGroups(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 1, 135, 8)))
	e := &n.Session().Modules[0].Exercises[0]
	e.SetGroups = nil
	n.Refresh()
	if !n.AddSet(0, 0) {
		t.Fatal("AddSet = false")
	}
	if len(e.SetGroups) != 1 || len(e.SetGroups[0].Sets) != 1 {
		t.Errorf("groups = %+v, want one group with one set", e.SetGroups)
	}
}

// TestStaleReferencesAreNoOps verifies every mutation ignores bad indices.
func TestStaleReferencesAreNoOps(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 2, 135, 8)))
	before, err := cloneSession(n.Session())
	if err != nil {
		t.Fatal(err)
	}
	bad := SetRef{Module: 3, Exercise: 1, SetGroup: 0, Set: 0}
	ops := map[string]bool{
		"log":        n.LogSet(bad, SetInput{Reps: models.IntPtr(1)}),
		"uncheck":    n.UncheckSet(bad),
		"delete":     n.DeleteSet(SetRef{Set: 9}),
		"add set":    n.AddSet(0, 4),
		"add ex":     n.AddExercise(2, AdHocExercise{Name: "Dip"}),
		"reorder":    n.ReorderExercise(0, 0, 3),
		"scheme":     n.UpdateExerciseScheme(1, 0, SchemeEdit{}),
		"delete ex":  n.DeleteExercise(0, 2),
		"substitute": n.SubstituteExercise(0, -1, "Dip"),
	}
	for name, ok := range ops {
		if ok {
			t.Errorf("%s on stale ref = true", name)
		}
	}
	if diff := cmp.Diff(before, n.Session()); diff != "" {
		t.Errorf("session changed (-before +after):\n%s", diff)
	}
}

// TestAddExerciseAdHoc verifies the ad-hoc shape.
func TestAddExerciseAdHoc(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 2, 135, 8)))
	if !n.AddExercise(0, AdHocExercise{Name: "Rower", Type: models.ExerciseCardio, DistanceUnit: models.DistanceMeters}) {
		t.Fatal("AddExercise = false")
	}
	e := n.Session().Modules[0].Exercises[1]
	if !e.IsAdHoc || e.TemplateExerciseID != uuid.Nil {
		t.Errorf("ad hoc = %v template id = %s", e.IsAdHoc, e.TemplateExerciseID)
	}
	if len(e.SetGroups) != 1 || len(e.SetGroups[0].Sets) != 1 || e.SetGroups[0].Sets[0].Completed {
		t.Errorf("groups = %+v, want one incomplete set", e.SetGroups)
	}
	if e.CardioTracking != models.CardioTime {
		t.Errorf("cardio tracking = %q, want time", e.CardioTracking)
	}
	if n.AddExercise(0, AdHocExercise{Name: "  "}) {
		t.Error("AddExercise with blank name = true")
	}
	if n.AddExercise(0, AdHocExercise{Name: "Flow", Type: "yoga"}) {
		t.Error("AddExercise with unknown type = true")
	}
	if got := len(n.Session().Modules[0].Exercises); got != 2 {
		t.Errorf("exercises = %d, want 2", got)
	}
}

// TestReorderKeepsCursorOnExercise covers moving the current exercise and
// moving others across it.
func TestReorderKeepsCursorOnExercise(t *testing.T) {
	tests := []struct {
		name     string
		cur      int
		from, to int
	}{
		{"move current down", 1, 1, 3},
		{"move current up", 2, 2, 0},
		{"move other across from above", 2, 0, 3},
		{"move other across from below", 1, 3, 0},
		{"move other not crossing", 0, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _ := navigatorFor(module("Main",
				exTemplate("A", 1, 0, 1), exTemplate("B", 1, 0, 1),
				exTemplate("C", 1, 0, 1), exTemplate("D", 1, 0, 1)))
			n.MoveToExercise(tt.cur)
			want := currentName(n)
			if !n.ReorderExercise(0, tt.from, tt.to) {
				t.Fatal("ReorderExercise = false")
			}
			if got := currentName(n); got != want {
				t.Errorf("current = %s, want %s", got, want)
			}
		})
	}
}

// TestUpdateSchemePreservesCompleted verifies completed sets survive an edit
// verbatim and only the remainder is regenerated.
func TestUpdateSchemePreservesCompleted(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Bench", 3, 135, 8)))
	n.LogSet(SetRef{Set: 0}, SetInput{Weight: models.FloatPtr(135), Reps: models.IntPtr(8)})
	n.LogSet(SetRef{Set: 1}, SetInput{Weight: models.FloatPtr(135), Reps: models.IntPtr(7)})
	e := &n.Session().Modules[0].Exercises[0]
	done := []models.Set{e.SetGroups[0].Sets[0], e.SetGroups[0].Sets[1]}

	ok := n.UpdateExerciseScheme(0, 0, SchemeEdit{
		Scheme: models.SetGroupTemplate{
			Sets:   5,
			Target: models.SetTarget{Weight: models.FloatPtr(125), Reps: models.IntPtr(10)},
		},
	})
	if !ok {
		t.Fatal("UpdateExerciseScheme = false")
	}
	if len(e.SetGroups) != 2 {
		t.Fatalf("groups = %d, want preserved + regenerated", len(e.SetGroups))
	}
	if diff := cmp.Diff(done, e.SetGroups[0].Sets); diff != "" {
		t.Errorf("preserved sets changed (-want +got):\n%s", diff)
	}
	regen := e.SetGroups[1]
	if len(regen.Sets) != 3 {
		t.Errorf("regenerated = %d sets, want 3", len(regen.Sets))
	}
	for _, s := range regen.Sets {
		if s.Completed || s.Target.Weight == nil || *s.Target.Weight != 125 {
			t.Errorf("regenerated set = %+v, want incomplete at 125", s)
		}
	}
	if e.LogicalSetCount() != 5 {
		t.Errorf("logical sets = %d, want 5", e.LogicalSetCount())
	}
	if c := n.Cursor(); c.SetGroup != 1 || c.Set != 0 {
		t.Errorf("cursor = %+v, want first incomplete set", c)
	}
}

// TestUpdateSchemeChangesType verifies a type change keeps completed sets.
func TestUpdateSchemeChangesType(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("Plank", 2, 0, 0)))
	n.LogSet(SetRef{}, SetInput{Reps: models.IntPtr(1)})
	n.UpdateExerciseScheme(0, 0, SchemeEdit{
		Type:   models.ExerciseIsometric,
		Scheme: models.SetGroupTemplate{Sets: 1, Target: models.SetTarget{HoldTime: models.IntPtr(60)}},
	})
	e := n.Session().Modules[0].Exercises[0]
	if e.Type != models.ExerciseIsometric {
		t.Errorf("type = %s, want isometric", e.Type)
	}
	if e.LogicalSetCount() != 1 || !e.SetGroups[0].Sets[0].Completed {
		t.Errorf("groups = %+v, want only the preserved set", e.SetGroups)
	}
}

// TestDeleteAndSubstituteExercise covers the cursor shift on delete and the
// substitution bookkeeping.
func TestDeleteAndSubstituteExercise(t *testing.T) {
	n, _ := navigatorFor(module("Main", exTemplate("A", 1, 0, 1), exTemplate("B", 1, 0, 1), exTemplate("C", 1, 0, 1)))
	n.MoveToExercise(2)
	if !n.DeleteExercise(0, 0) {
		t.Fatal("DeleteExercise = false")
	}
	if got := currentName(n); got != "C" {
		t.Errorf("current = %s, want C", got)
	}

	n.SubstituteExercise(0, 0, "Cable Fly")
	e := n.Session().Modules[0].Exercises[0]
	if e.Name != "Cable Fly" || !e.IsSubstitution || e.OriginalName != "B" {
		t.Errorf("substituted = %q sub=%v orig=%q", e.Name, e.IsSubstitution, e.OriginalName)
	}
	n.SubstituteExercise(0, 0, "b")
	e = n.Session().Modules[0].Exercises[0]
	if e.Name != "B" || e.IsSubstitution || e.OriginalName != "" {
		t.Errorf("reverted = %q sub=%v orig=%q", e.Name, e.IsSubstitution, e.OriginalName)
	}
}
