package storage

import (
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
)

func sampleSession() *models.Session {
	tmpl := models.WorkoutTemplate{
		Name: "Push",
		Modules: []models.ModuleTemplate{{
			Name: "Main",
			Type: models.ModuleStrength,
			Exercises: []models.ExerciseTemplate{
				{Name: "Bench Press", Type: models.ExerciseStrength, SetGroups: []models.SetGroupTemplate{{Sets: 2}}},
				{Name: "Split Squat", Type: models.ExerciseStrength, SetGroups: []models.SetGroupTemplate{{Sets: 1, IsUnilateral: true}}},
			},
		}},
	}
	return models.NewSession(tmpl, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

// TestFlattenSessionOrder verifies rows follow the tree order and carry
// positional indices.
func TestFlattenSessionOrder(t *testing.T) {
	s := sampleSession()
	s.Modules[0].Exercises[0].SetGroups[0].Sets[1].Weight = models.FloatPtr(100)
	s.Modules[0].Exercises[0].SetGroups[0].Sets[1].Completed = true

	rows := flattenSession(s)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	want := []struct {
		name     string
		exercise int
		set      int
		side     string
	}{
		{"Bench Press", 0, 0, ""},
		{"Bench Press", 0, 1, ""},
		{"Split Squat", 1, 0, "left"},
		{"Split Squat", 1, 1, "right"},
	}
	for i, w := range want {
		r := rows[i]
		if r.ExerciseName != w.name || r.ExerciseIndex != w.exercise || r.SetIndex != w.set || r.Side != w.side {
			t.Errorf("row %d = %s/%d/%d/%q, want %s/%d/%d/%q", i,
				r.ExerciseName, r.ExerciseIndex, r.SetIndex, r.Side, w.name, w.exercise, w.set, w.side)
		}
		if r.SessionID != s.ID || !r.PerformedAt.Equal(s.StartedAt) {
			t.Errorf("row %d session = %s at %v, want %s at %v", i, r.SessionID, r.PerformedAt, s.ID, s.StartedAt)
		}
	}
	if !rows[1].Completed || rows[1].Weight == nil || *rows[1].Weight != 100 {
		t.Errorf("row 1 = %+v, want completed at 100", rows[1])
	}
}

// TestFindExercise verifies lookup is case-insensitive and skips
// occurrences without completed sets.
func TestFindExercise(t *testing.T) {
	s := sampleSession()
	if e := findExercise(s, "bench press"); e != nil {
		t.Errorf("findExercise with nothing completed = %q, want nil", e.Name)
	}
	s.Modules[0].Exercises[0].SetGroups[0].Sets[0].Completed = true
	e := findExercise(s, "  BENCH PRESS ")
	if e == nil || e.Name != "Bench Press" {
		t.Fatalf("findExercise = %v, want Bench Press", e)
	}
	if e := findExercise(s, "Deadlift"); e != nil {
		t.Errorf("findExercise(Deadlift) = %q, want nil", e.Name)
	}
}
