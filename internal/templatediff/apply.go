package templatediff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// Apply returns a copy of the template with the given changes applied. The
// input template is not modified. Changes are applied in a fixed phase
// order, so the result does not depend on the order of the slice.
func Apply(t models.WorkoutTemplate, changes []Change) (models.WorkoutTemplate, error) {
	out, err := clone(t)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	ordered := append([]Change(nil), changes...)
	sortCanonical(ordered)

	for _, c := range ordered {
		mi := moduleIndex(out, c.ModuleID)
		if mi < 0 {
			continue
		}
		m := &out.Modules[mi]
		switch c.Kind {
		case KindExerciseSubstituted:
			if e := findExercise(m, c.ExerciseID); e != nil {
				e.Name = c.To
			}
		case KindSchemeChanged:
			if e := findExercise(m, c.ExerciseID); e != nil {
				applyScheme(e, c)
			}
		case KindSetCountChanged:
			e := findExercise(m, c.ExerciseID)
			if e == nil || c.SetGroupIndex >= len(e.SetGroups) {
				continue
			}
			n, err := strconv.Atoi(c.To)
			if err != nil {
				return models.WorkoutTemplate{}, fmt.Errorf("change %s: bad set count %q: %w", c.ID, c.To, err)
			}
			g := &e.SetGroups[c.SetGroupIndex]
			g.Sets = n
			if g.IsInterval {
				g.Rounds = n
			}
		case KindExerciseRemoved:
			m.Exercises = removeExercise(m.Exercises, c.ExerciseID)
		case KindExerciseReordered:
			m.Exercises = reorder(m.Exercises, c.Order)
		case KindExerciseAdded:
			if c.Exercise == nil || findExercise(m, c.Exercise.ID) != nil {
				continue
			}
			pos := min(max(c.Position, 0), len(m.Exercises))
			m.Exercises = append(m.Exercises, models.ExerciseTemplate{})
			copy(m.Exercises[pos+1:], m.Exercises[pos:])
			m.Exercises[pos] = *c.Exercise
		}
	}
	return out, nil
}

func applyScheme(e *models.ExerciseTemplate, c Change) {
	switch c.Field {
	case FieldType:
		e.Type = models.ExerciseType(c.To)
		return
	case FieldSetGroups:
		e.SetGroups = append([]models.SetGroupTemplate(nil), c.Groups...)
		return
	}
	if c.Group == nil || c.SetGroupIndex >= len(e.SetGroups) {
		return
	}
	for _, fd := range schemeFields {
		if fd.name == c.Field {
			fd.set(&e.SetGroups[c.SetGroupIndex], *c.Group)
			return
		}
	}
}

func clone(t models.WorkoutTemplate) (models.WorkoutTemplate, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return models.WorkoutTemplate{}, fmt.Errorf("copying template: %w", err)
	}
	var out models.WorkoutTemplate
	if err := json.Unmarshal(b, &out); err != nil {
		return models.WorkoutTemplate{}, fmt.Errorf("copying template: %w", err)
	}
	return out, nil
}

func moduleIndex(t models.WorkoutTemplate, id uuid.UUID) int {
	for i := range t.Modules {
		if t.Modules[i].ID == id {
			return i
		}
	}
	return -1
}

func findExercise(m *models.ModuleTemplate, id uuid.UUID) *models.ExerciseTemplate {
	for i := range m.Exercises {
		if m.Exercises[i].ID == id {
			return &m.Exercises[i]
		}
	}
	return nil
}

func removeExercise(list []models.ExerciseTemplate, id uuid.UUID) []models.ExerciseTemplate {
	out := list[:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// reorder moves the listed exercises into the given relative order while
// exercises not in the list keep their slots.
func reorder(list []models.ExerciseTemplate, order []uuid.UUID) []models.ExerciseTemplate {
	rank := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	var slots []int
	var picked []models.ExerciseTemplate
	for i, e := range list {
		if _, ok := rank[e.ID]; ok {
			slots = append(slots, i)
			picked = append(picked, e)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool { return rank[picked[i].ID] < rank[picked[j].ID] })
	out := append([]models.ExerciseTemplate(nil), list...)
	for i, slot := range slots {
		out[slot] = picked[i]
	}
	return out
}
