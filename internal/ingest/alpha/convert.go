package alpha

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// namespace seeds the deterministic IDs of imported sessions so that
// importing the same export twice yields the same rows.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("liftlog/alpha-progression"))

// ToSession converts an export session into a finished freestyle session.
// Warm-ups are dropped so set ordinals line up with working sets for
// "same as last" pre-fill. RIR is stored as RPE = 10 - RIR.
func ToSession(e Export) *models.Session {
	sid := uuid.NewSHA1(namespace, []byte(e.Name+"|"+e.Date.Format(time.RFC3339)))
	s := &models.Session{
		ID:          sid,
		WorkoutName: e.Name,
		StartedAt:   e.Date,
		DurationSec: parseDuration(e.Duration),
		IsFreestyle: true,
	}
	if s.DurationSec > 0 {
		end := s.StartedAt.Add(time.Duration(s.DurationSec) * time.Second)
		s.EndedAt = &end
	}

	mod := models.Module{
		ID:   childID(sid, "module"),
		Name: "Main",
		Type: models.ModuleStrength,
	}
	for _, ex := range e.Exercises {
		if conv, ok := toExercise(sid, ex); ok {
			mod.Exercises = append(mod.Exercises, conv)
		}
	}
	if len(mod.Exercises) > 0 {
		s.Modules = []models.Module{mod}
	}
	return s
}

func toExercise(sid uuid.UUID, ex ExportExercise) (models.Exercise, bool) {
	key := fmt.Sprintf("exercise/%d", ex.Number)
	g := models.SetGroup{
		ID:       childID(sid, key+"/group"),
		TrackRPE: true,
	}
	if ex.TargetReps > 0 {
		g.Target.Reps = models.IntPtr(ex.TargetReps)
	}
	bodyweight := false
	for _, set := range ex.Sets {
		if set.IsWarmup {
			continue
		}
		bodyweight = bodyweight || set.IsBodyweightPlus
		g.Sets = append(g.Sets, models.Set{
			ID:        childID(sid, fmt.Sprintf("%s/set/%d", key, set.Number)),
			Completed: true,
			Target:    g.Target,
			Weight:    models.FloatPtr(set.WeightKg),
			Reps:      models.IntPtr(set.Reps),
			RPE:       models.IntPtr(rpeFromRIR(set.RIR)),
		})
	}
	if len(g.Sets) == 0 {
		return models.Exercise{}, false
	}
	g.Renumber()

	e := models.Exercise{
		ID:           childID(sid, key),
		Name:         ex.Name,
		Type:         models.ExerciseStrength,
		SetGroups:    []models.SetGroup{g},
		IsBodyweight: bodyweight,
	}
	if ex.Equipment != "" {
		e.Notes = "Equipment: " + ex.Equipment
	}
	return e, true
}

func childID(parent uuid.UUID, path string) uuid.UUID {
	return uuid.NewSHA1(parent, []byte(path))
}

// rpeFromRIR maps reps in reserve onto the 1-10 RPE scale.
func rpeFromRIR(rir float64) int {
	rpe := int(math.Round(10 - rir))
	return min(max(rpe, 1), 10)
}
