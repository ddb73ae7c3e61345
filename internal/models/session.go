package models

import (
	"time"

	"github.com/google/uuid"
)

// Side marks which limb a unilateral set was performed with.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// SetTarget holds the planned values for a set or set group.
type SetTarget struct {
	Weight   *float64 `json:"weight,omitempty"`
	Reps     *int     `json:"reps,omitempty"`
	Duration *int     `json:"duration,omitempty"`
	HoldTime *int     `json:"hold_time,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
}

// IsZero reports whether no target value is set.
func (t SetTarget) IsZero() bool {
	return t.Weight == nil && t.Reps == nil && t.Duration == nil && t.HoldTime == nil && t.Distance == nil
}

// Set is one performed or planned unit of work.
type Set struct {
	ID        uuid.UUID `json:"id"`
	SetNumber int       `json:"set_number"`
	Side      Side      `json:"side,omitempty"`
	Completed bool      `json:"completed"`
	Target    SetTarget `json:"target"`

	Weight      *float64                   `json:"weight,omitempty"`
	Reps        *int                       `json:"reps,omitempty"`
	Duration    *int                       `json:"duration,omitempty"`
	HoldTime    *int                       `json:"hold_time,omitempty"`
	Distance    *float64                   `json:"distance,omitempty"`
	Height      *float64                   `json:"height,omitempty"`
	Intensity   *int                       `json:"intensity,omitempty"`
	Temperature *int                       `json:"temperature,omitempty"`
	RPE         *int                       `json:"rpe,omitempty"`
	BandColor   *string                    `json:"band_color,omitempty"`
	Measurables map[string]MeasurableValue `json:"measurables,omitempty"`
}

// HasLoggedValues reports whether any measured field carries a value.
func (s *Set) HasLoggedValues() bool {
	return s.Weight != nil || s.Reps != nil || s.Duration != nil || s.HoldTime != nil ||
		s.Distance != nil || s.Height != nil || s.Intensity != nil || s.Temperature != nil ||
		s.RPE != nil || s.BandColor != nil || len(s.Measurables) > 0
}

// SetGroup is a scheme-homogeneous run of sets.
type SetGroup struct {
	ID                   uuid.UUID          `json:"id"`
	Sets                 []Set              `json:"sets"`
	RestPeriod           *int               `json:"rest_period,omitempty"`
	IsInterval           bool               `json:"is_interval,omitempty"`
	IsAMRAP              bool               `json:"is_amrap,omitempty"`
	IsUnilateral         bool               `json:"is_unilateral,omitempty"`
	TrackRPE             bool               `json:"track_rpe,omitempty"`
	Rounds               int                `json:"rounds,omitempty"`
	WorkDuration         int                `json:"work_duration,omitempty"`
	IntervalRestDuration int                `json:"interval_rest_duration,omitempty"`
	AMRAPTimeLimit       *int               `json:"amrap_time_limit,omitempty"`
	Target               SetTarget          `json:"target"`
	Measurables          []MeasurableTarget `json:"measurables,omitempty"`
}

// LogicalSetCount returns the number of logical sets. A unilateral
// left/right pair counts once.
func (g *SetGroup) LogicalSetCount() int {
	if g.IsUnilateral {
		return (len(g.Sets) + 1) / 2
	}
	return len(g.Sets)
}

// Renumber assigns contiguous set numbers starting at 1, pairwise for
// unilateral groups. Interval groups keep one round per logical set.
func (g *SetGroup) Renumber() {
	for i := range g.Sets {
		if g.IsUnilateral {
			g.Sets[i].SetNumber = i/2 + 1
		} else {
			g.Sets[i].SetNumber = i + 1
		}
	}
	if g.IsInterval {
		g.Rounds = g.LogicalSetCount()
	}
}

// Exercise is one trainable movement within a module.
type Exercise struct {
	ID                 uuid.UUID              `json:"id"`
	TemplateExerciseID uuid.UUID              `json:"template_exercise_id"`
	Name               string                 `json:"name"`
	Type               ExerciseType           `json:"type"`
	SetGroups          []SetGroup             `json:"set_groups"`
	SupersetID         string                 `json:"superset_id,omitempty"`
	IsBodyweight       bool                   `json:"is_bodyweight,omitempty"`
	IsBoxBased         bool                   `json:"is_box_based,omitempty"`
	IsImplementBased   bool                   `json:"is_implement_based,omitempty"`
	CardioTracking     CardioTracking         `json:"cardio_tracking,omitempty"`
	DistanceUnit       DistanceUnit           `json:"distance_unit,omitempty"`
	MobilityTracking   MobilityTracking       `json:"mobility_tracking,omitempty"`
	Recommendation     Recommendation         `json:"recommendation,omitempty"`
	Suggestion         *ProgressionSuggestion `json:"suggestion,omitempty"`
	MuscleGroups       []string               `json:"muscle_groups,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	IsAdHoc            bool                   `json:"is_ad_hoc,omitempty"`
	IsSubstitution     bool                   `json:"is_substitution,omitempty"`
	OriginalName       string                 `json:"original_name,omitempty"`
}

// LogicalSetCount sums logical sets over all groups.
func (e *Exercise) LogicalSetCount() int {
	n := 0
	for i := range e.SetGroups {
		n += e.SetGroups[i].LogicalSetCount()
	}
	return n
}

// IsCompleted reports whether the exercise has at least one set and every
// set is completed.
func (e *Exercise) IsCompleted() bool {
	total := 0
	for _, g := range e.SetGroups {
		for _, s := range g.Sets {
			if !s.Completed {
				return false
			}
			total++
		}
	}
	return total > 0
}

// HasIncompleteSets reports whether any set remains to be logged.
func (e *Exercise) HasIncompleteSets() bool {
	for _, g := range e.SetGroups {
		for _, s := range g.Sets {
			if !s.Completed {
				return true
			}
		}
	}
	return false
}

// Module is one phase of a workout.
type Module struct {
	ID               uuid.UUID  `json:"id"`
	TemplateModuleID uuid.UUID  `json:"template_module_id"`
	Name             string     `json:"name"`
	Type             ModuleType `json:"type"`
	Exercises        []Exercise `json:"exercises"`
}

// Session is the root aggregate for one workout.
type Session struct {
	ID          uuid.UUID  `json:"id"`
	WorkoutID   uuid.UUID  `json:"workout_id"`
	WorkoutName string     `json:"workout_name"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	DurationSec int        `json:"duration_sec"`
	Modules     []Module   `json:"modules"`
	IsFreestyle bool       `json:"is_freestyle"`
	Feeling     *int       `json:"feeling,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// CompletedSetCount returns the number of completed sets across the session.
func (s *Session) CompletedSetCount() int {
	n := 0
	for _, m := range s.Modules {
		for _, e := range m.Exercises {
			for _, g := range e.SetGroups {
				for _, set := range g.Sets {
					if set.Completed {
						n++
					}
				}
			}
		}
	}
	return n
}

// ProgressionSuggestion is the payload produced by the external progression
// engine for one exercise.
type ProgressionSuggestion struct {
	Metric         SuggestionMetric `json:"metric"`
	BaseValue      float64          `json:"base_value"`
	SuggestedValue float64          `json:"suggested_value"`
	Confidence     string           `json:"confidence,omitempty"`
	Rationale      string           `json:"rationale,omitempty"`
}
