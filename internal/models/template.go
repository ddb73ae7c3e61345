package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkoutTemplate is the read-only plan a session is started from.
type WorkoutTemplate struct {
	ID      uuid.UUID        `json:"id"`
	Name    string           `json:"name"`
	Modules []ModuleTemplate `json:"modules"`
}

type ModuleTemplate struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Type      ModuleType         `json:"type"`
	Exercises []ExerciseTemplate `json:"exercises"`
}

type ExerciseTemplate struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	Type             ExerciseType       `json:"type"`
	SetGroups        []SetGroupTemplate `json:"set_groups"`
	SupersetID       string             `json:"superset_id,omitempty"`
	IsBodyweight     bool               `json:"is_bodyweight,omitempty"`
	IsBoxBased       bool               `json:"is_box_based,omitempty"`
	IsImplementBased bool               `json:"is_implement_based,omitempty"`
	CardioTracking   CardioTracking     `json:"cardio_tracking,omitempty"`
	DistanceUnit     DistanceUnit       `json:"distance_unit,omitempty"`
	MobilityTracking MobilityTracking   `json:"mobility_tracking,omitempty"`
	MuscleGroups     []string           `json:"muscle_groups,omitempty"`
	Notes            string             `json:"notes,omitempty"`
}

// SetGroupTemplate describes a scheme such as "3x8 at 135".
type SetGroupTemplate struct {
	Sets                 int                `json:"sets"`
	Target               SetTarget          `json:"target"`
	RestPeriod           *int               `json:"rest_period,omitempty"`
	IsInterval           bool               `json:"is_interval,omitempty"`
	IsAMRAP              bool               `json:"is_amrap,omitempty"`
	IsUnilateral         bool               `json:"is_unilateral,omitempty"`
	TrackRPE             bool               `json:"track_rpe,omitempty"`
	Rounds               int                `json:"rounds,omitempty"`
	WorkDuration         int                `json:"work_duration,omitempty"`
	IntervalRestDuration int                `json:"interval_rest_duration,omitempty"`
	AMRAPTimeLimit       *int               `json:"amrap_time_limit,omitempty"`
	Measurables          []MeasurableTarget `json:"measurables,omitempty"`
}

// LogicalSets returns the number of logical sets the scheme produces.
// Interval groups produce one set per round.
func (t SetGroupTemplate) LogicalSets() int {
	if t.IsInterval && t.Rounds > 0 {
		return t.Rounds
	}
	return t.Sets
}

// NewSession builds a fresh session from a template.
func NewSession(t WorkoutTemplate, now time.Time) *Session {
	s := &Session{
		ID:          uuid.New(),
		WorkoutID:   t.ID,
		WorkoutName: t.Name,
		StartedAt:   now,
	}
	for _, mt := range t.Modules {
		m := Module{
			ID:               uuid.New(),
			TemplateModuleID: mt.ID,
			Name:             mt.Name,
			Type:             mt.Type,
		}
		for _, et := range mt.Exercises {
			m.Exercises = append(m.Exercises, NewExercise(et))
		}
		s.Modules = append(s.Modules, m)
	}
	return s
}

// NewFreestyleSession starts a session with a single empty module that
// exercises are added to ad hoc.
func NewFreestyleSession(name string, now time.Time) *Session {
	if name == "" {
		name = "Freestyle"
	}
	return &Session{
		ID:          uuid.New(),
		WorkoutName: name,
		StartedAt:   now,
		IsFreestyle: true,
		Modules: []Module{{
			ID:   uuid.New(),
			Name: name,
			Type: ModuleStrength,
		}},
	}
}

// NewExercise instantiates an exercise from its template.
func NewExercise(t ExerciseTemplate) Exercise {
	e := Exercise{
		ID:                 uuid.New(),
		TemplateExerciseID: t.ID,
		Name:               t.Name,
		Type:               t.Type,
		SupersetID:         t.SupersetID,
		IsBodyweight:       t.IsBodyweight,
		IsBoxBased:         t.IsBoxBased,
		IsImplementBased:   t.IsImplementBased,
		CardioTracking:     t.CardioTracking,
		DistanceUnit:       t.DistanceUnit,
		MobilityTracking:   t.MobilityTracking,
		MuscleGroups:       append([]string(nil), t.MuscleGroups...),
		Notes:              t.Notes,
	}
	for _, gt := range t.SetGroups {
		e.SetGroups = append(e.SetGroups, NewSetGroup(gt))
	}
	return e
}

// NewSetGroup builds a set group with its incomplete sets pre-targeted.
func NewSetGroup(t SetGroupTemplate) SetGroup {
	g := SetGroup{
		ID:                   uuid.New(),
		RestPeriod:           t.RestPeriod,
		IsInterval:           t.IsInterval,
		IsAMRAP:              t.IsAMRAP,
		IsUnilateral:         t.IsUnilateral,
		TrackRPE:             t.TrackRPE,
		Rounds:               t.Rounds,
		WorkDuration:         t.WorkDuration,
		IntervalRestDuration: t.IntervalRestDuration,
		AMRAPTimeLimit:       t.AMRAPTimeLimit,
		Target:               t.Target,
		Measurables:          append([]MeasurableTarget(nil), t.Measurables...),
	}
	target := t.Target
	if t.IsInterval && target.Duration == nil && t.WorkDuration > 0 {
		target.Duration = IntPtr(t.WorkDuration)
	}
	for i := 0; i < t.LogicalSets(); i++ {
		if t.IsUnilateral {
			g.Sets = append(g.Sets,
				Set{ID: uuid.New(), Side: SideLeft, Target: target},
				Set{ID: uuid.New(), Side: SideRight, Target: target})
			continue
		}
		g.Sets = append(g.Sets, Set{ID: uuid.New(), Target: target})
	}
	g.Renumber()
	return g
}

// Template converts a set group back into the scheme it represents.
func (g *SetGroup) Template() SetGroupTemplate {
	rounds := g.Rounds
	if g.IsInterval {
		rounds = g.LogicalSetCount()
	}
	return SetGroupTemplate{
		Sets:                 g.LogicalSetCount(),
		Target:               g.Target,
		RestPeriod:           g.RestPeriod,
		IsInterval:           g.IsInterval,
		IsAMRAP:              g.IsAMRAP,
		IsUnilateral:         g.IsUnilateral,
		TrackRPE:             g.TrackRPE,
		Rounds:               rounds,
		WorkDuration:         g.WorkDuration,
		IntervalRestDuration: g.IntervalRestDuration,
		AMRAPTimeLimit:       g.AMRAPTimeLimit,
		Measurables:          append([]MeasurableTarget(nil), g.Measurables...),
	}
}

// Template converts a live exercise into a template entry, keeping the
// template id so commit-back can match it.
func (e *Exercise) Template() ExerciseTemplate {
	t := ExerciseTemplate{
		ID:               e.TemplateExerciseID,
		Name:             e.Name,
		Type:             e.Type,
		SupersetID:       e.SupersetID,
		IsBodyweight:     e.IsBodyweight,
		IsBoxBased:       e.IsBoxBased,
		IsImplementBased: e.IsImplementBased,
		CardioTracking:   e.CardioTracking,
		DistanceUnit:     e.DistanceUnit,
		MobilityTracking: e.MobilityTracking,
		MuscleGroups:     append([]string(nil), e.MuscleGroups...),
		Notes:            e.Notes,
	}
	if t.ID == uuid.Nil {
		t.ID = e.ID
	}
	for i := range e.SetGroups {
		t.SetGroups = append(t.SetGroups, e.SetGroups[i].Template())
	}
	return t
}

func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func StringPtr(v string) *string { return &v }
