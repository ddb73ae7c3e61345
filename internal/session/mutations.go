package session

import (
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// SetInput is the payload of a log. Nil fields were not supplied. RPE is
// the exception: it is always written, so nil clears it.
type SetInput struct {
	Weight      *float64          `json:"weight,omitempty"`
	Reps        *int              `json:"reps,omitempty"`
	Duration    *int              `json:"duration,omitempty"`
	HoldTime    *int              `json:"hold_time,omitempty"`
	Distance    *float64          `json:"distance,omitempty"`
	Height      *float64          `json:"height,omitempty"`
	Intensity   *int              `json:"intensity,omitempty"`
	Temperature *int              `json:"temperature,omitempty"`
	BandColor   *string           `json:"band_color,omitempty"`
	RPE         *int              `json:"rpe,omitempty"`
	Measurables map[string]string `json:"measurables,omitempty"`
}

// ParseSetInput builds a SetInput from raw form values. Malformed numbers
// are treated as not supplied. Unknown keys become measurables.
func ParseSetInput(raw map[string]string) SetInput {
	var in SetInput
	for k, v := range raw {
		v = strings.TrimSpace(v)
		switch models.Field(k) {
		case models.FieldWeight:
			in.Weight = parseFloat(v)
		case models.FieldReps:
			in.Reps = parseInt(v)
		case models.FieldDuration:
			in.Duration = parseInt(v)
		case models.FieldHoldTime:
			in.HoldTime = parseInt(v)
		case models.FieldDistance:
			in.Distance = parseFloat(v)
		case models.FieldHeight:
			in.Height = parseFloat(v)
		case models.FieldIntensity:
			in.Intensity = parseInt(v)
		case models.FieldTemperature:
			in.Temperature = parseInt(v)
		case models.FieldBandColor:
			if v != "" {
				in.BandColor = models.StringPtr(v)
			}
		default:
			if k == "rpe" {
				in.RPE = parseInt(v)
				continue
			}
			if in.Measurables == nil {
				in.Measurables = map[string]string{}
			}
			in.Measurables[k] = v
		}
	}
	return in
}

func parseFloat(s string) *float64 {
	x, ok := models.ParseDecimal(s)
	if !ok {
		return nil
	}
	return &x
}

func parseInt(s string) *int {
	x, err := strconv.Atoi(s)
	if err != nil {
		if f := parseFloat(s); f != nil && *f == float64(int(*f)) {
			return models.IntPtr(int(*f))
		}
		return nil
	}
	return &x
}

// LogSet writes the supplied fields that matter for the exercise type into
// the set and marks it completed. Fields not supplied keep their value.
func (n *Navigator) LogSet(ref SetRef, in SetInput) bool {
	e, _, s, ok := n.lookup(ref)
	if !ok {
		n.log.Debug("log set ignored", "ref", ref)
		return false
	}
	for _, f := range e.PrimaryFields() {
		switch f {
		case models.FieldWeight:
			mergeF(&s.Weight, in.Weight)
		case models.FieldReps:
			mergeI(&s.Reps, in.Reps)
		case models.FieldDuration:
			mergeI(&s.Duration, in.Duration)
		case models.FieldHoldTime:
			mergeI(&s.HoldTime, in.HoldTime)
		case models.FieldDistance:
			mergeF(&s.Distance, in.Distance)
		case models.FieldHeight:
			mergeF(&s.Height, in.Height)
		case models.FieldIntensity:
			mergeI(&s.Intensity, clampPtr(in.Intensity, 1, 10))
		case models.FieldTemperature:
			mergeI(&s.Temperature, in.Temperature)
		case models.FieldBandColor:
			if in.BandColor != nil && *in.BandColor != "" {
				s.BandColor = models.StringPtr(*in.BandColor)
			}
		}
	}
	s.RPE = clampPtr(in.RPE, 1, 10)
	for k, raw := range in.Measurables {
		mv, ok := models.ParseMeasurable(raw)
		if !ok {
			continue
		}
		if s.Measurables == nil {
			s.Measurables = map[string]models.MeasurableValue{}
		}
		s.Measurables[k] = mv
	}
	s.Completed = true
	delete(n.drafts, s.ID)
	return true
}

func mergeF(dst **float64, v *float64) {
	if v != nil {
		*dst = models.FloatPtr(*v)
	}
}

func mergeI(dst **int, v *int) {
	if v != nil {
		*dst = models.IntPtr(*v)
	}
}

func clampPtr(v *int, lo, hi int) *int {
	if v == nil {
		return nil
	}
	return models.IntPtr(min(max(*v, lo), hi))
}

// UncheckSet marks a set incomplete and keeps its values for editing.
func (n *Navigator) UncheckSet(ref SetRef) bool {
	_, _, s, ok := n.lookup(ref)
	if !ok {
		n.log.Debug("uncheck set ignored", "ref", ref)
		return false
	}
	s.Completed = false
	return true
}

// AddSet appends a set to the exercise's last group. The new set's targets
// come from the last set of the group, per side for unilateral groups. An
// exercise without groups gets a default one-set group.
func (n *Navigator) AddSet(module, exercise int) bool {
	e := n.exercise(module, exercise)
	if e == nil {
		n.log.Debug("add set ignored", "module", module, "exercise", exercise)
		return false
	}
	if len(e.SetGroups) == 0 {
		e.SetGroups = append(e.SetGroups, models.NewSetGroup(models.SetGroupTemplate{Sets: 1}))
		n.Refresh()
		return true
	}
	g := &e.SetGroups[len(e.SetGroups)-1]
	if g.IsUnilateral {
		g.Sets = append(g.Sets,
			models.Set{ID: uuid.New(), Side: models.SideLeft, Target: nextTarget(g, models.SideLeft)},
			models.Set{ID: uuid.New(), Side: models.SideRight, Target: nextTarget(g, models.SideRight)})
	} else {
		g.Sets = append(g.Sets, models.Set{ID: uuid.New(), Target: nextTarget(g, models.SideNone)})
	}
	g.Renumber()
	n.Refresh()
	return true
}

// nextTarget copies the last set of the given side: its logged values where
// present, its targets otherwise. An empty group falls back to the group
// target.
func nextTarget(g *models.SetGroup, side models.Side) models.SetTarget {
	for i := len(g.Sets) - 1; i >= 0; i-- {
		s := &g.Sets[i]
		if s.Side != side {
			continue
		}
		t := s.Target
		if s.Weight != nil {
			t.Weight = models.FloatPtr(*s.Weight)
		}
		if s.Reps != nil {
			t.Reps = models.IntPtr(*s.Reps)
		}
		if s.Duration != nil {
			t.Duration = models.IntPtr(*s.Duration)
		}
		if s.HoldTime != nil {
			t.HoldTime = models.IntPtr(*s.HoldTime)
		}
		if s.Distance != nil {
			t.Distance = models.FloatPtr(*s.Distance)
		}
		return t
	}
	return g.Target
}

// DeleteSet removes a set, or the whole left/right pair in a unilateral
// group. An emptied group is dropped. Deleting the last logical set of an
// exercise is refused.
func (n *Navigator) DeleteSet(ref SetRef) bool {
	e, g, s, ok := n.lookup(ref)
	if !ok {
		n.log.Debug("delete set ignored", "ref", ref)
		return false
	}
	if e.LogicalSetCount() <= 1 {
		n.log.Debug("refusing to delete last set", "exercise", e.Name)
		return false
	}
	var removed []uuid.UUID
	if g.IsUnilateral {
		number := s.SetNumber
		kept := g.Sets[:0]
		for _, x := range g.Sets {
			if x.SetNumber == number {
				removed = append(removed, x.ID)
				continue
			}
			kept = append(kept, x)
		}
		g.Sets = kept
	} else {
		removed = append(removed, s.ID)
		g.Sets = append(g.Sets[:ref.Set], g.Sets[ref.Set+1:]...)
	}
	if len(g.Sets) == 0 {
		e.SetGroups = append(e.SetGroups[:ref.SetGroup], e.SetGroups[ref.SetGroup+1:]...)
	} else {
		g.Renumber()
	}
	n.forget(removed)
	n.Refresh()
	return true
}

// forget drops drafts for removed sets and stops a timer bound to one.
func (n *Navigator) forget(ids []uuid.UUID) {
	bound := n.exTimer.BoundTo()
	for _, id := range ids {
		delete(n.drafts, id)
		if id == bound {
			n.exTimer.Stop()
		}
	}
}

// AdHocExercise describes an exercise added during the session.
type AdHocExercise struct {
	Name           string                `json:"name"`
	Type           models.ExerciseType   `json:"type"`
	CardioTracking models.CardioTracking `json:"cardio_tracking,omitempty"`
	DistanceUnit   models.DistanceUnit   `json:"distance_unit,omitempty"`
}

// AddExercise appends an ad-hoc exercise with one incomplete set.
func (n *Navigator) AddExercise(module int, x AdHocExercise) bool {
	if module < 0 || module >= len(n.session.Modules) || strings.TrimSpace(x.Name) == "" {
		n.log.Debug("add exercise ignored", "module", module, "name", x.Name)
		return false
	}
	if x.Type == "" {
		x.Type = models.ExerciseStrength
	}
	if _, err := models.ParseExerciseType(string(x.Type)); err != nil {
		n.log.Debug("add exercise ignored", "module", module, "error", err)
		return false
	}
	e := models.Exercise{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(x.Name),
		Type:           x.Type,
		CardioTracking: x.CardioTracking,
		DistanceUnit:   x.DistanceUnit,
		IsAdHoc:        true,
		SetGroups:      []models.SetGroup{models.NewSetGroup(models.SetGroupTemplate{Sets: 1})},
	}
	if e.Type == models.ExerciseCardio && e.CardioTracking == "" {
		e.CardioTracking = models.CardioTime
	}
	m := &n.session.Modules[module]
	m.Exercises = append(m.Exercises, e)
	n.Refresh()
	return true
}

// ReorderExercise moves an exercise within its module. The cursor keeps
// pointing at the same exercise.
func (n *Navigator) ReorderExercise(module, from, to int) bool {
	if module < 0 || module >= len(n.session.Modules) {
		return false
	}
	list := n.session.Modules[module].Exercises
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		n.log.Debug("reorder ignored", "module", module, "from", from, "to", to)
		return false
	}
	if from == to {
		return true
	}
	moved := list[from]
	if from < to {
		copy(list[from:to], list[from+1:to+1])
	} else {
		copy(list[to+1:from+1], list[to:from])
	}
	list[to] = moved

	if n.cursor.Module == module {
		switch cur := n.cursor.Exercise; {
		case cur == from:
			n.cursor.Exercise = to
		case from < cur && to >= cur:
			n.cursor.Exercise--
		case from > cur && to <= cur:
			n.cursor.Exercise++
		}
	}
	n.Refresh()
	return true
}

// SchemeEdit is a full edit of an exercise. Empty type and tracking fields
// keep the current value. Scheme.Sets is the total number of logical sets
// wanted, completed ones included.
type SchemeEdit struct {
	Name             string                  `json:"name,omitempty"`
	Type             models.ExerciseType     `json:"type,omitempty"`
	CardioTracking   models.CardioTracking   `json:"cardio_tracking,omitempty"`
	MobilityTracking models.MobilityTracking `json:"mobility_tracking,omitempty"`
	DistanceUnit     models.DistanceUnit     `json:"distance_unit,omitempty"`
	Scheme           models.SetGroupTemplate `json:"scheme"`
}

// UpdateExerciseScheme rebuilds an exercise's groups. Completed sets are
// kept verbatim in preserved groups carrying the new scheme, and only the
// remaining incomplete sets are regenerated from the new targets.
func (n *Navigator) UpdateExerciseScheme(module, exercise int, edit SchemeEdit) bool {
	e := n.exercise(module, exercise)
	if e == nil {
		n.log.Debug("scheme edit ignored", "module", module, "exercise", exercise)
		return false
	}
	if edit.Name != "" {
		e.Name = edit.Name
	}
	if edit.Type != "" {
		e.Type = edit.Type
	}
	if edit.CardioTracking != "" {
		e.CardioTracking = edit.CardioTracking
	}
	if edit.MobilityTracking != "" {
		e.MobilityTracking = edit.MobilityTracking
	}
	if edit.DistanceUnit != "" {
		e.DistanceUnit = edit.DistanceUnit
	}

	var bilateral, unilateral []models.Set
	var removed []uuid.UUID
	for _, g := range e.SetGroups {
		if g.IsUnilateral {
			done := map[int]bool{}
			for _, s := range g.Sets {
				if s.Completed {
					done[s.SetNumber] = true
				}
			}
			for _, s := range g.Sets {
				if done[s.SetNumber] {
					unilateral = append(unilateral, s)
				} else {
					removed = append(removed, s.ID)
				}
			}
			continue
		}
		for _, s := range g.Sets {
			if s.Completed {
				bilateral = append(bilateral, s)
			} else {
				removed = append(removed, s.ID)
			}
		}
	}

	var groups []models.SetGroup
	kept := 0
	for _, p := range []struct {
		sets       []models.Set
		unilateral bool
	}{{bilateral, false}, {unilateral, true}} {
		if len(p.sets) == 0 {
			continue
		}
		pg := models.NewSetGroup(withSets(edit.Scheme, 0))
		pg.IsUnilateral = p.unilateral
		pg.Sets = p.sets
		pg.Renumber()
		kept += pg.LogicalSetCount()
		groups = append(groups, pg)
	}
	want := edit.Scheme.LogicalSets()
	if want < 1 {
		want = 1
	}
	if remaining := want - kept; remaining > 0 {
		groups = append(groups, models.NewSetGroup(withSets(edit.Scheme, remaining)))
	}
	e.SetGroups = groups

	n.forget(removed)
	if n.cursor.Module == module && n.cursor.Exercise == exercise {
		n.JumpToFirstIncompleteSet()
	}
	n.Refresh()
	return true
}

func withSets(t models.SetGroupTemplate, sets int) models.SetGroupTemplate {
	t.Sets = sets
	if t.IsInterval {
		t.Rounds = sets
	}
	return t
}

// DeleteExercise removes an exercise from its module.
func (n *Navigator) DeleteExercise(module, exercise int) bool {
	e := n.exercise(module, exercise)
	if e == nil {
		n.log.Debug("delete exercise ignored", "module", module, "exercise", exercise)
		return false
	}
	var ids []uuid.UUID
	for _, g := range e.SetGroups {
		for _, s := range g.Sets {
			ids = append(ids, s.ID)
		}
	}
	n.forget(ids)
	m := &n.session.Modules[module]
	m.Exercises = append(m.Exercises[:exercise], m.Exercises[exercise+1:]...)

	if n.cursor.Module == module {
		switch {
		case n.cursor.Exercise > exercise:
			n.cursor.Exercise--
		case n.cursor.Exercise == exercise:
			n.cursor.SetGroup, n.cursor.Set = 0, 0
		}
	}
	n.Refresh()
	return true
}

// SubstituteExercise swaps the exercise for another movement, keeping its
// sets. Substituting back to the original name clears the substitution.
func (n *Navigator) SubstituteExercise(module, exercise int, name string) bool {
	e := n.exercise(module, exercise)
	name = strings.TrimSpace(name)
	if e == nil || name == "" {
		n.log.Debug("substitute ignored", "module", module, "exercise", exercise)
		return false
	}
	if name == e.Name {
		return true
	}
	switch {
	case e.IsSubstitution && strings.EqualFold(name, e.OriginalName):
		e.Name = e.OriginalName
		e.IsSubstitution = false
		e.OriginalName = ""
	case e.IsSubstitution:
		e.Name = name
	default:
		e.OriginalName = e.Name
		e.Name = name
		e.IsSubstitution = true
	}
	e.Suggestion = nil
	e.Recommendation = models.RecommendNone
	for _, g := range e.SetGroups {
		for _, s := range g.Sets {
			delete(n.drafts, s.ID)
		}
	}
	n.Refresh()
	return true
}

// SetRecommendation records the user's choice for the exercise's
// progression suggestion.
func (n *Navigator) SetRecommendation(module, exercise int, rec models.Recommendation) bool {
	e := n.exercise(module, exercise)
	if e == nil {
		return false
	}
	e.Recommendation = rec
	return true
}
