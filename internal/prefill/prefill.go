// Package prefill computes the default values shown for a set before the
// user logs it.
package prefill

import (
	"math"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// Source records where a pre-filled value came from.
type Source string

const (
	SourceStored      Source = "stored"
	SourceSuggestion  Source = "suggestion"
	SourceLastSession Source = "last_session"
	SourceTarget      Source = "target"
	SourceManual      Source = "manual"
)

// Values are the resolved defaults for one set.
type Values struct {
	Weight      *float64                          `json:"weight,omitempty"`
	Reps        *int                              `json:"reps,omitempty"`
	Duration    *int                              `json:"duration,omitempty"`
	HoldTime    *int                              `json:"hold_time,omitempty"`
	Distance    *float64                          `json:"distance,omitempty"`
	Height      *float64                          `json:"height,omitempty"`
	Intensity   *int                              `json:"intensity,omitempty"`
	Temperature *int                              `json:"temperature,omitempty"`
	BandColor   *string                           `json:"band_color,omitempty"`
	RPE         *int                              `json:"rpe,omitempty"`
	Measurables map[string]models.MeasurableValue `json:"measurables,omitempty"`
	Sources     map[models.Field]Source           `json:"sources,omitempty"`
}

// Input is everything the resolver looks at. LastSession is the same
// exercise from the previous time it was performed, if any.
type Input struct {
	Exercise    *models.Exercise
	Group       *models.SetGroup
	Set         *models.Set
	LastSession *models.Exercise
}

// Resolve computes pre-fill values. Per field the priority is: the value
// stored on the set, the progression suggestion, the matching completed set
// from last session, the set and group targets.
func Resolve(in Input) Values {
	v := Values{Sources: map[models.Field]Source{}}
	if in.Exercise == nil || in.Set == nil {
		return v
	}
	last := matchLastSession(in)

	for _, f := range in.Exercise.PrimaryFields() {
		if val, ok := storedField(in.Set, f); ok {
			v.set(f, val, SourceStored)
			continue
		}
		if val, ok := suggestionField(in.Exercise, f); ok {
			v.set(f, val, SourceSuggestion)
			continue
		}
		if last != nil {
			if val, ok := storedField(last, f); ok {
				v.set(f, val, SourceLastSession)
				continue
			}
		}
		if val, ok := targetField(in.Set.Target, f); ok {
			v.set(f, val, SourceTarget)
			continue
		}
		if in.Group != nil {
			if val, ok := targetField(in.Group.Target, f); ok {
				v.set(f, val, SourceTarget)
			}
		}
	}
	if in.Set.RPE != nil {
		v.RPE = models.IntPtr(*in.Set.RPE)
	}
	v.Measurables = resolveMeasurables(in, last)
	return v
}

func resolveMeasurables(in Input, last *models.Set) map[string]models.MeasurableValue {
	out := map[string]models.MeasurableValue{}
	for k, mv := range in.Set.Measurables {
		out[k] = mv
	}
	if last != nil {
		for k, mv := range last.Measurables {
			if _, ok := out[k]; !ok {
				out[k] = mv
			}
		}
	}
	if in.Group != nil {
		for _, mt := range in.Group.Measurables {
			if _, ok := out[mt.Name]; !ok {
				out[mt.Name] = mt.Value
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ApplySuggestion derives the value for a recommendation choice.
func ApplySuggestion(s models.ProgressionSuggestion, rec models.Recommendation) float64 {
	base, suggested := s.BaseValue, s.SuggestedValue
	delta := suggested - base
	switch s.Metric {
	case models.MetricWeight:
		delta = math.Max(delta, 2.5)
		return pick(rec, base, suggested, math.Max(base-delta, 0))
	case models.MetricReps:
		base, suggested = math.Round(base), math.Round(suggested)
		delta = suggested - base
		if delta <= 0 {
			delta = 1
		}
		return pick(rec, base, suggested, math.Max(base-delta, 1))
	case models.MetricDuration:
		base, suggested = math.Round(base), math.Round(suggested)
		delta = suggested - base
		if delta <= 0 {
			delta = 5
		}
		return pick(rec, base, suggested, math.Max(base-delta, 1))
	case models.MetricDistance:
		if delta <= 0 {
			delta = base * 0.1
		}
		return pick(rec, base, suggested, math.Max(base-delta, 0))
	}
	return base
}

func pick(rec models.Recommendation, base, progress, regress float64) float64 {
	switch rec {
	case models.RecommendProgress:
		return progress
	case models.RecommendRegress:
		return regress
	default:
		return base
	}
}

func metricField(m models.SuggestionMetric) models.Field {
	switch m {
	case models.MetricWeight:
		return models.FieldWeight
	case models.MetricReps:
		return models.FieldReps
	case models.MetricDuration:
		return models.FieldDuration
	case models.MetricDistance:
		return models.FieldDistance
	}
	return ""
}

func suggestionField(e *models.Exercise, f models.Field) (any, bool) {
	if e.Suggestion == nil || metricField(e.Suggestion.Metric) != f {
		return nil, false
	}
	val := ApplySuggestion(*e.Suggestion, e.Recommendation)
	switch f {
	case models.FieldReps, models.FieldDuration:
		return int(math.Round(val)), true
	default:
		return val, true
	}
}

// matchLastSession finds the completed set from last session with the same
// logical position and side.
func matchLastSession(in Input) *models.Set {
	if in.LastSession == nil {
		return nil
	}
	ordinal, side, ok := logicalOrdinal(in.Exercise, in.Set.ID)
	if !ok {
		return nil
	}
	n := 0
	for gi := range in.LastSession.SetGroups {
		g := &in.LastSession.SetGroups[gi]
		for si := range g.Sets {
			s := &g.Sets[si]
			if !g.IsUnilateral || s.Side != models.SideRight {
				n++
			}
			if n == ordinal && s.Side == side && s.Completed {
				return s
			}
		}
	}
	return nil
}

// logicalOrdinal returns the 1-based logical position of a set across all
// groups of the exercise. A unilateral pair shares one position.
func logicalOrdinal(e *models.Exercise, id uuid.UUID) (int, models.Side, bool) {
	n := 0
	for gi := range e.SetGroups {
		g := &e.SetGroups[gi]
		for si := range g.Sets {
			s := &g.Sets[si]
			if !g.IsUnilateral || s.Side != models.SideRight {
				n++
			}
			if s.ID == id {
				return n, s.Side, true
			}
		}
	}
	return 0, models.SideNone, false
}

func storedField(s *models.Set, f models.Field) (any, bool) {
	switch f {
	case models.FieldWeight:
		return derefF(s.Weight)
	case models.FieldReps:
		return derefI(s.Reps)
	case models.FieldDuration:
		return derefI(s.Duration)
	case models.FieldHoldTime:
		return derefI(s.HoldTime)
	case models.FieldDistance:
		return derefF(s.Distance)
	case models.FieldHeight:
		return derefF(s.Height)
	case models.FieldIntensity:
		return derefI(s.Intensity)
	case models.FieldTemperature:
		return derefI(s.Temperature)
	case models.FieldBandColor:
		if s.BandColor == nil {
			return nil, false
		}
		return *s.BandColor, true
	}
	return nil, false
}

func targetField(t models.SetTarget, f models.Field) (any, bool) {
	switch f {
	case models.FieldWeight:
		return derefF(t.Weight)
	case models.FieldReps:
		return derefI(t.Reps)
	case models.FieldDuration:
		return derefI(t.Duration)
	case models.FieldHoldTime:
		return derefI(t.HoldTime)
	case models.FieldDistance:
		return derefF(t.Distance)
	}
	return nil, false
}

func (v *Values) set(f models.Field, val any, src Source) {
	switch x := val.(type) {
	case float64:
		switch f {
		case models.FieldWeight:
			v.Weight = models.FloatPtr(x)
		case models.FieldDistance:
			v.Distance = models.FloatPtr(x)
		case models.FieldHeight:
			v.Height = models.FloatPtr(x)
		default:
			return
		}
	case int:
		switch f {
		case models.FieldReps:
			v.Reps = models.IntPtr(x)
		case models.FieldDuration:
			v.Duration = models.IntPtr(x)
		case models.FieldHoldTime:
			v.HoldTime = models.IntPtr(x)
		case models.FieldIntensity:
			v.Intensity = models.IntPtr(x)
		case models.FieldTemperature:
			v.Temperature = models.IntPtr(x)
		default:
			return
		}
	case string:
		if f != models.FieldBandColor {
			return
		}
		v.BandColor = models.StringPtr(x)
	default:
		return
	}
	v.Sources[f] = src
}

func (v *Values) clear(f models.Field) {
	switch f {
	case models.FieldWeight:
		v.Weight = nil
	case models.FieldReps:
		v.Reps = nil
	case models.FieldDuration:
		v.Duration = nil
	case models.FieldHoldTime:
		v.HoldTime = nil
	case models.FieldDistance:
		v.Distance = nil
	case models.FieldHeight:
		v.Height = nil
	case models.FieldIntensity:
		v.Intensity = nil
	case models.FieldTemperature:
		v.Temperature = nil
	case models.FieldBandColor:
		v.BandColor = nil
	}
	delete(v.Sources, f)
}

func (v *Values) get(f models.Field) (any, bool) {
	switch f {
	case models.FieldWeight:
		return derefF(v.Weight)
	case models.FieldReps:
		return derefI(v.Reps)
	case models.FieldDuration:
		return derefI(v.Duration)
	case models.FieldHoldTime:
		return derefI(v.HoldTime)
	case models.FieldDistance:
		return derefF(v.Distance)
	case models.FieldHeight:
		return derefF(v.Height)
	case models.FieldIntensity:
		return derefI(v.Intensity)
	case models.FieldTemperature:
		return derefI(v.Temperature)
	case models.FieldBandColor:
		if v.BandColor == nil {
			return nil, false
		}
		return *v.BandColor, true
	}
	return nil, false
}

func derefF(p *float64) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func derefI(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}
