package models

import "fmt"

// ExerciseType is the closed set of exercise kinds. It decides which
// measured fields are primary for display and pre-fill.
type ExerciseType string

const (
	ExerciseStrength  ExerciseType = "strength"
	ExerciseCardio    ExerciseType = "cardio"
	ExerciseIsometric ExerciseType = "isometric"
	ExerciseExplosive ExerciseType = "explosive"
	ExerciseMobility  ExerciseType = "mobility"
	ExerciseRecovery  ExerciseType = "recovery"
)

// ParseExerciseType validates a raw exercise type string.
func ParseExerciseType(s string) (ExerciseType, error) {
	switch t := ExerciseType(s); t {
	case ExerciseStrength, ExerciseCardio, ExerciseIsometric, ExerciseExplosive, ExerciseMobility, ExerciseRecovery:
		return t, nil
	}
	return "", fmt.Errorf("unknown exercise type %q", s)
}

type CardioTracking string

const (
	CardioTime     CardioTracking = "time"
	CardioDistance CardioTracking = "distance"
	CardioBoth     CardioTracking = "both"
)

type MobilityTracking string

const (
	MobilityReps     MobilityTracking = "reps"
	MobilityDuration MobilityTracking = "duration"
	MobilityBoth     MobilityTracking = "both"
)

type DistanceUnit string

const (
	DistanceMeters     DistanceUnit = "m"
	DistanceKilometers DistanceUnit = "km"
	DistanceMiles      DistanceUnit = "mi"
	DistanceFeet       DistanceUnit = "ft"
	DistanceYards      DistanceUnit = "yd"
)

// ModuleType categorizes a workout phase.
type ModuleType string

const (
	ModuleWarmup      ModuleType = "warmup"
	ModulePrehab      ModuleType = "prehab"
	ModuleExplosive   ModuleType = "explosive"
	ModuleStrength    ModuleType = "strength"
	ModuleCardioLong  ModuleType = "cardio_long"
	ModuleCardioSpeed ModuleType = "cardio_speed"
	ModuleRecovery    ModuleType = "recovery"
)

// Recommendation is the user's choice for applying a progression suggestion.
type Recommendation string

const (
	RecommendNone     Recommendation = ""
	RecommendProgress Recommendation = "progress"
	RecommendRegress  Recommendation = "regress"
	RecommendStay     Recommendation = "stay"
)

// SuggestionMetric names the field a progression suggestion applies to.
type SuggestionMetric string

const (
	MetricWeight   SuggestionMetric = "weight"
	MetricReps     SuggestionMetric = "reps"
	MetricDuration SuggestionMetric = "duration"
	MetricDistance SuggestionMetric = "distance"
)

// Valid reports whether m is a known metric.
func (m SuggestionMetric) Valid() bool {
	switch m {
	case MetricWeight, MetricReps, MetricDuration, MetricDistance:
		return true
	}
	return false
}

// Valid reports whether r is a known recommendation. The empty value clears
// the choice and is valid.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendNone, RecommendProgress, RecommendRegress, RecommendStay:
		return true
	}
	return false
}

// Field identifies a measured field of a Set.
type Field string

const (
	FieldWeight      Field = "weight"
	FieldReps        Field = "reps"
	FieldDuration    Field = "duration"
	FieldHoldTime    Field = "hold_time"
	FieldDistance    Field = "distance"
	FieldHeight      Field = "height"
	FieldIntensity   Field = "intensity"
	FieldTemperature Field = "temperature"
	FieldBandColor   Field = "band_color"
)

// PrimaryFields returns the measured fields that matter for the exercise.
// Values in other fields are ignored for display, logging and pre-fill.
func (e *Exercise) PrimaryFields() []Field {
	switch e.Type {
	case ExerciseStrength:
		if e.IsBodyweight {
			return []Field{FieldReps, FieldWeight, FieldBandColor}
		}
		return []Field{FieldWeight, FieldReps}
	case ExerciseCardio:
		switch e.CardioTracking {
		case CardioDistance:
			return []Field{FieldDistance, FieldIntensity}
		case CardioBoth:
			return []Field{FieldDuration, FieldDistance, FieldIntensity}
		default:
			return []Field{FieldDuration, FieldIntensity}
		}
	case ExerciseIsometric:
		return []Field{FieldHoldTime, FieldWeight, FieldBandColor}
	case ExerciseExplosive:
		fields := []Field{FieldReps}
		if e.IsBoxBased {
			fields = append(fields, FieldHeight)
		}
		if e.IsImplementBased {
			fields = append(fields, FieldWeight, FieldDistance)
		}
		return fields
	case ExerciseMobility:
		switch e.MobilityTracking {
		case MobilityDuration:
			return []Field{FieldDuration, FieldBandColor}
		case MobilityBoth:
			return []Field{FieldReps, FieldDuration, FieldBandColor}
		default:
			return []Field{FieldReps, FieldBandColor}
		}
	case ExerciseRecovery:
		return []Field{FieldDuration, FieldTemperature}
	}
	return nil
}

// UsesField reports whether f is primary for the exercise.
func (e *Exercise) UsesField(f Field) bool {
	for _, p := range e.PrimaryFields() {
		if p == f {
			return true
		}
	}
	return false
}
