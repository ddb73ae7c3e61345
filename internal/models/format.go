package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatWeight renders a weight without trailing zeros, e.g. "102.5".
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past the hour.
func FormatDuration(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Summary renders the logged values of a set for the exercise's type,
// e.g. "135 x 8 reps" or "0:45 hold". Returns "-" when nothing is logged.
func (e *Exercise) Summary(s *Set) string {
	var parts []string
	for _, f := range e.PrimaryFields() {
		if p := formatField(e, s, f); p != "" {
			parts = append(parts, p)
		}
	}
	if s.RPE != nil {
		parts = append(parts, fmt.Sprintf("@%d", *s.RPE))
	}
	if len(s.Measurables) > 0 {
		keys := make([]string, 0, len(s.Measurables))
		for k := range s.Measurables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, k+" "+s.Measurables[k].String())
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	if s.Side != SideNone {
		parts = append([]string{strings.ToUpper(string(s.Side[:1]))}, parts...)
	}
	return strings.Join(parts, " ")
}

func formatField(e *Exercise, s *Set, f Field) string {
	switch f {
	case FieldWeight:
		if s.Weight == nil {
			return ""
		}
		if e.Type == ExerciseStrength && s.Reps != nil {
			return FormatWeight(*s.Weight) + " x"
		}
		return FormatWeight(*s.Weight)
	case FieldReps:
		if s.Reps == nil {
			return ""
		}
		return strconv.Itoa(*s.Reps) + " reps"
	case FieldDuration:
		if s.Duration == nil {
			return ""
		}
		return FormatDuration(*s.Duration)
	case FieldHoldTime:
		if s.HoldTime == nil {
			return ""
		}
		return FormatDuration(*s.HoldTime) + " hold"
	case FieldDistance:
		if s.Distance == nil {
			return ""
		}
		unit := e.DistanceUnit
		if unit == "" {
			unit = DistanceMeters
		}
		return FormatWeight(*s.Distance) + " " + string(unit)
	case FieldHeight:
		if s.Height == nil {
			return ""
		}
		return FormatWeight(*s.Height) + " in"
	case FieldIntensity:
		if s.Intensity == nil {
			return ""
		}
		return fmt.Sprintf("int %d/10", *s.Intensity)
	case FieldTemperature:
		if s.Temperature == nil {
			return ""
		}
		return fmt.Sprintf("%d°", *s.Temperature)
	case FieldBandColor:
		if s.BandColor == nil {
			return ""
		}
		return *s.BandColor + " band"
	}
	return ""
}
