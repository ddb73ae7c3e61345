package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MeasurableValue is a numeric-or-string equipment measurement.
type MeasurableValue struct {
	Number   float64
	Text     string
	IsString bool
}

// NumberValue returns a numeric measurable.
func NumberValue(v float64) MeasurableValue {
	return MeasurableValue{Number: v}
}

// TextValue returns a string measurable.
func TextValue(s string) MeasurableValue {
	return MeasurableValue{Text: s, IsString: true}
}

// ParseMeasurable parses raw user input. Numbers win over strings; an empty
// or blank input, or a non-finite number, yields ok=false.
func ParseMeasurable(raw string) (MeasurableValue, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MeasurableValue{}, false
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return MeasurableValue{}, false
		}
		return NumberValue(f), true
	}
	return TextValue(raw), true
}

// ParseDecimal parses a user-entered number, accepting a decimal comma.
// Non-finite values such as "NaN" or "Inf" are rejected.
func ParseDecimal(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (v MeasurableValue) String() string {
	if v.IsString {
		return v.Text
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

func (v MeasurableValue) MarshalJSON() ([]byte, error) {
	if v.IsString {
		return json.Marshal(v.Text)
	}
	return json.Marshal(v.Number)
}

func (v *MeasurableValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumberValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("measurable must be number or string: %w", err)
	}
	*v = TextValue(s)
	return nil
}

// MeasurableTarget is a per-equipment target on a set group, e.g. a band
// color or a sled weight.
type MeasurableTarget struct {
	Name          string          `json:"name"`
	Unit          string          `json:"unit,omitempty"`
	Value         MeasurableValue `json:"value"`
	IsStringBased bool            `json:"is_string_based,omitempty"`
}
