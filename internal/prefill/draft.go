package prefill

import (
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// Draft holds the input state of one unlogged set. Fields the user edited
// by hand, including a duration captured by the exercise timer, are sticky:
// re-resolving never overwrites them while the draft is bound to the same set.
type Draft struct {
	SetID      uuid.UUID             `json:"set_id"`
	Values     Values                `json:"values"`
	Edited     map[models.Field]bool `json:"edited,omitempty"`
	EditedKeys map[string]bool       `json:"edited_measurables,omitempty"`
}

// Sync re-resolves every field the user has not edited. A different set id
// discards manual edits.
func (d *Draft) Sync(in Input) {
	if in.Exercise == nil || in.Set == nil {
		return
	}
	if d.SetID != in.Set.ID {
		*d = Draft{SetID: in.Set.ID}
	}

	fresh := Resolve(in)
	prev := d.Values
	if prev.Sources == nil {
		prev.Sources = map[models.Field]Source{}
	}
	for _, f := range allFields {
		if d.Edited[f] {
			continue
		}
		prev.clear(f)
		if val, ok := fresh.get(f); ok {
			prev.set(f, val, fresh.Sources[f])
		}
	}
	prev.RPE = fresh.RPE

	measurables := map[string]models.MeasurableValue{}
	for k, mv := range prev.Measurables {
		if d.EditedKeys[k] {
			measurables[k] = mv
		}
	}
	for k, mv := range fresh.Measurables {
		if !d.EditedKeys[k] {
			measurables[k] = mv
		}
	}
	prev.Measurables = measurables
	if len(measurables) == 0 {
		prev.Measurables = nil
	}
	d.Values = prev
}

// Edit records a manual value. An empty or malformed raw value clears the
// field but keeps it sticky.
func (d *Draft) Edit(f models.Field, raw string) {
	if d.Edited == nil {
		d.Edited = map[models.Field]bool{}
	}
	if d.Values.Sources == nil {
		d.Values.Sources = map[models.Field]Source{}
	}
	d.Edited[f] = true
	d.Values.clear(f)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	switch f {
	case models.FieldWeight, models.FieldDistance, models.FieldHeight:
		if x, ok := models.ParseDecimal(raw); ok {
			d.Values.set(f, x, SourceManual)
		}
	case models.FieldBandColor:
		d.Values.set(f, raw, SourceManual)
	default:
		if x, err := strconv.Atoi(raw); err == nil {
			d.Values.set(f, x, SourceManual)
		}
	}
}

// SetDuration stores a timer-captured duration and marks it manually set.
func (d *Draft) SetDuration(sec int) {
	d.Edit(models.FieldDuration, strconv.Itoa(sec))
}

// DurationManuallySet reports whether the duration is sticky.
func (d *Draft) DurationManuallySet() bool {
	return d.Edited[models.FieldDuration]
}

// EditMeasurable records a manual equipment value.
func (d *Draft) EditMeasurable(name, raw string) {
	if d.EditedKeys == nil {
		d.EditedKeys = map[string]bool{}
	}
	d.EditedKeys[name] = true
	mv, ok := models.ParseMeasurable(raw)
	if !ok {
		delete(d.Values.Measurables, name)
		return
	}
	if d.Values.Measurables == nil {
		d.Values.Measurables = map[string]models.MeasurableValue{}
	}
	d.Values.Measurables[name] = mv
}

var allFields = []models.Field{
	models.FieldWeight, models.FieldReps, models.FieldDuration, models.FieldHoldTime,
	models.FieldDistance, models.FieldHeight, models.FieldIntensity, models.FieldTemperature,
	models.FieldBandColor,
}
