// Package templatediff compares a finished session against the template it
// was started from and applies accepted changes back to the template.
package templatediff

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

type Kind string

const (
	KindExerciseAdded       Kind = "exercise_added"
	KindExerciseRemoved     Kind = "exercise_removed"
	KindExerciseReordered   Kind = "exercise_reordered"
	KindExerciseSubstituted Kind = "exercise_substituted"
	KindSetCountChanged     Kind = "set_count_changed"
	KindSchemeChanged       Kind = "scheme_changed"
)

// Scheme fields reported by KindSchemeChanged.
const (
	FieldType       = "type"
	FieldSetGroups  = "set_groups"
	FieldRestPeriod = "rest_period"
)

// Change is one reviewable difference. ID is deterministic for a given
// template and session, so a client can send back the ids it accepted.
type Change struct {
	ID            string                    `json:"id"`
	Kind          Kind                      `json:"kind"`
	ModuleID      uuid.UUID                 `json:"module_id"`
	ModuleName    string                    `json:"module_name"`
	ExerciseID    uuid.UUID                 `json:"exercise_id,omitempty"`
	ExerciseName  string                    `json:"exercise_name,omitempty"`
	SetGroupIndex int                       `json:"set_group_index,omitempty"`
	Field         string                    `json:"field,omitempty"`
	From          string                    `json:"from,omitempty"`
	To            string                    `json:"to,omitempty"`
	Position      int                       `json:"position,omitempty"`
	Order         []uuid.UUID               `json:"order,omitempty"`
	Exercise      *models.ExerciseTemplate  `json:"exercise,omitempty"`
	Group         *models.SetGroupTemplate  `json:"group,omitempty"`
	Groups        []models.SetGroupTemplate `json:"groups,omitempty"`
	Description   string                    `json:"description"`
}

// Detect lists structural differences between the template and the session.
// Output order follows template module order; within a module: removals,
// additions, reorder, then per-exercise changes in template order.
func Detect(t models.WorkoutTemplate, s *models.Session) []Change {
	if s == nil || s.IsFreestyle {
		return nil
	}
	sessionModules := make(map[uuid.UUID]*models.Module, len(s.Modules))
	for i := range s.Modules {
		m := &s.Modules[i]
		if _, ok := sessionModules[m.TemplateModuleID]; !ok {
			sessionModules[m.TemplateModuleID] = m
		}
	}

	var changes []Change
	for _, mt := range t.Modules {
		sm, ok := sessionModules[mt.ID]
		if !ok {
			continue
		}
		changes = append(changes, diffModule(mt, sm)...)
	}
	return changes
}

func diffModule(mt models.ModuleTemplate, sm *models.Module) []Change {
	inTemplate := make(map[uuid.UUID]bool, len(mt.Exercises))
	for _, et := range mt.Exercises {
		inTemplate[et.ID] = true
	}
	live := make(map[uuid.UUID]*models.Exercise, len(sm.Exercises))
	for i := range sm.Exercises {
		e := &sm.Exercises[i]
		if e.TemplateExerciseID == uuid.Nil || !inTemplate[e.TemplateExerciseID] {
			continue
		}
		if _, ok := live[e.TemplateExerciseID]; !ok {
			live[e.TemplateExerciseID] = e
		}
	}

	base := Change{ModuleID: mt.ID, ModuleName: mt.Name}
	prefix := "module/" + mt.ID.String()
	var out []Change

	for _, et := range mt.Exercises {
		if _, ok := live[et.ID]; ok {
			continue
		}
		c := base
		c.ID = prefix + "/remove/" + et.ID.String()
		c.Kind = KindExerciseRemoved
		c.ExerciseID = et.ID
		c.ExerciseName = et.Name
		c.Description = "Remove " + et.Name
		out = append(out, c)
	}

	for i := range sm.Exercises {
		e := &sm.Exercises[i]
		if live[e.TemplateExerciseID] == e {
			continue
		}
		tmpl := e.Template()
		tmpl.ID = e.ID
		tmpl.SetGroups = mergeGroups(tmpl.SetGroups)
		c := base
		c.ID = prefix + "/add/" + e.ID.String()
		c.Kind = KindExerciseAdded
		c.ExerciseID = e.ID
		c.ExerciseName = e.Name
		c.Position = i
		c.Exercise = &tmpl
		c.Description = "Add " + e.Name
		out = append(out, c)
	}

	var templateOrder, sessionOrder []uuid.UUID
	for _, et := range mt.Exercises {
		if _, ok := live[et.ID]; ok {
			templateOrder = append(templateOrder, et.ID)
		}
	}
	for i := range sm.Exercises {
		e := &sm.Exercises[i]
		if live[e.TemplateExerciseID] == e {
			sessionOrder = append(sessionOrder, e.TemplateExerciseID)
		}
	}
	if !sameOrder(templateOrder, sessionOrder) {
		c := base
		c.ID = prefix + "/reorder"
		c.Kind = KindExerciseReordered
		c.Order = sessionOrder
		c.Description = "Reorder exercises in " + mt.Name
		out = append(out, c)
	}

	for _, et := range mt.Exercises {
		e, ok := live[et.ID]
		if !ok {
			continue
		}
		out = append(out, diffExercise(base, prefix+"/exercise/"+et.ID.String(), et, e)...)
	}
	return out
}

func diffExercise(base Change, prefix string, et models.ExerciseTemplate, e *models.Exercise) []Change {
	base.ExerciseID = et.ID
	base.ExerciseName = et.Name
	var out []Change

	if e.Name != et.Name {
		c := base
		c.ID = prefix + "/name"
		c.Kind = KindExerciseSubstituted
		c.From, c.To = et.Name, e.Name
		c.Description = fmt.Sprintf("Replace %s with %s", et.Name, e.Name)
		out = append(out, c)
	}
	if e.Type != et.Type {
		c := base
		c.ID = prefix + "/type"
		c.Kind = KindSchemeChanged
		c.Field = FieldType
		c.From, c.To = string(et.Type), string(e.Type)
		c.Description = fmt.Sprintf("%s: type %s -> %s", et.Name, et.Type, e.Type)
		out = append(out, c)
	}

	was := mergeGroups(et.SetGroups)
	now := make([]models.SetGroupTemplate, 0, len(e.SetGroups))
	for i := range e.SetGroups {
		now = append(now, e.SetGroups[i].Template())
	}
	now = mergeGroups(now)

	if len(was) != len(now) {
		c := base
		c.ID = prefix + "/groups"
		c.Kind = KindSchemeChanged
		c.Field = FieldSetGroups
		c.From, c.To = strconv.Itoa(len(was)), strconv.Itoa(len(now))
		c.Groups = now
		c.Description = fmt.Sprintf("%s: %d -> %d set groups", et.Name, len(was), len(now))
		return append(out, c)
	}

	for gi := range was {
		gp := fmt.Sprintf("%s/group/%d", prefix, gi)
		g := now[gi]
		if was[gi].LogicalSets() != g.LogicalSets() {
			c := base
			c.ID = gp + "/sets"
			c.Kind = KindSetCountChanged
			c.SetGroupIndex = gi
			c.From, c.To = strconv.Itoa(was[gi].LogicalSets()), strconv.Itoa(g.LogicalSets())
			c.Group = &g
			c.Description = fmt.Sprintf("%s: sets %s -> %s", et.Name, c.From, c.To)
			out = append(out, c)
		}
		for _, fd := range schemeFields {
			from, to := fd.get(was[gi]), fd.get(g)
			if from == to {
				continue
			}
			c := base
			c.ID = gp + "/" + fd.name
			c.Kind = KindSchemeChanged
			c.SetGroupIndex = gi
			c.Field = fd.name
			c.From, c.To = from, to
			c.Group = &g
			c.Description = fmt.Sprintf("%s: %s %s -> %s", et.Name, fd.name, orDash(from), orDash(to))
			out = append(out, c)
		}
	}
	return out
}

type schemeField struct {
	name string
	get  func(models.SetGroupTemplate) string
	set  func(dst *models.SetGroupTemplate, src models.SetGroupTemplate)
}

var schemeFields = []schemeField{
	{
		name: string(models.FieldWeight),
		get:  func(g models.SetGroupTemplate) string { return fmtF(g.Target.Weight) },
		set:  func(d *models.SetGroupTemplate, s models.SetGroupTemplate) { d.Target.Weight = s.Target.Weight },
	},
	{
		name: string(models.FieldReps),
		get:  func(g models.SetGroupTemplate) string { return fmtI(g.Target.Reps) },
		set:  func(d *models.SetGroupTemplate, s models.SetGroupTemplate) { d.Target.Reps = s.Target.Reps },
	},
	{
		name: string(models.FieldDuration),
		get:  func(g models.SetGroupTemplate) string { return fmtI(g.Target.Duration) },
		set:  func(d *models.SetGroupTemplate, s models.SetGroupTemplate) { d.Target.Duration = s.Target.Duration },
	},
	{
		name: string(models.FieldHoldTime),
		get:  func(g models.SetGroupTemplate) string { return fmtI(g.Target.HoldTime) },
		set:  func(d *models.SetGroupTemplate, s models.SetGroupTemplate) { d.Target.HoldTime = s.Target.HoldTime },
	},
	{
		name: string(models.FieldDistance),
		get:  func(g models.SetGroupTemplate) string { return fmtF(g.Target.Distance) },
		set:  func(d *models.SetGroupTemplate, s models.SetGroupTemplate) { d.Target.Distance = s.Target.Distance },
	},
	{
		name: FieldRestPeriod,
		get:  func(g models.SetGroupTemplate) string { return fmtI(g.RestPeriod) },
		set:  func(d *models.SetGroupTemplate, s models.SetGroupTemplate) { d.RestPeriod = s.RestPeriod },
	},
}

// mergeGroups folds adjacent groups with an identical scheme into one, so a
// preserved group of completed sets followed by its regenerated remainder
// compares as a single scheme.
func mergeGroups(groups []models.SetGroupTemplate) []models.SetGroupTemplate {
	var out []models.SetGroupTemplate
	for _, g := range groups {
		if n := len(out); n > 0 && sameScheme(out[n-1], g) {
			out[n-1].Sets += g.Sets
			if out[n-1].IsInterval {
				out[n-1].Rounds = out[n-1].Sets
			}
			continue
		}
		out = append(out, g)
	}
	return out
}

func sameScheme(a, b models.SetGroupTemplate) bool {
	for _, fd := range schemeFields {
		if fd.get(a) != fd.get(b) {
			return false
		}
	}
	return a.IsInterval == b.IsInterval && a.IsAMRAP == b.IsAMRAP &&
		a.IsUnilateral == b.IsUnilateral && a.TrackRPE == b.TrackRPE &&
		a.WorkDuration == b.WorkDuration && a.IntervalRestDuration == b.IntervalRestDuration &&
		fmtI(a.AMRAPTimeLimit) == fmtI(b.AMRAPTimeLimit)
}

// Select keeps the changes whose ids are listed.
func Select(changes []Change, ids []string) []Change {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Change
	for _, c := range changes {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func sameOrder(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fmtF(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func fmtI(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sortCanonical orders changes by apply phase, then position and id, so
// Apply does not depend on the order the caller listed them in.
func sortCanonical(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		pi, pj := phase(changes[i].Kind), phase(changes[j].Kind)
		if pi != pj {
			return pi < pj
		}
		if changes[i].Kind == KindExerciseAdded && changes[i].Position != changes[j].Position {
			return changes[i].Position < changes[j].Position
		}
		return changes[i].ID < changes[j].ID
	})
}

func phase(k Kind) int {
	switch k {
	case KindExerciseSubstituted, KindSchemeChanged, KindSetCountChanged:
		return 0
	case KindExerciseRemoved:
		return 1
	case KindExerciseReordered:
		return 2
	case KindExerciseAdded:
		return 3
	}
	return 4
}
