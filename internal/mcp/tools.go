package mcp

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/claude/liftlog/internal/session"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var setRefOptions = []mcp.ToolOption{
	mcp.WithNumber("module", mcp.Required(), mcp.Description("Module index (0-based)")),
	mcp.WithNumber("exercise", mcp.Required(), mcp.Description("Exercise index within the module (0-based)")),
	mcp.WithNumber("set_group", mcp.Required(), mcp.Description("Set group index within the exercise (0-based)")),
	mcp.WithNumber("set", mcp.Required(), mcp.Description("Set index within the group (0-based)")),
}

var toolGetSessionState = mcp.NewTool("get_session_state",
	mcp.WithDescription("Return the active session: modules, exercises, every set with targets and logged values, the cursor, superset siblings and both timers."),
)

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List saved workout templates with their modules and set schemes."),
)

var toolStartSession = mcp.NewTool("start_session",
	mcp.WithDescription("Start a session from a template, or a freestyle session when no template_id is given. Fails if a session is already active."),
	mcp.WithString("template_id", mcp.Description("Template UUID from list_templates")),
	mcp.WithString("name", mcp.Description("Name for a freestyle session. Defaults to 'Freestyle'.")),
)

var toolLogSet = mcp.NewTool("log_set",
	append([]mcp.ToolOption{
		mcp.WithDescription("Mark a set completed with the given values. Omitted values keep what the set already has, except rpe which is always written. Starts the rest timer when the exercise has sets left."),
		mcp.WithNumber("weight", mcp.Description("Weight")),
		mcp.WithNumber("reps", mcp.Description("Repetitions")),
		mcp.WithNumber("duration", mcp.Description("Duration in seconds")),
		mcp.WithNumber("hold_time", mcp.Description("Hold time in seconds")),
		mcp.WithNumber("distance", mcp.Description("Distance in the exercise's unit")),
		mcp.WithNumber("rpe", mcp.Description("Rate of perceived exertion, 1-10")),
	}, setRefOptions...)...,
)

var toolAdvanceExercise = mcp.NewTool("advance_exercise",
	mcp.WithDescription("Move to the next exercise, following superset order, then the next module. Returns the transition and the new state."),
)

var toolStartRestTimer = mcp.NewTool("start_rest_timer",
	mcp.WithDescription("Start the rest countdown. Without seconds, uses the current set group's rest period."),
	mcp.WithNumber("seconds", mcp.Description("Rest length in seconds")),
)

var toolGetPrefill = mcp.NewTool("get_prefill",
	append([]mcp.ToolOption{
		mcp.WithDescription("Resolve the suggested input values for a set from the last session, progression suggestion and targets."),
	}, setRefOptions...)...,
)

var toolGetPendingChanges = mcp.NewTool("get_pending_changes",
	mcp.WithDescription("List structural differences between the active session and its template. Their ids can be accepted in finish_session."),
)

var toolFinishSession = mcp.NewTool("finish_session",
	mcp.WithDescription("End the active session and persist it. Accepted template changes are written back to the template."),
	mcp.WithNumber("feeling", mcp.Description("How the session felt, 1-5")),
	mcp.WithString("notes", mcp.Description("Free-form session notes")),
	mcp.WithString("accepted_change_ids", mcp.Description("Comma-separated change ids from get_pending_changes")),
)

var toolGetStats = mcp.NewTool("get_stats",
	mcp.WithDescription("Totals across all stored sessions, sets and templates, plus per-workout counts and volume."),
)

var toolGetExerciseHistory = mcp.NewTool("get_exercise_history",
	mcp.WithDescription("Per-session history of one exercise: sets, reps, top weight, volume and best estimated 1RM."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (case-insensitive)")),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 10.")),
)

// --- Tool handlers ---

func (h *handlers) getSessionState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := h.b.SessionState(ctx)
	return h.result("get_session_state", v, err)
}

func (h *handlers) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts, err := h.b.ListTemplates(ctx)
	return h.result("list_templates", ts, err)
}

func (h *handlers) startSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var templateID *uuid.UUID
	if raw := req.GetString("template_id", ""); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return mcp.NewToolResultError("invalid template_id: " + err.Error()), nil
		}
		templateID = &id
	}
	v, err := h.b.StartSession(ctx, templateID, req.GetString("name", ""))
	return h.result("start_session", v, err)
}

func (h *handlers) logSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := setRefArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := session.SetInput{
		Weight:   floatArg(args, "weight"),
		Reps:     intArg(args, "reps"),
		Duration: intArg(args, "duration"),
		HoldTime: intArg(args, "hold_time"),
		Distance: floatArg(args, "distance"),
		RPE:      intArg(args, "rpe"),
	}
	res, err := h.b.LogSet(ctx, ref, in)
	return h.result("log_set", res, err)
}

func (h *handlers) advanceExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step, err := h.b.Advance(ctx)
	return h.result("advance_exercise", step, err)
}

func (h *handlers) startRestTimer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	seconds := 0
	if v := intArg(req.GetArguments(), "seconds"); v != nil {
		seconds = *v
	}
	v, err := h.b.StartRest(ctx, seconds)
	return h.result("start_rest_timer", v, err)
}

func (h *handlers) getPrefill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := setRefArg(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := h.b.Prefill(ctx, ref)
	return h.result("get_prefill", res, err)
}

func (h *handlers) getPendingChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	changes, err := h.b.PendingChanges(ctx)
	return h.result("get_pending_changes", changes, err)
}

func (h *handlers) finishSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fr := session.FinishRequest{
		Feeling:           intArg(req.GetArguments(), "feeling"),
		Notes:             req.GetString("notes", ""),
		AcceptedChangeIDs: splitList(req.GetString("accepted_change_ids", "")),
	}
	res, err := h.b.FinishSession(ctx, fr)
	return h.result("finish_session", res, err)
}

func (h *handlers) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.b.Stats(ctx)
	return h.result("get_stats", stats, err)
}

func (h *handlers) getExerciseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}
	limit := 10
	if v := intArg(req.GetArguments(), "limit"); v != nil && *v > 0 {
		limit = *v
	}
	hist, err := h.b.ExerciseHistory(ctx, name, limit)
	return h.result("get_exercise_history", hist, err)
}

// result turns a backend answer into a tool result. A missing session is an
// expected condition and is reported without logging.
func (h *handlers) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		if isNoSession(err) {
			return mcp.NewToolResultError("no active session"), nil
		}
		h.log.Error("mcp "+tool, "error", err)
		return mcp.NewToolResultError(tool + " failed: " + err.Error()), nil
	}
	res, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return res, nil
}

func floatArg(args map[string]any, key string) *float64 {
	switch v := args[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func intArg(args map[string]any, key string) *int {
	f := floatArg(args, key)
	if f == nil {
		return nil
	}
	i := int(math.Round(*f))
	return &i
}

func setRefArg(args map[string]any) (session.SetRef, error) {
	var ref session.SetRef
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"module", &ref.Module},
		{"exercise", &ref.Exercise},
		{"set_group", &ref.SetGroup},
		{"set", &ref.Set},
	} {
		v := intArg(args, p.key)
		if v == nil {
			return ref, fmt.Errorf("%s parameter is required", p.key)
		}
		*p.dst = *v
	}
	return ref, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
