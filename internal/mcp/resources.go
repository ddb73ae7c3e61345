package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/claude/liftlog/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) activeSession(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	v, err := h.b.SessionState(ctx)
	if err != nil {
		if !isNoSession(err) {
			return nil, err
		}
		return jsonResource(req.Params.URI, map[string]any{"active": false})
	}
	return jsonResource(req.Params.URI, map[string]any{"active": true, "state": v})
}

func (h *handlers) templates(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ts, err := h.b.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, ts)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// isNoSession matches both the local sentinel and a remote 404 on the
// session endpoint.
func isNoSession(err error) bool {
	if errors.Is(err, session.ErrNoActiveSession) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404 && apiErr.Message == session.ErrNoActiveSession.Error()
}
