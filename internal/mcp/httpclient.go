package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/templatediff"
	"github.com/google/uuid"
)

// HTTPClient implements Backend by calling the liftlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the session lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies Backend.
var _ Backend = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.Path, e.Status, e.Message)
}

// do sends a request and decodes a JSON response into out, if non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpclient: encode %s: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Path: path, Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) SessionState(ctx context.Context) (session.View, error) {
	var v session.View
	err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, nil, &v)
	return v, err
}

func (c *HTTPClient) ListTemplates(ctx context.Context) ([]models.WorkoutTemplate, error) {
	var ts []models.WorkoutTemplate
	err := c.do(ctx, http.MethodGet, "/api/v1/templates", nil, nil, &ts)
	return ts, err
}

func (c *HTTPClient) StartSession(ctx context.Context, templateID *uuid.UUID, name string) (session.View, error) {
	body := map[string]any{}
	if templateID != nil {
		body["template_id"] = templateID
	} else if name != "" {
		body["name"] = name
	}
	var v session.View
	err := c.do(ctx, http.MethodPost, "/api/v1/session/start", nil, body, &v)
	return v, err
}

func (c *HTTPClient) LogSet(ctx context.Context, ref session.SetRef, in session.SetInput) (session.LogResult, error) {
	var res session.LogResult
	err := c.do(ctx, http.MethodPost, "/api/v1/session/sets/log", nil,
		map[string]any{"ref": ref, "input": in}, &res)
	return res, err
}

func (c *HTTPClient) Advance(ctx context.Context) (session.Step, error) {
	var st session.Step
	err := c.do(ctx, http.MethodPost, "/api/v1/session/advance", nil, nil, &st)
	return st, err
}

func (c *HTTPClient) StartRest(ctx context.Context, seconds int) (session.View, error) {
	var v session.View
	err := c.do(ctx, http.MethodPost, "/api/v1/session/timers/rest/start", nil,
		map[string]int{"seconds": seconds}, &v)
	return v, err
}

func (c *HTTPClient) Prefill(ctx context.Context, ref session.SetRef) (session.PrefillResult, error) {
	params := url.Values{}
	params.Set("module", strconv.Itoa(ref.Module))
	params.Set("exercise", strconv.Itoa(ref.Exercise))
	params.Set("set_group", strconv.Itoa(ref.SetGroup))
	params.Set("set", strconv.Itoa(ref.Set))
	var res session.PrefillResult
	err := c.do(ctx, http.MethodGet, "/api/v1/session/sets/prefill", params, nil, &res)
	return res, err
}

func (c *HTTPClient) PendingChanges(ctx context.Context) ([]templatediff.Change, error) {
	var changes []templatediff.Change
	err := c.do(ctx, http.MethodGet, "/api/v1/session/changes", nil, nil, &changes)
	return changes, err
}

func (c *HTTPClient) FinishSession(ctx context.Context, req session.FinishRequest) (session.FinishResult, error) {
	var res session.FinishResult
	err := c.do(ctx, http.MethodPost, "/api/v1/session/finish", nil, req, &res)
	return res, err
}

func (c *HTTPClient) Stats(ctx context.Context) (*storage.DataStats, error) {
	var stats storage.DataStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *HTTPClient) ExerciseHistory(ctx context.Context, exerciseName string, limit int) ([]storage.ExerciseSession, error) {
	params := url.Values{}
	params.Set("name", exerciseName)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var hist []storage.ExerciseSession
	err := c.do(ctx, http.MethodGet, "/api/v1/exercises/history", params, nil, &hist)
	return hist, err
}
