package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
)

// fakeStore backs both the HTTP API and the session manager.
type fakeStore struct {
	templates   map[uuid.UUID]models.WorkoutTemplate
	saved       []*models.Session
	suggestions map[string]models.ProgressionSuggestion
	importLogs  []storage.ImportLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates:   map[uuid.UUID]models.WorkoutTemplate{},
		suggestions: map[string]models.ProgressionSuggestion{},
	}
}

func (f *fakeStore) ListTemplates(context.Context) ([]models.WorkoutTemplate, error) {
	var out []models.WorkoutTemplate
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) GetTemplate(_ context.Context, id uuid.UUID) (models.WorkoutTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return models.WorkoutTemplate{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) SaveTemplate(_ context.Context, t models.WorkoutTemplate) error {
	f.templates[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	if _, ok := f.templates[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeStore) SaveSession(_ context.Context, s *models.Session) error {
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeStore) ListSessions(context.Context, time.Time, time.Time) ([]storage.SessionSummary, error) {
	return nil, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	for _, s := range f.saved {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) ExerciseHistory(context.Context, string, int) ([]storage.ExerciseSession, error) {
	return []storage.ExerciseSession{}, nil
}

func (f *fakeStore) GetDataStats(context.Context) (*storage.DataStats, error) {
	return &storage.DataStats{TotalSessions: int64(len(f.saved))}, nil
}

func (f *fakeStore) InsertSuggestion(_ context.Context, name string, sg models.ProgressionSuggestion) error {
	f.suggestions[name] = sg
	return nil
}

func (f *fakeStore) InsertImportLog(_ context.Context, l storage.ImportLog) (int64, error) {
	f.importLogs = append(f.importLogs, l)
	return int64(len(f.importLogs)), nil
}

func (f *fakeStore) QueryImportLogs(context.Context, int) ([]storage.ImportLog, error) {
	return f.importLogs, nil
}

type fakeImporter struct {
	result *ingest.Result
	err    error
}

func (f fakeImporter) Ingest(_ context.Context, r io.Reader) (*ingest.Result, error) {
	io.Copy(io.Discard, r)
	return f.result, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upperTemplate() models.WorkoutTemplate {
	ex := func(name string) models.ExerciseTemplate {
		return models.ExerciseTemplate{
			ID:   uuid.New(),
			Name: name,
			Type: models.ExerciseStrength,
			SetGroups: []models.SetGroupTemplate{{
				Sets:       2,
				Target:     models.SetTarget{Weight: models.FloatPtr(100), Reps: models.IntPtr(5)},
				RestPeriod: models.IntPtr(90),
			}},
		}
	}
	return models.WorkoutTemplate{
		ID:   uuid.New(),
		Name: "Upper",
		Modules: []models.ModuleTemplate{{
			ID: uuid.New(), Name: "Main", Type: models.ModuleStrength,
			Exercises: []models.ExerciseTemplate{ex("Bench Press"), ex("Row")},
		}},
	}
}

func newTestServer(t *testing.T, imp Importer) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	mgr := session.NewManager(store, nil, nil, nil, testLogger())
	return New(store, mgr, imp, "secret", testLogger()), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// TestSessionLifecycle drives a template session from start to finish
// through the HTTP API.
func TestSessionLifecycle(t *testing.T) {
	s, store := newTestServer(t, nil)
	tmpl := upperTemplate()
	store.templates[tmpl.ID] = tmpl

	rec := do(t, s, http.MethodPost, "/api/v1/session/start", map[string]any{"template_id": tmpl.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	view := decode[struct {
		CurrentExercise string `json:"current_exercise"`
	}](t, rec)
	if view.CurrentExercise != "Bench Press" {
		t.Errorf("current exercise = %q, want %q", view.CurrentExercise, "Bench Press")
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/session/start", map[string]any{"name": "Extra"}); rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/session/sets/log", map[string]any{
		"ref": session.SetRef{},
		"raw": map[string]string{"weight": "102.5", "reps": "5"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("log status = %d, want 200", rec.Code)
	}
	logged := decode[struct {
		Logged      bool `json:"logged"`
		RestStarted int  `json:"rest_started_sec"`
		State       struct {
			Cursor session.Cursor `json:"cursor"`
		} `json:"state"`
	}](t, rec)
	if !logged.Logged {
		t.Error("logged = false, want true")
	}
	if logged.RestStarted != 90 {
		t.Errorf("rest started = %d, want 90", logged.RestStarted)
	}
	if logged.State.Cursor.Set != 1 {
		t.Errorf("cursor set = %d, want 1", logged.State.Cursor.Set)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/session/advance", nil)
	step := decode[struct {
		Transition string `json:"transition"`
		State      struct {
			CurrentExercise string `json:"current_exercise"`
		} `json:"state"`
	}](t, rec)
	if step.Transition != "exercise" || step.State.CurrentExercise != "Row" {
		t.Errorf("advance = %q to %q, want exercise to Row", step.Transition, step.State.CurrentExercise)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/session/finish", map[string]any{"feeling": 4, "notes": "solid"})
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved sessions = %d, want 1", len(store.saved))
	}
	if got := store.saved[0].CompletedSetCount(); got != 1 {
		t.Errorf("completed sets = %d, want 1", got)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/session", nil); rec.Code != http.StatusNotFound {
		t.Errorf("state after finish status = %d, want 404", rec.Code)
	}
}

// TestSessionCommandsWithoutSession verifies session commands answer 404
// when nothing is active.
func TestSessionCommandsWithoutSession(t *testing.T) {
	s, _ := newTestServer(t, nil)
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/session"},
		{http.MethodPost, "/api/v1/session/advance"},
		{http.MethodPost, "/api/v1/session/skip-module"},
		{http.MethodPost, "/api/v1/session/timers/rest/stop"},
		{http.MethodDelete, "/api/v1/session"},
	}
	for _, p := range paths {
		if rec := do(t, s, p.method, p.path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", p.method, p.path, rec.Code)
		}
	}
}

// TestFreestyleMutations verifies ad-hoc exercises and set edits go through
// the mutation envelope.
func TestFreestyleMutations(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodPost, "/api/v1/session/start", nil); rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", rec.Code)
	}

	rec := do(t, s, http.MethodPost, "/api/v1/session/exercises", map[string]any{
		"module":   0,
		"exercise": map[string]string{"name": "Curl"},
	})
	added := decode[struct {
		Result bool `json:"result"`
		State  struct {
			Session models.Session `json:"session"`
		} `json:"state"`
	}](t, rec)
	if !added.Result {
		t.Fatal("add exercise result = false, want true")
	}
	exs := added.State.Session.Modules[0].Exercises
	if len(exs) != 1 || exs[0].Name != "Curl" || !exs[0].IsAdHoc {
		t.Fatalf("exercises = %+v, want one ad-hoc Curl", exs)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/session/sets/add", map[string]int{"module": 0, "exercise": 0})
	addSet := decode[struct {
		Result bool `json:"result"`
		State  struct {
			Session models.Session `json:"session"`
		} `json:"state"`
	}](t, rec)
	if !addSet.Result {
		t.Error("add set result = false, want true")
	}
	if got := len(addSet.State.Session.Modules[0].Exercises[0].SetGroups[0].Sets); got != 2 {
		t.Errorf("sets = %d, want 2", got)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/session/exercises/delete", map[string]int{"module": 0, "exercise": 5})
	stale := decode[struct {
		Result bool `json:"result"`
	}](t, rec)
	if stale.Result {
		t.Error("deleting a missing exercise reported success")
	}

	if rec := do(t, s, http.MethodDelete, "/api/v1/session", nil); rec.Code != http.StatusNoContent {
		t.Errorf("cancel status = %d, want 204", rec.Code)
	}
}

// TestPrefillQueryValidation verifies the set reference must be numeric.
func TestPrefillQueryValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	do(t, s, http.MethodPost, "/api/v1/session/start", nil)

	if rec := do(t, s, http.MethodGet, "/api/v1/session/sets/prefill?module=0&exercise=x&set_group=0&set=0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/api/v1/session/sets/prefill?module=0&exercise=0&set_group=0&set=0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	res := decode[session.PrefillResult](t, rec)
	if res.Found {
		t.Error("found = true for an empty freestyle session")
	}
}

// TestTemplateCRUD verifies create, fetch and delete of templates.
func TestTemplateCRUD(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tmpl := upperTemplate()
	tmpl.ID = uuid.Nil
	tmpl.Modules[0].ID = uuid.Nil
	rec := do(t, s, http.MethodPost, "/api/v1/templates", tmpl)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	created := decode[models.WorkoutTemplate](t, rec)
	if created.ID == uuid.Nil || created.Modules[0].ID == uuid.Nil {
		t.Fatalf("created template missing ids: %+v", created)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/templates/"+created.ID.String(), nil)
	if got := decode[models.WorkoutTemplate](t, rec); got.Name != "Upper" {
		t.Errorf("name = %q, want %q", got.Name, "Upper")
	}

	if rec := do(t, s, http.MethodDelete, "/api/v1/templates/"+created.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/templates/"+created.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/templates/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/templates", models.WorkoutTemplate{}); rec.Code != http.StatusBadRequest {
		t.Errorf("unnamed template status = %d, want 400", rec.Code)
	}
}

// TestAlphaIngest verifies the API key gate and that each import is logged.
func TestAlphaIngest(t *testing.T) {
	s, store := newTestServer(t, fakeImporter{result: &ingest.Result{SessionsReceived: 2, SessionsInserted: 1, SetsInserted: 12}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/alpha", strings.NewReader("csv"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/alpha", strings.NewReader("csv"))
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.importLogs) != 1 {
		t.Fatalf("import logs = %d, want 1", len(store.importLogs))
	}
	l := store.importLogs[0]
	if l.Status != storage.ImportSuccess || l.SessionsInserted != 1 || l.SetsInserted != 12 {
		t.Errorf("import log = %+v", l)
	}
}

// TestAlphaIngestFailureLogged verifies a parse failure is reported and
// logged as an error.
func TestAlphaIngestFailureLogged(t *testing.T) {
	s, store := newTestServer(t, fakeImporter{err: errors.New("bad header")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/alpha", strings.NewReader("csv"))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(store.importLogs) != 1 || store.importLogs[0].Status != storage.ImportError {
		t.Errorf("import logs = %+v, want one error entry", store.importLogs)
	}
}

// TestSuggestionIngest verifies suggestions are validated then stored.
func TestSuggestionIngest(t *testing.T) {
	s, store := newTestServer(t, nil)
	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/suggestions", strings.NewReader(body))
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(`[{"exercise_name":"Squat","metric":"speed","base_value":1,"suggested_value":2}]`); code != http.StatusBadRequest {
		t.Errorf("unknown metric status = %d, want 400", code)
	}
	if code := post(`[{"metric":"weight","base_value":1,"suggested_value":2}]`); code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", code)
	}
	if code := post(`[{"exercise_name":"Squat","metric":"weight","base_value":100,"suggested_value":105}]`); code != http.StatusOK {
		t.Fatalf("valid status = %d, want 200", code)
	}
	if got := store.suggestions["Squat"].SuggestedValue; got != 105 {
		t.Errorf("stored suggestion = %v, want 105", got)
	}
}

// TestExerciseHistoryRequiresName verifies the name parameter is required.
func TestExerciseHistoryRequiresName(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/api/v1/exercises/history", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/exercises/history?name=Squat", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestParseTimeRange verifies date and timestamp forms.
func TestParseTimeRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?start=2026-01-01&end=2026-02-01T12:00:00Z", nil)
	start, end, err := parseTimeRange(req)
	if err != nil {
		t.Fatalf("parseTimeRange: %v", err)
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	req = httptest.NewRequest(http.MethodGet, "/?start=yesterday", nil)
	if _, _, err := parseTimeRange(req); err == nil {
		t.Error("expected error for malformed start")
	}
}
