//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/evaluator"
	"github.com/ashureev/datagym/internal/identity"
	"github.com/ashureev/datagym/internal/lab"
	"github.com/ashureev/datagym/internal/store"
	"github.com/ashureev/datagym/internal/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	lessons  []domain.Lesson
	pingErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: make(map[string]*domain.Account)}
}

func (f *fakeRepo) CreateAccount(_ context.Context, a *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return store.ErrEmailTaken
		}
	}
	copy := *a
	f.accounts[a.UserID] = &copy
	return nil
}

func (f *fakeRepo) GetAccount(_ context.Context, userID string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (f *fakeRepo) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			copy := *a
			return &copy, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRepo) AddProgress(_ context.Context, userID string, xp, tasks int) (domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok {
		return domain.Progress{}, store.ErrNotFound
	}
	a.XP += xp
	a.CompletedTasks += tasks
	return a.Progress(), nil
}

func (f *fakeRepo) ListLessons(_ context.Context, track domain.Track, level domain.Difficulty) ([]domain.Lesson, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Lesson{}
	for _, l := range f.lessons {
		if l.Track == track && l.Level == level {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeRepo) UpsertLessons(_ context.Context, lessons []domain.Lesson) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lessons = append(f.lessons, lessons...)
	return nil
}

func (f *fakeRepo) CountLessons(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lessons), nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error                 { return nil }

type stubRunner struct {
	err error
}

func (s stubRunner) Run(context.Context, *workspace.Workspace, domain.Track, string) (*lab.Report, error) {
	return nil, s.err
}

type testServer struct {
	*httptest.Server
	repo   *fakeRepo
	client *http.Client
}

func newTestServer(t *testing.T, runner Runner) *testServer {
	t.Helper()
	repo := newFakeRepo()
	if runner == nil {
		runner = lab.NewRunner(evaluator.NewQueryEvaluator(nil), evaluator.NewScriptEvaluator(0), repo, 0)
	}
	sessionStore := identity.NewSessionStore("test-secret", true)
	h := NewHandler(repo, workspace.NewManager(), runner, sessionStore, Options{
		QueryEngine:    "sqlite",
		MaxUploadBytes: 1 << 20,
	})

	r := chi.NewRouter()
	r.Use(identity.Middleware(sessionStore, true))
	NewHealthHandler(repo).RegisterHealth(r)
	h.RegisterRoutes(r, nil)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testServer{Server: srv, repo: repo, client: &http.Client{Jar: jar}}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return s.send(t, req)
}

func (s *testServer) upload(t *testing.T, fileName, content string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/lab/dataset", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestJSON_Unencodable(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]float64{"x": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to encode response"}`, w.Body.String())
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusTeapot, "nope")

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.JSONEq(t, `{"error":"nope"}`, w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	s.repo.pingErr = errors.New("down")
	code, body = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestGuestDefaults(t *testing.T) {
	s := newTestServer(t, nil)

	code, me := s.do(t, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, workspace.GuestName, me["username"])
	assert.Equal(t, false, me["logged_in"])
	assert.EqualValues(t, 1, me["level"])

	code, settings := s.do(t, http.MethodGet, "/api/lab/settings", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "SQL", settings["track"])
	assert.Equal(t, "beginner", settings["difficulty"])

	code, cfg := s.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sqlite", cfg["query_engine"])
	assert.EqualValues(t, domain.XPPerTask, cfg["xp_per_task"])
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodPut, "/api/lab/settings", map[string]string{"track": "python", "difficulty": "Advanced"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PYTHON", body["track"])
	assert.Equal(t, "advanced", body["difficulty"])

	_, body = s.do(t, http.MethodGet, "/api/lab/settings", nil)
	assert.Equal(t, "PYTHON", body["track"])

	code, _ = s.do(t, http.MethodPut, "/api/lab/settings", map[string]string{"track": "rust", "difficulty": "beginner"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDatasetLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := s.do(t, http.MethodGet, "/api/lab/dataset", nil)
	assert.Equal(t, false, body["loaded"])

	code, body := s.upload(t, "My Sales.csv", "id,amount\n1,9.5\n2,3\n")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "my_sales", body["table_name"])
	assert.EqualValues(t, 2, body["rows"])
	assert.Equal(t, true, body["changed"])

	// Same file name again is ignored until reset.
	code, body = s.upload(t, "My Sales.csv", "other\nx\n")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["changed"])
	assert.EqualValues(t, 2, body["rows"])

	// A rejected upload keeps the previous registration.
	code, body = s.upload(t, "notes.txt", "hello")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "unsupported file type")
	_, body = s.do(t, http.MethodGet, "/api/lab/dataset", nil)
	assert.Equal(t, "my_sales", body["table_name"])

	code, body = s.do(t, http.MethodDelete, "/api/lab/dataset", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["loaded"])

	code, body = s.upload(t, "My Sales.csv", "other\nx\n")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])
	assert.EqualValues(t, 1, body["rows"])
}

func TestUploadTooLarge(t *testing.T) {
	h := NewHandler(newFakeRepo(), workspace.NewManager(), stubRunner{}, identity.NewSessionStore("k", true), Options{MaxUploadBytes: 64})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "big.csv")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("1\n"), 1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/lab/dataset", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.UploadDataset(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRun_SQLOnSample(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "SELECT 1"})
	assert.Equal(t, http.StatusBadRequest, code, "SQL needs a dataset")

	code, body := s.do(t, http.MethodPost, "/api/lab/dataset/sample", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "sales", body["table_name"])

	code, report := s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "SELECT COUNT(*) AS n FROM sales"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, report["ok"])
	table := report["table"].(map[string]any)
	assert.Equal(t, []any{[]any{float64(20)}}, table["rows"])

	code, report = s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "SELECT nope FROM sales"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, report["ok"])
	assert.NotEmpty(t, report["error"])

	_, me := s.do(t, http.MethodGet, "/api/me", nil)
	progress := me["progress"].(map[string]any)
	assert.EqualValues(t, 50, progress["xp"], "only the successful run is awarded")
	assert.EqualValues(t, 1, progress["completed_tasks"])
}

func TestNonFiniteValues(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.upload(t, "nums.csv", "a\n1.5\ninf\n")
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodGet, "/api/lab/dataset", nil)
	require.Equal(t, http.StatusOK, code)
	preview := body["preview"].(map[string]any)
	assert.Equal(t, []any{[]any{"1.5"}, []any{"inf"}}, preview["rows"])

	code, report := s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "SELECT 1e999 AS big FROM nums LIMIT 1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, report["ok"])
	table := report["table"].(map[string]any)
	assert.Equal(t, []any{[]any{nil}}, table["rows"])
}

func TestRun_Script(t *testing.T) {
	s := newTestServer(t, nil)

	code, report := s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "print('x')", "track": "python"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, report["ok"])
	assert.Equal(t, "x\n", report["output"])

	code, _ = s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "x", "track": "cobol"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRun_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{lab.ErrRunInProgress, http.StatusConflict},
		{lab.ErrNoDataset, http.StatusBadRequest},
		{errors.New("store down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := newTestServer(t, stubRunner{err: tt.err})
			code, _ := s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "SELECT 1"})
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestSignupValidation(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad email", map[string]string{"email": "nope", "password": "secret1", "username": "ada"}},
		{"short password", map[string]string{"email": "a@b.c", "password": "123", "username": "ada"}},
		{"no username", map[string]string{"email": "a@b.c", "password": "secret1", "username": " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := s.do(t, http.MethodPost, "/api/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
		})
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)

	code, account := s.do(t, http.MethodPost, "/api/auth/signup",
		map[string]string{"email": "Ada@Example.com", "password": "secret1", "username": "ada"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "ada@example.com", account["email"])
	assert.NotContains(t, account, "password_hash")

	code, _ = s.do(t, http.MethodPost, "/api/auth/signup",
		map[string]string{"email": "ada@example.com", "password": "secret2", "username": "ada2"})
	assert.Equal(t, http.StatusConflict, code)

	// Signing up does not log in.
	code, _ = s.do(t, http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	// Stored progress is taken over on login.
	userID := account["user_id"].(string)
	_, err := s.repo.AddProgress(context.Background(), userID, 500, 10)
	require.NoError(t, err)

	code, me := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ADA@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ada", me["username"])
	assert.Equal(t, true, me["logged_in"])
	assert.EqualValues(t, 2, me["level"])

	code, _ = s.do(t, http.MethodPost, "/api/lab/run", map[string]string{"code": "print(1)", "track": "python"})
	require.Equal(t, http.StatusOK, code)
	stored, err := s.repo.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 550, stored.XP)

	code, profile := s.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, profile["radar"], len(domain.RadarAxes))

	code, me = s.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, workspace.GuestName, me["username"])
	assert.EqualValues(t, 0, me["progress"].(map[string]any)["xp"])

	code, _ = s.do(t, http.MethodGet, "/api/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestListLessons(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.repo.UpsertLessons(context.Background(), []domain.Lesson{
		{Code: "SQL-B-02", Track: domain.TrackSQL, Level: domain.Beginner, Title: "Filter"},
		{Code: "SQL-B-01", Track: domain.TrackSQL, Level: domain.Beginner, Title: "Select"},
		{Code: "PY-B-01", Track: domain.TrackPython, Level: domain.Beginner, Title: "Print"},
	}))

	code, body := s.do(t, http.MethodGet, "/api/lessons", nil)
	require.Equal(t, http.StatusOK, code)
	lessons := body["lessons"].([]any)
	require.Len(t, lessons, 2)
	first := lessons[0].(map[string]any)
	assert.Equal(t, "SQL-B-01", first["code"])
	assert.Equal(t, "SQL-B-01 - Select", first["display_key"])

	code, body = s.do(t, http.MethodGet, "/api/lessons?track=python&difficulty=beginner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["lessons"], 1)

	code, _ = s.do(t, http.MethodGet, "/api/lessons?difficulty=expert", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
