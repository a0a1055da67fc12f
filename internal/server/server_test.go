package server

import (
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

	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	pingErr   error
	runs      []db.JobRun
	requests  map[uuid.UUID]*db.JobRequest
	lastLimit int
	cancelErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{requests: make(map[uuid.UUID]*db.JobRequest)}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetJobRun(_ context.Context, id uuid.UUID) (*db.JobRun, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListJobRuns(_ context.Context, limit int) ([]db.JobRun, error) {
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.runs, nil
}

func (f *fakeStore) CreateJobRequest(_ context.Context, input db.JobRequestInput) (*db.JobRequest, error) {
	req := &db.JobRequest{ID: uuid.New(), Kind: input.Kind, Status: db.RequestStatusPending, CreatedAt: time.Now()}
	if input.MaxTasks > 0 {
		req.MaxTasks = &input.MaxTasks
	}
	if input.TimeBucket != "" {
		req.TimeBucket = &input.TimeBucket
	}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeStore) GetJobRequest(_ context.Context, id uuid.UUID) (*db.JobRequest, error) {
	return f.requests[id], nil
}

func (f *fakeStore) RequestCancel(_ context.Context, id uuid.UUID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.requests[id].CancelRequested = true
	return nil
}

type fakeCounter map[string]int

func (f fakeCounter) CountTasksByStatus(context.Context) (map[string]int, error) {
	return f, nil
}

func newTestServer(store *fakeStore, tasks TaskCounter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("bizscout_tasks_run_total 3\n"))
	})
	return New(Config{Addr: ":0", Metrics: metrics, Logger: logger}, store, tasks).Router()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(store, nil)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	store.pingErr = errors.New("connection refused")
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decode(t, rec)["error"])
}

func TestMetricsRoute(t *testing.T) {
	rec := do(t, newTestServer(newFakeStore(), nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bizscout_tasks_run_total")
}

func TestListJobRuns(t *testing.T) {
	store := newFakeStore()
	store.runs = []db.JobRun{
		{ID: uuid.New(), Kind: db.JobKindSearchSession, Status: db.RunStatusRunning, RunCounters: db.RunCounters{ProcessedTasks: 2}},
		{ID: uuid.New(), Kind: db.JobKindSearchSession, Status: db.RunStatusSuccess},
	}
	h := newTestServer(store, nil)

	rec := do(t, h, http.MethodGet, "/job-runs?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["count"])
	assert.Equal(t, maxListLimit, store.lastLimit)

	runs := body["job_runs"].([]any)
	first := runs[0].(map[string]any)
	assert.Equal(t, "RUNNING", first["status"])
	assert.EqualValues(t, 2, first["processed_tasks"])

	rec = do(t, h, http.MethodGet, "/job-runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, store.lastLimit)
}

func TestListJobRuns_EmptyAndErrors(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(store, nil)

	rec := do(t, h, http.MethodGet, "/job-runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"job_runs": [], "count": 0}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/job-runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.listErr = errors.New("boom")
	rec = do(t, h, http.MethodGet, "/job-runs", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetJobRun(t *testing.T) {
	store := newFakeStore()
	run := db.JobRun{ID: uuid.New(), Status: db.RunStatusFailed}
	store.runs = []db.JobRun{run}
	h := newTestServer(store, nil)

	rec := do(t, h, http.MethodGet, "/job-runs/"+run.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, run.ID.String(), decode(t, rec)["id"])

	rec = do(t, h, http.MethodGet, "/job-runs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/job-runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobRequestLifecycle(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(store, nil)

	rec := do(t, h, http.MethodPost, "/job-requests", `{"max_tasks": 25, "time_bucket": " weekly-2026-42 "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)
	assert.Equal(t, db.RequestStatusPending, created["status"])
	assert.Equal(t, db.JobKindSearchSession, created["kind"])
	assert.Equal(t, "weekly-2026-42", created["time_bucket"])
	assert.EqualValues(t, 25, created["max_tasks"])

	id := created["id"].(string)
	rec = do(t, h, http.MethodGet, "/job-requests/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/job-requests/"+id+"/cancel", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, store.requests[uuid.MustParse(id)].CancelRequested)
}

func TestCreateJobRequest_Invalid(t *testing.T) {
	h := newTestServer(newFakeStore(), nil)

	rec := do(t, h, http.MethodPost, "/job-requests", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/job-requests", `{"max_tasks": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "max_tasks")
}

func TestCancelJobRequest_Errors(t *testing.T) {
	store := newFakeStore()
	h := newTestServer(store, nil)

	rec := do(t, h, http.MethodPost, "/job-requests/"+uuid.NewString()+"/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req, _ := store.CreateJobRequest(context.Background(), db.JobRequestInput{Kind: db.JobKindSearchSession})
	store.cancelErr = errors.New("job request not found or already finished")
	rec = do(t, h, http.MethodPost, "/job-requests/"+req.ID.String()+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "already finished")
}

func TestTaskStats(t *testing.T) {
	h := newTestServer(newFakeStore(), fakeCounter{db.TaskStatusPending: 7, db.TaskStatusDone: 3})

	rec := do(t, h, http.MethodGet, "/tasks/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 10, body["total"])
	assert.EqualValues(t, 7, body["by_status"].(map[string]any)["PENDING"])

	rec = do(t, newTestServer(newFakeStore(), nil), http.MethodGet, "/tasks/stats", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(&ErrNotFound{Kind: "job run", ID: "x"}))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ErrValidation{Field: "id"}))
	assert.Equal(t, http.StatusConflict, HTTPStatus(&ErrConflict{Message: "nope"}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestStart_ShutsDownOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{Addr: "127.0.0.1:0", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, newFakeStore(), nil)

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
