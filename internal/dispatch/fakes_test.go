package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/provider"
	"github.com/jonathan/bizscout/internal/resolve"
	"github.com/jonathan/bizscout/internal/types"
)

type fakeTasks struct {
	mu        sync.Mutex
	queue     []*db.SearchTask
	succeeded []db.TaskCompletion
	failed    []string
	claimErr  error
	markErr   error
	filters   []db.ClaimFilter
}

func newFakeTasks(n int, taskType types.TaskType) *fakeTasks {
	f := &fakeTasks{}
	for i := 0; i < n; i++ {
		f.queue = append(f.queue, &db.SearchTask{
			ID: uuid.New(), TaskType: string(taskType), CountryCode: "AE",
			QueryText: "bakery dubai", Language: "en", Page: i, Status: db.TaskStatusPending,
		})
	}
	return f
}

func (f *fakeTasks) ClaimNext(_ context.Context, filter db.ClaimFilter) (*db.SearchTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.queue) == 0 {
		return nil, nil
	}
	t := f.queue[0]
	f.queue = f.queue[1:]
	t.Status = db.TaskStatusRunning
	t.Attempts++
	return t, nil
}

func (f *fakeTasks) MarkSucceeded(_ context.Context, task *db.SearchTask, c db.TaskCompletion) (*db.SearchTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return nil, f.markErr
	}
	f.succeeded = append(f.succeeded, c)
	updated := *task
	updated.Status = db.TaskStatusDone
	if c.ZeroResults {
		updated.Status = db.TaskStatusSkipped
	}
	updated.LastResultHash = &c.ResultHash
	return &updated, nil
}

func (f *fakeTasks) MarkFailed(_ context.Context, task *db.SearchTask, msg string) (*db.SearchTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return nil, f.markErr
	}
	f.failed = append(f.failed, msg)
	updated := *task
	updated.Status = db.TaskStatusFailed
	return &updated, nil
}

// fakeSearcher returns bodies in order; the last entry repeats.
type fakeSearcher struct {
	mu       sync.Mutex
	bodies   []string
	errs     []error
	calls    int
	requests []provider.Request
}

func (f *fakeSearcher) Search(_ context.Context, req provider.Request) (*provider.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	body := f.bodies[min(i, len(f.bodies)-1)]
	return &provider.Response{TaskType: req.TaskType, Body: []byte(body), Attempts: 1}, nil
}

type fakeResolver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, _ *db.SearchTask, results *types.NormalizedResults) (*resolve.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return &resolve.Outcome{}, f.err
	}
	return &resolve.Outcome{
		NewBusinesses: len(results.LocalBusinesses),
		NewSources:    len(results.OrganicResults) + len(results.LocalBusinesses),
		Evidence:      len(results.LocalBusinesses),
	}, nil
}

type fakeRuns struct {
	mu          sync.Mutex
	runs        map[uuid.UUID]*db.JobRun
	progress    []db.RunCounters
	finalized   int
	cancelAfter int // report cancelled once this many progress updates were seen; 0 disables
	createErr   error
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: make(map[uuid.UUID]*db.JobRun)}
}

func (f *fakeRuns) CreateJobRun(_ context.Context, input db.JobRunInput) (*db.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	run := &db.JobRun{ID: uuid.New(), JobRequestID: input.JobRequestID, Kind: input.Kind,
		Status: db.RunStatusRunning, StartedAt: time.Now()}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRuns) UpdateJobRunProgress(_ context.Context, id uuid.UUID, c db.RunCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, c)
	f.runs[id].RunCounters = c
	return nil
}

func (f *fakeRuns) FinalizeJobRun(_ context.Context, id uuid.UUID, status string, c db.RunCounters, errText string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return false, errors.New("job run not found")
	}
	if run.FinishedAt != nil {
		return false, nil
	}
	f.finalized++
	now := time.Now()
	run.Status, run.RunCounters, run.FinishedAt = status, c, &now
	if errText != "" {
		run.ErrorText = &errText
	}
	return true, nil
}

func (f *fakeRuns) IsJobRequestCancelled(_ context.Context, _ uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelAfter > 0 && len(f.progress) >= f.cancelAfter, nil
}

func (f *fakeRuns) only() *db.JobRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		return r
	}
	return nil
}
