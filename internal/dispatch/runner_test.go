package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/metrics"
	"github.com/jonathan/bizscout/internal/provider"
	"github.com/jonathan/bizscout/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bodyWithResults = `{
		"organic_results": [
			{"position": 1, "title": "Best bakeries", "link": "https://www.timeoutdubai.com/bakeries"}
		],
		"local_results": [
			{"position": 1, "title": "Sweet Crumbs", "place_id": "p1", "website": "https://sweetcrumbs.ae",
			 "phone": "+971 4 123 4567", "address": "Jumeirah, Dubai"},
			{"position": 2, "title": "Flour House", "place_id": "p2", "phone": "04 765 4321"}
		]
	}`
	bodyEmpty = `{"organic_results": [], "local_results": []}`
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedTask struct {
	taskType, outcome string
	newBusinesses     int
}

type fakeRecorder struct {
	tasks []recordedTask
}

func (f *fakeRecorder) RecordTask(taskType, outcome string, newBusinesses, _, _ int, _ time.Duration) {
	f.tasks = append(f.tasks, recordedTask{taskType, outcome, newBusinesses})
}

var _ metrics.Recorder = (*fakeRecorder)(nil)

func TestRunSearchTask_Success(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	search := &fakeSearcher{bodies: []string{bodyWithResults}}
	rec := &fakeRecorder{}
	runner := NewRunner(tasks, search, &fakeResolver{}, rec, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)

	assert.Equal(t, db.TaskStatusDone, result.Status)
	assert.NoError(t, result.Err)
	assert.Equal(t, 2, result.LocalBusinessCount)
	assert.Equal(t, 1, result.OrganicResultCount)
	assert.Equal(t, 2, result.NewBusinesses)
	assert.Equal(t, 3, result.NewSources)
	assert.Equal(t, 1, result.ProviderRequests)

	require.Len(t, tasks.succeeded, 1)
	assert.False(t, tasks.succeeded[0].ZeroResults)
	assert.Len(t, tasks.succeeded[0].ResultHash, 64)

	require.Len(t, search.requests, 1)
	assert.Equal(t, "bakery dubai", search.requests[0].Query)
	assert.Equal(t, "AE", search.requests[0].CountryCode)

	require.Len(t, rec.tasks, 1)
	assert.Equal(t, metrics.OutcomeDone, rec.tasks[0].outcome)
}

func TestRunSearchTask_ZeroResultsIsSkipped(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeLocalSearch)
	rec := &fakeRecorder{}
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{bodyEmpty}}, &fakeResolver{}, rec, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)

	assert.Equal(t, db.TaskStatusSkipped, result.Status)
	require.Len(t, tasks.succeeded, 1)
	assert.True(t, tasks.succeeded[0].ZeroResults)
	assert.Equal(t, metrics.OutcomeSkipped, rec.tasks[0].outcome)
}

func TestRunSearchTask_SameResultsSameHash(t *testing.T) {
	tasks := newFakeTasks(2, types.TaskTypeWebSearch)
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{bodyWithResults}}, &fakeResolver{}, nil, testLogger())

	for i := 0; i < 2; i++ {
		_, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
		require.NoError(t, err)
	}
	require.Len(t, tasks.succeeded, 2)
	assert.Equal(t, tasks.succeeded[0].ResultHash, tasks.succeeded[1].ResultHash)
}

func TestRunSearchTask_ProviderFailure(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	perr := &provider.Error{StatusCode: 503, Attempts: 4, Transient: true, Message: "retries exhausted: service unavailable"}
	search := &fakeSearcher{errs: []error{perr}, bodies: []string{bodyEmpty}}
	rec := &fakeRecorder{}
	resolver := &fakeResolver{}
	runner := NewRunner(tasks, search, resolver, rec, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)

	assert.Equal(t, db.TaskStatusFailed, result.Status)
	require.Error(t, result.Err)
	assert.Equal(t, 4, result.ProviderRequests)
	assert.Equal(t, 0, resolver.calls)

	require.Len(t, tasks.failed, 1)
	assert.Contains(t, tasks.failed[0], "retries exhausted")
	assert.Empty(t, tasks.succeeded)
	assert.Equal(t, metrics.OutcomeFailed, rec.tasks[0].outcome)
}

func TestRunSearchTask_MalformedPayloadFails(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{`{"organic_results": "nope"}`}}, &fakeResolver{}, nil, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, db.TaskStatusFailed, result.Status)
	require.Len(t, tasks.failed, 1)
}

func TestRunSearchTask_ResolveFailureKeepsPartialCounts(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	resolver := &fakeResolver{err: errors.New("insert business: connection reset")}
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{bodyWithResults}}, resolver, nil, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, db.TaskStatusFailed, result.Status)
	assert.Contains(t, tasks.failed[0], "connection reset")
}

func TestRunSearchTask_UnknownTaskType(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskType("IMAGE_SEARCH"))
	search := &fakeSearcher{bodies: []string{bodyEmpty}}
	runner := NewRunner(tasks, search, &fakeResolver{}, nil, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, db.TaskStatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, provider.ErrUnknownTaskType)
	assert.Equal(t, 0, search.calls)
}

func TestRunSearchTask_Empty(t *testing.T) {
	tasks := newFakeTasks(0, types.TaskTypeWebSearch)
	rec := &fakeRecorder{}
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{bodyEmpty}}, &fakeResolver{}, rec, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{TimeBucket: "2026-W42"})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, rec.tasks)
	assert.Equal(t, "2026-W42", tasks.filters[0].TimeBucket)
}

func TestRunSearchTask_ClaimError(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	tasks.claimErr = errors.New("pool closed")
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{bodyEmpty}}, &fakeResolver{}, nil, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunSearchTask_OutcomeWriteError(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	tasks.markErr = errors.New("deadlock detected")
	runner := NewRunner(tasks, &fakeSearcher{bodies: []string{bodyWithResults}}, &fakeResolver{}, nil, testLogger())

	_, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record task success")
}

// blockingSearcher cancels the caller's context mid-call and reports the cancellation.
type blockingSearcher struct {
	cancel context.CancelFunc
}

func (b *blockingSearcher) Search(ctx context.Context, _ provider.Request) (*provider.Response, error) {
	b.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunSearchTask_PersistsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	runner := NewRunner(tasks, &blockingSearcher{cancel: cancel}, &fakeResolver{}, nil, testLogger())

	result, err := runner.RunSearchTask(ctx, db.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, db.TaskStatusFailed, result.Status)
	assert.ErrorIs(t, result.Err, context.Canceled)
	require.Len(t, tasks.failed, 1)
}

func TestRunSearchTask_CancelledSearchCountsIssuedRequests(t *testing.T) {
	tasks := newFakeTasks(1, types.TaskTypeWebSearch)
	cancelled := &provider.Error{Attempts: 3, Message: "cancelled", Cause: context.Canceled}
	runner := NewRunner(tasks, &fakeSearcher{errs: []error{cancelled}, bodies: []string{bodyEmpty}},
		&fakeResolver{}, nil, testLogger())

	result, err := runner.RunSearchTask(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)
	assert.Equal(t, db.TaskStatusFailed, result.Status)
	assert.Equal(t, 3, result.ProviderRequests)
	assert.ErrorIs(t, result.Err, context.Canceled)
}
