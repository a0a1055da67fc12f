package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/metrics"
	"github.com/jonathan/bizscout/internal/normalize"
	"github.com/jonathan/bizscout/internal/provider"
	"github.com/jonathan/bizscout/internal/types"
)

// persistTimeout bounds outcome writes that run after the caller's context ended.
const persistTimeout = 10 * time.Second

// Runner executes single search tasks end to end.
type Runner struct {
	tasks    TaskStore
	search   Searcher
	resolver Resolver
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner creates a Runner. recorder and logger may be nil.
func NewRunner(tasks TaskStore, search Searcher, resolver Resolver, recorder metrics.Recorder, logger *slog.Logger) *Runner {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		tasks:    tasks,
		search:   search,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// RunSearchTask claims one eligible task and drives it through provider call,
// normalization and resolution, then records the outcome on the task.
//
// Task-level failures are reported in TaskResult.Err with Status FAILED. The
// returned error is reserved for store failures (claim or outcome write).
func (r *Runner) RunSearchTask(ctx context.Context, filter db.ClaimFilter) (*TaskResult, error) {
	start := r.now()

	task, err := r.tasks.ClaimNext(ctx, filter)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return &TaskResult{Status: StatusEmpty}, nil
	}

	result := &TaskResult{TaskID: task.ID, TaskType: task.TaskType}
	completion, execErr := r.execute(ctx, task, result)

	// Outcomes are persisted even when ctx was cancelled mid-task.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if execErr != nil {
		result.Status = db.TaskStatusFailed
		result.Err = execErr
		if _, err := r.tasks.MarkFailed(persistCtx, task, execErr.Error()); err != nil {
			return result, fmt.Errorf("failed to record task failure: %w", err)
		}
	} else {
		updated, err := r.tasks.MarkSucceeded(persistCtx, task, completion)
		if err != nil {
			return result, fmt.Errorf("failed to record task success: %w", err)
		}
		result.Status = updated.Status
	}

	result.Duration = r.now().Sub(start)
	r.record(result)
	return result, nil
}

func (r *Runner) execute(ctx context.Context, task *db.SearchTask, result *TaskResult) (db.TaskCompletion, error) {
	taskType := types.TaskType(task.TaskType)
	if !taskType.Valid() {
		return db.TaskCompletion{}, fmt.Errorf("%w: %s", provider.ErrUnknownTaskType, task.TaskType)
	}

	resp, err := r.search.Search(ctx, provider.Request{
		TaskType:    taskType,
		Query:       task.QueryText,
		CountryCode: task.CountryCode,
		Language:    task.Language,
		City:        task.CityOrEmpty(),
		Page:        task.Page,
	})
	if err != nil {
		var perr *provider.Error
		if errors.As(err, &perr) {
			result.ProviderRequests = perr.Attempts
		}
		return db.TaskCompletion{}, err
	}
	result.ProviderRequests = resp.Attempts

	results, err := normalize.Normalize(taskType, resp.Body)
	if err != nil {
		return db.TaskCompletion{}, err
	}
	result.OrganicResultCount = len(results.OrganicResults)
	result.LocalBusinessCount = len(results.LocalBusinesses)
	if results.DroppedLocal > 0 {
		r.logger.Warn("dropped unnamed local results", "task_id", task.ID, "count", results.DroppedLocal)
	}

	outcome, err := r.resolver.Resolve(ctx, task, results)
	if outcome != nil {
		result.NewBusinesses = outcome.NewBusinesses
		result.NewSources = outcome.NewSources
	}
	if err != nil {
		return db.TaskCompletion{}, err
	}

	return db.TaskCompletion{
		ResultHash:  normalize.ContentHash(results),
		ZeroResults: results.Empty(),
	}, nil
}

func (r *Runner) record(result *TaskResult) {
	outcome := metrics.OutcomeDone
	switch result.Status {
	case db.TaskStatusFailed:
		outcome = metrics.OutcomeFailed
	case db.TaskStatusSkipped:
		outcome = metrics.OutcomeSkipped
	}
	r.recorder.RecordTask(result.TaskType, outcome, result.NewBusinesses, result.NewSources,
		result.ProviderRequests, result.Duration)

	attrs := []any{
		"task_id", result.TaskID,
		"task_type", result.TaskType,
		"status", result.Status,
		"duration_ms", result.Duration.Milliseconds(),
		"new_businesses", result.NewBusinesses,
		"new_sources", result.NewSources,
		"provider_requests", result.ProviderRequests,
	}
	if result.Err != nil {
		r.logger.Warn("search task failed", append(attrs, "error", result.Err)...)
		return
	}
	r.logger.Info("search task completed", attrs...)
}
