package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonathan/bizscout/internal/db"
)

// SessionOptions bound one session.
type SessionOptions struct {
	// MaxTasks stops the session after this many processed tasks; 0 means no cap,
	// in which case the first task failure ends the session as FAILED.
	MaxTasks     int
	TimeBucket   string
	TaskTypes    []string
	JobRequestID *uuid.UUID

	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// SessionResult summarizes a finished session.
type SessionResult struct {
	RunID    uuid.UUID
	Status   string
	Reason   StopReason
	Counters db.RunCounters
	Err      error
}

// Session runs bounded dispatch sessions and records them as JobRuns.
type Session struct {
	runner *Runner
	runs   RunStore
	logger *slog.Logger
}

// NewSession creates a Session.
func NewSession(runner *Runner, runs RunStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{runner: runner, runs: runs, logger: logger}
}

// Run executes tasks until a stop condition holds and finalizes the JobRun exactly once.
// Stop conditions are checked after every task: cancellation of the owning job
// request, the task cap, and an empty queue. Counters are persisted after each task.
func (s *Session) Run(ctx context.Context, opts SessionOptions) (*SessionResult, error) {
	transition := func(st State) {
		if opts.OnState != nil {
			opts.OnState(st)
		}
	}
	transition(StateIdle)

	run, err := s.runs.CreateJobRun(ctx, db.JobRunInput{
		JobRequestID: opts.JobRequestID,
		Kind:         db.JobKindSearchSession,
		MaxTasks:     opts.MaxTasks,
		TimeBucket:   opts.TimeBucket,
	})
	if err != nil {
		transition(StateStopped)
		return nil, err
	}

	log := s.logger.With("run_id", run.ID)
	log.Info("session started", "max_tasks", opts.MaxTasks, "time_bucket", opts.TimeBucket)

	filter := db.ClaimFilter{TimeBucket: opts.TimeBucket, TaskTypes: opts.TaskTypes}
	res := &SessionResult{RunID: run.ID}

	for {
		if reason, stop := s.checkBoundary(ctx, opts, res, log); stop {
			res.Reason = reason
			break
		}

		transition(StateClaiming)
		transition(StateExecuting)
		task, err := s.runner.RunSearchTask(ctx, filter)
		if err != nil {
			res.Reason = StopError
			res.Err = err
			break
		}
		if task.Empty() {
			res.Reason = StopEmpty
			break
		}

		transition(StatePersisting)
		s.apply(res, task)
		if err := s.runs.UpdateJobRunProgress(ctx, run.ID, res.Counters); err != nil {
			log.Warn("failed to persist session progress", "error", err)
		}

		if task.Err != nil && opts.MaxTasks <= 0 {
			res.Reason = StopTaskFailed
			res.Err = fmt.Errorf("task %s failed: %w", task.TaskID, task.Err)
			break
		}
		if opts.MaxTasks > 0 && res.Counters.ProcessedTasks >= opts.MaxTasks {
			res.Reason = StopMaxTasks
			break
		}
	}

	res.Status = statusFor(res.Reason)
	finalErr := s.finalize(ctx, run.ID, res)
	transition(StateStopped)

	log.Info("session finished",
		"status", res.Status,
		"reason", res.Reason,
		"processed", res.Counters.ProcessedTasks,
		"done", res.Counters.Done,
		"failed", res.Counters.Failed,
		"skipped", res.Counters.Skipped,
		"new_businesses", res.Counters.NewBusinesses,
		"new_sources", res.Counters.NewSources,
		"provider_requests", res.Counters.ProviderRequests,
	)
	return res, finalErr
}

// checkBoundary evaluates the conditions observed between tasks.
func (s *Session) checkBoundary(ctx context.Context, opts SessionOptions, res *SessionResult, log *slog.Logger) (StopReason, bool) {
	if ctx.Err() != nil {
		res.Err = ctx.Err()
		return StopShutdown, true
	}
	if opts.JobRequestID != nil {
		cancelled, err := s.runs.IsJobRequestCancelled(ctx, *opts.JobRequestID)
		if err != nil {
			log.Warn("failed to read cancel flag", "error", err)
		} else if cancelled {
			return StopCancelled, true
		}
	}
	return "", false
}

func (s *Session) apply(res *SessionResult, task *TaskResult) {
	c := &res.Counters
	c.ProcessedTasks++
	switch task.Status {
	case db.TaskStatusDone:
		c.Done++
	case db.TaskStatusSkipped:
		c.Skipped++
	case db.TaskStatusFailed:
		c.Failed++
	}
	c.NewBusinesses += task.NewBusinesses
	c.NewSources += task.NewSources
	c.ProviderRequests += task.ProviderRequests
}

// finalize writes the terminal JobRun record and combines any persistence error
// with the session error.
func (s *Session) finalize(ctx context.Context, runID uuid.UUID, res *SessionResult) error {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	var result *multierror.Error
	if res.Status == db.RunStatusFailed && res.Err != nil {
		result = multierror.Append(result, res.Err)
	}
	finalized, err := s.runs.FinalizeJobRun(persistCtx, runID, res.Status, res.Counters, errText)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to finalize job run %s: %w", runID, err))
	} else if !finalized {
		result = multierror.Append(result, fmt.Errorf("job run %s was already finalized", runID))
	}
	return result.ErrorOrNil()
}

func statusFor(reason StopReason) string {
	switch reason {
	case StopCancelled:
		return db.RunStatusCancelled
	case StopShutdown:
		return db.RunStatusInterrupted
	case StopTaskFailed, StopError:
		return db.RunStatusFailed
	default:
		return db.RunStatusSuccess
	}
}

// IsShutdown reports whether err came from the caller's context ending.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
