package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonathan/bizscout/internal/db"
)

// Default loop delays
const (
	DefaultEmptyDelay   = 30 * time.Second
	DefaultSkippedDelay = 15 * time.Second
	DefaultBusyDelay    = time.Second
)

// LoopOptions configures an unbounded worker loop.
type LoopOptions struct {
	Filter       db.ClaimFilter
	EmptyDelay   time.Duration
	SkippedDelay time.Duration
	BusyDelay    time.Duration
}

// Loop repeatedly runs tasks until its context ends. After each run it schedules
// the next one after a delay that depends on the outcome.
type Loop struct {
	runner *Runner
	opts   LoopOptions
	logger *slog.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a Loop. Zero delays use the defaults.
func NewLoop(runner *Runner, opts LoopOptions, logger *slog.Logger) *Loop {
	if opts.EmptyDelay <= 0 {
		opts.EmptyDelay = DefaultEmptyDelay
	}
	if opts.SkippedDelay <= 0 {
		opts.SkippedDelay = DefaultSkippedDelay
	}
	if opts.BusyDelay <= 0 {
		opts.BusyDelay = DefaultBusyDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{runner: runner, opts: opts, logger: logger, wait: waitFor}
}

// Run blocks until ctx is done. It returns nil on a clean shutdown.
func (l *Loop) Run(ctx context.Context) error {
	for {
		delay := l.Step(ctx)
		if err := l.wait(ctx, delay); err != nil {
			if IsShutdown(err) {
				return nil
			}
			return err
		}
	}
}

// Step runs one task and returns the delay before the next.
func (l *Loop) Step(ctx context.Context) time.Duration {
	result, err := l.runner.RunSearchTask(ctx, l.opts.Filter)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("worker loop store failure", "error", err)
		}
		return l.opts.EmptyDelay
	}
	return l.NextDelay(result)
}

// NextDelay maps a task result to the wait before the next run.
func (l *Loop) NextDelay(result *TaskResult) time.Duration {
	switch {
	case result == nil || result.Empty():
		return l.opts.EmptyDelay
	case result.Status == db.TaskStatusSkipped:
		return l.opts.SkippedDelay
	default:
		return l.opts.BusyDelay
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
