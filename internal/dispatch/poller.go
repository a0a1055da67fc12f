package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/bizscout/internal/db"
)

// DefaultPollInterval is how often an idle Poller checks for job requests.
const DefaultPollInterval = 10 * time.Second

// Poller claims queued job requests and runs one bounded session per request.
type Poller struct {
	requests RequestStore
	session  *Session
	interval time.Duration
	logger   *slog.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller.
func NewPoller(requests RequestStore, session *Session, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{requests: requests, session: session, interval: interval, logger: logger, wait: waitFor}
}

// Run polls until ctx is done. It returns nil on a clean shutdown.
func (p *Poller) Run(ctx context.Context) error {
	for {
		handled, err := p.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("job request poll failed", "error", err)
		}
		if handled {
			continue
		}
		if err := p.wait(ctx, p.interval); err != nil {
			if IsShutdown(err) {
				return nil
			}
			return err
		}
	}
}

// RunOnce claims at most one job request and runs it. It reports whether a
// request was handled.
func (p *Poller) RunOnce(ctx context.Context) (bool, error) {
	req, err := p.requests.ClaimNextJobRequest(ctx, db.JobKindSearchSession)
	if err != nil {
		return false, err
	}
	if req == nil {
		return false, nil
	}

	opts := SessionOptions{JobRequestID: &req.ID}
	if req.MaxTasks != nil {
		opts.MaxTasks = *req.MaxTasks
	}
	if req.TimeBucket != nil {
		opts.TimeBucket = *req.TimeBucket
	}

	p.logger.Info("job request claimed", "job_request_id", req.ID, "max_tasks", opts.MaxTasks)
	res, runErr := p.session.Run(ctx, opts)

	status, errMsg := db.RequestStatusFailed, ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if res != nil {
		status = requestStatusFor(res.Status)
		if res.Err != nil && errMsg == "" {
			errMsg = res.Err.Error()
		}
	}

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if status == db.RequestStatusPending {
		if err := p.requests.ReleaseJobRequest(finishCtx, req, res.Counters.ProcessedTasks, errMsg); err != nil {
			return true, fmt.Errorf("failed to release job request %s: %w", req.ID, err)
		}
		p.logger.Info("job request released after shutdown", "job_request_id", req.ID,
			"processed", res.Counters.ProcessedTasks)
		return true, runErr
	}
	if err := p.requests.FinishJobRequest(finishCtx, req, status, errMsg); err != nil {
		return true, fmt.Errorf("failed to finish job request %s: %w", req.ID, err)
	}
	return true, runErr
}

// requestStatusFor maps a finished run to its request status. An interrupted run
// puts the request back in the queue.
func requestStatusFor(runStatus string) string {
	switch runStatus {
	case db.RunStatusSuccess:
		return db.RequestStatusDone
	case db.RunStatusCancelled:
		return db.RequestStatusCancelled
	case db.RunStatusInterrupted:
		return db.RequestStatusPending
	default:
		return db.RequestStatusFailed
	}
}
