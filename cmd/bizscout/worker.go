package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/dispatch"
	"github.com/jonathan/bizscout/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background worker",
	Long: `Run N task loops, a job-request poller and the ops HTTP server until interrupted.
Stale RUNNING tasks and job requests left by crashed workers are released at start
and periodically.`,
	RunE: runWorker,
}

var (
	workerConcurrency int
	workerAddr        string
	workerBucket      string
	workerNoPoller    bool
)

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Number of task loops (default from config)")
	workerCmd.Flags().StringVar(&workerAddr, "addr", "", "Ops/metrics listen address, e.g. :9090 (default from config; empty disables)")
	workerCmd.Flags().StringVar(&workerBucket, "time-bucket", "", "Only claim tasks in this time bucket")
	workerCmd.Flags().BoolVar(&workerNoPoller, "no-poller", false, "Do not process queued job requests")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	concurrency := cfg.Worker.Concurrency
	if workerConcurrency > 0 {
		concurrency = workerConcurrency
	}
	addr := cfg.Worker.MetricsAddr
	if workerAddr != "" {
		addr = workerAddr
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	releaseStale(ctx, a, cfg.Scheduler.StaleAfter)

	g, gctx := errgroup.WithContext(ctx)
	loopOpts := dispatch.LoopOptions{
		Filter:       db.ClaimFilter{TimeBucket: workerBucket},
		EmptyDelay:   cfg.Worker.EmptyDelay,
		SkippedDelay: cfg.Worker.SkippedDelay,
		BusyDelay:    cfg.Worker.BusyDelay,
	}
	for i := 0; i < concurrency; i++ {
		loop := dispatch.NewLoop(a.runner, loopOpts, logger.With("loop", i))
		g.Go(func() error { return loop.Run(gctx) })
	}

	if !workerNoPoller {
		session := dispatch.NewSession(a.runner, a.db, logger)
		poller := dispatch.NewPoller(a.db, session, cfg.Worker.PollInterval, logger.With("component", "poller"))
		g.Go(func() error { return poller.Run(gctx) })
	}

	if addr != "" {
		srv := server.New(server.Config{Addr: addr, Metrics: a.recorder.Handler(), Logger: logger}, a.db, a.tasks)
		g.Go(func() error { return srv.Start(gctx) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(staleSweepInterval(cfg.Scheduler.StaleAfter))
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				releaseStale(gctx, a, cfg.Scheduler.StaleAfter)
			}
		}
	})

	logger.Info("worker started", "concurrency", concurrency, "addr", addr, "poller", !workerNoPoller)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	logger.Info("worker stopped")
	return nil
}

// staleReleaser is implemented by *db.TaskStore.
type staleReleaser interface {
	ReleaseStaleTasks(ctx context.Context, olderThan time.Duration) (int64, error)
}

// staleRequestReleaser is implemented by *db.DB.
type staleRequestReleaser interface {
	ReleaseStaleJobRequests(ctx context.Context, olderThan time.Duration) (int64, error)
}

func releaseStale(ctx context.Context, a *app, olderThan time.Duration) {
	sweepStale(ctx, a.tasks, a.db, olderThan)
}

func sweepStale(ctx context.Context, tasks staleReleaser, requests staleRequestReleaser, olderThan time.Duration) {
	if olderThan <= 0 {
		return
	}
	n, err := tasks.ReleaseStaleTasks(ctx, olderThan)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("failed to release stale tasks", "error", err)
		}
	} else if n > 0 {
		logger.Warn("released stale running tasks", "count", n, "older_than", olderThan)
	}

	n, err = requests.ReleaseStaleJobRequests(ctx, olderThan)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("failed to release stale job requests", "error", err)
		}
		return
	}
	if n > 0 {
		logger.Warn("released stale running job requests", "count", n, "older_than", olderThan)
	}
}

// staleSweepInterval runs the sweep several times per stale window, no more often than once a minute.
func staleSweepInterval(staleAfter time.Duration) time.Duration {
	return max(staleAfter/4, time.Minute)
}
