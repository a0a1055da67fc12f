package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonathan/bizscout/internal/config"
	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/dispatch"
	"github.com/jonathan/bizscout/internal/metrics"
	"github.com/jonathan/bizscout/internal/provider"
	"github.com/jonathan/bizscout/internal/ratelimit"
	"github.com/jonathan/bizscout/internal/resolve"
	"github.com/jonathan/bizscout/internal/types"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openDB(ctx context.Context, c *config.Config) (*db.DB, error) {
	if err := c.RequireDatabase(); err != nil {
		return nil, err
	}
	database, err := db.Connect(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

func schedulePolicy(c *config.Config) db.SchedulePolicy {
	return db.SchedulePolicy{
		BackoffBase:           c.Scheduler.BackoffBase,
		MaxAttempts:           c.Scheduler.MaxAttempts,
		RefreshInterval:       c.Scheduler.RefreshInterval,
		WeeklyRefreshInterval: c.Scheduler.WeeklyRefreshInterval,
	}
}

// buildProviderClient registers an engine for every task type the configuration
// has credentials for. Task types without an engine fail terminally when claimed.
func buildProviderClient(ctx context.Context, c *config.Config, httpClient *http.Client, log *slog.Logger) (*provider.Client, error) {
	limiters := ratelimit.NewRegistry(map[string]float64{
		ratelimit.KindSerp: c.Serp.RPS,
		ratelimit.KindCSE:  c.CSE.RPS,
	})
	client := provider.NewClient(limiters, &provider.Options{
		Timeout:     c.Provider.Timeout,
		MaxAttempts: c.Provider.MaxAttempts,
		RetryBase:   c.Provider.RetryBase,
	}, log)

	if c.Serp.APIKey != "" {
		client.Register(provider.NewSerpEngine(c.Serp.APIKey, c.Serp.BaseURL, httpClient),
			types.TaskTypeWebSearch, types.TaskTypeLocalSearch, types.TaskTypeMapsSearch)
	} else {
		log.Warn("SERP_API_KEY not set; web, local and maps tasks will fail")
	}

	if c.CSE.APIKey != "" && c.CSE.CX != "" {
		cse, err := provider.NewCSEEngine(ctx, provider.CSEOptions{
			APIKey:     c.CSE.APIKey,
			CX:         c.CSE.CX,
			Endpoint:   c.CSE.Endpoint,
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}
		client.Register(cse, types.TaskTypeCSESearch)
	} else {
		log.Warn("CSE_API_KEY or CSE_CX not set; custom search tasks will fail")
	}
	return client, nil
}

// app bundles the components shared by the task-running commands.
type app struct {
	db       *db.DB
	tasks    *db.TaskStore
	client   *provider.Client
	runner   *dispatch.Runner
	recorder *metrics.PrometheusRecorder
}

func newApp(ctx context.Context, c *config.Config, log *slog.Logger) (*app, error) {
	database, err := openDB(ctx, c)
	if err != nil {
		return nil, err
	}
	client, err := buildProviderClient(ctx, c, nil, log)
	if err != nil {
		database.Close()
		return nil, err
	}

	tasks := db.NewTaskStore(database, schedulePolicy(c))
	recorder := metrics.NewPrometheusRecorder()
	runner := dispatch.NewRunner(tasks, client, resolve.New(database, log), recorder, log)
	return &app{db: database, tasks: tasks, client: client, runner: runner, recorder: recorder}, nil
}

func (a *app) Close() {
	logger.Info("provider requests issued", "count", a.client.RequestCount())
	a.db.Close()
}

// requireEngines rejects an explicit task-type filter naming a type no engine serves.
func requireEngines(client *provider.Client, taskTypes []string) error {
	var missing []string
	for _, s := range taskTypes {
		if !client.Supports(types.TaskType(s)) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no provider configured for task types %s", strings.Join(missing, ", "))
	}
	return nil
}

func taskTypeFilter(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		t := types.TaskType(s)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown task type %q", s)
		}
		out = append(out, s)
	}
	return out, nil
}
