// Package dispatch drives search-task execution: a single-task Runner, a bounded
// Session that records progress on a JobRun, an unbounded Loop for background
// workers, and a Poller that turns queued job requests into sessions.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/provider"
	"github.com/jonathan/bizscout/internal/resolve"
	"github.com/jonathan/bizscout/internal/types"
)

// State is a session state.
type State string

// Session states
const (
	StateIdle       State = "IDLE"
	StateClaiming   State = "CLAIMING"
	StateExecuting  State = "EXECUTING"
	StatePersisting State = "PERSISTING"
	StateStopped    State = "STOPPED"
)

// StopReason explains why a session stopped.
type StopReason string

// Stop reasons
const (
	StopCancelled  StopReason = "cancelled"
	StopMaxTasks   StopReason = "max_tasks"
	StopEmpty      StopReason = "empty"
	StopTaskFailed StopReason = "task_failed"
	StopError      StopReason = "error"
	StopShutdown   StopReason = "shutdown"
)

// StatusEmpty is reported by RunSearchTask when no task was eligible.
const StatusEmpty = "EMPTY"

// TaskResult is the outcome of one RunSearchTask call.
type TaskResult struct {
	TaskID             uuid.UUID     `json:"task_id"`
	TaskType           string        `json:"task_type,omitempty"`
	Status             string        `json:"status"`
	NewBusinesses      int           `json:"new_businesses"`
	NewSources         int           `json:"new_sources"`
	LocalBusinessCount int           `json:"local_business_count"`
	OrganicResultCount int           `json:"organic_result_count"`
	ProviderRequests   int           `json:"provider_requests"`
	Duration           time.Duration `json:"duration"`
	Err                error         `json:"-"`
}

// Empty reports whether no task was claimed.
func (r *TaskResult) Empty() bool {
	return r.Status == StatusEmpty
}

// TaskStore claims tasks and records outcomes. *db.TaskStore implements it.
type TaskStore interface {
	ClaimNext(ctx context.Context, filter db.ClaimFilter) (*db.SearchTask, error)
	MarkSucceeded(ctx context.Context, task *db.SearchTask, completion db.TaskCompletion) (*db.SearchTask, error)
	MarkFailed(ctx context.Context, task *db.SearchTask, errMsg string) (*db.SearchTask, error)
}

// Searcher issues provider calls. *provider.Client implements it.
type Searcher interface {
	Search(ctx context.Context, req provider.Request) (*provider.Response, error)
}

// Resolver persists normalized results. *resolve.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, task *db.SearchTask, results *types.NormalizedResults) (*resolve.Outcome, error)
}

// RunStore records session progress. *db.DB implements it.
type RunStore interface {
	CreateJobRun(ctx context.Context, input db.JobRunInput) (*db.JobRun, error)
	UpdateJobRunProgress(ctx context.Context, id uuid.UUID, c db.RunCounters) error
	FinalizeJobRun(ctx context.Context, id uuid.UUID, status string, c db.RunCounters, errText string) (bool, error)
	IsJobRequestCancelled(ctx context.Context, id uuid.UUID) (bool, error)
}

// RequestStore hands out queued job requests. *db.DB implements it.
type RequestStore interface {
	ClaimNextJobRequest(ctx context.Context, kind string) (*db.JobRequest, error)
	FinishJobRequest(ctx context.Context, req *db.JobRequest, status, errMsg string) error
	ReleaseJobRequest(ctx context.Context, req *db.JobRequest, processed int, errMsg string) error
}

var (
	_ TaskStore    = (*db.TaskStore)(nil)
	_ Searcher     = (*provider.Client)(nil)
	_ Resolver     = (*resolve.Resolver)(nil)
	_ RunStore     = (*db.DB)(nil)
	_ RequestStore = (*db.DB)(nil)
)
