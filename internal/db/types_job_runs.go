package db

import (
	"time"

	"github.com/google/uuid"
)

// JobRun status constants
const (
	RunStatusRunning   = "RUNNING"
	RunStatusSuccess   = "SUCCESS"
	RunStatusFailed    = "FAILED"
	RunStatusCancelled = "CANCELLED"
	// RunStatusInterrupted marks a run stopped by worker shutdown or crash. Its job
	// request, if any, goes back to PENDING.
	RunStatusInterrupted = "INTERRUPTED"
)

// JobRequest status constants
const (
	RequestStatusPending   = "PENDING"
	RequestStatusRunning   = "RUNNING"
	RequestStatusDone      = "DONE"
	RequestStatusFailed    = "FAILED"
	RequestStatusCancelled = "CANCELLED"
)

// JobKindSearchSession is the job kind for a bounded search-task dispatch session.
const JobKindSearchSession = "search_session"

// RunCounters are the per-session progress counters persisted on a JobRun.
type RunCounters struct {
	ProcessedTasks   int `json:"processed_tasks"`
	Done             int `json:"done"`
	Failed           int `json:"failed"`
	Skipped          int `json:"skipped"`
	NewBusinesses    int `json:"new_businesses"`
	NewSources       int `json:"new_sources"`
	ProviderRequests int `json:"provider_requests"`
}

// JobRun is the progress/audit record of one bounded execution session.
type JobRun struct {
	ID           uuid.UUID  `json:"id"`
	JobRequestID *uuid.UUID `json:"job_request_id,omitempty"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	MaxTasks     *int       `json:"max_tasks,omitempty"`
	TimeBucket   *string    `json:"time_bucket,omitempty"`
	RunCounters
	ErrorText  *string    `json:"error_text,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobRunInput is used when starting a new JobRun
type JobRunInput struct {
	JobRequestID *uuid.UUID
	Kind         string
	MaxTasks     int
	TimeBucket   string
}

// JobRequest is a queued request for one bounded session.
type JobRequest struct {
	ID              uuid.UUID  `json:"id"`
	Kind            string     `json:"kind"`
	Status          string     `json:"status"`
	MaxTasks        *int       `json:"max_tasks,omitempty"`
	TimeBucket      *string    `json:"time_bucket,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	Attempts        int        `json:"attempts"`
	Error           *string    `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// JobRequestInput is used when enqueueing a session request
type JobRequestInput struct {
	Kind       string `validate:"required"`
	MaxTasks   int    `validate:"gte=0"`
	TimeBucket string `validate:"omitempty,max=128"`
}

// ValidRunStatus checks if a run status value is valid
func ValidRunStatus(status string) bool {
	switch status {
	case RunStatusRunning, RunStatusSuccess, RunStatusFailed, RunStatusCancelled, RunStatusInterrupted:
		return true
	default:
		return false
	}
}

func intPtrIfPositive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
