package db

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchTask status constants
const (
	TaskStatusPending = "PENDING"
	TaskStatusRunning = "RUNNING"
	TaskStatusDone    = "DONE"
	TaskStatusFailed  = "FAILED"
	TaskStatusSkipped = "SKIPPED"
)

// SearchTask represents one unit of discovery work
type SearchTask struct {
	ID             uuid.UUID  `json:"id"`
	TaskType       string     `json:"task_type"`
	CountryCode    string     `json:"country_code"`
	City           *string    `json:"city,omitempty"`
	Language       string     `json:"language"`
	QueryText      string     `json:"query_text"`
	QueryHash      string     `json:"query_hash"`
	Page           int        `json:"page"`
	TimeBucket     *string    `json:"time_bucket,omitempty"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	FailStreak     int        `json:"fail_streak"`
	RunAfter       time.Time  `json:"run_after"`
	LastResultHash *string    `json:"last_result_hash,omitempty"`
	Error          *string    `json:"error,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CityOrEmpty returns the task city or "".
func (t *SearchTask) CityOrEmpty() string {
	if t.City == nil {
		return ""
	}
	return *t.City
}

// TimeBucketOrEmpty returns the task time bucket or "".
func (t *SearchTask) TimeBucketOrEmpty() string {
	if t.TimeBucket == nil {
		return ""
	}
	return *t.TimeBucket
}

// SearchTaskInput is used when seeding a new search task
type SearchTaskInput struct {
	TaskType    string
	CountryCode string
	City        string
	Language    string
	QueryText   string
	QueryHash   string
	Page        int
	TimeBucket  string
	RunAfter    *time.Time
}

// ClaimFilter narrows which tasks ClaimNext may select. The zero value matches every runnable task.
type ClaimFilter struct {
	TimeBucket string
	TaskTypes  []string
}

// TaskCompletion describes a successful execution outcome.
type TaskCompletion struct {
	ResultHash  string
	ZeroResults bool
}

// ValidTaskStatus checks if a task status value is valid
func ValidTaskStatus(status string) bool {
	switch status {
	case TaskStatusPending, TaskStatusRunning, TaskStatusDone, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// HashQuery derives the dedup key for a task's query parameters.
func HashQuery(queryText, countryCode, city, language string) string {
	parts := []string{
		strings.ToLower(strings.Join(strings.Fields(queryText), " ")),
		strings.ToUpper(strings.TrimSpace(countryCode)),
		strings.ToLower(strings.TrimSpace(city)),
		strings.ToLower(strings.TrimSpace(language)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
