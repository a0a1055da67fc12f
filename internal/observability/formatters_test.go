package observability

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/dispatch"
	"github.com/stretchr/testify/assert"
)

func TestPrintTaskResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTaskResult(&dispatch.TaskResult{
		TaskID:             uuid.MustParse("6f1c2a9e-0000-4000-8000-000000000001"),
		TaskType:           "LOCAL_SEARCH",
		Status:             db.TaskStatusDone,
		NewBusinesses:      4,
		NewSources:         7,
		LocalBusinessCount: 12,
		ProviderRequests:   2,
		Duration:           1500 * time.Millisecond,
	})
	output := buf.String()

	assert.Contains(t, output, "SEARCH TASK")
	assert.Contains(t, output, "LOCAL_SEARCH")
	assert.Contains(t, output, "DONE")
	assert.Contains(t, output, "New businesses:    4")
	assert.Contains(t, output, "Provider requests: 2")
	assert.Contains(t, output, "1.5s")
	assert.NotContains(t, output, "⚠")
}

func TestPrintTaskResult_Failed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTaskResult(&dispatch.TaskResult{
		TaskID: uuid.New(), Status: db.TaskStatusFailed, Err: errors.New("quota exceeded"),
	})

	assert.Contains(t, buf.String(), "⚠ quota exceeded")
}

func TestPrintTaskResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTaskResult(&dispatch.TaskResult{Status: dispatch.StatusEmpty})

	assert.Contains(t, buf.String(), "NO ELIGIBLE TASKS")
}

func TestPrintTaskResult_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintTaskResult(nil)
	p.PrintSessionResult(nil)

	assert.Empty(t, buf.String())
}

func TestPrintSessionResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSessionResult(&dispatch.SessionResult{
		RunID:  uuid.New(),
		Status: db.RunStatusSuccess,
		Reason: dispatch.StopMaxTasks,
		Counters: db.RunCounters{
			ProcessedTasks: 5, Done: 3, Skipped: 1, Failed: 1, NewBusinesses: 9, NewSources: 14, ProviderRequests: 6,
		},
	})
	output := buf.String()

	assert.Contains(t, output, "DISPATCH SESSION")
	assert.Contains(t, output, "SUCCESS (max_tasks)")
	assert.Contains(t, output, "3/1/1")
	assert.Contains(t, output, "New sources:       14")
}

func TestPrintJobRuns(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	maxTasks := 10
	runs := make([]db.JobRun, 7)
	for i := range runs {
		runs[i] = db.JobRun{
			ID: uuid.New(), Status: db.RunStatusSuccess, MaxTasks: &maxTasks,
			StartedAt:   time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
			RunCounters: db.RunCounters{ProcessedTasks: 10, Done: 8, Failed: 2},
		}
	}

	p.PrintJobRuns(runs)
	output := buf.String()

	assert.Contains(t, output, "JOB RUNS")
	assert.Contains(t, output, "2026-10-01 08:00:00")
	assert.Contains(t, output, "cap 10")
	assert.Contains(t, output, "processed 10  done 8  failed 2")
	assert.Contains(t, output, "... and 2 more runs")
}

func TestPrintJobRuns_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintJobRuns(nil)
	assert.Contains(t, buf.String(), "NO JOB RUNS")
}

func TestPrintExhaustedTasks(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	errMsg := "provider error: forbidden (status 403)"
	p.PrintExhaustedTasks([]db.SearchTask{
		{ID: uuid.New(), TaskType: "WEB_SEARCH", QueryText: "florist abu dhabi", FailStreak: 8, Error: &errMsg},
		{ID: uuid.New(), TaskType: "CSE_SEARCH", QueryText: "a very long query text that will surely be truncated somewhere", FailStreak: 8},
	})
	output := buf.String()

	assert.Contains(t, output, "Found 2 exhausted tasks")
	assert.Contains(t, output, "florist abu dhabi")
	assert.Contains(t, output, "(8 failures)")
	assert.Contains(t, output, "status 403")
	assert.Contains(t, output, "...")
}

func TestPrintExhaustedTasks_None(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintExhaustedTasks(nil)
	assert.Contains(t, buf.String(), "NO EXHAUSTED TASKS")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	long := "This is a very long line that should be truncated because it exceeds the box width"
	p.printBox("TEST", long)

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), "box width")
}
