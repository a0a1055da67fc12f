// Package observability provides structured logging setup and formatted output for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/bizscout/internal/db"
	"github.com/jonathan/bizscout/internal/dispatch"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// printLine prints a one-line box.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printLine(text string) {
	fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, text)
	fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
}

// PrintTaskResult outputs the outcome of a single task run.
func (p *Printer) PrintTaskResult(result *dispatch.TaskResult) {
	if result == nil {
		return
	}
	if result.Empty() {
		p.printLine("NO ELIGIBLE TASKS")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Task:      %s\n", result.TaskID))
	sb.WriteString(fmt.Sprintf("Type:      %s\n", result.TaskType))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", result.Status))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", result.Duration.Round(time.Millisecond)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Local results:     %d\n", result.LocalBusinessCount))
	sb.WriteString(fmt.Sprintf("Organic results:   %d\n", result.OrganicResultCount))
	sb.WriteString(fmt.Sprintf("New businesses:    %d\n", result.NewBusinesses))
	sb.WriteString(fmt.Sprintf("New sources:       %d\n", result.NewSources))
	sb.WriteString(fmt.Sprintf("Provider requests: %d", result.ProviderRequests))
	if result.Err != nil {
		sb.WriteString(fmt.Sprintf("\n\n⚠ %s", result.Err))
	}

	p.printBox("SEARCH TASK", sb.String())
}

// PrintSessionResult outputs the summary of a bounded session.
func (p *Printer) PrintSessionResult(result *dispatch.SessionResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:       %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("Status:    %s (%s)\n", result.Status, result.Reason))
	sb.WriteString("\n")
	writeCounters(&sb, result.Counters)
	if result.Err != nil {
		sb.WriteString(fmt.Sprintf("\n\n⚠ %s", result.Err))
	}

	p.printBox("DISPATCH SESSION", sb.String())
}

// PrintJobRuns outputs the most recent job runs, newest first.
func (p *Printer) PrintJobRuns(runs []db.JobRun) {
	if len(runs) == 0 {
		p.printLine("NO JOB RUNS")
		return
	}

	var sb strings.Builder
	count := min(len(runs), maxItemsToShow)
	for i := 0; i < count; i++ {
		run := runs[i]
		sb.WriteString(fmt.Sprintf("%s  %s\n", run.ID.String()[:8], run.Status))
		sb.WriteString(fmt.Sprintf("  started %s", run.StartedAt.UTC().Format("2006-01-02 15:04:05")))
		if run.MaxTasks != nil {
			sb.WriteString(fmt.Sprintf("  cap %d", *run.MaxTasks))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("  processed %d  done %d  failed %d  skipped %d\n",
			run.ProcessedTasks, run.Done, run.Failed, run.Skipped))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(runs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more runs", len(runs)-maxItemsToShow))
	}

	p.printBox("JOB RUNS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintExhaustedTasks outputs tasks that reached the attempt ceiling.
func (p *Printer) PrintExhaustedTasks(tasks []db.SearchTask) {
	if len(tasks) == 0 {
		p.printLine("✅ NO EXHAUSTED TASKS")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d exhausted tasks:\n\n", len(tasks)))
	for i, t := range tasks {
		query := t.QueryText
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("⚠ %s %s\n", t.ID.String()[:8], t.TaskType))
		sb.WriteString(fmt.Sprintf("  %q (%d failures)\n", query, t.FailStreak))
		if t.Error != nil {
			sb.WriteString(fmt.Sprintf("  %s\n", *t.Error))
		}
		if i < len(tasks)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("EXHAUSTED TASKS", strings.TrimSuffix(sb.String(), "\n"))
}

func writeCounters(sb *strings.Builder, c db.RunCounters) {
	sb.WriteString(fmt.Sprintf("Processed:         %d\n", c.ProcessedTasks))
	sb.WriteString(fmt.Sprintf("  done/skipped/failed: %d/%d/%d\n", c.Done, c.Skipped, c.Failed))
	sb.WriteString(fmt.Sprintf("New businesses:    %d\n", c.NewBusinesses))
	sb.WriteString(fmt.Sprintf("New sources:       %d\n", c.NewSources))
	sb.WriteString(fmt.Sprintf("Provider requests: %d", c.ProviderRequests))
}
