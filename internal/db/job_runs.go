package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Job Run Methods
// -----------------------------------------------------------------------------

const jobRunColumns = `id, job_request_id, kind, status, max_tasks, time_bucket, processed_tasks,
	done_tasks, failed_tasks, skipped_tasks, new_businesses, new_sources, provider_requests,
	error_text, started_at, updated_at, finished_at`

func scanJobRun(row pgx.Row) (*JobRun, error) {
	var r JobRun
	err := row.Scan(&r.ID, &r.JobRequestID, &r.Kind, &r.Status, &r.MaxTasks, &r.TimeBucket,
		&r.ProcessedTasks, &r.Done, &r.Failed, &r.Skipped, &r.NewBusinesses, &r.NewSources,
		&r.ProviderRequests, &r.ErrorText, &r.StartedAt, &r.UpdatedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateJobRun starts a RUNNING job run.
func (db *DB) CreateJobRun(ctx context.Context, input JobRunInput) (*JobRun, error) {
	run, err := scanJobRun(db.pool.QueryRow(ctx,
		`INSERT INTO job_runs (job_request_id, kind, status, max_tasks, time_bucket)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+jobRunColumns,
		input.JobRequestID, input.Kind, RunStatusRunning, intPtrIfPositive(input.MaxTasks),
		nullIfEmpty(input.TimeBucket),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}
	return run, nil
}

// UpdateJobRunProgress persists the current counters of a running job run.
func (db *DB) UpdateJobRunProgress(ctx context.Context, id uuid.UUID, c RunCounters) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE job_runs SET processed_tasks = $1, done_tasks = $2, failed_tasks = $3,
		     skipped_tasks = $4, new_businesses = $5, new_sources = $6, provider_requests = $7,
		     updated_at = NOW()
		 WHERE id = $8 AND finished_at IS NULL`,
		c.ProcessedTasks, c.Done, c.Failed, c.Skipped, c.NewBusinesses, c.NewSources,
		c.ProviderRequests, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job run progress: %w", err)
	}
	return nil
}

// FinalizeJobRun sets the terminal status, counters and error of a job run.
// A run is finalized at most once; later calls return false.
func (db *DB) FinalizeJobRun(ctx context.Context, id uuid.UUID, status string, c RunCounters, errText string) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_runs SET status = $1, processed_tasks = $2, done_tasks = $3, failed_tasks = $4,
		     skipped_tasks = $5, new_businesses = $6, new_sources = $7, provider_requests = $8,
		     error_text = $9, updated_at = NOW(), finished_at = NOW()
		 WHERE id = $10 AND finished_at IS NULL`,
		status, c.ProcessedTasks, c.Done, c.Failed, c.Skipped, c.NewBusinesses, c.NewSources,
		c.ProviderRequests, nullIfEmpty(errText), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize job run: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// GetJobRun retrieves a job run by ID. Returns nil if not found.
func (db *DB) GetJobRun(ctx context.Context, id uuid.UUID) (*JobRun, error) {
	run, err := scanJobRun(db.pool.QueryRow(ctx,
		`SELECT `+jobRunColumns+` FROM job_runs WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job run: %w", err)
	}
	return run, nil
}

// ListJobRuns retrieves recent job runs
func (db *DB) ListJobRuns(ctx context.Context, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobRunColumns+` FROM job_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
