package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -----------------------------------------------------------------------------
// Job Request Methods
// -----------------------------------------------------------------------------

// validate is shared; validator caches struct metadata per instance.
var validate = validator.New()

const jobRequestColumns = `id, kind, status, max_tasks, time_bucket, cancel_requested, attempts,
	error, created_at, claimed_at, finished_at`

func scanJobRequest(row pgx.Row) (*JobRequest, error) {
	var r JobRequest
	err := row.Scan(&r.ID, &r.Kind, &r.Status, &r.MaxTasks, &r.TimeBucket, &r.CancelRequested,
		&r.Attempts, &r.Error, &r.CreatedAt, &r.ClaimedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateJobRequest enqueues a PENDING session request.
func (db *DB) CreateJobRequest(ctx context.Context, input JobRequestInput) (*JobRequest, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid job request: %w", err)
	}
	req, err := scanJobRequest(db.pool.QueryRow(ctx,
		`INSERT INTO job_requests (kind, status, max_tasks, time_bucket)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+jobRequestColumns,
		input.Kind, RequestStatusPending, intPtrIfPositive(input.MaxTasks), nullIfEmpty(input.TimeBucket),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create job request: %w", err)
	}
	return req, nil
}

// ClaimNextJobRequest claims the oldest PENDING request of the given kind using the same
// skip-locked protocol as ClaimNext. Requests cancelled before being claimed are closed
// out as CANCELLED instead of being returned. Returns nil when nothing is pending.
func (db *DB) ClaimNextJobRequest(ctx context.Context, kind string) (*JobRequest, error) {
	var claimed *JobRequest
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE job_requests SET status = $1, finished_at = NOW()
			 WHERE kind = $2 AND status = $3 AND cancel_requested`,
			RequestStatusCancelled, kind, RequestStatusPending,
		); err != nil {
			return err
		}

		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM job_requests
			 WHERE kind = $1 AND status = $2
			 ORDER BY created_at ASC
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			kind, RequestStatusPending,
		).Scan(&id)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return err
		}

		claimed, err = scanJobRequest(tx.QueryRow(ctx,
			`UPDATE job_requests SET status = $1, attempts = attempts + 1, claimed_at = NOW()
			 WHERE id = $2
			 RETURNING `+jobRequestColumns,
			RequestStatusRunning, id,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim job request: %w", err)
	}
	return claimed, nil
}

// IsJobRequestCancelled reports whether cancellation was requested for a job request.
func (db *DB) IsJobRequestCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	var cancelled bool
	err := db.pool.QueryRow(ctx,
		`SELECT cancel_requested FROM job_requests WHERE id = $1`, id,
	).Scan(&cancelled)
	if err != nil {
		if isNoRows(err) {
			return false, fmt.Errorf("job request not found: %s", id)
		}
		return false, fmt.Errorf("failed to read job request cancel flag: %w", err)
	}
	return cancelled, nil
}

// RequestCancel sets the cancel flag on a job request. Running sessions observe it
// between tasks.
func (db *DB) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_requests SET cancel_requested = TRUE WHERE id = $1 AND finished_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to request cancel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job request not found or already finished: %s", id)
	}
	return nil
}

// FinishJobRequest records the terminal status of a claimed job request. The write is
// fenced on the claim (RUNNING with the attempts value returned by ClaimNextJobRequest).
func (db *DB) FinishJobRequest(ctx context.Context, req *JobRequest, status, errMsg string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_requests SET status = $1, error = $2, finished_at = NOW()
		 WHERE id = $3 AND status = $4 AND attempts = $5`,
		status, nullIfEmpty(errMsg), req.ID, RequestStatusRunning, req.Attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to finish job request %s: %w", req.ID, ErrNotClaimed)
	}
	return nil
}

// ReleaseJobRequest returns a claimed request to PENDING after its session was
// interrupted. A task cap is reduced by the tasks already processed, never below 1.
func (db *DB) ReleaseJobRequest(ctx context.Context, req *JobRequest, processed int, errMsg string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_requests
		 SET status = $1, error = $2, claimed_at = NULL,
		     max_tasks = CASE WHEN max_tasks IS NULL THEN NULL ELSE GREATEST(max_tasks - $3, 1) END
		 WHERE id = $4 AND status = $5 AND attempts = $6`,
		RequestStatusPending, nullIfEmpty(errMsg), processed, req.ID, RequestStatusRunning, req.Attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to release job request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("failed to release job request %s: %w", req.ID, ErrNotClaimed)
	}
	return nil
}

// ReleaseStaleJobRequests returns RUNNING requests to PENDING when they were claimed
// before now-olderThan and no unfinished job run for them has recorded progress since.
// The orphaned job runs are finalized as INTERRUPTED. Used to recover requests from
// crashed workers.
func (db *DB) ReleaseStaleJobRequests(ctx context.Context, olderThan time.Duration) (int64, error) {
	var released int64
	err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`UPDATE job_requests r
			 SET status = $1, claimed_at = NULL, error = $2
			 WHERE r.status = $3
			   AND r.claimed_at < NOW() - make_interval(secs => $4)
			   AND NOT EXISTS (
			       SELECT 1 FROM job_runs j
			       WHERE j.job_request_id = r.id AND j.finished_at IS NULL
			         AND j.updated_at >= NOW() - make_interval(secs => $4))
			 RETURNING r.id`,
			RequestStatusPending, "released: claim expired without completion",
			RequestStatusRunning, olderThan.Seconds(),
		)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return err
		}
		released = int64(len(ids))
		if len(ids) == 0 {
			return nil
		}

		_, err = tx.Exec(ctx,
			`UPDATE job_runs
			 SET status = $1, error_text = $2, updated_at = NOW(), finished_at = NOW()
			 WHERE job_request_id = ANY($3::uuid[]) AND finished_at IS NULL`,
			RunStatusInterrupted, "worker stopped without finalizing", ids,
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to release stale job requests: %w", err)
	}
	return released, nil
}

// GetJobRequest retrieves a job request by ID. Returns nil if not found.
func (db *DB) GetJobRequest(ctx context.Context, id uuid.UUID) (*JobRequest, error) {
	req, err := scanJobRequest(db.pool.QueryRow(ctx,
		`SELECT `+jobRequestColumns+` FROM job_requests WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job request: %w", err)
	}
	return req, nil
}
