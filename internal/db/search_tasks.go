package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const searchTaskColumns = `id, task_type, country_code, city, language, query_text, query_hash,
	page, time_bucket, status, attempts, fail_streak, run_after, last_result_hash, error,
	claimed_at, created_at, updated_at`

// TaskStore owns the search_tasks table: claiming, completion and rescheduling.
type TaskStore struct {
	db     *DB
	policy SchedulePolicy
	now    func() time.Time
}

// NewTaskStore creates a TaskStore using the given scheduling policy.
func NewTaskStore(db *DB, policy SchedulePolicy) *TaskStore {
	return &TaskStore{db: db, policy: policy, now: time.Now}
}

// WithClock returns a copy of the store that reads the current time from now.
func (s *TaskStore) WithClock(now func() time.Time) *TaskStore {
	c := *s
	c.now = now
	return &c
}

// Policy returns the scheduling policy.
func (s *TaskStore) Policy() SchedulePolicy {
	return s.policy
}

func scanSearchTask(row pgx.Row) (*SearchTask, error) {
	var t SearchTask
	err := row.Scan(&t.ID, &t.TaskType, &t.CountryCode, &t.City, &t.Language, &t.QueryText,
		&t.QueryHash, &t.Page, &t.TimeBucket, &t.Status, &t.Attempts, &t.FailStreak,
		&t.RunAfter, &t.LastResultHash, &t.Error, &t.ClaimedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a new PENDING task. Seeding normally happens outside this package;
// this exists for tooling and tests.
func (s *TaskStore) CreateTask(ctx context.Context, input SearchTaskInput) (*SearchTask, error) {
	runAfter := s.now()
	if input.RunAfter != nil {
		runAfter = *input.RunAfter
	}
	language := input.Language
	if language == "" {
		language = "en"
	}

	task, err := scanSearchTask(s.db.pool.QueryRow(ctx,
		`INSERT INTO search_tasks (task_type, country_code, city, language, query_text, query_hash,
		                           page, time_bucket, status, run_after)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+searchTaskColumns,
		input.TaskType, input.CountryCode, nullIfEmpty(input.City), language, input.QueryText,
		input.QueryHash, input.Page, nullIfEmpty(input.TimeBucket), TaskStatusPending, runAfter,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create search task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID. Returns nil if not found.
func (s *TaskStore) GetTask(ctx context.Context, id uuid.UUID) (*SearchTask, error) {
	task, err := scanSearchTask(s.db.pool.QueryRow(ctx,
		`SELECT `+searchTaskColumns+` FROM search_tasks WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get search task: %w", err)
	}
	return task, nil
}

// ClaimNext atomically selects the oldest runnable task (PENDING or FAILED with
// run_after <= now), skipping rows locked by other claimants, and marks it RUNNING.
// Returns nil when nothing is eligible.
func (s *TaskStore) ClaimNext(ctx context.Context, filter ClaimFilter) (*SearchTask, error) {
	now := s.now()
	taskTypes := filter.TaskTypes
	if taskTypes == nil {
		taskTypes = []string{}
	}

	var claimed *SearchTask
	err := pgx.BeginFunc(ctx, s.db.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM search_tasks
			 WHERE status IN ($1, $2)
			   AND run_after <= $3
			   AND ($4 = '' OR time_bucket = $4)
			   AND (cardinality($5::text[]) = 0 OR task_type = ANY($5::text[]))
			   AND ($6 <= 0 OR fail_streak < $6)
			 ORDER BY run_after ASC
			 LIMIT 1
			 FOR UPDATE SKIP LOCKED`,
			TaskStatusPending, TaskStatusFailed, now, filter.TimeBucket, taskTypes, s.policy.MaxAttempts,
		).Scan(&id)
		if err != nil {
			if isNoRows(err) {
				return nil
			}
			return err
		}

		claimed, err = scanSearchTask(tx.QueryRow(ctx,
			`UPDATE search_tasks
			 SET status = $1, attempts = attempts + 1, claimed_at = $2, updated_at = $2
			 WHERE id = $3
			 RETURNING `+searchTaskColumns,
			TaskStatusRunning, now, id,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim search task: %w", err)
	}
	return claimed, nil
}

// MarkSucceeded records a successful run. The task becomes SKIPPED when the provider
// returned nothing, DONE otherwise. run_after is now when the result hash changed and
// now + refresh cadence when it did not.
//
// Outcome writes are fenced on the claim (RUNNING with the attempts value returned by
// ClaimNext). A holder whose claim was released and re-claimed gets ErrNotClaimed.
func (s *TaskStore) MarkSucceeded(ctx context.Context, task *SearchTask, completion TaskCompletion) (*SearchTask, error) {
	now := s.now()
	changed := task.LastResultHash == nil || *task.LastResultHash != completion.ResultHash
	runAfter := s.policy.NextRunAfterSuccess(now, task.TimeBucketOrEmpty(), changed)

	status := TaskStatusDone
	if completion.ZeroResults {
		status = TaskStatusSkipped
	}

	updated, err := scanSearchTask(s.db.pool.QueryRow(ctx,
		`UPDATE search_tasks
		 SET status = $1, last_result_hash = $2, run_after = $3, error = NULL,
		     fail_streak = 0, claimed_at = NULL, updated_at = $4
		 WHERE id = $5 AND status = $6 AND attempts = $7
		 RETURNING `+searchTaskColumns,
		status, completion.ResultHash, runAfter, now, task.ID, TaskStatusRunning, task.Attempts,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("failed to complete search task %s: %w", task.ID, ErrNotClaimed)
		}
		return nil, fmt.Errorf("failed to complete search task: %w", err)
	}
	return updated, nil
}

// MarkFailed records a failed run and schedules a retry with exponential backoff.
// Once the failure streak reaches the ceiling the task stays FAILED with run_after = now
// and is no longer returned by ClaimNext until requeued.
func (s *TaskStore) MarkFailed(ctx context.Context, task *SearchTask, errMsg string) (*SearchTask, error) {
	now := s.now()
	streak := task.FailStreak + 1
	runAfter, _ := s.policy.NextRunAfterFailure(now, streak)

	updated, err := scanSearchTask(s.db.pool.QueryRow(ctx,
		`UPDATE search_tasks
		 SET status = $1, error = $2, run_after = $3, fail_streak = $4,
		     claimed_at = NULL, updated_at = $5
		 WHERE id = $6 AND status = $7 AND attempts = $8
		 RETURNING `+searchTaskColumns,
		TaskStatusFailed, errMsg, runAfter, streak, now, task.ID, TaskStatusRunning, task.Attempts,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("failed to mark search task %s failed: %w", task.ID, ErrNotClaimed)
		}
		return nil, fmt.Errorf("failed to mark search task failed: %w", err)
	}
	return updated, nil
}

// ListExhaustedTasks returns FAILED tasks whose failure streak reached the ceiling.
func (s *TaskStore) ListExhaustedTasks(ctx context.Context, limit int) ([]SearchTask, error) {
	if limit <= 0 {
		limit = 50
	}
	if s.policy.MaxAttempts <= 0 {
		return nil, nil
	}

	rows, err := s.db.pool.Query(ctx,
		`SELECT `+searchTaskColumns+` FROM search_tasks
		 WHERE status = $1 AND fail_streak >= $2
		 ORDER BY updated_at DESC LIMIT $3`,
		TaskStatusFailed, s.policy.MaxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exhausted tasks: %w", err)
	}
	defer rows.Close()

	var tasks []SearchTask
	for rows.Next() {
		t, err := scanSearchTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Requeue resets a task's failure streak and makes it runnable now.
func (s *TaskStore) Requeue(ctx context.Context, id uuid.UUID) error {
	now := s.now()
	result, err := s.db.pool.Exec(ctx,
		`UPDATE search_tasks
		 SET status = $1, fail_streak = 0, run_after = $2, updated_at = $2
		 WHERE id = $3 AND status <> $4`,
		TaskStatusPending, now, id, TaskStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to requeue search task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("search task not found or running: %s", id)
	}
	return nil
}

// ReleaseStaleTasks returns RUNNING tasks claimed before now-olderThan to FAILED so they
// become claimable again. Used to recover work from crashed workers.
func (s *TaskStore) ReleaseStaleTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now()
	result, err := s.db.pool.Exec(ctx,
		`UPDATE search_tasks
		 SET status = $1, error = $2, fail_streak = fail_streak + 1, run_after = $3,
		     claimed_at = NULL, updated_at = $3
		 WHERE status = $4 AND claimed_at < $5`,
		TaskStatusFailed, "released: claim expired without completion", now,
		TaskStatusRunning, now.Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale tasks: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountTasksByStatus returns task counts keyed by status.
func (s *TaskStore) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.pool.Query(ctx, `SELECT status, COUNT(*) FROM search_tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count search tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan task count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
