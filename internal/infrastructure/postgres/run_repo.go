package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runColumns = `id, job_id, scheduled_time, status, attempt_number,
	       started_at, finished_at, last_heartbeat_at, worker_id,
	       error_message, created_at`

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Materialize(ctx context.Context, jobID int64, scheduledTime time.Time) (*domain.JobRun, error) {
	query := `
		INSERT INTO job_runs (job_id, scheduled_time, status, attempt_number)
		VALUES ($1, $2, 'PENDING', 0)
		RETURNING ` + runColumns

	run, err := scanRun(r.pool.QueryRow(ctx, query, jobID, scheduledTime))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Another scheduler instance got there first.
			return nil, domain.ErrDuplicateRun
		}
		return nil, err
	}
	return run, nil
}

func (r *RunRepository) LastScheduledTime(ctx context.Context, jobID int64) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(scheduled_time) FROM job_runs WHERE job_id = $1`, jobID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last scheduled time: %w", err)
	}
	return last, nil
}

func (r *RunRepository) Claim(ctx context.Context, workerID string, limit int) ([]*domain.JobRun, error) {
	// FOR UPDATE SKIP LOCKED prevents double-execution across workers:
	// the commit of this statement is the ownership handoff.
	query := `
		UPDATE job_runs
		SET    status            = 'RUNNING',
		       started_at        = NOW(),
		       last_heartbeat_at = NOW(),
		       worker_id         = $1
		WHERE id IN (
			SELECT id FROM job_runs
			WHERE  status IN ('PENDING', 'RETRY')
			  AND  scheduled_time <= NOW()
			ORDER BY scheduled_time ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + runColumns

	rows, err := r.pool.Query(ctx, query, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("claim runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.JobRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *RunRepository) Heartbeat(ctx context.Context, runID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_runs SET last_heartbeat_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'`, runID)
	return err
}

func (r *RunRepository) MarkSuccess(ctx context.Context, runID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_runs SET status = 'SUCCESS', finished_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'`, runID)
	return err
}

func (r *RunRepository) MarkRetry(ctx context.Context, runID int64, attempt int, errMsg string, nextAttemptAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_runs
		SET    status         = 'RETRY',
		       attempt_number = $2,
		       error_message  = $3,
		       scheduled_time = $4,
		       finished_at    = NOW(),
		       worker_id      = NULL
		WHERE id = $1 AND status = 'RUNNING'`,
		runID, attempt, errMsg, nextAttemptAt)
	return err
}

func (r *RunRepository) MarkFailed(ctx context.Context, runID int64, attempt int, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE job_runs
		SET    status         = 'FAILED',
		       attempt_number = $2,
		       error_message  = $3,
		       finished_at    = NOW()
		WHERE id = $1 AND status = 'RUNNING'`,
		runID, attempt, errMsg)
	return err
}

func (r *RunRepository) RetryStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	// scheduled_time is left unchanged: a reaped run is immediately
	// eligible for the next claim. finished_at stays NULL — run
	// finish is strictly worker-asserted.
	tag, err := r.pool.Exec(ctx, `
		UPDATE job_runs
		SET    status         = 'RETRY',
		       attempt_number = attempt_number + 1,
		       worker_id      = NULL,
		       error_message  = 'worker heartbeat timeout'
		WHERE id IN (
			SELECT r.id FROM job_runs r
			JOIN jobs j ON j.id = r.job_id
			WHERE  r.status            = 'RUNNING'
			  AND  r.last_heartbeat_at < $1
			  AND  r.attempt_number    < j.max_retries
			ORDER BY r.last_heartbeat_at ASC
			LIMIT $2
			FOR UPDATE OF r SKIP LOCKED
		)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *RunRepository) FailStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE job_runs
		SET    status        = 'FAILED',
		       error_message = 'worker heartbeat timeout: max retries exceeded'
		WHERE id IN (
			SELECT r.id FROM job_runs r
			JOIN jobs j ON j.id = r.job_id
			WHERE  r.status            = 'RUNNING'
			  AND  r.last_heartbeat_at < $1
			  AND  r.attempt_number    >= j.max_retries
			ORDER BY r.last_heartbeat_at ASC
			LIMIT $2
			FOR UPDATE OF r SKIP LOCKED
		)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *RunRepository) ListByJob(ctx context.Context, jobID int64, limit int) ([]*domain.JobRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM job_runs
		WHERE job_id = $1
		ORDER BY scheduled_time DESC
		LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.JobRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *RunRepository) GetByID(ctx context.Context, runID int64) (*domain.JobRun, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM job_runs WHERE id = $1`, runID)
	return scanRun(row)
}

func scanRun(row rowScanner) (*domain.JobRun, error) {
	var run domain.JobRun
	err := row.Scan(
		&run.ID, &run.JobID, &run.ScheduledTime, &run.Status, &run.AttemptNumber,
		&run.StartedAt, &run.FinishedAt, &run.LastHeartbeatAt, &run.WorkerID,
		&run.ErrorMessage, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
