package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
)

// RunRepository is the coordination surface of the system. Every
// method is one short transaction; ownership of a row transfers on
// commit, never on an in-memory handle.
type RunRepository interface {
	// Materialize inserts a PENDING run for one cron firing. Returns
	// domain.ErrDuplicateRun when another scheduler already
	// materialized that (job_id, scheduled_time) pair.
	Materialize(ctx context.Context, jobID int64, scheduledTime time.Time) (*domain.JobRun, error)

	// LastScheduledTime returns the greatest scheduled_time among the
	// job's runs, or nil when the job has never fired.
	LastScheduledTime(ctx context.Context, jobID int64) (*time.Time, error)

	// Claim atomically transitions up to limit due PENDING/RETRY runs
	// to RUNNING on behalf of workerID. FOR UPDATE SKIP LOCKED makes
	// the commit the handoff point: after it, the caller is the sole
	// writer of each returned row until terminal.
	Claim(ctx context.Context, workerID string, limit int) ([]*domain.JobRun, error)

	// Heartbeat refreshes last_heartbeat_at for a RUNNING run.
	Heartbeat(ctx context.Context, runID int64) error

	// Terminal writes. All are guarded by status = RUNNING so a row
	// that already went terminal (or was reaped) is never touched.
	MarkSuccess(ctx context.Context, runID int64) error
	MarkRetry(ctx context.Context, runID int64, attempt int, errMsg string, nextAttemptAt time.Time) error
	MarkFailed(ctx context.Context, runID int64, attempt int, errMsg string) error

	// Reaper methods — convert RUNNING rows with lapsed heartbeats
	// into retries or permanent failures. scheduled_time is left
	// unchanged so a recovered run is immediately claimable.
	RetryStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)
	FailStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error)

	// Run history for the control plane, descending scheduled_time.
	ListByJob(ctx context.Context, jobID int64, limit int) ([]*domain.JobRun, error)
	GetByID(ctx context.Context, runID int64) (*domain.JobRun, error)
}
