package domain

import "time"

type RunStatus string

const (
	RunPending RunStatus = "PENDING"
	// RunQueued is part of the status domain but never written by the
	// coordination engine. Reserved for a future push-based dispatch path.
	RunQueued  RunStatus = "QUEUED"
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
	RunRetry   RunStatus = "RETRY"
)

// Terminal reports whether the status is final. Terminal rows are
// never mutated again.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed
}

// JobRun is a single due firing of a Job. (job_id, scheduled_time) is
// unique, which is what makes materialization idempotent. A RETRY is
// the same row awaiting its next attempt, not a new row.
//
// AttemptNumber counts prior failed attempts: the first attempt runs
// with 0, and max_retries = 0 means a single attempt.
type JobRun struct {
	ID    int64
	JobID int64

	ScheduledTime time.Time
	Status        RunStatus
	AttemptNumber int

	StartedAt       *time.Time
	FinishedAt      *time.Time
	LastHeartbeatAt *time.Time

	WorkerID     *string
	ErrorMessage *string

	CreatedAt time.Time
}
