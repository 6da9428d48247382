package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrRunNotFound     = errors.New("job run not found")
	ErrDuplicateRun    = errors.New("run already materialized for this firing")
	ErrInvalidCronExpr = errors.New("invalid cron expression")
)

// Job is a registered recurring task. The work itself is synthetic:
// each attempt sleeps ExecutionTimeSec and fails with probability
// FailureProbability. Deactivating a job stops new materialization
// but leaves in-flight runs alone.
type Job struct {
	ID       int64
	Name     string
	Schedule string // 5-field standard cron expression

	ExecutionTimeSec   int
	FailureProbability float64

	MaxRetries    int
	RetryDelaySec int

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
