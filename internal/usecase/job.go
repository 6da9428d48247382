package usecase

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
	"github.com/robfig/cron/v3"
)

const (
	defaultRetryDelaySec = 5
	maxRunHistoryLimit   = 100
)

type JobUsecase struct {
	jobs repository.JobRepository
	runs repository.RunRepository
}

func NewJobUsecase(jobs repository.JobRepository, runs repository.RunRepository) *JobUsecase {
	return &JobUsecase{jobs: jobs, runs: runs}
}

type CreateJobInput struct {
	Name               string
	Schedule           string
	ExecutionTimeSec   int
	FailureProbability float64
	MaxRetries         int
	RetryDelaySec      *int // nil = default
}

func (u *JobUsecase) CreateJob(ctx context.Context, input CreateJobInput) (*domain.Job, error) {
	if _, err := cron.ParseStandard(input.Schedule); err != nil {
		return nil, domain.ErrInvalidCronExpr
	}

	retryDelay := defaultRetryDelaySec
	if input.RetryDelaySec != nil {
		retryDelay = *input.RetryDelaySec
	}

	job := &domain.Job{
		Name:               input.Name,
		Schedule:           input.Schedule,
		ExecutionTimeSec:   input.ExecutionTimeSec,
		FailureProbability: input.FailureProbability,
		MaxRetries:         input.MaxRetries,
		RetryDelaySec:      retryDelay,
		IsActive:           true,
	}

	created, err := u.jobs.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return created, nil
}

func (u *JobUsecase) GetJob(ctx context.Context, id int64) (*domain.Job, error) {
	job, err := u.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (u *JobUsecase) ListJobs(ctx context.Context, input repository.ListJobsInput) ([]*domain.Job, error) {
	if input.Limit <= 0 || input.Limit > maxRunHistoryLimit {
		input.Limit = 20
	}
	jobs, err := u.jobs.List(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// SetActive pauses or resumes materialization. In-flight runs are
// untouched either way.
func (u *JobUsecase) SetActive(ctx context.Context, id int64, active bool) error {
	if err := u.jobs.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set job active: %w", err)
	}
	return nil
}

// ListRuns returns the job's recent runs, newest firing first.
func (u *JobUsecase) ListRuns(ctx context.Context, jobID int64, limit int) ([]*domain.JobRun, error) {
	if limit <= 0 || limit > maxRunHistoryLimit {
		limit = 20
	}
	if _, err := u.jobs.GetByID(ctx, jobID); err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	runs, err := u.runs.ListByJob(ctx, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
