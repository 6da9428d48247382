package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
	"github.com/ErlanBelekov/cronfleet/internal/usecase"
)

// ---- fakes ----

type fakeJobRepo struct {
	repository.JobRepository

	created *domain.Job
	getErr  error
}

func (r *fakeJobRepo) Create(_ context.Context, job *domain.Job) (*domain.Job, error) {
	r.created = job
	out := *job
	out.ID = 1
	return &out, nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, id int64) (*domain.Job, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return &domain.Job{ID: id, Name: "test-job"}, nil
}

type fakeRunRepo struct {
	repository.RunRepository

	listLimit int
}

func (r *fakeRunRepo) ListByJob(_ context.Context, _ int64, limit int) ([]*domain.JobRun, error) {
	r.listLimit = limit
	return nil, nil
}

// ---- CreateJob ----

func TestCreateJob_RejectsInvalidCron(t *testing.T) {
	u := usecase.NewJobUsecase(&fakeJobRepo{}, &fakeRunRepo{})

	_, err := u.CreateJob(context.Background(), usecase.CreateJobInput{
		Name:     "bad",
		Schedule: "61 * * * *",
	})
	if !errors.Is(err, domain.ErrInvalidCronExpr) {
		t.Fatalf("expected ErrInvalidCronExpr, got %v", err)
	}
}

func TestCreateJob_DefaultsAndActivation(t *testing.T) {
	repo := &fakeJobRepo{}
	u := usecase.NewJobUsecase(repo, &fakeRunRepo{})

	job, err := u.CreateJob(context.Background(), usecase.CreateJobInput{
		Name:               "nightly",
		Schedule:           "0 2 * * *",
		ExecutionTimeSec:   10,
		FailureProbability: 0.1,
		MaxRetries:         3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !job.IsActive {
		t.Error("new jobs must be active")
	}
	if repo.created.RetryDelaySec != 5 {
		t.Errorf("retry delay default = %d, want 5", repo.created.RetryDelaySec)
	}
}

func TestCreateJob_ExplicitRetryDelay(t *testing.T) {
	repo := &fakeJobRepo{}
	u := usecase.NewJobUsecase(repo, &fakeRunRepo{})

	delay := 0
	_, err := u.CreateJob(context.Background(), usecase.CreateJobInput{
		Name:          "no-delay",
		Schedule:      "* * * * *",
		RetryDelaySec: &delay,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Zero is a valid explicit choice, not a missing value.
	if repo.created.RetryDelaySec != 0 {
		t.Errorf("retry delay = %d, want 0", repo.created.RetryDelaySec)
	}
}

// ---- ListRuns ----

func TestListRuns_UnknownJob(t *testing.T) {
	u := usecase.NewJobUsecase(&fakeJobRepo{getErr: domain.ErrJobNotFound}, &fakeRunRepo{})

	_, err := u.ListRuns(context.Background(), 99, 10)
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestListRuns_ClampsLimit(t *testing.T) {
	runs := &fakeRunRepo{}
	u := usecase.NewJobUsecase(&fakeJobRepo{}, runs)

	if _, err := u.ListRuns(context.Background(), 1, 10_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs.listLimit != 20 {
		t.Errorf("limit = %d, want clamped to 20", runs.listLimit)
	}
}
