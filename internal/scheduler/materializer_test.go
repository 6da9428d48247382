package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
)

// ---- fakes ----

type fakeJobRepo struct {
	repository.JobRepository
	active []*domain.Job
}

func (r *fakeJobRepo) ListActive(_ context.Context) ([]*domain.Job, error) {
	return r.active, nil
}

type fakeRunRepo struct {
	repository.RunRepository

	lastScheduled  *time.Time
	materializeErr error

	materialized []struct {
		jobID int64
		at    time.Time
	}
}

func (r *fakeRunRepo) LastScheduledTime(_ context.Context, _ int64) (*time.Time, error) {
	return r.lastScheduled, nil
}

func (r *fakeRunRepo) Materialize(_ context.Context, jobID int64, at time.Time) (*domain.JobRun, error) {
	if r.materializeErr != nil {
		return nil, r.materializeErr
	}
	r.materialized = append(r.materialized, struct {
		jobID int64
		at    time.Time
	}{jobID, at})
	return &domain.JobRun{ID: 1, JobID: jobID, ScheduledTime: at, Status: domain.RunPending}, nil
}

func newMaterializer(jobs *fakeJobRepo, runs *fakeRunRepo) *Materializer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMaterializer(jobs, runs, logger, time.Second)
}

func testJob(schedule string, createdAt time.Time) *domain.Job {
	return &domain.Job{
		ID:        42,
		Name:      "test-job",
		Schedule:  schedule,
		IsActive:  true,
		CreatedAt: createdAt,
	}
}

// ---- tests ----

func TestMaterializeJob_DueFromCreatedAt(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 11, 0, 30, 0, time.UTC)
	now := time.Date(2026, 3, 10, 11, 2, 0, 0, time.UTC)

	runs := &fakeRunRepo{}
	m := newMaterializer(&fakeJobRepo{}, runs)

	if err := m.materializeJob(context.Background(), testJob("* * * * *", createdAt), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.materialized) != 1 {
		t.Fatalf("expected 1 materialized run, got %d", len(runs.materialized))
	}
	// First firing strictly after created_at, not after now: the
	// backlog drains one firing per tick.
	want := time.Date(2026, 3, 10, 11, 1, 0, 0, time.UTC)
	if !runs.materialized[0].at.Equal(want) {
		t.Errorf("scheduled_time = %v, want %v", runs.materialized[0].at, want)
	}
	if runs.materialized[0].jobID != 42 {
		t.Errorf("job_id = %d, want 42", runs.materialized[0].jobID)
	}
}

func TestMaterializeJob_BaseIsLastRun(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	last := time.Date(2026, 3, 10, 11, 4, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 11, 6, 0, 0, time.UTC)

	runs := &fakeRunRepo{lastScheduled: &last}
	m := newMaterializer(&fakeJobRepo{}, runs)

	if err := m.materializeJob(context.Background(), testJob("* * * * *", createdAt), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 10, 11, 5, 0, 0, time.UTC)
	if len(runs.materialized) != 1 || !runs.materialized[0].at.Equal(want) {
		t.Fatalf("expected one run at %v, got %+v", want, runs.materialized)
	}
}

func TestMaterializeJob_NotDue(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 11, 0, 30, 0, time.UTC) // next firing is 11:01

	runs := &fakeRunRepo{}
	m := newMaterializer(&fakeJobRepo{}, runs)

	if err := m.materializeJob(context.Background(), testJob("* * * * *", createdAt), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.materialized) != 0 {
		t.Fatalf("expected no materialization, got %+v", runs.materialized)
	}
}

func TestMaterializeJob_DuplicateSwallowed(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 11, 5, 0, 0, time.UTC)

	runs := &fakeRunRepo{materializeErr: domain.ErrDuplicateRun}
	m := newMaterializer(&fakeJobRepo{}, runs)

	// A concurrent scheduler already fired this one; not an error.
	if err := m.materializeJob(context.Background(), testJob("* * * * *", createdAt), now); err != nil {
		t.Fatalf("duplicate must be swallowed, got %v", err)
	}
}

func TestMaterializeJob_StorageErrorPropagates(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 11, 5, 0, 0, time.UTC)

	wantErr := errors.New("connection refused")
	runs := &fakeRunRepo{materializeErr: wantErr}
	m := newMaterializer(&fakeJobRepo{}, runs)

	err := m.materializeJob(context.Background(), testJob("* * * * *", createdAt), now)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
}

func TestMaterializeJob_InvalidCronSkipped(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	now := time.Date(2026, 3, 10, 11, 5, 0, 0, time.UTC)

	runs := &fakeRunRepo{}
	m := newMaterializer(&fakeJobRepo{}, runs)

	if err := m.materializeJob(context.Background(), testJob("garbage", createdAt), now); err != nil {
		t.Fatalf("invalid cron must not error the cycle, got %v", err)
	}
	if len(runs.materialized) != 0 {
		t.Fatalf("expected no materialization for invalid cron, got %+v", runs.materialized)
	}
}
