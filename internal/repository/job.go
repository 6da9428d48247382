package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
)

type ListJobsInput struct {
	CursorTime *time.Time // cursor on (created_at DESC, id DESC); nil = first page
	CursorID   int64      // used only when CursorTime is non-nil
	Limit      int
}

// UseCase and scheduler depend on the interface, not the concrete
// implementation, so the DB can be swapped and tests can pass fakes.
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) (*domain.Job, error)
	GetByID(ctx context.Context, id int64) (*domain.Job, error)
	List(ctx context.Context, input ListJobsInput) ([]*domain.Job, error)
	SetActive(ctx context.Context, id int64, active bool) error

	// ListActive feeds the materializer: every active job is a
	// candidate for a new run each scheduler tick.
	ListActive(ctx context.Context) ([]*domain.Job, error)
}
