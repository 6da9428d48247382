package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/metrics"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
)

// Materializer turns cron schedules into concrete PENDING job_runs
// rows. It is safe to run multiple instances: the (job_id,
// scheduled_time) uniqueness constraint absorbs concurrent inserts.
type Materializer struct {
	jobs     repository.JobRepository
	runs     repository.RunRepository
	logger   *slog.Logger
	interval time.Duration
}

func NewMaterializer(jobs repository.JobRepository, runs repository.RunRepository, logger *slog.Logger, interval time.Duration) *Materializer {
	return &Materializer{
		jobs:     jobs,
		runs:     runs,
		logger:   logger.With("component", "materializer"),
		interval: interval,
	}
}

func (m *Materializer) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("scheduler_started", "interval", m.interval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("materializer shut down")
			return
		case <-ticker.C:
			m.materialize(ctx)
		}
	}
}

func (m *Materializer) materialize(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.MaterializeCycleDuration.Observe(time.Since(start).Seconds())
	}()

	jobs, err := m.jobs.ListActive(ctx)
	if err != nil {
		m.logger.Error("list active jobs", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if err := m.materializeJob(ctx, job, now); err != nil {
			m.logger.Error("materialize job", "job_id", job.ID, "error", err)
		}
	}
}

// materializeJob inserts at most one run per tick. Basing the next
// firing on the last existing run (not on now) means no firing is
// skipped across scheduler downtime; a backlog drains one firing per
// tick, which bounds write amplification.
func (m *Materializer) materializeJob(ctx context.Context, job *domain.Job, now time.Time) error {
	last, err := m.runs.LastScheduledTime(ctx, job.ID)
	if err != nil {
		return err
	}

	base := job.CreatedAt
	if last != nil {
		base = *last
	}

	next, err := NextFiring(job.Schedule, base)
	if err != nil {
		// Expression was validated on create; this should never happen.
		m.logger.Error("invalid cron expression in job", "job_id", job.ID, "schedule", job.Schedule)
		return nil
	}

	if next.After(now) {
		return nil
	}

	run, err := m.runs.Materialize(ctx, job.ID, next)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRun) {
			// Another scheduler instance already fired this one.
			m.logger.Debug("run already materialized", "job_id", job.ID, "scheduled_time", next)
			return nil
		}
		return err
	}

	metrics.RunsMaterializedTotal.Inc()
	m.logger.Info("job_scheduled",
		"job_id", job.ID,
		"job_name", job.Name,
		"run_id", run.ID,
		"scheduled_time", run.ScheduledTime,
	)
	return nil
}
