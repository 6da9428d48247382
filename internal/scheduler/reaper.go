package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/metrics"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
)

const reapBatchSize = 100

// Reaper recovers runs abandoned by crashed workers. A RUNNING row
// whose last_heartbeat_at has lapsed beyond zombieTimeout is turned
// into a RETRY (attempts remaining) or FAILED (exhausted). It only
// ever touches RUNNING rows, so it cannot race the claim path, which
// only touches PENDING/RETRY.
type Reaper struct {
	runs          repository.RunRepository
	logger        *slog.Logger
	interval      time.Duration
	zombieTimeout time.Duration
}

func NewReaper(runs repository.RunRepository, logger *slog.Logger, interval, zombieTimeout time.Duration) *Reaper {
	return &Reaper{
		runs:          runs,
		logger:        logger.With("component", "reaper"),
		interval:      interval,
		zombieTimeout: zombieTimeout,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "zombie_timeout", r.zombieTimeout)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds())
	}()

	staleCutoff := time.Now().UTC().Add(-r.zombieTimeout)

	recovered, err := r.runs.RetryStale(ctx, staleCutoff, reapBatchSize)
	if err != nil {
		r.logger.Error("retry stale runs", "error", err)
		recovered = 0
	}

	failed, err := r.runs.FailStale(ctx, staleCutoff, reapBatchSize)
	if err != nil {
		r.logger.Error("fail stale runs", "error", err)
		failed = 0
	}

	if total := recovered + failed; total > 0 {
		r.logger.Warn("zombie_detected", "count", total, "stale_cutoff", staleCutoff)
	}
	if recovered > 0 {
		metrics.ZombiesReapedTotal.WithLabelValues("retry").Add(float64(recovered))
		r.logger.Warn("zombie_recovered", "count", recovered, "stale_cutoff", staleCutoff)
	}
	if failed > 0 {
		metrics.ZombiesReapedTotal.WithLabelValues("fail").Add(float64(failed))
		r.logger.Warn("zombie_failed", "count", failed, "stale_cutoff", staleCutoff)
	}
}
