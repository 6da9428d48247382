package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/ErlanBelekov/cronfleet/internal/metrics"
	"github.com/ErlanBelekov/cronfleet/internal/repository"
)

// Worker continuously claims due runs and executes them, up to
// concurrency in flight. Each in-flight run gets its own heartbeat
// goroutine; the two share nothing beyond the stop signal (context
// cancellation) and each opens its own database round trip.
type Worker struct {
	id                string
	runs              repository.RunRepository
	jobs              repository.JobRepository
	presence          Presence
	executor          *Executor
	logger            *slog.Logger
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	drainTimeout      time.Duration
	concurrency       int
	sem               chan struct{}
}

func New(
	id string,
	runs repository.RunRepository,
	jobs repository.JobRepository,
	presence Presence,
	logger *slog.Logger,
	pollInterval time.Duration,
	heartbeatInterval time.Duration,
	drainTimeout time.Duration,
	concurrency int,
) *Worker {
	if id == "" {
		hostname, _ := os.Hostname()
		id = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	if presence == nil {
		presence = NopPresence{}
	}
	return &Worker{
		id:                id,
		runs:              runs,
		jobs:              jobs,
		presence:          presence,
		executor:          NewExecutor(),
		logger:            logger.With("worker_id", id),
		pollInterval:      pollInterval,
		heartbeatInterval: heartbeatInterval,
		drainTimeout:      drainTimeout,
		concurrency:       concurrency,
		sem:               make(chan struct{}, concurrency),
	}
}

func (w *Worker) ID() string { return w.id }

func (w *Worker) Start(ctx context.Context) {
	metrics.WorkerStartTime.SetToCurrentTime()

	// In-flight runs outlive the stop signal: they execute and commit
	// their terminal writes on a context detached from ctx, and are
	// only canceled if the drain deadline lapses.
	runCtx, abandonRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer abandonRuns()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker_booted", "concurrency", w.concurrency, "poll_interval", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			w.drain(abandonRuns)
			metrics.WorkerShutdownsTotal.Inc()
			w.logger.Info("worker shut down")
			return
		case <-ticker.C:
			w.processBatch(ctx, runCtx)
		}
	}
}

// drain blocks until every in-flight run has finished, so that runs
// which already did their work record SUCCESS/RETRY/FAILED instead of
// being left RUNNING for the reaper to charge an attempt. Runs still
// in flight when the deadline lapses are abandoned.
func (w *Worker) drain(abandon context.CancelFunc) {
	if len(w.sem) == 0 {
		return
	}
	w.logger.Info("draining in-flight runs", "in_flight", len(w.sem), "timeout", w.drainTimeout)

	deadline := time.NewTimer(w.drainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-deadline.C:
			w.logger.Warn("drain timeout lapsed, leaving runs to the reaper", "in_flight", len(w.sem))
			abandon()
			return
		case <-tick.C:
			if len(w.sem) == 0 {
				w.logger.Info("drain complete")
				return
			}
		}
	}
}

func (w *Worker) processBatch(ctx, runCtx context.Context) {
	available := cap(w.sem) - len(w.sem)
	if available == 0 {
		return
	}

	runs, err := w.runs.Claim(ctx, w.id, available)
	if err != nil {
		w.logger.Error("claim runs", "error", err)
		return
	}

	if len(runs) == 0 {
		if len(w.sem) == 0 {
			// Idle refresh keeps the presence key alive between runs.
			if err := w.presence.Refresh(ctx, w.id, nil); err != nil {
				w.logger.Warn("presence refresh failed", "error", err)
			}
		}
		return
	}

	for _, run := range runs {
		w.sem <- struct{}{}
		go func(run *domain.JobRun) {
			metrics.RunsInFlight.Inc()
			defer metrics.RunsInFlight.Dec()
			defer func() { <-w.sem }()
			w.execute(runCtx, run)
		}(run)
	}
}

func (w *Worker) execute(ctx context.Context, run *domain.JobRun) {
	metrics.RunPickupLatency.Observe(time.Since(run.ScheduledTime).Seconds())

	w.logger.Info("job_claimed",
		"run_id", run.ID,
		"job_id", run.JobID,
		"attempt", run.AttemptNumber,
		"scheduled_time", run.ScheduledTime,
	)

	if err := w.presence.TrackRun(ctx, run.ID); err != nil {
		w.logger.Warn("presence track failed", "run_id", run.ID, "error", err)
	}
	defer func() {
		if err := w.presence.UntrackRun(ctx, run.ID); err != nil {
			w.logger.Warn("presence untrack failed", "run_id", run.ID, "error", err)
		}
	}()

	job, err := w.jobs.GetByID(ctx, run.JobID)
	if err != nil {
		// No terminal write happens here: the row stays RUNNING with a
		// stale heartbeat and the reaper recovers it.
		w.logger.Error("load job, aborting run — reaper will recover", "run_id", run.ID, "job_id", run.JobID, "error", err)
		return
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(heartbeatCtx, run.ID)

	w.logger.Info("job_started", "run_id", run.ID, "job_name", job.Name, "attempt", run.AttemptNumber)

	result, err := w.executor.Attempt(ctx, job)
	if err != nil {
		// Shutdown mid-execution: no commit, the reaper will turn this
		// run into a retry once the heartbeat lapses.
		w.logger.Warn("attempt interrupted, leaving run to the reaper", "run_id", run.ID, "error", err)
		return
	}

	if !result.Failed {
		if err := w.runs.MarkSuccess(ctx, run.ID); err != nil {
			w.logger.Error("mark run success", "run_id", run.ID, "error", err)
			return
		}
		metrics.RunExecutionDuration.WithLabelValues("success").Observe(result.Duration.Seconds())
		metrics.RunsCompletedTotal.WithLabelValues("success").Inc()
		w.logger.Info("job_success", "run_id", run.ID, "job_name", job.Name, "duration", result.Duration)
		return
	}

	// attempt_number counts prior failures, so this failure makes it
	// run.AttemptNumber+1. max_retries = 0 means a single attempt.
	attempt := run.AttemptNumber + 1

	metrics.RunExecutionDuration.WithLabelValues("failure").Observe(result.Duration.Seconds())

	if attempt <= job.MaxRetries {
		nextAttemptAt := time.Now().UTC().Add(time.Duration(job.RetryDelaySec) * time.Second)
		if err := w.runs.MarkRetry(ctx, run.ID, attempt, result.Reason, nextAttemptAt); err != nil {
			w.logger.Error("mark run retry", "run_id", run.ID, "error", err)
			return
		}
		metrics.RunsCompletedTotal.WithLabelValues("retry").Inc()
		w.logger.Warn("job_retry",
			"run_id", run.ID,
			"job_name", job.Name,
			"attempt", attempt,
			"max_retries", job.MaxRetries,
			"next_attempt_at", nextAttemptAt,
			"error", result.Reason,
		)
		return
	}

	if err := w.runs.MarkFailed(ctx, run.ID, attempt, result.Reason); err != nil {
		w.logger.Error("mark run failed", "run_id", run.ID, "error", err)
		return
	}
	metrics.RunsCompletedTotal.WithLabelValues("failed").Inc()
	w.logger.Warn("job_failed", "run_id", run.ID, "job_name", job.Name, "attempt", attempt, "error", result.Reason)
}
