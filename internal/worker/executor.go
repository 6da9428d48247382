package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
)

// Result is the tagged outcome of one synthetic attempt. The state
// machine branches on Failed; Reason is only set for failures.
type Result struct {
	Failed   bool
	Reason   string
	Duration time.Duration
}

// Executor implements the synthetic work model: draw r uniformly in
// [0,1); r < failure_probability fails the attempt, otherwise sleep
// execution_time_sec and succeed. Real deployments substitute actual
// task dispatch here; the surrounding state machine is identical.
type Executor struct {
	rng func() float64
}

func NewExecutor() *Executor {
	return &Executor{rng: rand.Float64}
}

// newExecutorWithRNG pins the random draw for deterministic tests.
func newExecutorWithRNG(rng func() float64) *Executor {
	return &Executor{rng: rng}
}

// Attempt returns a non-nil error only when ctx is canceled mid-sleep;
// a synthetic failure is a Result, not an error.
func (e *Executor) Attempt(ctx context.Context, job *domain.Job) (Result, error) {
	start := time.Now()

	if r := e.rng(); r < job.FailureProbability {
		return Result{
			Failed:   true,
			Reason:   fmt.Sprintf("synthetic failure (r=%.3f < p=%.3f)", r, job.FailureProbability),
			Duration: time.Since(start),
		}, nil
	}

	timer := time.NewTimer(time.Duration(job.ExecutionTimeSec) * time.Second)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-timer.C:
	}

	return Result{Duration: time.Since(start)}, nil
}
