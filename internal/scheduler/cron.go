package scheduler

import (
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/domain"
	"github.com/robfig/cron/v3"
)

// NextFiring returns the first firing of the 5-field cron expression
// strictly after t, in UTC. Standard cron has minute granularity, so
// the result always has zero seconds.
func NextFiring(expr string, t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, domain.ErrInvalidCronExpr
	}
	return sched.Next(t.UTC()), nil
}
