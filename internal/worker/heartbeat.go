package worker

import (
	"context"
	"time"

	"github.com/ErlanBelekov/cronfleet/internal/metrics"
)

// heartbeat proves liveness for one RUNNING run until ctx is canceled.
// Each beat is its own short transaction plus a presence refresh.
// Errors are logged and swallowed: a missed beat only matters once the
// zombie timeout lapses, and the timeout absorbs several misses.
func (w *Worker) heartbeat(ctx context.Context, runID int64) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runs.Heartbeat(ctx, runID); err != nil {
				metrics.HeartbeatFailuresTotal.Inc()
				w.logger.Warn("heartbeat failed", "run_id", runID, "error", err)
			} else {
				w.logger.Debug("heartbeat", "run_id", runID)
			}
			if err := w.presence.Refresh(ctx, w.id, &runID); err != nil {
				w.logger.Warn("presence refresh failed", "run_id", runID, "error", err)
			}
		}
	}
}
