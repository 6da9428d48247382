package worker

import "context"

// Presence is the observational key-value surface. It is never
// load-bearing: every error from it is logged and swallowed, and a
// deployment without Redis uses NopPresence.
type Presence interface {
	// Refresh publishes worker liveness; runID is nil when idle.
	Refresh(ctx context.Context, workerID string, runID *int64) error
	TrackRun(ctx context.Context, runID int64) error
	UntrackRun(ctx context.Context, runID int64) error
}

type NopPresence struct{}

func (NopPresence) Refresh(context.Context, string, *int64) error { return nil }
func (NopPresence) TrackRun(context.Context, int64) error         { return nil }
func (NopPresence) UntrackRun(context.Context, int64) error       { return nil }
