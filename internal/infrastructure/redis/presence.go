package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	workerKeyPrefix = "worker:"
	runningRunsKey  = "running_job_runs"
)

func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Store publishes worker presence to Redis for dashboards. It is soft
// state: the authoritative liveness signal is last_heartbeat_at in the
// database, so callers log and swallow every error from here.
type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewStore(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

type workerPresence struct {
	WorkerID        string    `json:"worker_id"`
	LastSeen        time.Time `json:"last_seen"`
	CurrentJobRunID *int64    `json:"current_job_run_id"`
}

// Refresh writes worker:<id> with the TTL. runID is nil when the
// worker is idle.
func (s *Store) Refresh(ctx context.Context, workerID string, runID *int64) error {
	payload, err := json.Marshal(workerPresence{
		WorkerID:        workerID,
		LastSeen:        time.Now().UTC(),
		CurrentJobRunID: runID,
	})
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	return s.client.Set(ctx, workerKeyPrefix+workerID, payload, s.ttl).Err()
}

func (s *Store) TrackRun(ctx context.Context, runID int64) error {
	return s.client.SAdd(ctx, runningRunsKey, runID).Err()
}

func (s *Store) UntrackRun(ctx context.Context, runID int64) error {
	return s.client.SRem(ctx, runningRunsKey, runID).Err()
}

// Sweep deletes all worker:* keys. Run once at control-plane startup
// so stale presence from before a full restart does not linger.
func (s *Store) Sweep(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, workerKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan worker keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete worker keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
