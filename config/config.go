package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// Presence store. Empty REDIS_ADDR disables presence entirely.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	WorkerID          string `env:"WORKER_ID"` // defaults to hostname-pid
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"5" validate:"min=1,max=100"`

	PollIntervalSec      int `env:"POLL_INTERVAL_SEC" envDefault:"2" validate:"min=1,max=60"`
	HeartbeatIntervalSec int `env:"HEARTBEAT_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=60"`
	WorkerTTLSec         int `env:"WORKER_TTL_SEC" envDefault:"15" validate:"min=1"`
	SchedulerIntervalSec int `env:"SCHEDULER_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=60"`
	ReaperIntervalSec    int `env:"REAPER_INTERVAL_SEC" envDefault:"30" validate:"min=1"`
	ZombieTimeoutSec     int `env:"ZOMBIE_TIMEOUT_SEC" envDefault:"60" validate:"min=1"`
	DrainTimeoutSec      int `env:"DRAIN_TIMEOUT_SEC" envDefault:"30" validate:"min=1"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// One missed beat must never look like a crashed worker.
	if cfg.ZombieTimeoutSec <= 2*cfg.HeartbeatIntervalSec {
		return nil, fmt.Errorf(
			"ZOMBIE_TIMEOUT_SEC (%d) must be greater than 2x HEARTBEAT_INTERVAL_SEC (%d)",
			cfg.ZombieTimeoutSec, cfg.HeartbeatIntervalSec)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) PollInterval() time.Duration      { return time.Duration(c.PollIntervalSec) * time.Second }
func (c *Config) HeartbeatInterval() time.Duration { return time.Duration(c.HeartbeatIntervalSec) * time.Second }
func (c *Config) WorkerTTL() time.Duration         { return time.Duration(c.WorkerTTLSec) * time.Second }
func (c *Config) SchedulerInterval() time.Duration { return time.Duration(c.SchedulerIntervalSec) * time.Second }
func (c *Config) ReaperInterval() time.Duration    { return time.Duration(c.ReaperIntervalSec) * time.Second }
func (c *Config) ZombieTimeout() time.Duration     { return time.Duration(c.ZombieTimeoutSec) * time.Second }
func (c *Config) DrainTimeout() time.Duration      { return time.Duration(c.DrainTimeoutSec) * time.Second }
