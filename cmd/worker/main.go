package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/cronfleet/config"
	"github.com/ErlanBelekov/cronfleet/internal/health"
	"github.com/ErlanBelekov/cronfleet/internal/infrastructure/postgres"
	redisinfra "github.com/ErlanBelekov/cronfleet/internal/infrastructure/redis"
	ctxlog "github.com/ErlanBelekov/cronfleet/internal/log"
	"github.com/ErlanBelekov/cronfleet/internal/metrics"
	"github.com/ErlanBelekov/cronfleet/internal/worker"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	var presence worker.Presence = worker.NopPresence{}
	var kvPinger health.Pinger
	if cfg.RedisAddr != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			// Presence is observational; the worker runs without it.
			logger.Warn("redis unavailable, presence disabled", "error", err)
		} else {
			defer func() { _ = rdb.Close() }()
			presence = redisinfra.NewStore(rdb, cfg.WorkerTTL())
			kvPinger = health.PingerFunc(func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			})
		}
	}

	metrics.Register()
	checker := health.NewChecker(pool, kvPinger, logger, prometheus.DefaultRegisterer)

	jobRepo := postgres.NewJobRepository(pool)
	runRepo := postgres.NewRunRepository(pool)

	w := worker.New(
		cfg.WorkerID,
		runRepo,
		jobRepo,
		presence,
		logger,
		cfg.PollInterval(),
		cfg.HeartbeatInterval(),
		cfg.DrainTimeout(),
		cfg.WorkerConcurrency,
	)
	workerDone := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(workerDone)
	}()

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	// Wait for the drain: in-flight runs finish and commit their
	// terminal writes before the process exits.
	<-workerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
