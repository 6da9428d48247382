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
	httptransport "github.com/ErlanBelekov/cronfleet/internal/transport/http"
	"github.com/ErlanBelekov/cronfleet/internal/transport/http/handler"
	"github.com/ErlanBelekov/cronfleet/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	var kvPinger health.Pinger
	if cfg.RedisAddr != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()

		// Presence keys from before a full restart are meaningless.
		store := redisinfra.NewStore(rdb, cfg.WorkerTTL())
		if err := store.Sweep(ctx); err != nil {
			logger.Warn("presence sweep failed", "error", err)
		}

		kvPinger = health.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	jobRepo := postgres.NewJobRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	jobUsecase := usecase.NewJobUsecase(jobRepo, runRepo)
	jobHandler := handler.NewJobHandler(jobUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(pool, kvPinger, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, jobHandler),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
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
