package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/ErlanBelekov/cronfleet/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics

	RunsMaterializedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cronfleet",
		Name:      "runs_materialized_total",
		Help:      "Total job runs inserted by the scheduler.",
	})

	MaterializeCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cronfleet",
		Name:      "materialize_cycle_duration_seconds",
		Help:      "Time taken for one materialization pass over all active jobs.",
		Buckets:   prometheus.DefBuckets,
	})

	// Reaper metrics

	ZombiesReapedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cronfleet",
		Name:      "zombies_reaped_total",
		Help:      "Total stale RUNNING runs handled by the reaper, by action.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cronfleet",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// Worker metrics

	RunPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cronfleet",
		Name:      "run_pickup_latency_seconds",
		Help:      "Time from a run's due time to a worker claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	RunExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cronfleet",
		Name:      "run_execution_duration_seconds",
		Help:      "Duration of a single run attempt.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cronfleet",
		Name:      "worker_runs_in_flight",
		Help:      "Number of runs currently being executed by this worker.",
	})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cronfleet",
		Name:      "runs_completed_total",
		Help:      "Total run attempts finished, by outcome.",
	}, []string{"outcome"})

	HeartbeatFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cronfleet",
		Name:      "heartbeat_failures_total",
		Help:      "Heartbeat writes that returned an error.",
	})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cronfleet",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cronfleet",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the worker has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cronfleet",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cronfleet",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		RunsMaterializedTotal,
		MaterializeCycleDuration,
		ZombiesReapedTotal,
		ReaperCycleDuration,
		RunPickupLatency,
		RunExecutionDuration,
		RunsInFlight,
		RunsCompletedTotal,
		HeartbeatFailuresTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus the liveness and readiness probes on
// the operational port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
