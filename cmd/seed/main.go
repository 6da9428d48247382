// seed inserts a handful of demo jobs into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/cronfleet/internal/infrastructure/postgres"
)

type jobSpec struct {
	name        string
	schedule    string
	execSec     int
	failureProb float64
	maxRetries  int
	retryDelay  int
}

var jobs = []jobSpec{
	// Happy path — never fails, completes in a second
	{"heartbeat-ping", "* * * * *", 1, 0.0, 0, 5},
	{"minute-report", "* * * * *", 2, 0.0, 1, 5},

	// Flaky — fails about half the time, retries cover it
	{"flaky-sync", "*/2 * * * *", 1, 0.5, 3, 3},
	{"flaky-export", "*/5 * * * *", 3, 0.3, 2, 10},

	// Doomed — always fails, exhausts retries and settles at FAILED
	{"doomed-upload", "*/2 * * * *", 1, 1.0, 2, 3},
	{"doomed-one-shot", "*/5 * * * *", 1, 1.0, 0, 5},

	// Slow — long enough for heartbeats to matter
	{"slow-batch", "*/5 * * * *", 30, 0.1, 1, 15},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := postgres.Migrate(ctx, dbURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	var inserted int
	for _, spec := range jobs {
		var id int64
		err := pool.QueryRow(ctx, `
			INSERT INTO jobs (
				name, schedule, execution_time_sec, failure_probability,
				max_retries, retry_delay_sec, is_active
			) VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING id`,
			spec.name, spec.schedule, spec.execSec, spec.failureProb,
			spec.maxRetries, spec.retryDelay,
		).Scan(&id)
		if err != nil {
			log.Fatalf("insert job %s: %v", spec.name, err)
		}
		inserted++
		fmt.Printf("  %-18s id=%-4d schedule=%-12q p(fail)=%.1f retries=%d\n",
			spec.name, id, spec.schedule, spec.failureProb, spec.maxRetries)
	}

	fmt.Println()
	fmt.Printf("Seed complete: %d jobs\n", inserted)
	fmt.Println()
	fmt.Println("Next:")
	fmt.Println("  go run ./cmd/scheduler   # materializes runs at their cron firings")
	fmt.Println("  go run ./cmd/worker      # claims and executes due runs")
	fmt.Println("  go run ./cmd/api         # control plane on :8080")
	fmt.Println()
	fmt.Println("Watch run history:")
	fmt.Println("  curl -s localhost:8080/jobs/1/runs | jq .")
}
