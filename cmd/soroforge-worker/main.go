package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/soroforge/soroforge/pkg/analytics"
	"github.com/soroforge/soroforge/pkg/audit"
	"github.com/soroforge/soroforge/pkg/observability"
	"github.com/soroforge/soroforge/pkg/webhooks"
)

var (
	dbURL             = flag.String("db-url", getEnv("SOROFORGE_POSTGRES_URL", "postgres://localhost/soroforge?sslmode=disable"), "PostgreSQL connection URL")
	dailySchedule     = flag.String("daily-schedule", "5 0 * * *", "Cron schedule for daily analytics aggregation (default: 00:05 UTC)")
	alertSchedule     = flag.String("alert-schedule", "0 */6 * * *", "Cron schedule for delivery health checks (default: every 6 hours)")
	retentionSchedule = flag.String("retention-schedule", "30 1 * * *", "Cron schedule for log retention cleanup (default: 01:30 UTC)")
	logRetention      = flag.Duration("log-retention", getEnvDuration("SOROFORGE_LOG_RETENTION", 0), "Delete delivery log rows older than this. Zero keeps them forever")
	auditRetention    = flag.Int("audit-retention-days", 90, "Delete audit entries older than this many days. Zero keeps them forever")
	runOnce           = flag.Bool("run-once", false, "Run aggregation once and exit (for testing or backfilling)")
	aggregationDate   = flag.String("date", "", "Date to aggregate (YYYY-MM-DD). Empty aggregates yesterday. Only used with --run-once")
	backfillDays      = flag.Int("backfill", 0, "Recompute this many past days instead of one. Only used with --run-once")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout).WithField("component", "worker")

	// Connect to database
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Verify connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	aggregator, err := analytics.NewAggregator(analytics.SingleDB{Handle: db}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize aggregator: %v", err)
	}
	alerter := analytics.NewAlerter(analytics.SingleDB{Handle: db}, logger)
	logStore, err := webhooks.NewPostgresDeliveryLogStore(db)
	if err != nil {
		log.Fatalf("Failed to initialize delivery log store: %v", err)
	}
	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit store: %v", err)
	}
	auditStore := audit.NewDBStore(auditLogger)

	// Run once mode (for testing or backfilling)
	if *runOnce {
		ctx := context.Background()

		if *backfillDays > 0 {
			log.Printf("Backfilling analytics for the last %d days", *backfillDays)
			if err := aggregator.Backfill(ctx, *backfillDays); err != nil {
				log.Fatalf("Backfill failed: %v", err)
			}
			log.Println("Backfill completed successfully")
			return
		}

		var date time.Time
		if *aggregationDate != "" {
			date, err = time.Parse("2006-01-02", *aggregationDate)
			if err != nil {
				log.Fatalf("Invalid date format: %v", err)
			}
		} else {
			// Default to yesterday
			date = time.Now().UTC().AddDate(0, 0, -1)
		}

		log.Printf("Running aggregation for date: %s", date.Format("2006-01-02"))
		if err := aggregator.AggregateDaily(ctx, date); err != nil {
			log.Fatalf("Aggregation failed: %v", err)
		}

		log.Println("Aggregation completed successfully")
		return
	}

	// Scheduled mode
	c := cron.New()

	// Daily aggregation job (aggregates yesterday's data at 00:05 UTC)
	_, err = c.AddFunc(*dailySchedule, func() {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		log.Printf("Starting daily aggregation for %s", yesterday.Format("2006-01-02"))

		if err := aggregator.AggregateDaily(context.Background(), yesterday); err != nil {
			log.Printf("Daily aggregation failed: %v", err)
		} else {
			log.Println("Daily aggregation completed successfully")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule daily aggregation: %v", err)
	}

	// Delivery health checks
	_, err = c.AddFunc(*alertSchedule, func() {
		log.Println("Running delivery health checks")

		if err := alerter.CheckAll(context.Background()); err != nil {
			log.Printf("Delivery health checks failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule delivery health checks: %v", err)
	}

	// Retention cleanup for delivery logs and the audit trail
	_, err = c.AddFunc(*retentionSchedule, func() {
		ctx := context.Background()

		if *logRetention > 0 {
			cutoff := time.Now().UTC().Add(-*logRetention)
			removed, err := logStore.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				log.Printf("Delivery log cleanup failed: %v", err)
			} else if removed > 0 {
				log.Printf("Removed %d delivery log rows older than %s", removed, cutoff.Format(time.RFC3339))
			}
		}

		if *auditRetention > 0 {
			removed, err := auditStore.Cleanup(ctx, audit.RetentionPolicy{RetentionDays: *auditRetention})
			if err != nil {
				log.Printf("Audit cleanup failed: %v", err)
			} else if removed > 0 {
				log.Printf("Removed %d audit entries older than %d days", removed, *auditRetention)
			}
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule retention cleanup: %v", err)
	}

	// Start the cron scheduler
	c.Start()
	log.Println("SoroForge worker started")
	log.Printf("Daily aggregation schedule: %s", *dailySchedule)
	log.Printf("Delivery health check schedule: %s", *alertSchedule)
	log.Printf("Retention cleanup schedule: %s", *retentionSchedule)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop the cron scheduler
	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Worker stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
