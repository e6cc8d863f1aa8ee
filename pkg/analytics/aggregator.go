package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soroforge/soroforge/pkg/observability"
)

// DB pairs a write handle with a read handle. Rollup reads run against
// the replica; the upsert itself goes to the primary.
// *postgres.ConnectionManager satisfies it; SingleDB adapts a lone
// handle.
type DB interface {
	Primary() *sql.DB
	Replica() *sql.DB
}

// SingleDB serves reads and writes from one database handle
type SingleDB struct {
	Handle *sql.DB
}

// Primary returns the wrapped handle
func (s SingleDB) Primary() *sql.DB { return s.Handle }

// Replica returns the wrapped handle
func (s SingleDB) Replica() *sql.DB { return s.Handle }

// Aggregator computes daily platform statistics into analytics_daily
type Aggregator struct {
	db     DB
	logger *observability.Logger
}

// NewAggregator creates the aggregator and ensures its table
func NewAggregator(db DB, logger *observability.Logger) (*Aggregator, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}

	agg := &Aggregator{db: db, logger: logger.WithField("component", "analytics")}
	if err := agg.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure analytics_daily table: %w", err)
	}
	return agg, nil
}

func (a *Aggregator) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS analytics_daily (
		date DATE PRIMARY KEY,
		tokens_created BIGINT NOT NULL DEFAULT 0,
		burn_events BIGINT NOT NULL DEFAULT 0,
		cumulative_burns BIGINT NOT NULL DEFAULT 0,
		deliveries BIGINT NOT NULL DEFAULT 0,
		failed_deliveries BIGINT NOT NULL DEFAULT 0,
		delivery_success_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		computed_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`

	_, err := a.db.Primary().Exec(query)
	return err
}

// dayStats holds the figures collected for one rollup window
type dayStats struct {
	tokensCreated   int64
	cumulativeBurns int64
	previousBurns   int64
	deliveries      int64
	failures        int64
}

// AggregateDaily computes the rollup row for the given day and upserts
// it. Token creations and deliveries are counted from their own
// timestamped rows; burn events are the day-over-day delta of the
// registry's cumulative burn counter, so the figure is exact when the
// rollup runs on schedule. A late backfill sees the current counter,
// which collapses any missed burns into the oldest backfilled day.
func (a *Aggregator) AggregateDaily(ctx context.Context, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	from, to := day, day.Add(24*time.Hour)

	stats, err := a.collectDay(ctx, day, from, to)
	if err != nil {
		return fmt.Errorf("failed to collect stats for %s: %w", day.Format("2006-01-02"), err)
	}

	burnEvents := stats.cumulativeBurns - stats.previousBurns
	if burnEvents < 0 {
		burnEvents = 0
	}

	successRate := 0.0
	if stats.deliveries > 0 {
		successRate = float64(stats.deliveries-stats.failures) / float64(stats.deliveries)
	}

	query := `
		INSERT INTO analytics_daily
			(date, tokens_created, burn_events, cumulative_burns,
			 deliveries, failed_deliveries, delivery_success_rate, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (date) DO UPDATE SET
			tokens_created = EXCLUDED.tokens_created,
			burn_events = EXCLUDED.burn_events,
			cumulative_burns = EXCLUDED.cumulative_burns,
			deliveries = EXCLUDED.deliveries,
			failed_deliveries = EXCLUDED.failed_deliveries,
			delivery_success_rate = EXCLUDED.delivery_success_rate,
			computed_at = NOW()
	`

	_, err = a.db.Primary().ExecContext(ctx, query,
		day, stats.tokensCreated, burnEvents, stats.cumulativeBurns,
		stats.deliveries, stats.failures, successRate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analytics row for %s: %w", day.Format("2006-01-02"), err)
	}

	a.logger.WithFields(map[string]interface{}{
		"date":          day.Format("2006-01-02"),
		"tokensCreated": stats.tokensCreated,
		"burnEvents":    burnEvents,
		"deliveries":    stats.deliveries,
	}).Infof("daily analytics rollup complete")

	return nil
}

// collectDay runs the per-window stat queries in parallel against the
// replica.
func (a *Aggregator) collectDay(ctx context.Context, day, from, to time.Time) (*dayStats, error) {
	var stats dayStats
	replica := a.db.Replica()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM tokens WHERE created_at >= $1 AND created_at < $2`,
			from, to,
		).Scan(&stats.tokensCreated)
	})

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COALESCE(SUM(burn_count), 0) FROM tokens`,
		).Scan(&stats.cumulativeBurns)
	})

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT succeeded)
			 FROM webhook_delivery_logs
			 WHERE attempted_at >= $1 AND attempted_at < $2 AND NOT is_test`,
			from, to,
		).Scan(&stats.deliveries, &stats.failures)
	})

	g.Go(func() error {
		err := replica.QueryRowContext(gctx,
			`SELECT cumulative_burns FROM analytics_daily
			 WHERE date < $1 ORDER BY date DESC LIMIT 1`,
			day,
		).Scan(&stats.previousBurns)
		if err == sql.ErrNoRows {
			stats.previousBurns = 0
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Backfill recomputes the last n days, oldest first so the burn deltas
// chain in order. Today is excluded; its window is still open.
func (a *Aggregator) Backfill(ctx context.Context, days int) error {
	if days < 1 {
		days = 1
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := days; i >= 1; i-- {
		if err := a.AggregateDaily(ctx, today.AddDate(0, 0, -i)); err != nil {
			return err
		}
	}
	return nil
}
