package analytics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soroforge/soroforge/pkg/observability"
)

const (
	platformCacheKey   = "analytics:platform"
	defaultSnapshotTTL = time.Minute

	// historyDays bounds the daily series embedded in the snapshot
	historyDays = 7
)

// ErrNoDatabase reports that the service was built without a database,
// which happens under memory storage. The handler maps it to 503.
var ErrNoDatabase = errors.New("analytics requires postgres storage")

// SnapshotCache is the slice of the Redis client the snapshot needs.
// *postgres.RedisClient satisfies it; a nil cache disables the layer.
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// PlatformSnapshot is the dashboard view of the platform: live totals
// plus the recent daily series from analytics_daily.
type PlatformSnapshot struct {
	GeneratedAt            time.Time  `json:"generatedAt"`
	TotalTokens            int64      `json:"totalTokens"`
	TotalBurnEvents        int64      `json:"totalBurnEvents"`
	TotalBurned            string     `json:"totalBurned"`
	ActiveSubscriptions    int64      `json:"activeSubscriptions"`
	TokensCreated24h       int64      `json:"tokensCreated24h"`
	Deliveries24h          int64      `json:"deliveries24h"`
	DeliverySuccessRate24h float64    `json:"deliverySuccessRate24h"`
	Daily                  []DayStats `json:"daily"`
}

// DayStats is one analytics_daily row, dates formatted as 2006-01-02
type DayStats struct {
	Date                string  `json:"date"`
	TokensCreated       int64   `json:"tokensCreated"`
	BurnEvents          int64   `json:"burnEvents"`
	Deliveries          int64   `json:"deliveries"`
	FailedDeliveries    int64   `json:"failedDeliveries"`
	DeliverySuccessRate float64 `json:"deliverySuccessRate"`
}

// Service serves platform analytics snapshots, cache-aside through
// Redis so dashboard polling stays off the database.
type Service struct {
	db      DB
	cache   SnapshotCache
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the analytics service
func NewService(db DB, cache SnapshotCache, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}

	return &Service{
		db:      db,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.WithField("component", "analytics"),
		metrics: metrics,
	}
}

// GetPlatform returns the current platform snapshot
func (s *Service) GetPlatform(ctx context.Context) (*PlatformSnapshot, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	if s.cache != nil {
		var cached PlatformSnapshot
		hit, err := s.cache.GetJSON(ctx, platformCacheKey, &cached)
		if err != nil {
			s.logger.WithError(err).Warnf("snapshot cache read failed")
		}
		if hit {
			s.observeCache(true)
			return &cached, nil
		}
		s.observeCache(false)
	}

	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		// A failed cache write only costs the next reader a round of
		// database queries.
		if err := s.cache.SetJSON(ctx, platformCacheKey, snap, s.ttl); err != nil {
			s.logger.WithError(err).Warnf("snapshot cache write failed")
		}
	}

	return snap, nil
}

func (s *Service) buildSnapshot(ctx context.Context) (*PlatformSnapshot, error) {
	snap := &PlatformSnapshot{GeneratedAt: time.Now().UTC()}
	since := snap.GeneratedAt.Add(-24 * time.Hour)
	replica := s.db.Replica()

	var successes int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COUNT(*), COALESCE(SUM(burn_count), 0), COALESCE(SUM(total_burned), 0)::text FROM tokens`,
		).Scan(&snap.TotalTokens, &snap.TotalBurnEvents, &snap.TotalBurned)
	})

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM webhook_subscriptions WHERE active`,
		).Scan(&snap.ActiveSubscriptions)
	})

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM tokens WHERE created_at >= $1`,
			since,
		).Scan(&snap.TokensCreated24h)
	})

	g.Go(func() error {
		return replica.QueryRowContext(gctx,
			`SELECT COUNT(*), COUNT(*) FILTER (WHERE succeeded)
			 FROM webhook_delivery_logs
			 WHERE attempted_at >= $1 AND NOT is_test`,
			since,
		).Scan(&snap.Deliveries24h, &successes)
	})

	g.Go(func() error {
		daily, err := s.recentDaily(gctx, historyDays)
		if err != nil {
			return err
		}
		snap.Daily = daily
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build platform snapshot: %w", err)
	}

	if snap.Deliveries24h > 0 {
		snap.DeliverySuccessRate24h = float64(successes) / float64(snap.Deliveries24h)
	}

	return snap, nil
}

// recentDaily returns the last n rollup rows in ascending date order
func (s *Service) recentDaily(ctx context.Context, n int) ([]DayStats, error) {
	query := `
		SELECT date, tokens_created, burn_events, deliveries,
		       failed_deliveries, delivery_success_rate
		FROM analytics_daily
		ORDER BY date DESC
		LIMIT $1
	`

	rows, err := s.db.Replica().QueryContext(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var daily []DayStats
	for rows.Next() {
		var day DayStats
		var date time.Time
		if err := rows.Scan(&date, &day.TokensCreated, &day.BurnEvents,
			&day.Deliveries, &day.FailedDeliveries, &day.DeliverySuccessRate); err != nil {
			return nil, err
		}
		day.Date = date.Format("2006-01-02")
		daily = append(daily, day)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest rows come back first; the dashboard wants them oldest
	// first.
	for i, j := 0, len(daily)-1; i < j; i, j = i+1, j-1 {
		daily[i], daily[j] = daily[j], daily[i]
	}

	return daily, nil
}

func (s *Service) observeCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues("analytics_platform").Inc()
		return
	}
	s.metrics.CacheMissesTotal.WithLabelValues("analytics_platform").Inc()
}
