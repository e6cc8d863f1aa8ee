package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// fakeSnapshotCache is an in-memory stand-in for the Redis client
type fakeSnapshotCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{entries: make(map[string][]byte)}
}

func (f *fakeSnapshotCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeSnapshotCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = raw
	f.sets++
	return nil
}

func TestGetPlatformCacheHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	cache := newFakeSnapshotCache()
	cached := &PlatformSnapshot{
		GeneratedAt: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		TotalTokens: 42,
		TotalBurned: "5000",
	}
	if err := cache.SetJSON(context.Background(), platformCacheKey, cached, time.Minute); err != nil {
		t.Fatalf("Failed to prime cache: %v", err)
	}

	service := NewService(SingleDB{Handle: db}, cache, time.Minute, quietLogger(), nil)

	snap, err := service.GetPlatform(context.Background())
	if err != nil {
		t.Fatalf("GetPlatform failed: %v", err)
	}

	if snap.TotalTokens != 42 {
		t.Errorf("Expected TotalTokens=42, got %d", snap.TotalTokens)
	}
	if snap.TotalBurned != "5000" {
		t.Errorf("Expected TotalBurned=5000, got %s", snap.TotalBurned)
	}

	// A cache hit must not touch the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unexpected database access: %v", err)
	}
}

func TestGetPlatformCacheMissBuildsSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	// The five snapshot queries run concurrently.
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`COALESCE\(SUM\(burn_count\), 0\), COALESCE\(SUM\(total_burned\), 0\)::text`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "burns", "burned"}).
			AddRow(42, 100, "5000"))

	mock.ExpectQuery(`FROM webhook_subscriptions WHERE active`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tokens WHERE created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	mock.ExpectQuery(`FROM webhook_delivery_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "successes"}).AddRow(40, 30))

	mock.ExpectQuery(`FROM analytics_daily`).
		WillReturnRows(sqlmock.NewRows([]string{
			"date", "tokens_created", "burn_events", "deliveries",
			"failed_deliveries", "delivery_success_rate",
		}).
			AddRow(time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), 5, 10, 100, 5, 0.95).
			AddRow(time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC), 3, 8, 90, 9, 0.9))

	cache := newFakeSnapshotCache()
	service := NewService(SingleDB{Handle: db}, cache, time.Minute, quietLogger(), nil)

	snap, err := service.GetPlatform(context.Background())
	if err != nil {
		t.Fatalf("GetPlatform failed: %v", err)
	}

	if snap.TotalTokens != 42 {
		t.Errorf("Expected TotalTokens=42, got %d", snap.TotalTokens)
	}
	if snap.TotalBurnEvents != 100 {
		t.Errorf("Expected TotalBurnEvents=100, got %d", snap.TotalBurnEvents)
	}
	if snap.TotalBurned != "5000" {
		t.Errorf("Expected TotalBurned=5000, got %s", snap.TotalBurned)
	}
	if snap.ActiveSubscriptions != 7 {
		t.Errorf("Expected ActiveSubscriptions=7, got %d", snap.ActiveSubscriptions)
	}
	if snap.TokensCreated24h != 3 {
		t.Errorf("Expected TokensCreated24h=3, got %d", snap.TokensCreated24h)
	}
	if snap.Deliveries24h != 40 {
		t.Errorf("Expected Deliveries24h=40, got %d", snap.Deliveries24h)
	}
	if snap.DeliverySuccessRate24h != 0.75 {
		t.Errorf("Expected DeliverySuccessRate24h=0.75, got %f", snap.DeliverySuccessRate24h)
	}

	// Daily rows come back newest first and are served oldest first.
	if len(snap.Daily) != 2 {
		t.Fatalf("Expected 2 daily rows, got %d", len(snap.Daily))
	}
	if snap.Daily[0].Date != "2026-08-19" {
		t.Errorf("Expected first daily date=2026-08-19, got %s", snap.Daily[0].Date)
	}
	if snap.Daily[1].Date != "2026-08-20" {
		t.Errorf("Expected second daily date=2026-08-20, got %s", snap.Daily[1].Date)
	}
	if snap.Daily[1].Deliveries != 100 {
		t.Errorf("Expected deliveries=100, got %d", snap.Daily[1].Deliveries)
	}

	// The built snapshot lands in the cache for the next reader.
	if cache.sets != 1 {
		t.Errorf("Expected 1 cache write, got %d", cache.sets)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestGetPlatformWithoutCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`COALESCE\(SUM\(burn_count\), 0\), COALESCE\(SUM\(total_burned\), 0\)::text`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "burns", "burned"}).AddRow(1, 0, "0"))
	mock.ExpectQuery(`FROM webhook_subscriptions WHERE active`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tokens WHERE created_at`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM webhook_delivery_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "successes"}).AddRow(0, 0))
	mock.ExpectQuery(`FROM analytics_daily`).
		WillReturnRows(sqlmock.NewRows([]string{
			"date", "tokens_created", "burn_events", "deliveries",
			"failed_deliveries", "delivery_success_rate",
		}))

	service := NewService(SingleDB{Handle: db}, nil, 0, quietLogger(), nil)

	snap, err := service.GetPlatform(context.Background())
	if err != nil {
		t.Fatalf("GetPlatform failed: %v", err)
	}

	if snap.TotalTokens != 1 {
		t.Errorf("Expected TotalTokens=1, got %d", snap.TotalTokens)
	}
	if snap.DeliverySuccessRate24h != 0 {
		t.Errorf("Expected zero success rate with no deliveries, got %f", snap.DeliverySuccessRate24h)
	}
	if len(snap.Daily) != 0 {
		t.Errorf("Expected empty daily series, got %d rows", len(snap.Daily))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
