package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soroforge/soroforge/pkg/observability"
)

func setupCachedStore(t *testing.T, capacity int) (*CachedStore, *MemoryStore, *observability.Metrics) {
	t.Helper()

	inner := NewMemoryStore()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	cached := NewCachedStore(inner, capacity, time.Hour, time.Minute, metrics)
	return cached, inner, metrics
}

func TestCachedStore_GetServesFromCache(t *testing.T) {
	cached, inner, metrics := setupCachedStore(t, 8)
	ctx := context.Background()

	require.NoError(t, cached.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", time.Now().UTC())))

	// Burn recorded directly on the inner store; the cached entry does
	// not see it, which proves the read came from cache.
	require.NoError(t, inner.AddBurn(ctx, "CTOKEN1", "500", 1))

	got, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "0", got.TotalBurned)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues(tokenCacheName)))
}

func TestCachedStore_GetMissFallsThrough(t *testing.T) {
	cached, inner, metrics := setupCachedStore(t, 8)
	ctx := context.Background()

	require.NoError(t, inner.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", time.Now().UTC())))

	got, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "Moon", got.Name)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues(tokenCacheName)))

	// The miss primed the cache.
	_, err = cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues(tokenCacheName)))
}

func TestCachedStore_GetMissingPassesError(t *testing.T) {
	cached, _, _ := setupCachedStore(t, 8)

	_, err := cached.Get(context.Background(), "CUNKNOWN")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_AddBurnEvicts(t *testing.T) {
	cached, _, _ := setupCachedStore(t, 8)
	ctx := context.Background()

	require.NoError(t, cached.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", time.Now().UTC())))

	// Prime, mutate through the cache, then read again.
	_, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)

	require.NoError(t, cached.AddBurn(ctx, "CTOKEN1", "250", 1))

	got, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "250", got.TotalBurned)
	assert.Equal(t, int64(1), got.BurnCount)
}

func TestCachedStore_SetClawbackEvicts(t *testing.T) {
	cached, _, _ := setupCachedStore(t, 8)
	ctx := context.Background()

	require.NoError(t, cached.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", time.Now().UTC())))
	_, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)

	require.NoError(t, cached.SetClawback(ctx, "CTOKEN1", true))

	got, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.True(t, got.ClawbackEnabled)
}

func TestCachedStore_LeaderboardCachesPerLimit(t *testing.T) {
	cached, inner, metrics := setupCachedStore(t, 8)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, cached.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", now)))
	require.NoError(t, cached.AddBurn(ctx, "CTOKEN1", "100", 1))

	first, err := cached.BurnLeaderboard(ctx, 5)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A burn recorded behind the cache's back is invisible to the
	// cached limit but visible to a different one.
	require.NoError(t, inner.AddBurn(ctx, "CTOKEN1", "900", 1))

	stale, err := cached.BurnLeaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "100", stale[0].TotalBurned)

	fresh, err := cached.BurnLeaderboard(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "1000", fresh[0].TotalBurned)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues(leaderboardCacheName)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues(leaderboardCacheName)))
}

func TestCachedStore_AddBurnPurgesLeaderboard(t *testing.T) {
	cached, _, _ := setupCachedStore(t, 8)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, cached.Create(ctx, testToken("CTOKEN1", "GALICE", "Moon", "MOON", now)))
	require.NoError(t, cached.AddBurn(ctx, "CTOKEN1", "100", 1))

	_, err := cached.BurnLeaderboard(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, cached.AddBurn(ctx, "CTOKEN1", "900", 1))

	entries, err := cached.BurnLeaderboard(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "1000", entries[0].TotalBurned)
}

func TestCachedStore_CapacityBound(t *testing.T) {
	cached, _, _ := setupCachedStore(t, 2)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, cached.Create(ctx, testToken("CTOKEN1", "GALICE", "One", "ONE", now)))
	require.NoError(t, cached.Create(ctx, testToken("CTOKEN2", "GALICE", "Two", "TWO", now)))
	require.NoError(t, cached.Create(ctx, testToken("CTOKEN3", "GALICE", "Three", "THREE", now)))

	assert.Equal(t, 2, cached.tokens.Len())

	// Evicted entries are still served from the inner store.
	got, err := cached.Get(ctx, "CTOKEN1")
	require.NoError(t, err)
	assert.Equal(t, "One", got.Name)
}
