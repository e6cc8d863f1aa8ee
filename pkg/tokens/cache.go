package tokens

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/soroforge/soroforge/pkg/observability"
)

const (
	tokenCacheName       = "tokens"
	leaderboardCacheName = "leaderboard"

	// leaderboardSlots bounds the distinct limits worth keeping cached
	leaderboardSlots = 16

	defaultTokenCacheSize = 1024
)

// CachedStore layers capacity-bounded LRU caches over a Store. Token
// lookups and the burn leaderboard are served from cache; mutations
// evict the affected entries so reads never trail a write by more than
// the TTL.
type CachedStore struct {
	inner       Store
	tokens      *lru.LRU[string, *Token]
	leaderboard *lru.LRU[int, []LeaderboardEntry]
	metrics     *observability.Metrics
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps inner with LRU caches. capacity bounds the token
// cache entry count; zero values fall back to defaults.
func NewCachedStore(inner Store, capacity int, tokenTTL, leaderboardTTL time.Duration, metrics *observability.Metrics) *CachedStore {
	if capacity <= 0 {
		capacity = defaultTokenCacheSize
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if leaderboardTTL <= 0 {
		leaderboardTTL = time.Minute
	}

	return &CachedStore{
		inner:       inner,
		tokens:      lru.NewLRU[string, *Token](capacity, nil, tokenTTL),
		leaderboard: lru.NewLRU[int, []LeaderboardEntry](leaderboardSlots, nil, leaderboardTTL),
		metrics:     metrics,
	}
}

// Create records the token and primes the lookup cache
func (c *CachedStore) Create(ctx context.Context, token *Token) error {
	if err := c.inner.Create(ctx, token); err != nil {
		return err
	}
	c.tokens.Add(token.Address, cloneToken(token))
	return nil
}

// Get returns the token at the given address, from cache when possible
func (c *CachedStore) Get(ctx context.Context, address string) (*Token, error) {
	if token, ok := c.tokens.Get(address); ok {
		c.observeHit(tokenCacheName)
		return cloneToken(token), nil
	}
	c.observeMiss(tokenCacheName)

	token, err := c.inner.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	c.tokens.Add(address, cloneToken(token))
	return token, nil
}

// ListByCreator passes through to the inner store
func (c *CachedStore) ListByCreator(ctx context.Context, creator string) ([]*Token, error) {
	return c.inner.ListByCreator(ctx, creator)
}

// Search passes through to the inner store; page caching happens at the
// service layer where the Redis cache lives.
func (c *CachedStore) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return c.inner.Search(ctx, req)
}

// AddBurn folds the burn and evicts the stale entries
func (c *CachedStore) AddBurn(ctx context.Context, address, amount string, burns int64) error {
	if err := c.inner.AddBurn(ctx, address, amount, burns); err != nil {
		return err
	}
	c.tokens.Remove(address)
	c.leaderboard.Purge()
	return nil
}

// SetClawback records the flag and evicts the stale lookup entry
func (c *CachedStore) SetClawback(ctx context.Context, address string, enabled bool) error {
	if err := c.inner.SetClawback(ctx, address, enabled); err != nil {
		return err
	}
	c.tokens.Remove(address)
	return nil
}

// BurnLeaderboard returns the ranking, from cache when possible
func (c *CachedStore) BurnLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	if entries, ok := c.leaderboard.Get(limit); ok {
		c.observeHit(leaderboardCacheName)
		out := make([]LeaderboardEntry, len(entries))
		copy(out, entries)
		return out, nil
	}
	c.observeMiss(leaderboardCacheName)

	entries, err := c.inner.BurnLeaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	cached := make([]LeaderboardEntry, len(entries))
	copy(cached, entries)
	c.leaderboard.Add(limit, cached)
	return entries, nil
}

// Count passes through to the inner store
func (c *CachedStore) Count(ctx context.Context) (int64, error) {
	return c.inner.Count(ctx)
}

func (c *CachedStore) observeHit(cache string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	}
}

func (c *CachedStore) observeMiss(cache string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}
