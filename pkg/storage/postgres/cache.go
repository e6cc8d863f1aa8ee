package postgres

import (
	"context"
	"fmt"

	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
	"github.com/soroforge/soroforge/pkg/webhooks"
)

const (
	subscriptionKeyPrefix = "webhooks:sub:"
	matchKeyPrefix        = "webhooks:match:"
	subscriptionCacheName = "subscriptions"
)

// CachedSubscriptionStore layers Redis over a SubscriptionStore. Single
// lookups and per-event match sets are cached; mutations write through to
// the inner store and then invalidate. Invalidation is best-effort, so a
// match set can lag a mutation by at most the subscription TTL.
type CachedSubscriptionStore struct {
	inner   webhooks.SubscriptionStore
	redis   *RedisClient
	metrics *observability.Metrics
}

var _ webhooks.SubscriptionStore = (*CachedSubscriptionStore)(nil)

// NewCachedSubscriptionStore creates a caching layer over inner.
// metrics may be nil.
func NewCachedSubscriptionStore(inner webhooks.SubscriptionStore, redis *RedisClient, metrics *observability.Metrics) *CachedSubscriptionStore {
	return &CachedSubscriptionStore{
		inner:   inner,
		redis:   redis,
		metrics: metrics,
	}
}

// Create stores a new subscription and invalidates affected match sets
func (c *CachedSubscriptionStore) Create(ctx context.Context, sub *webhooks.Subscription) error {
	if err := c.inner.Create(ctx, sub); err != nil {
		return err
	}

	c.invalidate(ctx, sub.ID)
	return nil
}

// Get returns a subscription, serving from cache when possible
func (c *CachedSubscriptionStore) Get(ctx context.Context, id string) (*webhooks.Subscription, error) {
	key := subscriptionKeyPrefix + id

	var cached webhooks.Subscription
	hit, err := c.redis.GetJSON(ctx, key, &cached)
	if err == nil && hit {
		c.observeHit()
		return &cached, nil
	}
	c.observeMiss()

	sub, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Best-effort population. A failed set only costs the next read a trip
	// to the inner store.
	_ = c.redis.SetJSON(ctx, key, sub, c.redis.TTLFor("subscription"))

	return sub, nil
}

// ListByOwner passes through to the inner store. Owner listings are a
// management read, not a delivery hot path.
func (c *CachedSubscriptionStore) ListByOwner(ctx context.Context, owner string, activeOnly *bool) ([]*webhooks.Subscription, error) {
	return c.inner.ListByOwner(ctx, owner, activeOnly)
}

// ListActiveByEvent returns the active match set for an event, serving from
// cache when possible. This is queried for every emitted event, so empty
// match sets are cached too.
func (c *CachedSubscriptionStore) ListActiveByEvent(ctx context.Context, event events.EventType) ([]*webhooks.Subscription, error) {
	key := matchKeyPrefix + string(event)

	var cached []*webhooks.Subscription
	hit, err := c.redis.GetJSON(ctx, key, &cached)
	if err == nil && hit {
		c.observeHit()
		return cached, nil
	}
	c.observeMiss()

	subs, err := c.inner.ListActiveByEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	_ = c.redis.SetJSON(ctx, key, subs, c.redis.TTLFor("subscription"))

	return subs, nil
}

// Update writes through to the inner store and invalidates
func (c *CachedSubscriptionStore) Update(ctx context.Context, sub *webhooks.Subscription) error {
	if err := c.inner.Update(ctx, sub); err != nil {
		return err
	}

	c.invalidate(ctx, sub.ID)
	return nil
}

// Delete removes a subscription and invalidates
func (c *CachedSubscriptionStore) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}

	c.invalidate(ctx, id)
	return nil
}

// CountActive passes through to the inner store
func (c *CachedSubscriptionStore) CountActive(ctx context.Context) (int, error) {
	return c.inner.CountActive(ctx)
}

// invalidate drops the subscription key and every match set. Match sets are
// keyed by event and a mutation can change which events a subscription
// matches, so they are cleared wholesale.
func (c *CachedSubscriptionStore) invalidate(ctx context.Context, id string) {
	_ = c.redis.Delete(ctx, subscriptionKeyPrefix+id)
	_ = c.redis.InvalidatePatterns(ctx, fmt.Sprintf("%s*", matchKeyPrefix))
}

func (c *CachedSubscriptionStore) observeHit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(subscriptionCacheName).Inc()
	}
}

func (c *CachedSubscriptionStore) observeMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(subscriptionCacheName).Inc()
	}
}
