package webhooks

import (
	"sync"
	"time"
)

// RateLimiter implements per-subscription token bucket rate limiting.
// It guards the manual test endpoint so a subscriber cannot hammer
// their own consumer through the platform.
type RateLimiter struct {
	buckets      map[string]*TokenBucket
	mutex        sync.RWMutex
	maxTokens    int
	refillPeriod time.Duration
}

// TokenBucket holds the state for one subscription
type TokenBucket struct {
	tokens       int
	maxTokens    int
	refillPeriod time.Duration
	lastRefill   time.Time
	mutex        sync.Mutex
}

// NewRateLimiter creates a limiter with maxTokens capacity per
// subscription, refilling one token every refillPeriod.
func NewRateLimiter(maxTokens int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*TokenBucket),
		maxTokens:    maxTokens,
		refillPeriod: refillPeriod,
	}
}

// Allow takes a token for the subscription, reporting whether the
// request may proceed.
func (rl *RateLimiter) Allow(subscriptionID string) bool {
	rl.mutex.Lock()
	bucket, exists := rl.buckets[subscriptionID]
	if !exists {
		bucket = &TokenBucket{
			tokens:       rl.maxTokens,
			maxTokens:    rl.maxTokens,
			refillPeriod: rl.refillPeriod,
			lastRefill:   time.Now(),
		}
		rl.buckets[subscriptionID] = bucket
	}
	rl.mutex.Unlock()

	return bucket.Take()
}

// Take attempts to take a token from the bucket
func (tb *TokenBucket) Take() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// refill adds tokens for whole elapsed refill periods. Caller holds
// the bucket mutex.
func (tb *TokenBucket) refill() {
	elapsed := time.Since(tb.lastRefill)
	if elapsed >= tb.refillPeriod {
		periods := int(elapsed / tb.refillPeriod)
		tb.tokens = min(tb.tokens+periods, tb.maxTokens)
		tb.lastRefill = tb.lastRefill.Add(time.Duration(periods) * tb.refillPeriod)
	}
}

// Reset clears the bucket for a subscription, typically on delete
func (rl *RateLimiter) Reset(subscriptionID string) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	delete(rl.buckets, subscriptionID)
}

// GetRemaining returns the tokens currently available
func (rl *RateLimiter) GetRemaining(subscriptionID string) int {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[subscriptionID]
	rl.mutex.RUnlock()

	if !exists {
		return rl.maxTokens
	}

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	bucket.refill()
	return bucket.tokens
}

// RetryAfter returns how long until the subscription's next token, in
// whole seconds rounded up, for the Retry-After response header.
func (rl *RateLimiter) RetryAfter(subscriptionID string) int {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[subscriptionID]
	rl.mutex.RUnlock()

	if !exists {
		return 0
	}

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	bucket.refill()
	if bucket.tokens > 0 {
		return 0
	}

	wait := bucket.refillPeriod - time.Since(bucket.lastRefill)
	if wait <= 0 {
		return 1
	}
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
