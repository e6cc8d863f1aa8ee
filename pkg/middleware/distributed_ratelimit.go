package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/soroforge/soroforge/pkg/observability"
)

// DistributedRateLimiter implements rate limiting using Redis so the
// limit holds across every API instance.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed using a Redis counter window.
// A Redis error reports allowed=true with the error so callers fail
// open; a throttled notification API must not take the platform down
// with it.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	count := incr.Val()
	return count <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// TTL returns the time until the rate limit window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.TTL(ctx, redisKey).Result()
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)
	return rl.redis.Del(ctx, redisKey).Err()
}

// DistributedRateLimitMiddleware rate limits HTTP requests through
// Redis. It replaces the in-memory limiter when the platform runs more
// than one replica, where an instance-local limit would multiply by the
// replica count.
type DistributedRateLimitMiddleware struct {
	redis            *redis.Client
	callerLimiter    *DistributedRateLimiter
	anonymousLimiter *DistributedRateLimiter
	logger           *observability.Logger
	failOpen         bool
}

// NewDistributedRateLimitMiddleware creates a Redis-backed rate limit
// middleware with the default tier configs
func NewDistributedRateLimitMiddleware(redisClient *redis.Client, logger *observability.Logger) *DistributedRateLimitMiddleware {
	return NewDistributedRateLimitMiddlewareWithConfigs(redisClient, CallerRateLimitConfig(), DefaultRateLimitConfig(), logger)
}

// NewDistributedRateLimitMiddlewareWithConfigs creates a Redis-backed
// rate limit middleware with explicit tier configs. A nil config falls
// back to the tier's default.
func NewDistributedRateLimitMiddlewareWithConfigs(redisClient *redis.Client, caller, anonymous *RateLimitConfig, logger *observability.Logger) *DistributedRateLimitMiddleware {
	if caller == nil {
		caller = CallerRateLimitConfig()
	}
	if anonymous == nil {
		anonymous = DefaultRateLimitConfig()
	}
	return &DistributedRateLimitMiddleware{
		redis:            redisClient,
		callerLimiter:    NewDistributedRateLimiter(redisClient, caller, "ratelimit:caller"),
		anonymousLimiter: NewDistributedRateLimiter(redisClient, anonymous, "ratelimit:anon"),
		logger:           logger,
		failOpen:         true,
	}
}

// SetFailOpen controls whether Redis errors allow (true) or reject
// (false) requests
func (m *DistributedRateLimitMiddleware) SetFailOpen(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with distributed rate limiting
func (m *DistributedRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, identified := limitKey(r)
		limiter := m.anonymousLimiter
		if identified {
			limiter = m.callerLimiter
		}

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("rate limit check failed")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "service temporarily unavailable", http.StatusServiceUnavailable)
			return
		}

		if !allowed {
			m.rejected(ctx, w, limiter, key)
			return
		}

		remaining, err := limiter.Remaining(ctx, key)
		if err != nil {
			// Headers are best effort once the request is allowed
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
		}

		next.ServeHTTP(w, r)
	})
}

func (m *DistributedRateLimitMiddleware) rejected(ctx context.Context, w http.ResponseWriter, limiter *DistributedRateLimiter, key string) {
	retryAfter := limiter.config.WindowDuration.Seconds()
	if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl.Seconds()
	}

	rateLimitExceeded(w, limiter.config, retryAfter)
}

// HealthCheck verifies Redis connectivity for rate limiting
func (m *DistributedRateLimitMiddleware) HealthCheck(ctx context.Context) error {
	return m.redis.Ping(ctx).Err()
}
