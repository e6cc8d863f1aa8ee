package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/soroforge/soroforge/pkg/observability"
)

func setupDistributedTest(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	client, _ := setupDistributedTest(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
	}, "test")

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "caller:GCREATOR")
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !allowed {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, "caller:GCREATOR")
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if allowed {
		t.Error("Fourth request should be throttled")
	}

	// A different key has its own window
	allowed, _ = limiter.Allow(ctx, "caller:GOTHER")
	if !allowed {
		t.Error("Unrelated key should not share the counter")
	}
}

func TestDistributedRateLimiter_WindowExpiry(t *testing.T) {
	client, mr := setupDistributedTest(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
	}, "test")

	if allowed, _ := limiter.Allow(ctx, "ip:203.0.113.9"); !allowed {
		t.Fatal("First request should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "ip:203.0.113.9"); allowed {
		t.Fatal("Second request should be throttled")
	}

	mr.FastForward(2 * time.Minute)

	if allowed, _ := limiter.Allow(ctx, "ip:203.0.113.9"); !allowed {
		t.Error("Window expiry should reset the counter")
	}
}

func TestDistributedRateLimiter_Remaining(t *testing.T) {
	client, _ := setupDistributedTest(t)
	ctx := context.Background()

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 5,
		WindowDuration:    time.Minute,
	}, "test")

	if remaining, err := limiter.Remaining(ctx, "k"); err != nil || remaining != 5 {
		t.Errorf("Fresh key remaining = %d (%v), want 5", remaining, err)
	}

	limiter.Allow(ctx, "k")
	limiter.Allow(ctx, "k")

	if remaining, err := limiter.Remaining(ctx, "k"); err != nil || remaining != 3 {
		t.Errorf("Remaining = %d (%v), want 3", remaining, err)
	}
}

func TestDistributedRateLimiter_FailOpen(t *testing.T) {
	client, mr := setupDistributedTest(t)
	mr.Close()

	limiter := NewDistributedRateLimiter(client, DefaultRateLimitConfig(), "test")

	allowed, err := limiter.Allow(context.Background(), "k")
	if err == nil {
		t.Fatal("Expected an error with Redis down")
	}
	if !allowed {
		t.Error("Redis errors must report allowed=true so callers fail open")
	}
}

func TestDistributedRateLimitMiddleware(t *testing.T) {
	client, _ := setupDistributedTest(t)

	m := NewDistributedRateLimitMiddleware(client, quietLogger())
	m.anonymousLimiter = NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
	}, "ratelimit:anon")

	handler := m.Handler(okHandler())
	newReq := func() *http.Request {
		req := httptest.NewRequest("POST", "/webhooks/subscribe", nil)
		req.RemoteAddr = "203.0.113.9:52110"
		return req
	}

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newReq())
		if w.Code != http.StatusOK {
			t.Fatalf("Request %d status = %d, want 200", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newReq())
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Third request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 must carry Retry-After")
	}
}

func TestDistributedRateLimitMiddleware_RedisDown(t *testing.T) {
	client, mr := setupDistributedTest(t)
	mr.Close()

	m := NewDistributedRateLimitMiddleware(client, quietLogger())
	handler := m.Handler(okHandler())

	// Fail open by default
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/subscribe", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Fail-open status = %d, want 200", w.Code)
	}

	// Fail closed when configured
	m.SetFailOpen(false)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/subscribe", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Fail-closed status = %d, want 503", w.Code)
	}
}
