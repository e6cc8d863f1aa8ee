// Package middleware provides the HTTP middleware chain for the API server.
//
// # Overview
//
// This package implements request ID propagation, caller identity
// extraction, structured request logging, panic recovery, CORS, body
// guards, and rate limiting (in-memory and Redis-backed).
//
// # Middleware Ordering Requirements
//
// The chain has ordering dependencies. Incorrect order loses request
// IDs from logs or leaves panicking requests unlogged.
//
// REQUIRED ORDERING (outer to inner):
//  1. RequestID - generates or propagates the request ID into the context
//  2. CallerIdentity - reads the gateway identity header into the context
//  3. CORS - short-circuits preflight before anything heavier runs
//  4. RequestLogging - logs every completed request with ID and caller
//  5. Recovery - converts panics to 500 responses
//
// Recovery sits inside RequestLogging so a panicking request is still
// access-logged with its 500. RequestID sits outermost so every log
// line, including the panic log, carries the ID.
//
// Example:
//
//	router.Use(
//	    middleware.RequestID,
//	    middleware.CallerIdentity,
//	    middleware.CORS(cfg.AllowedOrigins),
//	    middleware.RequestLogging(logger),
//	    middleware.Recovery(logger),
//	)
//
// # Rate Limiting
//
// RateLimitMiddleware keeps token buckets in process memory and is
// keyed by caller identity when present, client IP otherwise.
// DistributedRateLimitMiddleware shares counters through Redis across
// instances and fails open when Redis is unreachable; it guards the
// mutating webhook routes.
//
// # Related Packages
//
//   - pkg/contextkeys: keys this package writes and handlers read
//   - pkg/observability: the structured logger and HTTP metrics
//   - pkg/storage/postgres: the Redis client behind the distributed limiter
package middleware
