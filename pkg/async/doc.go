// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and error collection.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 30*time.Second, "audit logging", func(ctx context.Context) error {
//		// Task code with automatic panic recovery and timeout
//		return auditor.Record(ctx, entry)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, 16, "webhook delivery", 45*time.Second)
//	defer pool.Shutdown(30 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return deliver(ctx, subscription, envelope)
//	})
//
// Batch: Concurrent batch processing
//
//	errs := async.Batch(ctx, fixtures, 4, "event replay", 10*time.Second,
//		func(ctx context.Context, f Fixture) error {
//			return emit(ctx, f)
//		})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
// Error Collection: Non-blocking error channels
// Graceful Shutdown: Worker draining
//
// # Use Cases
//
// Webhook delivery, event fan-out, fixture replay, audit logging, cache warming
//
// # Related Packages
//
//   - pkg/webhooks: Uses WorkerPool for delivery dispatch
//   - pkg/events: Uses SafeGo for handler fan-out
package async
