package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements:
//
//	func riskyOperation() {
//	    defer observability.RecoverPanic(logger, "delivery goroutine")
//	    // ... code that might panic
//	}
//
// If a panic occurs it is recovered and logged at Error level with the panic
// value, the full stack trace, and the provided context string. The panic is
// NOT re-raised; the goroutine returns normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it, and executes a callback
//
// The callback runs only when a panic occurred, after logging. Use it for
// cleanup that must happen even when the goroutine dies mid-flight:
//
//	defer observability.RecoverPanicWithCallback(logger, "delivery", func() {
//	    metrics.DeliveriesInFlight.Dec()
//	})
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
		if callback != nil {
			callback()
		}
	}
}
