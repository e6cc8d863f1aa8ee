package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/soroforge/soroforge/pkg/contextkeys"
)

// Logger records audit trail entries
type Logger interface {
	// Record persists one audit entry
	Record(ctx context.Context, entry *Entry) error

	// Close flushes and releases any underlying resources
	Close() error
}

type contextKey string

// loggerKey is the context key for the audit logger
const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context, falling back to
// a no-op logger when none is set.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return &noopLogger{}
}

// noopLogger discards every entry
type noopLogger struct{}

func (l *noopLogger) Record(ctx context.Context, entry *Entry) error { return nil }
func (l *noopLogger) Close() error                                   { return nil }

// NewNoopLogger returns a logger that discards everything, for wiring
// paths where auditing is disabled.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

// NewEntry builds an entry with actor and request ID pulled from the
// context. The optional request contributes client IP and user agent.
func NewEntry(ctx context.Context, r *http.Request, action Action, status Status) *Entry {
	entry := &Entry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Status:    status,
		Actor:     contextkeys.GetUserID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}

	if r != nil {
		entry.IPAddress = clientIP(r)
		entry.UserAgent = r.UserAgent()
	}

	return entry
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// RecordSuccess records a successful action against a subject
func RecordSuccess(ctx context.Context, action Action, subjectType SubjectType, subjectID, message string) error {
	entry := NewEntry(ctx, nil, action, StatusSuccess)
	entry.SubjectType = subjectType
	entry.SubjectID = subjectID
	entry.Message = message
	return FromContext(ctx).Record(ctx, entry)
}

// RecordFailure records a failed action with its error
func RecordFailure(ctx context.Context, action Action, subjectType SubjectType, subjectID string, err error) error {
	entry := NewEntry(ctx, nil, action, StatusFailure)
	entry.SubjectType = subjectType
	entry.SubjectID = subjectID
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	return FromContext(ctx).Record(ctx, entry)
}

// RecordDenied records an action blocked by an ownership or rate check
func RecordDenied(ctx context.Context, action Action, subjectType SubjectType, subjectID, reason string) error {
	entry := NewEntry(ctx, nil, action, StatusDenied)
	entry.SubjectType = subjectType
	entry.SubjectID = subjectID
	entry.Message = reason
	return FromContext(ctx).Record(ctx, entry)
}
