package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/soroforge/soroforge/pkg/contextkeys"
	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/observability"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// RequestLogging logs every completed request with method, path,
// status, duration, and the request ID and caller from the context.
func RequestLogging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := contextkeys.WithRequestStartTime(r.Context(), start)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ctx))

			entry := logger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote":      clientIP(r),
			})
			if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
				entry = entry.WithField("request_id", requestID)
			}
			if caller := contextkeys.GetUserID(ctx); caller != "" {
				entry = entry.WithField("caller", caller)
			}

			if rw.statusCode >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Info("request completed")
			}
		})
	}
}

// Recovery converts handler panics into 500 responses. The panic value
// and stack are logged with the request ID; the response body stays
// generic.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(map[string]interface{}{
						"panic":      rec,
						"stack":      string(debug.Stack()),
						"method":     r.Method,
						"path":       r.URL.Path,
						"request_id": contextkeys.GetRequestID(r.Context()),
					}).Error("PANIC recovered in handler")

					httputil.WriteInternalError(w, fmt.Errorf("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
