package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/soroforge/soroforge/pkg/contextkeys"
)

// RequestIDHeader carries the request ID on both requests and responses.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to every request. An inbound
// X-Request-ID is trusted as-is so IDs survive gateway hops; otherwise
// a fresh UUID is generated. The ID is echoed on the response and
// stored in the context for logging and audit.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
