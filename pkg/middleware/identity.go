package middleware

import (
	"net/http"

	"github.com/soroforge/soroforge/pkg/contextkeys"
)

// CallerHeader is populated by the platform gateway after it has
// authenticated the caller. This service never sees credentials.
const CallerHeader = "X-Soroforge-Caller"

// CallerIdentity copies the gateway-populated caller header into the
// request context. The header is trusted because the API is only
// reachable through the gateway; an absent header leaves the caller
// anonymous rather than rejecting the request, since most of the
// surface is public reads.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get(CallerHeader)
		if caller == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := contextkeys.WithUserID(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
