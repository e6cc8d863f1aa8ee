// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// Handlers across the API use these helpers so that every error body has the
// same shape and every JSON response sets the right headers:
//
//	var req subscribeRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//	httputil.WriteCreated(w, resp)
package httputil
