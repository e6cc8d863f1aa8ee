// Package webhooks delivers token lifecycle events to subscriber
// endpoints with HMAC-signed payloads and bounded retries.
//
// # Overview
//
// This package manages subscription registration, event matching,
// signed delivery, retries, and per-attempt delivery logging.
//
// # Subscribing
//
//	sub, err := registry.Create(ctx, webhooks.CreateParams{
//		URL:       "https://api.example.com/hooks",
//		Events:    []events.EventType{events.EventTokenCreated},
//		CreatedBy: "GCREATOR...",
//	})
//	// sub.Secret holds the full signing secret. This is the only
//	// time it is readable; every later read truncates it.
//
// # Delivering
//
// The dispatcher subscribes to the event bus and fans each envelope
// out to matching subscriptions:
//
//	dispatcher := webhooks.NewDispatcher(ctx, cfg, subs, registry, logs, logger, metrics)
//	bus.Subscribe(dispatcher)
//
// Each delivery runs its attempts sequentially with exponential
// backoff; every attempt leaves an immutable log row. Failures never
// surface to the event producer.
//
// # Verifying (receiver side)
//
//	sig := r.Header.Get("X-Soroforge-Signature")
//	body, _ := io.ReadAll(r.Body)
//	if !webhooks.Verify(body, sig, secret) {
//		return errors.New("invalid signature")
//	}
//
// The signature covers the exact bytes on the wire. Verify against
// the raw request body, never a re-serialized copy.
//
// # Retry Policy
//
// Exponential backoff: 1s, 2s, 4s, ... capped at 30s
// Default attempts: 3
// Timeout per attempt: 10s
//
// # Related Packages
//
//   - pkg/events: event envelopes and the in-process bus
//   - pkg/async: delivery worker pool
package webhooks
