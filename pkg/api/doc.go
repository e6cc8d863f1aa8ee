// Package api assembles the HTTP surface of the SoroForge notification
// service.
//
// # Overview
//
// The package wires the domain handler groups (webhooks, tokens, events,
// analytics, docs, assets, audit) onto a gorilla/mux router, applies the
// cross-cutting middleware chain, and exposes the result as an
// http.Handler. It owns routing and transport policy only; domain logic
// lives in the handler packages it mounts.
//
// # Surfaces
//
// The server splits its routes across three surfaces:
//
//   - Public API under /api/v1: webhook subscription management, token
//     queries, platform analytics, the event catalog, and asset serving.
//     The platform gateway proxies this prefix to the outside world.
//   - Internal API under /internal/v1: event ingestion from the chain
//     indexer, asset upload from the platform frontend, and the audit
//     trail. The gateway never proxies this prefix; ingestion is
//     additionally guarded by a bearer token.
//   - Root: the OpenAPI document and Swagger UI, registered at the root
//     so the UI's relative spec URL resolves.
//
// Liveness, readiness, and Prometheus metrics are served on a separate
// port assembled by NewOpsHandler, keeping probe traffic off the public
// listener.
//
// # Middleware
//
// Every request passes the chain described in pkg/middleware: request ID,
// caller identity, CORS, access logging, panic recovery, then HTTP
// metrics. Rate limiting applies to the public subrouter only, in-memory
// by default and Redis-backed when limits must hold across replicas.
//
// # Key Types
//
// Server coordinates the handler groups:
//
//	srv, err := api.NewServer(opts, deps)
//	if err != nil {
//		return err
//	}
//	http.ListenAndServe(":8080", srv)
//
// Deps carries the constructed domain services; Options carries transport
// policy (origins, body caps, rate limits, the ingest token). Optional
// dependencies (asset store, audit store, Redis) may be nil and their
// routes are simply not mounted.
//
// # Design Decisions
//
// Handler Registration: each domain package exposes
// RegisterRoutes(*mux.Router) and the server mounts it on the right
// subrouter. The RouteRegistrar interface keeps that extension point open
// for callers.
//
// Internal Surface: internal routes share the listener under a prefix the
// gateway is configured to drop, rather than a second port. One listener
// keeps deployment simple; network policy does the isolation.
//
// JSON Errors Everywhere: the router's 404 and 405 handlers emit the same
// {"error": ...} shape as the handlers, so clients never parse two error
// formats.
//
// # Related Packages
//
//   - pkg/webhooks: subscription registry and delivery pipeline
//   - pkg/events: event types, bus, and ingestion handlers
//   - pkg/tokens: token registry queries
//   - pkg/middleware: the cross-cutting chain and rate limiters
//   - pkg/observability: logging, metrics, health checks
package api
