package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soroforge/soroforge/pkg/analytics"
	"github.com/soroforge/soroforge/pkg/assets"
	"github.com/soroforge/soroforge/pkg/audit"
	"github.com/soroforge/soroforge/pkg/docs"
	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/httputil"
	"github.com/soroforge/soroforge/pkg/middleware"
	"github.com/soroforge/soroforge/pkg/observability"
	"github.com/soroforge/soroforge/pkg/swagger"
	"github.com/soroforge/soroforge/pkg/tokens"
	"github.com/soroforge/soroforge/pkg/webhooks"
)

const (
	// DefaultMaxBodyBytes caps request bodies on the public API.
	DefaultMaxBodyBytes = 1 << 20

	// DefaultMaxUploadBytes caps asset uploads on the internal API.
	DefaultMaxUploadBytes = 10 << 20
)

// RateLimitOptions tunes public API rate limiting.
type RateLimitOptions struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int

	// Distributed switches to Redis-backed counters so the limit holds
	// across replicas. Requires Deps.Redis.
	Distributed bool
}

// Options carries transport policy for the server.
type Options struct {
	// IngestToken is the shared secret required by POST
	// /internal/v1/events. Empty disables ingest auth (local
	// development only).
	IngestToken string

	// TestDeliveriesPerMinute is the per-subscription budget for
	// POST /webhooks/{id}/test.
	TestDeliveriesPerMinute int

	// AllowedOrigins enables CORS for browser calls from the platform
	// frontend. Empty leaves CORS headers off entirely.
	AllowedOrigins []string

	// MaxBodyBytes caps public request bodies. Zero applies
	// DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// MaxUploadBytes caps internal asset uploads. Zero applies
	// DefaultMaxUploadBytes.
	MaxUploadBytes int64

	RateLimit RateLimitOptions
}

// Deps carries the constructed domain services the server mounts.
// Registry, Dispatcher, Bus, Tokens, and Analytics are required.
// AssetStore, AuditStore, Redis, and Metrics may be nil; the routes or
// middleware that need them are simply not installed.
type Deps struct {
	Registry   *webhooks.Registry
	Dispatcher *webhooks.Dispatcher
	Bus        *events.Bus
	Tokens     *tokens.Service
	Analytics  *analytics.Service
	AssetStore assets.Store
	AuditStore audit.Store
	Redis      *redis.Client
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// Server is the HTTP surface of the notification service. It implements
// http.Handler; the caller owns the listener.
type Server struct {
	router   *mux.Router
	public   *mux.Router
	internal *mux.Router
	handler  http.Handler
	logger   *observability.Logger

	webhookHandlers   *webhooks.Handlers
	tokenHandlers     *tokens.Handlers
	eventHandlers     *events.Handlers
	analyticsHandlers *analytics.Handlers
	docsHandlers      *docs.Handlers
	swaggerHandlers   *swagger.Handlers
	assetHandlers     *assets.Handlers
	auditHandlers     *audit.Handlers

	rateLimiter     *middleware.RateLimitMiddleware
	distRateLimiter *middleware.DistributedRateLimitMiddleware
}

// NewServer creates the API server and wires all routes.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.Registry == nil || deps.Dispatcher == nil || deps.Bus == nil {
		return nil, fmt.Errorf("api: registry, dispatcher, and bus are required")
	}
	if deps.Tokens == nil || deps.Analytics == nil {
		return nil, fmt.Errorf("api: token and analytics services are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("api: logger is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}

	docsHandlers, err := docs.NewHandlers()
	if err != nil {
		return nil, fmt.Errorf("api: event docs: %w", err)
	}

	s := &Server{
		router:            mux.NewRouter(),
		logger:            deps.Logger,
		webhookHandlers:   webhooks.NewHandlers(deps.Registry, deps.Dispatcher, opts.TestDeliveriesPerMinute, deps.Logger),
		tokenHandlers:     tokens.NewHandlers(deps.Tokens, deps.Logger),
		eventHandlers:     events.NewHandlers(deps.Bus, opts.IngestToken, deps.Logger),
		analyticsHandlers: analytics.NewHandlers(deps.Analytics, deps.Logger),
		docsHandlers:      docsHandlers,
		swaggerHandlers:   swagger.NewHandlers(),
	}
	if deps.AssetStore != nil {
		s.assetHandlers = assets.NewHandlers(deps.AssetStore, deps.Logger)
	}
	if deps.AuditStore != nil {
		s.auditHandlers = audit.NewHandlers(deps.AuditStore)
	}

	if opts.RateLimit.Enabled {
		anon := &middleware.RateLimitConfig{
			RequestsPerWindow: opts.RateLimit.RequestsPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         opts.RateLimit.Burst,
		}
		if opts.RateLimit.Distributed && deps.Redis != nil {
			// Identified callers keep the default caller tier; config
			// tunes the anonymous tier.
			s.distRateLimiter = middleware.NewDistributedRateLimitMiddlewareWithConfigs(deps.Redis, nil, anon, deps.Logger)
		} else {
			s.rateLimiter = middleware.NewRateLimitMiddlewareWithConfigs(nil, anon)
		}
	}

	s.setupRoutes(opts)
	s.handler = s.buildChain(opts, deps)
	return s, nil
}

// jsonFallbacks installs JSON 404/405 handlers. Handlers emit
// {"error": ...}; the router's fallbacks match so clients never parse
// two error formats. Subrouters do not inherit these, so each surface
// gets its own.
func jsonFallbacks(r *mux.Router) {
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteNotFoundError(w, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// setupRoutes mounts the handler groups on their surfaces.
func (s *Server) setupRoutes(opts Options) {
	jsonFallbacks(s.router)

	// The OpenAPI document and Swagger UI sit at the root so the UI's
	// relative spec URL resolves.
	s.swaggerHandlers.RegisterRoutes(s.router)

	s.public = s.router.PathPrefix("/api/v1").Subrouter()
	jsonFallbacks(s.public)
	s.public.Use(middleware.RequireJSON, middleware.MaxBytes(opts.MaxBodyBytes))
	switch {
	case s.distRateLimiter != nil:
		s.public.Use(s.distRateLimiter.Handler)
	case s.rateLimiter != nil:
		s.public.Use(s.rateLimiter.Handler)
	}

	s.webhookHandlers.RegisterRoutes(s.public)
	s.tokenHandlers.RegisterRoutes(s.public)
	s.analyticsHandlers.RegisterRoutes(s.public)
	s.docsHandlers.RegisterRoutes(s.public)
	s.eventHandlers.RegisterPublicRoutes(s.public)
	if s.assetHandlers != nil {
		s.assetHandlers.RegisterRoutes(s.public)
	}

	// The gateway drops /internal/*; ingestion is additionally guarded
	// by the bearer token inside the handler.
	s.internal = s.router.PathPrefix("/internal/v1").Subrouter()
	jsonFallbacks(s.internal)
	s.internal.Use(middleware.MaxBytes(opts.MaxUploadBytes))
	s.eventHandlers.RegisterRoutes(s.internal)
	if s.assetHandlers != nil {
		s.assetHandlers.RegisterInternalRoutes(s.internal)
	}
	if s.auditHandlers != nil {
		s.auditHandlers.RegisterRoutes(s.internal)
	}
}

// buildChain wraps the router in the cross-cutting middleware, outermost
// first per the ordering contract in pkg/middleware.
func (s *Server) buildChain(opts Options, deps Deps) http.Handler {
	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CallerIdentity,
	}
	if len(opts.AllowedOrigins) > 0 {
		chain = append(chain, middleware.CORS(opts.AllowedOrigins))
	}
	chain = append(chain, middleware.RequestLogging(s.logger), middleware.Recovery(s.logger))
	if deps.Metrics != nil {
		chain = append(chain, observability.HTTPMetricsMiddleware(deps.Metrics))
	}
	return middleware.Chain(chain...)(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// StartBackground launches the server's housekeeping goroutines,
// currently rate limiter bucket eviction. It returns immediately and
// everything it starts stops with the context.
func (s *Server) StartBackground(ctx context.Context) {
	if s.rateLimiter != nil {
		s.rateLimiter.StartCleanup(ctx)
	}
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes mounts a RouteRegistrar on the public API subrouter.
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.public)
}

// NewOpsHandler assembles the operational surface served on the health
// port: liveness, readiness, and Prometheus metrics. A nil registry
// omits /metrics.
func NewOpsHandler(checker *observability.HealthChecker, registry *prometheus.Registry) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
	if registry != nil {
		r.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}
	return r
}
