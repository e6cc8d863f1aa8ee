// Package storage configures the persistence backends behind the SoroForge
// notification engine.
//
// # Overview
//
// The engine persists three families of data: webhook subscriptions and
// their per-attempt delivery logs (pkg/webhooks), the folded token registry
// and burn history (pkg/tokens), and audit entries for subscription
// lifecycle changes (pkg/audit). Each of those packages defines its own
// store interfaces and ships a memory implementation and a PostgreSQL
// implementation; this package holds the shared configuration and the
// PostgreSQL/Redis plumbing they build on.
//
// # Backends
//
// Memory: every store ships an in-memory implementation guarded by a
// mutex. Best for development and tests; delivery logs are bounded by
// Config.MaxDeliveryLogs with oldest-first eviction.
//
// PostgreSQL: production backend. The postgres subpackage provides a
// ConnectionManager with a write primary and optional read replicas
// selected round-robin:
//
//	cfg := storage.DefaultConfig()
//	cfg.Type = "postgres"
//	cfg.PostgresURL = "postgres://localhost/soroforge"
//	cfg.PostgresReplicaURLs = "postgres://replica1/soroforge,postgres://replica2/soroforge"
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		PrimaryURL:  cfg.PostgresURL,
//		ReplicaURLs: postgres.ParseReplicaURLs(cfg.PostgresReplicaURLs),
//		MaxConns:    cfg.PostgresMaxConns,
//		MinConns:    cfg.PostgresMinConns,
//		Timeout:     cfg.PostgresTimeout,
//	}, logger)
//
// Writes (subscription mutations, delivery log appends, token folds) use
// cm.Primary(); read-heavy paths (token search, leaderboards, analytics
// scans) may use cm.Replica().
//
// Redis: optional caching layer. The postgres subpackage provides a
// generic JSON RedisClient plus CachedSubscriptionStore, which layers
// cache-aside reads over any webhooks.SubscriptionStore. Per-event match
// sets are the hot path (queried for every emitted chain event), so they
// are cached with a short TTL and invalidated on mutation:
//
//	rc, err := postgres.NewRedisClient(cfg)
//	subs := postgres.NewCachedSubscriptionStore(pgStore, rc, metrics)
//
// The same RedisClient backs analytics snapshot caching and the
// distributed rate limiter (INCR/EXPIRE helpers).
//
// # Asset Storage
//
// Token asset bundles (logos, metadata documents referenced by a token's
// metadata URI) live in pkg/assets, backed by S3 or the local filesystem
// depending on Config.S3Endpoint/Config.AssetsRoot. This package only
// carries their configuration.
//
// # Configuration
//
// Config is assembled from the application config (SOROFORGE_* environment
// variables, pkg/config) in cmd wiring:
//
//	cfg := storage.DefaultConfig()
//	cfg.Type = appCfg.Storage.Type
//	cfg.PostgresURL = appCfg.Storage.PostgresURL
//	cfg.RedisURL = appCfg.Storage.RedisURL
//	cfg.CacheEnabled = appCfg.Storage.CacheEnabled
//
// CacheTTL is keyed by cache kind; see RedisClient.TTLFor for the kinds in
// use and the fallback applied to unknown kinds.
//
// # Health
//
// ConnectionManager.HealthCheck and RedisClient.Ping plug into the
// readiness endpoint (pkg/observability health checkers). The manager can
// additionally run StartHealthCheckRoutine, which evicts replicas that
// stop responding, and StartStatsRoutine, which exports pool gauges to
// Prometheus.
//
// # Related Packages
//
//   - pkg/webhooks: subscription and delivery log stores
//   - pkg/tokens: token registry store and search
//   - pkg/audit: audit entry store
//   - pkg/assets: token asset bundles (S3/filesystem)
//   - pkg/observability: health checkers and pool metrics
package storage
