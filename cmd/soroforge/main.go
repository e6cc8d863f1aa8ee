package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/soroforge/soroforge/pkg/analytics"
	"github.com/soroforge/soroforge/pkg/api"
	"github.com/soroforge/soroforge/pkg/assets"
	"github.com/soroforge/soroforge/pkg/audit"
	"github.com/soroforge/soroforge/pkg/config"
	"github.com/soroforge/soroforge/pkg/events"
	"github.com/soroforge/soroforge/pkg/observability"
	"github.com/soroforge/soroforge/pkg/storage/postgres"
	"github.com/soroforge/soroforge/pkg/tokens"
	"github.com/soroforge/soroforge/pkg/webhooks"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (SOROFORGE_* env vars override)")
	publicURL := flag.String("public-url", "http://localhost:8080", "Externally visible base URL used in asset links")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadConfigFromFile(*configFile)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var promRegistry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		promRegistry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(promRegistry)
	}

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// Storage backends
	var (
		connMgr *postgres.ConnectionManager
		db      *sql.DB
	)
	if cfg.Storage.Type == "postgres" {
		connMgr, err = postgres.NewConnectionManager(postgres.ConnectionConfig{
			PrimaryURL:  cfg.Storage.PostgresURL,
			ReplicaURLs: splitReplicaURLs(cfg.Storage.PostgresReplicaURLs),
			MaxConns:    cfg.Storage.PostgresMaxConns,
			MinConns:    cfg.Storage.PostgresMinConns,
			Timeout:     cfg.Storage.PostgresTimeout,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		db = connMgr.Primary()
		connMgr.StartHealthCheckRoutine(ctx, 30*time.Second)
		if metrics != nil {
			connMgr.StartStatsRoutine(ctx, 15*time.Second, metrics)
		}
	}

	var redisClient *postgres.RedisClient
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
	}

	// Webhook stores
	var (
		subStore webhooks.SubscriptionStore
		logStore webhooks.DeliveryLogStore
	)
	if connMgr != nil {
		subStore, err = webhooks.NewPostgresSubscriptionStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize subscription store: %v", err)
		}
		logStore, err = webhooks.NewPostgresDeliveryLogStore(db)
		if err != nil {
			log.Fatalf("Failed to initialize delivery log store: %v", err)
		}
	} else {
		subStore = webhooks.NewMemorySubscriptionStore()
		logStore = webhooks.NewMemoryDeliveryLogStore(cfg.Storage.MaxDeliveryLogs)
	}
	if cfg.Storage.CacheEnabled && redisClient != nil {
		subStore = postgres.NewCachedSubscriptionStore(subStore, redisClient, metrics)
	}

	// Audit trail
	var (
		auditLogger audit.Logger
		auditStore  audit.Store
	)
	if connMgr != nil {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			log.Fatalf("Failed to initialize audit logger: %v", err)
		}
		auditLogger = dbLogger
		auditStore = audit.NewDBStore(dbLogger)
	} else {
		memLogger := audit.NewMemoryLogger(10000)
		auditLogger = memLogger
		auditStore = memLogger
	}

	registry := webhooks.NewRegistry(subStore, logStore, auditLogger, logger, metrics)
	dispatcher := webhooks.NewDispatcher(ctx, webhooks.DispatcherConfig{
		Retry: webhooks.RetryConfig{
			MaxAttempts:       cfg.Webhooks.MaxAttempts,
			InitialDelay:      cfg.Webhooks.InitialDelay,
			MaxDelay:          cfg.Webhooks.MaxDelay,
			BackoffMultiplier: cfg.Webhooks.BackoffMultiplier,
		},
		AttemptTimeout: cfg.Webhooks.AttemptTimeout,
		Workers:        cfg.Webhooks.DispatchWorkers,
	}, subStore, registry, logStore, logger, metrics)

	// Token registry
	var tokenStore tokens.Store
	if connMgr != nil {
		tokenStore, err = tokens.NewPostgresStore(connMgr)
		if err != nil {
			log.Fatalf("Failed to initialize token store: %v", err)
		}
	} else {
		tokenStore = tokens.NewMemoryStore()
	}
	if cfg.Storage.CacheEnabled {
		tokenStore = tokens.NewCachedStore(tokenStore, cfg.Storage.TokenCacheSize,
			cfg.Storage.CacheTTL["token"], cfg.Storage.CacheTTL["leaderboard"], metrics)
	}
	var searchCache tokens.SearchCache
	if cfg.Storage.CacheEnabled && redisClient != nil {
		searchCache = redisClient
	}
	tokenService := tokens.NewService(tokenStore, searchCache, cfg.Storage.CacheTTL["token_list"], logger, metrics)

	// Analytics snapshots (postgres only; the handler serves 503 without it)
	var analyticsDB analytics.DB
	if connMgr != nil {
		analyticsDB = connMgr
	}
	var snapshotCache analytics.SnapshotCache
	if redisClient != nil {
		snapshotCache = redisClient
	}
	analyticsService := analytics.NewService(analyticsDB, snapshotCache, cfg.Storage.CacheTTL["analytics"], logger, metrics)

	// Asset store: S3 when a bucket is configured, filesystem otherwise
	var assetStore assets.Store
	if cfg.Storage.S3Bucket != "" {
		assetStore, err = assets.NewS3Store(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize S3 asset store: %v", err)
		}
	} else if cfg.Storage.AssetsRoot != "" {
		assetStore, err = assets.NewFilesystemStore(cfg.Storage.AssetsRoot, *publicURL)
		if err != nil {
			log.Fatalf("Failed to initialize filesystem asset store: %v", err)
		}
	}

	// Event pipeline: the bus fans every envelope out to the dispatcher
	// and the token registry
	bus := events.NewBus(cfg.Events.BusBuffer, logger, metrics)
	bus.Subscribe(dispatcher)
	bus.Subscribe(tokenService)
	bus.Start(ctx)

	deps := api.Deps{
		Registry:   registry,
		Dispatcher: dispatcher,
		Bus:        bus,
		Tokens:     tokenService,
		Analytics:  analyticsService,
		AssetStore: assetStore,
		AuditStore: auditStore,
		Logger:     logger,
		Metrics:    metrics,
	}
	if redisClient != nil {
		deps.Redis = redisClient.GetClient()
	}

	server, err := api.NewServer(api.Options{
		IngestToken:             cfg.Events.IngestToken,
		TestDeliveriesPerMinute: cfg.Webhooks.TestPerMinute,
		AllowedOrigins:          cfg.Server.CORSOrigins,
		RateLimit: api.RateLimitOptions{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			Distributed:       cfg.RateLimit.Distributed,
		},
	}, deps)
	if err != nil {
		log.Fatalf("Failed to build API server: %v", err)
	}
	server.StartBackground(ctx)

	var handler http.Handler = server
	if otelProviders != nil {
		handler = otelhttp.NewHandler(handler, "soroforge-api")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes and scraping
	var healthRedis *redis.Client
	if redisClient != nil {
		healthRedis = redisClient.GetClient()
	}
	checker := observability.NewHealthChecker(db, healthRedis)
	opsServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: api.NewOpsHandler(checker, promRegistry),
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc("event pipeline", func(ctx context.Context) error {
		deadline := cfg.Server.ShutdownTimeout / 2
		if err := bus.Close(deadline); err != nil {
			return err
		}
		return dispatcher.Shutdown(deadline)
	})
	sm.RegisterShutdownFunc("ops server", opsServer.Shutdown)
	sm.RegisterShutdownFunc("audit logger", func(context.Context) error {
		return auditLogger.Close()
	})
	if redisClient != nil {
		sm.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if connMgr != nil {
		sm.RegisterShutdownFunc("database", func(context.Context) error {
			return connMgr.Close()
		})
	}
	if otelProviders != nil {
		sm.RegisterShutdownFunc("otel", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	go func() {
		logger.Infof("Ops server listening on %s", opsServer.Addr)
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Ops server failed")
		}
	}()

	go func() {
		logger.Infof("SoroForge API listening on %s (storage=%s)", httpServer.Addr, cfg.Storage.Type)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func splitReplicaURLs(urls string) []string {
	if urls == "" {
		return nil
	}
	var out []string
	for _, u := range strings.Split(urls, ",") {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
