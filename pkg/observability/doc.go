// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure including JSON logging, metrics
// collection, health checks, graceful shutdown, and distributed tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Infof("Server started on %s", addr)
//
// Context-aware logging:
//
//	logger.WithField("subscription_id", id).WithError(err).Error("Delivery failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DeliveriesTotal.WithLabelValues("TOKEN_CREATED", "success").Inc()
//
// Platform metrics:
//
//	metrics.TokensTotal.Set(float64(count))
//	metrics.SubscriptionsActive.Set(float64(active))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.RegisterCheck("dispatcher", dispatcher.HealthCheck)
//	status := checker.Check(ctx)
//
// # OpenTelemetry
//
// Initialize tracing (no-op when disabled via config):
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		ServiceName: "soroforge-api",
//		Endpoint:    "otel-collector:4317",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
