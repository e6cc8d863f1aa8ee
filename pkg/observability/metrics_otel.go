package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Event pipeline metrics
	eventsIngestedTotal metric.Int64Counter
	eventsDroppedTotal  metric.Int64Counter

	// Webhook delivery metrics
	deliveriesTotal  metric.Int64Counter
	deliveryDuration metric.Float64Histogram
	deliveryAttempts metric.Int64Histogram

	// Cache metrics
	cacheHitsTotal   metric.Int64Counter
	cacheMissesTotal metric.Int64Counter

	// Asset storage metrics
	assetOperations metric.Int64Counter
	assetBytes      metric.Int64Histogram
}

// NewOTelMetrics creates a new OTel metrics instance
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/soroforge/soroforge")

	m := &OTelMetrics{}
	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	m.eventsIngestedTotal, err = meter.Int64Counter(
		"events.ingested.total",
		metric.WithDescription("Total number of events accepted for fan-out"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events_ingested counter: %w", err)
	}

	m.eventsDroppedTotal, err = meter.Int64Counter(
		"events.dropped.total",
		metric.WithDescription("Total number of events dropped by a full bus"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events_dropped counter: %w", err)
	}

	m.deliveriesTotal, err = meter.Int64Counter(
		"webhook.deliveries.total",
		metric.WithDescription("Total number of webhook delivery attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deliveries_total counter: %w", err)
	}

	m.deliveryDuration, err = meter.Float64Histogram(
		"webhook.delivery.duration",
		metric.WithDescription("Webhook delivery attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery_duration histogram: %w", err)
	}

	m.deliveryAttempts, err = meter.Int64Histogram(
		"webhook.delivery.attempts",
		metric.WithDescription("Attempts used per delivery cycle"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery_attempts histogram: %w", err)
	}

	m.cacheHitsTotal, err = meter.Int64Counter(
		"cache.hits.total",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_hits_total counter: %w", err)
	}

	m.cacheMissesTotal, err = meter.Int64Counter(
		"cache.misses.total",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_misses_total counter: %w", err)
	}

	m.assetOperations, err = meter.Int64Counter(
		"assets.operations.total",
		metric.WithDescription("Total number of asset store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset_operations counter: %w", err)
	}

	m.assetBytes, err = meter.Int64Histogram(
		"assets.bytes",
		metric.WithDescription("Asset store bytes transferred"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset_bytes histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEventIngested records an accepted event
func (m *OTelMetrics) RecordEventIngested(ctx context.Context, event string) {
	m.eventsIngestedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", event),
	))
}

// RecordEventDropped records an event rejected by a full bus
func (m *OTelMetrics) RecordEventDropped(ctx context.Context, event string) {
	m.eventsDroppedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event.type", event),
	))
}

// RecordDelivery records one webhook delivery attempt
func (m *OTelMetrics) RecordDelivery(ctx context.Context, event string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("event.type", event),
		attribute.Bool("delivery.success", success),
	}

	m.deliveriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDeliveryCycle records how many attempts a delivery cycle used
// before succeeding or exhausting its retries
func (m *OTelMetrics) RecordDeliveryCycle(ctx context.Context, event string, attempts int, exhausted bool) {
	m.deliveryAttempts.Record(ctx, int64(attempts), metric.WithAttributes(
		attribute.String("event.type", event),
		attribute.Bool("delivery.exhausted", exhausted),
	))
}

// RecordCacheHit records a cache hit
func (m *OTelMetrics) RecordCacheHit(ctx context.Context, cacheType string) {
	m.cacheHitsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.type", cacheType),
	))
}

// RecordCacheMiss records a cache miss
func (m *OTelMetrics) RecordCacheMiss(ctx context.Context, cacheType string) {
	m.cacheMissesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.type", cacheType),
	))
}

// RecordAssetOperation records an asset store operation
func (m *OTelMetrics) RecordAssetOperation(ctx context.Context, operation, backend string, bytes int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("asset.operation", operation),
		attribute.String("asset.backend", backend),
		attribute.Bool("error", err != nil),
	}

	m.assetOperations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if bytes > 0 {
		m.assetBytes.Record(ctx, bytes, metric.WithAttributes(attrs...))
	}
}
