package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Webhook delivery metrics
	DeliveriesTotal        *prometheus.CounterVec
	DeliveryAttemptsTotal  *prometheus.CounterVec
	DeliveryAttemptSeconds *prometheus.HistogramVec
	DeliveriesInFlight     prometheus.Gauge
	SubscriptionsActive    prometheus.Gauge

	// Event metrics
	EventsEmittedTotal *prometheus.CounterVec
	EventsDroppedTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Platform metrics
	TokensTotal     prometheus.Gauge
	BurnEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soroforge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soroforge_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Webhook delivery metrics
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_webhook_deliveries_total",
				Help: "Completed webhook deliveries by final status",
			},
			[]string{"event", "status"},
		),
		DeliveryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_webhook_delivery_attempts_total",
				Help: "Individual delivery attempts by outcome",
			},
			[]string{"status"},
		),
		DeliveryAttemptSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "soroforge_webhook_delivery_attempt_duration_seconds",
				Help:    "Duration of individual delivery attempts",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"status"},
		),
		DeliveriesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soroforge_webhook_deliveries_in_flight",
				Help: "Deliveries currently being attempted or awaiting retry",
			},
		),
		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soroforge_webhook_subscriptions_active",
				Help: "Number of active webhook subscriptions",
			},
		),

		// Event metrics
		EventsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_events_emitted_total",
				Help: "Token lifecycle events emitted on the bus",
			},
			[]string{"event"},
		),
		EventsDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_events_dropped_total",
				Help: "Events rejected before emission",
			},
			[]string{"reason"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soroforge_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soroforge_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		// Platform metrics
		TokensTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "soroforge_tokens_total",
				Help: "Total number of tokens launched through the factory",
			},
		),
		BurnEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "soroforge_token_burn_events_total",
				Help: "Burn events recorded by kind",
			},
			[]string{"kind"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.DeliveriesTotal,
		m.DeliveryAttemptsTotal,
		m.DeliveryAttemptSeconds,
		m.DeliveriesInFlight,
		m.SubscriptionsActive,
		m.EventsEmittedTotal,
		m.EventsDroppedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.TokensTotal,
		m.BurnEventsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler returns the HTTP handler serving the /metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
