package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soroforge/soroforge/pkg/observability"
	"github.com/soroforge/soroforge/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Webhook delivery configuration
	Webhooks WebhooksConfig

	// Event ingestion configuration
	Events EventsConfig

	// API rate limiting configuration
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// CORS origins allowed to call the public API from a browser.
	// Empty disables CORS headers entirely.
	CORSOrigins []string
}

// WebhooksConfig tunes delivery retries and dispatch concurrency
type WebhooksConfig struct {
	// Per-delivery attempt schedule
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// Per-attempt HTTP timeout
	AttemptTimeout time.Duration

	// Concurrent deliveries per event fan-out
	DispatchWorkers int

	// Per-subscription test delivery budget
	TestPerMinute int

	// Delivery log retention enforced by the worker binary. Zero keeps
	// logs forever.
	LogRetention time.Duration
}

// EventsConfig tunes the in-process event bus and ingest endpoint
type EventsConfig struct {
	BusBuffer int

	// Shared secret required by the internal ingest endpoint. Empty
	// disables ingest auth (local development only).
	IngestToken string
}

// RateLimitConfig tunes API rate limiting
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int

	// Distributed switches to Redis-backed counters so limits hold
	// across replicas. Requires a Redis URL.
	Distributed bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromFile layers a YAML file over the defaults, then applies
// environment overrides on top
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := fc.applyTo(cfg); err != nil {
		return nil, fmt.Errorf("apply config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Webhooks: WebhooksConfig{
			MaxAttempts:       3,
			InitialDelay:      1 * time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
			AttemptTimeout:    10 * time.Second,
			DispatchWorkers:   16,
			TestPerMinute:     6,
			LogRetention:      0,
		},
		Events: EventsConfig{
			BusBuffer: 256,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			Burst:             30,
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEnabled:        false,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "soroforge",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// applyEnv overrides cfg with SOROFORGE_* environment variables
func applyEnv(cfg *Config) {
	// Server
	cfg.Server.Host = getEnv("SOROFORGE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("SOROFORGE_PORT", cfg.Server.Port)
	cfg.Server.HealthPort = getEnv("SOROFORGE_HEALTH_PORT", cfg.Server.HealthPort)
	cfg.Server.ReadTimeout = getEnvDuration("SOROFORGE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("SOROFORGE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("SOROFORGE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SOROFORGE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigins = getEnvList("SOROFORGE_CORS_ORIGINS", cfg.Server.CORSOrigins)

	// Storage
	cfg.Storage.Type = getEnv("SOROFORGE_STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.PostgresURL = getEnv("SOROFORGE_POSTGRES_URL", cfg.Storage.PostgresURL)
	cfg.Storage.PostgresReplicaURLs = getEnv("SOROFORGE_POSTGRES_REPLICA_URLS", cfg.Storage.PostgresReplicaURLs)
	cfg.Storage.PostgresMaxConns = getEnvInt("SOROFORGE_POSTGRES_MAX_CONNS", cfg.Storage.PostgresMaxConns)
	cfg.Storage.PostgresMinConns = getEnvInt("SOROFORGE_POSTGRES_MIN_CONNS", cfg.Storage.PostgresMinConns)
	cfg.Storage.PostgresTimeout = getEnvDuration("SOROFORGE_POSTGRES_TIMEOUT", cfg.Storage.PostgresTimeout)
	cfg.Storage.RedisURL = getEnv("SOROFORGE_REDIS_URL", cfg.Storage.RedisURL)
	cfg.Storage.RedisPassword = getEnv("SOROFORGE_REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = getEnvInt("SOROFORGE_REDIS_DB", cfg.Storage.RedisDB)
	cfg.Storage.RedisMaxRetries = getEnvInt("SOROFORGE_REDIS_MAX_RETRIES", cfg.Storage.RedisMaxRetries)
	cfg.Storage.RedisPoolSize = getEnvInt("SOROFORGE_REDIS_POOL_SIZE", cfg.Storage.RedisPoolSize)
	cfg.Storage.S3Endpoint = getEnv("SOROFORGE_S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3Region = getEnv("SOROFORGE_S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3Bucket = getEnv("SOROFORGE_S3_BUCKET", cfg.Storage.S3Bucket)
	cfg.Storage.S3AccessKey = getEnv("SOROFORGE_S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("SOROFORGE_S3_SECRET_KEY", cfg.Storage.S3SecretKey)
	cfg.Storage.S3UsePathStyle = getEnvBool("SOROFORGE_S3_USE_PATH_STYLE", cfg.Storage.S3UsePathStyle)
	cfg.Storage.AssetsRoot = getEnv("SOROFORGE_ASSETS_ROOT", cfg.Storage.AssetsRoot)
	cfg.Storage.CacheEnabled = getEnvBool("SOROFORGE_CACHE_ENABLED", cfg.Storage.CacheEnabled)
	cfg.Storage.TokenCacheSize = getEnvInt("SOROFORGE_TOKEN_CACHE_SIZE", cfg.Storage.TokenCacheSize)
	cfg.Storage.MaxDeliveryLogs = getEnvInt("SOROFORGE_MAX_DELIVERY_LOGS", cfg.Storage.MaxDeliveryLogs)

	// Webhooks
	cfg.Webhooks.MaxAttempts = getEnvInt("SOROFORGE_RETRY_MAX_ATTEMPTS", cfg.Webhooks.MaxAttempts)
	cfg.Webhooks.InitialDelay = getEnvDuration("SOROFORGE_RETRY_INITIAL_DELAY", cfg.Webhooks.InitialDelay)
	cfg.Webhooks.MaxDelay = getEnvDuration("SOROFORGE_RETRY_MAX_DELAY", cfg.Webhooks.MaxDelay)
	cfg.Webhooks.BackoffMultiplier = getEnvFloat("SOROFORGE_RETRY_MULTIPLIER", cfg.Webhooks.BackoffMultiplier)
	cfg.Webhooks.AttemptTimeout = getEnvDuration("SOROFORGE_ATTEMPT_TIMEOUT", cfg.Webhooks.AttemptTimeout)
	cfg.Webhooks.DispatchWorkers = getEnvInt("SOROFORGE_DISPATCH_WORKERS", cfg.Webhooks.DispatchWorkers)
	cfg.Webhooks.TestPerMinute = getEnvInt("SOROFORGE_TEST_PER_MINUTE", cfg.Webhooks.TestPerMinute)
	cfg.Webhooks.LogRetention = getEnvDuration("SOROFORGE_LOG_RETENTION", cfg.Webhooks.LogRetention)

	// Events
	cfg.Events.BusBuffer = getEnvInt("SOROFORGE_EVENT_BUS_BUFFER", cfg.Events.BusBuffer)
	cfg.Events.IngestToken = getEnv("SOROFORGE_INGEST_TOKEN", cfg.Events.IngestToken)

	// Rate limiting
	cfg.RateLimit.Enabled = getEnvBool("SOROFORGE_RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = getEnvInt("SOROFORGE_RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
	cfg.RateLimit.Burst = getEnvInt("SOROFORGE_RATELIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.Distributed = getEnvBool("SOROFORGE_RATELIMIT_DISTRIBUTED", cfg.RateLimit.Distributed)

	// Observability
	if level := os.Getenv("SOROFORGE_LOG_LEVEL"); level != "" {
		cfg.Observability.LogLevel = observability.ParseLevel(level)
	}
	cfg.Observability.MetricsEnabled = getEnvBool("SOROFORGE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("SOROFORGE_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("SOROFORGE_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("SOROFORGE_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("SOROFORGE_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("SOROFORGE_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
		// No external dependencies required
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	// Validate webhook delivery config
	if c.Webhooks.MaxAttempts < 1 {
		return fmt.Errorf("webhook max attempts must be at least 1")
	}
	if c.Webhooks.InitialDelay <= 0 {
		return fmt.Errorf("webhook initial delay must be positive")
	}
	if c.Webhooks.MaxDelay < c.Webhooks.InitialDelay {
		return fmt.Errorf("webhook max delay must be at least the initial delay")
	}
	if c.Webhooks.BackoffMultiplier < 1 {
		return fmt.Errorf("webhook backoff multiplier must be at least 1")
	}
	if c.Webhooks.AttemptTimeout <= 0 {
		return fmt.Errorf("webhook attempt timeout must be positive")
	}
	if c.Webhooks.DispatchWorkers < 1 {
		return fmt.Errorf("webhook dispatch workers must be at least 1")
	}

	// Validate rate limiting config
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit requests per minute must be positive when rate limiting is enabled")
	}
	if c.RateLimit.Distributed && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required for distributed rate limiting")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
// or a default
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
