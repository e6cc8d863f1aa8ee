// Package config provides application configuration management from environment
// variables and optional YAML files.
//
// # Overview
//
// This package loads and validates configuration with sensible defaults for all
// settings. Environment variables always win over file values.
//
// # Configuration Structure
//
// Server settings:
//
//	SOROFORGE_HOST="0.0.0.0"
//	SOROFORGE_PORT="8080"
//	SOROFORGE_HEALTH_PORT="9090"
//	SOROFORGE_READ_TIMEOUT="15s"
//	SOROFORGE_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	SOROFORGE_STORAGE_TYPE="postgres"  # memory, postgres
//	SOROFORGE_POSTGRES_URL="postgres://localhost/soroforge"
//	SOROFORGE_POSTGRES_MAX_CONNS="20"
//	SOROFORGE_REDIS_URL="redis://localhost:6379"
//	SOROFORGE_S3_BUCKET="soroforge-assets"
//
// Webhook delivery settings:
//
//	SOROFORGE_RETRY_MAX_ATTEMPTS="3"
//	SOROFORGE_RETRY_INITIAL_DELAY="1s"
//	SOROFORGE_RETRY_MAX_DELAY="30s"
//	SOROFORGE_RETRY_MULTIPLIER="2.0"
//	SOROFORGE_ATTEMPT_TIMEOUT="10s"
//	SOROFORGE_DISPATCH_WORKERS="16"
//
// Observability settings:
//
//	SOROFORGE_LOG_LEVEL="info"  # debug, info, warn, error
//	SOROFORGE_METRICS_ENABLED="true"
//	SOROFORGE_OTEL_ENABLED="true"
//	SOROFORGE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//	fmt.Printf("Attempts: %d\n", cfg.Webhooks.MaxAttempts)
//
// Layer a YAML file under the environment:
//
//	cfg, err := config.LoadConfigFromFile("soroforge.yaml")
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/webhooks: Uses delivery configuration
//   - pkg/observability: Uses observability configuration
package config
