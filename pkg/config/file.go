package config

import (
	"fmt"
	"time"

	"github.com/soroforge/soroforge/pkg/observability"
)

// fileConfig mirrors Config with YAML-friendly types. Durations are
// time.ParseDuration strings, the log level is a name. Absent fields
// leave the corresponding Config value untouched.
type fileConfig struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            string `yaml:"port"`
		HealthPort      string `yaml:"health_port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		IdleTimeout     string `yaml:"idle_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Type                string `yaml:"type"`
		PostgresURL         string `yaml:"postgres_url"`
		PostgresReplicaURLs string `yaml:"postgres_replica_urls"`
		PostgresMaxConns    int    `yaml:"postgres_max_conns"`
		PostgresMinConns    int    `yaml:"postgres_min_conns"`
		PostgresTimeout     string `yaml:"postgres_timeout"`
		RedisURL            string `yaml:"redis_url"`
		RedisPassword       string `yaml:"redis_password"`
		RedisDB             *int   `yaml:"redis_db"`
		RedisMaxRetries     int    `yaml:"redis_max_retries"`
		RedisPoolSize       int    `yaml:"redis_pool_size"`
		S3Endpoint          string `yaml:"s3_endpoint"`
		S3Region            string `yaml:"s3_region"`
		S3Bucket            string `yaml:"s3_bucket"`
		S3AccessKey         string `yaml:"s3_access_key"`
		S3SecretKey         string `yaml:"s3_secret_key"`
		S3UsePathStyle      *bool  `yaml:"s3_use_path_style"`
		AssetsRoot          string `yaml:"assets_root"`
		CacheEnabled        *bool  `yaml:"cache_enabled"`
		TokenCacheSize      int    `yaml:"token_cache_size"`
		MaxDeliveryLogs     int    `yaml:"max_delivery_logs"`
	} `yaml:"storage"`

	Webhooks struct {
		MaxAttempts       int     `yaml:"max_attempts"`
		InitialDelay      string  `yaml:"initial_delay"`
		MaxDelay          string  `yaml:"max_delay"`
		BackoffMultiplier float64 `yaml:"backoff_multiplier"`
		AttemptTimeout    string  `yaml:"attempt_timeout"`
		DispatchWorkers   int     `yaml:"dispatch_workers"`
		TestPerMinute     int     `yaml:"test_per_minute"`
		LogRetention      string  `yaml:"log_retention"`
	} `yaml:"webhooks"`

	Events struct {
		BusBuffer   int    `yaml:"bus_buffer"`
		IngestToken string `yaml:"ingest_token"`
	} `yaml:"events"`

	RateLimit struct {
		Enabled           *bool `yaml:"enabled"`
		RequestsPerMinute int   `yaml:"requests_per_minute"`
		Burst             int   `yaml:"burst"`
		Distributed       *bool `yaml:"distributed"`
	} `yaml:"rate_limit"`

	Observability struct {
		LogLevel           string `yaml:"log_level"`
		MetricsEnabled     *bool  `yaml:"metrics_enabled"`
		OTelEnabled        *bool  `yaml:"otel_enabled"`
		OTelEndpoint       string `yaml:"otel_endpoint"`
		OTelServiceName    string `yaml:"otel_service_name"`
		OTelServiceVersion string `yaml:"otel_service_version"`
		OTelInsecure       *bool  `yaml:"otel_insecure"`
	} `yaml:"observability"`
}

// applyTo copies the file values that were present onto cfg
func (fc *fileConfig) applyTo(cfg *Config) error {
	setString(&cfg.Server.Host, fc.Server.Host)
	setString(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.HealthPort, fc.Server.HealthPort)
	if err := setDuration(&cfg.Server.ReadTimeout, fc.Server.ReadTimeout, "server.read_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.WriteTimeout, fc.Server.WriteTimeout, "server.write_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.IdleTimeout, fc.Server.IdleTimeout, "server.idle_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Server.ShutdownTimeout, fc.Server.ShutdownTimeout, "server.shutdown_timeout"); err != nil {
		return err
	}

	setString(&cfg.Storage.Type, fc.Storage.Type)
	setString(&cfg.Storage.PostgresURL, fc.Storage.PostgresURL)
	setString(&cfg.Storage.PostgresReplicaURLs, fc.Storage.PostgresReplicaURLs)
	setInt(&cfg.Storage.PostgresMaxConns, fc.Storage.PostgresMaxConns)
	setInt(&cfg.Storage.PostgresMinConns, fc.Storage.PostgresMinConns)
	if err := setDuration(&cfg.Storage.PostgresTimeout, fc.Storage.PostgresTimeout, "storage.postgres_timeout"); err != nil {
		return err
	}
	setString(&cfg.Storage.RedisURL, fc.Storage.RedisURL)
	setString(&cfg.Storage.RedisPassword, fc.Storage.RedisPassword)
	if fc.Storage.RedisDB != nil {
		cfg.Storage.RedisDB = *fc.Storage.RedisDB
	}
	setInt(&cfg.Storage.RedisMaxRetries, fc.Storage.RedisMaxRetries)
	setInt(&cfg.Storage.RedisPoolSize, fc.Storage.RedisPoolSize)
	setString(&cfg.Storage.S3Endpoint, fc.Storage.S3Endpoint)
	setString(&cfg.Storage.S3Region, fc.Storage.S3Region)
	setString(&cfg.Storage.S3Bucket, fc.Storage.S3Bucket)
	setString(&cfg.Storage.S3AccessKey, fc.Storage.S3AccessKey)
	setString(&cfg.Storage.S3SecretKey, fc.Storage.S3SecretKey)
	if fc.Storage.S3UsePathStyle != nil {
		cfg.Storage.S3UsePathStyle = *fc.Storage.S3UsePathStyle
	}
	setString(&cfg.Storage.AssetsRoot, fc.Storage.AssetsRoot)
	if fc.Storage.CacheEnabled != nil {
		cfg.Storage.CacheEnabled = *fc.Storage.CacheEnabled
	}
	setInt(&cfg.Storage.TokenCacheSize, fc.Storage.TokenCacheSize)
	setInt(&cfg.Storage.MaxDeliveryLogs, fc.Storage.MaxDeliveryLogs)

	setInt(&cfg.Webhooks.MaxAttempts, fc.Webhooks.MaxAttempts)
	if err := setDuration(&cfg.Webhooks.InitialDelay, fc.Webhooks.InitialDelay, "webhooks.initial_delay"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Webhooks.MaxDelay, fc.Webhooks.MaxDelay, "webhooks.max_delay"); err != nil {
		return err
	}
	if fc.Webhooks.BackoffMultiplier != 0 {
		cfg.Webhooks.BackoffMultiplier = fc.Webhooks.BackoffMultiplier
	}
	if err := setDuration(&cfg.Webhooks.AttemptTimeout, fc.Webhooks.AttemptTimeout, "webhooks.attempt_timeout"); err != nil {
		return err
	}
	setInt(&cfg.Webhooks.DispatchWorkers, fc.Webhooks.DispatchWorkers)
	setInt(&cfg.Webhooks.TestPerMinute, fc.Webhooks.TestPerMinute)
	if err := setDuration(&cfg.Webhooks.LogRetention, fc.Webhooks.LogRetention, "webhooks.log_retention"); err != nil {
		return err
	}

	setInt(&cfg.Events.BusBuffer, fc.Events.BusBuffer)
	setString(&cfg.Events.IngestToken, fc.Events.IngestToken)

	if fc.RateLimit.Enabled != nil {
		cfg.RateLimit.Enabled = *fc.RateLimit.Enabled
	}
	setInt(&cfg.RateLimit.RequestsPerMinute, fc.RateLimit.RequestsPerMinute)
	setInt(&cfg.RateLimit.Burst, fc.RateLimit.Burst)
	if fc.RateLimit.Distributed != nil {
		cfg.RateLimit.Distributed = *fc.RateLimit.Distributed
	}

	if fc.Observability.LogLevel != "" {
		cfg.Observability.LogLevel = observability.ParseLevel(fc.Observability.LogLevel)
	}
	if fc.Observability.MetricsEnabled != nil {
		cfg.Observability.MetricsEnabled = *fc.Observability.MetricsEnabled
	}
	if fc.Observability.OTelEnabled != nil {
		cfg.Observability.OTelEnabled = *fc.Observability.OTelEnabled
	}
	setString(&cfg.Observability.OTelEndpoint, fc.Observability.OTelEndpoint)
	setString(&cfg.Observability.OTelServiceName, fc.Observability.OTelServiceName)
	setString(&cfg.Observability.OTelServiceVersion, fc.Observability.OTelServiceVersion)
	if fc.Observability.OTelInsecure != nil {
		cfg.Observability.OTelInsecure = *fc.Observability.OTelInsecure
	}

	return nil
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func setInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

func setDuration(dst *time.Duration, src, field string) error {
	if src == "" {
		return nil
	}
	d, err := time.ParseDuration(src)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", field, src)
	}
	*dst = d
	return nil
}
