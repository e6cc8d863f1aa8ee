package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soroforge/soroforge/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
		{
			name:         "returns true for 'TRUE' (case insensitive)",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "TRUE",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns parsed int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "returns default for invalid int",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "invalid",
			want:         10,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOT_SET",
			defaultValue: 10,
			envValue:     "",
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvFloat tests the getEnvFloat helper function
func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue float64
		envValue     string
		want         float64
	}{
		{
			name:         "returns parsed float",
			key:          "TEST_FLOAT",
			defaultValue: 2.0,
			envValue:     "1.5",
			want:         1.5,
		},
		{
			name:         "returns default for invalid float",
			key:          "TEST_FLOAT",
			defaultValue: 2.0,
			envValue:     "invalid",
			want:         2.0,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_FLOAT_NOT_SET",
			defaultValue: 2.0,
			envValue:     "",
			want:         2.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvFloat(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns parsed duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default for invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOT_SET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestApplyEnv tests environment overrides over defaults
func TestApplyEnv(t *testing.T) {
	envVars := []string{
		"SOROFORGE_HOST",
		"SOROFORGE_PORT",
		"SOROFORGE_HEALTH_PORT",
		"SOROFORGE_STORAGE_TYPE",
		"SOROFORGE_POSTGRES_URL",
		"SOROFORGE_RETRY_MAX_ATTEMPTS",
		"SOROFORGE_RETRY_INITIAL_DELAY",
		"SOROFORGE_RETRY_MULTIPLIER",
		"SOROFORGE_DISPATCH_WORKERS",
		"SOROFORGE_LOG_LEVEL",
		"SOROFORGE_RATELIMIT_RPM",
		"SOROFORGE_INGEST_TOKEN",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("defaults survive empty environment", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		cfg := defaultConfig()
		applyEnv(cfg)

		if cfg.Server.Port != "8080" {
			t.Errorf("Port = %v, want 8080", cfg.Server.Port)
		}
		if cfg.Storage.Type != "memory" {
			t.Errorf("Storage.Type = %v, want memory", cfg.Storage.Type)
		}
		if cfg.Webhooks.MaxAttempts != 3 {
			t.Errorf("MaxAttempts = %v, want 3", cfg.Webhooks.MaxAttempts)
		}
		if cfg.Webhooks.InitialDelay != 1*time.Second {
			t.Errorf("InitialDelay = %v, want 1s", cfg.Webhooks.InitialDelay)
		}
		if cfg.Webhooks.BackoffMultiplier != 2.0 {
			t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.Webhooks.BackoffMultiplier)
		}
		if cfg.Webhooks.AttemptTimeout != 10*time.Second {
			t.Errorf("AttemptTimeout = %v, want 10s", cfg.Webhooks.AttemptTimeout)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		for _, k := range envVars {
			os.Unsetenv(k)
		}

		os.Setenv("SOROFORGE_HOST", "localhost")
		os.Setenv("SOROFORGE_PORT", "3000")
		os.Setenv("SOROFORGE_STORAGE_TYPE", "postgres")
		os.Setenv("SOROFORGE_POSTGRES_URL", "postgres://localhost/soroforge")
		os.Setenv("SOROFORGE_RETRY_MAX_ATTEMPTS", "5")
		os.Setenv("SOROFORGE_RETRY_INITIAL_DELAY", "500ms")
		os.Setenv("SOROFORGE_RETRY_MULTIPLIER", "1.5")
		os.Setenv("SOROFORGE_DISPATCH_WORKERS", "4")
		os.Setenv("SOROFORGE_LOG_LEVEL", "debug")
		os.Setenv("SOROFORGE_RATELIMIT_RPM", "600")
		os.Setenv("SOROFORGE_INGEST_TOKEN", "shh")

		cfg := defaultConfig()
		applyEnv(cfg)

		if cfg.Server.Host != "localhost" {
			t.Errorf("Host = %v, want localhost", cfg.Server.Host)
		}
		if cfg.Server.Port != "3000" {
			t.Errorf("Port = %v, want 3000", cfg.Server.Port)
		}
		if cfg.Storage.Type != "postgres" {
			t.Errorf("Storage.Type = %v, want postgres", cfg.Storage.Type)
		}
		if cfg.Storage.PostgresURL != "postgres://localhost/soroforge" {
			t.Errorf("PostgresURL = %v", cfg.Storage.PostgresURL)
		}
		if cfg.Webhooks.MaxAttempts != 5 {
			t.Errorf("MaxAttempts = %v, want 5", cfg.Webhooks.MaxAttempts)
		}
		if cfg.Webhooks.InitialDelay != 500*time.Millisecond {
			t.Errorf("InitialDelay = %v, want 500ms", cfg.Webhooks.InitialDelay)
		}
		if cfg.Webhooks.BackoffMultiplier != 1.5 {
			t.Errorf("BackoffMultiplier = %v, want 1.5", cfg.Webhooks.BackoffMultiplier)
		}
		if cfg.Webhooks.DispatchWorkers != 4 {
			t.Errorf("DispatchWorkers = %v, want 4", cfg.Webhooks.DispatchWorkers)
		}
		if cfg.Observability.LogLevel != observability.DebugLevel {
			t.Errorf("LogLevel = %v, want debug", cfg.Observability.LogLevel)
		}
		if cfg.RateLimit.RequestsPerMinute != 600 {
			t.Errorf("RequestsPerMinute = %v, want 600", cfg.RateLimit.RequestsPerMinute)
		}
		if cfg.Events.IngestToken != "shh" {
			t.Errorf("IngestToken = %v, want shh", cfg.Events.IngestToken)
		}
	})
}

// TestConfigValidate tests the Config.Validate method
func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return defaultConfig()
	}

	t.Run("default config is valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() unexpected error = %v", err)
		}
	})

	t.Run("missing server port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = ""
		err := cfg.Validate()
		if err == nil || err.Error() != "server port is required" {
			t.Errorf("Validate() error = %v, want 'server port is required'", err)
		}
	})

	t.Run("missing health port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = ""
		err := cfg.Validate()
		if err == nil || err.Error() != "health port is required" {
			t.Errorf("Validate() error = %v, want 'health port is required'", err)
		}
	})

	t.Run("same server and health port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		err := cfg.Validate()
		if err == nil || err.Error() != "server port and health port must be different" {
			t.Errorf("Validate() error = %v, want 'server port and health port must be different'", err)
		}
	})

	t.Run("postgres storage without postgres url", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Type = "postgres"
		cfg.Storage.PostgresURL = ""
		err := cfg.Validate()
		if err == nil || err.Error() != "postgres URL is required for postgres storage" {
			t.Errorf("Validate() error = %v, want 'postgres URL is required for postgres storage'", err)
		}
	})

	t.Run("invalid storage type", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Type = "filesystem"
		err := cfg.Validate()
		if err == nil {
			t.Error("Validate() expected error, got nil")
		}
	})

	t.Run("zero max attempts", func(t *testing.T) {
		cfg := valid()
		cfg.Webhooks.MaxAttempts = 0
		err := cfg.Validate()
		if err == nil || err.Error() != "webhook max attempts must be at least 1" {
			t.Errorf("Validate() error = %v, want 'webhook max attempts must be at least 1'", err)
		}
	})

	t.Run("max delay below initial delay", func(t *testing.T) {
		cfg := valid()
		cfg.Webhooks.InitialDelay = 10 * time.Second
		cfg.Webhooks.MaxDelay = 5 * time.Second
		err := cfg.Validate()
		if err == nil || err.Error() != "webhook max delay must be at least the initial delay" {
			t.Errorf("Validate() error = %v, want 'webhook max delay must be at least the initial delay'", err)
		}
	})

	t.Run("multiplier below one", func(t *testing.T) {
		cfg := valid()
		cfg.Webhooks.BackoffMultiplier = 0.5
		err := cfg.Validate()
		if err == nil || err.Error() != "webhook backoff multiplier must be at least 1" {
			t.Errorf("Validate() error = %v, want 'webhook backoff multiplier must be at least 1'", err)
		}
	})

	t.Run("zero dispatch workers", func(t *testing.T) {
		cfg := valid()
		cfg.Webhooks.DispatchWorkers = 0
		err := cfg.Validate()
		if err == nil || err.Error() != "webhook dispatch workers must be at least 1" {
			t.Errorf("Validate() error = %v, want 'webhook dispatch workers must be at least 1'", err)
		}
	})

	t.Run("distributed rate limiting without redis", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.Distributed = true
		cfg.Storage.RedisURL = ""
		err := cfg.Validate()
		if err == nil || err.Error() != "redis URL is required for distributed rate limiting" {
			t.Errorf("Validate() error = %v, want 'redis URL is required for distributed rate limiting'", err)
		}
	})

	t.Run("otel enabled without endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = ""
		err := cfg.Validate()
		if err == nil || err.Error() != "OpenTelemetry endpoint is required when OTel is enabled" {
			t.Errorf("Validate() error = %v, want 'OpenTelemetry endpoint is required when OTel is enabled'", err)
		}
	})
}

// TestLoadConfig tests the LoadConfig function
func TestLoadConfig(t *testing.T) {
	envVars := []string{
		"SOROFORGE_PORT",
		"SOROFORGE_HEALTH_PORT",
		"SOROFORGE_STORAGE_TYPE",
		"SOROFORGE_POSTGRES_URL",
	}
	originalEnv := make(map[string]string)
	for _, k := range envVars {
		originalEnv[k] = os.Getenv(k)
	}
	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{
			name:    "valid defaults",
			env:     map[string]string{},
			wantErr: false,
		},
		{
			name: "invalid config - same ports",
			env: map[string]string{
				"SOROFORGE_PORT":        "8080",
				"SOROFORGE_HEALTH_PORT": "8080",
			},
			wantErr: true,
		},
		{
			name: "postgres without url",
			env: map[string]string{
				"SOROFORGE_STORAGE_TYPE": "postgres",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range envVars {
				os.Unsetenv(k)
			}
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && cfg == nil {
				t.Error("LoadConfig() returned nil config without error")
			}
		})
	}
}

// TestLoadConfigFromFile tests YAML layering and env precedence
func TestLoadConfigFromFile(t *testing.T) {
	writeFile := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "soroforge.yaml")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write config file: %v", err)
		}
		return path
	}

	t.Run("file values override defaults", func(t *testing.T) {
		path := writeFile(t, `
server:
  port: "4000"
webhooks:
  max_attempts: 7
  initial_delay: 250ms
  backoff_multiplier: 3.0
rate_limit:
  enabled: false
observability:
  log_level: warn
`)
		cfg, err := LoadConfigFromFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFromFile() error = %v", err)
		}

		if cfg.Server.Port != "4000" {
			t.Errorf("Port = %v, want 4000", cfg.Server.Port)
		}
		if cfg.Webhooks.MaxAttempts != 7 {
			t.Errorf("MaxAttempts = %v, want 7", cfg.Webhooks.MaxAttempts)
		}
		if cfg.Webhooks.InitialDelay != 250*time.Millisecond {
			t.Errorf("InitialDelay = %v, want 250ms", cfg.Webhooks.InitialDelay)
		}
		if cfg.Webhooks.BackoffMultiplier != 3.0 {
			t.Errorf("BackoffMultiplier = %v, want 3.0", cfg.Webhooks.BackoffMultiplier)
		}
		if cfg.RateLimit.Enabled {
			t.Error("RateLimit.Enabled = true, want false")
		}
		if cfg.Observability.LogLevel != observability.WarnLevel {
			t.Errorf("LogLevel = %v, want warn", cfg.Observability.LogLevel)
		}
		// Untouched values keep their defaults
		if cfg.Server.HealthPort != "9090" {
			t.Errorf("HealthPort = %v, want 9090", cfg.Server.HealthPort)
		}
		if cfg.Webhooks.MaxDelay != 30*time.Second {
			t.Errorf("MaxDelay = %v, want 30s", cfg.Webhooks.MaxDelay)
		}
	})

	t.Run("environment wins over file", func(t *testing.T) {
		original := os.Getenv("SOROFORGE_PORT")
		os.Setenv("SOROFORGE_PORT", "5000")
		defer func() {
			if original == "" {
				os.Unsetenv("SOROFORGE_PORT")
			} else {
				os.Setenv("SOROFORGE_PORT", original)
			}
		}()

		path := writeFile(t, `
server:
  port: "4000"
`)
		cfg, err := LoadConfigFromFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFromFile() error = %v", err)
		}
		if cfg.Server.Port != "5000" {
			t.Errorf("Port = %v, want 5000 (env override)", cfg.Server.Port)
		}
	})

	t.Run("invalid duration rejected", func(t *testing.T) {
		path := writeFile(t, `
webhooks:
  initial_delay: soon
`)
		if _, err := LoadConfigFromFile(path); err == nil {
			t.Error("LoadConfigFromFile() expected error for invalid duration")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfigFromFile("/does/not/exist.yaml"); err == nil {
			t.Error("LoadConfigFromFile() expected error for missing file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, "server: [not a map")
		if _, err := LoadConfigFromFile(path); err == nil {
			t.Error("LoadConfigFromFile() expected error for malformed yaml")
		}
	})
}
