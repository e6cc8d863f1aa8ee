package storage

import "time"

// Config selects and tunes the persistence backend
type Config struct {
	Type string // "memory", "postgres"

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // comma-separated
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// S3 config (token asset bundles)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Local asset directory used when S3 is not configured
	AssetsRoot string

	// Cache config
	CacheEnabled   bool
	CacheTTL       map[string]time.Duration
	TokenCacheSize int // entries in the in-process token LRU

	// Memory-mode bound on retained delivery log rows. Oldest rows are
	// evicted once the cap is hit.
	MaxDeliveryLogs int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		AssetsRoot:       "/tmp/soroforge-assets",
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"token":        1 * time.Hour,
			"token_list":   5 * time.Minute,
			"leaderboard":  1 * time.Minute,
			"analytics":    5 * time.Minute,
			"subscription": 30 * time.Second,
		},
		TokenCacheSize:  1024,
		MaxDeliveryLogs: 10000,
	}
}
