// Package storage wires the durable backends: the PostgreSQL pool the
// services run on and the Redis client used for throttling and the
// church-by-domain cache.
package storage

import "time"

// Config holds backend connection settings.
type Config struct {
	// PostgreSQL
	PostgresURL     string
	ReplicaURLs     []string
	MaxConns        int
	MinConns        int
	ConnTimeout     time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Redis
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// ChurchCacheTTL bounds how stale a cached church record may be.
	ChurchCacheTTL time.Duration
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() Config {
	return Config{
		PostgresURL:     "postgres://localhost:5432/steeple?sslmode=disable",
		MaxConns:        25,
		MinConns:        5,
		ConnTimeout:     10 * time.Second,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,

		RedisURL: "redis://localhost:6379/0",
		RedisDB:  -1,

		ChurchCacheTTL: 5 * time.Minute,
	}
}
