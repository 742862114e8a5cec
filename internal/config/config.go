// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Queue    QueueConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds file import processing settings.
type ImportConfig struct {
	// BatchSize is the number of records buffered per transactional write (default: 1000)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"1000"`

	// MaxFileSize is the maximum allowed input file size in bytes (default: 500MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"524288000"`

	// EncodingConfidence is the minimum detection confidence before
	// falling back to UTF-8 (default: 0.7)
	EncodingConfidence float64 `env:"IMPORT_ENCODING_CONFIDENCE" default:"0.7"`
}

// QueueConfig holds async job queue settings.
type QueueConfig struct {
	// Workers is the number of concurrent import jobs (default: 2).
	// Each job processes one file; records within a file stay sequential.
	Workers int `env:"QUEUE_WORKERS" default:"2"`

	// Depth is the buffered channel capacity for pending jobs (default: 64)
	Depth int `env:"QUEUE_DEPTH" default:"64"`
}

// CacheConfig holds cache invalidation settings.
type CacheConfig struct {
	// TTL is how long cached aggregate entries live (default: 5m)
	TTL time.Duration `env:"CACHE_TTL" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
