// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Lock     LockConfig
	Events   EventsConfig
	Tenant   TenantConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds store settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres or memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies the embedded schema on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// UploadConfig holds gradebook upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// Timeout is the maximum duration for a single upload operation (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`

	// DensityRatio is the fraction of students that must have a score for an
	// assignment to be imported (default: 0.1)
	DensityRatio float64 `env:"UPLOAD_DENSITY_RATIO" default:"0.1"`

	// DateRow is the 0-based file row holding assignment dates; -1 for none (default: 1)
	DateRow int `env:"UPLOAD_DATE_ROW" default:"1"`

	// PointsRow is the 0-based file row holding max points (default: 2)
	PointsRow int `env:"UPLOAD_POINTS_ROW" default:"2"`

	// FirstStudentRow is the 0-based file row of the first student (default: 3)
	FirstStudentRow int `env:"UPLOAD_FIRST_STUDENT_ROW" default:"3"`

	// ScoreCeiling drops any score above this absolute value, whatever the
	// assignment's max points; 0 disables (default: 0)
	ScoreCeiling float64 `env:"UPLOAD_SCORE_CEILING" default:"0"`

	// MissingPlaceholders are cell values read as missing (default: nan,none,null,n/a,#n/a)
	MissingPlaceholders []string `env:"UPLOAD_MISSING_PLACEHOLDERS" default:"nan,none,null,n/a,#n/a"`

	// MaxConcurrent is the maximum number of parallel uploads in one process (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`
}

// LockConfig holds tenant upload lock settings.
type LockConfig struct {
	// RedisURL enables the shared Redis lock when set (e.g. redis://localhost:6379/0)
	RedisURL string `env:"LOCK_REDIS_URL"`

	// TTL is how long a Redis lock survives a crashed holder (default: 10m)
	TTL time.Duration `env:"LOCK_TTL" default:"10m"`

	// Wait is how long an upload waits for a busy tenant (default: 5s)
	Wait time.Duration `env:"LOCK_WAIT" default:"5s"`
}

// EventsConfig holds upload event settings.
type EventsConfig struct {
	// KafkaBrokers switches events to Kafka when set (comma-separated)
	KafkaBrokers []string `env:"EVENTS_KAFKA_BROKERS"`

	// Topic is the upload-completed topic (default: gradebook.upload.completed)
	Topic string `env:"EVENTS_TOPIC" default:"gradebook.upload.completed"`

	// ConsumerGroup is the Kafka group for the audit consumer (default: gradebook-audit)
	ConsumerGroup string `env:"EVENTS_CONSUMER_GROUP" default:"gradebook-audit"`
}

// TenantConfig names a tenant created on startup.
type TenantConfig struct {
	// DefaultID is the tenant ensured at startup; empty skips it
	DefaultID string `env:"DEFAULT_TENANT_ID"`

	// DefaultName is the display name for DefaultID
	DefaultName string `env:"DEFAULT_TENANT_NAME" default:"Default"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
