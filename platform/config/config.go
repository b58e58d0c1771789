// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Fanout relays.
const (
	FanoutRelayNone  = "none"
	FanoutRelayRedis = "redis"
	FanoutRelayNATS  = "nats"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDBQueryTimeout() time.Duration
}

// JWTConfig provides JWT validation settings for middleware and realtime auth.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the redis connection used by the relay and the task queue.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// FanoutConfig provides settings for realtime lead event delivery.
type FanoutConfig interface {
	GetFanoutRelay() string
	GetNATSURL() string
	GetFanoutBuffer() int
	GetFanoutPublishTimeout() time.Duration
}

// MinIOConfig provides settings for the lead attachment bucket.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketLeadFiles() string
	IsMinIOEnabled() bool
}

// SMTPConfig provides settings for outbound email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFrom() string
	GetSMTPFromName() string
	IsSMTPEnabled() bool
}

// CacheConfig provides settings for the directory cache.
type CacheConfig interface {
	GetDirectoryCacheBytes() int64
	GetDirectoryCacheTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	StorageDriver        string
	DBQueryTimeout       time.Duration
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	FanoutRelay          string
	NATSURL              string
	FanoutBuffer         int
	FanoutPublishTimeout time.Duration
	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOUseSSL          bool
	MinioBucketLeadFiles string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPFrom             string
	SMTPFromName         string
	DirectoryCacheBytes  int64
	DirectoryCacheTTL    time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string           { return c.DatabaseURL }
func (c *Config) GetDBQueryTimeout() time.Duration { return c.DBQueryTimeout }
func (c *Config) UsesMemoryStorage() bool          { return c.StorageDriver == StorageDriverMemory }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// FanoutConfig implementation
func (c *Config) GetFanoutRelay() string                 { return c.FanoutRelay }
func (c *Config) GetNATSURL() string                     { return c.NATSURL }
func (c *Config) GetFanoutBuffer() int                   { return c.FanoutBuffer }
func (c *Config) GetFanoutPublishTimeout() time.Duration { return c.FanoutPublishTimeout }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketLeadFiles() string { return c.MinioBucketLeadFiles }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string     { return c.SMTPHost }
func (c *Config) GetSMTPPort() int        { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }
func (c *Config) GetSMTPFrom() string     { return c.SMTPFrom }
func (c *Config) GetSMTPFromName() string { return c.SMTPFromName }
func (c *Config) IsSMTPEnabled() bool     { return c.SMTPHost != "" && c.SMTPFrom != "" }

// CacheConfig implementation
func (c *Config) GetDirectoryCacheBytes() int64       { return c.DirectoryCacheBytes }
func (c *Config) GetDirectoryCacheTTL() time.Duration { return c.DirectoryCacheTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		DBQueryTimeout:       mustDuration(getEnv("DB_QUERY_TIMEOUT", "5s")),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "notifications"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		FanoutRelay:          strings.ToLower(getEnv("FANOUT_RELAY", FanoutRelayNone)),
		NATSURL:              getEnv("NATS_URL", ""),
		FanoutBuffer:         mustInt(getEnv("FANOUT_BUFFER", "32")),
		FanoutPublishTimeout: mustDuration(getEnv("FANOUT_PUBLISH_TIMEOUT", "2s")),
		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:       getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:       getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:          strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketLeadFiles: getEnv("MINIO_BUCKET_LEAD_FILES", "lead-files"),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		SMTPFromName:         getEnv("SMTP_FROM_NAME", "Leads"),
		DirectoryCacheBytes:  mustInt64(getEnv("DIRECTORY_CACHE_BYTES", "16777216")),
		DirectoryCacheTTL:    mustDuration(getEnv("DIRECTORY_CACHE_TTL", "1m")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER is postgres")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch c.FanoutRelay {
	case FanoutRelayNone:
	case FanoutRelayRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when FANOUT_RELAY is redis")
		}
	case FanoutRelayNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when FANOUT_RELAY is nats")
		}
	default:
		return fmt.Errorf("unknown FANOUT_RELAY %q", c.FanoutRelay)
	}
	if c.FanoutBuffer < 1 {
		return fmt.Errorf("FANOUT_BUFFER must be positive")
	}
	if c.FanoutPublishTimeout <= 0 {
		return fmt.Errorf("FANOUT_PUBLISH_TIMEOUT must be a positive duration")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
