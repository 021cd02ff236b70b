package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atriumhq/atrium/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Templates     TemplatesConfig
	Audit         AuditConfig
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

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// RedisConfig holds Redis configuration for rate limiting
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int

	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int
}

// TemplatesConfig holds template registry configuration
type TemplatesConfig struct {
	Dir       string
	CacheSize int
	Watch     bool
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Enabled       bool
	RetentionDays int
	// Cron schedule for the retention sweep, robfig/cron format
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Templates:     loadTemplatesConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:               getEnv("ATRIUM_HOST", "0.0.0.0"),
		Port:               getEnv("ATRIUM_PORT", "8080"),
		ReadTimeout:        getEnvDuration("ATRIUM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("ATRIUM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getEnvDuration("ATRIUM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("ATRIUM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:         getEnv("ATRIUM_HEALTH_PORT", "9090"),
		CORSAllowedOrigins: getEnvList("ATRIUM_CORS_ORIGINS", nil),
		MaxBodyBytes:       getEnvInt64("ATRIUM_MAX_BODY_BYTES", 1<<20),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("ATRIUM_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("ATRIUM_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("ATRIUM_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("ATRIUM_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		QueryTimeout:    getEnvDuration("ATRIUM_POSTGRES_TIMEOUT", 30*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:              getEnv("ATRIUM_REDIS_URL", ""),
		Password:         getEnv("ATRIUM_REDIS_PASSWORD", ""),
		DB:               getEnvInt("ATRIUM_REDIS_DB", 0),
		PoolSize:         getEnvInt("ATRIUM_REDIS_POOL_SIZE", 10),
		RateLimitEnabled: getEnvBool("ATRIUM_RATE_LIMIT_ENABLED", false),
		RateLimitRPS:     getEnvInt("ATRIUM_RATE_LIMIT_RPS", 100),
		RateLimitBurst:   getEnvInt("ATRIUM_RATE_LIMIT_BURST", 200),
	}
}

func loadTemplatesConfig() TemplatesConfig {
	return TemplatesConfig{
		Dir:       getEnv("ATRIUM_TEMPLATES_DIR", "templates"),
		CacheSize: getEnvInt("ATRIUM_TEMPLATES_CACHE_SIZE", 128),
		Watch:     getEnvBool("ATRIUM_TEMPLATES_WATCH", true),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:           getEnvBool("ATRIUM_AUDIT_ENABLED", true),
		RetentionDays:     getEnvInt("ATRIUM_AUDIT_RETENTION_DAYS", 90),
		RetentionSchedule: getEnv("ATRIUM_AUDIT_RETENTION_SCHEDULE", "0 3 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("ATRIUM_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ATRIUM_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("idle connections cannot exceed max open connections")
	}

	if c.Redis.RateLimitEnabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required when rate limiting is enabled")
		}
		if c.Redis.RateLimitRPS <= 0 {
			return fmt.Errorf("rate limit RPS must be positive")
		}
		if c.Redis.RateLimitBurst < c.Redis.RateLimitRPS {
			return fmt.Errorf("rate limit burst must be at least RPS")
		}
	}

	if c.Templates.Dir == "" {
		return fmt.Errorf("templates directory is required")
	}
	if c.Templates.CacheSize <= 0 {
		return fmt.Errorf("templates cache size must be positive")
	}

	if c.Audit.Enabled && c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

// getEnvList returns a comma-separated environment variable as a slice
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
