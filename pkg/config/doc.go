// Package config loads application configuration from ATRIUM_* environment
// variables with sensible defaults.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Key variables:
//
//	ATRIUM_PORT                      HTTP port (default 8080)
//	ATRIUM_HEALTH_PORT               health/metrics port (default 9090)
//	ATRIUM_POSTGRES_URL              PostgreSQL connection string (required)
//	ATRIUM_REDIS_URL                 Redis address, required when rate limiting is on
//	ATRIUM_RATE_LIMIT_ENABLED        enable distributed rate limiting
//	ATRIUM_TEMPLATES_DIR             directory of business template blueprints
//	ATRIUM_AUDIT_RETENTION_DAYS      audit event retention window (default 90)
//	ATRIUM_LOG_LEVEL                 debug|info|warn|error
package config
