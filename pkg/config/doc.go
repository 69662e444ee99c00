// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from DERNEK_* environment
// variables with defaults for everything except secrets and the database DSN.
// An optional YAML policy file overrides the rate limit presets.
//
// # Configuration Structure
//
// Server settings:
//
//	DERNEK_HOST="0.0.0.0"
//	DERNEK_PORT="8080"
//	DERNEK_HEALTH_PORT="9090"
//	DERNEK_SHUTDOWN_TIMEOUT="30s"
//
// Auth settings:
//
//	DERNEK_JWT_SECRET="...32 bytes or more..."
//	DERNEK_ACCESS_TOKEN_TTL="24h"
//	DERNEK_OIDC_ISSUER="https://id.example.org"  # verify bearer tokens with an IdP instead
//	DERNEK_ENV="production"                       # Secure session cookies
//
// Database and rate limit store:
//
//	DERNEK_DB_DRIVER="postgres"  # postgres, sqlite3
//	DERNEK_DB_DSN="postgres://dernek@localhost/dernek?sslmode=disable"
//	DERNEK_REDIS_URL="redis://localhost:6379/0"  # empty keeps counters in memory
//	DERNEK_RATELIMIT_FAIL_CLOSED="false"
//
// Rate limits:
//
//	DERNEK_RATELIMIT_STRICT_LIMIT="5"
//	DERNEK_RATELIMIT_STRICT_WINDOW="1m"
//	DERNEK_TRUST_PROXY="true"
//	DERNEK_POLICY_FILE="/etc/dernek/policy.yaml"
//
// Documents:
//
//	DERNEK_S3_BUCKET="dernek-documents"
//	DERNEK_S3_ENDPOINT="http://minio:9000"
//	DERNEK_S3_USE_PATH_STYLE="true"
//
// Observability settings:
//
//	DERNEK_LOG_LEVEL="info"  # debug, info, warn, error
//	DERNEK_METRICS_ENABLED="true"
//	DERNEK_OTEL_ENABLED="true"
//	DERNEK_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/ratelimit: preset definitions
//   - pkg/observability: log levels and OTel settings
package config
