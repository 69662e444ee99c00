package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/dernek/pkg/observability"
	"github.com/platinummonkey/dernek/pkg/ratelimit"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Storage       StorageConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
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
}

// AuthConfig holds token and session settings
type AuthConfig struct {
	// JWTSecret signs session tokens minted by the login endpoint
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration

	// OIDCIssuer switches bearer token verification to an external identity provider
	OIDCIssuer   string
	OIDCClientID string

	AccessCookie  string
	RefreshCookie string
	// Production marks session cookies Secure
	Production bool

	VerifyTimeout time.Duration
	UserCacheSize int
	// UserCacheTTL bounds how long a role change can go unseen. Zero disables the cache.
	UserCacheTTL  time.Duration
}

// DatabaseConfig holds the SQL connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite3
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the rate limit store settings. An empty URL keeps counters in memory.
type RedisConfig struct {
	URL        string
	Prefix     string
	PoolSize   int
	FailClosed bool
}

// StorageConfig holds the document object store settings
type StorageConfig struct {
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	MaxUploadBytes int64
}

// RateLimitConfig holds the admission limits
type RateLimitConfig struct {
	Presets    ratelimit.Presets
	TrustProxy bool
	// CleanupSchedule is a cron spec for purging expired in-memory windows
	CleanupSchedule string
	MaxKeys         int
	// PolicyFile is an optional YAML file overriding the presets
	PolicyFile string
}

// CORSConfig holds the browser origin policy
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Enabled bool
	// LogAll records every request instead of only writes, failures and sensitive paths
	LogAll bool
	// Output is "stdout" or a file path
	Output string
	// BufferSize is the number of queued events before new ones are dropped
	BufferSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables, applies the
// policy file when one is configured and validates the result
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Storage:       loadStorageConfig(),
		RateLimit:     loadRateLimitConfig(),
		CORS:          loadCORSConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if cfg.RateLimit.PolicyFile != "" {
		policy, err := LoadPolicyFile(cfg.RateLimit.PolicyFile)
		if err != nil {
			return nil, err
		}
		if err := policy.Apply(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("DERNEK_HOST", "0.0.0.0"),
		Port:            getEnv("DERNEK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("DERNEK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("DERNEK_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("DERNEK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("DERNEK_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("DERNEK_HEALTH_PORT", "9090"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:     getEnv("DERNEK_JWT_SECRET", ""),
		JWTIssuer:     getEnv("DERNEK_JWT_ISSUER", "dernek"),
		JWTAudience:   getEnv("DERNEK_JWT_AUDIENCE", ""),
		AccessTTL:     getEnvDuration("DERNEK_ACCESS_TOKEN_TTL", 24*time.Hour),
		RefreshTTL:    getEnvDuration("DERNEK_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		OIDCIssuer:    getEnv("DERNEK_OIDC_ISSUER", ""),
		OIDCClientID:  getEnv("DERNEK_OIDC_CLIENT_ID", ""),
		AccessCookie:  getEnv("DERNEK_ACCESS_COOKIE", "sb-access-token"),
		RefreshCookie: getEnv("DERNEK_REFRESH_COOKIE", "sb-refresh-token"),
		Production:    getEnv("DERNEK_ENV", "development") == "production",
		VerifyTimeout: getEnvDuration("DERNEK_VERIFY_TIMEOUT", 5*time.Second),
		UserCacheSize: getEnvInt("DERNEK_USER_CACHE_SIZE", 1024),
		UserCacheTTL:  getEnvDuration("DERNEK_USER_CACHE_TTL", 0),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          getEnv("DERNEK_DB_DRIVER", "postgres"),
		DSN:             getEnv("DERNEK_DB_DSN", ""),
		MaxOpenConns:    getEnvInt("DERNEK_DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvInt("DERNEK_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DERNEK_DB_CONN_MAX_LIFETIME", 30*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:        getEnv("DERNEK_REDIS_URL", ""),
		Prefix:     getEnv("DERNEK_REDIS_PREFIX", "dernek:ratelimit"),
		PoolSize:   getEnvInt("DERNEK_REDIS_POOL_SIZE", 10),
		FailClosed: getEnvBool("DERNEK_RATELIMIT_FAIL_CLOSED", false),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		S3Bucket:       getEnv("DERNEK_S3_BUCKET", ""),
		S3Region:       getEnv("DERNEK_S3_REGION", "eu-central-1"),
		S3Endpoint:     getEnv("DERNEK_S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("DERNEK_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("DERNEK_S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("DERNEK_S3_USE_PATH_STYLE", false),
		MaxUploadBytes: getEnvInt64("DERNEK_MAX_UPLOAD_BYTES", 10<<20),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	presets := ratelimit.DefaultPresets()
	presets.Strict.Limit = getEnvInt("DERNEK_RATELIMIT_STRICT_LIMIT", presets.Strict.Limit)
	presets.Strict.Window = getEnvDuration("DERNEK_RATELIMIT_STRICT_WINDOW", presets.Strict.Window)
	presets.Standard.Limit = getEnvInt("DERNEK_RATELIMIT_STANDARD_LIMIT", presets.Standard.Limit)
	presets.Standard.Window = getEnvDuration("DERNEK_RATELIMIT_STANDARD_WINDOW", presets.Standard.Window)
	presets.Lenient.Limit = getEnvInt("DERNEK_RATELIMIT_LENIENT_LIMIT", presets.Lenient.Limit)
	presets.Lenient.Window = getEnvDuration("DERNEK_RATELIMIT_LENIENT_WINDOW", presets.Lenient.Window)

	return RateLimitConfig{
		Presets:         presets,
		TrustProxy:      getEnvBool("DERNEK_TRUST_PROXY", false),
		CleanupSchedule: getEnv("DERNEK_RATELIMIT_CLEANUP", "@every 1m"),
		MaxKeys:         getEnvInt("DERNEK_RATELIMIT_MAX_KEYS", 100000),
		PolicyFile:      getEnv("DERNEK_POLICY_FILE", ""),
	}
}

func loadCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   getEnvList("DERNEK_CORS_ORIGINS", []string{"http://localhost:3000"}),
		AllowCredentials: getEnvBool("DERNEK_CORS_CREDENTIALS", true),
		MaxAge:           getEnvInt("DERNEK_CORS_MAX_AGE", 600),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:    getEnvBool("DERNEK_AUDIT_ENABLED", true),
		LogAll:     getEnvBool("DERNEK_AUDIT_LOG_ALL", false),
		Output:     getEnv("DERNEK_AUDIT_OUTPUT", "stdout"),
		BufferSize: getEnvInt("DERNEK_AUDIT_BUFFER", 1024),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("DERNEK_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("DERNEK_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("DERNEK_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("DERNEK_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("DERNEK_OTEL_SERVICE_NAME", "dernek-api"),
		OTelServiceVersion: getEnv("DERNEK_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("DERNEK_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("DERNEK_OTEL_SAMPLE_RATIO", 1.0),
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

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("DERNEK_JWT_SECRET must be at least 32 bytes")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("OIDC client ID is required when an OIDC issuer is set")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL < c.Auth.AccessTTL {
		return fmt.Errorf("token TTLs must satisfy 0 < access <= refresh")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Storage.S3Bucket != "" && c.Storage.S3Region == "" {
		return fmt.Errorf("S3 region is required when a bucket is set")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	if err := c.RateLimit.Presets.Validate(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.RateLimit.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid rate limit cleanup schedule %q: %w", c.RateLimit.CleanupSchedule, err)
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin cannot be combined with credentials")
			}
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1]")
		}
	}

	return nil
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
