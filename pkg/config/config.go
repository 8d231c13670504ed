package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/steeplehq/steeple/pkg/identity"
	"github.com/steeplehq/steeple/pkg/observability"
	"github.com/steeplehq/steeple/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	OIDC          identity.Config
	Routes        RoutesConfig
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

	// CORS origins allowed to call the API
	AllowedOrigins []string

	// SecureCookies marks session cookies Secure; on in production
	SecureCookies bool
}

// RoutesConfig holds boundary enforcement settings
type RoutesConfig struct {
	// PolicyPath points at a YAML route policy overlay; empty means
	// the shipped defaults
	PolicyPath string

	// FailClosedThrottle makes the sign-in throttle reject when Redis
	// is unreachable instead of letting requests through
	FailClosedThrottle bool
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	// RetentionDays bounds how long audit entries are kept
	RetentionDays int

	// PurgeSchedule is the cron spec for the retention sweep
	PurgeSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		OIDC:          loadOIDCConfig(),
		Routes:        loadRoutesConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Host:            getEnv("STEEPLE_HOST", "0.0.0.0"),
		Port:            getEnv("STEEPLE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("STEEPLE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STEEPLE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STEEPLE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STEEPLE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("STEEPLE_HEALTH_PORT", "9090"),
		SecureCookies:   getEnvBool("STEEPLE_SECURE_COOKIES", true),
	}

	if origins := getEnv("STEEPLE_ALLOWED_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return cfg
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("STEEPLE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("STEEPLE_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		for _, url := range strings.Split(replicaURLs, ",") {
			if url = strings.TrimSpace(url); url != "" {
				cfg.ReplicaURLs = append(cfg.ReplicaURLs, url)
			}
		}
	}
	if maxConns := getEnvInt("STEEPLE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("STEEPLE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("STEEPLE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.ConnTimeout = timeout
	}

	if redisURL := getEnv("STEEPLE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("STEEPLE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("STEEPLE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("STEEPLE_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("STEEPLE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	if ttl := getEnvDuration("STEEPLE_CHURCH_CACHE_TTL", 0); ttl > 0 {
		cfg.ChurchCacheTTL = ttl
	}

	return cfg
}

func loadOIDCConfig() identity.Config {
	cfg := identity.Config{
		IssuerURL:    getEnv("STEEPLE_OIDC_ISSUER", ""),
		ClientID:     getEnv("STEEPLE_OIDC_CLIENT_ID", ""),
		ClientSecret: getEnv("STEEPLE_OIDC_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("STEEPLE_OIDC_REDIRECT_URL", ""),
	}

	if scopes := getEnv("STEEPLE_OIDC_SCOPES", ""); scopes != "" {
		cfg.Scopes = strings.Fields(scopes)
	}

	return cfg
}

func loadRoutesConfig() RoutesConfig {
	return RoutesConfig{
		PolicyPath:         getEnv("STEEPLE_ROUTE_POLICY", ""),
		FailClosedThrottle: getEnvBool("STEEPLE_THROTTLE_FAIL_CLOSED", false),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		RetentionDays: getEnvInt("STEEPLE_AUDIT_RETENTION_DAYS", 30),
		PurgeSchedule: getEnv("STEEPLE_AUDIT_PURGE_SCHEDULE", "0 3 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("STEEPLE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("STEEPLE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STEEPLE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STEEPLE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STEEPLE_OTEL_SERVICE_NAME", "steeple"),
		OTelServiceVersion: getEnv("STEEPLE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("STEEPLE_OTEL_INSECURE", true),
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

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	// OIDC may be unset in development; when any field is set, the
	// full client configuration is required.
	if c.OIDC.IssuerURL != "" || c.OIDC.ClientID != "" {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is configured")
		}
		if c.OIDC.ClientID == "" || c.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client credentials are required when OIDC is configured")
		}
		if c.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is configured")
		}
	}

	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// OIDCEnabled reports whether an identity provider is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDC.IssuerURL != ""
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

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
