// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	STEEPLE_HOST="0.0.0.0"
//	STEEPLE_PORT="8080"
//	STEEPLE_HEALTH_PORT="9090"
//	STEEPLE_READ_TIMEOUT="15s"
//	STEEPLE_WRITE_TIMEOUT="15s"
//	STEEPLE_ALLOWED_ORIGINS="https://app.steeple.church"
//	STEEPLE_SECURE_COOKIES="true"
//
// Storage settings:
//
//	STEEPLE_POSTGRES_URL="postgres://localhost/steeple"
//	STEEPLE_POSTGRES_REPLICA_URLS="postgres://replica-a/steeple,postgres://replica-b/steeple"
//	STEEPLE_POSTGRES_MAX_CONNS="25"
//	STEEPLE_REDIS_URL="redis://localhost:6379"
//	STEEPLE_CHURCH_CACHE_TTL="5m"
//
// Identity provider settings:
//
//	STEEPLE_OIDC_ISSUER="https://idp.example.com"
//	STEEPLE_OIDC_CLIENT_ID="steeple"
//	STEEPLE_OIDC_CLIENT_SECRET="..."
//	STEEPLE_OIDC_REDIRECT_URL="https://app.steeple.church/auth/callback"
//
// Boundary and audit settings:
//
//	STEEPLE_ROUTE_POLICY="/etc/steeple/routes.yaml"
//	STEEPLE_THROTTLE_FAIL_CLOSED="false"
//	STEEPLE_AUDIT_RETENTION_DAYS="30"
//	STEEPLE_AUDIT_PURGE_SCHEDULE="0 3 * * *"
//
// Observability settings:
//
//	STEEPLE_LOG_LEVEL="info"  # debug, info, warn, error
//	STEEPLE_METRICS_ENABLED="true"
//	STEEPLE_OTEL_ENABLED="true"
//	STEEPLE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
package config
