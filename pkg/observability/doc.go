// Package observability holds the server's operational surface:
// structured JSON logging, Prometheus metrics, health probes, OTLP
// tracing, and graceful shutdown.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("church_id", churchID).Info("church created")
//
// Handlers log through the request-scoped logger, which carries the
// request ID, acting user, and target church stamped by the
// middleware chain:
//
//	observability.FromContext(ctx).Warn("cache miss")
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.AuthzDenialsTotal.WithLabelValues("church_access").Inc()
//
// RegisterMetricsEndpoint mounts /metrics on the admin mux.
//
// # Health
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//
// RegisterHealthRoutes mounts /healthz (liveness) and /readyz
// (readiness). Postgres down means unhealthy; Redis down only
// degrades, since the server keeps serving without it.
//
// # Tracing
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Shutdown
//
// GracefulShutdown waits for SIGINT/SIGTERM, drains the HTTP server,
// then releases resources in the order given.
package observability
