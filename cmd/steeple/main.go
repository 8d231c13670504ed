package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/steeplehq/steeple/pkg/api"
	"github.com/steeplehq/steeple/pkg/audit"
	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/config"
	"github.com/steeplehq/steeple/pkg/identity"
	"github.com/steeplehq/steeple/pkg/middleware"
	"github.com/steeplehq/steeple/pkg/observability"
	"github.com/steeplehq/steeple/pkg/roles"
	"github.com/steeplehq/steeple/pkg/storage"
	"github.com/steeplehq/steeple/pkg/tenants"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	// The permission matrix is static; refuse to boot if it is
	// internally inconsistent.
	if err := roles.Validate(); err != nil {
		logger.WithError(err).Error("Role model validation failed")
		os.Exit(1)
	}

	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	cm, err := storage.NewConnectionManager(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	db := cm.Primary()

	redisClient, err := storage.NewRedisClient(cfg.Storage)
	if err != nil {
		// Redis backs throttling and caching, neither of which is
		// load-bearing; the server degrades without it.
		logger.WithError(err).Warn("Redis unavailable, continuing without throttle and cache")
		redisClient = nil
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				metrics.CollectDBStats(db)
			}
		}()
	}

	auditStore, err := audit.NewDBStore(db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit store")
		os.Exit(1)
	}
	auditStore.WithReadReplicas(cm)
	recorderOpts := []audit.RecorderOption{}
	if metrics != nil {
		recorderOpts = append(recorderOpts,
			audit.WithWriteCounter(metrics.AuditWritesTotal),
			audit.WithFailureCounter(metrics.AuditWriteFailures))
	}
	recorder := audit.NewRecorder(auditStore, logrus.StandardLogger(), recorderOpts...)

	churches := tenants.NewPostgresService(db, recorder).WithReadReplicas(cm)
	if redisClient != nil {
		churches.WithChurchCache(storage.NewChurchCache(redisClient, cfg.Storage.ChurchCacheTTL))
	}

	resolver := auth.NewResolver(churches)

	policy, err := middleware.LoadRoutePolicy(cfg.Routes.PolicyPath)
	if err != nil {
		logger.WithError(err).Error("Failed to load route policy")
		os.Exit(1)
	}
	classifier, err := middleware.NewClassifier(policy)
	if err != nil {
		logger.WithError(err).Error("Failed to build route classifier")
		os.Exit(1)
	}
	enforcer := middleware.NewEnforcer(resolver, classifier, logger).
		WithActivityTracker(churches)
	if metrics != nil {
		enforcer.WithMetrics(metrics)
	}

	var throttle *middleware.SignInThrottle
	if redisClient != nil {
		throttle = middleware.NewSignInThrottle(redisClient, policy.PublicPrefixes, logger)
		throttle.SetFailClosed(cfg.Routes.FailClosedThrottle)
		if metrics != nil {
			throttle.WithThrottleCounter(metrics.SignInThrottledTotal)
		}
	}

	var identityMiddleware func(http.Handler) http.Handler
	var authProvider api.AuthProvider
	if cfg.OIDCEnabled() {
		verifier, err := identity.NewOIDCVerifier(ctx, &cfg.OIDC)
		if err != nil {
			logger.WithError(err).Error("Failed to reach identity provider")
			os.Exit(1)
		}
		identityMiddleware = identity.Middleware(verifier, logger)
		authProvider = verifier
	} else {
		logger.Warn("OIDC not configured, all requests are anonymous")
	}

	health := observability.NewHealthChecker(db, redisClient)

	server := api.NewServer(api.ServerConfig{
		Churches:       churches,
		Audit:          auditStore,
		AuthProvider:   authProvider,
		Identity:       identityMiddleware,
		Enforcer:       enforcer,
		Throttle:       throttle,
		Logger:         logger,
		Metrics:        metrics,
		Health:         health,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LandingPath:    policy.LandingPath,
		SignInPath:     policy.SignInPath,
		SecureCookies:  cfg.Server.SecureCookies,
	})

	rateLimit := middleware.NewRateLimitMiddleware()

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      rateLimit.Handler(server.Handler()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics live on a separate port for probes and
	// scrapers.
	adminMux := http.NewServeMux()
	observability.RegisterHealthRoutes(adminMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(adminMux, registry)
	}
	adminServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: adminMux,
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", adminServer.Addr).Info("Starting admin server")
		if err := adminServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return observability.GracefulShutdown(logger, httpServer,
			func(ctx context.Context) error { return adminServer.Shutdown(ctx) },
			func(ctx context.Context) error { return observability.ShutdownOTel(ctx, providers, logger) },
			func(ctx context.Context) error {
				if redisClient != nil {
					return redisClient.Close()
				}
				return nil
			},
			func(ctx context.Context) error { return cm.Close() },
		)
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}
