// steeple-retention enforces the audit trail retention policy. It
// runs as a sidecar cron process, deleting audit entries older than
// the configured window, or once with -once for ad-hoc sweeps.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/steeplehq/steeple/pkg/audit"
	"github.com/steeplehq/steeple/pkg/config"
	"github.com/steeplehq/steeple/pkg/observability"
	"github.com/steeplehq/steeple/pkg/storage"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	cm, err := storage.NewConnectionManager(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	defer cm.Close()

	store, err := audit.NewDBStore(cm.Primary())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit store")
		os.Exit(1)
	}

	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	sweep := func() {
		defer observability.RecoverPanic(logger, "audit sweep")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		cutoff := time.Now().UTC().Add(-retention)
		deleted, err := store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.WithError(err).Error("Audit sweep failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Audit sweep complete")
	}

	if *once {
		sweep()
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Audit.PurgeSchedule, sweep); err != nil {
		logger.WithError(err).Errorf("Invalid purge schedule %q", cfg.Audit.PurgeSchedule)
		os.Exit(1)
	}

	logger.WithField("schedule", cfg.Audit.PurgeSchedule).Info("Starting retention scheduler")
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping retention scheduler")
	<-scheduler.Stop().Done()
}
