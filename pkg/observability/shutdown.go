package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown.
type ShutdownFunc func(context.Context) error

// DefaultShutdownTimeout bounds the whole shutdown sequence.
const DefaultShutdownTimeout = 30 * time.Second

// GracefulShutdown blocks until SIGINT or SIGTERM, then drains the
// HTTP server and runs the shutdown funcs in the order given. Pass
// resources in dependency order: stop the things that produce work
// before the stores they write to. Failures are collected rather than
// aborting the sequence, so one stubborn resource never leaks the
// rest.
func GracefulShutdown(logger *Logger, server *http.Server, shutdownFuncs ...ShutdownFunc) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	return Shutdown(ctx, logger, server, shutdownFuncs...)
}

// Shutdown drains the server and releases resources in order. Split
// out of GracefulShutdown so callers that manage their own signal
// handling can reuse the sequence.
func Shutdown(ctx context.Context, logger *Logger, server *http.Server, shutdownFuncs ...ShutdownFunc) error {
	var errs []error

	if server != nil {
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("server drain failed")
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	for i, fn := range shutdownFuncs {
		if err := ctx.Err(); err != nil {
			logger.Warn("shutdown timeout reached, abandoning remaining resources")
			errs = append(errs, fmt.Errorf("shutdown aborted at step %d: %w", i, err))
			break
		}
		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("step", i).Error("shutdown step failed")
			errs = append(errs, fmt.Errorf("shutdown step %d: %w", i, err))
		}
	}

	if len(errs) == 0 {
		logger.Info("shutdown complete")
	}
	return errors.Join(errs...)
}
