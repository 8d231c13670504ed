// Package async provides safe fire-and-forget execution for background
// work hanging off the request path, with panic recovery and timeout
// enforcement.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/steeplehq/steeple/pkg/observability"
)

// SafeGo runs fn in a goroutine with its own timeout. The derived
// context keeps the parent's values (request ID and the like) but not
// its cancellation, so the task survives the end of the request that
// spawned it. Panics and errors are logged, never propagated.
//
// Use this instead of a bare `go func()` for best-effort side work
// such as activity tracking.
func SafeGo(parent context.Context, timeout time.Duration, logger *observability.Logger, task string, fn func(context.Context) error) {
	if logger == nil {
		logger = observability.FromContext(parent)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", task).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", task).WithError(err).Warn("Background task failed")
		}
	}()
}
