package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with the panic value,
// the full stack trace, and a short description of where it happened.
//
// Call it in a defer statement:
//
//	defer observability.RecoverPanic(logger, "audit sweep")
//
// The panic is not re-raised; the deferred function returns normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
