// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: identity middleware after token verification
	// Type: *auth.Principal
	PrincipalKey Key = "principal"

	// SessionCacheKey contains *auth.SessionCache
	// Set by: middleware.Enforcer at the start of each request
	// Required by: auth.Resolver so repeated Resolve calls within one
	// request hit the cache instead of the store
	// Type: *auth.SessionCache
	SessionCacheKey Key = "session_cache"

	// SessionKey contains *auth.Session
	// Set by: middleware.Enforcer after successful resolution
	// Type: *auth.Session
	SessionKey Key = "session"

	// ChurchKey contains the church ID extracted from the route
	// Set by: middleware.Enforcer for church-scoped routes
	// Type: string
	ChurchKey Key = "church_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithSessionCache adds the request-scoped session cache to the context
func WithSessionCache(ctx context.Context, cache interface{}) context.Context {
	return context.WithValue(ctx, SessionCacheKey, cache)
}

// WithSession adds the resolved session to the context
func WithSession(ctx context.Context, session interface{}) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// WithChurchID adds the route's church ID to the context
func WithChurchID(ctx context.Context, churchID string) context.Context {
	return context.WithValue(ctx, ChurchKey, churchID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetChurchID retrieves the route's church ID from context
func GetChurchID(ctx context.Context) string {
	if churchID, ok := ctx.Value(ChurchKey).(string); ok {
		return churchID
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
