package auth

import (
	"context"
	"sync"

	"github.com/steeplehq/steeple/pkg/contextkeys"
	"github.com/steeplehq/steeple/pkg/roles"
)

// ProfileStore is the read side of the profiles table that the
// resolver needs. Implemented by tenants.PostgresService.
type ProfileStore interface {
	// GetProfile returns the profile linked to a user ID, or
	// ErrProfileNotFound when no row exists.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

// SessionCache memoizes resolved sessions for the lifetime of one
// request. It is created per request by the boundary middleware and
// carried on the request context, never stored process-wide: role and
// church assignments can change between requests.
type SessionCache struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionCache creates an empty request-scoped cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{sessions: make(map[string]*Session)}
}

func (c *SessionCache) get(userID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	return s, ok
}

func (c *SessionCache) put(userID string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[userID] = s
}

// WithSessionCache attaches a fresh cache to the request context.
func WithSessionCache(ctx context.Context) context.Context {
	return contextkeys.WithSessionCache(ctx, NewSessionCache())
}

func cacheFromContext(ctx context.Context) *SessionCache {
	if cache, ok := ctx.Value(contextkeys.SessionCacheKey).(*SessionCache); ok {
		return cache
	}
	return nil
}

// Resolver builds sessions from authenticated principals.
type Resolver struct {
	profiles ProfileStore
}

// NewResolver creates a session resolver backed by the given profile store.
func NewResolver(profiles ProfileStore) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve derives the session for an authenticated principal: exactly
// one profile lookup, memoized in the request-scoped cache so that the
// many authorization checks during one request do not each re-query
// the store. Returns ErrNotAuthenticated when principal is nil and
// ErrProfileNotFound when no profile row is linked.
func (r *Resolver) Resolve(ctx context.Context, principal *Principal) (*Session, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrNotAuthenticated
	}

	cache := cacheFromContext(ctx)
	if cache != nil {
		if s, ok := cache.get(principal.ID); ok {
			return s, nil
		}
	}

	profile, err := r.profiles.GetProfile(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:      principal.ID,
		Email:       principal.Email,
		ChurchID:    profile.ChurchID,
		Role:        roles.FromStorage(string(profile.Role)),
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	}

	if cache != nil {
		cache.put(principal.ID, session)
	}
	return session, nil
}

// SessionFromContext returns the session placed on the context by the
// boundary middleware, or nil when the request is anonymous.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(contextkeys.SessionKey).(*Session); ok {
		return s
	}
	return nil
}

// PrincipalFromContext returns the verified principal, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}
