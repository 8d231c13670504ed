package auth

import "errors"

var (
	// ErrNotAuthenticated means no valid principal accompanied the
	// request. Surfaces as a redirect to sign-in, never a raw 500.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrProfileNotFound means the principal is authenticated but has
	// no linked profile row. Treated as unauthenticated for routing.
	ErrProfileNotFound = errors.New("profile not found")
)
