package identity

import (
	"net/http"
	"strings"

	"github.com/steeplehq/steeple/pkg/contextkeys"
	"github.com/steeplehq/steeple/pkg/observability"
)

// TokenCookie is the cookie carrying the ID token for browser clients.
const TokenCookie = "steeple_token"

// extractToken pulls the raw ID token from the Authorization header or
// the session cookie. Header wins when both are present.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return token
		}
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware verifies the request's ID token and attaches the
// principal to the context. Requests without a token, or with one that
// fails verification, proceed anonymously; the boundary enforcer
// decides whether anonymous access is acceptable for the route.
func Middleware(verifier Verifier, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if logger != nil {
					logger.WithError(err).Debug("token verification failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(contextkeys.WithPrincipal(r.Context(), principal)))
		})
	}
}
