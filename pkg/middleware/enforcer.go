package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/steeplehq/steeple/pkg/async"
	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/authz"
	"github.com/steeplehq/steeple/pkg/contextkeys"
	"github.com/steeplehq/steeple/pkg/observability"
)

// ActivityTracker records that a member was just seen. Implementations
// must tolerate being called off the request path.
type ActivityTracker interface {
	TouchLastActive(ctx context.Context, userID string) error
}

// Enforcer intercepts every inbound request, resolves the session and
// applies the route policy. It runs after the identity middleware that
// places the verified principal on the context.
type Enforcer struct {
	resolver   *auth.Resolver
	classifier *Classifier
	logger     *observability.Logger
	activity   ActivityTracker
	metrics    *observability.Metrics
}

// NewEnforcer creates the boundary enforcer.
func NewEnforcer(resolver *auth.Resolver, classifier *Classifier, logger *observability.Logger) *Enforcer {
	return &Enforcer{
		resolver:   resolver,
		classifier: classifier,
		logger:     logger,
	}
}

// WithActivityTracker enables best-effort last-active stamping for
// signed-in requests that pass the boundary.
func (e *Enforcer) WithActivityTracker(tracker ActivityTracker) *Enforcer {
	e.activity = tracker
	return e
}

// WithMetrics enables denial counting at the boundary.
func (e *Enforcer) WithMetrics(metrics *observability.Metrics) *Enforcer {
	e.metrics = metrics
	return e
}

func (e *Enforcer) countDenial(reason string) {
	if e.metrics == nil {
		return
	}
	e.metrics.AuthzDenialsTotal.WithLabelValues(reason).Inc()
}

func (e *Enforcer) countRedirect(target string) {
	if e.metrics == nil {
		return
	}
	e.metrics.BoundaryRedirects.WithLabelValues(target).Inc()
}

func (e *Enforcer) countResolution(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.SessionResolutions.WithLabelValues(outcome).Inc()
}

// touch stamps the session's last-active time off the request path.
func (e *Enforcer) touch(r *http.Request, session *auth.Session) {
	if e.activity == nil {
		return
	}
	userID := session.UserID
	async.SafeGo(r.Context(), 5*time.Second, e.logger, "touch last active", func(ctx context.Context) error {
		return e.activity.TouchLastActive(ctx, userID)
	})
}

// resolve attempts session resolution for the request. A missing
// principal or unlinked profile yields (nil, nil): the request is
// simply anonymous. Any other error is an infrastructure failure and
// is returned as such, so callers can fail closed.
func (e *Enforcer) resolve(r *http.Request) (*auth.Session, error) {
	principal := auth.PrincipalFromContext(r.Context())
	session, err := e.resolver.Resolve(r.Context(), principal)
	if err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, auth.ErrProfileNotFound) {
			e.countResolution("anonymous")
			return nil, nil
		}
		e.countResolution("error")
		return nil, err
	}
	e.countResolution("session")
	return session, nil
}

// Handler applies the route policy:
//
//   - public routes redirect already signed-in users to the landing page
//   - protected routes require a session
//   - church-scoped routes additionally require church access, and role
//     access where the policy restricts by role
//   - unclassified routes pass through unchanged
//
// Resolution failures fail closed on every classified route: a
// backend outage must never grant access. Only unclassified routes
// proceed on error, and then without a session.
func (e *Enforcer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fresh per-request cache so the resolver performs at most one
		// profile lookup no matter how many checks follow.
		r = r.WithContext(auth.WithSessionCache(r.Context()))

		policy := e.classifier.Policy()
		cls := e.classifier.Classify(r.URL.Path)

		switch cls.Class {
		case ClassPublic:
			session, err := e.resolve(r)
			if err != nil {
				e.logResolveError(r, err)
				next.ServeHTTP(w, r)
				return
			}
			if session != nil {
				e.countRedirect("landing")
				http.Redirect(w, r, policy.LandingPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)

		case ClassProtected:
			session, err := e.resolve(r)
			if err != nil {
				e.logResolveError(r, err)
				e.countRedirect("sign_in")
				http.Redirect(w, r, policy.SignInPath, http.StatusFound)
				return
			}
			if session == nil {
				e.countDenial("unauthenticated")
				e.countRedirect("sign_in")
				http.Redirect(w, r, policy.SignInPath, http.StatusFound)
				return
			}
			e.touch(r, session)
			ctx := contextkeys.WithSession(r.Context(), session)
			ctx = observability.WithUserID(ctx, session.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))

		case ClassChurchScoped:
			session, err := e.resolve(r)
			if err != nil {
				e.logResolveError(r, err)
				e.countRedirect("sign_in")
				http.Redirect(w, r, policy.SignInPath, http.StatusFound)
				return
			}
			if session == nil {
				e.countDenial("unauthenticated")
				e.countRedirect("sign_in")
				http.Redirect(w, r, policy.SignInPath, http.StatusFound)
				return
			}
			if !authz.CanAccessChurch(session, cls.ChurchID) {
				e.countDenial("church_access")
				e.countRedirect("unauthorized")
				http.Redirect(w, r, policy.UnauthorizedPath, http.StatusFound)
				return
			}
			if cls.RoleScoped() && !roleAllowed(session, cls) {
				e.countDenial("role")
				e.countRedirect("unauthorized")
				http.Redirect(w, r, policy.UnauthorizedPath, http.StatusFound)
				return
			}
			e.touch(r, session)
			ctx := contextkeys.WithSession(r.Context(), session)
			ctx = contextkeys.WithChurchID(ctx, cls.ChurchID)
			ctx = observability.WithUserID(ctx, session.UserID)
			ctx = observability.WithChurchID(ctx, cls.ChurchID)
			next.ServeHTTP(w, r.WithContext(ctx))

		default:
			// Unclassified: pass through. Resolve best-effort so
			// downstream handlers can still see a session, but an
			// error here never blocks the request.
			session, err := e.resolve(r)
			if err != nil {
				e.logResolveError(r, err)
			} else if session != nil {
				r = r.WithContext(contextkeys.WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		}
	})
}

func roleAllowed(session *auth.Session, cls Classification) bool {
	for _, allowed := range cls.Allowed {
		if session.Role == allowed {
			return true
		}
	}
	return false
}

func (e *Enforcer) logResolveError(r *http.Request, err error) {
	if e.logger == nil {
		return
	}
	e.logger.WithError(err).
		WithField("path", r.URL.Path).
		Error("session resolution failed at boundary")
}
