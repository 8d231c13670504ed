// Package authz implements the authorization checks consulted before
// every read or mutation. All checks are pure functions of a resolved
// session: decisions are computed per call and never cached across
// requests.
package authz

import (
	"fmt"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/roles"
)

// AuthorizationError reports a denied check. The boundary middleware
// turns it into a redirect; handlers turn it into a 403. It must never
// accompany a partially applied mutation.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

// Denied constructs an AuthorizationError with a formatted reason.
func Denied(format string, args ...interface{}) error {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// IsDenied reports whether err is an authorization denial.
func IsDenied(err error) bool {
	_, ok := err.(*AuthorizationError)
	return ok
}

// CanAccessChurch reports whether the session may act within the given
// church. Super admins are church-agnostic and pass for every church,
// including ones created after their session was resolved.
func CanAccessChurch(session *auth.Session, churchID string) bool {
	if session == nil {
		return false
	}
	if session.Role == roles.RoleSuperAdmin {
		return true
	}
	return session.InChurch(churchID)
}

// HasCapability reports whether the session's role grants the
// capability. It consults the permission table, never the rank:
// capabilities happen to be monotonic with rank in the shipped
// configuration, but nothing may rely on that.
func HasCapability(session *auth.Session, cap roles.Capability) bool {
	if session == nil {
		return false
	}
	return roles.Permissions(session.Role).Has(cap)
}

// CanManage reports whether the actor outranks the target role. The
// inequality is strict: a role never manages a peer of equal rank,
// itself included, which rules out self-privilege-escalation and
// lateral role changes between same-rank actors.
func CanManage(actor *auth.Session, target roles.Role) bool {
	if actor == nil {
		return false
	}
	return roles.Rank(actor.Role) > roles.Rank(target)
}

// RequireChurchAccess returns an AuthorizationError unless the session
// may act within the church.
func RequireChurchAccess(session *auth.Session, churchID string) error {
	if !CanAccessChurch(session, churchID) {
		return Denied("no access to church %s", churchID)
	}
	return nil
}

// RequireCapability returns an AuthorizationError unless the session's
// role grants the capability.
func RequireCapability(session *auth.Session, cap roles.Capability) error {
	if !HasCapability(session, cap) {
		return Denied("missing capability %s", cap)
	}
	return nil
}

// RequireCanManage returns an AuthorizationError unless the actor
// strictly outranks the target role.
func RequireCanManage(actor *auth.Session, target roles.Role) error {
	if !CanManage(actor, target) {
		return Denied("cannot manage role %s", target)
	}
	return nil
}
