package auth

import (
	"time"

	"github.com/steeplehq/steeple/pkg/roles"
)

// Principal is the opaque authenticated identity supplied by the
// external identity provider. The service never manages credentials;
// it only consumes verified principals.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProfileStatus is the lifecycle state of a profile within a church.
type ProfileStatus string

const (
	StatusActive   ProfileStatus = "active"
	StatusPending  ProfileStatus = "pending"
	StatusInactive ProfileStatus = "inactive"
)

// Profile is the durable link between an authenticated identity and a
// church. Created at sign-up, mutated by role/status management, never
// hard-deleted except via explicit member removal.
type Profile struct {
	UserID       string            `json:"user_id"`
	ChurchID     *string           `json:"church_id,omitempty"` // nil before onboarding
	Role         roles.StorageRole `json:"role"`
	Status       ProfileStatus     `json:"status"`
	DisplayName  string            `json:"display_name,omitempty"`
	AvatarURL    string            `json:"avatar_url,omitempty"`
	Email        string            `json:"email,omitempty"`
	LastActiveAt *time.Time        `json:"last_active_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Session is the resolved, request-scoped bundle of identity, church
// and role used for all authorization checks. It is derived, never
// persisted, and never outlives the request that built it.
type Session struct {
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	ChurchID    *string    `json:"church_id,omitempty"` // nil pre-onboarding; super admins are church-agnostic
	Role        roles.Role `json:"role"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
}

// InChurch reports whether the session is attached to the given church.
// This is membership only; the super-admin bypass lives in authz.
func (s *Session) InChurch(churchID string) bool {
	return s.ChurchID != nil && *s.ChurchID == churchID
}
