package tenants

import (
	"errors"
	"time"

	"github.com/steeplehq/steeple/pkg/auth"
	"github.com/steeplehq/steeple/pkg/roles"
)

// Church is one tenant. All member data hangs off its ID.
type Church struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DomainName  string    `json:"domain_name"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address,omitempty"`
	City        string    `json:"city,omitempty"`
	Country     string    `json:"country,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	WebsiteURL  string    `json:"website_url,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Member is the membership view of a profile within one church. Role
// is already mapped to application form.
type Member struct {
	UserID       string             `json:"user_id"`
	ChurchID     string             `json:"church_id"`
	Role         roles.Role         `json:"role"`
	Status       auth.ProfileStatus `json:"status"`
	DisplayName  string             `json:"display_name,omitempty"`
	Email        string             `json:"email,omitempty"`
	AvatarURL    string             `json:"avatar_url,omitempty"`
	LastActiveAt *time.Time         `json:"last_active_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// CreateChurchRequest carries the fields for creating a church.
type CreateChurchRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=200"`
	DomainName  string `json:"domain_name" validate:"required,hostname"`
	Description string `json:"description,omitempty" validate:"max=2000"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string `json:"phone,omitempty"`
	WebsiteURL  string `json:"website_url,omitempty" validate:"omitempty,url"`
	LogoURL     string `json:"logo_url,omitempty" validate:"omitempty,url"`
}

// UpdateChurchRequest carries a partial update; nil fields are left
// untouched.
type UpdateChurchRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Address     *string `json:"address,omitempty"`
	City        *string `json:"city,omitempty"`
	Country     *string `json:"country,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty"`
	WebsiteURL  *string `json:"website_url,omitempty" validate:"omitempty,url"`
	LogoURL     *string `json:"logo_url,omitempty" validate:"omitempty,url"`
}

// UpdateMemberRoleRequest carries a role change. Role is the external
// application-form name and is validated strictly; unknown values are
// rejected, never degraded.
type UpdateMemberRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// UpdateMemberStatusRequest carries a status change.
type UpdateMemberStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active pending inactive"`
}

var (
	// ErrChurchNotFound is returned when no church matches.
	ErrChurchNotFound = errors.New("church not found")
	// ErrMemberNotFound is returned when the user is not a member of
	// the church.
	ErrMemberNotFound = errors.New("member not found")
	// ErrDomainTaken is returned when the domain name is already in
	// use by another church.
	ErrDomainTaken = errors.New("domain name already in use")
)
