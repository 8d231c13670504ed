package roles

import "fmt"

// StorageRole is the representation persisted in the profiles table.
// The storage vocabulary predates the application one and drops the
// underscores, so the two are mapped explicitly.
type StorageRole string

const (
	StorageSuperAdmin  StorageRole = "superadmin"
	StorageChurchAdmin StorageRole = "churchadmin"
	StorageStaff       StorageRole = "staff"
	StorageGroupLeader StorageRole = "groupleader"
	StorageMember      StorageRole = "member"
	StorageVisitor     StorageRole = "visitor"
)

var fromStorage = map[StorageRole]Role{
	StorageSuperAdmin:  RoleSuperAdmin,
	StorageChurchAdmin: RoleChurchAdmin,
	StorageStaff:       RoleStaff,
	StorageGroupLeader: RoleGroupLeader,
	StorageMember:      RoleMember,
	StorageVisitor:     RoleVisitor,
}

var toStorage = map[Role]StorageRole{
	RoleSuperAdmin:  StorageSuperAdmin,
	RoleChurchAdmin: StorageChurchAdmin,
	RoleStaff:       StorageStaff,
	RoleGroupLeader: StorageGroupLeader,
	RoleMember:      StorageMember,
	RoleVisitor:     StorageVisitor,
}

// FromStorage maps a stored role value to the application role.
// Unknown or empty values degrade to Visitor rather than erroring:
// this path reads possibly-stale data and must never fail a request.
func FromStorage(value string) Role {
	if r, ok := fromStorage[StorageRole(value)]; ok {
		return r
	}
	return RoleVisitor
}

// ToStorage maps an application role to its storage value.
func ToStorage(r Role) StorageRole {
	if v, ok := toStorage[r]; ok {
		return v
	}
	return StorageVisitor
}

// ValidationError reports malformed input to a role- or
// status-changing operation. It is rejected before any store call.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// IsRecognized reports whether candidate names a known application
// role. Used to validate external input before any state change.
func IsRecognized(candidate string) bool {
	_, ok := hierarchy[Role(candidate)]
	return ok
}

// ParseRole validates external input naming a role, for example an
// admin picking a role from a form. Unlike FromStorage it rejects
// unrecognized values with a ValidationError: silent degrade is for
// reading stale data, never for accepting new input.
func ParseRole(candidate string) (Role, error) {
	if !IsRecognized(candidate) {
		return "", &ValidationError{Field: "role", Value: candidate}
	}
	return Role(candidate), nil
}
