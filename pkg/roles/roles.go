package roles

import "fmt"

// Role represents a privilege level assigned to a user within a church.
// The set is closed: every role must have an entry in both the hierarchy
// and the permission table, enforced by Validate at startup.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"  // Platform operator, church-agnostic
	RoleChurchAdmin Role = "church_admin" // Full access within one church
	RoleStaff       Role = "staff"        // Church staff
	RoleGroupLeader Role = "group_leader" // Leads groups within a church
	RoleMember      Role = "member"       // Regular church member
	RoleVisitor     Role = "visitor"      // Lowest privilege, default for unknowns
)

// AllRoles returns every defined role. New roles must be added here as
// well as to the hierarchy and permission tables; Validate catches an
// omission in either table.
func AllRoles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleChurchAdmin,
		RoleStaff,
		RoleGroupLeader,
		RoleMember,
		RoleVisitor,
	}
}

// hierarchy maps each role to its rank. Higher rank means more
// privilege. Ranks are only ever compared relatively, never tested for
// equality against a constant.
var hierarchy = map[Role]int{
	RoleSuperAdmin:  100,
	RoleChurchAdmin: 80,
	RoleStaff:       60,
	RoleGroupLeader: 40,
	RoleMember:      20,
	RoleVisitor:     10,
}

// Capability is a single named permission, checked independently of
// role rank.
type Capability string

const (
	CapManageChurch  Capability = "manage_church"
	CapManageGroups  Capability = "manage_groups"
	CapManageMembers Capability = "manage_members"
	CapCreateEvents  Capability = "create_events"
	CapEditEvents    Capability = "edit_events"
	CapViewMembers   Capability = "view_members"
	CapJoinGroups    Capability = "join_groups"
	CapCreatePosts   Capability = "create_posts"
)

// PermissionSet is the fixed record of capabilities attached to a role.
type PermissionSet struct {
	ManageChurch  bool `json:"manage_church"`
	ManageGroups  bool `json:"manage_groups"`
	ManageMembers bool `json:"manage_members"`
	CreateEvents  bool `json:"create_events"`
	EditEvents    bool `json:"edit_events"`
	ViewMembers   bool `json:"view_members"`
	JoinGroups    bool `json:"join_groups"`
	CreatePosts   bool `json:"create_posts"`
}

// Has reports whether the set grants the given capability.
func (p PermissionSet) Has(cap Capability) bool {
	switch cap {
	case CapManageChurch:
		return p.ManageChurch
	case CapManageGroups:
		return p.ManageGroups
	case CapManageMembers:
		return p.ManageMembers
	case CapCreateEvents:
		return p.CreateEvents
	case CapEditEvents:
		return p.EditEvents
	case CapViewMembers:
		return p.ViewMembers
	case CapJoinGroups:
		return p.JoinGroups
	case CapCreatePosts:
		return p.CreatePosts
	}
	return false
}

// permissions is the static permission matrix. It is data, not code:
// defined once here and consulted everywhere. Nothing mutates it at
// runtime.
var permissions = map[Role]PermissionSet{
	RoleSuperAdmin: {
		ManageChurch:  true,
		ManageGroups:  true,
		ManageMembers: true,
		CreateEvents:  true,
		EditEvents:    true,
		ViewMembers:   true,
		JoinGroups:    true,
		CreatePosts:   true,
	},
	RoleChurchAdmin: {
		ManageChurch:  true,
		ManageGroups:  true,
		ManageMembers: true,
		CreateEvents:  true,
		EditEvents:    true,
		ViewMembers:   true,
		JoinGroups:    true,
		CreatePosts:   true,
	},
	RoleStaff: {
		ManageGroups: true,
		CreateEvents: true,
		EditEvents:   true,
		ViewMembers:  true,
		JoinGroups:   true,
		CreatePosts:  true,
	},
	RoleGroupLeader: {
		CreateEvents: true,
		EditEvents:   true,
		ViewMembers:  true,
		JoinGroups:   true,
		CreatePosts:  true,
	},
	RoleMember: {
		ViewMembers: true,
		JoinGroups:  true,
	},
	RoleVisitor: {},
}

// Rank returns the hierarchy rank for a role. Unknown roles rank as
// Visitor, the lowest privilege.
func Rank(r Role) int {
	if rank, ok := hierarchy[r]; ok {
		return rank
	}
	return hierarchy[RoleVisitor]
}

// Permissions returns the immutable permission set for a role. Unknown
// roles get the Visitor set.
func Permissions(r Role) PermissionSet {
	if p, ok := permissions[r]; ok {
		return p
	}
	return permissions[RoleVisitor]
}

// Validate checks that every defined role has an entry in the
// hierarchy, the permission table, and the storage mapping, and that no
// two roles share a rank. Called from main so a newly added role that
// misses a table is a startup error, not a silent default.
func Validate() error {
	seen := make(map[int]Role, len(hierarchy))
	for _, r := range AllRoles() {
		rank, ok := hierarchy[r]
		if !ok {
			return fmt.Errorf("role %q missing from hierarchy", r)
		}
		if prev, dup := seen[rank]; dup {
			return fmt.Errorf("roles %q and %q share rank %d", prev, r, rank)
		}
		seen[rank] = r

		if _, ok := permissions[r]; !ok {
			return fmt.Errorf("role %q missing from permission table", r)
		}
		if _, ok := toStorage[r]; !ok {
			return fmt.Errorf("role %q missing from storage mapping", r)
		}
	}
	return nil
}
