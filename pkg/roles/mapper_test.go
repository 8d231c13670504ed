package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStorage(t *testing.T) {
	tests := []struct {
		value string
		want  Role
	}{
		{"superadmin", RoleSuperAdmin},
		{"churchadmin", RoleChurchAdmin},
		{"staff", RoleStaff},
		{"groupleader", RoleGroupLeader},
		{"member", RoleMember},
		{"visitor", RoleVisitor},
		{"", RoleVisitor},
		{"garbage", RoleVisitor},
		{"SUPERADMIN", RoleVisitor}, // storage values are case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, FromStorage(tt.value))
		})
	}
}

func TestStorageRoundTrip(t *testing.T) {
	for _, r := range AllRoles() {
		assert.Equal(t, r, FromStorage(string(ToStorage(r))), "round trip for %q", r)
	}
}

func TestFromStorageIdempotentThroughDegrade(t *testing.T) {
	// Mapping a stored value, writing it back, and reading it again must
	// land on the same role, including for values that degraded.
	for _, value := range []string{"superadmin", "staff", "visitor", "garbage", ""} {
		once := FromStorage(value)
		again := FromStorage(string(ToStorage(once)))
		assert.Equal(t, once, again, "value %q", value)
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("church_admin")
	require.NoError(t, err)
	assert.Equal(t, RoleChurchAdmin, r)

	_, err = ParseRole("churchadmin") // storage form is not valid input
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "role", verr.Field)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestIsRecognized(t *testing.T) {
	assert.True(t, IsRecognized("staff"))
	assert.True(t, IsRecognized("super_admin"))
	assert.False(t, IsRecognized("superadmin"))
	assert.False(t, IsRecognized("owner"))
}
