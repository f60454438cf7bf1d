package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleFamiliesAreDisjoint(t *testing.T) {
	for _, r := range AllRoles() {
		require.True(t, r.Known(), "role %s must be declared", r)
		assert.NotEqual(t, r.IsHierarchical(), r.IsFunctional(), "role %s must belong to exactly one family", r)
	}
}

func TestHierarchyOrderingIsTotal(t *testing.T) {
	roles := Hierarchy()
	for _, a := range roles {
		for _, b := range roles {
			if a == b {
				assert.True(t, IsAtLeast(a, b))
				assert.True(t, IsAtLeast(b, a))
				continue
			}
			// Exactly one direction holds for distinct hierarchical roles.
			assert.NotEqual(t, IsAtLeast(a, b), IsAtLeast(b, a), "%s vs %s", a, b)
		}
	}
}

func TestFunctionalRolesNeverSatisfyHierarchicalChecks(t *testing.T) {
	for _, f := range FunctionalRoles() {
		assert.Equal(t, NotComparable, f.Level())
		for _, r := range AllRoles() {
			assert.False(t, IsAtLeast(f, r), "functional role %s must not outrank %s", f, r)
			assert.False(t, IsAtLeast(r, f), "no role can satisfy a functional minimum %s", f)
		}
	}
}

func TestLevelOrdering(t *testing.T) {
	require.Equal(t, 0, RoleSuperAdmin.Level())
	require.Less(t, RolePartner.Level(), RoleManager.Level())
	require.Less(t, RoleManager.Level(), RoleTrainee.Level())
	assert.True(t, IsAtLeast(RolePartner, RoleManager))
	assert.False(t, IsAtLeast(RoleAssociate, RoleManager))
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"MANAGER", RoleManager, false},
		{"manager", RoleManager, false},
		{"  senior_associate ", RoleSeniorAssociate, false},
		{"OPERATIONS_MANAGER", RoleOperationsManager, false},
		{"NOT_A_ROLE", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Senior Associate", RoleSeniorAssociate.Label())
	assert.Equal(t, "Compliance Manager", RoleComplianceManager.Label())
	assert.Equal(t, "Partner", RolePartner.Label())
}
