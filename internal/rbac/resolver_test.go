package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryRoleHasMatrixEntry(t *testing.T) {
	matrix := DefaultMatrix()
	for _, r := range AllRoles() {
		_, ok := matrix[r]
		assert.True(t, ok, "role %s missing from matrix", r)
	}
}

func TestUnknownRoleAlwaysDenies(t *testing.T) {
	resolver := NewDefaultResolver()
	for _, res := range []Resource{ResourceAll, ResourceClients, ResourceEngagements} {
		for _, act := range Actions() {
			assert.False(t, resolver.HasPermission("NOT_A_ROLE", res, act))
		}
	}
}

func TestWildcardSupremacy(t *testing.T) {
	resolver := NewDefaultResolver()
	// Including a resource the super admin grant set never mentions.
	resources := []Resource{ResourceClients, ResourceEngagements, ResourceDocuments, Resource("safe_harbour_filings")}
	for _, res := range resources {
		for _, act := range Actions() {
			assert.True(t, resolver.HasPermission(RoleSuperAdmin, res, act), "%s %s", res, act)
		}
	}
}

func TestAdminSubsumption(t *testing.T) {
	resolver := NewDefaultResolver()
	// Partner holds (clients, ADMIN); every action on clients must pass.
	for _, act := range Actions() {
		assert.True(t, resolver.HasPermission(RolePartner, ResourceClients, act), "action %s", act)
	}
	// But ADMIN on one resource must not leak onto another.
	assert.False(t, resolver.HasPermission(RolePartner, ResourceUsers, ActionDelete))
}

func TestExplicitGrants(t *testing.T) {
	resolver := NewDefaultResolver()

	assert.True(t, resolver.HasPermission(RoleManager, ResourceEngagements, ActionRead))
	assert.False(t, resolver.HasPermission(RoleTrainee, ResourceClients, ActionDelete))
	assert.False(t, resolver.HasPermission(RoleManager, ResourceClients, ActionDelete))
	assert.True(t, resolver.HasPermission(RoleAssociate, ResourceTasks, ActionCreate))
	assert.False(t, resolver.HasPermission(RoleAssociate, ResourceEngagements, ActionCreate))
}

func TestFunctionalRoleGrants(t *testing.T) {
	resolver := NewDefaultResolver()

	// Operations manager administers tasks and projects but nothing else.
	for _, act := range Actions() {
		assert.True(t, resolver.HasPermission(RoleOperationsManager, ResourceTasks, act))
	}
	assert.False(t, resolver.HasPermission(RoleOperationsManager, ResourceDocuments, ActionRead))

	assert.True(t, resolver.HasPermission(RoleComplianceManager, ResourceDocuments, ActionApprove))
	assert.False(t, resolver.HasPermission(RoleCompliance, ResourceDocuments, ActionApprove))
}

func TestResolverUsesInjectedMatrix(t *testing.T) {
	matrix := Matrix{
		RoleTrainee: NewGrantSet(Grant{ResourceReports, ActionExport}),
	}
	resolver := NewResolver(matrix)

	require.True(t, resolver.HasPermission(RoleTrainee, ResourceReports, ActionExport))
	assert.False(t, resolver.HasPermission(RoleTrainee, ResourceReports, ActionRead))
	assert.False(t, resolver.HasPermission(RoleManager, ResourceReports, ActionExport))
}
