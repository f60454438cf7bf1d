package access

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/rbac"
)

func userWith(role rbac.Role, firmID uuid.UUID) *authn.User {
	return &authn.User{
		ID:     uuid.New(),
		Email:  "user@firm.example",
		Role:   role,
		FirmID: firmID,
	}
}

func TestTierForRole(t *testing.T) {
	assert.Equal(t, TierFullAccess, TierForRole(rbac.RolePartner))
	assert.Equal(t, TierFullAccess, TierForRole(rbac.RoleSuperAdmin))
	assert.Equal(t, TierAssignedOrReviewer, TierForRole(rbac.RoleManager))
	assert.Equal(t, TierAssignedOrReviewer, TierForRole(rbac.RoleComplianceManager))
	assert.Equal(t, TierAssignedOnly, TierForRole(rbac.RoleAssociate))
	assert.Equal(t, TierAssignedOnly, TierForRole(rbac.RoleTrainee))
	assert.Equal(t, TierAssignedOnly, TierForRole(rbac.RoleOperations))
}

func TestAssociateSeesOnlyAssignedRecords(t *testing.T) {
	firm := uuid.New()
	user := userWith(rbac.RoleAssociate, firm)
	other := uuid.New()

	assigned := Ownership{FirmID: firm, AssignedToID: user.ID, ReviewerID: other}
	reviewing := Ownership{FirmID: firm, AssignedToID: other, ReviewerID: user.ID}
	unrelated := Ownership{FirmID: firm, AssignedToID: other, ReviewerID: other}

	assert.True(t, CanAccessRecord(user, assigned))
	assert.False(t, CanAccessRecord(user, reviewing), "associate tier does not include reviewer access")
	assert.False(t, CanAccessRecord(user, unrelated))
}

func TestManagerSeesAssignedOrReviewedRecords(t *testing.T) {
	firm := uuid.New()
	user := userWith(rbac.RoleManager, firm)
	other := uuid.New()

	assert.True(t, CanAccessRecord(user, Ownership{FirmID: firm, AssignedToID: user.ID}))
	assert.True(t, CanAccessRecord(user, Ownership{FirmID: firm, AssignedToID: other, ReviewerID: user.ID}))
	assert.False(t, CanAccessRecord(user, Ownership{FirmID: firm, AssignedToID: other, ReviewerID: other}))
}

func TestTenantIsolationIsAbsolute(t *testing.T) {
	firm := uuid.New()
	foreign := uuid.New()
	for _, role := range rbac.AllRoles() {
		user := userWith(role, firm)
		// Even a record assigned to and reviewed by the user is invisible
		// when it belongs to another firm.
		rec := Ownership{FirmID: foreign, AssignedToID: user.ID, ReviewerID: user.ID}
		assert.False(t, CanAccessRecord(user, rec), "role %s must not cross firms", role)
		assert.False(t, BuildFilter(user, KindClient).Matches(rec), "role %s filter must not cross firms", role)
	}
}

// TestFilterRecordCheckConsistency verifies that the list predicate and the
// single-record check agree across every tier and ownership combination.
func TestFilterRecordCheckConsistency(t *testing.T) {
	firm := uuid.New()
	foreign := uuid.New()
	other := uuid.New()

	for _, role := range rbac.AllRoles() {
		user := userWith(role, firm)
		filter := BuildFilter(user, KindClient)
		combos := []Ownership{
			{FirmID: firm, AssignedToID: user.ID, ReviewerID: user.ID},
			{FirmID: firm, AssignedToID: user.ID, ReviewerID: other},
			{FirmID: firm, AssignedToID: other, ReviewerID: user.ID},
			{FirmID: firm, AssignedToID: other, ReviewerID: other},
			{FirmID: firm},
			{FirmID: foreign, AssignedToID: user.ID, ReviewerID: user.ID},
			{FirmID: foreign, AssignedToID: other, ReviewerID: other},
		}
		for i, rec := range combos {
			assert.Equal(t, filter.Matches(rec), CanAccessRecord(user, rec),
				"role %s combo %d: filter and record check disagree", role, i)
		}
	}
}

func TestClientFilterSQL(t *testing.T) {
	firm := uuid.New()

	t.Run("full access", func(t *testing.T) {
		user := userWith(rbac.RolePartner, firm)
		var args []any
		sql := BuildFilter(user, KindClient).SQL("cl", &args)
		assert.Equal(t, "cl.firm_id = $1", sql)
		require.Len(t, args, 1)
		assert.Equal(t, firm, args[0])
	})

	t.Run("assigned or reviewer", func(t *testing.T) {
		user := userWith(rbac.RoleManager, firm)
		var args []any
		sql := BuildFilter(user, KindClient).SQL("cl", &args)
		assert.Equal(t, "cl.firm_id = $1 AND (cl.assigned_to = $2 OR cl.reviewer_id = $2)", sql)
		require.Len(t, args, 2)
		assert.Equal(t, user.ID, args[1])
	})

	t.Run("assigned only", func(t *testing.T) {
		user := userWith(rbac.RoleTrainee, firm)
		var args []any
		sql := BuildFilter(user, KindClient).SQL("cl", &args)
		assert.Equal(t, "cl.firm_id = $1 AND cl.assigned_to = $2", sql)
		require.Len(t, args, 2)
	})
}

func TestEngagementFilterTraversesClientRelation(t *testing.T) {
	firm := uuid.New()
	user := userWith(rbac.RoleAssociate, firm)

	var args []any
	sql := BuildFilter(user, KindEngagement).SQL("e", &args)
	expected := fmt.Sprintf("EXISTS (SELECT 1 FROM clients c WHERE c.id = e.client_id AND %s)",
		"c.firm_id = $1 AND c.assigned_to = $2")
	assert.Equal(t, expected, sql)
	require.Len(t, args, 2)
	assert.Equal(t, firm, args[0])
	assert.Equal(t, user.ID, args[1])
}

func TestSQLArgOffsets(t *testing.T) {
	// Filters appended after existing bind arguments must continue numbering.
	firm := uuid.New()
	user := userWith(rbac.RoleManager, firm)
	args := []any{"existing"}
	sql := BuildFilter(user, KindClient).SQL("cl", &args)
	assert.Equal(t, "cl.firm_id = $2 AND (cl.assigned_to = $3 OR cl.reviewer_id = $3)", sql)
	assert.Len(t, args, 3)
}
