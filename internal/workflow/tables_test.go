package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triline/triline/internal/rbac"
)

func TestDefaultTablesCoverAllEntityTypes(t *testing.T) {
	tables := DefaultTables()
	for _, entity := range []EntityType{EntityEngagement, EntityDocument, EntityTask, EntityProject} {
		table, ok := tables[entity]
		require.True(t, ok, "missing table for %s", entity)
		assert.NotEmpty(t, table.Transitions)
		assert.GreaterOrEqual(t, len(table.Progression), 2)
	}
}

func TestDefaultTablesWellFormed(t *testing.T) {
	known := map[rbac.Role]bool{}
	for _, r := range rbac.AllRoles() {
		known[r] = true
	}

	for entity, table := range DefaultTables() {
		edges := map[[2]Status]bool{}
		for _, tr := range table.Transitions {
			assert.NotEqual(t, tr.From, tr.To, "%s: self loop on %s", entity, tr.From)
			assert.NotEmpty(t, tr.AllowedRoles, "%s: %s to %s has no roles", entity, tr.From, tr.To)

			key := [2]Status{tr.From, tr.To}
			assert.False(t, edges[key], "%s: duplicate edge %s to %s", entity, tr.From, tr.To)
			edges[key] = true

			for _, r := range tr.AllowedRoles {
				assert.True(t, known[r], "%s: unknown role %s", entity, r)
			}
			if tr.RequiresApproval {
				assert.NotEmpty(t, tr.ApproverRoles, "%s: gated edge %s to %s has no approvers", entity, tr.From, tr.To)
			} else {
				assert.Empty(t, tr.ApproverRoles, "%s: approvers on ungated edge %s to %s", entity, tr.From, tr.To)
			}
			for _, r := range tr.ApproverRoles {
				assert.True(t, known[r], "%s: unknown approver role %s", entity, r)
				assert.True(t, tr.roleAllowed(r), "%s: approver %s cannot initiate %s to %s", entity, r, tr.From, tr.To)
			}
		}
	}
}

func TestEngagementApprovalEdge(t *testing.T) {
	table := DefaultTables()[EntityEngagement]
	var edge *Transition
	for i, tr := range table.Transitions {
		if tr.From == EngagementReview && tr.To == EngagementApproved {
			edge = &table.Transitions[i]
		}
	}
	require.NotNil(t, edge)
	assert.True(t, edge.RequiresApproval)
	assert.True(t, edge.roleAllowed(rbac.RoleManager))
	assert.False(t, edge.roleApproves(rbac.RoleManager))
	assert.True(t, edge.roleApproves(rbac.RolePartner))
	assert.True(t, edge.roleApproves(rbac.RoleAdmin))
	assert.True(t, edge.roleApproves(rbac.RoleSuperAdmin))
}

func TestDocumentApprovalIncludesComplianceManager(t *testing.T) {
	table := DefaultTables()[EntityDocument]
	for _, tr := range table.Transitions {
		if tr.From == DocumentInReview && tr.To == DocumentApproved {
			assert.True(t, tr.RequiresApproval)
			assert.True(t, tr.roleApproves(rbac.RoleComplianceManager))
			return
		}
	}
	t.Fatal("document review to approved edge missing")
}

func TestProgressionStatusesAppearInTable(t *testing.T) {
	for entity, table := range DefaultTables() {
		inTable := map[Status]bool{}
		for _, tr := range table.Transitions {
			inTable[tr.From] = true
			inTable[tr.To] = true
		}
		for _, status := range table.Progression {
			assert.True(t, inTable[status], "%s: progression status %s not in table", entity, status)
		}
	}
}
