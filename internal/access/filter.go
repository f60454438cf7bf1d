// Package access builds tenant- and ownership-scoped data filters. Every
// predicate starts from a firm match; no role tier may bypass it.
package access

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/rbac"
)

// Tier classifies how widely a role may see records inside its own firm.
type Tier int

const (
	// TierFullAccess sees every record in the firm.
	TierFullAccess Tier = iota
	// TierAssignedOrReviewer sees records it is assigned to or reviews.
	TierAssignedOrReviewer
	// TierAssignedOnly sees only records it is assigned to.
	TierAssignedOnly
)

var fullAccessRoles = map[rbac.Role]struct{}{
	rbac.RoleSuperAdmin: {},
	rbac.RoleAdmin:      {},
	rbac.RolePartner:    {},
	rbac.RoleDirector:   {},
}

var reviewerRoles = map[rbac.Role]struct{}{
	rbac.RoleManager:           {},
	rbac.RoleSeniorAssociate:   {},
	rbac.RoleOperationsManager: {},
	rbac.RoleComplianceManager: {},
}

// TierForRole maps a role onto its access tier.
func TierForRole(role rbac.Role) Tier {
	if _, ok := fullAccessRoles[role]; ok {
		return TierFullAccess
	}
	if _, ok := reviewerRoles[role]; ok {
		return TierAssignedOrReviewer
	}
	return TierAssignedOnly
}

// ResourceKind names a tenant resource that carries ownership fields.
type ResourceKind string

const (
	// KindClient filters on the client's own ownership columns.
	KindClient ResourceKind = "client"
	// KindEngagement inherits ownership through the parent client.
	KindEngagement ResourceKind = "engagement"
)

// Ownership holds the fields a record is scoped by. A nil-UUID reviewer means
// no reviewer is set.
type Ownership struct {
	FirmID       uuid.UUID
	AssignedToID uuid.UUID
	ReviewerID   uuid.UUID
}

// Filter is a data-scoping predicate derived from a principal. It renders to
// SQL for list queries and evaluates in memory for single records; the two
// forms implement the identical rule and must never disagree.
type Filter struct {
	kind   ResourceKind
	firmID uuid.UUID
	userID uuid.UUID
	tier   Tier
}

// BuildFilter constructs the predicate for the given principal and resource.
func BuildFilter(user *authn.User, kind ResourceKind) Filter {
	return Filter{
		kind:   kind,
		firmID: user.FirmID,
		userID: user.ID,
		tier:   TierForRole(user.Role),
	}
}

// Matches evaluates the predicate against a record's ownership fields.
// For engagements the caller supplies the owning client's fields.
func (f Filter) Matches(rec Ownership) bool {
	if rec.FirmID != f.firmID {
		return false
	}
	switch f.tier {
	case TierFullAccess:
		return true
	case TierAssignedOrReviewer:
		return rec.AssignedToID == f.userID || rec.ReviewerID == f.userID
	default:
		return rec.AssignedToID == f.userID
	}
}

// SQL renders the predicate as a WHERE fragment against the given table
// alias, appending bind arguments to args. For engagements the alias refers
// to the engagements table, which must expose a client_id column; ownership
// is resolved through the clients relation rather than duplicated.
func (f Filter) SQL(alias string, args *[]any) string {
	if f.kind == KindEngagement {
		inner := f.ownershipSQL("c", args)
		return fmt.Sprintf("EXISTS (SELECT 1 FROM clients c WHERE c.id = %s.client_id AND %s)", alias, inner)
	}
	return f.ownershipSQL(alias, args)
}

func (f Filter) ownershipSQL(alias string, args *[]any) string {
	*args = append(*args, f.firmID)
	firmCond := fmt.Sprintf("%s.firm_id = $%d", alias, len(*args))
	switch f.tier {
	case TierFullAccess:
		return firmCond
	case TierAssignedOrReviewer:
		*args = append(*args, f.userID)
		n := len(*args)
		return fmt.Sprintf("%s AND (%s.assigned_to = $%d OR %s.reviewer_id = $%d)", firmCond, alias, n, alias, n)
	default:
		*args = append(*args, f.userID)
		return fmt.Sprintf("%s AND %s.assigned_to = $%d", firmCond, alias, len(*args))
	}
}

// CanAccessRecord checks a single fetched record with the same three-tier
// rule the list predicate applies.
func CanAccessRecord(user *authn.User, rec Ownership) bool {
	return BuildFilter(user, KindClient).Matches(rec)
}
