package rbac

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role identifies a firm role. Roles belong to exactly one of two families:
// the hierarchical ladder (partner outranks associate) or the functional
// departments (operations, compliance), which sit outside the ladder.
type Role string

// Hierarchical roles, highest privilege first.
const (
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleAdmin           Role = "ADMIN"
	RolePartner         Role = "PARTNER"
	RoleDirector        Role = "DIRECTOR"
	RoleManager         Role = "MANAGER"
	RoleSeniorAssociate Role = "SENIOR_ASSOCIATE"
	RoleAssociate       Role = "ASSOCIATE"
	RoleTrainee         Role = "TRAINEE"
)

// Functional roles. These never participate in hierarchy comparisons.
const (
	RoleOperations        Role = "OPERATIONS"
	RoleOperationsManager Role = "OPERATIONS_MANAGER"
	RoleCompliance        Role = "COMPLIANCE"
	RoleComplianceManager Role = "COMPLIANCE_MANAGER"
)

// NotComparable is returned by Level for roles outside the hierarchy.
const NotComparable = -1

var hierarchy = []Role{
	RoleSuperAdmin,
	RoleAdmin,
	RolePartner,
	RoleDirector,
	RoleManager,
	RoleSeniorAssociate,
	RoleAssociate,
	RoleTrainee,
}

var hierarchyIndex = func() map[Role]int {
	idx := make(map[Role]int, len(hierarchy))
	for i, r := range hierarchy {
		idx[r] = i
	}
	return idx
}()

var functional = map[Role]struct{}{
	RoleOperations:        {},
	RoleOperationsManager: {},
	RoleCompliance:        {},
	RoleComplianceManager: {},
}

// Hierarchy returns the hierarchical roles ordered from highest privilege.
func Hierarchy() []Role {
	out := make([]Role, len(hierarchy))
	copy(out, hierarchy)
	return out
}

// FunctionalRoles returns the department-scoped roles.
func FunctionalRoles() []Role {
	out := make([]Role, 0, len(functional))
	for _, r := range []Role{RoleOperations, RoleOperationsManager, RoleCompliance, RoleComplianceManager} {
		out = append(out, r)
	}
	return out
}

// AllRoles returns every declared role.
func AllRoles() []Role {
	return append(Hierarchy(), FunctionalRoles()...)
}

// ParseRole validates a raw role string at a construction boundary.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.Known() {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return r, nil
}

// Known reports whether the role belongs to either family.
func (r Role) Known() bool {
	return r.IsHierarchical() || r.IsFunctional()
}

// IsHierarchical reports membership in the ordered ladder.
func (r Role) IsHierarchical() bool {
	_, ok := hierarchyIndex[r]
	return ok
}

// IsFunctional reports membership in the department family.
func (r Role) IsFunctional() bool {
	_, ok := functional[r]
	return ok
}

// Level returns the position in the hierarchy, 0 being the most privileged.
// Functional and unknown roles yield NotComparable.
func (r Role) Level() int {
	if idx, ok := hierarchyIndex[r]; ok {
		return idx
	}
	return NotComparable
}

// IsAtLeast reports whether user holds at least the privilege of required.
// Functional roles never satisfy a hierarchical minimum; they are granted
// resource permissions directly instead.
func IsAtLeast(user, required Role) bool {
	u, r := user.Level(), required.Level()
	if u == NotComparable || r == NotComparable {
		return false
	}
	return u <= r
}

var labelCaser = cases.Title(language.English)

// Label renders a role for display, e.g. SENIOR_ASSOCIATE -> "Senior Associate".
func (r Role) Label() string {
	return labelCaser.String(strings.ToLower(strings.ReplaceAll(string(r), "_", " ")))
}
