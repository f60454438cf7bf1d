package rbac

// Resource names a guarded resource kind.
type Resource string

// ResourceAll is the wildcard resource. Combined with ActionAdmin it forms
// the universal grant.
const ResourceAll Resource = "*"

const (
	ResourceClients       Resource = "clients"
	ResourceEngagements   Resource = "engagements"
	ResourceDocuments     Resource = "documents"
	ResourceTasks         Resource = "tasks"
	ResourceProjects      Resource = "projects"
	ResourceDisputes      Resource = "disputes"
	ResourceBenchmarking  Resource = "benchmarking"
	ResourceReports       Resource = "reports"
	ResourceUsers         Resource = "users"
	ResourceNotifications Resource = "notifications"
)

// Action enumerates the operations a grant can cover.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionRead    Action = "READ"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionExport  Action = "EXPORT"
	ActionApprove Action = "APPROVE"
	// ActionAdmin on a resource subsumes every other action on it.
	ActionAdmin Action = "ADMIN"
)

// Actions returns every action in the enum.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport, ActionApprove, ActionAdmin}
}

// Grant pairs a resource with a permitted action.
type Grant struct {
	Resource Resource
	Action   Action
}

// GrantSet is an unordered set of grants.
type GrantSet map[Grant]struct{}

// NewGrantSet builds a set from the given grants.
func NewGrantSet(grants ...Grant) GrantSet {
	set := make(GrantSet, len(grants))
	for _, g := range grants {
		set[g] = struct{}{}
	}
	return set
}

// Has reports set membership.
func (s GrantSet) Has(g Grant) bool {
	_, ok := s[g]
	return ok
}

// Matrix maps every declared role to its grants. Built once at startup and
// treated as immutable configuration; lookups against roles absent from the
// matrix always deny.
type Matrix map[Role]GrantSet

func crud(res Resource) []Grant {
	return []Grant{
		{res, ActionCreate},
		{res, ActionRead},
		{res, ActionUpdate},
		{res, ActionDelete},
	}
}

func flatten(groups ...[]Grant) []Grant {
	var out []Grant
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// DefaultMatrix returns the permission matrix shipped with the platform.
// Declarative data, consulted by the Resolver, never mutated at runtime.
func DefaultMatrix() Matrix {
	adminAll := []Grant{
		{ResourceClients, ActionAdmin},
		{ResourceEngagements, ActionAdmin},
		{ResourceDocuments, ActionAdmin},
		{ResourceTasks, ActionAdmin},
		{ResourceProjects, ActionAdmin},
		{ResourceDisputes, ActionAdmin},
		{ResourceBenchmarking, ActionAdmin},
		{ResourceReports, ActionAdmin},
		{ResourceUsers, ActionAdmin},
		{ResourceNotifications, ActionAdmin},
	}

	return Matrix{
		RoleSuperAdmin: NewGrantSet(Grant{ResourceAll, ActionAdmin}),
		RoleAdmin:      NewGrantSet(adminAll...),
		RolePartner: NewGrantSet(flatten(
			[]Grant{
				{ResourceClients, ActionAdmin},
				{ResourceEngagements, ActionAdmin},
				{ResourceDocuments, ActionAdmin},
				{ResourceProjects, ActionAdmin},
				{ResourceDisputes, ActionAdmin},
			},
			crud(ResourceTasks),
			[]Grant{
				{ResourceTasks, ActionApprove},
				{ResourceBenchmarking, ActionRead},
				{ResourceBenchmarking, ActionExport},
				{ResourceReports, ActionRead},
				{ResourceReports, ActionExport},
				{ResourceUsers, ActionRead},
				{ResourceNotifications, ActionRead},
			},
		)...),
		RoleDirector: NewGrantSet(flatten(
			crud(ResourceClients),
			crud(ResourceEngagements),
			crud(ResourceDocuments),
			crud(ResourceProjects),
			[]Grant{
				{ResourceEngagements, ActionApprove},
				{ResourceEngagements, ActionExport},
				{ResourceDocuments, ActionApprove},
				{ResourceDocuments, ActionExport},
				{ResourceTasks, ActionCreate},
				{ResourceTasks, ActionRead},
				{ResourceTasks, ActionUpdate},
				{ResourceTasks, ActionApprove},
				{ResourceDisputes, ActionRead},
				{ResourceDisputes, ActionUpdate},
				{ResourceBenchmarking, ActionRead},
				{ResourceReports, ActionRead},
				{ResourceReports, ActionExport},
				{ResourceUsers, ActionRead},
				{ResourceNotifications, ActionRead},
			},
		)...),
		RoleManager: NewGrantSet(
			Grant{ResourceClients, ActionCreate},
			Grant{ResourceClients, ActionRead},
			Grant{ResourceClients, ActionUpdate},
			Grant{ResourceEngagements, ActionCreate},
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceEngagements, ActionUpdate},
			Grant{ResourceEngagements, ActionExport},
			Grant{ResourceDocuments, ActionCreate},
			Grant{ResourceDocuments, ActionRead},
			Grant{ResourceDocuments, ActionUpdate},
			Grant{ResourceDocuments, ActionExport},
			Grant{ResourceTasks, ActionCreate},
			Grant{ResourceTasks, ActionRead},
			Grant{ResourceTasks, ActionUpdate},
			Grant{ResourceTasks, ActionApprove},
			Grant{ResourceProjects, ActionCreate},
			Grant{ResourceProjects, ActionRead},
			Grant{ResourceProjects, ActionUpdate},
			Grant{ResourceDisputes, ActionRead},
			Grant{ResourceBenchmarking, ActionRead},
			Grant{ResourceReports, ActionRead},
			Grant{ResourceUsers, ActionRead},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleSeniorAssociate: NewGrantSet(
			Grant{ResourceClients, ActionRead},
			Grant{ResourceEngagements, ActionCreate},
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceEngagements, ActionUpdate},
			Grant{ResourceDocuments, ActionCreate},
			Grant{ResourceDocuments, ActionRead},
			Grant{ResourceDocuments, ActionUpdate},
			Grant{ResourceDocuments, ActionExport},
			Grant{ResourceTasks, ActionCreate},
			Grant{ResourceTasks, ActionRead},
			Grant{ResourceTasks, ActionUpdate},
			Grant{ResourceBenchmarking, ActionRead},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleAssociate: NewGrantSet(
			Grant{ResourceClients, ActionRead},
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceEngagements, ActionUpdate},
			Grant{ResourceDocuments, ActionRead},
			Grant{ResourceDocuments, ActionUpdate},
			Grant{ResourceTasks, ActionCreate},
			Grant{ResourceTasks, ActionRead},
			Grant{ResourceTasks, ActionUpdate},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleTrainee: NewGrantSet(
			Grant{ResourceClients, ActionRead},
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceDocuments, ActionRead},
			Grant{ResourceTasks, ActionRead},
			Grant{ResourceTasks, ActionUpdate},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleOperations: NewGrantSet(
			Grant{ResourceTasks, ActionCreate},
			Grant{ResourceTasks, ActionRead},
			Grant{ResourceTasks, ActionUpdate},
			Grant{ResourceProjects, ActionRead},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleOperationsManager: NewGrantSet(
			Grant{ResourceTasks, ActionAdmin},
			Grant{ResourceProjects, ActionAdmin},
			Grant{ResourceClients, ActionRead},
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceUsers, ActionRead},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleCompliance: NewGrantSet(
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceDocuments, ActionRead},
			Grant{ResourceDisputes, ActionCreate},
			Grant{ResourceDisputes, ActionRead},
			Grant{ResourceDisputes, ActionUpdate},
			Grant{ResourceReports, ActionRead},
			Grant{ResourceNotifications, ActionRead},
		),
		RoleComplianceManager: NewGrantSet(
			Grant{ResourceDisputes, ActionAdmin},
			Grant{ResourceEngagements, ActionRead},
			Grant{ResourceEngagements, ActionExport},
			Grant{ResourceDocuments, ActionRead},
			Grant{ResourceDocuments, ActionApprove},
			Grant{ResourceDocuments, ActionExport},
			Grant{ResourceReports, ActionRead},
			Grant{ResourceReports, ActionExport},
			Grant{ResourceNotifications, ActionRead},
		),
	}
}
