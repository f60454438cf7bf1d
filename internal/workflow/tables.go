package workflow

import "github.com/triline/triline/internal/rbac"

// Role groups used across the default tables.
var (
	seniorRoles = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector, rbac.RoleManager,
	}
	engagementTeam = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector,
		rbac.RoleManager, rbac.RoleSeniorAssociate, rbac.RoleAssociate,
	}
	partnerRoles = []rbac.Role{rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector}
	approvers    = []rbac.Role{rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner}

	taskWorkers = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector,
		rbac.RoleManager, rbac.RoleSeniorAssociate, rbac.RoleAssociate, rbac.RoleTrainee,
		rbac.RoleOperations, rbac.RoleOperationsManager,
	}
	taskClosers = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector,
		rbac.RoleManager, rbac.RoleOperationsManager,
	}

	documentReviewers = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector,
		rbac.RoleManager, rbac.RoleComplianceManager,
	}
	documentApprovers = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleComplianceManager,
	}

	projectManagers = []rbac.Role{
		rbac.RoleSuperAdmin, rbac.RoleAdmin, rbac.RolePartner, rbac.RoleDirector,
		rbac.RoleManager, rbac.RoleOperationsManager,
	}
)

// DefaultTables returns the transition tables shipped with the platform.
func DefaultTables() map[EntityType]Table {
	return map[EntityType]Table{
		EntityEngagement: {
			Transitions: []Transition{
				{From: EngagementNotStarted, To: EngagementPlanning, AllowedRoles: engagementTeam},
				{From: EngagementPlanning, To: EngagementDataCollection, AllowedRoles: engagementTeam},
				{From: EngagementDataCollection, To: EngagementBenchmarking, AllowedRoles: engagementTeam},
				{From: EngagementBenchmarking, To: EngagementDrafting, AllowedRoles: engagementTeam},
				{From: EngagementDrafting, To: EngagementReview, AllowedRoles: engagementTeam},
				// Approval gate: managers may initiate, only partner level
				// and above completes the approval.
				{From: EngagementReview, To: EngagementApproved, AllowedRoles: seniorRoles,
					RequiresApproval: true, ApproverRoles: approvers},
				// Rework edges are restricted to senior staff.
				{From: EngagementReview, To: EngagementDrafting, AllowedRoles: seniorRoles},
				{From: EngagementDataCollection, To: EngagementPlanning, AllowedRoles: seniorRoles},
				{From: EngagementApproved, To: EngagementFiled, AllowedRoles: partnerRoles},
				{From: EngagementFiled, To: EngagementCompleted, AllowedRoles: partnerRoles},
			},
			Progression: []Status{
				EngagementNotStarted, EngagementPlanning, EngagementDataCollection,
				EngagementBenchmarking, EngagementDrafting, EngagementReview,
				EngagementApproved, EngagementFiled, EngagementCompleted,
			},
		},
		EntityDocument: {
			Transitions: []Transition{
				{From: DocumentDraft, To: DocumentInReview, AllowedRoles: engagementTeam},
				{From: DocumentInReview, To: DocumentApproved, AllowedRoles: documentReviewers,
					RequiresApproval: true, ApproverRoles: documentApprovers},
				{From: DocumentInReview, To: DocumentDraft, AllowedRoles: documentReviewers},
				{From: DocumentApproved, To: DocumentFiled, AllowedRoles: partnerRoles},
				{From: DocumentFiled, To: DocumentArchived, AllowedRoles: partnerRoles},
			},
			Progression: []Status{
				DocumentDraft, DocumentInReview, DocumentApproved, DocumentFiled, DocumentArchived,
			},
		},
		EntityTask: {
			Transitions: []Transition{
				{From: TaskTodo, To: TaskInProgress, AllowedRoles: taskWorkers},
				{From: TaskTodo, To: TaskCancelled, AllowedRoles: taskClosers},
				{From: TaskInProgress, To: TaskBlocked, AllowedRoles: taskWorkers},
				{From: TaskBlocked, To: TaskInProgress, AllowedRoles: taskWorkers},
				{From: TaskInProgress, To: TaskInReview, AllowedRoles: taskWorkers},
				{From: TaskInProgress, To: TaskCancelled, AllowedRoles: taskClosers},
				{From: TaskInReview, To: TaskDone, AllowedRoles: taskClosers},
				{From: TaskInReview, To: TaskInProgress, AllowedRoles: taskClosers},
			},
			Progression: []Status{TaskTodo, TaskInProgress, TaskInReview, TaskDone},
		},
		EntityProject: {
			Transitions: []Transition{
				{From: ProjectProposed, To: ProjectActive, AllowedRoles: partnerRoles},
				{From: ProjectProposed, To: ProjectCancelled, AllowedRoles: partnerRoles},
				{From: ProjectActive, To: ProjectOnHold, AllowedRoles: projectManagers},
				{From: ProjectOnHold, To: ProjectActive, AllowedRoles: projectManagers},
				{From: ProjectActive, To: ProjectCompleted, AllowedRoles: projectManagers},
				{From: ProjectActive, To: ProjectCancelled, AllowedRoles: partnerRoles},
			},
			Progression: []Status{ProjectProposed, ProjectActive, ProjectCompleted},
		},
	}
}
