// Package workflow implements the status state machines governing
// engagements, statutory documents, tasks and projects. Transition tables are
// declarative configuration consulted by the engine, never mutated at runtime.
package workflow

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/rbac"
)

// EntityType names a workflow-governed entity. Each type owns an independent
// transition table; edges never leak between types.
type EntityType string

const (
	EntityEngagement EntityType = "ENGAGEMENT"
	EntityDocument   EntityType = "DOCUMENT"
	EntityTask       EntityType = "TASK"
	EntityProject    EntityType = "PROJECT"
)

// Status is an entity lifecycle state.
type Status string

// Engagement statuses.
const (
	EngagementNotStarted     Status = "NOT_STARTED"
	EngagementPlanning       Status = "PLANNING"
	EngagementDataCollection Status = "DATA_COLLECTION"
	EngagementBenchmarking   Status = "BENCHMARKING"
	EngagementDrafting       Status = "DRAFTING"
	EngagementReview         Status = "REVIEW"
	EngagementApproved       Status = "APPROVED"
	EngagementFiled          Status = "FILED"
	EngagementCompleted      Status = "COMPLETED"
)

// Document statuses.
const (
	DocumentDraft    Status = "DRAFT"
	DocumentInReview Status = "IN_REVIEW"
	DocumentApproved Status = "APPROVED"
	DocumentFiled    Status = "FILED"
	DocumentArchived Status = "ARCHIVED"
)

// Task statuses.
const (
	TaskTodo       Status = "TODO"
	TaskInProgress Status = "IN_PROGRESS"
	TaskBlocked    Status = "BLOCKED"
	TaskInReview   Status = "IN_REVIEW"
	TaskDone       Status = "DONE"
	TaskCancelled  Status = "CANCELLED"
)

// Project statuses.
const (
	ProjectProposed  Status = "PROPOSED"
	ProjectActive    Status = "ACTIVE"
	ProjectOnHold    Status = "ON_HOLD"
	ProjectCompleted Status = "COMPLETED"
	ProjectCancelled Status = "CANCELLED"
)

// Transition is a directed edge in an entity's status graph. Backward
// (rework) edges are ordinary transitions with their own, usually narrower,
// role sets.
type Transition struct {
	From             Status
	To               Status
	AllowedRoles     []rbac.Role
	RequiresApproval bool
	ApproverRoles    []rbac.Role
}

func (t Transition) roleAllowed(role rbac.Role) bool {
	for _, r := range t.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (t Transition) roleApproves(role rbac.Role) bool {
	for _, r := range t.ApproverRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Table holds one entity type's transition edges and its display progression.
// The progression is a fixed linear ordering used only for progress
// percentages; rework edges deliberately do not appear in it.
type Table struct {
	Transitions []Transition
	Progression []Status
}

// TransitionRequest describes one attempted status change.
type TransitionRequest struct {
	EntityType EntityType
	EntityID   uuid.UUID
	FirmID     uuid.UUID
	From       Status
	To         Status
	ActorID    uuid.UUID
	ActorRole  rbac.Role
	Comment    string
}

// Decision is the outcome of validating a transition. Reason is a diagnostic
// string for humans; programmatic branching uses Err.
type Decision struct {
	Allowed bool
	Reason  string
	Err     error
}

// Result is the outcome of executing a transition. RequiresApproval marks the
// recognised successful-but-incomplete case: the request was valid but the
// actor cannot approve it, so the entity keeps its prior status.
type Result struct {
	Success          bool
	NewStatus        Status
	RequiresApproval bool
}

// HistoryRecord is an immutable audit entry appended once per executed
// transition.
type HistoryRecord struct {
	ID         int64
	EntityType EntityType
	EntityID   uuid.UUID
	FirmID     uuid.UUID
	From       Status
	To         Status
	ActorID    uuid.UUID
	At         time.Time
	Comment    string
	Meta       map[string]any
}

// Validation error kinds.
var (
	// ErrUnknownEntityType indicates no transition table exists for the type.
	ErrUnknownEntityType = errors.New("workflow: unknown entity type")
	// ErrInvalidTransition indicates the (from, to) edge does not exist.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrRoleNotAllowed indicates the edge exists but the actor's role is not
	// in its allowed set.
	ErrRoleNotAllowed = errors.New("workflow: role not allowed")
)
