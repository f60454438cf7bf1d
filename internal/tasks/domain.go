// Package tasks manages the work items of an engagement team. Unlike
// engagements and documents, tasks carry their own assignee and reviewer and
// are scoped on those columns directly.
package tasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/workflow"
)

// Priority orders tasks within a board column.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Task is one unit of work, optionally attached to an engagement.
type Task struct {
	ID           uuid.UUID
	FirmID       uuid.UUID
	EngagementID uuid.UUID
	Title        string
	Description  string
	Priority     Priority
	Status       workflow.Status
	AssignedToID uuid.UUID
	ReviewerID   uuid.UUID
	DueDate      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ownership exposes the scoping fields used by access filters.
func (t Task) Ownership() access.Ownership {
	return access.Ownership{
		FirmID:       t.FirmID,
		AssignedToID: t.AssignedToID,
		ReviewerID:   t.ReviewerID,
	}
}

// ListRequest narrows and pages a task listing.
type ListRequest struct {
	EngagementID uuid.UUID
	Status       workflow.Status
	Page         int
	PerPage      int
}
