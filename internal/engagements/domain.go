// Package engagements manages transfer pricing engagements: one engagement is
// one client's compliance cycle for an assessment year, driven through the
// engagement workflow. Access is inherited from the owning client.
package engagements

import (
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/workflow"
)

// Engagement is one compliance cycle for a client.
type Engagement struct {
	ID             uuid.UUID
	FirmID         uuid.UUID
	ClientID       uuid.UUID
	Name           string
	AssessmentYear string
	Status         workflow.Status
	FilingDeadline *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// ClientOwner carries the owning client's scoping fields, populated on
	// reads. Engagements have no ownership columns of their own.
	ClientOwner access.Ownership
}

// ListRequest narrows and pages an engagement listing.
type ListRequest struct {
	ClientID uuid.UUID
	Status   workflow.Status
	Page     int
	PerPage  int
}
