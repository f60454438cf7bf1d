// Package clients manages the client master of a firm: the companies a CA
// firm performs transfer pricing work for. Every read is scoped by the
// caller's firm and access tier.
package clients

import (
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/access"
)

// Client is one client company of a firm.
type Client struct {
	ID           uuid.UUID
	FirmID       uuid.UUID
	Name         string
	TaxID        string
	Jurisdiction string
	Industry     string
	AssignedToID uuid.UUID
	ReviewerID   uuid.UUID
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ownership exposes the scoping fields used by access filters.
func (c Client) Ownership() access.Ownership {
	return access.Ownership{
		FirmID:       c.FirmID,
		AssignedToID: c.AssignedToID,
		ReviewerID:   c.ReviewerID,
	}
}

// ListRequest narrows and pages a client listing.
type ListRequest struct {
	Search   string
	IsActive *bool
	Page     int
	PerPage  int
}
