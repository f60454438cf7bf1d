// Package documents manages the statutory deliverables of an engagement,
// such as local files, master files and Form 3CEB, and drives them through
// the document workflow.
package documents

import (
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/workflow"
)

// Kind classifies a deliverable.
type Kind string

const (
	KindLocalFile          Kind = "LOCAL_FILE"
	KindMasterFile         Kind = "MASTER_FILE"
	KindCbCReport          Kind = "CBC_REPORT"
	KindForm3CEB           Kind = "FORM_3CEB"
	KindBenchmarkingReport Kind = "BENCHMARKING_REPORT"
)

// Document is one deliverable within an engagement.
type Document struct {
	ID           uuid.UUID
	FirmID       uuid.UUID
	EngagementID uuid.UUID
	Title        string
	Kind         Kind
	Status       workflow.Status
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// ClientOwner carries the scoping fields of the client owning the
	// parent engagement, populated on reads.
	ClientOwner access.Ownership
}

// ListRequest narrows and pages a document listing.
type ListRequest struct {
	EngagementID uuid.UUID
	Kind         Kind
	Status       workflow.Status
	Page         int
	PerPage      int
}
