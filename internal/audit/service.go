// Package audit exposes the workflow history as a firm-scoped timeline with
// CSV export for working paper files.
package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxExportRows   = 10000
)

// Filters narrows the timeline. Zero values mean "any".
type Filters struct {
	EntityType workflow.EntityType
	EntityID   uuid.UUID
	ActorID    uuid.UUID
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

// HistoryLister reads transition history.
type HistoryLister interface {
	List(ctx context.Context, filter workflow.HistoryFilter) ([]workflow.HistoryRecord, shared.Pagination, error)
}

// Service coordinates timeline reads. Every query is pinned to the caller's
// firm; there is no unscoped view.
type Service struct {
	history HistoryLister
}

func NewService(history HistoryLister) *Service {
	return &Service{history: history}
}

func (s *Service) historyFilter(user *authn.User, filters Filters) workflow.HistoryFilter {
	perPage := filters.PerPage
	if perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return workflow.HistoryFilter{
		FirmID:     user.FirmID,
		EntityType: filters.EntityType,
		EntityID:   filters.EntityID,
		ActorID:    filters.ActorID,
		From:       filters.From,
		To:         filters.To,
		Page:       filters.Page,
		PerPage:    perPage,
	}
}

// Timeline returns one page of the firm's transition history, newest first.
func (s *Service) Timeline(ctx context.Context, user *authn.User, filters Filters) ([]workflow.HistoryRecord, shared.Pagination, error) {
	if s.history == nil {
		return nil, shared.Pagination{}, fmt.Errorf("audit: history store not configured")
	}
	return s.history.List(ctx, s.historyFilter(user, filters))
}

// ExportCSV renders the filtered timeline as CSV, capped at maxExportRows.
func (s *Service) ExportCSV(ctx context.Context, user *authn.User, filters Filters) ([]byte, error) {
	filters.Page = 1
	hf := s.historyFilter(user, filters)
	hf.PerPage = maxExportRows

	rows, _, err := s.history.List(ctx, hf)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "entity_type", "entity_id", "from", "to", "actor_id", "comment"}); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		record := []string{
			rec.At.Format(time.RFC3339),
			string(rec.EntityType),
			rec.EntityID.String(),
			string(rec.From),
			string(rec.To),
			rec.ActorID.String(),
			rec.Comment,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
