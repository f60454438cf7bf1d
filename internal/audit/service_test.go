package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

type stubLister struct {
	lastFilter workflow.HistoryFilter
	records    []workflow.HistoryRecord
}

func (s *stubLister) List(_ context.Context, filter workflow.HistoryFilter) ([]workflow.HistoryRecord, shared.Pagination, error) {
	s.lastFilter = filter
	return s.records, shared.NewPagination(filter.Page, filter.PerPage, len(s.records)), nil
}

func testUser(firmID uuid.UUID) *authn.User {
	return &authn.User{ID: uuid.New(), Email: "partner@firm.example", Role: rbac.RolePartner, FirmID: firmID}
}

func TestTimelineForcesFirmScope(t *testing.T) {
	lister := &stubLister{}
	svc := NewService(lister)
	firm := uuid.New()

	_, _, err := svc.Timeline(context.Background(), testUser(firm), Filters{
		EntityType: workflow.EntityEngagement,
	})
	require.NoError(t, err)

	assert.Equal(t, firm, lister.lastFilter.FirmID)
	assert.Equal(t, workflow.EntityEngagement, lister.lastFilter.EntityType)
}

func TestTimelineClampsPageSize(t *testing.T) {
	lister := &stubLister{}
	svc := NewService(lister)

	_, _, err := svc.Timeline(context.Background(), testUser(uuid.New()), Filters{PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, lister.lastFilter.PerPage)

	_, _, err = svc.Timeline(context.Background(), testUser(uuid.New()), Filters{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, lister.lastFilter.PerPage)
}

func TestExportCSVShape(t *testing.T) {
	actor := uuid.New()
	entity := uuid.New()
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	lister := &stubLister{records: []workflow.HistoryRecord{
		{
			ID:         1,
			EntityType: workflow.EntityEngagement,
			EntityID:   entity,
			From:       workflow.EngagementDrafting,
			To:         workflow.EngagementReview,
			ActorID:    actor,
			At:         at,
			Comment:    "ready for partner review",
		},
	}}
	svc := NewService(lister)
	firm := uuid.New()

	data, err := svc.ExportCSV(context.Background(), testUser(firm), Filters{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "at,entity_type,entity_id,from,to,actor_id,comment", lines[0])
	assert.Contains(t, lines[1], "2026-03-14T10:30:00Z")
	assert.Contains(t, lines[1], entity.String())
	assert.Contains(t, lines[1], "ready for partner review")

	assert.Equal(t, firm, lister.lastFilter.FirmID)
	assert.Equal(t, maxExportRows, lister.lastFilter.PerPage)
}
