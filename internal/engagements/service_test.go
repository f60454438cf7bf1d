package engagements

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
	"github.com/triline/triline/jobs"
)

type stubRepository struct {
	engagements map[uuid.UUID]*Engagement
	created     *Engagement
}

func newStubRepository() *stubRepository {
	return &stubRepository{engagements: make(map[uuid.UUID]*Engagement)}
}

func (s *stubRepository) Get(_ context.Context, id uuid.UUID) (*Engagement, error) {
	e, ok := s.engagements[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *stubRepository) List(_ context.Context, filter access.Filter, _ ListRequest) ([]Engagement, shared.Pagination, error) {
	var out []Engagement
	for _, e := range s.engagements {
		if filter.Matches(e.ClientOwner) {
			out = append(out, *e)
		}
	}
	return out, shared.NewPagination(1, 20, len(out)), nil
}

func (s *stubRepository) Create(_ context.Context, e *Engagement) error {
	s.created = e
	s.engagements[e.ID] = e
	return nil
}

func (s *stubRepository) UpdateStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to workflow.Status) error {
	e, ok := s.engagements[id]
	if !ok {
		return shared.ErrNotFound
	}
	if e.Status != from {
		return ErrStaleStatus
	}
	e.Status = to
	return nil
}

type stubNotifier struct {
	payloads []jobs.WorkflowTransitionedPayload
}

func (s *stubNotifier) EnqueueWorkflowTransitioned(_ context.Context, payload jobs.WorkflowTransitionedPayload) (*asynq.TaskInfo, error) {
	s.payloads = append(s.payloads, payload)
	return &asynq.TaskInfo{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The transitioner is built without a pool; paths that would reach the
// database are covered by the workflow engine tests.
func newGateService(repo Repository, notifier Notifier) *Service {
	flow := workflow.NewTransitioner(nil, nil, testLogger())
	return NewService(repo, flow, notifier, testLogger())
}

func seedEngagement(repo *stubRepository, firmID uuid.UUID, status workflow.Status, owner access.Ownership) *Engagement {
	e := &Engagement{
		ID:             uuid.New(),
		FirmID:         firmID,
		ClientID:       uuid.New(),
		Name:           "TP Study FY25",
		AssessmentYear: "2025-26",
		Status:         status,
		ClientOwner:    owner,
	}
	repo.engagements[e.ID] = e
	return e
}

func TestGetMasksOtherFirms(t *testing.T) {
	repo := newStubRepository()
	firmA, firmB := uuid.New(), uuid.New()
	e := seedEngagement(repo, firmA, workflow.EngagementPlanning, access.Ownership{FirmID: firmA})

	svc := newGateService(repo, nil)

	_, err := svc.Get(context.Background(), &authn.User{ID: uuid.New(), Role: rbac.RoleAdmin, FirmID: firmB}, e.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetInheritsClientOwnership(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	clientOwner := uuid.New()
	e := seedEngagement(repo, firm, workflow.EngagementPlanning,
		access.Ownership{FirmID: firm, AssignedToID: clientOwner})

	svc := newGateService(repo, nil)

	stranger := &authn.User{ID: uuid.New(), Role: rbac.RoleAssociate, FirmID: firm}
	_, err := svc.Get(context.Background(), stranger, e.ID)
	require.ErrorIs(t, err, authn.ErrForbidden)

	assigned := &authn.User{ID: clientOwner, Role: rbac.RoleAssociate, FirmID: firm}
	got, err := svc.Get(context.Background(), assigned, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
}

func TestCreateStartsAtInitialStatus(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	svc := newGateService(repo, nil)

	e, err := svc.Create(context.Background(),
		&authn.User{ID: uuid.New(), Role: rbac.RolePartner, FirmID: firm},
		CreateInput{ClientID: uuid.New(), Name: "TP Study FY25", AssessmentYear: "2025-26"})
	require.NoError(t, err)
	assert.Equal(t, workflow.EngagementNotStarted, e.Status)
	assert.Equal(t, firm, e.FirmID)
}

func TestTransitionHeldForApprovalDoesNotMutate(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	manager := uuid.New()
	e := seedEngagement(repo, firm, workflow.EngagementReview,
		access.Ownership{FirmID: firm, ReviewerID: manager})

	notifier := &stubNotifier{}
	svc := newGateService(repo, notifier)

	caller := &authn.User{ID: manager, Role: rbac.RoleManager, FirmID: firm}
	res, cur, err := svc.Transition(context.Background(), caller, e.ID, workflow.EngagementApproved, "ready for sign-off")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.RequiresApproval)
	assert.Equal(t, workflow.EngagementReview, res.NewStatus)
	assert.Equal(t, workflow.EngagementReview, cur.Status)
	assert.Equal(t, workflow.EngagementReview, repo.engagements[e.ID].Status)
	assert.Empty(t, notifier.payloads)
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	e := seedEngagement(repo, firm, workflow.EngagementPlanning, access.Ownership{FirmID: firm})

	svc := newGateService(repo, nil)
	caller := &authn.User{ID: uuid.New(), Role: rbac.RolePartner, FirmID: firm}

	_, _, err := svc.Transition(context.Background(), caller, e.ID, workflow.EngagementApproved, "")
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, workflow.EngagementPlanning, repo.engagements[e.ID].Status)
}

func TestTransitionRejectsDisallowedRole(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	trainee := uuid.New()
	e := seedEngagement(repo, firm, workflow.EngagementReview,
		access.Ownership{FirmID: firm, AssignedToID: trainee})

	svc := newGateService(repo, nil)
	caller := &authn.User{ID: trainee, Role: rbac.RoleTrainee, FirmID: firm}

	_, _, err := svc.Transition(context.Background(), caller, e.ID, workflow.EngagementApproved, "")
	require.ErrorIs(t, err, workflow.ErrRoleNotAllowed)
}

func TestAllowedTransitionsReflectRole(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	reviewer := uuid.New()
	e := seedEngagement(repo, firm, workflow.EngagementReview,
		access.Ownership{FirmID: firm, ReviewerID: reviewer})

	svc := newGateService(repo, nil)

	manager := &authn.User{ID: reviewer, Role: rbac.RoleManager, FirmID: firm}
	targets, err := svc.AllowedTransitions(context.Background(), manager, e.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []workflow.Status{workflow.EngagementApproved, workflow.EngagementDrafting}, targets)
}

func TestProgressFollowsStatus(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	e := seedEngagement(repo, firm, workflow.EngagementDrafting, access.Ownership{FirmID: firm})

	svc := newGateService(repo, nil)
	caller := &authn.User{ID: uuid.New(), Role: rbac.RolePartner, FirmID: firm}

	p, err := svc.Progress(context.Background(), caller, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, p)
}
