package engagements

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
	"github.com/triline/triline/jobs"
)

// Notifier publishes committed transitions for asynchronous fan-out.
type Notifier interface {
	EnqueueWorkflowTransitioned(ctx context.Context, payload jobs.WorkflowTransitionedPayload) (*asynq.TaskInfo, error)
}

// Service applies access scoping and drives the engagement workflow.
type Service struct {
	repo     Repository
	flow     *workflow.Transitioner
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo Repository, flow *workflow.Transitioner, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, flow: flow, notifier: notifier, logger: logger}
}

// List returns the engagements visible to the caller, scoped through the
// owning client relation.
func (s *Service) List(ctx context.Context, user *authn.User, req ListRequest) ([]Engagement, shared.Pagination, error) {
	filter := access.BuildFilter(user, access.KindEngagement)
	return s.repo.List(ctx, filter, req)
}

// Get fetches one engagement. Another firm's engagement reads as not found;
// one outside the caller's tier is forbidden.
func (s *Service) Get(ctx context.Context, user *authn.User, id uuid.UUID) (*Engagement, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.FirmID != user.FirmID {
		return nil, shared.ErrNotFound
	}
	if !access.BuildFilter(user, access.KindEngagement).Matches(e.ClientOwner) {
		return nil, authn.ErrForbidden
	}
	return e, nil
}

// CreateInput carries the caller-supplied fields for a new engagement.
type CreateInput struct {
	ClientID       uuid.UUID
	Name           string
	AssessmentYear string
	FilingDeadline *time.Time
}

// Create opens a new engagement in its initial status under the caller's
// firm. The client must be accessible to the caller.
func (s *Service) Create(ctx context.Context, user *authn.User, in CreateInput) (*Engagement, error) {
	e := &Engagement{
		ID:             uuid.New(),
		FirmID:         user.FirmID,
		ClientID:       in.ClientID,
		Name:           in.Name,
		AssessmentYear: in.AssessmentYear,
		Status:         workflow.EngagementNotStarted,
		FilingDeadline: in.FilingDeadline,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("engagement created",
		slog.String("engagement_id", e.ID.String()),
		slog.String("client_id", e.ClientID.String()),
		slog.String("actor_id", user.ID.String()))
	return e, nil
}

// Transition moves the engagement to the target status. A valid request by a
// non-approver on a gated edge returns RequiresApproval with the status
// unchanged.
func (s *Service) Transition(ctx context.Context, user *authn.User, id uuid.UUID, to workflow.Status, comment string) (workflow.Result, *Engagement, error) {
	e, err := s.Get(ctx, user, id)
	if err != nil {
		return workflow.Result{}, nil, err
	}

	req := workflow.TransitionRequest{
		EntityType: workflow.EntityEngagement,
		EntityID:   e.ID,
		FirmID:     e.FirmID,
		From:       e.Status,
		To:         to,
		ActorID:    user.ID,
		ActorRole:  user.Role,
		Comment:    comment,
	}
	res, err := s.flow.Execute(ctx, req, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.UpdateStatusTx(ctx, tx, e.ID, e.Status, to)
	})
	if err != nil {
		return res, nil, err
	}
	if res.Success && !res.RequiresApproval {
		e.Status = res.NewStatus
		s.notify(ctx, e, req.From, res.NewStatus, user.ID)
	}
	return res, e, nil
}

func (s *Service) notify(ctx context.Context, e *Engagement, from, to workflow.Status, actorID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.EnqueueWorkflowTransitioned(ctx, jobs.WorkflowTransitionedPayload{
		EntityType: string(workflow.EntityEngagement),
		EntityID:   e.ID.String(),
		EntityName: e.Name,
		FirmID:     e.FirmID.String(),
		From:       string(from),
		To:         string(to),
		ActorID:    actorID.String(),
	})
	if err != nil {
		// The transition is already committed; fan-out is best effort.
		s.logger.Warn("enqueue transition notification",
			slog.String("engagement_id", e.ID.String()),
			slog.Any("error", err))
	}
}

// AllowedTransitions lists the statuses the caller may request next.
func (s *Service) AllowedTransitions(ctx context.Context, user *authn.User, id uuid.UUID) ([]workflow.Status, error) {
	e, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.flow.Engine().AllowedTransitions(workflow.EntityEngagement, e.Status, user.Role), nil
}

// Progress reports the engagement's position along the standard progression.
func (s *Service) Progress(ctx context.Context, user *authn.User, id uuid.UUID) (int, error) {
	e, err := s.Get(ctx, user, id)
	if err != nil {
		return 0, err
	}
	return s.flow.Engine().Progress(workflow.EntityEngagement, e.Status), nil
}

// History returns the engagement's transition log, newest first.
func (s *Service) History(ctx context.Context, user *authn.User, id uuid.UUID, page, perPage int) ([]workflow.HistoryRecord, shared.Pagination, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, shared.Pagination{}, err
	}
	return s.flow.History().List(ctx, workflow.HistoryFilter{
		EntityType: workflow.EntityEngagement,
		EntityID:   id,
		Page:       page,
		PerPage:    perPage,
	})
}
