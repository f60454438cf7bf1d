package documents

import (
	"context"
	"log/slog"

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

// Service applies access scoping and drives the document workflow.
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

// List returns the documents visible to the caller.
func (s *Service) List(ctx context.Context, user *authn.User, req ListRequest) ([]Document, shared.Pagination, error) {
	filter := access.BuildFilter(user, access.KindEngagement)
	return s.repo.List(ctx, filter, req)
}

// Get fetches one document with the same masking rule as engagements.
func (s *Service) Get(ctx context.Context, user *authn.User, id uuid.UUID) (*Document, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.FirmID != user.FirmID {
		return nil, shared.ErrNotFound
	}
	if !access.BuildFilter(user, access.KindEngagement).Matches(d.ClientOwner) {
		return nil, authn.ErrForbidden
	}
	return d, nil
}

// CreateInput carries the caller-supplied fields for a new document.
type CreateInput struct {
	EngagementID uuid.UUID
	Title        string
	Kind         Kind
}

// Create registers a deliverable in DRAFT under the caller's firm.
func (s *Service) Create(ctx context.Context, user *authn.User, in CreateInput) (*Document, error) {
	d := &Document{
		ID:           uuid.New(),
		FirmID:       user.FirmID,
		EngagementID: in.EngagementID,
		Title:        in.Title,
		Kind:         in.Kind,
		Status:       workflow.DocumentDraft,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("document created",
		slog.String("document_id", d.ID.String()),
		slog.String("engagement_id", d.EngagementID.String()),
		slog.String("kind", string(d.Kind)),
		slog.String("actor_id", user.ID.String()))
	return d, nil
}

// Transition moves the document to the target status under the document
// workflow rules.
func (s *Service) Transition(ctx context.Context, user *authn.User, id uuid.UUID, to workflow.Status, comment string) (workflow.Result, *Document, error) {
	d, err := s.Get(ctx, user, id)
	if err != nil {
		return workflow.Result{}, nil, err
	}

	req := workflow.TransitionRequest{
		EntityType: workflow.EntityDocument,
		EntityID:   d.ID,
		FirmID:     d.FirmID,
		From:       d.Status,
		To:         to,
		ActorID:    user.ID,
		ActorRole:  user.Role,
		Comment:    comment,
	}
	res, err := s.flow.Execute(ctx, req, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.UpdateStatusTx(ctx, tx, d.ID, d.Status, to)
	})
	if err != nil {
		return res, nil, err
	}
	if res.Success && !res.RequiresApproval {
		d.Status = res.NewStatus
		s.notify(ctx, d, req.From, res.NewStatus, user.ID)
	}
	return res, d, nil
}

func (s *Service) notify(ctx context.Context, d *Document, from, to workflow.Status, actorID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	_, err := s.notifier.EnqueueWorkflowTransitioned(ctx, jobs.WorkflowTransitionedPayload{
		EntityType: string(workflow.EntityDocument),
		EntityID:   d.ID.String(),
		EntityName: d.Title,
		FirmID:     d.FirmID.String(),
		From:       string(from),
		To:         string(to),
		ActorID:    actorID.String(),
	})
	if err != nil {
		s.logger.Warn("enqueue transition notification",
			slog.String("document_id", d.ID.String()),
			slog.Any("error", err))
	}
}

// AllowedTransitions lists the statuses the caller may request next.
func (s *Service) AllowedTransitions(ctx context.Context, user *authn.User, id uuid.UUID) ([]workflow.Status, error) {
	d, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.flow.Engine().AllowedTransitions(workflow.EntityDocument, d.Status, user.Role), nil
}

// History returns the document's transition log, newest first.
func (s *Service) History(ctx context.Context, user *authn.User, id uuid.UUID, page, perPage int) ([]workflow.HistoryRecord, shared.Pagination, error) {
	if _, err := s.Get(ctx, user, id); err != nil {
		return nil, shared.Pagination{}, err
	}
	return s.flow.History().List(ctx, workflow.HistoryFilter{
		EntityType: workflow.EntityDocument,
		EntityID:   id,
		Page:       page,
		PerPage:    perPage,
	})
}
