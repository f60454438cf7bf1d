package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

// Service applies access scoping and drives the task workflow.
type Service struct {
	repo   Repository
	flow   *workflow.Transitioner
	logger *slog.Logger
}

func NewService(repo Repository, flow *workflow.Transitioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, flow: flow, logger: logger}
}

// List returns the tasks visible to the caller.
func (s *Service) List(ctx context.Context, user *authn.User, req ListRequest) ([]Task, shared.Pagination, error) {
	filter := access.BuildFilter(user, access.KindClient)
	return s.repo.List(ctx, filter, req)
}

// Get fetches one task with the standard masking rule.
func (s *Service) Get(ctx context.Context, user *authn.User, id uuid.UUID) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.FirmID != user.FirmID {
		return nil, shared.ErrNotFound
	}
	if !access.CanAccessRecord(user, t.Ownership()) {
		return nil, authn.ErrForbidden
	}
	return t, nil
}

// CreateInput carries the caller-supplied fields for a new task.
type CreateInput struct {
	EngagementID uuid.UUID
	Title        string
	Description  string
	Priority     Priority
	AssignedToID uuid.UUID
	ReviewerID   uuid.UUID
	DueDate      *time.Time
}

// Create opens a task in TODO under the caller's firm.
func (s *Service) Create(ctx context.Context, user *authn.User, in CreateInput) (*Task, error) {
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	t := &Task{
		ID:           uuid.New(),
		FirmID:       user.FirmID,
		EngagementID: in.EngagementID,
		Title:        in.Title,
		Description:  in.Description,
		Priority:     priority,
		Status:       workflow.TaskTodo,
		AssignedToID: in.AssignedToID,
		ReviewerID:   in.ReviewerID,
		DueDate:      in.DueDate,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		slog.String("task_id", t.ID.String()),
		slog.String("actor_id", user.ID.String()))
	return t, nil
}

// Transition moves the task to the target status. No task edge is
// approval-gated, so a valid request always applies.
func (s *Service) Transition(ctx context.Context, user *authn.User, id uuid.UUID, to workflow.Status, comment string) (workflow.Result, *Task, error) {
	t, err := s.Get(ctx, user, id)
	if err != nil {
		return workflow.Result{}, nil, err
	}

	req := workflow.TransitionRequest{
		EntityType: workflow.EntityTask,
		EntityID:   t.ID,
		FirmID:     t.FirmID,
		From:       t.Status,
		To:         to,
		ActorID:    user.ID,
		ActorRole:  user.Role,
		Comment:    comment,
	}
	res, err := s.flow.Execute(ctx, req, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.UpdateStatusTx(ctx, tx, t.ID, t.Status, to)
	})
	if err != nil {
		return res, nil, err
	}
	if res.Success && !res.RequiresApproval {
		t.Status = res.NewStatus
	}
	return res, t, nil
}

// AllowedTransitions lists the statuses the caller may request next.
func (s *Service) AllowedTransitions(ctx context.Context, user *authn.User, id uuid.UUID) ([]workflow.Status, error) {
	t, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.flow.Engine().AllowedTransitions(workflow.EntityTask, t.Status, user.Role), nil
}

// Progress reports the task's position along the standard progression.
// Blocked and cancelled tasks report zero.
func (s *Service) Progress(ctx context.Context, user *authn.User, id uuid.UUID) (int, error) {
	t, err := s.Get(ctx, user, id)
	if err != nil {
		return 0, err
	}
	return s.flow.Engine().Progress(workflow.EntityTask, t.Status), nil
}
