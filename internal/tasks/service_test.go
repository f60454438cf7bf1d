package tasks

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

type stubRepository struct {
	tasks map[uuid.UUID]*Task
}

func newStubRepository() *stubRepository {
	return &stubRepository{tasks: make(map[uuid.UUID]*Task)}
}

func (s *stubRepository) Get(_ context.Context, id uuid.UUID) (*Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *stubRepository) List(_ context.Context, filter access.Filter, _ ListRequest) ([]Task, shared.Pagination, error) {
	var out []Task
	for _, t := range s.tasks {
		if filter.Matches(t.Ownership()) {
			out = append(out, *t)
		}
	}
	return out, shared.NewPagination(1, 20, len(out)), nil
}

func (s *stubRepository) Create(_ context.Context, t *Task) error {
	s.tasks[t.ID] = t
	return nil
}

func (s *stubRepository) UpdateStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to workflow.Status) error {
	t, ok := s.tasks[id]
	if !ok {
		return shared.ErrNotFound
	}
	if t.Status != from {
		return ErrStaleStatus
	}
	t.Status = to
	return nil
}

func newGateService(repo Repository) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, workflow.NewTransitioner(nil, nil, logger), logger)
}

func seedTask(repo *stubRepository, firmID, assignee uuid.UUID, status workflow.Status) *Task {
	t := &Task{
		ID:           uuid.New(),
		FirmID:       firmID,
		Title:        "Collect intercompany agreements",
		Priority:     PriorityMedium,
		Status:       status,
		AssignedToID: assignee,
	}
	repo.tasks[t.ID] = t
	return t
}

func TestTodoCannotJumpToDone(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	assignee := uuid.New()
	task := seedTask(repo, firm, assignee, workflow.TaskTodo)

	svc := newGateService(repo)
	caller := &authn.User{ID: assignee, Role: rbac.RoleAssociate, FirmID: firm}

	_, _, err := svc.Transition(context.Background(), caller, task.ID, workflow.TaskDone, "")
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, workflow.TaskTodo, repo.tasks[task.ID].Status)
}

func TestAssigneeSeesOnlyOwnTasks(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	me := uuid.New()
	mine := seedTask(repo, firm, me, workflow.TaskInProgress)
	seedTask(repo, firm, uuid.New(), workflow.TaskTodo)

	svc := newGateService(repo)
	caller := &authn.User{ID: me, Role: rbac.RoleAssociate, FirmID: firm}

	items, _, err := svc.List(context.Background(), caller, ListRequest{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].ID)
}

func TestOperationsManagerMayCancel(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	task := seedTask(repo, firm, uuid.New(), workflow.TaskTodo)
	task.ReviewerID = uuid.New()

	svc := newGateService(repo)
	caller := &authn.User{ID: task.ReviewerID, Role: rbac.RoleOperationsManager, FirmID: firm}

	targets, err := svc.AllowedTransitions(context.Background(), caller, task.ID)
	require.NoError(t, err)
	assert.Contains(t, targets, workflow.TaskCancelled)
	assert.Contains(t, targets, workflow.TaskInProgress)
}

func TestProgressSkipsSideStatuses(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	me := uuid.New()
	blocked := seedTask(repo, firm, me, workflow.TaskBlocked)
	done := seedTask(repo, firm, me, workflow.TaskDone)

	svc := newGateService(repo)
	caller := &authn.User{ID: me, Role: rbac.RoleAssociate, FirmID: firm}

	p, err := svc.Progress(context.Background(), caller, blocked.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p)

	p, err = svc.Progress(context.Background(), caller, done.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, p)
}

func TestCreateDefaultsToTodoMedium(t *testing.T) {
	repo := newStubRepository()
	firm := uuid.New()
	svc := newGateService(repo)

	task, err := svc.Create(context.Background(),
		&authn.User{ID: uuid.New(), Role: rbac.RoleManager, FirmID: firm},
		CreateInput{Title: "Draft benchmarking note"})
	require.NoError(t, err)
	assert.Equal(t, workflow.TaskTodo, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, firm, task.FirmID)
}
