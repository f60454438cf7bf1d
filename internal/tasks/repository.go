package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

// ErrStaleStatus indicates the task's status changed since it was read.
var ErrStaleStatus = errors.New("tasks: status changed concurrently")

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context, filter access.Filter, req ListRequest) ([]Task, shared.Pagination, error)
	Create(ctx context.Context, t *Task) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to workflow.Status) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const taskSelect = `
SELECT t.id, t.firm_id, t.engagement_id, t.title, t.description, t.priority,
       t.status, t.assigned_to, t.reviewer_id, t.due_date, t.created_at, t.updated_at
FROM tasks t`

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t                  Task
		priority, status   string
		engagement         uuid.NullUUID
		assigned, reviewer uuid.NullUUID
	)
	err := row.Scan(&t.ID, &t.FirmID, &engagement, &t.Title, &t.Description, &priority,
		&status, &assigned, &reviewer, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	t.EngagementID = engagement.UUID
	t.Priority = Priority(priority)
	t.Status = workflow.Status(status)
	t.AssignedToID = assigned.UUID
	t.ReviewerID = reviewer.UUID
	return &t, nil
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return scanTask(r.pool.QueryRow(ctx, taskSelect+" WHERE t.id = $1", id))
}

func (r *pgRepository) List(ctx context.Context, filter access.Filter, req ListRequest) ([]Task, shared.Pagination, error) {
	var args []any
	conds := []string{filter.SQL("t", &args)}

	if req.EngagementID != uuid.Nil {
		args = append(args, req.EngagementID)
		conds = append(conds, fmt.Sprintf("t.engagement_id = $%d", len(args)))
	}
	if req.Status != "" {
		args = append(args, string(req.Status))
		conds = append(conds, fmt.Sprintf("t.status = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tasks t"+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("tasks: count: %w", err)
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf("%s%s ORDER BY t.due_date NULLS LAST, t.created_at LIMIT $%d OFFSET $%d",
		taskSelect, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("tasks: scan: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("tasks: list: %w", err)
	}
	return out, page, nil
}

func (r *pgRepository) Create(ctx context.Context, t *Task) error {
	err := r.pool.QueryRow(ctx, `
INSERT INTO tasks (id, firm_id, engagement_id, title, description, priority, status,
                   assigned_to, reviewer_id, due_date, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, '00000000-0000-0000-0000-000000000000'::uuid), $4, $5, $6, $7,
        NULLIF($8, '00000000-0000-0000-0000-000000000000'::uuid),
        NULLIF($9, '00000000-0000-0000-0000-000000000000'::uuid), $10, NOW(), NOW())
RETURNING created_at, updated_at`,
		t.ID, t.FirmID, t.EngagementID, t.Title, t.Description, string(t.Priority), string(t.Status),
		t.AssignedToID, t.ReviewerID, t.DueDate,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tasks: create: %w", err)
	}
	return nil
}

func (r *pgRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to workflow.Status) error {
	tag, err := tx.Exec(ctx,
		`UPDATE tasks SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("tasks: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}
