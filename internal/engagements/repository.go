package engagements

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

// ErrStaleStatus indicates the engagement's status changed since it was read.
var ErrStaleStatus = errors.New("engagements: status changed concurrently")

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Engagement, error)
	List(ctx context.Context, filter access.Filter, req ListRequest) ([]Engagement, shared.Pagination, error)
	Create(ctx context.Context, e *Engagement) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to workflow.Status) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const engagementSelect = `
SELECT e.id, e.firm_id, e.client_id, e.name, e.assessment_year, e.status,
       e.filing_deadline, e.created_at, e.updated_at,
       c.firm_id, c.assigned_to, c.reviewer_id
FROM engagements e
JOIN clients c ON c.id = e.client_id`

func scanEngagement(row pgx.Row) (*Engagement, error) {
	var (
		e        Engagement
		status   string
		assigned uuid.NullUUID
		reviewer uuid.NullUUID
	)
	err := row.Scan(&e.ID, &e.FirmID, &e.ClientID, &e.Name, &e.AssessmentYear, &status,
		&e.FilingDeadline, &e.CreatedAt, &e.UpdatedAt,
		&e.ClientOwner.FirmID, &assigned, &reviewer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	e.Status = workflow.Status(status)
	e.ClientOwner.AssignedToID = assigned.UUID
	e.ClientOwner.ReviewerID = reviewer.UUID
	return &e, nil
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Engagement, error) {
	return scanEngagement(r.pool.QueryRow(ctx, engagementSelect+" WHERE e.id = $1", id))
}

func (r *pgRepository) List(ctx context.Context, filter access.Filter, req ListRequest) ([]Engagement, shared.Pagination, error) {
	var args []any
	conds := []string{filter.SQL("e", &args)}

	if req.ClientID != uuid.Nil {
		args = append(args, req.ClientID)
		conds = append(conds, fmt.Sprintf("e.client_id = $%d", len(args)))
	}
	if req.Status != "" {
		args = append(args, string(req.Status))
		conds = append(conds, fmt.Sprintf("e.status = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM engagements e JOIN clients c ON c.id = e.client_id" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("engagements: count: %w", err)
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf("%s%s ORDER BY e.filing_deadline NULLS LAST, e.name LIMIT $%d OFFSET $%d",
		engagementSelect, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("engagements: list: %w", err)
	}
	defer rows.Close()

	var out []Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("engagements: scan: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("engagements: list: %w", err)
	}
	return out, page, nil
}

func (r *pgRepository) Create(ctx context.Context, e *Engagement) error {
	err := r.pool.QueryRow(ctx, `
INSERT INTO engagements (id, firm_id, client_id, name, assessment_year, status, filing_deadline, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING created_at, updated_at`,
		e.ID, e.FirmID, e.ClientID, e.Name, e.AssessmentYear, string(e.Status), e.FilingDeadline,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("engagements: create: %w", err)
	}
	return nil
}

// UpdateStatusTx moves the status inside the caller's transaction. The WHERE
// clause pins the expected prior status so concurrent transitions cannot
// double-apply.
func (r *pgRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to workflow.Status) error {
	tag, err := tx.Exec(ctx,
		`UPDATE engagements SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("engagements: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}
