package documents

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

// ErrStaleStatus indicates the document's status changed since it was read.
var ErrStaleStatus = errors.New("documents: status changed concurrently")

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, filter access.Filter, req ListRequest) ([]Document, shared.Pagination, error)
	Create(ctx context.Context, d *Document) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to workflow.Status) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// Documents inherit scoping through engagement and client, so reads join both.
const documentSelect = `
SELECT d.id, d.firm_id, d.engagement_id, d.title, d.kind, d.status, d.version,
       d.created_at, d.updated_at,
       c.firm_id, c.assigned_to, c.reviewer_id
FROM documents d
JOIN engagements e ON e.id = d.engagement_id
JOIN clients c ON c.id = e.client_id`

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		d            Document
		kind, status string
		assigned     uuid.NullUUID
		reviewer     uuid.NullUUID
	)
	err := row.Scan(&d.ID, &d.FirmID, &d.EngagementID, &d.Title, &kind, &status, &d.Version,
		&d.CreatedAt, &d.UpdatedAt,
		&d.ClientOwner.FirmID, &assigned, &reviewer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	d.Kind = Kind(kind)
	d.Status = workflow.Status(status)
	d.ClientOwner.AssignedToID = assigned.UUID
	d.ClientOwner.ReviewerID = reviewer.UUID
	return &d, nil
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return scanDocument(r.pool.QueryRow(ctx, documentSelect+" WHERE d.id = $1", id))
}

func (r *pgRepository) List(ctx context.Context, filter access.Filter, req ListRequest) ([]Document, shared.Pagination, error) {
	var args []any
	// The filter renders against the engagements alias and resolves
	// ownership through the clients relation.
	conds := []string{filter.SQL("e", &args)}

	if req.EngagementID != uuid.Nil {
		args = append(args, req.EngagementID)
		conds = append(conds, fmt.Sprintf("d.engagement_id = $%d", len(args)))
	}
	if req.Kind != "" {
		args = append(args, string(req.Kind))
		conds = append(conds, fmt.Sprintf("d.kind = $%d", len(args)))
	}
	if req.Status != "" {
		args = append(args, string(req.Status))
		conds = append(conds, fmt.Sprintf("d.status = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM documents d
JOIN engagements e ON e.id = d.engagement_id
JOIN clients c ON c.id = e.client_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("documents: count: %w", err)
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf("%s%s ORDER BY d.updated_at DESC LIMIT $%d OFFSET $%d",
		documentSelect, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("documents: list: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("documents: scan: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("documents: list: %w", err)
	}
	return out, page, nil
}

func (r *pgRepository) Create(ctx context.Context, d *Document) error {
	err := r.pool.QueryRow(ctx, `
INSERT INTO documents (id, firm_id, engagement_id, title, kind, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW())
RETURNING version, created_at, updated_at`,
		d.ID, d.FirmID, d.EngagementID, d.Title, string(d.Kind), string(d.Status),
	).Scan(&d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documents: create: %w", err)
	}
	return nil
}

// UpdateStatusTx moves the status inside the caller's transaction. Returning
// to DRAFT bumps the version so rework produces a new revision.
func (r *pgRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to workflow.Status) error {
	bump := 0
	if to == workflow.DocumentDraft {
		bump = 1
	}
	tag, err := tx.Exec(ctx,
		`UPDATE documents SET status = $3, version = version + $4, updated_at = NOW() WHERE id = $1 AND status = $2`,
		id, string(from), string(to), bump)
	if err != nil {
		return fmt.Errorf("documents: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleStatus
	}
	return nil
}
