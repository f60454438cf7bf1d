package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triline/triline/internal/access"
	"github.com/triline/triline/internal/shared"
)

// ErrDuplicateTaxID indicates another client of the firm already carries the
// tax identifier.
var ErrDuplicateTaxID = errors.New("clients: duplicate tax id")

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Client, error)
	List(ctx context.Context, filter access.Filter, req ListRequest) ([]Client, shared.Pagination, error)
	Create(ctx context.Context, c *Client) error
	Update(ctx context.Context, c *Client) error
	Archive(ctx context.Context, id uuid.UUID) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const clientColumns = `id, firm_id, name, tax_id, jurisdiction, industry, assigned_to, reviewer_id, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var (
		c        Client
		assigned uuid.NullUUID
		reviewer uuid.NullUUID
	)
	err := row.Scan(&c.ID, &c.FirmID, &c.Name, &c.TaxID, &c.Jurisdiction, &c.Industry,
		&assigned, &reviewer, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	c.AssignedToID = assigned.UUID
	c.ReviewerID = reviewer.UUID
	return &c, nil
}

func (r *pgRepository) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM clients WHERE id = $1", clientColumns), id)
	return scanClient(row)
}

func (r *pgRepository) List(ctx context.Context, filter access.Filter, req ListRequest) ([]Client, shared.Pagination, error) {
	var args []any
	conds := []string{filter.SQL("cl", &args)}

	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(cl.name ILIKE $%d OR cl.tax_id ILIKE $%d)", n, n))
	}
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		conds = append(conds, fmt.Sprintf("cl.is_active = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clients cl"+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("clients: count: %w", err)
	}

	page := shared.NewPagination(req.Page, req.PerPage, total)
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf("SELECT %s FROM clients cl%s ORDER BY cl.name LIMIT $%d OFFSET $%d",
		clientColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("clients: list: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("clients: scan: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("clients: list: %w", err)
	}
	return out, page, nil
}

func (r *pgRepository) Create(ctx context.Context, c *Client) error {
	err := r.pool.QueryRow(ctx, `
INSERT INTO clients (id, firm_id, name, tax_id, jurisdiction, industry, assigned_to, reviewer_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '00000000-0000-0000-0000-000000000000'::uuid), NULLIF($8, '00000000-0000-0000-0000-000000000000'::uuid), TRUE, NOW(), NOW())
RETURNING created_at, updated_at`,
		c.ID, c.FirmID, c.Name, c.TaxID, c.Jurisdiction, c.Industry, c.AssignedToID, c.ReviewerID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTaxID
		}
		return fmt.Errorf("clients: create: %w", err)
	}
	c.IsActive = true
	return nil
}

func (r *pgRepository) Update(ctx context.Context, c *Client) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE clients SET name = $2, tax_id = $3, jurisdiction = $4, industry = $5,
assigned_to = NULLIF($6, '00000000-0000-0000-0000-000000000000'::uuid),
reviewer_id = NULLIF($7, '00000000-0000-0000-0000-000000000000'::uuid),
updated_at = NOW()
WHERE id = $1`,
		c.ID, c.Name, c.TaxID, c.Jurisdiction, c.Industry, c.AssignedToID, c.ReviewerID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTaxID
		}
		return fmt.Errorf("clients: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) Archive(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clients: archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
