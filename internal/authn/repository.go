package authn

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triline/triline/internal/shared"
)

// Repository defines persistence operations for the authentication gate.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `u.id, u.email, u.name, u.role, u.password_hash, u.is_active,
COALESCE(u.firm_id, '00000000-0000-0000-0000-000000000000'::uuid), COALESCE(f.name, ''),
u.created_at, u.updated_at`

// FindByEmail fetches an account with its firm by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+`
FROM users u LEFT JOIN firms f ON f.id = u.firm_id
WHERE lower(u.email) = lower($1)`, email)
	return scanAccount(row)
}

// FindByID fetches an account with its firm by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+`
FROM users u LEFT JOIN firms f ON f.id = u.firm_id
WHERE u.id = $1`, id)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		acc                  Account
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&acc.ID, &acc.Email, &acc.Name, &acc.Role, &acc.PasswordHash, &acc.IsActive,
		&acc.FirmID, &acc.FirmName, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	acc.CreatedAt = createdAt.Time
	acc.UpdatedAt = updatedAt.Time
	return &acc, nil
}

// CreateSession records a login session for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `INSERT INTO sessions (id, user_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`, id, userID, now, expiresAt.UTC(), ip, ua)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}
