package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triline/triline/internal/shared"
)

// HistoryFilter narrows a history listing. Zero values mean "any".
type HistoryFilter struct {
	FirmID     uuid.UUID
	EntityType EntityType
	EntityID   uuid.UUID
	ActorID    uuid.UUID
	From       time.Time
	To         time.Time
	Page       int
	PerPage    int
}

const historyColumns = `id, entity_type, entity_id, firm_id, from_status, to_status, actor_id, comment, at`

// PGHistoryStore persists transition history in the workflow_history table.
type PGHistoryStore struct {
	pool *pgxpool.Pool
}

func NewPGHistoryStore(pool *pgxpool.Pool) *PGHistoryStore {
	return &PGHistoryStore{pool: pool}
}

const insertHistory = `
INSERT INTO workflow_history (entity_type, entity_id, firm_id, from_status, to_status, actor_id, comment, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

// Append records one executed transition.
func (s *PGHistoryStore) Append(ctx context.Context, rec HistoryRecord) error {
	_, err := s.pool.Exec(ctx, insertHistory,
		string(rec.EntityType), rec.EntityID, rec.FirmID, string(rec.From), string(rec.To),
		rec.ActorID, rec.Comment)
	if err != nil {
		return fmt.Errorf("workflow: append history: %w", err)
	}
	return nil
}

// AppendTx records the transition inside the caller's transaction so the
// status write and its history entry commit or roll back together.
func (s *PGHistoryStore) AppendTx(ctx context.Context, tx pgx.Tx, rec HistoryRecord) error {
	_, err := tx.Exec(ctx, insertHistory,
		string(rec.EntityType), rec.EntityID, rec.FirmID, string(rec.From), string(rec.To),
		rec.ActorID, rec.Comment)
	if err != nil {
		return fmt.Errorf("workflow: append history: %w", err)
	}
	return nil
}

// List returns history entries newest first, with pagination metadata.
func (s *PGHistoryStore) List(ctx context.Context, filter HistoryFilter) ([]HistoryRecord, shared.Pagination, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.FirmID != uuid.Nil {
		add("firm_id = $%d", filter.FirmID)
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", string(filter.EntityType))
	}
	if filter.EntityID != uuid.Nil {
		add("entity_id = $%d", filter.EntityID)
	}
	if filter.ActorID != uuid.Nil {
		add("actor_id = $%d", filter.ActorID)
	}
	if !filter.From.IsZero() {
		add("at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("at < $%d", filter.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM workflow_history"+where, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("workflow: count history: %w", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf("SELECT %s FROM workflow_history%s ORDER BY at DESC, id DESC LIMIT $%d OFFSET $%d",
		historyColumns, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("workflow: list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var (
			rec          HistoryRecord
			entityType   string
			fromS, toS   string
		)
		if err := rows.Scan(&rec.ID, &entityType, &rec.EntityID, &rec.FirmID, &fromS, &toS, &rec.ActorID, &rec.Comment, &rec.At); err != nil {
			return nil, shared.Pagination{}, fmt.Errorf("workflow: scan history: %w", err)
		}
		rec.EntityType = EntityType(entityType)
		rec.From = Status(fromS)
		rec.To = Status(toS)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("workflow: list history: %w", err)
	}
	return out, page, nil
}
