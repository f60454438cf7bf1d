package workflow

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/triline/triline/internal/platform/db"
)

// TransitionObserver counts executed transitions. Satisfied by the
// observability metrics.
type TransitionObserver interface {
	ObserveTransition(entityType, to string)
}

// Transitioner executes transitions with the status write and its history
// entry committed in a single transaction. Entity services supply the status
// update; everything else follows the engine's protocol.
type Transitioner struct {
	engine   *Engine
	pool     *pgxpool.Pool
	history  *PGHistoryStore
	observer TransitionObserver
}

func NewTransitioner(pool *pgxpool.Pool, history *PGHistoryStore, logger *slog.Logger) *Transitioner {
	return &Transitioner{
		engine:  NewEngine(DefaultTables(), nil, logger),
		pool:    pool,
		history: history,
	}
}

// SetObserver installs a transition counter. Nil disables counting.
func (t *Transitioner) SetObserver(obs TransitionObserver) {
	t.observer = obs
}

// Engine exposes the underlying engine for validation-only queries.
func (t *Transitioner) Engine() *Engine {
	return t.engine
}

// History exposes the history store for timeline reads.
func (t *Transitioner) History() *PGHistoryStore {
	return t.history
}

// Execute validates the request and, unless it is held for approval, runs
// update and the history append inside one transaction. A failed update rolls
// back the history entry and vice versa.
func (t *Transitioner) Execute(ctx context.Context, req TransitionRequest, update func(ctx context.Context, tx pgx.Tx) error) (Result, error) {
	res, err := t.engine.ExecuteTransition(ctx, req, func(ctx context.Context) error {
		return db.WithTx(ctx, t.pool, func(tx pgx.Tx) error {
			if err := update(ctx, tx); err != nil {
				return err
			}
			return t.history.AppendTx(ctx, tx, HistoryRecord{
				EntityType: req.EntityType,
				EntityID:   req.EntityID,
				FirmID:     req.FirmID,
				From:       req.From,
				To:         req.To,
				ActorID:    req.ActorID,
				Comment:    req.Comment,
			})
		})
	})
	if err == nil && res.Success && !res.RequiresApproval && t.observer != nil {
		t.observer.ObserveTransition(string(req.EntityType), string(req.To))
	}
	return res, err
}
