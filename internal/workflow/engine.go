package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/triline/triline/internal/rbac"
)

// ApplyFunc persists the status change on the governed entity. It runs only
// after the engine has validated the transition and resolved the approval
// gate.
type ApplyFunc func(ctx context.Context) error

// HistoryStore records executed transitions. Append is called exactly once
// per applied transition, after the apply step succeeded.
type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error
}

// Engine validates and executes status transitions against a fixed set of
// tables.
type Engine struct {
	tables  map[EntityType]Table
	history HistoryStore
	logger  *slog.Logger
}

func NewEngine(tables map[EntityType]Table, history HistoryStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tables: tables, history: history, logger: logger}
}

// NewDefaultEngine builds an engine over the shipped tables.
func NewDefaultEngine(history HistoryStore, logger *slog.Logger) *Engine {
	return NewEngine(DefaultTables(), history, logger)
}

// Table returns the transition table for the given entity type.
func (e *Engine) Table(entity EntityType) (Table, bool) {
	t, ok := e.tables[entity]
	return t, ok
}

func (e *Engine) find(entity EntityType, from, to Status) (Transition, Decision) {
	table, ok := e.tables[entity]
	if !ok {
		return Transition{}, Decision{
			Reason: fmt.Sprintf("no workflow defined for entity type %q", entity),
			Err:    ErrUnknownEntityType,
		}
	}
	for _, tr := range table.Transitions {
		if tr.From == from && tr.To == to {
			return tr, Decision{Allowed: true}
		}
	}
	return Transition{}, Decision{
		Reason: fmt.Sprintf("no transition from %s to %s", from, to),
		Err:    ErrInvalidTransition,
	}
}

// CanTransition validates the request without executing it. The returned
// Decision carries a diagnostic reason on denial.
func (e *Engine) CanTransition(req TransitionRequest) Decision {
	_, dec := e.CanTransitionEdge(req)
	return dec
}

// AllowedTransitions lists the target statuses the given role may request
// from the current status. Approval-gated edges are included for any role in
// the allowed set; initiating without approval authority is a valid request.
func (e *Engine) AllowedTransitions(entity EntityType, from Status, role rbac.Role) []Status {
	table, ok := e.tables[entity]
	if !ok {
		return nil
	}
	var out []Status
	for _, tr := range table.Transitions {
		if tr.From == from && tr.roleAllowed(role) {
			out = append(out, tr.To)
		}
	}
	return out
}

// ExecuteTransition runs the full transition protocol: validate, resolve the
// approval gate, apply, then audit. When the actor lacks approval authority
// on a gated edge the entity keeps its current status and nothing is applied
// or recorded.
func (e *Engine) ExecuteTransition(ctx context.Context, req TransitionRequest, apply ApplyFunc) (Result, error) {
	tr, dec := e.CanTransitionEdge(req)
	if !dec.Allowed {
		return Result{NewStatus: req.From}, fmt.Errorf("%w: %s", dec.Err, dec.Reason)
	}

	if tr.RequiresApproval && !tr.roleApproves(req.ActorRole) {
		e.logger.Info("transition held for approval",
			slog.String("entity_type", string(req.EntityType)),
			slog.String("entity_id", req.EntityID.String()),
			slog.String("from", string(req.From)),
			slog.String("to", string(req.To)),
			slog.String("role", string(req.ActorRole)))
		return Result{Success: true, NewStatus: req.From, RequiresApproval: true}, nil
	}

	if err := apply(ctx); err != nil {
		return Result{NewStatus: req.From}, fmt.Errorf("apply transition: %w", err)
	}

	if e.history != nil {
		rec := HistoryRecord{
			EntityType: req.EntityType,
			EntityID:   req.EntityID,
			FirmID:     req.FirmID,
			From:       req.From,
			To:         req.To,
			ActorID:    req.ActorID,
			Comment:    req.Comment,
		}
		if err := e.history.Append(ctx, rec); err != nil {
			e.logger.Error("transition applied but history append failed",
				slog.String("entity_type", string(req.EntityType)),
				slog.String("entity_id", req.EntityID.String()),
				slog.Any("error", err))
			return Result{NewStatus: req.To}, fmt.Errorf("record transition: %w", err)
		}
	}

	return Result{Success: true, NewStatus: req.To}, nil
}

// CanTransitionEdge is CanTransition plus the matched edge, for callers that
// need the approval metadata.
func (e *Engine) CanTransitionEdge(req TransitionRequest) (Transition, Decision) {
	tr, dec := e.find(req.EntityType, req.From, req.To)
	if !dec.Allowed {
		return Transition{}, dec
	}
	if !tr.roleAllowed(req.ActorRole) {
		return Transition{}, Decision{
			Reason: fmt.Sprintf("role %s may not move %s from %s to %s",
				req.ActorRole, req.EntityType, req.From, req.To),
			Err: ErrRoleNotAllowed,
		}
	}
	return tr, Decision{Allowed: true}
}

// IsTerminal reports whether the status has no outgoing edges in the entity's
// table. Unknown entity types and unknown statuses are terminal.
func (e *Engine) IsTerminal(entity EntityType, status Status) bool {
	table, ok := e.tables[entity]
	if !ok {
		return true
	}
	for _, tr := range table.Transitions {
		if tr.From == status {
			return false
		}
	}
	return true
}

// Progression returns the display ordering for the entity type.
func (e *Engine) Progression(entity EntityType) []Status {
	return e.tables[entity].Progression
}

// Progress maps a status onto a 0..100 percentage along the entity's
// progression. Statuses outside the progression, such as BLOCKED or
// CANCELLED, report zero.
func (e *Engine) Progress(entity EntityType, status Status) int {
	prog := e.tables[entity].Progression
	if len(prog) < 2 {
		return 0
	}
	for i, s := range prog {
		if s == status {
			return int(math.Round(float64(i) / float64(len(prog)-1) * 100))
		}
	}
	return 0
}
