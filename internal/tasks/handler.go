package tasks

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/platform/httpx"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

// Handler wires HTTP endpoints for tasks.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        *authn.Middleware
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, mw *authn.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		mw:        mw,
		validator: validator.New(),
	}
}

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	read := h.mw.RequirePermission(rbac.ResourceTasks, rbac.ActionRead)
	r.With(read).Get("/", h.handleList)
	r.With(h.mw.RequirePermission(rbac.ResourceTasks, rbac.ActionCreate)).Post("/", h.handleCreate)
	r.With(read).Get("/{id}", h.handleGet)
	r.With(read).Get("/{id}/transitions", h.handleAllowedTransitions)
	r.With(h.mw.RequirePermission(rbac.ResourceTasks, rbac.ActionUpdate)).Post("/{id}/transitions", h.handleTransition)
}

type createRequest struct {
	EngagementID string `json:"engagement_id" validate:"omitempty,uuid4"`
	Title        string `json:"title" validate:"required,min=2,max=200"`
	Description  string `json:"description" validate:"max=4000"`
	Priority     string `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssignedToID string `json:"assigned_to_id" validate:"omitempty,uuid4"`
	ReviewerID   string `json:"reviewer_id" validate:"omitempty,uuid4"`
	DueDate      string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type transitionRequest struct {
	To      string `json:"to" validate:"required,max=32"`
	Comment string `json:"comment" validate:"max=1000"`
}

type taskResponse struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	AssignedToID string `json:"assigned_to_id,omitempty"`
	ReviewerID   string `json:"reviewer_id,omitempty"`
	DueDate      string `json:"due_date,omitempty"`
}

func (h *Handler) toResponse(t Task) taskResponse {
	resp := taskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Progress:    h.service.flow.Engine().Progress(workflow.EntityTask, t.Status),
	}
	if t.EngagementID != uuid.Nil {
		resp.EngagementID = t.EngagementID.String()
	}
	if t.AssignedToID != uuid.Nil {
		resp.AssignedToID = t.AssignedToID.String()
	}
	if t.ReviewerID != uuid.Nil {
		resp.ReviewerID = t.ReviewerID.String()
	}
	if t.DueDate != nil {
		resp.DueDate = t.DueDate.Format("2006-01-02")
	}
	return resp
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	req := ListRequest{Status: workflow.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("engagement_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid engagement id")
			return
		}
		req.EngagementID = id
	}
	req.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	req.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	items, page, err := h.service.List(r.Context(), user, req)
	if err != nil {
		h.logger.Error("list tasks", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	out := make([]taskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, h.toResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":       out,
		"page":        page.Page,
		"per_page":    page.PerPage,
		"total":       page.Total,
		"total_pages": page.TotalPages,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*t))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	in := CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    Priority(req.Priority),
	}
	if req.EngagementID != "" {
		in.EngagementID, _ = uuid.Parse(req.EngagementID)
	}
	if req.AssignedToID != "" {
		in.AssignedToID, _ = uuid.Parse(req.AssignedToID)
	}
	if req.ReviewerID != "" {
		in.ReviewerID, _ = uuid.Parse(req.ReviewerID)
	}
	if req.DueDate != "" {
		due, _ := time.Parse("2006-01-02", req.DueDate)
		in.DueDate = &due
	}

	t, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(*t))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	res, t, err := h.service.Transition(r.Context(), user, id, workflow.Status(req.To), req.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": res.Success,
		"task":    h.toResponse(*t),
	})
}

func (h *Handler) handleAllowedTransitions(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	targets, err := h.service.AllowedTransitions(r.Context(), user, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]string, 0, len(targets))
	for _, s := range targets {
		out = append(out, string(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transitions": out})
}

func (h *Handler) principalAndID(w http.ResponseWriter, r *http.Request) (*authn.User, uuid.UUID, bool) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return nil, uuid.Nil, false
	}
	return user, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "task not found")
	case errors.Is(err, authn.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "task is outside your assignments")
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrUnknownEntityType):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, workflow.ErrRoleNotAllowed):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrStaleStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", "task status changed, reload and retry")
	default:
		h.logger.Error("tasks request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
