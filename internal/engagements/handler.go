package engagements

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

// Handler wires HTTP endpoints for engagements and their workflow.
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

// MountRoutes registers engagement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	read := h.mw.RequirePermission(rbac.ResourceEngagements, rbac.ActionRead)
	r.With(read).Get("/", h.handleList)
	r.With(h.mw.RequirePermission(rbac.ResourceEngagements, rbac.ActionCreate)).Post("/", h.handleCreate)
	r.With(read).Get("/{id}", h.handleGet)
	r.With(read).Get("/{id}/transitions", h.handleAllowedTransitions)
	r.With(h.mw.RequirePermission(rbac.ResourceEngagements, rbac.ActionUpdate)).Post("/{id}/transitions", h.handleTransition)
	r.With(read).Get("/{id}/history", h.handleHistory)
}

type createRequest struct {
	ClientID       string `json:"client_id" validate:"required,uuid4"`
	Name           string `json:"name" validate:"required,min=2,max=200"`
	AssessmentYear string `json:"assessment_year" validate:"required,max=16"`
	FilingDeadline string `json:"filing_deadline" validate:"omitempty,datetime=2006-01-02"`
}

type transitionRequest struct {
	To      string `json:"to" validate:"required,max=32"`
	Comment string `json:"comment" validate:"max=1000"`
}

type engagementResponse struct {
	ID             string `json:"id"`
	ClientID       string `json:"client_id"`
	Name           string `json:"name"`
	AssessmentYear string `json:"assessment_year"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	FilingDeadline string `json:"filing_deadline,omitempty"`
	Terminal       bool   `json:"terminal"`
}

type transitionResponse struct {
	Success          bool   `json:"success"`
	Status           string `json:"status"`
	RequiresApproval bool   `json:"requires_approval"`
}

func (h *Handler) toResponse(e Engagement) engagementResponse {
	engine := h.service.flow.Engine()
	resp := engagementResponse{
		ID:             e.ID.String(),
		ClientID:       e.ClientID.String(),
		Name:           e.Name,
		AssessmentYear: e.AssessmentYear,
		Status:         string(e.Status),
		Progress:       engine.Progress(workflow.EntityEngagement, e.Status),
		Terminal:       engine.IsTerminal(workflow.EntityEngagement, e.Status),
	}
	if e.FilingDeadline != nil {
		resp.FilingDeadline = e.FilingDeadline.Format("2006-01-02")
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
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
			return
		}
		req.ClientID = id
	}
	req.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	req.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	items, page, err := h.service.List(r.Context(), user, req)
	if err != nil {
		h.logger.Error("list engagements", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	resp := struct {
		Items      []engagementResponse `json:"items"`
		Page       int                  `json:"page"`
		PerPage    int                  `json:"per_page"`
		Total      int                  `json:"total"`
		TotalPages int                  `json:"total_pages"`
	}{
		Items:      make([]engagementResponse, 0, len(items)),
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
	for _, e := range items {
		resp.Items = append(resp.Items, h.toResponse(e))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*e))
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
		Name:           req.Name,
		AssessmentYear: req.AssessmentYear,
	}
	in.ClientID, _ = uuid.Parse(req.ClientID)
	if req.FilingDeadline != "" {
		deadline, _ := time.Parse("2006-01-02", req.FilingDeadline)
		in.FilingDeadline = &deadline
	}

	e, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(*e))
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

	res, _, err := h.service.Transition(r.Context(), user, id, workflow.Status(req.To), req.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transitionResponse{
		Success:          res.Success,
		Status:           string(res.NewStatus),
		RequiresApproval: res.RequiresApproval,
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

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.principalAndID(w, r)
	if !ok {
		return
	}
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	records, page, err := h.service.History(r.Context(), user, id, pageNum, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}

	type historyEntry struct {
		From    string `json:"from"`
		To      string `json:"to"`
		ActorID string `json:"actor_id"`
		At      string `json:"at"`
		Comment string `json:"comment,omitempty"`
	}
	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			From:    string(rec.From),
			To:      string(rec.To),
			ActorID: rec.ActorID.String(),
			At:      rec.At.Format(time.RFC3339),
			Comment: rec.Comment,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":       entries,
		"page":        page.Page,
		"per_page":    page.PerPage,
		"total":       page.Total,
		"total_pages": page.TotalPages,
	})
}

func (h *Handler) principalAndID(w http.ResponseWriter, r *http.Request) (*authn.User, uuid.UUID, bool) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid engagement id")
		return nil, uuid.Nil, false
	}
	return user, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "engagement not found")
	case errors.Is(err, authn.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "engagement is outside your assignments")
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrUnknownEntityType):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, workflow.ErrRoleNotAllowed):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrStaleStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", "engagement status changed, reload and retry")
	default:
		h.logger.Error("engagements request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
