package documents

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/platform/httpx"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/workflow"
)

// Handler wires HTTP endpoints for documents.
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

// MountRoutes registers document routes. Transitions require UPDATE; the
// approval edge is additionally gated by the workflow's approver roles.
func (h *Handler) MountRoutes(r chi.Router) {
	read := h.mw.RequirePermission(rbac.ResourceDocuments, rbac.ActionRead)
	r.With(read).Get("/", h.handleList)
	r.With(h.mw.RequirePermission(rbac.ResourceDocuments, rbac.ActionCreate)).Post("/", h.handleCreate)
	r.With(read).Get("/{id}", h.handleGet)
	r.With(h.mw.RequirePermission(rbac.ResourceDocuments, rbac.ActionUpdate)).Post("/{id}/transitions", h.handleTransition)
	r.With(read).Get("/{id}/history", h.handleHistory)
}

type createRequest struct {
	EngagementID string `json:"engagement_id" validate:"required,uuid4"`
	Title        string `json:"title" validate:"required,min=2,max=200"`
	Kind         string `json:"kind" validate:"required,oneof=LOCAL_FILE MASTER_FILE CBC_REPORT FORM_3CEB BENCHMARKING_REPORT"`
}

type transitionRequest struct {
	To      string `json:"to" validate:"required,max=32"`
	Comment string `json:"comment" validate:"max=1000"`
}

type documentResponse struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	Version      int    `json:"version"`
}

func toResponse(d Document) documentResponse {
	return documentResponse{
		ID:           d.ID.String(),
		EngagementID: d.EngagementID.String(),
		Title:        d.Title,
		Kind:         string(d.Kind),
		Status:       string(d.Status),
		Version:      d.Version,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	req := ListRequest{
		Kind:   Kind(r.URL.Query().Get("kind")),
		Status: workflow.Status(r.URL.Query().Get("status")),
	}
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
		h.logger.Error("list documents", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	out := make([]documentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toResponse(d))
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
	d, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*d))
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

	in := CreateInput{Title: req.Title, Kind: Kind(req.Kind)}
	in.EngagementID, _ = uuid.Parse(req.EngagementID)

	d, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*d))
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
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":           res.Success,
		"status":            string(res.NewStatus),
		"requires_approval": res.RequiresApproval,
	})
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

	entries := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		entries = append(entries, map[string]any{
			"from":     string(rec.From),
			"to":       string(rec.To),
			"actor_id": rec.ActorID.String(),
			"at":       rec.At,
			"comment":  rec.Comment,
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
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return nil, uuid.Nil, false
	}
	return user, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "document not found")
	case errors.Is(err, authn.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "document is outside your assignments")
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrUnknownEntityType):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, workflow.ErrRoleNotAllowed):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrStaleStatus):
		httpx.Problem(w, http.StatusConflict, "Conflict", "document status changed, reload and retry")
	default:
		h.logger.Error("documents request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
