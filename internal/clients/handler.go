package clients

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
)

// Handler wires HTTP endpoints for the client master.
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

// MountRoutes registers client routes. Route-level permissions mirror the
// permission matrix; the service applies tier scoping on top.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequirePermission(rbac.ResourceClients, rbac.ActionRead)).Get("/", h.handleList)
	r.With(h.mw.RequirePermission(rbac.ResourceClients, rbac.ActionCreate)).Post("/", h.handleCreate)
	r.With(h.mw.RequirePermission(rbac.ResourceClients, rbac.ActionRead)).Get("/{id}", h.handleGet)
	r.With(h.mw.RequirePermission(rbac.ResourceClients, rbac.ActionUpdate)).Put("/{id}", h.handleUpdate)
	r.With(h.mw.RequirePermission(rbac.ResourceClients, rbac.ActionDelete)).Delete("/{id}", h.handleArchive)
}

type clientPayload struct {
	Name         string `json:"name" validate:"required,min=2,max=200"`
	TaxID        string `json:"tax_id" validate:"required,max=32"`
	Jurisdiction string `json:"jurisdiction" validate:"required,max=64"`
	Industry     string `json:"industry" validate:"max=64"`
	AssignedToID string `json:"assigned_to_id" validate:"omitempty,uuid4"`
	ReviewerID   string `json:"reviewer_id" validate:"omitempty,uuid4"`
}

type clientResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TaxID        string `json:"tax_id"`
	Jurisdiction string `json:"jurisdiction"`
	Industry     string `json:"industry"`
	AssignedToID string `json:"assigned_to_id,omitempty"`
	ReviewerID   string `json:"reviewer_id,omitempty"`
	IsActive     bool   `json:"is_active"`
}

type listResponse struct {
	Items      []clientResponse `json:"items"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

func toResponse(c Client) clientResponse {
	resp := clientResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		TaxID:        c.TaxID,
		Jurisdiction: c.Jurisdiction,
		Industry:     c.Industry,
		IsActive:     c.IsActive,
	}
	if c.AssignedToID != uuid.Nil {
		resp.AssignedToID = c.AssignedToID.String()
	}
	if c.ReviewerID != uuid.Nil {
		resp.ReviewerID = c.ReviewerID.String()
	}
	return resp
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	req := ListRequest{Search: r.URL.Query().Get("search")}
	req.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	req.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}

	items, page, err := h.service.List(r.Context(), user, req)
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	resp := listResponse{
		Items:      make([]clientResponse, 0, len(items)),
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
	for _, c := range items {
		resp.Items = append(resp.Items, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}

	c, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*c))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	in, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	c, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*c))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}

	in, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	c, err := h.service.Update(r.Context(), user, id, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*c))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid client id")
		return
	}

	if err := h.service.Archive(r.Context(), user, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (CreateInput, bool) {
	var p clientPayload
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return CreateInput{}, false
	}
	if err := h.validator.Struct(p); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return CreateInput{}, false
	}

	in := CreateInput{
		Name:         p.Name,
		TaxID:        p.TaxID,
		Jurisdiction: p.Jurisdiction,
		Industry:     p.Industry,
	}
	if p.AssignedToID != "" {
		in.AssignedToID, _ = uuid.Parse(p.AssignedToID)
	}
	if p.ReviewerID != "" {
		in.ReviewerID, _ = uuid.Parse(p.ReviewerID)
	}
	return in, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "client not found")
	case errors.Is(err, authn.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "client is outside your assignments")
	case errors.Is(err, ErrDuplicateTaxID):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a client with this tax id already exists")
	default:
		h.logger.Error("clients request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
