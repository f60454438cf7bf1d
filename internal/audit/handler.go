package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/platform/httpx"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/workflow"
)

// Handler serves the firm audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      *authn.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, mw *authn.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequirePermission(rbac.ResourceReports, rbac.ActionRead)).Get("/", h.handleTimeline)
	r.With(h.mw.RequirePermission(rbac.ResourceReports, rbac.ActionExport)).Get("/export.csv", h.handleExport)
}

type entryResponse struct {
	ID         int64     `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	ActorID    string    `json:"actor_id"`
	Comment    string    `json:"comment,omitempty"`
	At         time.Time `json:"at"`
}

type timelineResponse struct {
	Items      []entryResponse `json:"items"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

func toEntry(rec workflow.HistoryRecord) entryResponse {
	return entryResponse{
		ID:         rec.ID,
		EntityType: string(rec.EntityType),
		EntityID:   rec.EntityID.String(),
		From:       string(rec.From),
		To:         string(rec.To),
		ActorID:    rec.ActorID.String(),
		Comment:    rec.Comment,
		At:         rec.At,
	}
}

func parseFilters(r *http.Request) Filters {
	q := r.URL.Query()
	f := Filters{EntityType: workflow.EntityType(q.Get("entity_type"))}
	if v := q.Get("entity_id"); v != "" {
		f.EntityID, _ = uuid.Parse(v)
	}
	if v := q.Get("actor_id"); v != "" {
		f.ActorID, _ = uuid.Parse(v)
	}
	if v := q.Get("from"); v != "" {
		f.From, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("to"); v != "" {
		f.To, _ = time.Parse(time.RFC3339, v)
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return f
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	items, page, err := h.service.Timeline(r.Context(), user, parseFilters(r))
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	resp := timelineResponse{
		Items:      make([]entryResponse, 0, len(items)),
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
	for _, rec := range items {
		resp.Items = append(resp.Items, toEntry(rec))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	data, err := h.service.ExportCSV(r.Context(), user, parseFilters(r))
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
