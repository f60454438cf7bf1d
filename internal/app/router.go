package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/triline/triline/internal/audit"
	"github.com/triline/triline/internal/authn"
	"github.com/triline/triline/internal/clients"
	"github.com/triline/triline/internal/documents"
	"github.com/triline/triline/internal/engagements"
	"github.com/triline/triline/internal/observability"
	"github.com/triline/triline/internal/platform/httpx"
	"github.com/triline/triline/internal/shared"
	"github.com/triline/triline/internal/tasks"
	"github.com/triline/triline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthMiddleware *authn.Middleware

	AuthHandler        *authn.Handler
	ClientsHandler     *clients.Handler
	EngagementsHandler *engagements.Handler
	DocumentsHandler   *documents.Handler
	TasksHandler       *tasks.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with TriLine defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Browser clients fetch their CSRF token here before any mutating call.
	r.Get("/auth/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			params.Logger.Error("ensure csrf token", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireAuth)

		r.Route("/clients", params.ClientsHandler.MountRoutes)
		r.Route("/engagements", params.EngagementsHandler.MountRoutes)
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
		r.Route("/tasks", params.TasksHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
