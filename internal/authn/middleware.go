package authn

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/triline/triline/internal/platform/httpx"
	"github.com/triline/triline/internal/rbac"
	"github.com/triline/triline/internal/shared"
)

// Middleware wires the authentication gate and permission checks into the
// HTTP stack. Every guarded request resolves the caller fresh through the
// gate before any coarse-grained permission check runs.
type Middleware struct {
	Service  *Service
	Resolver *rbac.Resolver
	Logger   *slog.Logger
}

// RequireAuth resolves the caller from the session cookie or a bearer token
// and stores the principal in the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.resolve(r)
		if err != nil {
			m.respond(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

// RequirePermission guards a route group with a (resource, action) check.
// Must be mounted inside RequireAuth.
func (m Middleware) RequirePermission(resource rbac.Resource, action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				m.respond(w, r, ErrUnauthenticated)
				return
			}
			if !m.Resolver.HasPermission(user.Role, resource, action) {
				m.respond(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinimumRole guards a route group with a hierarchical floor.
// Functional roles never pass; grant them resource permissions instead.
func (m Middleware) RequireMinimumRole(minimum rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				m.respond(w, r, ErrUnauthenticated)
				return
			}
			if !rbac.IsAtLeast(user.Role, minimum) {
				m.respond(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) resolve(r *http.Request) (*User, error) {
	if token := bearerToken(r); token != "" {
		return m.Service.ResolveToken(r.Context(), token)
	}
	return m.Service.ResolveCaller(r.Context(), shared.SessionFromContext(r.Context()))
}

func (m Middleware) respond(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError && m.Logger != nil {
		m.Logger.Error("authn middleware", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	switch {
	case errors.Is(err, ErrNoFirmAssigned):
		httpx.Problem(w, status, "Forbidden", "no firm assigned to account")
	case status == http.StatusForbidden:
		httpx.Problem(w, status, "Forbidden", "")
	case status == http.StatusUnauthorized:
		httpx.Problem(w, status, "Unauthorized", "")
	default:
		httpx.Problem(w, status, "Internal Error", "")
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
