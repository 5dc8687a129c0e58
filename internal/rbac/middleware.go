package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/shared"
)

// Subject is anything that carries granted roles and permissions.
type Subject interface {
	GrantedRoles() RoleSet
	GrantedPermissions() PermissionSet
}

// SubjectFunc resolves the subject of a request, reporting false when the caller is anonymous.
type SubjectFunc func(ctx context.Context) (Subject, bool)

// DenialObserver is notified of every refused request.
type DenialObserver interface {
	AuthorizationDenied(reason string)
}

// Denial reasons reported to observers.
const (
	DenialUnauthenticated = "unauthenticated"
	DenialPermission      = "permission"
	DenialRole            = "role"
	DenialLevel           = "level"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Subject SubjectFunc
	Logger  *slog.Logger
	Denials DenialObserver
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.require(DenialPermission, func(s Subject) bool {
		return len(perms) == 0 || s.GrantedPermissions().HasAny(perms...)
	})
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.require(DenialPermission, func(s Subject) bool {
		return s.GrantedPermissions().HasAll(perms...)
	})
}

// RequireRole ensures the current user holds at least one of roles.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return m.require(DenialRole, func(s Subject) bool {
		return len(roles) == 0 || s.GrantedRoles().HasAny(roles...)
	})
}

// RequireLevel ensures the current user holds a role at or above min.
func (m Middleware) RequireLevel(min Role) func(http.Handler) http.Handler {
	return m.require(DenialLevel, func(s Subject) bool {
		return HighestRole(s.GrantedRoles()).HasLevel(min)
	})
}

func (m Middleware) require(reason string, allowed func(Subject) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				subject Subject
				ok      bool
			)
			if m.Subject != nil {
				subject, ok = m.Subject(r.Context())
			}
			if !ok || subject == nil {
				m.deny(w, r, DenialUnauthenticated, shared.Unauthenticated("no authenticated principal"))
				return
			}
			if !allowed(subject) {
				m.deny(w, r, reason, shared.AccessDenied("missing required %s", reason))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, reason string, err error) {
	if m.Denials != nil {
		m.Denials.AuthorizationDenied(reason)
	}
	httpx.RespondError(w, r, m.Logger, err)
}
