package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/shared"
)

// AccessHandler manages the roles and extra grants of users in the caller's tenant.
type AccessHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewAccessHandler builds an AccessHandler.
func NewAccessHandler(logger *slog.Logger, service *Service, rbac Middleware) *AccessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers /users/{id}/... access routes.
func (h *AccessHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(PermUserView)).Get("/{id}/access", h.show)
	r.With(h.rbac.RequireAll(PermUserAssignRole)).Put("/{id}/roles", h.setRoles)
	r.With(h.rbac.RequireAll(PermUserAssignRole)).Delete("/{id}/roles/{role}", h.removeRole)
	r.With(h.rbac.RequireAll(PermUserManagePermissions)).Post("/{id}/grants", h.grant)
	r.With(h.rbac.RequireAll(PermUserManagePermissions)).Delete("/{id}/grants/{permission}", h.revoke)
}

type accessView struct {
	UserID      uuid.UUID `json:"userId"`
	Roles       []string  `json:"roles"`
	Grants      []string  `json:"grants"`
	Effective   []string  `json:"effectivePermissions"`
	HighestRole string    `json:"highestRole,omitempty"`
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

type grantRequest struct {
	Permission string `json:"permission"`
}

func (h *AccessHandler) show(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	roles, grants, err := h.service.Resolve(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, accessView{
		UserID:      userID,
		Roles:       roles.Strings(),
		Grants:      grants.Strings(),
		Effective:   EffectivePermissions(roles, grants).Strings(),
		HighestRole: HighestRole(roles).String(),
	})
}

func (h *AccessHandler) setRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req setRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, shared.InvalidArgument("decode roles: %v", err))
		return
	}
	roles := make([]Role, 0, len(req.Roles))
	for _, name := range req.Roles {
		role, err := ParseRole(name)
		if err != nil {
			httpx.RespondError(w, r, h.logger, invalidField("roles", "UNKNOWN_ROLE", "unknown role", name))
			return
		}
		if err := h.mayAssign(r, role); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		roles = append(roles, role)
	}
	if err := h.service.SetRoles(r.Context(), userID, roles...); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "Roles updated", NewRoleSet(roles...).Strings(), nil)
}

func (h *AccessHandler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	role, err := ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, invalidField("role", "UNKNOWN_ROLE", "unknown role", chi.URLParam(r, "role")))
		return
	}
	if err := h.mayAssign(r, role); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, role); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "Role removed", nil, nil)
}

func (h *AccessHandler) grant(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, shared.InvalidArgument("decode grant: %v", err))
		return
	}
	perm, err := PermissionByCode(req.Permission)
	if err != nil {
		httpx.RespondError(w, r, h.logger, invalidField("permission", "UNKNOWN_PERMISSION", "unknown permission", req.Permission))
		return
	}
	if err := h.mayGrant(r, perm); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Grant(r.Context(), userID, perm); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusCreated, "Permission granted", perm.String(), nil)
}

func (h *AccessHandler) revoke(w http.ResponseWriter, r *http.Request) {
	userID, err := userParam(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	perm, err := PermissionByCode(chi.URLParam(r, "permission"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, invalidField("permission", "UNKNOWN_PERMISSION", "unknown permission", chi.URLParam(r, "permission")))
		return
	}
	if err := h.mayGrant(r, perm); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Revoke(r.Context(), userID, perm); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "Permission revoked", nil, nil)
}

// mayAssign stops callers from handing out roles above their own.
func (h *AccessHandler) mayAssign(r *http.Request, role Role) error {
	subject, ok := h.subject(r)
	if !ok {
		return shared.Unauthenticated("authentication required")
	}
	if !HighestRole(subject.GrantedRoles()).HasLevel(role) {
		return shared.AccessDenied("cannot manage role %s above your own", role)
	}
	return nil
}

// mayGrant stops callers from handing out permissions they do not hold.
func (h *AccessHandler) mayGrant(r *http.Request, perm Permission) error {
	subject, ok := h.subject(r)
	if !ok {
		return shared.Unauthenticated("authentication required")
	}
	if !subject.GrantedPermissions().Has(perm) {
		return shared.AccessDenied("cannot manage permission %s you do not hold", perm)
	}
	return nil
}

func (h *AccessHandler) subject(r *http.Request) (Subject, bool) {
	if h.rbac.Subject == nil {
		return nil, false
	}
	return h.rbac.Subject(r.Context())
}

func userParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidField("id", "INVALID_UUID", "id must be a UUID", raw)
	}
	return id, nil
}

func invalidField(field, code, message string, value any) error {
	return shared.NewValidationError(shared.FieldError{Field: field, Code: code, Message: message, RejectedValue: value})
}
