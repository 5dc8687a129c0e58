package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stocksaas/stocksaas/internal/platform/httpx"
)

// CatalogHandler exposes the fixed role and permission catalog.
type CatalogHandler struct {
	rbac Middleware
}

// NewCatalogHandler builds a CatalogHandler.
func NewCatalogHandler(rbac Middleware) *CatalogHandler {
	return &CatalogHandler{rbac: rbac}
}

// MountRoutes registers catalog routes.
func (h *CatalogHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireLevel(RoleViewer))
		r.Get("/permissions", h.listPermissions)
		r.Get("/roles", h.listRoles)
	})
}

type permissionView struct {
	Code        string `json:"code"`
	Module      string `json:"module"`
	Description string `json:"description"`
}

type roleView struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
}

func (h *CatalogHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	all := AllPermissions()
	out := make([]permissionView, 0, len(all))
	for _, p := range all {
		out = append(out, permissionView{Code: p.String(), Module: p.Module(), Description: p.Description()})
	}
	httpx.OKWithMeta(w, http.StatusOK, "", out, map[string]any{"total": len(out)})
}

func (h *CatalogHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := AllRoles()
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleView{
			Name:        role.String(),
			Label:       role.Label(),
			Level:       role.Level(),
			Permissions: PermissionsForRole(role).Strings(),
		})
	}
	httpx.OK(w, http.StatusOK, out)
}
