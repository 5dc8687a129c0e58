// Package admin exposes platform operator endpoints. Every route requires SUPER_ADMIN holding
// system:manage; cross-tenant reads additionally carry a justification header.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenants"
	"github.com/stocksaas/stocksaas/internal/warehouses"
)

// JustificationHeader names the header carrying the reason for a cross-tenant read.
const JustificationHeader = "X-Admin-Justification"

// TenantLister lists every tenant; *tenants.Repository implements it.
type TenantLister interface {
	List(ctx context.Context) ([]tenants.Tenant, error)
}

// WarehouseLister lists warehouses visible to ctx; *warehouses.Service implements it.
type WarehouseLister interface {
	List(ctx context.Context, filters warehouses.ListFilters) ([]*warehouses.Warehouse, error)
}

// Bypass lifts the tenant read filter; *tenant.Enforcer implements it.
type Bypass interface {
	CrossTenantRead(ctx context.Context, j tenant.Justification, fn func(ctx context.Context) error) error
}

// Handler serves /admin.
type Handler struct {
	logger     *slog.Logger
	tenants    TenantLister
	warehouses WarehouseLister
	bypass     Bypass
	rbac       rbac.Middleware
	jobs       func(chi.Router)
}

// NewHandler constructs the admin handler. jobs mounts the queue health routes and may be nil.
func NewHandler(logger *slog.Logger, tenants TenantLister, warehouses WarehouseLister, bypass Bypass, rbac rbac.Middleware, jobs func(chi.Router)) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, tenants: tenants, warehouses: warehouses, bypass: bypass, rbac: rbac, jobs: jobs}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireRole(rbac.RoleSuperAdmin))
	r.Use(h.rbac.RequireAll(rbac.PermSystemManage))
	r.Get("/tenants", h.listTenants)
	r.Get("/warehouses", h.listWarehouses)
	if h.jobs != nil {
		r.Route("/jobs", h.jobs)
	}
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	items, err := h.tenants.List(r.Context())
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []tenants.Tenant{}
	}
	httpx.OKWithMeta(w, http.StatusOK, "", items, map[string]any{"count": len(items)})
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	reason := strings.TrimSpace(r.Header.Get(JustificationHeader))
	if reason == "" {
		httpx.RespondError(w, r, h.logger, shared.NewValidationError(shared.FieldError{
			Field:   JustificationHeader,
			Code:    "REQUIRED",
			Message: JustificationHeader + " is required for cross-tenant reads",
		}))
		return
	}
	actor, ok := auth.CurrentUserID(r.Context())
	if !ok {
		httpx.RespondError(w, r, h.logger, shared.Unauthenticated("no principal"))
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := warehouses.ListFilters{Page: page, Limit: limit, Search: r.URL.Query().Get("search")}

	var items []*warehouses.Warehouse
	err := h.bypass.CrossTenantRead(r.Context(), tenant.Justification{Actor: actor, Reason: reason}, func(ctx context.Context) error {
		var err error
		items, err = h.warehouses.List(ctx, filters)
		return err
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []*warehouses.Warehouse{}
	}
	httpx.OKWithMeta(w, http.StatusOK, "", items, map[string]any{"count": len(items)})
}
