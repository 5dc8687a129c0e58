package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stocksaas/stocksaas/internal/admin"
	audithttp "github.com/stocksaas/stocksaas/internal/audit/http"
	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/observability"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/warehouses"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthMiddleware   *auth.Middleware
	AuthHandler      *auth.Handler
	CatalogHandler   *rbac.CatalogHandler
	AccessHandler    *rbac.AccessHandler
	WarehouseHandler *warehouses.Handler
	AuditHandler     *audithttp.Handler
	AdminHandler     *admin.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.AuthMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Route not found", httpx.ErrorDetail{Code: "RESOURCE_NOT_FOUND", Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Method not allowed", httpx.ErrorDetail{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.CatalogHandler != nil {
		r.Route("/rbac", params.CatalogHandler.MountRoutes)
	}
	if params.AccessHandler != nil {
		r.Route("/users", params.AccessHandler.MountRoutes)
	}
	if params.WarehouseHandler != nil {
		r.Route("/warehouses", params.WarehouseHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.AdminHandler != nil {
		r.Route("/admin", params.AdminHandler.MountRoutes)
	}
	return r
}
