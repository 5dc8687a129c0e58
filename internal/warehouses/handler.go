package warehouses

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermWarehouseView)).Get("/", h.list)
	r.With(h.rbac.RequireAny(rbac.PermWarehouseView)).Get("/{id}", h.show)
	r.With(h.rbac.RequireAny(rbac.PermWarehouseCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAny(rbac.PermWarehouseUpdate)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAny(rbac.PermWarehouseDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := ListFilters{Page: page, Limit: limit, Search: r.URL.Query().Get("search")}
	items, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []*Warehouse{}
	}
	httpx.OKWithMeta(w, http.StatusOK, "", items, map[string]any{"count": len(items)})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	wh, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, wh)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, r, h.logger, shared.InvalidArgument("decode warehouse: %v", err))
		return
	}
	wh, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusCreated, "Warehouse created", wh, nil)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, r, h.logger, shared.InvalidArgument("decode warehouse: %v", err))
		return
	}
	wh, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "Warehouse updated", wh, nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "Warehouse deleted", nil, nil)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError(shared.FieldError{Field: "id", Code: "INVALID_UUID", Message: "id must be a UUID", RejectedValue: raw})
	}
	return id, nil
}
