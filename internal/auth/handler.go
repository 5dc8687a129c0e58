package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: shared.NewValidator()}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Tenant   string `json:"tenant" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type principalView struct {
	UserID      string   `json:"userId"`
	TenantID    string   `json:"tenantId"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func viewOf(p *Principal) principalView {
	return principalView{
		UserID:      p.UserID.String(),
		TenantID:    p.TenantID.String(),
		Username:    p.Username,
		Email:       p.Email,
		Roles:       p.GrantedRoles().Strings(),
		Permissions: p.GrantedPermissions().Strings(),
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, shared.InvalidArgument("decode login: %v", err))
		return
	}
	if err := shared.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	p, token, err := h.service.Authenticate(r.Context(), req.Tenant, req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"token":     token.Value,
		"tokenType": token.Type,
		"expiresAt": token.ExpiresAt,
		"user":      viewOf(p),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		httpx.RespondError(w, r, h.logger, shared.Unauthenticated("logout without token"))
		return
	}
	if err := h.service.Logout(r.Context(), claims); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OKWithMeta(w, http.StatusOK, "Logged out", nil, nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		httpx.RespondError(w, r, h.logger, shared.Unauthenticated("no principal"))
		return
	}
	httpx.OK(w, http.StatusOK, viewOf(p))
}
