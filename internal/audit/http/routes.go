package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
)

const rateLimit = 30
const rateWindow = time.Minute

// MountRoutes registers the audit timeline endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests),
				httpx.ErrorDetail{Code: "RATE_LIMITED", Message: "Too many audit queries; retry later"})
		}),
	)
	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.RequireAny(rbac.PermSystemViewLogs))
		gr.Use(limiter)
		gr.Get("/", h.handleTimeline)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if id, ok := auth.CurrentUserID(r.Context()); ok {
		return "user:" + id.String(), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
