package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/observability"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Auth    *auth.Middleware
	Metrics *observability.Metrics
}

// MiddlewareStack installs the API middleware chain. Every request runs in its own tenant unit
// of work; authentication binds the tenant of a verified token into it.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	perMinute := 120
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		perMinute = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		tenant.Middleware,
		requestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Fail(w, http.StatusBadRequest, "Request blocked", httpx.ErrorDetail{Code: "INSECURE_REQUEST", Message: "Request blocked"})
					return
				}
				next.ServeHTTP(w, r)
			})
		},
	}
	if perMinute > 0 {
		middlewares = append(middlewares, httprate.Limit(perMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Fail(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests),
					httpx.ErrorDetail{Code: "RATE_LIMITED", Message: "Too many requests; retry later"})
			}),
		))
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	if cfg.Auth != nil {
		middlewares = append(middlewares, cfg.Auth.Authenticate)
	}
	return middlewares
}

// requestLogger logs one line per request once the handler returns. It runs inside the
// request's unit of work, so the tenant bound by authentication is still visible.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			}
			if id, ok := tenant.Lookup(r.Context()); ok {
				attrs = append(attrs, slog.String("tenant_id", id.String()))
			}
			logger.InfoContext(r.Context(), "http request", attrs...)
		})
	}
}
