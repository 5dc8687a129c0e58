package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/stocksaas/stocksaas/internal/tenant"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `stocksaas_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `stocksaas_http_request_duration_seconds_bucket{route="/test"`)
}

func TestMetricsObserveSecurityEvents(t *testing.T) {
	metrics := NewMetrics()
	var _ tenant.Observer = metrics

	ctx := context.Background()
	metrics.TenantViolation(ctx, tenant.Violation{Op: tenant.OpUpdate, RecordTenant: uuid.New(), ContextTenant: uuid.New()})
	metrics.TenantViolation(ctx, tenant.Violation{Op: tenant.OpUpdate})
	metrics.CrossTenantRead(ctx, tenant.Justification{Actor: uuid.New(), Reason: "audit"})
	metrics.AuthorizationDenied("forbidden")

	body := scrape(t, metrics)
	require.Contains(t, body, `stocksaas_tenant_violations_total{operation="update"} 2`)
	require.Contains(t, body, "stocksaas_cross_tenant_reads_total 1")
	require.Contains(t, body, `stocksaas_authz_denials_total{reason="forbidden"} 1`)
	require.False(t, strings.Contains(body, "record_tenant"), "tenant ids are never metric labels")
}

func TestNilMetricsHandlerUnavailable(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	m.AuthorizationDenied("forbidden")
}
