// Package observability wires Prometheus metrics for HTTP traffic and security events.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Metrics collects the Prometheus metrics of the API process.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	tenantViolations *prometheus.CounterVec
	crossTenantReads prometheus.Counter
	authzDenials     *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksaas_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stocksaas_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksaas_tenant_violations_total",
		Help: "Writes rejected for tenant mismatch and rows failing tenant integrity checks.",
	}, []string{"operation"})
	bypasses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stocksaas_cross_tenant_reads_total",
		Help: "Justified administrative reads across tenants.",
	})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksaas_authz_denials_total",
		Help: "Requests refused by authorization checks.",
	}, []string{"reason"})
	registry.MustRegister(requests, duration, violations, bypasses, denials)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		tenantViolations: violations,
		crossTenantReads: bypasses,
		authzDenials:     denials,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// TenantViolation implements tenant.Observer.
func (m *Metrics) TenantViolation(_ context.Context, v tenant.Violation) {
	if m == nil {
		return
	}
	m.tenantViolations.WithLabelValues(string(v.Op)).Inc()
}

// CrossTenantRead implements tenant.Observer.
func (m *Metrics) CrossTenantRead(context.Context, tenant.Justification) {
	if m == nil {
		return
	}
	m.crossTenantReads.Inc()
}

// AuthorizationDenied counts a refused request. reason is "unauthenticated" or "forbidden".
func (m *Metrics) AuthorizationDenied(reason string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
