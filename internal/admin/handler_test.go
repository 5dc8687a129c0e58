package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stocksaas/stocksaas/internal/admin"
	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenant/tenanttest"
	"github.com/stocksaas/stocksaas/internal/tenants"
	"github.com/stocksaas/stocksaas/internal/warehouses"
	"github.com/stocksaas/stocksaas/jobs"
	_ "github.com/stocksaas/stocksaas/testing"
)

type tenantList []tenants.Tenant

func (l tenantList) List(context.Context) ([]tenants.Tenant, error) { return l, nil }

type inspector struct {
	info *asynq.QueueInfo
	err  error
}

func (i inspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return i.info, i.err }

type fixture struct {
	router   http.Handler
	observer *tenanttest.RecordingObserver
	acme     uuid.UUID
	globex   uuid.UUID
}

func newFixture(t *testing.T, queue inspector) *fixture {
	t.Helper()
	f := &fixture{observer: &tenanttest.RecordingObserver{}, acme: uuid.New(), globex: uuid.New()}
	backend := tenanttest.NewMemoryBackend(warehouses.Entity, warehouses.Clone)
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, owner := range []uuid.UUID{f.acme, f.globex, f.globex} {
		backend.Seed(&warehouses.Warehouse{
			Record: tenant.Record{ID: uuid.New(), TenantID: owner, Version: 1, CreatedAt: created.Add(time.Duration(i) * time.Hour)},
			Code:   "WH" + string(rune('A'+i)),
			Name:   "Warehouse",
			Active: true,
		})
	}
	enforcer := tenant.NewEnforcer(nil, f.observer)
	repo := tenant.NewRepository[*warehouses.Warehouse](warehouses.Entity, backend, enforcer,
		tenant.WithDirectory(tenanttest.StaticDirectory{f.acme: true, f.globex: true}))
	service := warehouses.NewService(repo, nil, nil)

	directory := tenantList{
		{ID: f.acme, Slug: "acme", Name: "Acme", Active: true},
		{ID: f.globex, Slug: "globex", Name: "Globex", Active: true},
	}
	h := admin.NewHandler(nil, directory, service, enforcer, rbac.Middleware{Subject: auth.Subject},
		jobs.NewHandler(queue, nil).MountRoutes)

	r := chi.NewRouter()
	r.Use(tenant.Middleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			role, err := rbac.ParseRole(req.Header.Get("X-Test-Role"))
			if err != nil {
				next.ServeHTTP(w, req)
				return
			}
			_ = tenant.Set(req.Context(), f.acme)
			p := &auth.Principal{UserID: uuid.New(), TenantID: f.acme, Roles: rbac.NewRoleSet(role), Enabled: true}
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/admin", h.MountRoutes)
	f.router = r
	return f
}

func (f *fixture) get(t *testing.T, path string, role rbac.Role, headers map[string]string) (int, httpx.Envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.Header.Set("X-Test-Role", string(role))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func TestAdminRequiresSuperAdmin(t *testing.T) {
	f := newFixture(t, inspector{})

	status, _ := f.get(t, "/admin/tenants", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	for _, role := range []rbac.Role{rbac.RoleTenantOwner, rbac.RoleAdmin, rbac.RoleViewer} {
		status, env := f.get(t, "/admin/tenants", role, nil)
		require.Equal(t, http.StatusForbidden, status, role)
		require.False(t, env.Success)
	}

	status, env := f.get(t, "/admin/tenants", rbac.RoleSuperAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 2, env.Metadata["count"])
}

func TestCrossTenantWarehousesRequireJustification(t *testing.T) {
	f := newFixture(t, inspector{})

	status, env := f.get(t, "/admin/warehouses", rbac.RoleSuperAdmin, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, admin.JustificationHeader, env.Errors[0].Field)
	require.Empty(t, f.observer.Bypasses)

	status, env = f.get(t, "/admin/warehouses", rbac.RoleSuperAdmin, map[string]string{admin.JustificationHeader: "ticket OPS-42"})
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 3, env.Metadata["count"])

	owners := map[string]int{}
	for _, item := range env.Data.([]any) {
		owners[item.(map[string]any)["tenantId"].(string)]++
	}
	require.Equal(t, map[string]int{f.acme.String(): 1, f.globex.String(): 2}, owners)

	require.Len(t, f.observer.Bypasses, 1)
	require.Equal(t, "ticket OPS-42", f.observer.Bypasses[0].Reason)
}

func TestJobsHealth(t *testing.T) {
	f := newFixture(t, inspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 4, Retry: 1}})
	status, env := f.get(t, "/admin/jobs/health", rbac.RoleSuperAdmin, nil)
	require.Equal(t, http.StatusOK, status)
	data := env.Data.(map[string]any)
	require.EqualValues(t, 4, data["pending"])
	require.Equal(t, true, data["available"])

	down := newFixture(t, inspector{err: errors.New("redis down")})
	status, _ = down.get(t, "/admin/jobs/health", rbac.RoleSuperAdmin, nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
}
