package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stocksaas/stocksaas/internal/app"
	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/events"
	"github.com/stocksaas/stocksaas/internal/observability"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenant/tenanttest"
	"github.com/stocksaas/stocksaas/internal/tenants"
	"github.com/stocksaas/stocksaas/internal/warehouses"
	_ "github.com/stocksaas/stocksaas/testing"
)

const secret = "0123456789abcdef0123456789abcdef"

type tenantStore []tenants.Tenant

func (s tenantStore) Get(_ context.Context, id uuid.UUID) (tenants.Tenant, error) {
	for _, t := range s {
		if t.ID == id {
			return t, nil
		}
	}
	return tenants.Tenant{}, shared.NotFound("Tenant", id)
}

func (s tenantStore) FindBySlug(_ context.Context, slug string) (tenants.Tenant, error) {
	for _, t := range s {
		if t.Slug == slug {
			return t, nil
		}
	}
	return tenants.Tenant{}, shared.NotFound("Tenant", slug)
}

func (s tenantStore) List(context.Context) ([]tenants.Tenant, error) { return s, nil }

type userStore []*auth.User

func (s userStore) find(ctx context.Context, match func(*auth.User) bool) (*auth.User, error) {
	current, err := tenant.Get(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range s {
		if u.TenantID == current && match(u) {
			return u, nil
		}
	}
	return nil, shared.NotFound("User", "?")
}

func (s userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.find(ctx, func(u *auth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s userStore) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.find(ctx, func(u *auth.User) bool { return u.ID == id })
}

type roleStore map[uuid.UUID]rbac.Role

func (s roleStore) Resolve(_ context.Context, userID uuid.UUID) (rbac.RoleSet, rbac.PermissionSet, error) {
	return rbac.NewRoleSet(s[userID]), rbac.NewPermissionSet(), nil
}

type server struct {
	handler  http.Handler
	metrics  *observability.Metrics
	observer *tenanttest.RecordingObserver
}

func newUser(t *testing.T, tenantID uuid.UUID, email string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &auth.User{Email: email, Username: strings.Split(email, "@")[0], PasswordHash: string(hash), Enabled: true}
	u.ID = uuid.New()
	u.TenantID = tenantID
	return u
}

func newServer(t *testing.T) *server {
	t.Helper()
	acme := tenants.Tenant{ID: uuid.New(), Slug: "acme", Name: "Acme", Active: true}
	globex := tenants.Tenant{ID: uuid.New(), Slug: "globex", Name: "Globex", Active: true}
	directory := tenants.NewDirectory(tenantStore{acme, globex}, 16, time.Minute)

	alice := newUser(t, acme.ID, "alice@acme.test")
	bob := newUser(t, globex.ID, "bob@globex.test")
	roles := roleStore{alice.ID: rbac.RoleAdmin, bob.ID: rbac.RoleAdmin}

	tokens, err := auth.NewTokenManager(secret, "stocksaas", time.Hour)
	require.NoError(t, err)
	revocations := auth.NewRedisRevocations(redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()}))
	authService := auth.NewService(directory, userStore{alice, bob}, roles, tokens, revocations, nil)

	metrics := observability.NewMetrics()
	observer := &tenanttest.RecordingObserver{}
	enforcer := tenant.NewEnforcer(nil, metrics, observer)
	backend := tenanttest.NewMemoryBackend(warehouses.Entity, warehouses.Clone)
	repo := tenant.NewRepository[*warehouses.Warehouse](warehouses.Entity, backend, enforcer,
		tenant.WithDirectory(directory), tenant.WithActor(auth.Actor))
	guard := rbac.Middleware{Subject: auth.Subject, Denials: metrics}

	handler := app.NewRouter(app.RouterParams{
		Config:           &app.Config{RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second},
		AuthMiddleware:   &auth.Middleware{Tokens: tokens, Revocations: revocations, Tenants: directory, Loader: authService},
		AuthHandler:      auth.NewHandler(nil, authService),
		CatalogHandler:   rbac.NewCatalogHandler(guard),
		WarehouseHandler: warehouses.NewHandler(nil, warehouses.NewService(repo, events.NewLocal(events.NewDispatcher(nil)), nil), guard),
		Metrics:          metrics,
	})
	return &server{handler: handler, metrics: metrics, observer: observer}
}

func (s *server) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var env httpx.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *server) login(t *testing.T, slug, email string) string {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"tenant": slug, "email": email, "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return env.Data.(map[string]any)["token"].(string)
}

func TestTenantIsolationEndToEnd(t *testing.T) {
	s := newServer(t)
	aliceToken := s.login(t, "acme", "alice@acme.test")
	bobToken := s.login(t, "globex", "bob@globex.test")

	rec, env := s.do(t, http.MethodPost, "/warehouses", aliceToken, map[string]string{"code": "ac-1", "name": "Acme Main"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := env.Data.(map[string]any)["id"].(string)

	rec, env = s.do(t, http.MethodGet, "/warehouses", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, env.Data)

	rec, env = s.do(t, http.MethodGet, "/warehouses/"+id, bobToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "RESOURCE_NOT_FOUND", env.Errors[0].Code)

	rec, _ = s.do(t, http.MethodPut, "/warehouses/"+id, bobToken, map[string]any{"version": 1, "code": "AC-1", "name": "Stolen"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/warehouses/"+id, aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Acme Main", env.Data.(map[string]any)["name"])
	require.Empty(t, s.observer.Violations)
}

func TestAuthenticationFlow(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(t, http.MethodGet, "/warehouses", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, env.Success)

	rec, _ = s.do(t, http.MethodGet, "/warehouses", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"tenant": "globex", "email": "alice@acme.test", "password": "correct-horse"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid credentials", env.Message)

	token := s.login(t, "acme", "alice@acme.test")
	rec, env = s.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []any{"ADMIN"}, env.Data.(map[string]any)["roles"])

	rec, _ = s.do(t, http.MethodGet, "/rbac/roles", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterDefaults(t *testing.T) {
	s := newServer(t)

	rec, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, env := s.do(t, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "RESOURCE_NOT_FOUND", env.Errors[0].Code)

	token := s.login(t, "acme", "alice@acme.test")
	rec, _ = s.do(t, http.MethodDelete, "/warehouses/"+uuid.NewString(), token, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "stocksaas_http_requests_total")
	require.Contains(t, body, `stocksaas_authz_denials_total{reason="permission"} 1`)
}
