package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/platform/httpx"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

func newRouter(t *testing.T, f *fixture, revoked auth.RevocationStore, loader auth.PrincipalLoader) http.Handler {
	t.Helper()
	mw := &auth.Middleware{Tokens: f.tokens, Revocations: revoked, Tenants: f.tenants, Loader: loader}
	r := chi.NewRouter()
	r.Use(tenant.Middleware)
	r.Use(mw.Authenticate)
	r.Route("/auth", auth.NewHandler(nil, f.service).MountRoutes)
	r.Get("/whoami-tenant", func(w http.ResponseWriter, r *http.Request) {
		id, err := tenant.Get(r.Context())
		if err != nil {
			httpx.RespondError(w, r, nil, err)
			return
		}
		httpx.OK(w, http.StatusOK, id.String())
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/auth/login", "", `{"tenant":"acme","email":"alice@acme.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := env.Data.(map[string]any)
	return data["token"].(string)
}

func TestLoginMeLogout(t *testing.T) {
	mr := miniredis.RunT(t)
	revoked := auth.NewRedisRevocations(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	f := newFixture(t, revoked)
	h := newRouter(t, f, revoked, f.service)

	token := login(t, h)

	rec, env := do(t, h, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := env.Data.(map[string]any)
	require.Equal(t, f.alice.ID.String(), me["userId"])
	require.Equal(t, f.acme.ID.String(), me["tenantId"])
	require.NotContains(t, rec.Body.String(), "password")

	rec, env = do(t, h, http.MethodGet, "/whoami-tenant", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, f.acme.ID.String(), env.Data)

	rec, _ = do(t, h, http.MethodPost, "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Authentication required", env.Message)
}

func TestLoginRejections(t *testing.T) {
	f := newFixture(t, nil)
	h := newRouter(t, f, nil, nil)

	rec, env := do(t, h, http.MethodPost, "/auth/login", "", `{"tenant":"acme","email":"alice@acme.test","password":"battery-staple"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid credentials", env.Message)

	rec, env = do(t, h, http.MethodPost, "/auth/login", "", `{"tenant":"acme","email":"not-an-email","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Validation failed", env.Message)
	fields := map[string]bool{}
	for _, d := range env.Errors {
		fields[d.Field] = true
		if d.Field == "password" {
			require.Nil(t, d.RejectedValue)
		}
	}
	require.True(t, fields["email"])
	require.True(t, fields["password"])

	rec, _ = do(t, h, http.MethodPost, "/auth/login", "", `{"tenant":"acme","extra":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthenticateMiddleware(t *testing.T) {
	f := newFixture(t, nil)
	h := newRouter(t, f, nil, nil)

	rec, _ := do(t, h, http.MethodGet, "/whoami-tenant", "", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/auth/me", "garbage", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	dormant := f.tenants["dormant"]
	p := &auth.Principal{UserID: f.alice.ID, TenantID: dormant.ID, Enabled: true}
	token, err := f.tokens.Issue(p)
	require.NoError(t, err)
	rec, _ = do(t, h, http.MethodGet, "/auth/me", token.Value, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateReloadsPrincipal(t *testing.T) {
	f := newFixture(t, nil)
	h := newRouter(t, f, nil, f.service)
	token := login(t, h)

	f.alice.Locked = true
	rec, _ := do(t, h, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
