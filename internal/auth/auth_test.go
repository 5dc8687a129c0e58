package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stocksaas/stocksaas/internal/auth"
	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenants"
	_ "github.com/stocksaas/stocksaas/testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubTenants map[string]tenants.Tenant

func (s stubTenants) Resolve(_ context.Context, slug string) (tenants.Tenant, error) {
	t, ok := s[slug]
	if !ok {
		return tenants.Tenant{}, shared.NotFound("Tenant", slug)
	}
	return t, nil
}

func (s stubTenants) Lookup(_ context.Context, id uuid.UUID) (tenants.Tenant, error) {
	for _, t := range s {
		if t.ID == id {
			return t, nil
		}
	}
	return tenants.Tenant{}, shared.NotFound("Tenant", id)
}

type stubUsers struct {
	users []*auth.User
}

func (s *stubUsers) visible(ctx context.Context, match func(*auth.User) bool) (*auth.User, error) {
	current, err := tenant.Get(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.TenantID == current && match(u) {
			return u, nil
		}
	}
	return nil, shared.NotFound("User", "x")
}

func (s *stubUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.visible(ctx, func(u *auth.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.visible(ctx, func(u *auth.User) bool { return u.ID == id })
}

type stubRoles map[uuid.UUID]rbac.RoleSet

func (s stubRoles) Resolve(ctx context.Context, userID uuid.UUID) (rbac.RoleSet, rbac.PermissionSet, error) {
	if _, err := tenant.Get(ctx); err != nil {
		return nil, nil, err
	}
	return s[userID], rbac.NewPermissionSet(), nil
}

type fixture struct {
	tenants stubTenants
	users   *stubUsers
	roles   stubRoles
	tokens  *auth.TokenManager
	service *auth.Service
	acme    tenants.Tenant
	alice   *auth.User
}

func newUser(t *testing.T, tenantID uuid.UUID, email, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &auth.User{Email: email, Username: strings.Split(email, "@")[0], PasswordHash: string(hash), Enabled: true}
	u.ID = uuid.New()
	u.TenantID = tenantID
	return u
}

func newFixture(t *testing.T, revoked auth.RevocationStore) *fixture {
	t.Helper()
	acme := tenants.Tenant{ID: uuid.New(), Slug: "acme", Name: "Acme", Active: true}
	globex := tenants.Tenant{ID: uuid.New(), Slug: "globex", Name: "Globex", Active: true}
	dormant := tenants.Tenant{ID: uuid.New(), Slug: "dormant", Name: "Dormant", Active: false}
	alice := newUser(t, acme.ID, "alice@acme.test", "correct-horse")
	locked := newUser(t, acme.ID, "locked@acme.test", "correct-horse")
	locked.Locked = true
	sleeper := newUser(t, dormant.ID, "sleeper@dormant.test", "correct-horse")

	tokens, err := auth.NewTokenManager(testSecret, "stocksaas-test", time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	f := &fixture{
		tenants: stubTenants{"acme": acme, "globex": globex, "dormant": dormant},
		users:   &stubUsers{users: []*auth.User{alice, locked, sleeper}},
		roles:   stubRoles{alice.ID: rbac.NewRoleSet(rbac.RoleEmployee)},
		tokens:  tokens,
		acme:    acme,
		alice:   alice,
	}
	f.service = auth.NewService(f.tenants, f.users, f.roles, tokens, revoked, nil)
	return f
}
