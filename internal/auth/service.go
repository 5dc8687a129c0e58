package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stocksaas/stocksaas/internal/rbac"
	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
	"github.com/stocksaas/stocksaas/internal/tenants"
)

// TenantResolver finds tenants by slug or id.
type TenantResolver interface {
	Resolve(ctx context.Context, slug string) (tenants.Tenant, error)
	Lookup(ctx context.Context, id uuid.UUID) (tenants.Tenant, error)
}

// RoleResolver loads the roles and grants of a user within the bound tenant.
type RoleResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (rbac.RoleSet, rbac.PermissionSet, error)
}

// Service wraps authentication business rules.
type Service struct {
	tenants TenantResolver
	users   UserStore
	roles   RoleResolver
	tokens  *TokenManager
	revoked RevocationStore
	logger  *slog.Logger
}

// NewService constructs a new Service. revoked may be nil, in which case logout is a no-op.
func NewService(tenants TenantResolver, users UserStore, roles RoleResolver, tokens *TokenManager, revoked RevocationStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tenants: tenants, users: users, roles: roles, tokens: tokens, revoked: revoked, logger: logger}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// burnCompare spends the same bcrypt work as a real check so unknown accounts cannot be told
// apart by timing.
func burnCompare(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stocksaas-unknown-account"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// Authenticate validates credentials for email within the tenant named by tenantSlug and issues
// a bearer token. Every failure is reported as shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, tenantSlug, email, password string) (*Principal, Token, error) {
	t, err := s.tenants.Resolve(ctx, tenantSlug)
	if err != nil || !t.Active {
		burnCompare(password)
		s.reject(ctx, "unknown or inactive tenant", err)
		return nil, Token{}, shared.ErrInvalidCredentials
	}

	var principal *Principal
	err = tenant.Run(ctx, t.ID, func(ctx context.Context) error {
		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			burnCompare(password)
			return err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return err
		}
		principal, err = s.principal(ctx, user)
		if err != nil {
			return err
		}
		if !principal.Active() {
			return errors.New("account not active")
		}
		return nil
	})
	if err != nil {
		s.reject(ctx, "credential check failed", err)
		return nil, Token{}, shared.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, Token{}, err
	}
	s.logger.InfoContext(ctx, "login succeeded", slog.Any("principal", principal))
	return principal, token, nil
}

// Load rebuilds the principal named by claims from storage. The tenant of claims must already
// be bound to ctx.
func (s *Service) Load(ctx context.Context, claims *Claims) (*Principal, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.principal(ctx, user)
}

// Logout revokes the token described by claims.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	if s.revoked == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (s *Service) principal(ctx context.Context, u *User) (*Principal, error) {
	roles, grants, err := s.roles.Resolve(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Principal{
		UserID:             u.ID,
		TenantID:           u.TenantID,
		Username:           u.Username,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Roles:              roles,
		Grants:             grants,
		Enabled:            u.Enabled,
		Locked:             u.Locked,
		CredentialsExpired: u.CredentialsExpired,
	}, nil
}

func (s *Service) reject(ctx context.Context, reason string, err error) {
	attrs := []any{slog.String("reason", reason)}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}
	s.logger.WarnContext(ctx, "login rejected", attrs...)
}
