// Package auth authenticates callers and exposes the authenticated principal to the rest of a
// request.
package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/rbac"
)

// Principal is the authenticated user of a request.
type Principal struct {
	UserID             uuid.UUID
	TenantID           uuid.UUID
	Username           string
	Email              string
	PasswordHash       string `json:"-"`
	Roles              rbac.RoleSet
	Grants             rbac.PermissionSet
	Enabled            bool
	Locked             bool
	CredentialsExpired bool
}

// Active reports whether the account may act.
func (p *Principal) Active() bool {
	return p.Enabled && !p.Locked && !p.CredentialsExpired
}

// GrantedRoles implements rbac.Subject.
func (p *Principal) GrantedRoles() rbac.RoleSet {
	if p.Roles == nil {
		return rbac.NewRoleSet()
	}
	return p.Roles
}

// GrantedPermissions implements rbac.Subject. Role defaults are unioned with per-user grants.
func (p *Principal) GrantedPermissions() rbac.PermissionSet {
	return rbac.EffectivePermissions(p.GrantedRoles(), p.Grants)
}

// HasRole reports whether r is assigned to the principal.
func (p *Principal) HasRole(r rbac.Role) bool { return p.GrantedRoles().Has(r) }

// HasPermission checks perm against role defaults and per-user grants.
func (p *Principal) HasPermission(perm rbac.Permission) bool {
	return p.GrantedPermissions().Has(perm)
}

// HasRoleLevel reports whether any held role is at or above min.
func (p *Principal) HasRoleLevel(min rbac.Role) bool {
	return rbac.HighestRole(p.GrantedRoles()).HasLevel(min)
}

// LogValue keeps credentials out of logs.
func (p *Principal) LogValue() slog.Value {
	if p == nil {
		return slog.StringValue("anonymous")
	}
	return slog.GroupValue(
		slog.String("user_id", p.UserID.String()),
		slog.String("tenant_id", p.TenantID.String()),
		slog.String("username", p.Username),
		slog.Any("roles", p.GrantedRoles().Strings()),
	)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Subject adapts PrincipalFrom to rbac.SubjectFunc.
func Subject(ctx context.Context) (rbac.Subject, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return nil, false
	}
	return p, true
}
