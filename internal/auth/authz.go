package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/rbac"
)

// IsAuthenticated reports whether ctx carries a principal.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := PrincipalFrom(ctx)
	return ok
}

// CurrentUserID returns the id of the authenticated user.
func CurrentUserID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.UserID, true
}

// CurrentTenantID returns the tenant of the authenticated user.
func CurrentTenantID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.TenantID, true
}

// CurrentUsername returns the username of the authenticated user.
func CurrentUsername(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", false
	}
	return p.Username, true
}

// CurrentRoles is empty, never nil, for anonymous callers.
func CurrentRoles(ctx context.Context) rbac.RoleSet {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return rbac.NewRoleSet()
	}
	return p.GrantedRoles()
}

// CurrentPermissions is empty, never nil, for anonymous callers.
func CurrentPermissions(ctx context.Context) rbac.PermissionSet {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return rbac.NewPermissionSet()
	}
	return p.GrantedPermissions()
}

// HasRole reports whether the caller holds r.
func HasRole(ctx context.Context, r rbac.Role) bool {
	return CurrentRoles(ctx).Has(r)
}

// HasAnyRole reports whether the caller holds at least one of roles.
func HasAnyRole(ctx context.Context, roles ...rbac.Role) bool {
	return CurrentRoles(ctx).HasAny(roles...)
}

// HasPermission reports whether perm is among the caller's effective permissions.
func HasPermission(ctx context.Context, perm rbac.Permission) bool {
	return CurrentPermissions(ctx).Has(perm)
}

// HasAnyPermission is false when perms is empty.
func HasAnyPermission(ctx context.Context, perms ...rbac.Permission) bool {
	return CurrentPermissions(ctx).HasAny(perms...)
}

// HasAllPermissions is true when perms is empty.
func HasAllPermissions(ctx context.Context, perms ...rbac.Permission) bool {
	return CurrentPermissions(ctx).HasAll(perms...)
}

// HasRoleLevel reports whether the caller's highest role is at or above min.
func HasRoleLevel(ctx context.Context, min rbac.Role) bool {
	p, ok := PrincipalFrom(ctx)
	return ok && p.HasRoleLevel(min)
}

// Actor adapts CurrentUserID to tenant.ActorFunc.
func Actor(ctx context.Context) (uuid.UUID, bool) {
	return CurrentUserID(ctx)
}
