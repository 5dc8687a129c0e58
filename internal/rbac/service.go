package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stocksaas/stocksaas/internal/shared"
	"github.com/stocksaas/stocksaas/internal/tenant"
)

// Repository persists role assignments and per-user permission grants. Reads take the filter
// of the unit of work; writes take the bound tenant.
type Repository interface {
	UserExists(ctx context.Context, f tenant.Filter, userID uuid.UUID) (bool, error)
	Roles(ctx context.Context, f tenant.Filter, userID uuid.UUID) ([]Role, error)
	Grants(ctx context.Context, f tenant.Filter, userID uuid.UUID) ([]Permission, error)
	AddRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error
	RemoveRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) (bool, error)
	ReplaceRoles(ctx context.Context, tenantID, userID uuid.UUID, roles []Role) error
	AddGrant(ctx context.Context, tenantID, userID uuid.UUID, perm Permission) error
	RemoveGrant(ctx context.Context, tenantID, userID uuid.UUID, perm Permission) (bool, error)
}

// Service orchestrates RBAC operations within the bound tenant.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// UserRoles returns the roles assigned to userID.
func (s *Service) UserRoles(ctx context.Context, userID uuid.UUID) (RoleSet, error) {
	f, err := tenant.FilterFor(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := s.repo.Roles(ctx, f, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles: %w", err)
	}
	return NewRoleSet(roles...), nil
}

// Grants returns the extra permissions granted to userID on top of its roles.
func (s *Service) Grants(ctx context.Context, userID uuid.UUID) (PermissionSet, error) {
	f, err := tenant.FilterFor(ctx)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.Grants(ctx, f, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: grants: %w", err)
	}
	return NewPermissionSet(perms...), nil
}

// Resolve loads the roles and grants of userID. A user hidden by the tenant filter is NotFound.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID) (RoleSet, PermissionSet, error) {
	f, err := tenant.FilterFor(ctx)
	if err != nil {
		return nil, nil, err
	}
	exists, err := s.repo.UserExists(ctx, f, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("rbac: lookup user: %w", err)
	}
	if !exists {
		return nil, nil, shared.NotFound("User", userID)
	}
	roles, err := s.UserRoles(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	grants, err := s.Grants(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return roles, grants, nil
}

// AssignRole assigns role to userID.
func (s *Service) AssignRole(ctx context.Context, userID uuid.UUID, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("rbac: assign: %w", ErrUnknownRole)
	}
	tenantID, err := tenant.Get(ctx)
	if err != nil {
		return err
	}
	return s.repo.AddRole(ctx, tenantID, userID, role)
}

// RemoveRole removes role from userID.
func (s *Service) RemoveRole(ctx context.Context, userID uuid.UUID, role Role) error {
	tenantID, err := tenant.Get(ctx)
	if err != nil {
		return err
	}
	removed, err := s.repo.RemoveRole(ctx, tenantID, userID, role)
	if err != nil {
		return err
	}
	if !removed {
		return shared.NotFound("Role assignment", role)
	}
	return nil
}

// SetRoles replaces every role of userID with roles.
func (s *Service) SetRoles(ctx context.Context, userID uuid.UUID, roles ...Role) error {
	for _, r := range roles {
		if !r.Valid() {
			return fmt.Errorf("rbac: set roles: %w", ErrUnknownRole)
		}
	}
	tenantID, err := tenant.Get(ctx)
	if err != nil {
		return err
	}
	return s.repo.ReplaceRoles(ctx, tenantID, userID, NewRoleSet(roles...).Sorted())
}

// Grant adds a per-user permission.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, perm Permission) error {
	if !perm.Valid() {
		return fmt.Errorf("rbac: grant: %w", ErrUnknownPermission)
	}
	tenantID, err := tenant.Get(ctx)
	if err != nil {
		return err
	}
	return s.repo.AddGrant(ctx, tenantID, userID, perm)
}

// Revoke removes a per-user permission.
func (s *Service) Revoke(ctx context.Context, userID uuid.UUID, perm Permission) error {
	tenantID, err := tenant.Get(ctx)
	if err != nil {
		return err
	}
	removed, err := s.repo.RemoveGrant(ctx, tenantID, userID, perm)
	if err != nil {
		return err
	}
	if !removed {
		return shared.NotFound("Permission grant", perm)
	}
	return nil
}

// EffectivePermissions is the union of the role defaults and the per-user grants.
func EffectivePermissions(roles RoleSet, grants PermissionSet) PermissionSet {
	return PermissionsForRoles(roles.Sorted()...).Union(grants)
}
