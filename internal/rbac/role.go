package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stocksaas/stocksaas/internal/shared"
)

// ErrUnknownRole is returned when a role name is outside the closed role set.
var ErrUnknownRole = fmt.Errorf("rbac: unknown role: %w", shared.ErrNotFound)

// Role is a named position in the closed, totally ordered role hierarchy.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleTenantOwner Role = "TENANT_OWNER"
	RoleAdmin       Role = "ADMIN"
	RoleManager     Role = "MANAGER"
	RoleEmployee    Role = "EMPLOYEE"
	RoleViewer      Role = "VIEWER"
)

type roleInfo struct {
	role  Role
	level int
	label string
}

// roleTable is ordered by strictly decreasing level.
var roleTable = []roleInfo{
	{RoleSuperAdmin, 100, "Super Administrator"},
	{RoleTenantOwner, 90, "Tenant Owner"},
	{RoleAdmin, 80, "Administrator"},
	{RoleManager, 70, "Manager"},
	{RoleEmployee, 60, "Employee"},
	{RoleViewer, 50, "Viewer"},
}

var roleIndex = func() map[Role]roleInfo {
	m := make(map[Role]roleInfo, len(roleTable))
	for _, r := range roleTable {
		m[r.role] = r
	}
	return m
}()

// ParseRole resolves a role name case-insensitively. A "ROLE_" prefix is accepted.
func ParseRole(name string) (Role, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "ROLE_")
	r := Role(n)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return r, nil
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, ok := roleIndex[r]
	return ok
}

// Level returns the position of r in the hierarchy. Unknown roles have level 0.
func (r Role) Level() int {
	return roleIndex[r].level
}

// Label returns the display name of r.
func (r Role) Label() string {
	return roleIndex[r].label
}

func (r Role) String() string { return string(r) }

// HasLevel reports whether r sits at or above other.
func (r Role) HasLevel(other Role) bool {
	return r.Level() >= other.Level()
}

// IsHigherThan reports whether r sits strictly above other.
func (r Role) IsHigherThan(other Role) bool {
	return r.Level() > other.Level()
}

// AllRoles lists the roles from highest to lowest level.
func AllRoles() []Role {
	out := make([]Role, 0, len(roleTable))
	for _, r := range roleTable {
		out = append(out, r.role)
	}
	return out
}

// RolesAtOrBelow lists the roles whose level does not exceed r's, highest first.
func RolesAtOrBelow(r Role) []Role {
	var out []Role
	for _, info := range roleTable {
		if info.level <= r.Level() {
			out = append(out, info.role)
		}
	}
	return out
}

// RolesAbove lists the roles strictly above r, highest first.
func RolesAbove(r Role) []Role {
	var out []Role
	for _, info := range roleTable {
		if info.level > r.Level() {
			out = append(out, info.role)
		}
	}
	return out
}

// HighestRole returns the role with the greatest level in roles, or "" when roles is empty.
func HighestRole(roles RoleSet) Role {
	var best Role
	for r := range roles {
		if best == "" || r.Level() > best.Level() {
			best = r
		}
	}
	return best
}

func sortRoles(roles []Role) {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Level() != roles[j].Level() {
			return roles[i].Level() > roles[j].Level()
		}
		return roles[i] < roles[j]
	})
}
