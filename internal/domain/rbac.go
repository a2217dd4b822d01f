package domain

import "strings"

// Role is a system-wide or tenant-scoped role name.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RolePlatformAdmin Role = "platform_admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleTenantUser    Role = "tenant_user"
	RoleFarmer        Role = "farmer"
	RoleDealer        Role = "dealer"
)

// Permission is a "resource:action" key, e.g. "tenants:suspend".
type Permission string

// PermissionSet is the resolved set of permissions for a user. Absence of
// a permission is always represented by false, never by an error.
type PermissionSet map[Permission]struct{}

// rolePermissions is the static role→permission table. Resolution is the
// union of the system role's and tenant role's entries; a tenant role can
// only add to what the system role grants.
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		"tenants:create", "tenants:read", "tenants:update",
		"tenants:suspend", "tenants:reactivate", "tenants:archive",
		"leads:create", "leads:read", "leads:update", "leads:convert",
		"workflows:read", "workflows:advance",
		"relationships:create", "relationships:read",
		"users:manage", "billing:manage",
	},
	RolePlatformAdmin: {
		"tenants:create", "tenants:read", "tenants:update",
		"tenants:suspend", "tenants:reactivate",
		"leads:create", "leads:read", "leads:update", "leads:convert",
		"workflows:read", "workflows:advance",
		"relationships:read",
	},
	RoleTenantAdmin: {
		"tenants:read", "tenants:update",
		"workflows:read", "workflows:advance",
		"relationships:read",
		"users:manage",
	},
	RoleTenantUser: {
		"tenants:read",
		"workflows:read",
	},
	RoleFarmer: {
		"tenants:read",
	},
	RoleDealer: {
		"tenants:read",
	},
}

// Resolve maps a (system role, tenant role) pair to the effective
// permission set. Pure and total: unknown roles simply contribute nothing.
func Resolve(userRole, tenantRole Role) PermissionSet {
	set := make(PermissionSet)
	for _, p := range rolePermissions[userRole] {
		set[p] = struct{}{}
	}
	for _, p := range rolePermissions[tenantRole] {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether the set contains at least one of the permissions.
func (s PermissionSet) HasAny(ps ...Permission) bool {
	for _, p := range ps {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether the set contains every one of the permissions.
func (s PermissionSet) HasAll(ps ...Permission) bool {
	for _, p := range ps {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// CanAccess checks a resource/action pair using the resource:action key
// convention.
func (s PermissionSet) CanAccess(resource, action string) bool {
	return s.Has(Permission(resource + ":" + action))
}

// Identity is the authenticated caller as established by the edge. A zero
// Identity means unauthenticated.
type Identity struct {
	UserID string
	Role   Role
}

// IsZero reports whether no identity was established.
func (id Identity) IsZero() bool { return id.UserID == "" }

// IsPlatformLevel reports whether the role bypasses tenant scoping. This is
// the only place such checks live; callers must not re-derive it.
func (id Identity) IsPlatformLevel() bool {
	return id.Role == RoleSuperAdmin || id.Role == RolePlatformAdmin
}

// RBACContext is the derived (never persisted) authorization context for a
// request: the caller's identity plus the tenant scope and the resolved
// permission union.
type RBACContext struct {
	UserID      string
	UserRole    Role
	TenantID    string
	TenantRole  Role
	Permissions PermissionSet
}

// NewRBACContext resolves the permission set for an identity acting within
// an optional tenant scope.
func NewRBACContext(id Identity, tenantID string, tenantRole Role) RBACContext {
	return RBACContext{
		UserID:      id.UserID,
		UserRole:    id.Role,
		TenantID:    tenantID,
		TenantRole:  tenantRole,
		Permissions: Resolve(id.Role, tenantRole),
	}
}

// CanAccessTenant reports whether this context may touch the target tenant.
// Platform-level roles short-circuit true; everyone else must be scoped to
// the same tenant.
func (c RBACContext) CanAccessTenant(targetTenantID string) bool {
	if c.UserRole == RoleSuperAdmin || c.UserRole == RolePlatformAdmin {
		return true
	}
	return c.TenantID != "" && c.TenantID == targetTenantID
}

// ParseRole normalizes a role string from the wire. Unknown values map to
// the empty role, which resolves to no permissions.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RolePlatformAdmin:
		return RolePlatformAdmin
	case RoleTenantAdmin:
		return RoleTenantAdmin
	case RoleTenantUser:
		return RoleTenantUser
	case RoleFarmer:
		return RoleFarmer
	case RoleDealer:
		return RoleDealer
	default:
		return ""
	}
}
