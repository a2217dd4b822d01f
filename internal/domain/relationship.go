package domain

import "time"

// UserTenantRelationship links a user to a tenant with a tenant-scoped
// role. At most one active relationship exists per (user, tenant) pair;
// super admins are implicitly valid for every tenant without a stored row.
type UserTenantRelationship struct {
	UserID    string
	TenantID  string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRelationship creates an active relationship with the given role.
func NewRelationship(userID, tenantID string, role Role) UserTenantRelationship {
	now := time.Now().UTC()
	return UserTenantRelationship{
		UserID:    userID,
		TenantID:  tenantID,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
