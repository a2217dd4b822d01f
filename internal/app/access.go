package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// Issue strings reported by the access validator.
const (
	IssueNotAuthenticated     = "not authenticated"
	IssueRelationshipMissing  = "relationship missing"
	IssueRelationshipInactive = "relationship inactive"
)

// ValidationStatus describes a user's standing with respect to one tenant.
type ValidationStatus struct {
	TenantID           string
	UserExistsInAuth   bool
	RelationshipExists bool
	Role               domain.Role
	IsValid            bool
	CanAutoFix         bool
	Issues             []string
}

// AccessService validates and repairs user↔tenant relationships. Super
// admins are implicitly valid for every tenant without a stored row; that
// bypass lives here and in the permission resolver only.
type AccessService struct {
	rels        domain.RelationshipRepository
	itemTimeout time.Duration
	logger      *slog.Logger
}

// NewAccessService creates an access validator. itemTimeout bounds each
// lookup in ValidateMany so one slow tenant cannot stall the whole batch.
func NewAccessService(rels domain.RelationshipRepository, itemTimeout time.Duration, logger *slog.Logger) *AccessService {
	if itemTimeout <= 0 {
		itemTimeout = 2 * time.Second
	}
	return &AccessService{rels: rels, itemTimeout: itemTimeout, logger: logger}
}

// Validate determines whether the caller has a usable relationship with
// the tenant. It never returns an error for business conditions; every
// outcome is expressed in the status struct.
func (s *AccessService) Validate(ctx context.Context, id domain.Identity, tenantID string) ValidationStatus {
	status := ValidationStatus{TenantID: tenantID}

	if id.IsZero() {
		status.Issues = append(status.Issues, IssueNotAuthenticated)
		return status
	}
	status.UserExistsInAuth = true

	isSuperAdmin := id.Role == domain.RoleSuperAdmin

	rel, err := s.rels.Get(ctx, id.UserID, tenantID)
	switch {
	case errors.Is(err, domain.ErrRelationshipNotFound):
		status.Issues = append(status.Issues, IssueRelationshipMissing)
		status.CanAutoFix = isSuperAdmin
	case err != nil:
		s.logger.WarnContext(ctx, "relationship lookup failed",
			"user_id", id.UserID,
			"tenant_id", tenantID,
			"error", err,
		)
		status.Issues = append(status.Issues, fmt.Sprintf("relationship lookup failed: %v", err))
	case !rel.IsActive:
		status.RelationshipExists = true
		status.Role = rel.Role
		status.Issues = append(status.Issues, IssueRelationshipInactive)
		status.CanAutoFix = isSuperAdmin
	default:
		status.RelationshipExists = true
		status.Role = rel.Role
		status.IsValid = true
	}

	if isSuperAdmin {
		status.IsValid = true
	}
	return status
}

// ValidateMany validates the caller against each tenant id. Every id gets
// an entry; a failed or timed-out lookup yields an invalid entry rather
// than aborting the batch.
func (s *AccessService) ValidateMany(ctx context.Context, id domain.Identity, tenantIDs []string) map[string]ValidationStatus {
	out := make(map[string]ValidationStatus, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		itemCtx, cancel := context.WithTimeout(ctx, s.itemTimeout)
		out[tenantID] = s.Validate(itemCtx, id, tenantID)
		cancel()
	}
	return out
}

// CreateRelationship is the auto-fix operation: an idempotent upsert keyed
// on (user, tenant), safe under concurrent calls for the same pair
// (last-writer-wins on role and active flag). Role defaults to
// tenant_admin when empty.
func (s *AccessService) CreateRelationship(ctx context.Context, id domain.Identity, tenantID string, role domain.Role) (domain.UserTenantRelationship, error) {
	if id.IsZero() {
		return domain.UserTenantRelationship{}, &domain.NotAuthorizedError{Reason: IssueNotAuthenticated}
	}
	if role == "" {
		role = domain.RoleTenantAdmin
	}

	rel := domain.NewRelationship(id.UserID, tenantID, role)
	if err := s.rels.Upsert(ctx, rel); err != nil {
		return domain.UserTenantRelationship{}, fmt.Errorf("upserting relationship: %w", err)
	}
	return rel, nil
}
