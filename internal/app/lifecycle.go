package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// TenantService orchestrates tenant lifecycle operations. All status
// writes go through the repository's compare-and-swap so a concurrent
// transition on the same tenant loses cleanly with a conflict error.
type TenantService struct {
	repo       domain.TenantRepository
	archives   domain.ArchivalRepository
	publisher  domain.EventPublisher
	validator  domain.TransitionValidator
	scheduler  domain.JobScheduler
	onboarding *OnboardingService
	logger     *slog.Logger
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(
	repo domain.TenantRepository,
	archives domain.ArchivalRepository,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	scheduler domain.JobScheduler,
	onboarding *OnboardingService,
	logger *slog.Logger,
) *TenantService {
	return &TenantService{
		repo:       repo,
		archives:   archives,
		publisher:  publisher,
		validator:  validator,
		scheduler:  scheduler,
		onboarding: onboarding,
		logger:     logger,
	}
}

// Create persists a new tenant in the approval queue.
func (s *TenantService) Create(ctx context.Context, name, slug string, plan domain.Plan, owner domain.Owner) (domain.Tenant, error) {
	if err := validateNewTenant(name, slug, owner); err != nil {
		return domain.Tenant{}, err
	}

	// Check slug uniqueness before creating.
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return domain.Tenant{}, &domain.SlugConflictError{Slug: slug}
	}

	id, err := generateID("tnt")
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generating tenant id: %w", err)
	}

	tenant := domain.NewTenant(id, name, slug, plan, owner)

	if err := s.repo.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}

	// A tenant entering the approval queue gets its setup checklist right
	// away. Losing it here is recoverable (CreateWorkflow is idempotent),
	// so a failure does not abort the create.
	if _, err := s.onboarding.CreateWorkflow(ctx, tenant.ID); err != nil {
		s.logger.WarnContext(ctx, "creating onboarding workflow failed",
			"tenant_id", tenant.ID,
			"error", err,
		)
	}

	return tenant, nil
}

// GetByID returns a tenant by its unique identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySlug returns a tenant by its slug.
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// List returns tenants matching the given filter.
func (s *TenantService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	return s.repo.List(ctx, filter)
}

// UpdateParams holds the mutable tenant fields. The slug is immutable once
// assigned and deliberately absent here.
type UpdateParams struct {
	Name       *string
	Plan       *domain.Plan
	OwnerName  *string
	OwnerEmail *string
	OwnerPhone *string
}

// Update mutates a tenant's name, plan, or owner contact fields. Changing
// the plan resets the resource limits to the new plan's defaults.
func (s *TenantService) Update(ctx context.Context, id string, params UpdateParams) (domain.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return domain.Tenant{}, &domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		tenant.Name = *params.Name
	}
	if params.Plan != nil {
		tenant.Plan = *params.Plan
		tenant.Limits = domain.DefaultLimits(*params.Plan)
	}
	if params.OwnerName != nil {
		tenant.Owner.Name = *params.OwnerName
	}
	if params.OwnerEmail != nil {
		tenant.Owner.Email = *params.OwnerEmail
	}
	if params.OwnerPhone != nil {
		tenant.Owner.Phone = *params.OwnerPhone
	}
	tenant.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}
	return tenant, nil
}

// Approve moves a pending tenant into its trial period.
func (s *TenantService) Approve(ctx context.Context, id string) (domain.Tenant, error) {
	return s.transition(ctx, id, domain.EventApprove, nil)
}

// Activate upgrades a pending or trial tenant to full active status.
func (s *TenantService) Activate(ctx context.Context, id string) (domain.Tenant, error) {
	return s.transition(ctx, id, domain.EventActivate, nil)
}

// Suspend takes an active tenant offline for writes. The tenant stays
// fully readable and no data is deleted.
func (s *TenantService) Suspend(ctx context.Context, id, reason string) (domain.Tenant, error) {
	return s.transition(ctx, id, domain.EventSuspend, func(t *domain.Tenant) {
		now := time.Now().UTC()
		t.SuspendedAt = &now
		t.SuspensionReason = reason
		t.WritesEnabled = false
	})
}

// Reactivate restores a suspended tenant: suspension fields are cleared
// and feature limits reset to the plan's defaults.
func (s *TenantService) Reactivate(ctx context.Context, id string) (domain.Tenant, error) {
	return s.transition(ctx, id, domain.EventReactivate, func(t *domain.Tenant) {
		t.SuspendedAt = nil
		t.SuspensionReason = ""
		t.WritesEnabled = true
		t.Limits = domain.DefaultLimits(t.Plan)
	})
}

// Archive irreversibly retires a suspended tenant. The data export runs as
// an async job; the returned id is the job reference, not a completion
// guarantee. The status flip itself commits synchronously under the
// compare-and-swap, so a second archive attempt fails the precondition
// instead of double-archiving.
func (s *TenantService) Archive(ctx context.Context, id, location, encryptionKeyID string) (domain.Tenant, int64, error) {
	if strings.TrimSpace(location) == "" {
		return domain.Tenant{}, 0, &domain.ValidationError{Field: "archiveLocation", Reason: "must not be empty"}
	}
	if strings.TrimSpace(encryptionKeyID) == "" {
		return domain.Tenant{}, 0, &domain.ValidationError{Field: "encryptionKeyId", Reason: "must not be empty"}
	}

	tenant, err := s.transition(ctx, id, domain.EventArchive, func(t *domain.Tenant) {
		now := time.Now().UTC()
		t.ArchivedAt = &now
		t.ArchiveLocation = location
		t.EncryptionKeyID = encryptionKeyID
		t.WritesEnabled = false
	})
	if err != nil {
		return domain.Tenant{}, 0, err
	}

	recordID, err := generateID("arc")
	if err != nil {
		return domain.Tenant{}, 0, fmt.Errorf("generating archival record id: %w", err)
	}

	jobID, err := s.scheduler.ScheduleArchival(ctx, tenant, recordID)
	if err != nil {
		return domain.Tenant{}, 0, fmt.Errorf("scheduling archival job: %w", err)
	}

	rec := domain.ArchivalRecord{
		ID:              recordID,
		TenantID:        tenant.ID,
		Location:        location,
		EncryptionKeyID: encryptionKeyID,
		JobID:           jobID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.archives.Create(ctx, rec); err != nil {
		return domain.Tenant{}, 0, fmt.Errorf("recording archival job: %w", err)
	}

	return tenant, jobID, nil
}

// Expire marks a tenant's subscription as lapsed and disables its
// features. Driven by billing webhook events, never user-initiated.
func (s *TenantService) Expire(ctx context.Context, id string) (domain.Tenant, error) {
	return s.transition(ctx, id, domain.EventExpire, func(t *domain.Tenant) {
		t.WritesEnabled = false
	})
}

// transition applies a lifecycle event: validate against the transition
// table, apply side effects, commit with the optimistic status check, then
// publish the event. Publishing happens after the commit and is
// best-effort: a queue hiccup must not fail an already-committed change.
func (s *TenantService) transition(ctx context.Context, id string, event domain.Event, mutate func(*domain.Tenant)) (domain.Tenant, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	next, err := s.validator.Apply(ctx, tenant.Status, event)
	if err != nil {
		return domain.Tenant{}, err
	}

	expected := tenant.Status
	tenant.Status = next
	if mutate != nil {
		mutate(&tenant)
	}
	tenant.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateStatus(ctx, tenant, expected); err != nil {
		return domain.Tenant{}, err
	}

	if err := s.publisher.Publish(ctx, event, tenant); err != nil {
		s.logger.WarnContext(ctx, "publishing lifecycle event failed",
			"event", event,
			"tenant_id", tenant.ID,
			"error", err,
		)
	}

	return tenant, nil
}

func validateNewTenant(name, slug string, owner domain.Owner) error {
	if strings.TrimSpace(name) == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(slug) == "" {
		return &domain.ValidationError{Field: "slug", Reason: "must not be empty"}
	}
	if strings.TrimSpace(owner.Email) == "" {
		return &domain.ValidationError{Field: "ownerEmail", Reason: "must not be empty"}
	}
	return nil
}
