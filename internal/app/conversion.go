package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// ConversionService turns a qualified lead into a trial tenant. The saga's
// primary success criterion is "the tenant exists": identity provisioning
// is best-effort with an async retry, and only the early gates (lead
// qualification, slug uniqueness) abort the pipeline.
type ConversionService struct {
	leads            domain.LeadRepository
	tenants          domain.TenantRepository
	rels             domain.RelationshipRepository
	onboarding       *OnboardingService
	identity         domain.IdentityProvider
	scheduler        domain.JobScheduler
	provisionTimeout time.Duration
	logger           *slog.Logger
}

// NewConversionService wires the conversion pipeline. provisionTimeout
// bounds the inline identity-provisioning attempt.
func NewConversionService(
	leads domain.LeadRepository,
	tenants domain.TenantRepository,
	rels domain.RelationshipRepository,
	onboarding *OnboardingService,
	identity domain.IdentityProvider,
	scheduler domain.JobScheduler,
	provisionTimeout time.Duration,
	logger *slog.Logger,
) *ConversionService {
	if provisionTimeout <= 0 {
		provisionTimeout = 10 * time.Second
	}
	return &ConversionService{
		leads:            leads,
		tenants:          tenants,
		rels:             rels,
		onboarding:       onboarding,
		identity:         identity,
		scheduler:        scheduler,
		provisionTimeout: provisionTimeout,
		logger:           logger,
	}
}

// ConversionResult is returned to the caller on success. The temporary
// password is shown exactly once and never persisted by this service.
type ConversionResult struct {
	TenantID     string
	TempPassword string
}

// CreateLead registers a new prospect.
func (s *ConversionService) CreateLead(ctx context.Context, name, company, email, phone string) (domain.Lead, error) {
	if email == "" {
		return domain.Lead{}, &domain.ValidationError{Field: "email", Reason: "must not be empty"}
	}

	id, err := generateID("lead")
	if err != nil {
		return domain.Lead{}, fmt.Errorf("generating lead id: %w", err)
	}

	lead := domain.NewLead(id, name, company, email, phone)
	if err := s.leads.Create(ctx, lead); err != nil {
		return domain.Lead{}, fmt.Errorf("creating lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns leads, optionally filtered by status.
func (s *ConversionService) ListLeads(ctx context.Context, status *domain.LeadStatus, limit, offset int) ([]domain.Lead, error) {
	return s.leads.List(ctx, status, limit, offset)
}

// GetLead returns a lead by id.
func (s *ConversionService) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	return s.leads.GetByID(ctx, id)
}

// UpdateLeadStatus moves a lead through the sales pipeline. Converted
// leads are immutable; conversion itself only happens through Convert.
func (s *ConversionService) UpdateLeadStatus(ctx context.Context, id string, status domain.LeadStatus) (domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	if lead.Status == domain.LeadConverted {
		return domain.Lead{}, &domain.ValidationError{Field: "status", Reason: "converted leads are immutable"}
	}
	if status == domain.LeadConverted {
		return domain.Lead{}, &domain.ValidationError{Field: "status", Reason: "use the conversion pipeline to convert a lead"}
	}

	lead.Status = status
	lead.UpdatedAt = time.Now().UTC()
	if err := s.leads.Update(ctx, lead); err != nil {
		return domain.Lead{}, fmt.Errorf("updating lead: %w", err)
	}
	return lead, nil
}

// Convert runs the lead-to-tenant saga:
//
//  1. the lead must be qualified (re-invoking on a converted lead fails here),
//  2. the slug must be free,
//  3. the tenant is created in trial with owner fields defaulted from the lead,
//  4. a temporary password is generated,
//  5. the admin identity is provisioned best-effort under a bounded timeout —
//     a failure is logged and retried asynchronously, never rolled back,
//  6. the lead is marked converted with the tenant back-reference.
func (s *ConversionService) Convert(ctx context.Context, leadID, tenantName, slug string, plan domain.Plan, adminEmail, adminName string) (ConversionResult, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return ConversionResult{}, err
	}
	if lead.Status != domain.LeadQualified {
		return ConversionResult{}, &domain.LeadNotQualifiedError{LeadID: lead.ID, Status: lead.Status}
	}

	if _, err := s.tenants.GetBySlug(ctx, slug); err == nil {
		return ConversionResult{}, &domain.SlugConflictError{Slug: slug}
	}

	if adminEmail == "" {
		adminEmail = lead.Email
	}
	if adminName == "" {
		adminName = lead.Name
	}

	tenantID, err := generateID("tnt")
	if err != nil {
		return ConversionResult{}, fmt.Errorf("generating tenant id: %w", err)
	}

	owner := domain.Owner{Name: adminName, Email: adminEmail, Phone: lead.Phone}
	tenant := domain.NewTrialTenant(tenantID, tenantName, slug, plan, owner)
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return ConversionResult{}, fmt.Errorf("creating tenant: %w", err)
	}

	password, err := GenerateTempPassword()
	if err != nil {
		return ConversionResult{}, fmt.Errorf("generating temporary password: %w", err)
	}

	// A new tenant always gets a fresh onboarding workflow. Losing it here
	// is recoverable (CreateWorkflow is idempotent on later calls), so a
	// failure does not abort the conversion.
	if _, err := s.onboarding.CreateWorkflow(ctx, tenant.ID); err != nil {
		s.logger.ErrorContext(ctx, "creating onboarding workflow failed",
			"tenant_id", tenant.ID,
			"error", err,
		)
	}

	s.provisionAdmin(ctx, tenant, adminEmail, adminName, password)

	lead.MarkConverted(tenant.ID)
	if err := s.leads.Update(ctx, lead); err != nil {
		return ConversionResult{}, fmt.Errorf("marking lead converted: %w", err)
	}

	if err := s.scheduler.ScheduleEmail(ctx, domain.EmailMessage{
		Type:      "tenant_welcome",
		TenantID:  tenant.ID,
		Recipient: adminEmail,
		TemplateData: map[string]string{
			"tenant_name": tenant.Name,
			"slug":        tenant.Slug,
		},
	}); err != nil {
		s.logger.WarnContext(ctx, "scheduling welcome email failed",
			"tenant_id", tenant.ID,
			"error", err,
		)
	}

	return ConversionResult{TenantID: tenant.ID, TempPassword: password}, nil
}

// provisionAdmin wires the admin identity and its tenant relationship.
// The tenant row is already committed: any failure here is logged and
// handed to the async retry queue, never propagated.
func (s *ConversionService) provisionAdmin(ctx context.Context, tenant domain.Tenant, email, name, password string) {
	pctx, cancel := context.WithTimeout(ctx, s.provisionTimeout)
	defer cancel()

	userID, err := s.identity.EnsureUser(pctx, email, name, password)
	if err == nil {
		err = s.rels.Upsert(ctx, domain.NewRelationship(userID, tenant.ID, domain.RoleTenantAdmin))
		if err == nil {
			return
		}
	}

	s.logger.WarnContext(ctx, "identity provisioning failed, scheduling retry",
		"tenant_id", tenant.ID,
		"email", email,
		"error", err,
	)

	if err := s.scheduler.ScheduleProvisioning(ctx, domain.ProvisionRequest{
		TenantID:     tenant.ID,
		Email:        email,
		Name:         name,
		TempPassword: password,
		Role:         domain.RoleTenantAdmin,
	}); err != nil {
		s.logger.ErrorContext(ctx, "scheduling provisioning retry failed",
			"tenant_id", tenant.ID,
			"error", err,
		)
	}
}
