package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)
	Update(ctx context.Context, tenant Tenant) error
	// UpdateStatus persists tenant only if its stored status still equals
	// expected (compare-and-swap). Returns *StatusConflictError when the
	// row changed concurrently.
	UpdateStatus(ctx context.Context, tenant Tenant, expected Status) error
}

// ListFilter holds optional criteria for listing tenants.
type ListFilter struct {
	Status *Status
	Plan   *Plan
	Limit  int
	Offset int
}

// WorkflowRepository defines the persistence contract for onboarding
// workflows and their steps.
type WorkflowRepository interface {
	CreateWorkflow(ctx context.Context, wf OnboardingWorkflow, steps []OnboardingStep) error
	GetWorkflow(ctx context.Context, id string) (OnboardingWorkflow, error)
	// ActiveByTenant returns the tenant's non-terminal workflow, or
	// ErrWorkflowNotFound when none exists.
	ActiveByTenant(ctx context.Context, tenantID string) (OnboardingWorkflow, error)
	UpdateWorkflow(ctx context.Context, wf OnboardingWorkflow) error
	ListSteps(ctx context.Context, workflowID string) ([]OnboardingStep, error)
	UpdateStep(ctx context.Context, step OnboardingStep) error
	// ReplaceSteps swaps in a fresh step set, used to self-heal a workflow
	// row found with zero steps.
	ReplaceSteps(ctx context.Context, workflowID string, steps []OnboardingStep) error
}

// LeadRepository defines the persistence contract for sales leads.
type LeadRepository interface {
	Create(ctx context.Context, lead Lead) error
	GetByID(ctx context.Context, id string) (Lead, error)
	Update(ctx context.Context, lead Lead) error
	List(ctx context.Context, status *LeadStatus, limit, offset int) ([]Lead, error)
}

// RelationshipRepository defines the persistence contract for user↔tenant
// relationships.
type RelationshipRepository interface {
	Get(ctx context.Context, userID, tenantID string) (UserTenantRelationship, error)
	// Upsert inserts or overwrites the row for (UserID, TenantID).
	// Last-writer-wins on role and active flag; concurrent calls for the
	// same pair are safe and never an error.
	Upsert(ctx context.Context, rel UserTenantRelationship) error
	ListForTenant(ctx context.Context, tenantID string) ([]UserTenantRelationship, error)
}

// ArchivalRepository persists archival job records.
type ArchivalRepository interface {
	Create(ctx context.Context, rec ArchivalRecord) error
	GetByTenant(ctx context.Context, tenantID string) (ArchivalRecord, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
}

// EventPublisher defines the contract for emitting lifecycle events. Events
// are dispatched after the authoritative state change commits and are
// best-effort from the caller's perspective.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, tenant Tenant) error
}

// ProvisionRequest carries everything needed to wire an admin identity to
// a tenant, retried asynchronously when the inline attempt fails.
type ProvisionRequest struct {
	TenantID     string
	Email        string
	Name         string
	TempPassword string
	Role         Role
}

// EmailMessage is an outbound notification handed to the delivery
// collaborator. Delivery failure is never fatal to business state.
type EmailMessage struct {
	Type         string
	TenantID     string
	Recipient    string
	TemplateData map[string]string
}

// EmailReceipt reports the outcome of a delivery attempt.
type EmailReceipt struct {
	Success   bool
	MessageID string
}

// JobScheduler enqueues long-running or best-effort work to the async job
// queue. ScheduleArchival returns the queue's job id as the caller-visible
// job reference.
type JobScheduler interface {
	ScheduleArchival(ctx context.Context, tenant Tenant, recordID string) (int64, error)
	ScheduleProvisioning(ctx context.Context, req ProvisionRequest) error
	ScheduleEmail(ctx context.Context, msg EmailMessage) error
}

// IdentityProvider is the external auth collaborator. EnsureUser creates
// or updates the identity for email and returns its user id; it must be
// idempotent per email.
type IdentityProvider interface {
	EnsureUser(ctx context.Context, email, name, tempPassword string) (string, error)
}

// Mailer is the external email-delivery collaborator.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) (EmailReceipt, error)
}

// TransitionValidator checks lifecycle transitions against the domain
// transition table.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
