package app_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// tableValidator validates transitions directly against the domain table,
// standing in for the FSM adapter.
type tableValidator struct{}

func (tableValidator) Apply(_ context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	for _, tr := range domain.Transitions {
		if tr.Event == event && tr.Src == current {
			return tr.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// --- Tenant repository mock ---

type mockTenantRepo struct {
	tenants map[string]domain.Tenant
	// forcedStatus, when set, overrides the stored status during the
	// compare-and-swap check to simulate a concurrent writer.
	forcedStatus map[string]domain.Status
	failGetByID  error
}

func newMockTenantRepo() *mockTenantRepo {
	return &mockTenantRepo{
		tenants:      make(map[string]domain.Tenant),
		forcedStatus: make(map[string]domain.Status),
	}
}

func (m *mockTenantRepo) Create(_ context.Context, t domain.Tenant) error {
	for _, existing := range m.tenants {
		if existing.Slug == t.Slug {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenantRepo) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	if m.failGetByID != nil {
		return domain.Tenant{}, m.failGetByID
	}
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockTenantRepo) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockTenantRepo) List(_ context.Context, _ domain.ListFilter) ([]domain.Tenant, error) {
	out := make([]domain.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTenantRepo) Update(_ context.Context, t domain.Tenant) error {
	if _, ok := m.tenants[t.ID]; !ok {
		return domain.ErrTenantNotFound
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockTenantRepo) UpdateStatus(_ context.Context, t domain.Tenant, expected domain.Status) error {
	stored, ok := m.tenants[t.ID]
	if !ok {
		return domain.ErrTenantNotFound
	}
	current := stored.Status
	if forced, ok := m.forcedStatus[t.ID]; ok {
		current = forced
	}
	if current != expected {
		return &domain.StatusConflictError{TenantID: t.ID, Expected: expected}
	}
	m.tenants[t.ID] = t
	return nil
}

// --- Workflow repository mock ---

type mockWorkflowRepo struct {
	workflows map[string]domain.OnboardingWorkflow
	steps     map[string][]domain.OnboardingStep
}

func newMockWorkflowRepo() *mockWorkflowRepo {
	return &mockWorkflowRepo{
		workflows: make(map[string]domain.OnboardingWorkflow),
		steps:     make(map[string][]domain.OnboardingStep),
	}
}

func (m *mockWorkflowRepo) CreateWorkflow(_ context.Context, wf domain.OnboardingWorkflow, steps []domain.OnboardingStep) error {
	m.workflows[wf.ID] = wf
	m.steps[wf.ID] = append([]domain.OnboardingStep(nil), steps...)
	return nil
}

func (m *mockWorkflowRepo) GetWorkflow(_ context.Context, id string) (domain.OnboardingWorkflow, error) {
	wf, ok := m.workflows[id]
	if !ok {
		return domain.OnboardingWorkflow{}, domain.ErrWorkflowNotFound
	}
	return wf, nil
}

func (m *mockWorkflowRepo) ActiveByTenant(_ context.Context, tenantID string) (domain.OnboardingWorkflow, error) {
	for _, wf := range m.workflows {
		if wf.TenantID == tenantID && !wf.Status.IsTerminal() {
			return wf, nil
		}
	}
	return domain.OnboardingWorkflow{}, domain.ErrWorkflowNotFound
}

func (m *mockWorkflowRepo) UpdateWorkflow(_ context.Context, wf domain.OnboardingWorkflow) error {
	if _, ok := m.workflows[wf.ID]; !ok {
		return domain.ErrWorkflowNotFound
	}
	m.workflows[wf.ID] = wf
	return nil
}

func (m *mockWorkflowRepo) ListSteps(_ context.Context, workflowID string) ([]domain.OnboardingStep, error) {
	steps := append([]domain.OnboardingStep(nil), m.steps[workflowID]...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })
	return steps, nil
}

func (m *mockWorkflowRepo) UpdateStep(_ context.Context, step domain.OnboardingStep) error {
	steps := m.steps[step.WorkflowID]
	for i := range steps {
		if steps[i].Number == step.Number {
			steps[i] = step
			return nil
		}
	}
	return fmt.Errorf("step %d not found", step.Number)
}

func (m *mockWorkflowRepo) ReplaceSteps(_ context.Context, workflowID string, steps []domain.OnboardingStep) error {
	m.steps[workflowID] = append([]domain.OnboardingStep(nil), steps...)
	return nil
}

// --- Lead repository mock ---

type mockLeadRepo struct {
	leads map[string]domain.Lead
}

func newMockLeadRepo() *mockLeadRepo {
	return &mockLeadRepo{leads: make(map[string]domain.Lead)}
}

func (m *mockLeadRepo) Create(_ context.Context, l domain.Lead) error {
	m.leads[l.ID] = l
	return nil
}

func (m *mockLeadRepo) GetByID(_ context.Context, id string) (domain.Lead, error) {
	l, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, domain.ErrLeadNotFound
	}
	return l, nil
}

func (m *mockLeadRepo) Update(_ context.Context, l domain.Lead) error {
	if _, ok := m.leads[l.ID]; !ok {
		return domain.ErrLeadNotFound
	}
	m.leads[l.ID] = l
	return nil
}

func (m *mockLeadRepo) List(_ context.Context, _ *domain.LeadStatus, _, _ int) ([]domain.Lead, error) {
	out := make([]domain.Lead, 0, len(m.leads))
	for _, l := range m.leads {
		out = append(out, l)
	}
	return out, nil
}

// --- Relationship repository mock ---

type relKey struct{ userID, tenantID string }

type mockRelRepo struct {
	rels map[relKey]domain.UserTenantRelationship
	// failTenants forces Get to error for specific tenant ids.
	failTenants map[string]error
	upserts     int
}

func newMockRelRepo() *mockRelRepo {
	return &mockRelRepo{
		rels:        make(map[relKey]domain.UserTenantRelationship),
		failTenants: make(map[string]error),
	}
}

func (m *mockRelRepo) Get(_ context.Context, userID, tenantID string) (domain.UserTenantRelationship, error) {
	if err, ok := m.failTenants[tenantID]; ok {
		return domain.UserTenantRelationship{}, err
	}
	rel, ok := m.rels[relKey{userID, tenantID}]
	if !ok {
		return domain.UserTenantRelationship{}, domain.ErrRelationshipNotFound
	}
	return rel, nil
}

func (m *mockRelRepo) Upsert(_ context.Context, rel domain.UserTenantRelationship) error {
	m.upserts++
	m.rels[relKey{rel.UserID, rel.TenantID}] = rel
	return nil
}

func (m *mockRelRepo) ListForTenant(_ context.Context, tenantID string) ([]domain.UserTenantRelationship, error) {
	var out []domain.UserTenantRelationship
	for k, rel := range m.rels {
		if k.tenantID == tenantID {
			out = append(out, rel)
		}
	}
	return out, nil
}

// --- Archival repository mock ---

type mockArchivalRepo struct {
	records map[string]domain.ArchivalRecord
}

func newMockArchivalRepo() *mockArchivalRepo {
	return &mockArchivalRepo{records: make(map[string]domain.ArchivalRecord)}
}

func (m *mockArchivalRepo) Create(_ context.Context, rec domain.ArchivalRecord) error {
	m.records[rec.ID] = rec
	return nil
}

func (m *mockArchivalRepo) GetByTenant(_ context.Context, tenantID string) (domain.ArchivalRecord, error) {
	for _, rec := range m.records {
		if rec.TenantID == tenantID {
			return rec, nil
		}
	}
	return domain.ArchivalRecord{}, errors.New("archival record not found")
}

func (m *mockArchivalRepo) MarkCompleted(_ context.Context, id string, at time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return errors.New("archival record not found")
	}
	rec.CompletedAt = &at
	m.records[id] = rec
	return nil
}

// --- Publisher / scheduler / identity mocks ---

type publishedEvent struct {
	event  domain.Event
	tenant domain.Tenant
}

type mockPublisher struct {
	events  []publishedEvent
	failure error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event, t domain.Tenant) error {
	if m.failure != nil {
		return m.failure
	}
	m.events = append(m.events, publishedEvent{event: e, tenant: t})
	return nil
}

type mockScheduler struct {
	archivals  []domain.Tenant
	provisions []domain.ProvisionRequest
	emails     []domain.EmailMessage
	nextJobID  int64
}

func (m *mockScheduler) ScheduleArchival(_ context.Context, t domain.Tenant, _ string) (int64, error) {
	m.archivals = append(m.archivals, t)
	m.nextJobID++
	return m.nextJobID, nil
}

func (m *mockScheduler) ScheduleProvisioning(_ context.Context, req domain.ProvisionRequest) error {
	m.provisions = append(m.provisions, req)
	return nil
}

func (m *mockScheduler) ScheduleEmail(_ context.Context, msg domain.EmailMessage) error {
	m.emails = append(m.emails, msg)
	return nil
}

type mockIdentity struct {
	failure error
	userID  string
	calls   int
}

func (m *mockIdentity) EnsureUser(ctx context.Context, _, _, _ string) (string, error) {
	m.calls++
	if m.failure != nil {
		return "", m.failure
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.userID == "" {
		return "user-1", nil
	}
	return m.userID, nil
}

// mustTenant seeds the repo with a tenant in the given status.
func mustTenant(t *testing.T, repo *mockTenantRepo, id string, status domain.Status) domain.Tenant {
	t.Helper()
	tenant := domain.NewTenant(id, "Tenant "+id, "slug-"+id, domain.PlanStarter, domain.Owner{
		Name: "Owner", Email: "owner@" + id + ".example",
	})
	tenant.Status = status
	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}
	return tenant
}
