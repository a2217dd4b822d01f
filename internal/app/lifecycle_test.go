package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

func newLifecycleFixture() (*app.TenantService, *mockTenantRepo, *mockArchivalRepo, *mockPublisher, *mockScheduler) {
	repo := newMockTenantRepo()
	archives := newMockArchivalRepo()
	pub := &mockPublisher{}
	sched := &mockScheduler{}
	onboarding := app.NewOnboardingService(newMockWorkflowRepo(), repo, app.OrderLenient, testLogger())
	svc := app.NewTenantService(repo, archives, pub, tableValidator{}, sched, onboarding, testLogger())
	return svc, repo, archives, pub, sched
}

func TestCreate_Success(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()

	owner := domain.Owner{Name: "Jo", Email: "jo@acme.example"}
	tenant, err := svc.Create(context.Background(), "Acme Farms", "acme", domain.PlanFree, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tenant.Status != domain.StatusPendingApproval {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusPendingApproval)
	}
	if !strings.HasPrefix(tenant.ID, "tnt_") {
		t.Errorf("ID = %q, want a tnt_ prefixed id", tenant.ID)
	}

	stored, err := repo.GetByID(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("tenant not found in repo: %v", err)
	}
	if stored.Slug != "acme" {
		t.Errorf("stored Slug = %q, want %q", stored.Slug, "acme")
	}
}

func TestCreate_StartsOnboardingWorkflow(t *testing.T) {
	repo := newMockTenantRepo()
	wfRepo := newMockWorkflowRepo()
	onboarding := app.NewOnboardingService(wfRepo, repo, app.OrderLenient, testLogger())
	svc := app.NewTenantService(repo, newMockArchivalRepo(), &mockPublisher{}, tableValidator{}, &mockScheduler{}, onboarding, testLogger())

	tenant, err := svc.Create(context.Background(), "Acme", "acme", domain.PlanFree, domain.Owner{Email: "jo@acme.example"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wf, err := wfRepo.ActiveByTenant(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("new tenant should have an onboarding workflow: %v", err)
	}
	if wf.TotalSteps != len(domain.StepTemplate) {
		t.Errorf("TotalSteps = %d, want %d", wf.TotalSteps, len(domain.StepTemplate))
	}

	steps, _ := wfRepo.ListSteps(context.Background(), wf.ID)
	if len(steps) != len(domain.StepTemplate) {
		t.Errorf("materialized %d steps, want %d", len(steps), len(domain.StepTemplate))
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _, _, _ := newLifecycleFixture()

	cases := []struct {
		name  string
		tName string
		slug  string
		owner domain.Owner
	}{
		{"empty name", "", "acme", domain.Owner{Email: "a@x.com"}},
		{"empty slug", "Acme", "", domain.Owner{Email: "a@x.com"}},
		{"empty owner email", "Acme", "acme", domain.Owner{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.tName, tc.slug, domain.PlanFree, tc.owner)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	svc, _, _, _, _ := newLifecycleFixture()
	owner := domain.Owner{Email: "a@x.com"}

	if _, err := svc.Create(context.Background(), "Acme", "acme", domain.PlanFree, owner); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.Create(context.Background(), "Acme 2", "acme", domain.PlanStarter, owner)
	var slugErr *domain.SlugConflictError
	if !errors.As(err, &slugErr) {
		t.Fatalf("expected SlugConflictError, got %v", err)
	}
	if slugErr.Slug != "acme" {
		t.Errorf("slug = %q, want %q", slugErr.Slug, "acme")
	}
}

func TestUpdate_PlanChangeResetsLimits(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusActive)

	plan := domain.PlanEnterprise
	tenant, err := svc.Update(context.Background(), "t-1", app.UpdateParams{Plan: &plan})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if tenant.Plan != domain.PlanEnterprise {
		t.Errorf("Plan = %q, want %q", tenant.Plan, domain.PlanEnterprise)
	}
	if tenant.Limits != domain.DefaultLimits(domain.PlanEnterprise) {
		t.Errorf("Limits = %+v, want enterprise defaults", tenant.Limits)
	}
}

func TestSuspend_SetsFieldsAndDisablesWrites(t *testing.T) {
	svc, repo, _, pub, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusActive)

	tenant, err := svc.Suspend(context.Background(), "t-1", "non-payment")
	if err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}

	if tenant.Status != domain.StatusSuspended {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusSuspended)
	}
	if tenant.SuspendedAt == nil {
		t.Error("SuspendedAt should be set")
	}
	if tenant.SuspensionReason != "non-payment" {
		t.Errorf("SuspensionReason = %q, want %q", tenant.SuspensionReason, "non-payment")
	}
	if tenant.WritesEnabled {
		t.Error("WritesEnabled should be false while suspended")
	}
	if len(pub.events) != 1 || pub.events[0].event != domain.EventSuspend {
		t.Errorf("expected one suspend event, got %+v", pub.events)
	}
}

func TestReactivate_ClearsSuspensionAndRestoresDefaults(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusActive)

	if _, err := svc.Suspend(context.Background(), "t-1", "maintenance"); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}

	tenant, err := svc.Reactivate(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Reactivate failed: %v", err)
	}

	if tenant.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusActive)
	}
	if tenant.SuspendedAt != nil {
		t.Error("SuspendedAt should be cleared")
	}
	if tenant.SuspensionReason != "" {
		t.Errorf("SuspensionReason = %q, want empty", tenant.SuspensionReason)
	}
	if !tenant.WritesEnabled {
		t.Error("WritesEnabled should be restored")
	}
	if tenant.Limits != domain.DefaultLimits(tenant.Plan) {
		t.Errorf("Limits = %+v, want plan defaults", tenant.Limits)
	}
}

func TestArchive_RequiresLocationAndKey(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusSuspended)

	for _, tc := range []struct{ location, keyID string }{
		{"", "key-1"},
		{"s3://archive/t-1", ""},
		{"  ", "key-1"},
	} {
		_, _, err := svc.Archive(context.Background(), "t-1", tc.location, tc.keyID)
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Archive(%q, %q): expected ValidationError, got %v", tc.location, tc.keyID, err)
		}
	}
}

func TestArchive_ReturnsJobReference(t *testing.T) {
	svc, repo, archives, _, sched := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusSuspended)

	tenant, jobID, err := svc.Archive(context.Background(), "t-1", "s3://archive/t-1", "key-1")
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if tenant.Status != domain.StatusArchived {
		t.Errorf("Status = %q, want %q", tenant.Status, domain.StatusArchived)
	}
	if jobID == 0 {
		t.Error("expected a non-zero job reference")
	}
	if tenant.ArchivedAt == nil || tenant.ArchiveLocation != "s3://archive/t-1" || tenant.EncryptionKeyID != "key-1" {
		t.Errorf("archive fields not stamped: %+v", tenant)
	}
	if len(sched.archivals) != 1 {
		t.Fatalf("expected 1 scheduled archival, got %d", len(sched.archivals))
	}

	rec, err := archives.GetByTenant(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("archival record missing: %v", err)
	}
	if rec.JobID != jobID {
		t.Errorf("record JobID = %d, want %d", rec.JobID, jobID)
	}
}

func TestArchive_NeverDoubleArchives(t *testing.T) {
	svc, repo, _, _, sched := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusSuspended)

	if _, _, err := svc.Archive(context.Background(), "t-1", "s3://a", "key-1"); err != nil {
		t.Fatalf("first archive failed: %v", err)
	}

	_, _, err := svc.Archive(context.Background(), "t-1", "s3://a", "key-1")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError on second archive, got %v", err)
	}
	if len(sched.archivals) != 1 {
		t.Errorf("scheduled %d archivals, want exactly 1", len(sched.archivals))
	}
}

func TestTransition_IllegalNeverMutates(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusArchived)

	_, err := svc.Reactivate(context.Background(), "t-1")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Current != domain.StatusArchived {
		t.Errorf("current = %q, want %q", trErr.Current, domain.StatusArchived)
	}

	stored, _ := repo.GetByID(context.Background(), "t-1")
	if stored.Status != domain.StatusArchived {
		t.Errorf("status mutated to %q on illegal transition", stored.Status)
	}
}

func TestTransition_ConcurrentLoserGetsConflict(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusActive)

	// Simulate a concurrent writer flipping the status between this
	// call's read and its commit.
	repo.forcedStatus["t-1"] = domain.StatusSuspended

	_, err := svc.Suspend(context.Background(), "t-1", "race")
	var confErr *domain.StatusConflictError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected StatusConflictError, got %v", err)
	}
	if confErr.Expected != domain.StatusActive {
		t.Errorf("Expected = %q, want %q", confErr.Expected, domain.StatusActive)
	}
}

func TestExpire_FromAnyNonArchivedState(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusPendingApproval, domain.StatusTrial,
		domain.StatusActive, domain.StatusSuspended,
	} {
		svc, repo, _, _, _ := newLifecycleFixture()
		mustTenant(t, repo, "t-1", status)

		tenant, err := svc.Expire(context.Background(), "t-1")
		if err != nil {
			t.Fatalf("Expire from %q failed: %v", status, err)
		}
		if tenant.Status != domain.StatusExpired {
			t.Errorf("Status = %q, want expired", tenant.Status)
		}
		if tenant.WritesEnabled {
			t.Error("WritesEnabled should be false after expiry")
		}
	}
}

func TestExpire_ArchivedRejected(t *testing.T) {
	svc, repo, _, _, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusArchived)

	_, err := svc.Expire(context.Background(), "t-1")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestTransition_PublishFailureDoesNotFailCommit(t *testing.T) {
	svc, repo, _, pub, _ := newLifecycleFixture()
	mustTenant(t, repo, "t-1", domain.StatusActive)
	pub.failure = errors.New("queue down")

	tenant, err := svc.Suspend(context.Background(), "t-1", "reason")
	if err != nil {
		t.Fatalf("Suspend should succeed despite publish failure: %v", err)
	}
	if tenant.Status != domain.StatusSuspended {
		t.Errorf("Status = %q, want suspended", tenant.Status)
	}
}

func TestTransition_NotFound(t *testing.T) {
	svc, _, _, _, _ := newLifecycleFixture()

	_, err := svc.Suspend(context.Background(), "nonexistent", "")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected ErrTenantNotFound, got %v", err)
	}
}
