package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

func newOnboardingFixture(t *testing.T, policy app.OrderPolicy) (*app.OnboardingService, *mockWorkflowRepo, *mockTenantRepo) {
	t.Helper()
	workflows := newMockWorkflowRepo()
	tenants := newMockTenantRepo()
	mustTenant(t, tenants, "t-1", domain.StatusTrial)
	svc := app.NewOnboardingService(workflows, tenants, policy, testLogger())
	return svc, workflows, tenants
}

func TestCreateWorkflow(t *testing.T) {
	svc, workflows, _ := newOnboardingFixture(t, app.OrderLenient)

	wf, err := svc.CreateWorkflow(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}

	if wf.TenantID != "t-1" {
		t.Errorf("TenantID = %q, want t-1", wf.TenantID)
	}
	if wf.TotalSteps != len(domain.StepTemplate) {
		t.Errorf("TotalSteps = %d, want %d", wf.TotalSteps, len(domain.StepTemplate))
	}

	steps, _ := workflows.ListSteps(context.Background(), wf.ID)
	if len(steps) != len(domain.StepTemplate) {
		t.Fatalf("materialized %d steps, want %d", len(steps), len(domain.StepTemplate))
	}
	for _, s := range steps {
		if s.Status != domain.StepPending {
			t.Errorf("step %d Status = %q, want pending", s.Number, s.Status)
		}
	}
}

func TestCreateWorkflow_Idempotent(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)

	first, err := svc.CreateWorkflow(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("first CreateWorkflow failed: %v", err)
	}
	second, err := svc.CreateWorkflow(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("second CreateWorkflow failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("got different workflow ids %q and %q, want idempotent create", first.ID, second.ID)
	}
}

func TestAdvanceStep_MissingStepRowFails(t *testing.T) {
	svc, workflows, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	// Drop one stored row while the workflow still declares the full
	// step count, leaving a partially corrupt set.
	kept := workflows.steps[wf.ID][:0]
	for _, s := range workflows.steps[wf.ID] {
		if s.Number != 5 {
			kept = append(kept, s)
		}
	}
	workflows.steps[wf.ID] = kept

	_, _, err := svc.AdvanceStep(context.Background(), wf.ID, 5, domain.StepCompleted, nil, nil)
	if err == nil {
		t.Fatal("advancing a missing step should fail")
	}

	// The remaining steps are untouched.
	steps, _ := workflows.ListSteps(context.Background(), wf.ID)
	for _, s := range steps {
		if s.Status != domain.StepPending {
			t.Errorf("step %d Status = %q, want pending", s.Number, s.Status)
		}
	}
}

func TestCreateWorkflow_TenantNotFound(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)

	_, err := svc.CreateWorkflow(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestGet_SelfHealsZeroSteps(t *testing.T) {
	svc, workflows, _ := newOnboardingFixture(t, app.OrderLenient)

	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	// Corrupt the workflow: drop all its steps.
	if err := workflows.ReplaceSteps(context.Background(), wf.ID, nil); err != nil {
		t.Fatalf("corrupting workflow: %v", err)
	}

	_, steps, err := svc.Get(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("Get should self-heal, got error: %v", err)
	}
	if len(steps) != len(domain.StepTemplate) {
		t.Errorf("healed to %d steps, want %d", len(steps), len(domain.StepTemplate))
	}
}

func TestAdvanceStep_CompleteAndRecompute(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	updated, step, err := svc.AdvanceStep(context.Background(), wf.ID, 1, domain.StepCompleted,
		map[string]any{"signed": true}, nil)
	if err != nil {
		t.Fatalf("AdvanceStep failed: %v", err)
	}

	if step.Status != domain.StepCompleted {
		t.Errorf("step Status = %q, want completed", step.Status)
	}
	if step.CompletedAt == nil {
		t.Error("CompletedAt should be stamped")
	}
	if updated.CurrentStep != 2 {
		t.Errorf("CurrentStep = %d, want 2", updated.CurrentStep)
	}
	if updated.Status != domain.WorkflowInProgress {
		t.Errorf("workflow Status = %q, want in_progress", updated.Status)
	}
}

func TestAdvanceStep_DataMergedNotReplaced(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, 2, domain.StepInProgress,
		map[string]any{"gateway": "stripe", "iban": "ES91"}, nil); err != nil {
		t.Fatalf("first advance failed: %v", err)
	}

	_, step, err := svc.AdvanceStep(context.Background(), wf.ID, 2, domain.StepInProgress,
		map[string]any{"gateway": "adyen"}, nil)
	if err != nil {
		t.Fatalf("second advance failed: %v", err)
	}

	if step.Data["gateway"] != "adyen" {
		t.Errorf("gateway = %v, want overwritten %q", step.Data["gateway"], "adyen")
	}
	if step.Data["iban"] != "ES91" {
		t.Errorf("iban = %v, want preserved %q", step.Data["iban"], "ES91")
	}
}

func TestAdvanceStep_FailedRequiresValidationErrors(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	_, _, err := svc.AdvanceStep(context.Background(), wf.ID, 1, domain.StepFailed, nil, nil)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAdvanceStep_FailedStepKeepsWorkflowInProgress(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	updated, step, err := svc.AdvanceStep(context.Background(), wf.ID, 1, domain.StepFailed,
		nil, []string{"tax id rejected"})
	if err != nil {
		t.Fatalf("AdvanceStep failed: %v", err)
	}

	if len(step.ValidationErrors) != 1 {
		t.Errorf("ValidationErrors = %v, want one entry", step.ValidationErrors)
	}
	if updated.Status != domain.WorkflowInProgress {
		t.Errorf("workflow Status = %q, want in_progress (failed step is retryable)", updated.Status)
	}
	if updated.CurrentStep != 1 {
		t.Errorf("CurrentStep = %d, want 1 (failed step still blocks)", updated.CurrentStep)
	}

	// Retry the failed step; validation errors clear on leaving failed.
	_, step, err = svc.AdvanceStep(context.Background(), wf.ID, 1, domain.StepCompleted, nil, nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(step.ValidationErrors) != 0 {
		t.Errorf("ValidationErrors = %v, want cleared", step.ValidationErrors)
	}
}

func TestAdvanceStep_CompletionFlipsWorkflow(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	total := wf.TotalSteps
	for n := 1; n < total; n++ {
		if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, n, domain.StepCompleted, nil, nil); err != nil {
			t.Fatalf("completing step %d: %v", n, err)
		}
	}

	updated, _, _ := svc.AdvanceStep(context.Background(), wf.ID, total, domain.StepPending, nil, nil)
	if updated.Status != domain.WorkflowInProgress {
		t.Errorf("Status = %q, want in_progress with last step pending", updated.Status)
	}
	if updated.CurrentStep != total {
		t.Errorf("CurrentStep = %d, want %d", updated.CurrentStep, total)
	}

	updated, _, err := svc.AdvanceStep(context.Background(), wf.ID, total, domain.StepCompleted, nil, nil)
	if err != nil {
		t.Fatalf("completing final step: %v", err)
	}
	if updated.Status != domain.WorkflowCompleted {
		t.Errorf("Status = %q, want completed", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Error("CompletedAt should be stamped")
	}
	if updated.CurrentStep != total+1 {
		t.Errorf("CurrentStep = %d, want %d", updated.CurrentStep, total+1)
	}
}

func TestAdvanceStep_CompletedWorkflowIsImmutable(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	for n := 1; n <= wf.TotalSteps; n++ {
		if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, n, domain.StepCompleted, nil, nil); err != nil {
			t.Fatalf("completing step %d: %v", n, err)
		}
	}

	_, _, err := svc.AdvanceStep(context.Background(), wf.ID, 1, domain.StepPending, nil, nil)
	var wcErr *domain.WorkflowCompletedError
	if !errors.As(err, &wcErr) {
		t.Fatalf("expected WorkflowCompletedError, got %v", err)
	}
}

func TestAdvanceStep_RangeAndStatusValidation(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	var vErr *domain.ValidationError
	if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, 0, domain.StepCompleted, nil, nil); !errors.As(err, &vErr) {
		t.Errorf("step 0: expected ValidationError, got %v", err)
	}
	if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, wf.TotalSteps+1, domain.StepCompleted, nil, nil); !errors.As(err, &vErr) {
		t.Errorf("step out of range: expected ValidationError, got %v", err)
	}
	if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, 1, "done", nil, nil); !errors.As(err, &vErr) {
		t.Errorf("bad status: expected ValidationError, got %v", err)
	}
}

func TestAdvanceStep_LenientAllowsOutOfOrder(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderLenient)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	// Complete step 3 (branding) while steps 1-2 are still pending.
	_, step, err := svc.AdvanceStep(context.Background(), wf.ID, 3, domain.StepCompleted, nil, nil)
	if err != nil {
		t.Fatalf("lenient policy should allow out-of-order completion: %v", err)
	}
	if step.Status != domain.StepCompleted {
		t.Errorf("step Status = %q, want completed", step.Status)
	}
}

func TestAdvanceStep_StrictBlocksOutOfOrder(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderStrict)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	_, _, err := svc.AdvanceStep(context.Background(), wf.ID, 4, domain.StepCompleted, nil, nil)
	var orderErr *domain.StepOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected StepOrderError, got %v", err)
	}
	if orderErr.Blocking != 1 {
		t.Errorf("Blocking = %d, want 1", orderErr.Blocking)
	}
}

func TestAdvanceStep_StrictIgnoresOptionalSteps(t *testing.T) {
	svc, _, _ := newOnboardingFixture(t, app.OrderStrict)
	wf, _ := svc.CreateWorkflow(context.Background(), "t-1")

	// Complete required steps 1 and 2; leave optional step 3 (branding)
	// pending. Completing step 4 must still be allowed.
	for _, n := range []int{1, 2} {
		if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, n, domain.StepCompleted, nil, nil); err != nil {
			t.Fatalf("completing step %d: %v", n, err)
		}
	}

	if _, _, err := svc.AdvanceStep(context.Background(), wf.ID, 4, domain.StepCompleted, nil, nil); err != nil {
		t.Errorf("optional pending step should not block under strict policy: %v", err)
	}
}

func TestParseOrderPolicy(t *testing.T) {
	if got := app.ParseOrderPolicy("strict"); got != app.OrderStrict {
		t.Errorf("ParseOrderPolicy(strict) = %q", got)
	}
	if got := app.ParseOrderPolicy(""); got != app.OrderLenient {
		t.Errorf("ParseOrderPolicy(empty) = %q, want lenient", got)
	}
	if got := app.ParseOrderPolicy("whatever"); got != app.OrderLenient {
		t.Errorf("ParseOrderPolicy(unknown) = %q, want lenient", got)
	}
}
