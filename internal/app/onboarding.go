package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// OrderPolicy controls whether onboarding steps may be completed out of
// order. Lenient is the default: optional steps such as branding can be
// finished whenever the tenant gets to them, and the consumer presents
// the checklist sequentially.
type OrderPolicy string

const (
	OrderLenient OrderPolicy = "lenient"
	OrderStrict  OrderPolicy = "strict"
)

// ParseOrderPolicy maps a config string to a policy, defaulting to lenient.
func ParseOrderPolicy(s string) OrderPolicy {
	if OrderPolicy(s) == OrderStrict {
		return OrderStrict
	}
	return OrderLenient
}

// OnboardingService owns the per-tenant setup checklist: it materializes
// the step template, advances steps, and recomputes workflow progress.
// No other component writes step or workflow status.
type OnboardingService struct {
	workflows domain.WorkflowRepository
	tenants   domain.TenantRepository
	policy    OrderPolicy
	logger    *slog.Logger
}

// NewOnboardingService creates the workflow engine with the given policy.
func NewOnboardingService(workflows domain.WorkflowRepository, tenants domain.TenantRepository, policy OrderPolicy, logger *slog.Logger) *OnboardingService {
	return &OnboardingService{
		workflows: workflows,
		tenants:   tenants,
		policy:    policy,
		logger:    logger,
	}
}

// CreateWorkflow materializes a fresh workflow for the tenant, or returns
// the existing one when a non-terminal workflow is already present
// (idempotent, enforcing the one-workflow-per-tenant invariant).
func (s *OnboardingService) CreateWorkflow(ctx context.Context, tenantID string) (domain.OnboardingWorkflow, error) {
	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		return domain.OnboardingWorkflow{}, err
	}

	existing, err := s.workflows.ActiveByTenant(ctx, tenantID)
	if err == nil {
		return existing, nil
	}

	wfID, err := generateID("wf")
	if err != nil {
		return domain.OnboardingWorkflow{}, fmt.Errorf("generating workflow id: %w", err)
	}

	steps, err := s.freshSteps(wfID)
	if err != nil {
		return domain.OnboardingWorkflow{}, err
	}

	wf := domain.NewWorkflow(wfID, tenantID)
	if err := s.workflows.CreateWorkflow(ctx, wf, steps); err != nil {
		return domain.OnboardingWorkflow{}, fmt.Errorf("creating workflow: %w", err)
	}
	return wf, nil
}

// Get loads a workflow with its steps. A workflow row found with zero
// steps is corrupt state: the step set is re-materialized from the
// template and the corruption never surfaces to the caller.
func (s *OnboardingService) Get(ctx context.Context, workflowID string) (domain.OnboardingWorkflow, []domain.OnboardingStep, error) {
	wf, err := s.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return domain.OnboardingWorkflow{}, nil, err
	}

	steps, err := s.workflows.ListSteps(ctx, workflowID)
	if err != nil {
		return domain.OnboardingWorkflow{}, nil, fmt.Errorf("listing steps: %w", err)
	}

	if len(steps) == 0 {
		s.logger.WarnContext(ctx, "workflow has no steps, re-materializing template",
			"workflow_id", workflowID,
			"tenant_id", wf.TenantID,
		)
		steps, err = s.freshSteps(workflowID)
		if err != nil {
			return domain.OnboardingWorkflow{}, nil, err
		}
		if err := s.workflows.ReplaceSteps(ctx, workflowID, steps); err != nil {
			return domain.OnboardingWorkflow{}, nil, fmt.Errorf("healing workflow steps: %w", err)
		}
	}

	return wf, steps, nil
}

// AdvanceStep sets a step's status, merging (never replacing) its data
// bag, and recomputes the workflow's current step and overall status.
// A step entering failed must carry at least one validation error; a
// failed step leaves the workflow in progress and is retryable.
func (s *OnboardingService) AdvanceStep(ctx context.Context, workflowID string, stepNumber int, newStatus domain.StepStatus, data map[string]any, validationErrors []string) (domain.OnboardingWorkflow, domain.OnboardingStep, error) {
	wf, steps, err := s.Get(ctx, workflowID)
	if err != nil {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, err
	}

	if wf.Status.IsTerminal() {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, &domain.WorkflowCompletedError{WorkflowID: wf.ID, Status: wf.Status}
	}
	if stepNumber < 1 || stepNumber > wf.TotalSteps {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, &domain.ValidationError{
			Field:  "stepNumber",
			Reason: fmt.Sprintf("must be between 1 and %d", wf.TotalSteps),
		}
	}
	if !domain.ValidStepStatus(newStatus) {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("unknown step status %q", newStatus),
		}
	}
	if newStatus == domain.StepFailed && len(validationErrors) == 0 {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, &domain.ValidationError{
			Field:  "validationErrors",
			Reason: "a failed step requires at least one validation error",
		}
	}

	// Match on the stored step number: a partially corrupt step set must
	// fail loudly instead of touching a neighboring step.
	idx := -1
	for i := range steps {
		if steps[i].Number == stepNumber {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, fmt.Errorf("workflow %s is missing step %d", workflowID, stepNumber)
	}

	if s.policy == OrderStrict && newStatus == domain.StepCompleted {
		if blocking := firstOpenRequiredBefore(steps, stepNumber); blocking != 0 {
			return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, &domain.StepOrderError{Step: stepNumber, Blocking: blocking}
		}
	}

	now := time.Now().UTC()
	step := steps[idx]
	step.Status = newStatus
	step.Data = domain.MergeStepData(step.Data, data)
	step.UpdatedAt = now
	if newStatus == domain.StepFailed {
		step.ValidationErrors = validationErrors
	} else {
		step.ValidationErrors = nil
	}
	if newStatus == domain.StepCompleted {
		step.CompletedAt = &now
	} else {
		step.CompletedAt = nil
	}

	if err := s.workflows.UpdateStep(ctx, step); err != nil {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, fmt.Errorf("updating step: %w", err)
	}
	steps[idx] = step

	wf.CurrentStep = domain.NextStep(steps, wf.TotalSteps)
	wf.UpdatedAt = now
	if domain.AllStepsDone(steps) {
		wf.Status = domain.WorkflowCompleted
		wf.CompletedAt = &now
	}

	if err := s.workflows.UpdateWorkflow(ctx, wf); err != nil {
		return domain.OnboardingWorkflow{}, domain.OnboardingStep{}, fmt.Errorf("updating workflow: %w", err)
	}

	return wf, step, nil
}

// freshSteps materializes the step template with new identifiers.
func (s *OnboardingService) freshSteps(workflowID string) ([]domain.OnboardingStep, error) {
	ids := make([]string, len(domain.StepTemplate))
	for i := range ids {
		id, err := generateID("step")
		if err != nil {
			return nil, fmt.Errorf("generating step id: %w", err)
		}
		ids[i] = id
	}
	return domain.MaterializeSteps(workflowID, ids), nil
}

// firstOpenRequiredBefore returns the lowest required step number below
// stepNumber that is neither completed nor skipped, or 0 when none blocks.
func firstOpenRequiredBefore(steps []domain.OnboardingStep, stepNumber int) int {
	for _, step := range steps {
		if step.Number >= stepNumber {
			break
		}
		if !step.Required {
			continue
		}
		if step.Status != domain.StepCompleted && step.Status != domain.StepSkipped {
			return step.Number
		}
	}
	return 0
}
