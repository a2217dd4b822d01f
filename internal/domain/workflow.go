package domain

import "time"

// WorkflowStatus represents the overall state of an onboarding workflow.
type WorkflowStatus string

const (
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowPaused     WorkflowStatus = "paused"
	WorkflowFailed     WorkflowStatus = "failed"
)

// IsTerminal reports whether the workflow can no longer be advanced.
// A tenant may have at most one non-terminal workflow at a time.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// StepStatus represents the state of a single onboarding step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
	StepFailed     StepStatus = "failed"
)

// stepStatuses is the legal step-state set; anything else is rejected.
var stepStatuses = map[StepStatus]bool{
	StepPending:    true,
	StepInProgress: true,
	StepCompleted:  true,
	StepSkipped:    true,
	StepFailed:     true,
}

// ValidStepStatus reports whether s is a known step status.
func ValidStepStatus(s StepStatus) bool { return stepStatuses[s] }

// isDone reports whether a step no longer blocks workflow completion.
func (s StepStatus) isDone() bool { return s == StepCompleted || s == StepSkipped }

// StepDefinition describes one entry of the fixed onboarding template.
type StepDefinition struct {
	Number   int
	Name     string
	Title    string
	Required bool
}

// StepTemplate is the ordered set of setup tasks every new tenant gets.
// Branding and data import are optional; everything else must be completed
// or explicitly skipped by an admin.
var StepTemplate = []StepDefinition{
	{Number: 1, Name: "legal_documents", Title: "Legal documents & agreements", Required: true},
	{Number: 2, Name: "subscription_billing", Title: "Subscription & billing setup", Required: true},
	{Number: 3, Name: "branding", Title: "Branding & customization", Required: false},
	{Number: 4, Name: "features_limits", Title: "Feature flags & resource limits", Required: true},
	{Number: 5, Name: "data_import", Title: "Initial data import", Required: false},
	{Number: 6, Name: "team_invites", Title: "Team member invitations", Required: true},
}

// OnboardingWorkflow tracks a tenant's setup checklist. CurrentStep is
// 1-indexed; once Status is WorkflowCompleted the workflow is immutable.
type OnboardingWorkflow struct {
	ID          string
	TenantID    string
	CurrentStep int
	TotalSteps  int
	Status      WorkflowStatus
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OnboardingStep is one task of a workflow, ordered by Number (unique per
// workflow, contiguous from 1). Data is an open bag merged on each update;
// ValidationErrors is non-empty exactly while the step is failed.
type OnboardingStep struct {
	ID               string
	WorkflowID       string
	Number           int
	Name             string
	Title            string
	Required         bool
	Status           StepStatus
	Data             map[string]any
	ValidationErrors []string
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewWorkflow creates a fresh in-progress workflow sized to the template.
func NewWorkflow(id, tenantID string) OnboardingWorkflow {
	now := time.Now().UTC()
	return OnboardingWorkflow{
		ID:          id,
		TenantID:    tenantID,
		CurrentStep: 1,
		TotalSteps:  len(StepTemplate),
		Status:      WorkflowInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MaterializeSteps builds the pending step rows for a workflow from the
// template. ids must supply one identifier per template entry.
func MaterializeSteps(workflowID string, ids []string) []OnboardingStep {
	now := time.Now().UTC()
	steps := make([]OnboardingStep, len(StepTemplate))
	for i, def := range StepTemplate {
		steps[i] = OnboardingStep{
			ID:         ids[i],
			WorkflowID: workflowID,
			Number:     def.Number,
			Name:       def.Name,
			Title:      def.Title,
			Required:   def.Required,
			Status:     StepPending,
			Data:       map[string]any{},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	return steps
}

// NextStep returns the lowest step number whose status is not completed or
// skipped, or totalSteps+1 when every step is done. steps must be sorted by
// Number.
func NextStep(steps []OnboardingStep, totalSteps int) int {
	for _, s := range steps {
		if !s.Status.isDone() {
			return s.Number
		}
	}
	return totalSteps + 1
}

// AllStepsDone reports whether every step reached a terminal success state.
func AllStepsDone(steps []OnboardingStep) bool {
	for _, s := range steps {
		if !s.Status.isDone() {
			return false
		}
	}
	return true
}

// MergeStepData merges src into dst key by key. Existing keys not present
// in src are preserved; the step data bag is never replaced wholesale.
func MergeStepData(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
