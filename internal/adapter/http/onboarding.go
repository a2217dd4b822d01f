package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

// WorkflowResponse is the API representation of an onboarding workflow.
type WorkflowResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	CurrentStep int    `json:"current_step" doc:"Lowest incomplete step; total_steps+1 when all are done"`
	TotalSteps  int    `json:"total_steps"`
	Status      string `json:"status"`
	CompletedAt string `json:"completed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// StepResponse is the API representation of a single onboarding step.
type StepResponse struct {
	ID               string         `json:"id"`
	Number           int            `json:"number"`
	Name             string         `json:"name"`
	Title            string         `json:"title"`
	Required         bool           `json:"required"`
	Status           string         `json:"status"`
	Data             map[string]any `json:"data,omitempty" doc:"Accumulated step payload; updates merge, never replace"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	CompletedAt      string         `json:"completed_at,omitempty"`
}

func toWorkflowResponse(wf domain.OnboardingWorkflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          wf.ID,
		TenantID:    wf.TenantID,
		CurrentStep: wf.CurrentStep,
		TotalSteps:  wf.TotalSteps,
		Status:      string(wf.Status),
		CompletedAt: fmtTimePtr(wf.CompletedAt),
		CreatedAt:   fmtTime(wf.CreatedAt),
		UpdatedAt:   fmtTime(wf.UpdatedAt),
	}
}

func toStepResponse(step domain.OnboardingStep) StepResponse {
	return StepResponse{
		ID:               step.ID,
		Number:           step.Number,
		Name:             step.Name,
		Title:            step.Title,
		Required:         step.Required,
		Status:           string(step.Status),
		Data:             step.Data,
		ValidationErrors: step.ValidationErrors,
		CompletedAt:      fmtTimePtr(step.CompletedAt),
	}
}

type CreateWorkflowInput struct {
	IdentityHeaders
	Body struct {
		TenantID string `json:"tenant_id" minLength:"1" doc:"Tenant to onboard"`
	}
}

type CreateWorkflowOutput struct {
	Body WorkflowResponse
}

type GetWorkflowInput struct {
	ID string `path:"id" doc:"Workflow ID"`
}

type GetWorkflowOutput struct {
	Body struct {
		Workflow WorkflowResponse `json:"workflow"`
		Steps    []StepResponse   `json:"steps"`
	}
}

type AdvanceStepInput struct {
	IdentityHeaders
	ID     string `path:"id" doc:"Workflow ID"`
	Number int    `path:"number" minimum:"1" doc:"Step number"`
	Body   struct {
		Status           string         `json:"status" enum:"pending,in_progress,completed,skipped,failed" doc:"New step status"`
		Data             map[string]any `json:"data,omitempty" doc:"Payload merged into the step's existing data"`
		ValidationErrors []string       `json:"validation_errors,omitempty" doc:"Required when status is failed"`
	}
}

type AdvanceStepOutput struct {
	Body struct {
		Workflow WorkflowResponse `json:"workflow"`
		Step     StepResponse     `json:"step"`
	}
}

func registerOnboardingRoutes(api huma.API, svc *app.OnboardingService, access *app.AccessService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-workflow",
		Method:      http.MethodPost,
		Path:        "/api/v1/onboarding/workflows",
		Summary:     "Create an onboarding workflow for a tenant",
		Description: "Idempotent: returns the existing workflow when the tenant already has a non-terminal one.",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *CreateWorkflowInput) (*CreateWorkflowOutput, error) {
		id := identity(input.UserID, input.UserRole)
		if err := requireTenantAccess(ctx, access, id, input.Body.TenantID); err != nil {
			return nil, err
		}
		wf, err := svc.CreateWorkflow(ctx, input.Body.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateWorkflowOutput{Body: toWorkflowResponse(wf)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/api/v1/onboarding/workflows/{id}",
		Summary:     "Get a workflow with its steps",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *GetWorkflowInput) (*GetWorkflowOutput, error) {
		wf, steps, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &GetWorkflowOutput{}
		out.Body.Workflow = toWorkflowResponse(wf)
		out.Body.Steps = make([]StepResponse, len(steps))
		for i, step := range steps {
			out.Body.Steps[i] = toStepResponse(step)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-step",
		Method:      http.MethodPatch,
		Path:        "/api/v1/onboarding/workflows/{id}/steps/{number}",
		Summary:     "Update an onboarding step",
		Tags:        []string{"Onboarding"},
	}, func(ctx context.Context, input *AdvanceStepInput) (*AdvanceStepOutput, error) {
		id := identity(input.UserID, input.UserRole)
		if err := requirePermission(id, "workflows:advance"); err != nil {
			return nil, err
		}
		target, _, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		if err := requireTenantAccess(ctx, access, id, target.TenantID); err != nil {
			return nil, err
		}
		wf, step, err := svc.AdvanceStep(ctx, input.ID, input.Number,
			domain.StepStatus(input.Body.Status), input.Body.Data, input.Body.ValidationErrors)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &AdvanceStepOutput{}
		out.Body.Workflow = toWorkflowResponse(wf)
		out.Body.Step = toStepResponse(step)
		return out, nil
	})
}
