package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

// LeadResponse is the API representation of a sales lead.
type LeadResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Company           string `json:"company"`
	Email             string `json:"email"`
	Phone             string `json:"phone,omitempty"`
	Status            string `json:"status"`
	ConvertedTenantID string `json:"converted_tenant_id,omitempty"`
	ConvertedAt       string `json:"converted_at,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func toLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                l.ID,
		Name:              l.Name,
		Company:           l.Company,
		Email:             l.Email,
		Phone:             l.Phone,
		Status:            string(l.Status),
		ConvertedTenantID: l.ConvertedTenantID,
		ConvertedAt:       fmtTimePtr(l.ConvertedAt),
		CreatedAt:         fmtTime(l.CreatedAt),
		UpdatedAt:         fmtTime(l.UpdatedAt),
	}
}

type CreateLeadInput struct {
	IdentityHeaders
	Body struct {
		Name    string `json:"name" minLength:"1" maxLength:"255" doc:"Contact name"`
		Company string `json:"company" minLength:"1" maxLength:"255" doc:"Company name"`
		Email   string `json:"email" format:"email" doc:"Contact email"`
		Phone   string `json:"phone,omitempty" doc:"Contact phone"`
	}
}

type LeadOutput struct {
	Body LeadResponse
}

type GetLeadInput struct {
	ID string `path:"id" doc:"Lead ID"`
}

type ListLeadsInput struct {
	Status string `query:"status" required:"false" enum:"new,assigned,contacted,qualified,converted,rejected," doc:"Filter by status"`
	Limit  int    `query:"limit" required:"false" default:"50" minimum:"1" maximum:"200" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListLeadsOutput struct {
	Body []LeadResponse
}

type UpdateLeadStatusInput struct {
	IdentityHeaders
	ID   string `path:"id" doc:"Lead ID"`
	Body struct {
		Status string `json:"status" enum:"new,assigned,contacted,qualified,rejected" doc:"New pipeline status; converted is reserved for the conversion pipeline"`
	}
}

type ConvertLeadInput struct {
	IdentityHeaders
	ID   string `path:"id" doc:"Lead ID"`
	Body struct {
		TenantName string `json:"tenant_name" minLength:"1" maxLength:"255" doc:"Name for the new tenant"`
		Slug       string `json:"slug" minLength:"1" maxLength:"100" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"Slug for the new tenant"`
		Plan       string `json:"plan,omitempty" default:"starter" enum:"free,starter,professional,enterprise" doc:"Plan for the trial tenant"`
		AdminEmail string `json:"admin_email,omitempty" format:"email" doc:"Admin account email, defaults to the lead's email"`
		AdminName  string `json:"admin_name,omitempty" doc:"Admin account name, defaults to the lead's name"`
	}
}

type ConvertLeadOutput struct {
	Body struct {
		TenantID     string `json:"tenant_id" doc:"The newly created trial tenant"`
		TempPassword string `json:"temp_password" doc:"Shown exactly once, never persisted"`
	}
}

func registerLeadRoutes(api huma.API, svc *app.ConversionService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-lead",
		Method:      http.MethodPost,
		Path:        "/api/v1/leads",
		Summary:     "Create a sales lead",
		Tags:        []string{"Leads"},
	}, func(ctx context.Context, input *CreateLeadInput) (*LeadOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "leads:create"); err != nil {
			return nil, err
		}
		lead, err := svc.CreateLead(ctx, input.Body.Name, input.Body.Company, input.Body.Email, input.Body.Phone)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &LeadOutput{Body: toLeadResponse(lead)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-lead",
		Method:      http.MethodGet,
		Path:        "/api/v1/leads/{id}",
		Summary:     "Get a lead by ID",
		Tags:        []string{"Leads"},
	}, func(ctx context.Context, input *GetLeadInput) (*LeadOutput, error) {
		lead, err := svc.GetLead(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &LeadOutput{Body: toLeadResponse(lead)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/api/v1/leads",
		Summary:     "List leads",
		Tags:        []string{"Leads"},
	}, func(ctx context.Context, input *ListLeadsInput) (*ListLeadsOutput, error) {
		var status *domain.LeadStatus
		if input.Status != "" {
			s := domain.LeadStatus(input.Status)
			status = &s
		}

		leads, err := svc.ListLeads(ctx, status, input.Limit, input.Offset)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]LeadResponse, len(leads))
		for i, l := range leads {
			resp[i] = toLeadResponse(l)
		}
		return &ListLeadsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-lead-status",
		Method:      http.MethodPatch,
		Path:        "/api/v1/leads/{id}/status",
		Summary:     "Move a lead through the sales pipeline",
		Tags:        []string{"Leads"},
	}, func(ctx context.Context, input *UpdateLeadStatusInput) (*LeadOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "leads:update"); err != nil {
			return nil, err
		}
		lead, err := svc.UpdateLeadStatus(ctx, input.ID, domain.LeadStatus(input.Body.Status))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &LeadOutput{Body: toLeadResponse(lead)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "convert-lead",
		Method:      http.MethodPost,
		Path:        "/api/v1/leads/{id}/convert",
		Summary:     "Convert a qualified lead into a trial tenant",
		Description: "Creates the tenant, starts onboarding, and provisions the admin identity best-effort.",
		Tags:        []string{"Leads"},
	}, func(ctx context.Context, input *ConvertLeadInput) (*ConvertLeadOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "leads:convert"); err != nil {
			return nil, err
		}
		result, err := svc.Convert(ctx, input.ID, input.Body.TenantName, input.Body.Slug,
			domain.Plan(input.Body.Plan), input.Body.AdminEmail, input.Body.AdminName)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &ConvertLeadOutput{}
		out.Body.TenantID = result.TenantID
		out.Body.TempPassword = result.TempPassword
		return out, nil
	})
}
