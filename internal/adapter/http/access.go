package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

// ValidationResponse mirrors app.ValidationStatus for the API.
type ValidationResponse struct {
	TenantID           string   `json:"tenant_id"`
	UserExistsInAuth   bool     `json:"user_exists_in_auth"`
	RelationshipExists bool     `json:"relationship_exists"`
	Role               string   `json:"role,omitempty" doc:"Tenant-scoped role when a relationship exists"`
	IsValid            bool     `json:"is_valid"`
	CanAutoFix         bool     `json:"can_auto_fix"`
	Issues             []string `json:"issues,omitempty"`
}

func toValidationResponse(s app.ValidationStatus) ValidationResponse {
	return ValidationResponse{
		TenantID:           s.TenantID,
		UserExistsInAuth:   s.UserExistsInAuth,
		RelationshipExists: s.RelationshipExists,
		Role:               string(s.Role),
		IsValid:            s.IsValid,
		CanAutoFix:         s.CanAutoFix,
		Issues:             s.Issues,
	}
}

// RelationshipResponse is the API representation of a user↔tenant link.
type RelationshipResponse struct {
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type ValidateAccessInput struct {
	IdentityHeaders
	Body struct {
		TenantID string `json:"tenant_id" minLength:"1" doc:"Tenant to validate against"`
	}
}

type ValidateAccessOutput struct {
	Body ValidationResponse
}

type ValidateAccessBatchInput struct {
	IdentityHeaders
	Body struct {
		TenantIDs []string `json:"tenant_ids" minItems:"1" maxItems:"100" doc:"Tenants to validate against"`
	}
}

type ValidateAccessBatchOutput struct {
	Body struct {
		Results map[string]ValidationResponse `json:"results" doc:"Keyed by tenant id; one entry per requested tenant"`
	}
}

type CreateRelationshipInput struct {
	IdentityHeaders
	Body struct {
		TenantID string `json:"tenant_id" minLength:"1" doc:"Tenant to link the caller to"`
		Role     string `json:"role,omitempty" enum:"tenant_admin,tenant_user,farmer,dealer," doc:"Tenant-scoped role, defaults to tenant_admin"`
	}
}

type CreateRelationshipOutput struct {
	Body RelationshipResponse
}

func registerAccessRoutes(api huma.API, svc *app.AccessService) {
	huma.Register(api, huma.Operation{
		OperationID: "validate-access",
		Method:      http.MethodPost,
		Path:        "/api/v1/access/validate",
		Summary:     "Validate the caller's standing with a tenant",
		Description: "Never fails for business conditions; every outcome is expressed in the response body.",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *ValidateAccessInput) (*ValidateAccessOutput, error) {
		status := svc.Validate(ctx, identity(input.UserID, input.UserRole), input.Body.TenantID)
		return &ValidateAccessOutput{Body: toValidationResponse(status)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-access-batch",
		Method:      http.MethodPost,
		Path:        "/api/v1/access/validate/batch",
		Summary:     "Validate the caller's standing with several tenants",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *ValidateAccessBatchInput) (*ValidateAccessBatchOutput, error) {
		statuses := svc.ValidateMany(ctx, identity(input.UserID, input.UserRole), input.Body.TenantIDs)

		out := &ValidateAccessBatchOutput{}
		out.Body.Results = make(map[string]ValidationResponse, len(statuses))
		for id, status := range statuses {
			out.Body.Results[id] = toValidationResponse(status)
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-relationship",
		Method:      http.MethodPost,
		Path:        "/api/v1/access/relationships",
		Summary:     "Create or repair the caller's tenant relationship",
		Description: "Idempotent upsert keyed on (user, tenant); safe to retry.",
		Tags:        []string{"Access"},
	}, func(ctx context.Context, input *CreateRelationshipInput) (*CreateRelationshipOutput, error) {
		rel, err := svc.CreateRelationship(ctx, identity(input.UserID, input.UserRole), input.Body.TenantID, domain.Role(input.Body.Role))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateRelationshipOutput{Body: RelationshipResponse{
			UserID:    rel.UserID,
			TenantID:  rel.TenantID,
			Role:      string(rel.Role),
			IsActive:  rel.IsActive,
			CreatedAt: fmtTime(rel.CreatedAt),
		}}, nil
	})
}
