package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

// OwnerPayload is the owner contact block shared by requests and responses.
type OwnerPayload struct {
	Name  string `json:"name" doc:"Owner display name"`
	Email string `json:"email" doc:"Owner email address"`
	Phone string `json:"phone,omitempty" doc:"Owner phone number"`
}

// LimitsResponse is the API representation of plan resource limits.
type LimitsResponse struct {
	MaxFarmers     int `json:"max_farmers"`
	MaxDealers     int `json:"max_dealers"`
	StorageMB      int `json:"storage_mb"`
	APICallsPerDay int `json:"api_calls_per_day"`
}

// TenantResponse is the API representation of a tenant.
type TenantResponse struct {
	ID               string         `json:"id" doc:"Unique identifier"`
	Name             string         `json:"name" doc:"Display name"`
	Slug             string         `json:"slug" doc:"URL-friendly identifier"`
	Status           string         `json:"status" doc:"Lifecycle state"`
	Plan             string         `json:"plan" doc:"Subscription plan"`
	Owner            OwnerPayload   `json:"owner"`
	Limits           LimitsResponse `json:"limits"`
	WritesEnabled    bool           `json:"writes_enabled" doc:"Whether write-capable features are available"`
	SuspendedAt      string         `json:"suspended_at,omitempty" doc:"Suspension timestamp (ISO 8601)"`
	SuspensionReason string         `json:"suspension_reason,omitempty"`
	ArchivedAt       string         `json:"archived_at,omitempty" doc:"Archival timestamp (ISO 8601)"`
	ArchiveLocation  string         `json:"archive_location,omitempty"`
	CreatedAt        string         `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt        string         `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toTenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{
		ID:     t.ID,
		Name:   t.Name,
		Slug:   t.Slug,
		Status: string(t.Status),
		Plan:   string(t.Plan),
		Owner: OwnerPayload{
			Name:  t.Owner.Name,
			Email: t.Owner.Email,
			Phone: t.Owner.Phone,
		},
		Limits: LimitsResponse{
			MaxFarmers:     t.Limits.MaxFarmers,
			MaxDealers:     t.Limits.MaxDealers,
			StorageMB:      t.Limits.StorageMB,
			APICallsPerDay: t.Limits.APICallsPerDay,
		},
		WritesEnabled:    t.WritesEnabled,
		SuspendedAt:      fmtTimePtr(t.SuspendedAt),
		SuspensionReason: t.SuspensionReason,
		ArchivedAt:       fmtTimePtr(t.ArchivedAt),
		ArchiveLocation:  t.ArchiveLocation,
		CreatedAt:        fmtTime(t.CreatedAt),
		UpdatedAt:        fmtTime(t.UpdatedAt),
	}
}

// IdentityHeaders are the gateway-injected caller identity headers.
type IdentityHeaders struct {
	UserID   string `header:"X-User-Id" required:"false" doc:"Caller user id"`
	UserRole string `header:"X-User-Role" required:"false" doc:"Caller system role"`
}

// --- Create Tenant ---

type CreateTenantInput struct {
	IdentityHeaders
	Body struct {
		Name  string       `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Slug  string       `json:"slug" minLength:"1" maxLength:"100" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-friendly identifier (lowercase, hyphens)"`
		Plan  string       `json:"plan,omitempty" default:"free" enum:"free,starter,professional,enterprise" doc:"Subscription plan"`
		Owner OwnerPayload `json:"owner" doc:"Owner contact details"`
	}
}

type CreateTenantOutput struct {
	Body TenantResponse
}

// --- Get / List ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

type GetTenantBySlugInput struct {
	Slug string `path:"slug" doc:"Tenant slug"`
}

type ListTenantsInput struct {
	Status string `query:"status" required:"false" enum:"pending_approval,trial,active,suspended,archived,expired," doc:"Filter by status"`
	Plan   string `query:"plan" required:"false" enum:"free,starter,professional,enterprise," doc:"Filter by plan"`
	Limit  int    `query:"limit" required:"false" default:"50" minimum:"1" maximum:"200" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" minimum:"0" doc:"Pagination offset"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

// --- Update ---

type UpdateTenantInput struct {
	IdentityHeaders
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Name       *string `json:"name,omitempty" doc:"New display name"`
		Plan       *string `json:"plan,omitempty" enum:"free,starter,professional,enterprise" doc:"New plan; resets limits to the plan defaults"`
		OwnerName  *string `json:"owner_name,omitempty"`
		OwnerEmail *string `json:"owner_email,omitempty"`
		OwnerPhone *string `json:"owner_phone,omitempty"`
	}
}

// --- Lifecycle transitions ---

type TenantActionInput struct {
	IdentityHeaders
	ID string `path:"id" doc:"Tenant ID"`
}

type SuspendTenantInput struct {
	IdentityHeaders
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Reason string `json:"reason" minLength:"1" doc:"Why the tenant is being suspended"`
	}
}

type ArchiveTenantInput struct {
	IdentityHeaders
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Location        string `json:"location" minLength:"1" doc:"Cold storage destination for the tenant's data"`
		EncryptionKeyID string `json:"encryption_key_id" minLength:"1" doc:"Key used to encrypt the archive"`
	}
}

type ArchiveTenantOutput struct {
	Body struct {
		Tenant TenantResponse `json:"tenant"`
		JobID  int64          `json:"job_id" doc:"Async archival job reference"`
	}
}

func registerTenantRoutes(api huma.API, svc *app.TenantService, access *app.AccessService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Create a new tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "tenants:create"); err != nil {
			return nil, err
		}
		tenant, err := svc.Create(ctx, input.Body.Name, input.Body.Slug, domain.Plan(input.Body.Plan), domain.Owner{
			Name:  input.Body.Owner.Name,
			Email: input.Body.Owner.Email,
			Phone: input.Body.Owner.Phone,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant-by-slug",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/slug/{slug}",
		Summary:     "Get a tenant by slug",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantBySlugInput) (*GetTenantOutput, error) {
		tenant, err := svc.GetBySlug(ctx, input.Slug)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}
		if input.Plan != "" {
			p := domain.Plan(input.Plan)
			filter.Plan = &p
		}

		tenants, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Update a tenant's mutable fields",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *UpdateTenantInput) (*GetTenantOutput, error) {
		id := identity(input.UserID, input.UserRole)
		if err := requirePermission(id, "tenants:update"); err != nil {
			return nil, err
		}
		if err := requireTenantAccess(ctx, access, id, input.ID); err != nil {
			return nil, err
		}
		params := app.UpdateParams{
			Name:       input.Body.Name,
			OwnerName:  input.Body.OwnerName,
			OwnerEmail: input.Body.OwnerEmail,
			OwnerPhone: input.Body.OwnerPhone,
		}
		if input.Body.Plan != nil {
			p := domain.Plan(*input.Body.Plan)
			params.Plan = &p
		}
		tenant, err := svc.Update(ctx, input.ID, params)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/approve",
		Summary:     "Approve a pending tenant into trial",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantActionInput) (*GetTenantOutput, error) {
		id := identity(input.UserID, input.UserRole)
		if err := requirePermission(id, "tenants:update"); err != nil {
			return nil, err
		}
		if err := requireTenantAccess(ctx, access, id, input.ID); err != nil {
			return nil, err
		}
		tenant, err := svc.Approve(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/activate",
		Summary:     "Activate a pending or trial tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantActionInput) (*GetTenantOutput, error) {
		id := identity(input.UserID, input.UserRole)
		if err := requirePermission(id, "tenants:update"); err != nil {
			return nil, err
		}
		if err := requireTenantAccess(ctx, access, id, input.ID); err != nil {
			return nil, err
		}
		tenant, err := svc.Activate(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "suspend-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/suspend",
		Summary:     "Suspend an active tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *SuspendTenantInput) (*GetTenantOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "tenants:suspend"); err != nil {
			return nil, err
		}
		tenant, err := svc.Suspend(ctx, input.ID, input.Body.Reason)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reactivate-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/reactivate",
		Summary:     "Reactivate a suspended tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantActionInput) (*GetTenantOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "tenants:reactivate"); err != nil {
			return nil, err
		}
		tenant, err := svc.Reactivate(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/archive",
		Summary:     "Archive a suspended tenant",
		Description: "Starts the async data export and returns the job reference. Archived is terminal.",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ArchiveTenantInput) (*ArchiveTenantOutput, error) {
		if err := requirePermission(identity(input.UserID, input.UserRole), "tenants:archive"); err != nil {
			return nil, err
		}
		tenant, jobID, err := svc.Archive(ctx, input.ID, input.Body.Location, input.Body.EncryptionKeyID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ArchiveTenantOutput{}
		out.Body.Tenant = toTenantResponse(tenant)
		out.Body.JobID = jobID
		return out, nil
	})
}

// --- Billing webhook ---

type BillingWebhookInput struct {
	Body struct {
		Event    string `json:"event" doc:"Billing event type"`
		TenantID string `json:"tenant_id" minLength:"1" doc:"Affected tenant"`
	}
}

type BillingWebhookOutput struct {
	Body struct {
		Handled bool   `json:"handled"`
		Status  string `json:"status,omitempty" doc:"Tenant status after handling"`
	}
}

// expiryEvents are the billing events that end a subscription. Anything
// else is acknowledged and dropped so the provider does not retry forever.
var expiryEvents = map[string]bool{
	"invoice.payment_failed": true,
	"subscription.deleted":   true,
}

// registerWebhookRoutes wires the billing provider callback.
func registerWebhookRoutes(api huma.API, svc *app.TenantService) {
	huma.Register(api, huma.Operation{
		OperationID: "billing-webhook",
		Method:      http.MethodPost,
		Path:        "/api/v1/webhooks/billing",
		Summary:     "Receive billing provider events",
		Tags:        []string{"Webhooks"},
	}, func(ctx context.Context, input *BillingWebhookInput) (*BillingWebhookOutput, error) {
		out := &BillingWebhookOutput{}
		if !expiryEvents[input.Body.Event] {
			return out, nil
		}

		tenant, err := svc.Expire(ctx, input.Body.TenantID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out.Body.Handled = true
		out.Body.Status = string(tenant.Status)
		return out, nil
	})
}
