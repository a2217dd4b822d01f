package http

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// Services bundles the application services the API exposes.
type Services struct {
	Tenants    *app.TenantService
	Onboarding *app.OnboardingService
	Access     *app.AccessService
	Conversion *app.ConversionService
}

// Register adds all API routes to the Huma API.
func Register(api huma.API, svcs Services) {
	registerTenantRoutes(api, svcs.Tenants, svcs.Access)
	registerAccessRoutes(api, svcs.Access)
	registerOnboardingRoutes(api, svcs.Onboarding, svcs.Access)
	registerLeadRoutes(api, svcs.Conversion)
	registerWebhookRoutes(api, svcs.Tenants)
}

// identity builds the caller identity from the gateway-injected headers.
// An empty user id means unauthenticated; the role header is normalized
// through ParseRole so unknown values carry no permissions.
func identity(userID, role string) domain.Identity {
	return domain.Identity{
		UserID: userID,
		Role:   domain.ParseRole(role),
	}
}

// requirePermission gates an operation on the caller's resolved
// permission set. Unauthenticated callers get 401, authenticated callers
// without the permission get 403.
func requirePermission(id domain.Identity, perm domain.Permission) error {
	if id.IsZero() {
		return huma.Error401Unauthorized("authentication required")
	}
	if !domain.Resolve(id.Role, "").Has(perm) {
		return huma.Error403Forbidden("missing permission " + string(perm))
	}
	return nil
}

// requireTenantAccess enforces tenant scoping on mutations. Platform-level
// callers pass unconditionally; tenant-scoped callers must hold a valid
// relationship with the target tenant, resolved through the access
// validator.
func requireTenantAccess(ctx context.Context, access *app.AccessService, id domain.Identity, tenantID string) error {
	if id.IsPlatformLevel() {
		return nil
	}
	status := access.Validate(ctx, id, tenantID)
	scope := ""
	if status.IsValid {
		scope = status.TenantID
	}
	rbac := domain.NewRBACContext(id, scope, status.Role)
	if !rbac.CanAccessTenant(tenantID) {
		return huma.Error403Forbidden("no access to tenant " + tenantID)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmtTime(*t)
}

// toHumaError translates domain errors to Huma HTTP errors. The stable
// domain code rides along as an error detail so edge callers can branch
// without parsing messages.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return huma.Error404NotFound("tenant not found")
	case errors.Is(err, domain.ErrWorkflowNotFound):
		return huma.Error404NotFound("workflow not found")
	case errors.Is(err, domain.ErrLeadNotFound):
		return huma.Error404NotFound("lead not found")
	case errors.Is(err, domain.ErrRelationshipNotFound):
		return huma.Error404NotFound("relationship not found")
	}

	var slugErr *domain.SlugConflictError
	if errors.As(err, &slugErr) {
		return huma.Error409Conflict(slugErr.Error(), codeDetail(slugErr))
	}

	var statusErr *domain.StatusConflictError
	if errors.As(err, &statusErr) {
		return huma.Error409Conflict(statusErr.Error(), codeDetail(statusErr))
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error(), codeDetail(trErr))
	}

	var orderErr *domain.StepOrderError
	if errors.As(err, &orderErr) {
		return huma.Error422UnprocessableEntity(orderErr.Error(), codeDetail(orderErr))
	}

	var doneErr *domain.WorkflowCompletedError
	if errors.As(err, &doneErr) {
		return huma.Error422UnprocessableEntity(doneErr.Error(), codeDetail(doneErr))
	}

	var qualErr *domain.LeadNotQualifiedError
	if errors.As(err, &qualErr) {
		return huma.Error422UnprocessableEntity(qualErr.Error(), codeDetail(qualErr))
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error400BadRequest(valErr.Error(), codeDetail(valErr))
	}

	var authErr *domain.NotAuthorizedError
	if errors.As(err, &authErr) {
		return huma.Error403Forbidden(authErr.Error(), codeDetail(authErr))
	}

	return huma.Error500InternalServerError("internal server error")
}

func codeDetail(err error) error {
	return &huma.ErrorDetail{
		Location: "code",
		Message:  domain.ErrorCode(err),
	}
}
