package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrLeadNotFound         = errors.New("lead not found")
	ErrRelationshipNotFound = errors.New("relationship not found")
)

// Stable error codes surfaced to edge-function callers.
const (
	CodeSlugConflict      = "SLUG_CONFLICT"
	CodeStatusConflict    = "STATUS_CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeLeadNotQualified  = "LEAD_NOT_QUALIFIED"
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotAuthorized     = "NOT_AUTHORIZED"
	CodeStepOrder         = "STEP_ORDER"
	CodeWorkflowCompleted = "WORKFLOW_COMPLETED"
	CodeNotFound          = "NOT_FOUND"
)

// SlugConflictError is returned when a tenant slug is already in use.
// Not retryable with the same input; the caller must pick a new slug.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

func (e *SlugConflictError) Code() string { return CodeSlugConflict }

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

func (e *TransitionError) Code() string { return CodeInvalidTransition }

// StatusConflictError is returned when the optimistic concurrency check
// fails: the tenant's persisted status changed between read and commit.
// The loser of the race gets this; state is never silently overwritten.
type StatusConflictError struct {
	TenantID string
	Expected Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("tenant %q is no longer in state %q", e.TenantID, e.Expected)
}

func (e *StatusConflictError) Code() string { return CodeStatusConflict }

// LeadNotQualifiedError is returned when conversion is attempted on a lead
// that is not in the qualified state.
type LeadNotQualifiedError struct {
	LeadID string
	Status LeadStatus
}

func (e *LeadNotQualifiedError) Error() string {
	return fmt.Sprintf("lead %q has status %q, conversion requires %q", e.LeadID, e.Status, LeadQualified)
}

func (e *LeadNotQualifiedError) Code() string { return CodeLeadNotQualified }

// ValidationError is returned for bad input shape or range. Never retried
// automatically.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() string { return CodeValidation }

// NotAuthorizedError is returned when the permission resolver or access
// validator denies an operation.
type NotAuthorizedError struct {
	Reason string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Reason)
}

func (e *NotAuthorizedError) Code() string { return CodeNotAuthorized }

// StepOrderError is returned under the strict ordering policy when a step
// is completed while a lower-numbered required step is still open.
type StepOrderError struct {
	Step     int
	Blocking int
}

func (e *StepOrderError) Error() string {
	return fmt.Sprintf("step %d cannot be completed while required step %d is open", e.Step, e.Blocking)
}

func (e *StepOrderError) Code() string { return CodeStepOrder }

// WorkflowCompletedError is returned when advancing a workflow that has
// already reached a terminal state. Completed workflows are immutable.
type WorkflowCompletedError struct {
	WorkflowID string
	Status     WorkflowStatus
}

func (e *WorkflowCompletedError) Error() string {
	return fmt.Sprintf("workflow %q is %s and can no longer be advanced", e.WorkflowID, e.Status)
}

func (e *WorkflowCompletedError) Code() string { return CodeWorkflowCompleted }

// coder is implemented by every typed domain error.
type coder interface{ Code() string }

// ErrorCode extracts the stable code from a domain error, or "" when the
// error carries none (unexpected/infrastructure errors).
func ErrorCode(err error) string {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, ErrTenantNotFound) || errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrLeadNotFound) || errors.Is(err, ErrRelationshipNotFound) {
		return CodeNotFound
	}
	return ""
}
