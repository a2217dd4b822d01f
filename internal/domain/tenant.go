package domain

import "time"

// Status represents the lifecycle state of a tenant.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusTrial           Status = "trial"
	StatusActive          Status = "active"
	StatusSuspended       Status = "suspended"
	StatusArchived        Status = "archived"
	StatusExpired         Status = "expired"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventApprove    Event = "approve"
	EventActivate   Event = "activate"
	EventSuspend    Event = "suspend"
	EventReactivate Event = "reactivate"
	EventArchive    Event = "archive"
	EventExpire     Event = "expire"
)

// Transition defines a valid state change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the tenant lifecycle.
// Archival is terminal: nothing leaves StatusArchived, and reactivation is
// only possible from StatusSuspended. Expiry is billing-driven and legal
// from every non-archived state. This is domain knowledge consumed by the
// FSM adapter.
var Transitions = []Transition{
	{Event: EventApprove, Src: StatusPendingApproval, Dst: StatusTrial},
	{Event: EventActivate, Src: StatusPendingApproval, Dst: StatusActive},
	{Event: EventActivate, Src: StatusTrial, Dst: StatusActive},
	{Event: EventSuspend, Src: StatusActive, Dst: StatusSuspended},
	{Event: EventReactivate, Src: StatusSuspended, Dst: StatusActive},
	{Event: EventArchive, Src: StatusSuspended, Dst: StatusArchived},
	{Event: EventExpire, Src: StatusPendingApproval, Dst: StatusExpired},
	{Event: EventExpire, Src: StatusTrial, Dst: StatusExpired},
	{Event: EventExpire, Src: StatusActive, Dst: StatusExpired},
	{Event: EventExpire, Src: StatusSuspended, Dst: StatusExpired},
}

// Plan is the subscription tier of a tenant.
type Plan string

const (
	PlanFree         Plan = "free"
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Limits are the per-plan resource ceilings. All values are non-negative.
type Limits struct {
	MaxFarmers     int
	MaxDealers     int
	StorageMB      int
	APICallsPerDay int
}

var planLimits = map[Plan]Limits{
	PlanFree:         {MaxFarmers: 25, MaxDealers: 5, StorageMB: 512, APICallsPerDay: 1000},
	PlanStarter:      {MaxFarmers: 250, MaxDealers: 25, StorageMB: 5120, APICallsPerDay: 10000},
	PlanProfessional: {MaxFarmers: 2500, MaxDealers: 100, StorageMB: 51200, APICallsPerDay: 100000},
	PlanEnterprise:   {MaxFarmers: 25000, MaxDealers: 1000, StorageMB: 512000, APICallsPerDay: 1000000},
}

// DefaultLimits returns the resource limits for a plan. Unknown plans fall
// back to the free tier so a bad value can never grant extra resources.
func DefaultLimits(plan Plan) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Owner holds the tenant owner's contact details. Required at creation,
// mutable afterward.
type Owner struct {
	Name  string
	Email string
	Phone string
}

// Tenant is the core domain entity representing a customer organization.
// The slug is immutable once assigned (it is the access URL). Tenants are
// never hard-deleted; archival is the terminal state.
type Tenant struct {
	ID     string
	Name   string
	Slug   string
	Status Status
	Plan   Plan
	Owner  Owner
	Limits Limits

	// WritesEnabled gates all write-capable features: cleared on suspend
	// and expire, restored on reactivate. Reads stay available regardless.
	WritesEnabled bool

	// Populated only while suspended.
	SuspendedAt      *time.Time
	SuspensionReason string

	// Populated only once archived.
	ArchivedAt      *time.Time
	ArchiveLocation string
	EncryptionKeyID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant creates a tenant in the initial "pending_approval" state with
// the plan's default limits. Used by the direct creation API.
func NewTenant(id, name, slug string, plan Plan, owner Owner) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:            id,
		Name:          name,
		Slug:          slug,
		Status:        StatusPendingApproval,
		Plan:          plan,
		Owner:         owner,
		Limits:        DefaultLimits(plan),
		WritesEnabled: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewTrialTenant creates a tenant directly in "trial" state. Used by the
// lead conversion pipeline, which bypasses the approval queue.
func NewTrialTenant(id, name, slug string, plan Plan, owner Owner) Tenant {
	t := NewTenant(id, name, slug, plan, owner)
	t.Status = StatusTrial
	return t
}

// ArchivalRecord tracks the long-running archival of a tenant's data. The
// archive transition creates one and returns the async job reference; the
// worker marks it done when the export completes.
type ArchivalRecord struct {
	ID              string
	TenantID        string
	Location        string
	EncryptionKeyID string
	JobID           int64
	CompletedAt     *time.Time
	CreatedAt       time.Time
}
