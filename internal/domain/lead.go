package domain

import "time"

// LeadStatus represents the sales pipeline state of a prospect.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadAssigned  LeadStatus = "assigned"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadConverted LeadStatus = "converted"
	LeadRejected  LeadStatus = "rejected"
)

// Lead is a prospective customer record prior to becoming a tenant.
// Conversion is permitted only from LeadQualified; once converted the lead
// is immutable and keeps a back-reference to the created tenant.
type Lead struct {
	ID      string
	Name    string
	Company string
	Email   string
	Phone   string
	Status  LeadStatus

	ConvertedTenantID string
	ConvertedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewLead creates a lead at the start of the pipeline.
func NewLead(id, name, company, email, phone string) Lead {
	now := time.Now().UTC()
	return Lead{
		ID:        id,
		Name:      name,
		Company:   company,
		Email:     email,
		Phone:     phone,
		Status:    LeadNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkConverted stamps the conversion back-reference. The caller must have
// verified the lead was qualified first.
func (l *Lead) MarkConverted(tenantID string) {
	now := time.Now().UTC()
	l.Status = LeadConverted
	l.ConvertedTenantID = tenantID
	l.ConvertedAt = &now
	l.UpdatedAt = now
}
