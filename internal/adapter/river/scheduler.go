package river

import (
	"context"
	"fmt"

	"github.com/agroplane/agroplane/internal/domain"
)

// Compile-time check: Scheduler implements domain.JobScheduler.
var _ domain.JobScheduler = (*Scheduler)(nil)

// ArchiveJobArgs describes a tenant data archival run. The record id points
// at the archival_jobs row the worker marks completed when the export
// finishes.
type ArchiveJobArgs struct {
	TenantID        string `json:"tenant_id"`
	RecordID        string `json:"record_id"`
	Location        string `json:"location"`
	EncryptionKeyID string `json:"encryption_key_id"`
}

func (ArchiveJobArgs) Kind() string { return "tenant.archive" }

// ProvisionJobArgs retries admin identity provisioning that failed inline
// during lead conversion.
type ProvisionJobArgs struct {
	TenantID     string `json:"tenant_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	TempPassword string `json:"temp_password"`
	Role         string `json:"role"`
}

func (ProvisionJobArgs) Kind() string { return "identity.provision" }

// EmailJobArgs carries an outbound notification for async delivery.
type EmailJobArgs struct {
	Type         string            `json:"type"`
	TenantID     string            `json:"tenant_id"`
	Recipient    string            `json:"recipient"`
	TemplateData map[string]string `json:"template_data,omitempty"`
}

func (EmailJobArgs) Kind() string { return "email.send" }

// Scheduler implements domain.JobScheduler by enqueuing River jobs.
type Scheduler struct {
	client *Client
}

// NewScheduler creates a scheduler backed by the given River client.
func NewScheduler(client *Client) *Scheduler {
	return &Scheduler{client: client}
}

// ScheduleArchival enqueues the archival run and returns River's job id,
// which callers surface as the archive job reference.
func (s *Scheduler) ScheduleArchival(ctx context.Context, tenant domain.Tenant, recordID string) (int64, error) {
	res, err := s.client.Insert(ctx, ArchiveJobArgs{
		TenantID:        tenant.ID,
		RecordID:        recordID,
		Location:        tenant.ArchiveLocation,
		EncryptionKeyID: tenant.EncryptionKeyID,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("enqueuing archive job: %w", err)
	}
	return res.Job.ID, nil
}

func (s *Scheduler) ScheduleProvisioning(ctx context.Context, req domain.ProvisionRequest) error {
	_, err := s.client.Insert(ctx, ProvisionJobArgs{
		TenantID:     req.TenantID,
		Email:        req.Email,
		Name:         req.Name,
		TempPassword: req.TempPassword,
		Role:         string(req.Role),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing provision job: %w", err)
	}
	return nil
}

func (s *Scheduler) ScheduleEmail(ctx context.Context, msg domain.EmailMessage) error {
	_, err := s.client.Insert(ctx, EmailJobArgs{
		Type:         msg.Type,
		TenantID:     msg.TenantID,
		Recipient:    msg.Recipient,
		TemplateData: msg.TemplateData,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing email job: %w", err)
	}
	return nil
}
