package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// Compile-time check: ArchivalRepository implements domain.ArchivalRepository.
var _ domain.ArchivalRepository = (*ArchivalRepository)(nil)

// ArchivalRepository implements domain.ArchivalRepository using SQLite.
type ArchivalRepository struct {
	db *sql.DB
}

// ErrArchivalNotFound is returned when a tenant has no archival record.
var ErrArchivalNotFound = errors.New("archival record not found")

func (r *ArchivalRepository) Create(ctx context.Context, rec domain.ArchivalRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO archival_jobs (id, tenant_id, location, encryption_key_id, job_id, completed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Location, rec.EncryptionKeyID, rec.JobID,
		nullTime(rec.CompletedAt), rec.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting archival record: %w", err)
	}
	return nil
}

func (r *ArchivalRepository) GetByTenant(ctx context.Context, tenantID string) (domain.ArchivalRecord, error) {
	var rec domain.ArchivalRecord
	var createdAt string
	var completedAt sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, location, encryption_key_id, job_id, completed_at, created_at
		 FROM archival_jobs WHERE tenant_id = ?
		 ORDER BY created_at DESC LIMIT 1`,
		tenantID,
	).Scan(&rec.ID, &rec.TenantID, &rec.Location, &rec.EncryptionKeyID, &rec.JobID, &completedAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ArchivalRecord{}, ErrArchivalNotFound
		}
		return domain.ArchivalRecord{}, fmt.Errorf("scanning archival record: %w", err)
	}

	rec.CompletedAt = parseNullTime(completedAt)
	rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)

	return rec, nil
}

func (r *ArchivalRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE archival_jobs SET completed_at = ? WHERE id = ?`,
		at.UTC().Format(timeFormat), id,
	)
	if err != nil {
		return fmt.Errorf("marking archival completed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrArchivalNotFound
	}
	return nil
}
