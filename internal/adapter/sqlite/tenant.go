package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// Compile-time check: TenantRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TenantRepository)(nil)

// TenantRepository implements domain.TenantRepository using SQLite.
type TenantRepository struct {
	db *sql.DB
}

const tenantColumns = `id, name, slug, status, plan,
	owner_name, owner_email, owner_phone,
	max_farmers, max_dealers, storage_mb, api_calls_per_day,
	writes_enabled, suspended_at, suspension_reason,
	archived_at, archive_location, encryption_key_id,
	created_at, updated_at`

func (r *TenantRepository) Create(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenantArgs(t)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = ?`, slug,
	))
}

func (r *TenantRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	var args []any
	var conds []string

	if filter.Status != nil {
		conds = append(conds, `status = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.Plan != nil {
		conds = append(conds, `plan = ?`)
		args = append(args, string(*filter.Plan))
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenantRow(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

func (r *TenantRepository) Update(ctx context.Context, t domain.Tenant) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, plan = ?,
		 owner_name = ?, owner_email = ?, owner_phone = ?,
		 max_farmers = ?, max_dealers = ?, storage_mb = ?, api_calls_per_day = ?,
		 writes_enabled = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, string(t.Plan),
		t.Owner.Name, t.Owner.Email, t.Owner.Phone,
		t.Limits.MaxFarmers, t.Limits.MaxDealers, t.Limits.StorageMB, t.Limits.APICallsPerDay,
		boolToInt(t.WritesEnabled), time.Now().UTC().Format(timeFormat),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}

	return nil
}

// UpdateStatus writes the full tenant row guarded by a compare-and-swap on
// the status column. A row that changed state concurrently matches zero
// rows; the caller gets a StatusConflictError instead of overwriting.
func (r *TenantRepository) UpdateStatus(ctx context.Context, t domain.Tenant, expected domain.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET status = ?,
		 max_farmers = ?, max_dealers = ?, storage_mb = ?, api_calls_per_day = ?,
		 writes_enabled = ?, suspended_at = ?, suspension_reason = ?,
		 archived_at = ?, archive_location = ?, encryption_key_id = ?,
		 updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(t.Status),
		t.Limits.MaxFarmers, t.Limits.MaxDealers, t.Limits.StorageMB, t.Limits.APICallsPerDay,
		boolToInt(t.WritesEnabled), nullTime(t.SuspendedAt), t.SuspensionReason,
		nullTime(t.ArchivedAt), t.ArchiveLocation, t.EncryptionKeyID,
		time.Now().UTC().Format(timeFormat),
		t.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("updating tenant status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, t.ID); errors.Is(err, domain.ErrTenantNotFound) {
			return domain.ErrTenantNotFound
		}
		return &domain.StatusConflictError{TenantID: t.ID, Expected: expected}
	}

	return nil
}

func tenantArgs(t domain.Tenant) []any {
	return []any{
		t.ID, t.Name, t.Slug, string(t.Status), string(t.Plan),
		t.Owner.Name, t.Owner.Email, t.Owner.Phone,
		t.Limits.MaxFarmers, t.Limits.MaxDealers, t.Limits.StorageMB, t.Limits.APICallsPerDay,
		boolToInt(t.WritesEnabled), nullTime(t.SuspendedAt), t.SuspensionReason,
		nullTime(t.ArchivedAt), t.ArchiveLocation, t.EncryptionKeyID,
		t.CreatedAt.Format(timeFormat), t.UpdatedAt.Format(timeFormat),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenantFields(row rowScanner) (domain.Tenant, error) {
	var t domain.Tenant
	var status, plan, createdAt, updatedAt string
	var writesEnabled int
	var suspendedAt, archivedAt sql.NullString

	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &status, &plan,
		&t.Owner.Name, &t.Owner.Email, &t.Owner.Phone,
		&t.Limits.MaxFarmers, &t.Limits.MaxDealers, &t.Limits.StorageMB, &t.Limits.APICallsPerDay,
		&writesEnabled, &suspendedAt, &t.SuspensionReason,
		&archivedAt, &t.ArchiveLocation, &t.EncryptionKeyID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Tenant{}, err
	}

	t.Status = domain.Status(status)
	t.Plan = domain.Plan(plan)
	t.WritesEnabled = writesEnabled != 0
	t.SuspendedAt = parseNullTime(suspendedAt)
	t.ArchivedAt = parseNullTime(archivedAt)
	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	t.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return t, nil
}

func scanTenant(row *sql.Row) (domain.Tenant, error) {
	t, err := scanTenantFields(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}
	return t, nil
}

func scanTenantRow(rows *sql.Rows) (domain.Tenant, error) {
	t, err := scanTenantFields(rows)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("scanning tenant row: %w", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}
