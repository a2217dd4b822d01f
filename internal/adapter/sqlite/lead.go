package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// Compile-time check: LeadRepository implements domain.LeadRepository.
var _ domain.LeadRepository = (*LeadRepository)(nil)

// LeadRepository implements domain.LeadRepository using SQLite.
type LeadRepository struct {
	db *sql.DB
}

const leadColumns = `id, name, company, email, phone, status, converted_tenant_id, converted_at, created_at, updated_at`

func (r *LeadRepository) Create(ctx context.Context, l domain.Lead) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Company, l.Email, l.Phone, string(l.Status),
		l.ConvertedTenantID, nullTime(l.ConvertedAt),
		l.CreatedAt.Format(timeFormat), l.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting lead: %w", err)
	}
	return nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lead{}, domain.ErrLeadNotFound
		}
		return domain.Lead{}, fmt.Errorf("scanning lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepository) Update(ctx context.Context, l domain.Lead) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE leads SET name = ?, company = ?, email = ?, phone = ?,
		 status = ?, converted_tenant_id = ?, converted_at = ?, updated_at = ?
		 WHERE id = ?`,
		l.Name, l.Company, l.Email, l.Phone,
		string(l.Status), l.ConvertedTenantID, nullTime(l.ConvertedAt),
		time.Now().UTC().Format(timeFormat),
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating lead: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}

func (r *LeadRepository) List(ctx context.Context, status *domain.LeadStatus, limit, offset int) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any

	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}

	query += ` ORDER BY created_at DESC`

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if offset > 0 {
		query += ` OFFSET ?`
		args = append(args, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var l domain.Lead
		var lStatus, createdAt, updatedAt string
		var convertedAt sql.NullString

		if err := rows.Scan(
			&l.ID, &l.Name, &l.Company, &l.Email, &l.Phone, &lStatus,
			&l.ConvertedTenantID, &convertedAt, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lead row: %w", err)
		}

		l.Status = domain.LeadStatus(lStatus)
		l.ConvertedAt = parseNullTime(convertedAt)
		l.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		l.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
		leads = append(leads, l)
	}

	return leads, rows.Err()
}

func scanLead(row *sql.Row) (domain.Lead, error) {
	var l domain.Lead
	var status, createdAt, updatedAt string
	var convertedAt sql.NullString

	err := row.Scan(
		&l.ID, &l.Name, &l.Company, &l.Email, &l.Phone, &status,
		&l.ConvertedTenantID, &convertedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}

	l.Status = domain.LeadStatus(status)
	l.ConvertedAt = parseNullTime(convertedAt)
	l.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	l.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return l, nil
}
