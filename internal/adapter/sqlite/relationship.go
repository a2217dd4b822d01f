package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agroplane/agroplane/internal/domain"
)

// Compile-time check: RelationshipRepository implements domain.RelationshipRepository.
var _ domain.RelationshipRepository = (*RelationshipRepository)(nil)

// RelationshipRepository implements domain.RelationshipRepository using SQLite.
type RelationshipRepository struct {
	db *sql.DB
}

func (r *RelationshipRepository) Get(ctx context.Context, userID, tenantID string) (domain.UserTenantRelationship, error) {
	var rel domain.UserTenantRelationship
	var role, createdAt, updatedAt string
	var isActive int

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, tenant_id, role, is_active, created_at, updated_at
		 FROM user_tenant_relationships
		 WHERE user_id = ? AND tenant_id = ?`,
		userID, tenantID,
	).Scan(&rel.UserID, &rel.TenantID, &role, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserTenantRelationship{}, domain.ErrRelationshipNotFound
		}
		return domain.UserTenantRelationship{}, fmt.Errorf("scanning relationship: %w", err)
	}

	rel.Role = domain.Role(role)
	rel.IsActive = isActive != 0
	rel.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	rel.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return rel, nil
}

// Upsert inserts or overwrites the (user, tenant) row. The ON CONFLICT
// clause gives last-writer-wins semantics on role and active flag, so
// concurrent auto-fix calls for the same pair never error.
func (r *RelationshipRepository) Upsert(ctx context.Context, rel domain.UserTenantRelationship) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_tenant_relationships (user_id, tenant_id, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, tenant_id) DO UPDATE SET
		   role = excluded.role,
		   is_active = excluded.is_active,
		   updated_at = excluded.updated_at`,
		rel.UserID, rel.TenantID, string(rel.Role), boolToInt(rel.IsActive),
		rel.CreatedAt.Format(timeFormat), now,
	)
	if err != nil {
		return fmt.Errorf("upserting relationship: %w", err)
	}
	return nil
}

func (r *RelationshipRepository) ListForTenant(ctx context.Context, tenantID string) ([]domain.UserTenantRelationship, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, tenant_id, role, is_active, created_at, updated_at
		 FROM user_tenant_relationships
		 WHERE tenant_id = ? ORDER BY user_id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}
	defer rows.Close()

	var rels []domain.UserTenantRelationship
	for rows.Next() {
		var rel domain.UserTenantRelationship
		var role, createdAt, updatedAt string
		var isActive int

		if err := rows.Scan(&rel.UserID, &rel.TenantID, &role, &isActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning relationship row: %w", err)
		}

		rel.Role = domain.Role(role)
		rel.IsActive = isActive != 0
		rel.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		rel.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
		rels = append(rels, rel)
	}

	return rels, rows.Err()
}
