// ABOUTME: Tenant CRUD implementation for the SQLite store
// ABOUTME: Deletion is blocked while the tenant still owns active tokens or sessions

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateTenant inserts a new tenant row.
func (s *SQLiteStore) CreateTenant(ctx context.Context, tenant *Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	if tenant.UpdatedAt.IsZero() {
		tenant.UpdatedAt = now
	}

	query := `
		INSERT INTO tenants (id, name, description, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Description,
		tenant.IsActive,
		tenant.CreatedAt.Format(time.RFC3339),
		tenant.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: tenant %q", ErrDuplicate, tenant.ID)
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}

	s.logger.Debug("created tenant", "id", tenant.ID, "name", tenant.Name)
	return nil
}

// GetTenant retrieves a tenant by ID.
// Returns ErrNotFound if the tenant doesn't exist.
func (s *SQLiteStore) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM tenants
		WHERE id = ?
	`

	var tenant Tenant
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Description,
		&tenant.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant: %w", err)
	}

	tenant.CreatedAt = s.parseTime(createdAt, "created_at", tenant.ID)
	tenant.UpdatedAt = s.parseTime(updatedAt, "updated_at", tenant.ID)
	return &tenant, nil
}

// UpdateTenant updates a tenant's name, description, and active flag.
// Returns ErrNotFound if the tenant doesn't exist.
func (s *SQLiteStore) UpdateTenant(ctx context.Context, tenant *Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE tenants
		SET name = ?, description = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		tenant.Name,
		tenant.Description,
		tenant.IsActive,
		tenant.UpdatedAt.Format(time.RFC3339),
		tenant.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated tenant", "id", tenant.ID)
	return nil
}

// DeleteTenant removes a tenant by ID.
// Returns ErrTenantInUse while the tenant still owns active tokens or sessions.
func (s *SQLiteStore) DeleteTenant(ctx context.Context, id string) error {
	var active int
	countQuery := `
		SELECT
			(SELECT COUNT(*) FROM tokens WHERE tenant_id = ? AND is_active = 1) +
			(SELECT COUNT(*) FROM sessions WHERE tenant_id = ? AND is_active = 1)
	`
	if err := s.db.QueryRowContext(ctx, countQuery, id, id).Scan(&active); err != nil {
		return fmt.Errorf("counting tenant dependents: %w", err)
	}
	if active > 0 {
		return ErrTenantInUse
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted tenant", "id", id)
	return nil
}

// ListTenants returns all tenants ordered by creation time.
func (s *SQLiteStore) ListTenants(ctx context.Context) ([]*Tenant, error) {
	query := `
		SELECT id, name, description, is_active, created_at, updated_at
		FROM tenants
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tenants []*Tenant
	for rows.Next() {
		var tenant Tenant
		var createdAt, updatedAt string

		if err := rows.Scan(
			&tenant.ID,
			&tenant.Name,
			&tenant.Description,
			&tenant.IsActive,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning tenant row: %w", err)
		}

		tenant.CreatedAt = s.parseTime(createdAt, "created_at", tenant.ID)
		tenant.UpdatedAt = s.parseTime(updatedAt, "updated_at", tenant.ID)
		tenants = append(tenants, &tenant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}
	return tenants, nil
}
