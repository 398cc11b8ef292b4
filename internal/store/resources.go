// ABOUTME: Tenant resource persistence for the SQLite store
// ABOUTME: Named per-tenant documents, URLs, and inline text exposed via resources/read

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateResource inserts a tenant resource. Resource names are unique per tenant.
func (s *SQLiteStore) CreateResource(ctx context.Context, resource *Resource) error {
	if resource.ID == "" {
		resource.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	if resource.UpdatedAt.IsZero() {
		resource.UpdatedAt = now
	}

	query := `
		INSERT INTO resources (id, tenant_id, name, type, uri, description, tags, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		resource.ID,
		resource.TenantID,
		resource.Name,
		resource.Type,
		resource.URI,
		resource.Description,
		marshalStrings(resource.Tags),
		resource.IsActive,
		resource.CreatedAt.Format(time.RFC3339),
		resource.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: resource %q for tenant", ErrDuplicate, resource.Name)
		}
		return fmt.Errorf("inserting resource: %w", err)
	}

	s.logger.Debug("created resource", "id", resource.ID, "tenant_id", resource.TenantID, "name", resource.Name)
	return nil
}

// GetResourceByName retrieves an active resource by tenant and name.
// Returns ErrNotFound if no active resource matches.
func (s *SQLiteStore) GetResourceByName(ctx context.Context, tenantID, name string) (*Resource, error) {
	query := `
		SELECT id, tenant_id, name, type, uri, description, tags, is_active, created_at, updated_at
		FROM resources
		WHERE tenant_id = ? AND name = ? AND is_active = 1
	`

	var resource Resource
	var tags, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, tenantID, name).Scan(
		&resource.ID,
		&resource.TenantID,
		&resource.Name,
		&resource.Type,
		&resource.URI,
		&resource.Description,
		&tags,
		&resource.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying resource: %w", err)
	}

	resource.Tags = unmarshalStrings(tags)
	resource.CreatedAt = s.parseTime(createdAt, "created_at", resource.ID)
	resource.UpdatedAt = s.parseTime(updatedAt, "updated_at", resource.ID)
	return &resource, nil
}

// ListResources returns all active resources for a tenant ordered by name.
func (s *SQLiteStore) ListResources(ctx context.Context, tenantID string) ([]*Resource, error) {
	query := `
		SELECT id, tenant_id, name, type, uri, description, tags, is_active, created_at, updated_at
		FROM resources
		WHERE tenant_id = ? AND is_active = 1
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying resources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var resources []*Resource
	for rows.Next() {
		var resource Resource
		var tags, createdAt, updatedAt string

		if err := rows.Scan(
			&resource.ID,
			&resource.TenantID,
			&resource.Name,
			&resource.Type,
			&resource.URI,
			&resource.Description,
			&tags,
			&resource.IsActive,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning resource row: %w", err)
		}

		resource.Tags = unmarshalStrings(tags)
		resource.CreatedAt = s.parseTime(createdAt, "created_at", resource.ID)
		resource.UpdatedAt = s.parseTime(updatedAt, "updated_at", resource.ID)
		resources = append(resources, &resource)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resource rows: %w", err)
	}
	return resources, nil
}
