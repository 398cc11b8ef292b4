// ABOUTME: Per-tenant per-provider credential persistence for the SQLite store
// ABOUTME: Field values arrive already encrypted; the store never handles plaintext writes

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// UpsertCredential creates or replaces the credential record for a
// (tenant, provider) pair. Field values must already be vault-encrypted.
func (s *SQLiteStore) UpsertCredential(ctx context.Context, cred *Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	values, err := json.Marshal(cred.Values)
	if err != nil {
		return fmt.Errorf("encoding credential values: %w", err)
	}

	query := `
		INSERT INTO credentials (id, tenant_id, provider, field_values, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, provider) DO UPDATE SET
			field_values = excluded.field_values,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		cred.ID,
		cred.TenantID,
		cred.Provider,
		string(values),
		cred.IsActive,
		cred.CreatedAt.Format(time.RFC3339),
		cred.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting credential: %w", err)
	}

	s.logger.Debug("upserted credential", "tenant_id", cred.TenantID, "provider", cred.Provider)
	return nil
}

// GetCredential retrieves the credential record for a (tenant, provider) pair.
// Returns ErrNotFound if no record exists.
func (s *SQLiteStore) GetCredential(ctx context.Context, tenantID, provider string) (*Credential, error) {
	query := `
		SELECT id, tenant_id, provider, field_values, is_active, created_at, updated_at
		FROM credentials
		WHERE tenant_id = ? AND provider = ?
	`

	var cred Credential
	var values, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, tenantID, provider).Scan(
		&cred.ID,
		&cred.TenantID,
		&cred.Provider,
		&values,
		&cred.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	if err := json.Unmarshal([]byte(values), &cred.Values); err != nil {
		return nil, fmt.Errorf("decoding credential values: %w", err)
	}
	cred.CreatedAt = s.parseTime(createdAt, "created_at", cred.ID)
	cred.UpdatedAt = s.parseTime(updatedAt, "updated_at", cred.ID)
	return &cred, nil
}

// ListCredentials returns all credential records for a tenant.
func (s *SQLiteStore) ListCredentials(ctx context.Context, tenantID string) ([]*Credential, error) {
	query := `
		SELECT id, tenant_id, provider, field_values, is_active, created_at, updated_at
		FROM credentials
		WHERE tenant_id = ?
		ORDER BY provider
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var creds []*Credential
	for rows.Next() {
		var cred Credential
		var values, createdAt, updatedAt string

		if err := rows.Scan(
			&cred.ID,
			&cred.TenantID,
			&cred.Provider,
			&values,
			&cred.IsActive,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning credential row: %w", err)
		}

		if err := json.Unmarshal([]byte(values), &cred.Values); err != nil {
			return nil, fmt.Errorf("decoding credential values: %w", err)
		}
		cred.CreatedAt = s.parseTime(createdAt, "created_at", cred.ID)
		cred.UpdatedAt = s.parseTime(updatedAt, "updated_at", cred.ID)
		creds = append(creds, &cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating credential rows: %w", err)
	}
	return creds, nil
}

// DeleteCredential removes the credential record for a (tenant, provider) pair.
// Returns ErrNotFound if no record exists.
func (s *SQLiteStore) DeleteCredential(ctx context.Context, tenantID, provider string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE tenant_id = ? AND provider = ?`,
		tenantID, provider,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted credential", "tenant_id", tenantID, "provider", provider)
	return nil
}

// ConfiguredCredentialKeys returns every non-empty field of every active
// credential row for the tenant, namespaced as "{provider}_{key}".
// Inactive credential rows are treated as absent. The result is sorted for
// deterministic comparison.
func (s *SQLiteStore) ConfiguredCredentialKeys(ctx context.Context, tenantID string) ([]string, error) {
	creds, err := s.ListCredentials(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, cred := range creds {
		if !cred.IsActive {
			continue
		}
		for key, value := range cred.Values {
			if value == "" {
				continue
			}
			keys = append(keys, cred.Provider+"_"+key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
