// ABOUTME: Token and admin-token persistence for the SQLite store
// ABOUTME: Point lookups by secret plus best-effort last-used updates

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateToken inserts a new bearer token bound to a tenant.
func (s *SQLiteStore) CreateToken(ctx context.Context, token *Token) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tokens (id, secret, tenant_id, scopes, is_active, expires_at, created_at, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.Secret,
		token.TenantID,
		marshalStrings(token.Scopes),
		token.IsActive,
		nullTime(token.ExpiresAt),
		token.CreatedAt.Format(time.RFC3339),
		nullTime(token.LastUsed),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: token", ErrDuplicate)
		}
		return fmt.Errorf("inserting token: %w", err)
	}

	s.logger.Debug("created token", "id", token.ID, "tenant_id", token.TenantID, "scopes", token.Scopes)
	return nil
}

// GetTokenBySecret retrieves an active token by exact secret match.
// Inactive tokens are invisible here: deactivation is equivalent to deletion
// from the authenticator's point of view. Returns ErrNotFound otherwise.
func (s *SQLiteStore) GetTokenBySecret(ctx context.Context, secret string) (*Token, error) {
	query := `
		SELECT id, secret, tenant_id, scopes, is_active, expires_at, created_at, last_used
		FROM tokens
		WHERE secret = ? AND is_active = 1
	`
	return s.scanToken(s.db.QueryRowContext(ctx, query, secret))
}

// scanToken scans a single token row.
func (s *SQLiteStore) scanToken(row *sql.Row) (*Token, error) {
	var token Token
	var scopes, createdAt string
	var expiresAt, lastUsed sql.NullString

	err := row.Scan(
		&token.ID,
		&token.Secret,
		&token.TenantID,
		&scopes,
		&token.IsActive,
		&expiresAt,
		&createdAt,
		&lastUsed,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}

	token.Scopes = unmarshalStrings(scopes)
	token.CreatedAt = s.parseTime(createdAt, "created_at", token.ID)
	token.ExpiresAt = s.parseNullTime(expiresAt, "expires_at", token.ID)
	token.LastUsed = s.parseNullTime(lastUsed, "last_used", token.ID)
	return &token, nil
}

// TouchToken records the last-used time for a token. Best-effort: callers
// treat failures as log-only and never fail the authorization decision.
func (s *SQLiteStore) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET last_used = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching token: %w", err)
	}
	return nil
}

// ListTokens returns all tokens for a tenant ordered by creation time.
func (s *SQLiteStore) ListTokens(ctx context.Context, tenantID string) ([]*Token, error) {
	query := `
		SELECT id, secret, tenant_id, scopes, is_active, expires_at, created_at, last_used
		FROM tokens
		WHERE tenant_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []*Token
	for rows.Next() {
		var token Token
		var scopes, createdAt string
		var expiresAt, lastUsed sql.NullString

		if err := rows.Scan(
			&token.ID,
			&token.Secret,
			&token.TenantID,
			&scopes,
			&token.IsActive,
			&expiresAt,
			&createdAt,
			&lastUsed,
		); err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}

		token.Scopes = unmarshalStrings(scopes)
		token.CreatedAt = s.parseTime(createdAt, "created_at", token.ID)
		token.ExpiresAt = s.parseNullTime(expiresAt, "expires_at", token.ID)
		token.LastUsed = s.parseNullTime(lastUsed, "last_used", token.ID)
		tokens = append(tokens, &token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}
	return tokens, nil
}

// DeactivateToken marks a token inactive. In-flight tool executions started
// under the token run to completion; only new validations are affected.
func (s *SQLiteStore) DeactivateToken(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE tokens SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivating token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deactivated token", "id", id)
	return nil
}

// CreateAdminToken inserts a new administrative token.
func (s *SQLiteStore) CreateAdminToken(ctx context.Context, token *AdminToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO admin_tokens (id, secret, name, scopes, is_active, expires_at, created_at, last_used, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		token.ID,
		token.Secret,
		token.Name,
		marshalStrings(token.Scopes),
		token.IsActive,
		nullTime(token.ExpiresAt),
		token.CreatedAt.Format(time.RFC3339),
		nullTime(token.LastUsed),
		token.CreatedBy,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: admin token", ErrDuplicate)
		}
		return fmt.Errorf("inserting admin token: %w", err)
	}

	s.logger.Debug("created admin token", "id", token.ID, "name", token.Name)
	return nil
}

// GetAdminTokenBySecret retrieves an active admin token by exact secret match.
// Returns ErrNotFound otherwise.
func (s *SQLiteStore) GetAdminTokenBySecret(ctx context.Context, secret string) (*AdminToken, error) {
	query := `
		SELECT id, secret, name, scopes, is_active, expires_at, created_at, last_used, created_by
		FROM admin_tokens
		WHERE secret = ? AND is_active = 1
	`

	var token AdminToken
	var scopes, createdAt string
	var expiresAt, lastUsed sql.NullString

	err := s.db.QueryRowContext(ctx, query, secret).Scan(
		&token.ID,
		&token.Secret,
		&token.Name,
		&scopes,
		&token.IsActive,
		&expiresAt,
		&createdAt,
		&lastUsed,
		&token.CreatedBy,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin token: %w", err)
	}

	token.Scopes = unmarshalStrings(scopes)
	token.CreatedAt = s.parseTime(createdAt, "created_at", token.ID)
	token.ExpiresAt = s.parseNullTime(expiresAt, "expires_at", token.ID)
	token.LastUsed = s.parseNullTime(lastUsed, "last_used", token.ID)
	return &token, nil
}

// TouchAdminToken records the last-used time for an admin token. Best-effort.
func (s *SQLiteStore) TouchAdminToken(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE admin_tokens SET last_used = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching admin token: %w", err)
	}
	return nil
}
