// ABOUTME: Session and tool-call audit persistence for the SQLite store
// ABOUTME: Both are logging-only rows written best-effort by the dispatcher

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a session row. Sessions carry a weak back-reference
// to tenant and token for analytics; they are never consulted for authorization.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}

	query := `
		INSERT INTO sessions (id, tenant_id, token_id, client_info, protocol_version, is_active, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var tenantID, tokenID any
	if session.TenantID != nil {
		tenantID = *session.TenantID
	}
	if session.TokenID != nil {
		tokenID = *session.TokenID
	}

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		tenantID,
		tokenID,
		session.ClientInfo,
		session.ProtocolVersion,
		session.IsActive,
		session.CreatedAt.Format(time.RFC3339),
		session.LastActivity.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, tenant_id, token_id, client_info, protocol_version, is_active, created_at, last_activity
		FROM sessions
		WHERE id = ?
	`

	var session Session
	var tenantID, tokenID sql.NullString
	var createdAt, lastActivity string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&tenantID,
		&tokenID,
		&session.ClientInfo,
		&session.ProtocolVersion,
		&session.IsActive,
		&createdAt,
		&lastActivity,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if tenantID.Valid {
		session.TenantID = &tenantID.String
	}
	if tokenID.Valid {
		session.TokenID = &tokenID.String
	}
	session.CreatedAt = s.parseTime(createdAt, "created_at", session.ID)
	session.LastActivity = s.parseTime(lastActivity, "last_activity", session.ID)
	return &session, nil
}

// TouchSession records activity on a session. Best-effort.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// EndSession marks a session inactive on disconnect.
func (s *SQLiteStore) EndSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("ended session", "id", id)
	return nil
}

// SaveToolCall writes a tool-call audit row. Written fire-and-forget after
// execution; a failure here is a logging loss, never a call failure.
func (s *SQLiteStore) SaveToolCall(ctx context.Context, call *ToolCall) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_calls (id, session_id, tenant_id, tool_name, arguments, result, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		call.ID,
		call.SessionID,
		call.TenantID,
		call.ToolName,
		call.Arguments,
		call.Result,
		call.Error,
		call.DurationMS,
		call.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting tool call: %w", err)
	}
	return nil
}

// ListToolCalls returns the most recent tool-call rows for a tenant.
func (s *SQLiteStore) ListToolCalls(ctx context.Context, tenantID string, limit int) ([]*ToolCall, error) {
	query := `
		SELECT id, session_id, tenant_id, tool_name, arguments, result, error, duration_ms, created_at
		FROM tool_calls
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tool calls: %w", err)
	}
	defer rows.Close()

	var calls []*ToolCall
	for rows.Next() {
		var call ToolCall
		var createdAt string
		if err := rows.Scan(
			&call.ID,
			&call.SessionID,
			&call.TenantID,
			&call.ToolName,
			&call.Arguments,
			&call.Result,
			&call.Error,
			&call.DurationMS,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning tool call: %w", err)
		}
		call.CreatedAt = s.parseTime(createdAt, "created_at", call.ID)
		calls = append(calls, &call)
	}
	return calls, rows.Err()
}
