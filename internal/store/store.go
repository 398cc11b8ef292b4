// ABOUTME: Store interface and data types for mcp-gateway persistence
// ABOUTME: Defines Tenant, Token, Credential, Session, Resource rows and the Store contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrTenantInUse is returned when deleting a tenant that still owns active
// tokens or sessions
var ErrTenantInUse = errors.New("tenant has active tokens or sessions")

// ErrDuplicate is returned when a unique constraint is violated
var ErrDuplicate = errors.New("already exists")

// Tenant is the isolation boundary. A tenant owns tokens, per-provider
// credentials, and named resources.
type Tenant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Token is a bearer credential bound to exactly one tenant.
// Scopes are opaque, case-sensitive labels; authorization is flat subset matching.
type Token struct {
	ID        string     `json:"id"`
	Secret    string     `json:"secret,omitempty"` // the opaque bearer value, unique
	TenantID  string     `json:"tenant_id"`
	Scopes    []string   `json:"scopes"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}

// Expired reports whether the token has an expiry in the past relative to now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// AdminToken is an administrative bearer credential. It lives in a namespace
// disjoint from tenant tokens; the two must never be interchanged.
type AdminToken struct {
	ID        string
	Secret    string
	Name      string
	Scopes    []string
	IsActive  bool
	ExpiresAt *time.Time
	CreatedAt time.Time
	LastUsed  *time.Time
	CreatedBy string
}

// Expired reports whether the admin token has an expiry in the past.
func (t *AdminToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// Credential holds one tenant's secret fields for one provider.
// Values are encrypted by the vault before they reach the store; the store
// never sees plaintext for new writes (legacy rows may hold plaintext).
type Credential struct {
	ID        string
	TenantID  string
	Provider  string
	Values    map[string]string // field key -> encrypted value
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Configured reports whether every one of the given field keys has a
// non-empty value. Distinct from IsActive: a credential can be fully
// configured yet deactivated by the operator.
func (c *Credential) Configured(keys []string) bool {
	for _, k := range keys {
		if c.Values[k] == "" {
			return false
		}
	}
	return true
}

// Session tracks one protocol connection for logging and analytics only.
// Authorization is re-derived from the token on every call; a session is
// never an authority for who may do what.
type Session struct {
	ID              string
	TenantID        *string
	TokenID         *string
	ClientInfo      string // raw clientInfo JSON from initialize
	ProtocolVersion string
	IsActive        bool
	CreatedAt       time.Time
	LastActivity    time.Time
}

// Resource is a tenant-owned named resource (document, URL, inline text).
type Resource struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"` // "url", "text", "onedrive", "sharepoint", "googledrive"
	URI         string    `json:"uri"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToolCall is an audit row for one tools/call invocation.
// Written fire-and-forget after execution; may be lost on crash.
type ToolCall struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	TenantID   string    `json:"tenant_id"`
	ToolName   string    `json:"tool_name"`
	Arguments  string    `json:"arguments,omitempty"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store defines the persistence contract for the gateway. The dispatcher and
// authenticators need only single-row reads and updates; no method spans more
// than one entity transactionally.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	UpdateTenant(ctx context.Context, tenant *Tenant) error
	DeleteTenant(ctx context.Context, id string) error
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// Tokens
	CreateToken(ctx context.Context, token *Token) error
	GetTokenBySecret(ctx context.Context, secret string) (*Token, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
	ListTokens(ctx context.Context, tenantID string) ([]*Token, error)
	DeactivateToken(ctx context.Context, id string) error

	// Admin tokens (disjoint namespace)
	CreateAdminToken(ctx context.Context, token *AdminToken) error
	GetAdminTokenBySecret(ctx context.Context, secret string) (*AdminToken, error)
	TouchAdminToken(ctx context.Context, id string, at time.Time) error

	// Credentials
	UpsertCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, tenantID, provider string) (*Credential, error)
	ListCredentials(ctx context.Context, tenantID string) ([]*Credential, error)
	DeleteCredential(ctx context.Context, tenantID, provider string) error
	// ConfiguredCredentialKeys returns every non-empty field of every active
	// credential row for the tenant, namespaced as "{provider}_{key}".
	ConfiguredCredentialKeys(ctx context.Context, tenantID string) ([]string, error)

	// Sessions (logging/analytics only)
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	EndSession(ctx context.Context, id string) error

	// Resources
	CreateResource(ctx context.Context, resource *Resource) error
	GetResourceByName(ctx context.Context, tenantID, name string) (*Resource, error)
	ListResources(ctx context.Context, tenantID string) ([]*Resource, error)

	// Tool call audit log
	SaveToolCall(ctx context.Context, call *ToolCall) error
	ListToolCalls(ctx context.Context, tenantID string, limit int) ([]*ToolCall, error)

	// Close releases any resources held by the store
	Close() error
}
