// ABOUTME: Provider and tool contracts for the capability registry.
// ABOUTME: Providers declare tools, required scopes, and required credential keys.

package registry

import (
	"context"
	"encoding/json"
)

// ToolSpec describes a single callable capability as advertised to clients.
type ToolSpec struct {
	Name           string
	Description    string
	InputSchema    json.RawMessage
	RequiredScopes []string
}

// Handler executes a tool. Arguments have already been validated against the
// tool's input schema. Credentials contain exactly the provider's declared
// keys, decrypted and stripped of the provider prefix; a tool never sees
// another provider's secrets. The invocation carries tenant and token identity.
type Handler func(ctx context.Context, args map[string]any, credentials map[string]string, inv *Invocation) (any, error)

// ToolDef pairs a tool's spec with its handler for registration.
type ToolDef struct {
	Spec    ToolSpec
	Handler Handler
}

// Provider is an integration-specific implementation exposing tools and
// declaring the credential keys it needs from a tenant's vault.
type Provider interface {
	// Name identifies the provider within its domain, e.g. "stripe".
	Name() string

	// Tools returns the provider's tool declarations.
	Tools() []ToolDef

	// RequiredCredentialKeys lists the credential field keys every tool of
	// this provider needs, without the provider prefix. Empty means the
	// provider's tools work without tenant credentials.
	RequiredCredentialKeys() []string

	// ValidateCredentials checks a decrypted credential set against the live
	// provider API. Used by the administrative surface, not by dispatch.
	ValidateCredentials(ctx context.Context, credentials map[string]string) error
}
