// ABOUTME: Authenticated identity propagation through request handlers.
// ABOUTME: Provides WithIdentity/FromContext for carrying auth info via context.

package auth

import (
	"context"

	"github.com/azar84/mcp-gateway/internal/store"
)

// Identity is the authenticated caller of one request: the tenant, the exact
// token used, and the scopes that token grants. It is populated once per
// request and never mutated; authorization decisions always read from here,
// never from session state.
type Identity struct {
	Tenant *store.Tenant
	Token  *store.Token
}

// Scopes returns the scopes granted by the authenticated token.
func (id *Identity) Scopes() []string {
	if id == nil || id.Token == nil {
		return nil
	}
	return id.Token.Scopes
}

// HasScope reports whether the token grants the named scope.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil if not present.
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	if !ok {
		return nil
	}
	return id
}
