// ABOUTME: Token authenticator mapping opaque bearer secrets to tenant identities.
// ABOUTME: All rejection reasons collapse into one generic authentication error.

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/azar84/mcp-gateway/internal/store"
)

// ErrAuthenticationFailed is the single error every rejection maps to.
// Callers must not learn whether a secret was unknown, expired, deactivated,
// or bound to the wrong tenant; the distinction is logged server-side only.
var ErrAuthenticationFailed = errors.New("authentication failed")

// TokenStore is the subset of the store the authenticator reads.
type TokenStore interface {
	GetTenant(ctx context.Context, id string) (*store.Tenant, error)
	GetTokenBySecret(ctx context.Context, secret string) (*store.Token, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
}

// Authenticator validates opaque bearer tokens against the store.
type Authenticator struct {
	store  TokenStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator over the given store.
func NewAuthenticator(s TokenStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		store:  s,
		logger: logger.With("component", "auth"),
		now:    time.Now,
	}
}

// Authenticate resolves a bearer secret to an Identity. If expectTenantID is
// non-empty the token must belong to that tenant. Every failure returns
// ErrAuthenticationFailed; the specific reason is only logged.
func (a *Authenticator) Authenticate(ctx context.Context, secret, expectTenantID string) (*Identity, error) {
	if secret == "" {
		return nil, ErrAuthenticationFailed
	}

	token, err := a.store.GetTokenBySecret(ctx, secret)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Error("token lookup failed", "error", err)
		}
		return nil, ErrAuthenticationFailed
	}
	if token.Expired(a.now()) {
		a.logger.Debug("rejected expired token", "token_id", token.ID)
		return nil, ErrAuthenticationFailed
	}
	if expectTenantID != "" && token.TenantID != expectTenantID {
		a.logger.Warn("token tenant mismatch",
			"token_id", token.ID,
			"expected_tenant", expectTenantID,
		)
		return nil, ErrAuthenticationFailed
	}

	tenant, err := a.store.GetTenant(ctx, token.TenantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Error("tenant lookup failed", "tenant_id", token.TenantID, "error", err)
		}
		return nil, ErrAuthenticationFailed
	}
	if !tenant.IsActive {
		a.logger.Debug("rejected token of inactive tenant", "tenant_id", tenant.ID)
		return nil, ErrAuthenticationFailed
	}

	a.touch(token.ID)
	return &Identity{Tenant: tenant, Token: token}, nil
}

// touch records token use without blocking or failing the request.
func (a *Authenticator) touch(tokenID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.TouchToken(ctx, tokenID, a.now()); err != nil {
			a.logger.Debug("touch token failed", "token_id", tokenID, "error", err)
		}
	}()
}

// CheckScopes reports whether every required scope is granted. Matching is
// flat, exact, case-sensitive subset containment; an empty requirement always
// passes, even for a token with no scopes at all.
func CheckScopes(required, granted []string) bool {
	return len(MissingScopes(required, granted)) == 0
}

// MissingScopes returns the required scopes the grant does not cover,
// in requirement order.
func MissingScopes(required, granted []string) []string {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := set[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
