// ABOUTME: Admin token authenticator for the management surface.
// ABOUTME: Admin tokens live in a namespace disjoint from tenant tokens.

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/azar84/mcp-gateway/internal/store"
)

// AdminTokenStore is the subset of the store the admin authenticator reads.
type AdminTokenStore interface {
	GetAdminTokenBySecret(ctx context.Context, secret string) (*store.AdminToken, error)
	TouchAdminToken(ctx context.Context, id string, at time.Time) error
}

// AdminAuthenticator validates administrative bearer tokens. It never consults
// the tenant token table, so a tenant secret presented on the admin surface
// fails exactly like an unknown one.
type AdminAuthenticator struct {
	store  AdminTokenStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAdminAuthenticator creates an AdminAuthenticator over the given store.
func NewAdminAuthenticator(s AdminTokenStore, logger *slog.Logger) *AdminAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminAuthenticator{
		store:  s,
		logger: logger.With("component", "admin_auth"),
		now:    time.Now,
	}
}

// Authenticate resolves an admin bearer secret. All failures collapse to
// ErrAuthenticationFailed.
func (a *AdminAuthenticator) Authenticate(ctx context.Context, secret string) (*store.AdminToken, error) {
	if secret == "" {
		return nil, ErrAuthenticationFailed
	}

	token, err := a.store.GetAdminTokenBySecret(ctx, secret)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Error("admin token lookup failed", "error", err)
		}
		return nil, ErrAuthenticationFailed
	}
	if token.Expired(a.now()) {
		a.logger.Debug("rejected expired admin token", "token_id", token.ID)
		return nil, ErrAuthenticationFailed
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.TouchAdminToken(ctx, token.ID, a.now()); err != nil {
			a.logger.Debug("touch admin token failed", "token_id", token.ID, "error", err)
		}
	}()
	return token, nil
}
