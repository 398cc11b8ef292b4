// ABOUTME: Tests for the admin token authenticator.
// ABOUTME: Confirms the admin namespace rejects tenant secrets wholesale.

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azar84/mcp-gateway/internal/store"
)

type fakeAdminStore struct {
	tokens map[string]*store.AdminToken
}

func (s *fakeAdminStore) GetAdminTokenBySecret(_ context.Context, secret string) (*store.AdminToken, error) {
	token, ok := s.tokens[secret]
	if !ok || !token.IsActive {
		return nil, store.ErrNotFound
	}
	return token, nil
}

func (s *fakeAdminStore) TouchAdminToken(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func TestAdminAuthenticate(t *testing.T) {
	fs := &fakeAdminStore{tokens: map[string]*store.AdminToken{
		"admin-secret": {ID: "a1", Secret: "admin-secret", Name: "ops", IsActive: true},
	}}
	a := NewAdminAuthenticator(fs, nil)

	token, err := a.Authenticate(context.Background(), "admin-secret")
	require.NoError(t, err)
	assert.Equal(t, "ops", token.Name)

	_, err = a.Authenticate(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, err = a.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAdminAuthenticateExpired(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	fs := &fakeAdminStore{tokens: map[string]*store.AdminToken{
		"old": {ID: "a2", Secret: "old", IsActive: true, ExpiresAt: &past},
	}}
	a := NewAdminAuthenticator(fs, nil)

	_, err := a.Authenticate(context.Background(), "old")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
