// ABOUTME: Tests for the invocation context builder.
// ABOUTME: Verifies selective decryption and tolerance of missing credential records.

package registry

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azar84/mcp-gateway/internal/store"
	"github.com/azar84/mcp-gateway/internal/vault"
)

// fakeCredentialSource serves a single credential record per provider.
type fakeCredentialSource struct {
	records map[string]*store.Credential
	err     error
}

func (s *fakeCredentialSource) GetCredential(_ context.Context, _ string, provider string) (*store.Credential, error) {
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[provider]
	if !ok {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	key, _, err := vault.GenerateKey()
	require.NoError(t, err)
	v, err := vault.New(key)
	require.NoError(t, err)
	return v
}

func buildTool(t *testing.T, provider *fakeProvider) *Tool {
	t.Helper()
	return registerOne(t, ToolDef{Spec: ToolSpec{Name: "tool"}, Handler: okHandler("ok")}, provider)
}

func TestBuildDecryptsDeclaredFields(t *testing.T) {
	v := testVault(t)
	encrypted, err := v.Encrypt("sk_live_1")
	require.NoError(t, err)

	source := &fakeCredentialSource{records: map[string]*store.Credential{
		"stripe": {
			Provider: "stripe",
			IsActive: true,
			Values: map[string]string{
				"secret_key": encrypted,
				"unrelated":  "should not be touched",
			},
		},
	}}
	builder := NewContextBuilder(source, v, slog.Default())
	tool := buildTool(t, &fakeProvider{name: "stripe", keys: []string{"secret_key"}})

	inv, err := builder.Build(context.Background(), &store.Tenant{ID: "t1"}, &store.Token{}, tool)
	require.NoError(t, err)

	// Only the declared key is decrypted and namespaced; extra stored fields
	// never reach the invocation.
	assert.Equal(t, map[string]string{"stripe_secret_key": "sk_live_1"}, inv.RawCredentials)
}

func TestBuildLegacyPlaintextPassthrough(t *testing.T) {
	v := testVault(t)
	source := &fakeCredentialSource{records: map[string]*store.Credential{
		"stripe": {
			Provider: "stripe",
			IsActive: true,
			Values:   map[string]string{"secret_key": "plaintext-from-before-encryption"},
		},
	}}
	builder := NewContextBuilder(source, v, slog.Default())
	tool := buildTool(t, &fakeProvider{name: "stripe", keys: []string{"secret_key"}})

	inv, err := builder.Build(context.Background(), &store.Tenant{ID: "t1"}, nil, tool)
	require.NoError(t, err)
	assert.Equal(t, "plaintext-from-before-encryption", inv.RawCredentials["stripe_secret_key"])
}

func TestBuildMissingRecordIsNotAnError(t *testing.T) {
	builder := NewContextBuilder(&fakeCredentialSource{}, testVault(t), slog.Default())
	tool := buildTool(t, &fakeProvider{name: "stripe", keys: []string{"secret_key"}})

	inv, err := builder.Build(context.Background(), &store.Tenant{ID: "t1"}, nil, tool)
	require.NoError(t, err)
	assert.Empty(t, inv.RawCredentials)
}

func TestBuildInactiveRecordTreatedAsAbsent(t *testing.T) {
	v := testVault(t)
	source := &fakeCredentialSource{records: map[string]*store.Credential{
		"stripe": {
			Provider: "stripe",
			IsActive: false,
			Values:   map[string]string{"secret_key": "sk"},
		},
	}}
	builder := NewContextBuilder(source, v, slog.Default())
	tool := buildTool(t, &fakeProvider{name: "stripe", keys: []string{"secret_key"}})

	inv, err := builder.Build(context.Background(), &store.Tenant{ID: "t1"}, nil, tool)
	require.NoError(t, err)
	assert.Empty(t, inv.RawCredentials)
}

func TestBuildNoDeclaredKeysSkipsLookup(t *testing.T) {
	// The source would error if queried; a credential-free provider must not
	// touch it at all.
	source := &fakeCredentialSource{err: errors.New("must not be called")}
	builder := NewContextBuilder(source, testVault(t), slog.Default())
	tool := buildTool(t, &fakeProvider{name: "general"})

	inv, err := builder.Build(context.Background(), &store.Tenant{ID: "t1"}, nil, tool)
	require.NoError(t, err)
	assert.Empty(t, inv.RawCredentials)
}

func TestBuildStoreErrorPropagates(t *testing.T) {
	source := &fakeCredentialSource{err: errors.New("database locked")}
	builder := NewContextBuilder(source, testVault(t), slog.Default())
	tool := buildTool(t, &fakeProvider{name: "stripe", keys: []string{"secret_key"}})

	_, err := builder.Build(context.Background(), &store.Tenant{ID: "t1"}, nil, tool)
	assert.Error(t, err)
}
