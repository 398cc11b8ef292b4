// ABOUTME: Invocation context builder: per-call bundle of tenant, token, decrypted credentials.
// ABOUTME: Decrypts only the credential fields the target tool's provider declared.

package registry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/azar84/mcp-gateway/internal/store"
	"github.com/azar84/mcp-gateway/internal/vault"
)

// Invocation is the immutable per-call execution context handed to a tool.
// RawCredentials holds decrypted values namespaced as {provider}_{key};
// the execution boundary narrows them further to the target provider's keys.
type Invocation struct {
	Tenant         *store.Tenant
	Token          *store.Token
	SessionID      string
	RequestID      string
	RawCredentials map[string]string
}

// CredentialSource is the single-row credential lookup the builder needs.
type CredentialSource interface {
	GetCredential(ctx context.Context, tenantID, provider string) (*store.Credential, error)
}

// ContextBuilder assembles invocation contexts for tool calls.
type ContextBuilder struct {
	credentials CredentialSource
	vault       *vault.Vault
	logger      *slog.Logger
}

// NewContextBuilder creates a ContextBuilder over a credential source and vault.
func NewContextBuilder(credentials CredentialSource, v *vault.Vault, logger *slog.Logger) *ContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{
		credentials: credentials,
		vault:       v,
		logger:      logger.With("component", "context_builder"),
	}
}

// Build assembles the invocation context for one tool call. Only the fields
// the tool's provider declared are fetched and decrypted. A missing or
// inactive credential record is not a build error: the tool surfaces a
// structured credential_missing failure at execute time instead, so the tool
// stays listable for configuration discovery.
func (b *ContextBuilder) Build(ctx context.Context, tenant *store.Tenant, token *store.Token, tool *Tool) (*Invocation, error) {
	inv := &Invocation{
		Tenant:         tenant,
		Token:          token,
		RawCredentials: make(map[string]string),
	}

	if tool.Provider == nil {
		return inv, nil
	}
	declared := tool.Provider.RequiredCredentialKeys()
	if len(declared) == 0 {
		return inv, nil
	}

	providerName := tool.Provider.Name()
	record, err := b.credentials.GetCredential(ctx, tenant.ID, providerName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return inv, nil
		}
		return nil, err
	}
	if !record.IsActive {
		return inv, nil
	}

	for _, key := range declared {
		stored := record.Values[key]
		if stored == "" {
			continue
		}
		inv.RawCredentials[providerName+"_"+key] = b.vault.Decrypt(stored)
	}

	b.logger.Debug("built invocation context",
		"tenant_id", tenant.ID,
		"tool", tool.FullName,
		"credential_count", len(inv.RawCredentials),
	)
	return inv, nil
}
