// ABOUTME: First-run bootstrap creating the initial tenant, token, and admin token.
// ABOUTME: Refuses to run twice so secrets are only ever minted on an empty store.

package gateway

import (
	"context"
	"fmt"

	"github.com/azar84/mcp-gateway/internal/store"
)

// BootstrapResult carries the secrets minted during first-run setup. They are
// shown once and never retrievable again.
type BootstrapResult struct {
	Tenant      *store.Tenant
	TokenSecret string
	AdminSecret string
}

// Bootstrap creates the initial tenant with a full-scope token and an admin
// token for the management API. It fails if any tenant already exists.
func Bootstrap(ctx context.Context, s store.Store, tenantName string, scopes []string) (*BootstrapResult, error) {
	existing, err := s.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking existing tenants: %w", err)
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("bootstrap already complete: %d tenant(s) exist", len(existing))
	}

	tenant := &store.Tenant{Name: tenantName, Description: "created by bootstrap", IsActive: true}
	if err := s.CreateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("creating tenant: %w", err)
	}

	if len(scopes) == 0 {
		scopes = []string{"basic", "admin", "files", "resources"}
	}
	token := &store.Token{
		Secret:   newTokenSecret(),
		TenantID: tenant.ID,
		Scopes:   scopes,
		IsActive: true,
	}
	if err := s.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("creating token: %w", err)
	}

	admin := &store.AdminToken{
		Secret:    newAdminSecret(),
		Name:      "bootstrap",
		IsActive:  true,
		CreatedBy: "bootstrap",
	}
	if err := s.CreateAdminToken(ctx, admin); err != nil {
		return nil, fmt.Errorf("creating admin token: %w", err)
	}

	return &BootstrapResult{
		Tenant:      tenant,
		TokenSecret: token.Secret,
		AdminSecret: admin.Secret,
	}, nil
}
