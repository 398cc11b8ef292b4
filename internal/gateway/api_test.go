// ABOUTME: Tests for the admin REST API over httptest.
// ABOUTME: Covers CRUD flows, credential encryption, and admin auth gating.

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azar84/mcp-gateway/internal/auth"
	"github.com/azar84/mcp-gateway/internal/config"
	"github.com/azar84/mcp-gateway/internal/store"
	"github.com/azar84/mcp-gateway/internal/vault"
)

const testAdminSecret = "mcpadm_test"

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0", Name: "mcp-gateway", Version: "test"},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "gateway.db")},
		Auth:     config.AuthConfig{JWTSecret: "test-signing-secret"},
	}
	g, err := New(cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.store.Close() })

	require.NoError(t, g.store.CreateAdminToken(context.Background(), &store.AdminToken{
		Secret: testAdminSecret, Name: "test", IsActive: true,
	}))
	return g
}

func (g *Gateway) api(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAdminSecret)
	}
	w := httptest.NewRecorder()
	g.mux.ServeHTTP(w, req)
	return w
}

func TestAdminAuthRequired(t *testing.T) {
	g := newTestGateway(t)

	w := g.api(t, http.MethodGet, "/api/v1/tenants", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A tenant bearer token is not an admin token.
	require.NoError(t, g.store.CreateTenant(context.Background(), &store.Tenant{Name: "x", IsActive: true}))
	w = g.api(t, http.MethodGet, "/api/v1/tenants", "", true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTenantLifecycle(t *testing.T) {
	g := newTestGateway(t)

	w := g.api(t, http.MethodPost, "/api/v1/tenants", `{"name":"Acme","description":"test"}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var tenant store.Tenant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tenant))
	assert.NotEmpty(t, tenant.ID)

	w = g.api(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID, "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = g.api(t, http.MethodDelete, "/api/v1/tenants/"+tenant.ID, "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = g.api(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID, "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenLifecycle(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	tenant := &store.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, g.store.CreateTenant(ctx, tenant))

	w := g.api(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/tokens", `{"scopes":["basic"]}`, true)
	require.Equal(t, http.StatusCreated, w.Code)

	var token store.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	assert.True(t, strings.HasPrefix(token.Secret, "mcp_"))

	// The minted secret authenticates on the protocol surface.
	authenticator := auth.NewAuthenticator(g.store, slog.Default())
	id, err := authenticator.Authenticate(ctx, token.Secret, "")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, id.Tenant.ID)

	// Listing never exposes secrets.
	w = g.api(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID+"/tokens", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), token.Secret)

	// Deleting a tenant with an active token is refused.
	w = g.api(t, http.MethodDelete, "/api/v1/tenants/"+tenant.ID, "", true)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Deactivation kills the credential.
	w = g.api(t, http.MethodDelete, "/api/v1/tokens/"+token.ID, "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err = authenticator.Authenticate(ctx, token.Secret, "")
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
}

func TestSignedTokenMinting(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	tenant := &store.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, g.store.CreateTenant(ctx, tenant))
	token := &store.Token{Secret: "mcp_known", TenantID: tenant.ID, Scopes: []string{"basic"}, IsActive: true}
	require.NoError(t, g.store.CreateToken(ctx, token))

	w := g.api(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/tokens/"+token.ID+"/sign", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	tenantID, secret, err := g.signed.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, tenantID)
	assert.Equal(t, "mcp_known", secret)
}

func TestCredentialRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	tenant := &store.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, g.store.CreateTenant(ctx, tenant))

	body := `{"values":{"base_url":"https://hooks.example.com","api_key":"sk-secret"}}`
	w := g.api(t, http.MethodPut, "/api/v1/tenants/"+tenant.ID+"/credentials/webhook", body, true)
	require.Equal(t, http.StatusOK, w.Code)

	// Stored values are encrypted, not plaintext.
	cred, err := g.store.GetCredential(ctx, tenant.ID, "webhook")
	require.NoError(t, err)
	assert.True(t, vault.IsEncrypted(cred.Values["api_key"]))
	assert.Equal(t, "sk-secret", g.vault.Decrypt(cred.Values["api_key"]))

	// Listing exposes field names only.
	w = g.api(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID+"/credentials", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api_key")
	assert.NotContains(t, w.Body.String(), "sk-secret")

	// Invalid values are rejected by the provider before storage.
	bad := `{"values":{"base_url":"ftp://nope","api_key":"sk"}}`
	w = g.api(t, http.MethodPut, "/api/v1/tenants/"+tenant.ID+"/credentials/webhook", bad, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Unknown provider.
	w = g.api(t, http.MethodPut, "/api/v1/tenants/"+tenant.ID+"/credentials/nope", body, true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = g.api(t, http.MethodDelete, "/api/v1/tenants/"+tenant.ID+"/credentials/webhook", "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestResourceEndpoints(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	tenant := &store.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, g.store.CreateTenant(ctx, tenant))

	body := `{"name":"handbook","type":"text","uri":"welcome","tags":["docs"]}`
	w := g.api(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/resources", body, true)
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate names are rejected.
	w = g.api(t, http.MethodPost, "/api/v1/tenants/"+tenant.ID+"/resources", body, true)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = g.api(t, http.MethodGet, "/api/v1/tenants/"+tenant.ID+"/resources", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "handbook")
}

func TestHealthEndpoint(t *testing.T) {
	g := newTestGateway(t)
	w := g.api(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestBootstrap(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	result, err := Bootstrap(ctx, g.store, "First Tenant", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.TokenSecret, "mcp_"))
	assert.True(t, strings.HasPrefix(result.AdminSecret, "mcpadm_"))

	// The minted token carries the default scope set.
	authenticator := auth.NewAuthenticator(g.store, slog.Default())
	id, err := authenticator.Authenticate(ctx, result.TokenSecret, "")
	require.NoError(t, err)
	assert.True(t, id.HasScope("admin"))

	// Second run refuses.
	_, err = Bootstrap(ctx, g.store, "Another", nil)
	assert.Error(t, err)
}
