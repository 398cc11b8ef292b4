// ABOUTME: Administrative REST API for tenant, token, credential, and resource CRUD.
// ABOUTME: Guarded by admin tokens; credential values are encrypted before storage.

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/azar84/mcp-gateway/internal/auth"
	"github.com/azar84/mcp-gateway/internal/registry"
	"github.com/azar84/mcp-gateway/internal/store"
)

// adminAPI serves the management surface under /api/v1. It consumes the same
// store and vault as the dispatcher but authenticates against the disjoint
// admin token namespace.
type adminAPI struct {
	gateway       *Gateway
	authenticator *auth.AdminAuthenticator
	providers     map[string]registry.Provider
	logger        *slog.Logger
}

func newAdminAPI(g *Gateway, providers map[string]registry.Provider) *adminAPI {
	return &adminAPI{
		gateway:       g,
		authenticator: auth.NewAdminAuthenticator(g.store, g.logger),
		providers:     providers,
		logger:        g.logger.With("component", "admin_api"),
	}
}

func (a *adminAPI) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/tenants", a.guard(a.createTenant))
	mux.HandleFunc("GET /api/v1/tenants", a.guard(a.listTenants))
	mux.HandleFunc("GET /api/v1/tenants/{id}", a.guard(a.getTenant))
	mux.HandleFunc("DELETE /api/v1/tenants/{id}", a.guard(a.deleteTenant))

	mux.HandleFunc("POST /api/v1/tenants/{id}/tokens", a.guard(a.createToken))
	mux.HandleFunc("GET /api/v1/tenants/{id}/tokens", a.guard(a.listTokens))
	mux.HandleFunc("DELETE /api/v1/tokens/{id}", a.guard(a.deactivateToken))
	mux.HandleFunc("POST /api/v1/tenants/{id}/tokens/{token}/sign", a.guard(a.signToken))

	mux.HandleFunc("PUT /api/v1/tenants/{id}/credentials/{provider}", a.guard(a.putCredential))
	mux.HandleFunc("GET /api/v1/tenants/{id}/credentials", a.guard(a.listCredentials))
	mux.HandleFunc("DELETE /api/v1/tenants/{id}/credentials/{provider}", a.guard(a.deleteCredential))

	mux.HandleFunc("POST /api/v1/tenants/{id}/resources", a.guard(a.createResource))
	mux.HandleFunc("GET /api/v1/tenants/{id}/resources", a.guard(a.listResources))
	mux.HandleFunc("GET /api/v1/tenants/{id}/tool-calls", a.guard(a.listToolCalls))
}

// guard wraps a handler with admin token authentication.
func (a *adminAPI) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := a.authenticator.Authenticate(r.Context(), secret); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication failed")
			return
		}
		next(w, r)
	}
}

func (a *adminAPI) createTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	tenant := &store.Tenant{Name: req.Name, Description: req.Description, IsActive: true}
	if err := a.gateway.store.CreateTenant(r.Context(), tenant); err != nil {
		a.fail(w, "creating tenant", err)
		return
	}
	a.logger.Info("tenant created", "tenant_id", tenant.ID, "name", tenant.Name)
	writeJSON(w, http.StatusCreated, tenant)
}

func (a *adminAPI) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := a.gateway.store.ListTenants(r.Context())
	if err != nil {
		a.fail(w, "listing tenants", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (a *adminAPI) getTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := a.gateway.store.GetTenant(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenant not found")
			return
		}
		a.fail(w, "fetching tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (a *adminAPI) deleteTenant(w http.ResponseWriter, r *http.Request) {
	err := a.gateway.store.DeleteTenant(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "tenant not found")
	case errors.Is(err, store.ErrTenantInUse):
		writeError(w, http.StatusConflict, "tenant has active tokens or sessions")
	case err != nil:
		a.fail(w, "deleting tenant", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *adminAPI) createToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scopes    []string   `json:"scopes"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	tenantID := r.PathValue("id")
	if _, err := a.gateway.store.GetTenant(r.Context(), tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenant not found")
			return
		}
		a.fail(w, "fetching tenant", err)
		return
	}

	token := &store.Token{
		Secret:    newTokenSecret(),
		TenantID:  tenantID,
		Scopes:    req.Scopes,
		IsActive:  true,
		ExpiresAt: req.ExpiresAt,
	}
	if err := a.gateway.store.CreateToken(r.Context(), token); err != nil {
		a.fail(w, "creating token", err)
		return
	}
	a.logger.Info("token created", "token_id", token.ID, "tenant_id", tenantID, "scopes", req.Scopes)
	// The secret is returned exactly once, at creation.
	writeJSON(w, http.StatusCreated, token)
}

func (a *adminAPI) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := a.gateway.store.ListTokens(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "listing tokens", err)
		return
	}
	// Secrets are write-only after creation.
	type tokenView struct {
		ID        string     `json:"id"`
		Scopes    []string   `json:"scopes"`
		IsActive  bool       `json:"is_active"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
		LastUsed  *time.Time `json:"last_used,omitempty"`
	}
	views := make([]tokenView, len(tokens))
	for i, token := range tokens {
		views[i] = tokenView{
			ID:        token.ID,
			Scopes:    token.Scopes,
			IsActive:  token.IsActive,
			ExpiresAt: token.ExpiresAt,
			LastUsed:  token.LastUsed,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": views})
}

func (a *adminAPI) deactivateToken(w http.ResponseWriter, r *http.Request) {
	if err := a.gateway.store.DeactivateToken(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "token not found")
			return
		}
		a.fail(w, "deactivating token", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// signToken mints a signed connection token embedding the tenant id and the
// stored secret, for clients behind header-stripping transports.
func (a *adminAPI) signToken(w http.ResponseWriter, r *http.Request) {
	if a.gateway.signed == nil {
		writeError(w, http.StatusConflict, "signed tokens are not configured")
		return
	}

	tokens, err := a.gateway.store.ListTokens(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "listing tokens", err)
		return
	}
	tokenID := r.PathValue("token")
	var target *store.Token
	for _, token := range tokens {
		if token.ID == tokenID {
			target = token
			break
		}
	}
	if target == nil || !target.IsActive {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}

	ttl := a.gateway.cfg.Auth.SignedTokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	signed, err := a.gateway.signed.Issue(target.TenantID, target.Secret, ttl)
	if err != nil {
		a.fail(w, "signing token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"expires_in": ttl.String(),
	})
}

func (a *adminAPI) putCredential(w http.ResponseWriter, r *http.Request) {
	providerName := r.PathValue("provider")
	provider, ok := a.providers[providerName]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	var req struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values are required")
		return
	}

	// Validate plaintext before anything is persisted.
	if err := provider.ValidateCredentials(r.Context(), req.Values); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	encrypted := make(map[string]string, len(req.Values))
	for key, value := range req.Values {
		sealed, err := a.gateway.vault.Encrypt(value)
		if err != nil {
			a.fail(w, "encrypting credential", err)
			return
		}
		encrypted[key] = sealed
	}

	cred := &store.Credential{
		TenantID: r.PathValue("id"),
		Provider: providerName,
		Values:   encrypted,
		IsActive: true,
	}
	if err := a.gateway.store.UpsertCredential(r.Context(), cred); err != nil {
		a.fail(w, "saving credential", err)
		return
	}
	a.logger.Info("credential saved", "tenant_id", cred.TenantID, "provider", providerName)
	writeJSON(w, http.StatusOK, map[string]any{"provider": providerName, "fields": len(encrypted)})
}

func (a *adminAPI) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := a.gateway.store.ListCredentials(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "listing credentials", err)
		return
	}
	// Values never leave the store through this surface, encrypted or not.
	type credView struct {
		Provider string   `json:"provider"`
		Fields   []string `json:"fields"`
		IsActive bool     `json:"is_active"`
	}
	views := make([]credView, len(creds))
	for i, cred := range creds {
		fields := make([]string, 0, len(cred.Values))
		for key := range cred.Values {
			fields = append(fields, key)
		}
		views[i] = credView{Provider: cred.Provider, Fields: fields, IsActive: cred.IsActive}
	}
	writeJSON(w, http.StatusOK, map[string]any{"credentials": views})
}

func (a *adminAPI) deleteCredential(w http.ResponseWriter, r *http.Request) {
	err := a.gateway.store.DeleteCredential(r.Context(), r.PathValue("id"), r.PathValue("provider"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "credential not found")
			return
		}
		a.fail(w, "deleting credential", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *adminAPI) createResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Type        string   `json:"type"`
		URI         string   `json:"uri"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "name and type are required")
		return
	}

	resource := &store.Resource{
		TenantID:    r.PathValue("id"),
		Name:        req.Name,
		Type:        req.Type,
		URI:         req.URI,
		Description: req.Description,
		Tags:        req.Tags,
		IsActive:    true,
	}
	if err := a.gateway.store.CreateResource(r.Context(), resource); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "resource name already exists")
			return
		}
		a.fail(w, "creating resource", err)
		return
	}
	writeJSON(w, http.StatusCreated, resource)
}

func (a *adminAPI) listResources(w http.ResponseWriter, r *http.Request) {
	resources, err := a.gateway.store.ListResources(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, "listing resources", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (a *adminAPI) listToolCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := a.gateway.store.ListToolCalls(r.Context(), r.PathValue("id"), 100)
	if err != nil {
		a.fail(w, "listing tool calls", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool_calls": calls})
}

func (a *adminAPI) fail(w http.ResponseWriter, action string, err error) {
	a.logger.Error(action+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
