// ABOUTME: Method handlers for initialize, tools, and resources.
// ABOUTME: Scope checks happen here; tool-level failures stay inside results.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/azar84/mcp-gateway/internal/auth"
	"github.com/azar84/mcp-gateway/internal/registry"
	"github.com/azar84/mcp-gateway/internal/store"
)

// scopeResources gates the resources methods.
const scopeResources = "resources"

// InitializeParams are the params for initialize.
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ClientInfo      json.RawMessage `json:"clientInfo"`
}

// handleInitialize creates a session and returns server identity. Re-sending
// initialize on an existing session just echoes the result: the method is
// idempotent and the old session keeps its id.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req Request, identity *auth.Identity) {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendError(w, req.ID, CodeInvalidParams, "invalid params", nil)
			return
		}
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	if _, ok := s.sessions.get(sessionID); !ok {
		sess := s.sessions.create(
			identity.Tenant.ID,
			identity.Token.ID,
			protocolVersion,
			string(params.ClientInfo),
			extractBearer(r),
		)
		sessionID = sess.id
		if s.metrics != nil {
			s.metrics.SessionOpened()
		}
		s.logger.Info("session created",
			"session_id", sessionID,
			"tenant_id", identity.Tenant.ID,
			"client_version", params.ProtocolVersion,
		)
	}
	w.Header().Set("Mcp-Session-Id", sessionID)

	s.sendResult(w, req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.serverName,
			"version": s.serverVersion,
		},
	})
}

// handleToolsList returns the tools visible to the caller: scope subset plus
// configured provider credentials.
func (s *Server) handleToolsList(ctx context.Context, w http.ResponseWriter, req Request, identity *auth.Identity) {
	keys, err := s.store.ConfiguredCredentialKeys(ctx, identity.Tenant.ID)
	if err != nil {
		s.logger.Error("credential key lookup failed", "tenant_id", identity.Tenant.ID, "error", err)
		s.sendError(w, req.ID, CodeInternalError, "internal error", nil)
		return
	}

	available := s.registry.Available(identity.Scopes(), keys)
	tools := make([]ToolInfo, len(available))
	for i, d := range available {
		schema := d.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		tools[i] = ToolInfo{Name: d.Name, Description: d.Description, InputSchema: schema}
	}

	s.logger.Debug("tools/list", "tenant_id", identity.Tenant.ID, "count", len(tools))
	s.sendResult(w, req.ID, map[string]any{"tools": tools})
}

// handleToolsCall resolves, authorizes, and executes one tool call.
func (s *Server) handleToolsCall(ctx context.Context, w http.ResponseWriter, req Request, identity *auth.Identity, sessionID string) {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendError(w, req.ID, CodeInvalidParams, "invalid params", nil)
			return
		}
	}
	if params.Name == "" {
		s.sendError(w, req.ID, CodeInvalidParams, "tool name is required", nil)
		return
	}

	tool, ok := s.registry.Resolve(params.Name)
	if !ok {
		s.sendError(w, req.ID, CodeMethodNotFound, "tool not found: "+params.Name, nil)
		return
	}

	// Authorization is distinct from not-found: the tool's existence is not a
	// secret, so the missing scopes are named.
	if missing := auth.MissingScopes(tool.Spec.RequiredScopes, identity.Scopes()); len(missing) > 0 {
		s.sendError(w, req.ID, CodeInsufficientScope, "insufficient scope",
			map[string]any{"missing_scopes": missing})
		return
	}

	inv, err := s.builder.Build(ctx, identity.Tenant, identity.Token, tool)
	if err != nil {
		s.logger.Error("building invocation context failed",
			"tool", params.Name,
			"tenant_id", identity.Tenant.ID,
			"error", err,
		)
		s.sendError(w, req.ID, CodeInternalError, "internal error", nil)
		return
	}
	inv.SessionID = sessionID
	inv.RequestID = uuid.New().String()

	started := time.Now()
	result := tool.Execute(ctx, params.Arguments, inv)
	elapsed := time.Since(started)

	outcome := "ok"
	if result.IsError {
		outcome = "error"
	}
	if s.metrics != nil {
		s.metrics.ObserveToolCall(tool.FullName, outcome, elapsed)
	}
	s.logger.Debug("tools/call",
		"tool", tool.FullName,
		"tenant_id", identity.Tenant.ID,
		"request_id", inv.RequestID,
		"is_error", result.IsError,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.audit(identity.Tenant.ID, sessionID, tool.FullName, params.Arguments, result, elapsed)

	s.sendResult(w, req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: result.Text}},
		IsError: result.IsError,
	})
}

// audit writes a tool-call row fire-and-forget. A lost row costs history,
// never the response.
func (s *Server) audit(tenantID, sessionID, toolName string, args json.RawMessage, result *registry.Result, elapsed time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		call := &store.ToolCall{
			ID:         uuid.New().String(),
			SessionID:  sessionID,
			TenantID:   tenantID,
			ToolName:   toolName,
			Arguments:  string(args),
			DurationMS: elapsed.Milliseconds(),
			CreatedAt:  time.Now(),
		}
		if result.IsError {
			call.Error = result.Text
		} else {
			call.Result = result.Text
		}
		if err := s.store.SaveToolCall(ctx, call); err != nil {
			s.logger.Debug("audit write failed", "tool", toolName, "error", err)
		}
	}()
}

// ReadResourceParams are the params for resources/read.
type ReadResourceParams struct {
	Name string `json:"name"`
}

// resourceInfo is one entry in a resources/list response.
type resourceInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	URI         string   `json:"uri,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// handleResourcesList returns the tenant's named resources.
func (s *Server) handleResourcesList(ctx context.Context, w http.ResponseWriter, req Request, identity *auth.Identity) {
	if !identity.HasScope(scopeResources) {
		s.sendError(w, req.ID, CodeInsufficientScope, "insufficient scope",
			map[string]any{"missing_scopes": []string{scopeResources}})
		return
	}

	resources, err := s.store.ListResources(ctx, identity.Tenant.ID)
	if err != nil {
		s.logger.Error("resource list failed", "tenant_id", identity.Tenant.ID, "error", err)
		s.sendError(w, req.ID, CodeInternalError, "internal error", nil)
		return
	}

	infos := make([]resourceInfo, 0, len(resources))
	for _, res := range resources {
		infos = append(infos, resourceInfo{
			Name:        res.Name,
			Type:        res.Type,
			URI:         res.URI,
			Description: res.Description,
			Tags:        res.Tags,
		})
	}
	s.sendResult(w, req.ID, map[string]any{"resources": infos})
}

// handleResourcesRead returns one resource. Text resources return their
// content inline; every other type returns the URI for the client to fetch.
func (s *Server) handleResourcesRead(ctx context.Context, w http.ResponseWriter, req Request, identity *auth.Identity) {
	if !identity.HasScope(scopeResources) {
		s.sendError(w, req.ID, CodeInsufficientScope, "insufficient scope",
			map[string]any{"missing_scopes": []string{scopeResources}})
		return
	}

	var params ReadResourceParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.sendError(w, req.ID, CodeInvalidParams, "invalid params", nil)
			return
		}
	}
	if params.Name == "" {
		s.sendError(w, req.ID, CodeInvalidParams, "resource name is required", nil)
		return
	}

	res, err := s.store.GetResourceByName(ctx, identity.Tenant.ID, params.Name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendError(w, req.ID, CodeMethodNotFound, "resource not found: "+params.Name, nil)
			return
		}
		s.logger.Error("resource read failed", "tenant_id", identity.Tenant.ID, "error", err)
		s.sendError(w, req.ID, CodeInternalError, "internal error", nil)
		return
	}

	content := map[string]any{"name": res.Name, "type": res.Type}
	if res.Type == "text" {
		// Text resources store their content in the URI column.
		content["text"] = res.URI
	} else {
		content["uri"] = res.URI
	}
	s.sendResult(w, req.ID, map[string]any{"contents": []any{content}})
}
