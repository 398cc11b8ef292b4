// ABOUTME: JSON-RPC 2.0 dispatcher over Streamable HTTP for the gateway.
// ABOUTME: Authenticates every request, routes methods, and maps errors to wire codes.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/azar84/mcp-gateway/internal/auth"
	"github.com/azar84/mcp-gateway/internal/metrics"
	"github.com/azar84/mcp-gateway/internal/registry"
	"github.com/azar84/mcp-gateway/internal/store"
)

// protocolVersion is the protocol revision advertised in initialize responses.
const protocolVersion = "2024-11-05"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Wire error codes. The first five are the JSON-RPC 2.0 reserved set;
// the private-range codes distinguish authentication from authorization so an
// agent can tell "get a new token" from "ask for more scopes".
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeAuthFailed        = -32001
	CodeInsufficientScope = -32403
)

// ToolInfo is one entry in a tools/list response.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Content is one content block in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the result for tools/call. Tool output is always wrapped
// as a single text block, even when the tool returned structured data.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ResourceStore is the store subset serving resource methods and audit rows.
type ResourceStore interface {
	SessionSink
	ConfiguredCredentialKeys(ctx context.Context, tenantID string) ([]string, error)
	GetResourceByName(ctx context.Context, tenantID, name string) (*store.Resource, error)
	ListResources(ctx context.Context, tenantID string) ([]*store.Resource, error)
	SaveToolCall(ctx context.Context, call *store.ToolCall) error
}

// Config holds configuration for the dispatcher.
type Config struct {
	Registry      *registry.Registry
	Authenticator *auth.Authenticator
	Builder       *registry.ContextBuilder
	Store         ResourceStore
	Signed        *auth.SignedTokens // optional: JWT connection tokens
	Metrics       *metrics.Metrics   // optional
	Logger        *slog.Logger
	ServerName    string
	ServerVersion string
}

// Server dispatches protocol messages. Authorization is re-derived from the
// bearer token on every request; the session layer only provides continuity
// and audit correlation.
type Server struct {
	registry      *registry.Registry
	authenticator *auth.Authenticator
	builder       *registry.ContextBuilder
	store         ResourceStore
	signed        *auth.SignedTokens
	metrics       *metrics.Metrics
	logger        *slog.Logger
	sessions      *sessionStore
	serverName    string
	serverVersion string
}

// NewServer creates a dispatcher with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Builder == nil {
		return nil, errors.New("context builder is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp")

	name := cfg.ServerName
	if name == "" {
		name = "mcp-gateway"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "dev"
	}

	return &Server{
		registry:      cfg.Registry,
		authenticator: cfg.Authenticator,
		builder:       cfg.Builder,
		store:         cfg.Store,
		signed:        cfg.Signed,
		metrics:       cfg.Metrics,
		logger:        logger,
		sessions:      newSessionStore(cfg.Store, logger),
		serverName:    name,
		serverVersion: version,
	}, nil
}

// RegisterRoutes registers the protocol endpoint on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
}

// RunSessionSweeper closes sessions idle longer than idleTimeout until the
// context is cancelled. Sweeping is housekeeping: it trims the in-memory map
// and marks rows inactive, and never affects authorization.
func (s *Server) RunSessionSweeper(ctx context.Context, idleTimeout time.Duration) {
	interval := idleTimeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if swept := s.sessions.sweep(time.Now().Add(-idleTimeout)); swept > 0 {
				s.logger.Debug("swept idle sessions", "count", swept)
			}
		}
	}
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session. The caller must present the same bearer
// credential that created it.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if sess.ownerSecret != "" && sess.ownerSecret != extractBearer(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.end(sessionID)
	if s.metrics != nil {
		s.metrics.SessionClosed()
	}
	s.logger.Info("session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes one JSON-RPC message.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendError(w, nil, CodeParseError, "failed to read request body", nil)
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendError(w, nil, CodeInvalidRequest, "request body too large", nil)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendError(w, nil, CodeParseError, "invalid JSON", nil)
		return
	}
	if req.JSONRPC != "2.0" {
		s.sendError(w, req.ID, CodeInvalidRequest, "invalid JSON-RPC version", nil)
		return
	}

	// Notifications carry no id, get no response body, and trigger nothing
	// privileged: accept and drop.
	if len(req.ID) == 0 || string(req.ID) == "null" {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("notification for non-notification method", "method", req.Method)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	// Every request authenticates independently. The session id is used only
	// for audit correlation below; an unknown or missing session never blocks
	// a request that carries a valid token.
	identity, err := s.authenticate(r)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AuthFailure()
		}
		s.observe(req.Method, "auth_failed", started)
		s.sendError(w, req.ID, CodeAuthFailed, "authentication failed", nil)
		return
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	s.sessions.touch(sessionID)

	ctx := auth.WithIdentity(r.Context(), identity)
	s.logger.Debug("request",
		"method", req.Method,
		"tenant_id", identity.Tenant.ID,
		"session_id", sessionID,
	)

	switch req.Method {
	case "initialize":
		s.handleInitialize(w, r, req, identity)
	case "ping":
		s.sendResult(w, req.ID, map[string]any{})
	case "tools/list":
		s.handleToolsList(ctx, w, req, identity)
	case "tools/call":
		s.handleToolsCall(ctx, w, req, identity, sessionID)
	case "resources/list":
		s.handleResourcesList(ctx, w, req, identity)
	case "resources/read":
		s.handleResourcesRead(ctx, w, req, identity)
	default:
		s.observe(req.Method, "method_not_found", started)
		s.sendError(w, req.ID, CodeMethodNotFound, "method not found", nil)
		return
	}
	s.observe(req.Method, "ok", started)
}

// authenticate resolves the request's bearer credential to an identity.
// Two paths exist: an opaque token with an optional X-Tenant-ID binding, or a
// signed connection token whose embedded secret is re-validated against the
// store. A signed token is never trusted on its signature alone.
func (s *Server) authenticate(r *http.Request) (*auth.Identity, error) {
	bearer := extractBearer(r)
	if bearer == "" {
		return nil, auth.ErrAuthenticationFailed
	}

	if s.signed != nil && strings.Count(bearer, ".") == 2 {
		tenantID, tokenSecret, err := s.signed.Verify(bearer)
		if err != nil {
			return nil, auth.ErrAuthenticationFailed
		}
		return s.authenticator.Authenticate(r.Context(), tokenSecret, tenantID)
	}

	return s.authenticator.Authenticate(r.Context(), bearer, r.Header.Get("X-Tenant-ID"))
}

// extractBearer pulls the bearer credential from the Authorization header or,
// for clients that cannot set headers, the token query parameter.
func extractBearer(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) observe(method, outcome string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRequest(method, outcome, time.Since(started))
	}
}

// sendResult sends a successful JSON-RPC response echoing the request id.
func (s *Server) sendResult(w http.ResponseWriter, id json.RawMessage, result any) {
	s.write(w, Response{JSONRPC: "2.0", ID: id, Result: result})
}

// sendError sends a JSON-RPC error response echoing the request id.
func (s *Server) sendError(w http.ResponseWriter, id json.RawMessage, code int, message string, data any) {
	s.write(w, Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message, Data: data}})
}

func (s *Server) write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
