// ABOUTME: Credentialed provider for calling tenant-configured HTTP endpoints.
// ABOUTME: Uses vault-held api_key/base_url; upstream failures carry request ids.

// Package webhook implements a provider that relays requests to an HTTP
// endpoint each tenant configures as a credential. It is the reference
// consumer of the encrypted credential path: nothing works until the tenant
// stores base_url and api_key, and the decrypted values never appear in
// results or errors.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/azar84/mcp-gateway/internal/registry"
)

// maxResponseBytes caps how much of an upstream response is returned (256KB).
const maxResponseBytes = 256 << 10

// defaultTimeout bounds each outbound call so a hung endpoint cannot pin a
// dispatcher worker.
const defaultTimeout = 30 * time.Second

// Provider relays tool calls to tenant-configured webhook endpoints.
type Provider struct {
	client *http.Client
}

// New creates the webhook provider. A nil client gets a bounded default.
func New(client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Provider{client: client}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "webhook" }

// RequiredCredentialKeys declares the credential fields tenants must configure.
func (p *Provider) RequiredCredentialKeys() []string {
	return []string{"base_url", "api_key"}
}

// ValidateCredentials checks the configured values are usable before they are
// saved: the base URL must parse as absolute HTTP(S) and the key be non-empty.
func (p *Provider) ValidateCredentials(_ context.Context, credentials map[string]string) error {
	base := credentials["base_url"]
	if base == "" {
		return errors.New("base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("base_url %q is not an absolute http(s) URL", base)
	}
	if credentials["api_key"] == "" {
		return errors.New("api_key is required")
	}
	return nil
}

// Tools declares the provider's tool set.
func (p *Provider) Tools() []registry.ToolDef {
	return []registry.ToolDef{
		{
			Spec: registry.ToolSpec{
				Name:        "request",
				Description: "Send an HTTP request to the tenant's configured webhook endpoint.",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"path": {"type": "string", "description": "Path appended to the configured base URL, e.g. /orders"},
						"method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE"], "description": "HTTP method, default GET"},
						"body": {"type": "object", "description": "JSON body for POST/PUT requests"}
					},
					"required": ["path"],
					"additionalProperties": false
				}`),
				RequiredScopes: []string{"basic"},
			},
			Handler: p.request,
		},
	}
}

func (p *Provider) request(ctx context.Context, args map[string]any, credentials map[string]string, _ *registry.Invocation) (any, error) {
	path, _ := args["path"].(string)
	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	target, err := joinURL(credentials["base_url"], path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if raw, ok := args["body"]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credentials["api_key"])
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// The error string can embed the URL but never the key.
		return nil, &registry.UpstreamError{
			Provider: p.Name(),
			Message:  "endpoint unreachable: " + err.Error(),
		}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &registry.UpstreamError{
			Provider:  p.Name(),
			RequestID: resp.Header.Get("X-Request-Id"),
			Message:   "reading response: " + err.Error(),
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &registry.UpstreamError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("X-Request-Id"),
			Message:    truncate(string(payload), 512),
		}
	}

	return map[string]any{
		"status": resp.StatusCode,
		"body":   string(payload),
	}, nil
}

// joinURL appends a caller-supplied path to the configured base URL. The path
// must stay a path: absolute URLs are rejected so a caller cannot redirect the
// credential to an arbitrary host.
func joinURL(base, path string) (string, error) {
	if strings.Contains(path, "://") {
		return "", errors.New("path must be relative to the configured endpoint")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base_url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", errors.New("path must be relative to the configured endpoint")
	}
	return parsed.ResolveReference(ref).String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
