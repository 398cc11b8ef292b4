// ABOUTME: Built-in credential-free provider with utility tools.
// ABOUTME: Serves status, time, calculator, and timezone lookups.

// Package general implements the built-in provider available to every tenant.
// None of its tools need third-party credentials, so visibility is governed by
// scopes alone.
package general

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/azar84/mcp-gateway/internal/registry"
)

// Provider is the built-in general-purpose provider.
type Provider struct {
	version   string
	startedAt time.Time
}

// New creates the general provider reporting the given server version.
func New(version string) *Provider {
	return &Provider{version: version, startedAt: time.Now()}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "general" }

// RequiredCredentialKeys returns nil: this provider needs no tenant credentials.
func (p *Provider) RequiredCredentialKeys() []string { return nil }

// ValidateCredentials always succeeds for a credential-free provider.
func (p *Provider) ValidateCredentials(_ context.Context, _ map[string]string) error {
	return nil
}

// Tools declares the provider's tool set.
func (p *Provider) Tools() []registry.ToolDef {
	return []registry.ToolDef{
		{
			Spec: registry.ToolSpec{
				Name:        "get_server_status",
				Description: "Report gateway health, version, and uptime.",
				InputSchema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
			},
			Handler: p.serverStatus,
		},
		{
			Spec: registry.ToolSpec{
				Name:        "current_time",
				Description: "Get the current time, optionally in a specific IANA timezone.",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"timezone": {"type": "string", "description": "IANA timezone name, e.g. America/Toronto. Defaults to UTC."}
					},
					"additionalProperties": false
				}`),
				RequiredScopes: []string{"basic"},
			},
			Handler: p.currentTime,
		},
		{
			Spec: registry.ToolSpec{
				Name:        "calculator",
				Description: "Evaluate an arithmetic expression with +, -, *, /, and parentheses.",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"expression": {"type": "string", "description": "Expression to evaluate, e.g. (2+3)*4"}
					},
					"required": ["expression"],
					"additionalProperties": false
				}`),
				RequiredScopes: []string{"basic"},
			},
			Handler: p.calculate,
		},
		{
			Spec: registry.ToolSpec{
				Name:        "get_timezone_by_location",
				Description: "Look up the IANA timezone and current local time for a known city.",
				InputSchema: json.RawMessage(`{
					"type": "object",
					"properties": {
						"location": {"type": "string", "description": "City name, e.g. Toronto"}
					},
					"required": ["location"],
					"additionalProperties": false
				}`),
				RequiredScopes: []string{"basic"},
			},
			Handler: p.timezoneByLocation,
		},
		{
			Spec: registry.ToolSpec{
				Name:        "system_info",
				Description: "Report process-level runtime details.",
				InputSchema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
				RequiredScopes: []string{"admin"},
			},
			Handler: p.systemInfo,
		},
	}
}

func (p *Provider) serverStatus(_ context.Context, _ map[string]any, _ map[string]string, _ *registry.Invocation) (any, error) {
	return map[string]any{
		"status":         "ok",
		"version":        p.version,
		"uptime_seconds": int64(time.Since(p.startedAt).Seconds()),
		"time":           time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (p *Provider) currentTime(_ context.Context, args map[string]any, _ map[string]string, _ *registry.Invocation) (any, error) {
	loc := time.UTC
	if name, ok := args["timezone"].(string); ok && name != "" {
		parsed, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", name)
		}
		loc = parsed
	}
	now := time.Now().In(loc)
	return map[string]any{
		"timezone": loc.String(),
		"time":     now.Format(time.RFC3339),
		"unix":     now.Unix(),
	}, nil
}

func (p *Provider) calculate(_ context.Context, args map[string]any, _ map[string]string, _ *registry.Invocation) (any, error) {
	expression, _ := args["expression"].(string)
	value, err := evaluate(expression)
	if err != nil {
		return nil, err
	}
	return map[string]any{"expression": expression, "result": value}, nil
}

func (p *Provider) timezoneByLocation(_ context.Context, args map[string]any, _ map[string]string, _ *registry.Invocation) (any, error) {
	location, _ := args["location"].(string)
	zone, ok := lookupTimezone(location)
	if !ok {
		return nil, fmt.Errorf("unknown location %q", location)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", zone, err)
	}
	return map[string]any{
		"location":   location,
		"timezone":   zone,
		"local_time": time.Now().In(loc).Format(time.RFC3339),
	}, nil
}

func (p *Provider) systemInfo(_ context.Context, _ map[string]any, _ map[string]string, _ *registry.Invocation) (any, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return map[string]any{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"num_cpu":        runtime.NumCPU(),
		"num_goroutines": runtime.NumGoroutine(),
		"heap_bytes":     mem.HeapAlloc,
	}, nil
}
