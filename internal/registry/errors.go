// ABOUTME: Structured, machine-parseable error payloads returned from tool execution.
// ABOUTME: Callers are autonomous agents that recover by reading suggestions and retrying.

package registry

import (
	"encoding/json"
	"fmt"
)

// Tool error types carried in the structured error payload.
const (
	ErrTypeValidation        = "validation"
	ErrTypeCredentialMissing = "credential_missing"
	ErrTypeUpstream          = "upstream"
	ErrTypeExecution         = "execution"
	ErrTypeInternal          = "internal"
)

// ToolError is the structured error shape every tool failure is converted to.
// It is serialized as the tool's text result, never thrown across the
// dispatcher boundary.
type ToolError struct {
	IsError     bool           `json:"error"`
	Type        string         `json:"type"`
	Message     string         `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// JSON serializes the error payload. Falls back to a minimal literal if the
// details map is unmarshalable.
func (e *ToolError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":true,"type":%q,"message":%q}`, e.Type, e.Message)
	}
	return string(data)
}

// UpstreamError reports a failed call to a third-party provider API.
// RequestID is the provider's correlation id when available; the decrypted
// secret never appears in the message.
type UpstreamError struct {
	Provider   string
	StatusCode int
	RequestID  string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s upstream error (status %d, request %s): %s", e.Provider, e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}
