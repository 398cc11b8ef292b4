// ABOUTME: Tests for the tool execution boundary: validation, credentials, isolation.
// ABOUTME: Every failure mode must come back as a structured payload, never a panic.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeToolError parses the structured error payload from a Result.
func decodeToolError(t *testing.T, res *Result) *ToolError {
	t.Helper()
	require.True(t, res.IsError)
	var te ToolError
	require.NoError(t, json.Unmarshal([]byte(res.Text), &te))
	return &te
}

func registerOne(t *testing.T, def ToolDef, provider *fakeProvider) *Tool {
	t.Helper()
	r := New(slog.Default())
	if provider == nil {
		provider = &fakeProvider{name: "p"}
	}
	provider.defs = []ToolDef{def}
	require.NoError(t, r.RegisterProvider("d", provider))
	tool, ok := r.Resolve(fmt.Sprintf("d_%s_%s", provider.name, def.Spec.Name))
	require.True(t, ok)
	return tool
}

func TestExecuteSuccess(t *testing.T) {
	def := ToolDef{
		Spec: ToolSpec{
			Name:        "echo",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		},
		Handler: func(_ context.Context, args map[string]any, _ map[string]string, _ *Invocation) (any, error) {
			return map[string]any{"echoed": args["text"]}, nil
		},
	}
	tool := registerOne(t, def, nil)

	res := tool.Execute(context.Background(), json.RawMessage(`{"text":"hi"}`), &Invocation{})
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"echoed":"hi"}`, res.Text)
}

func TestExecuteStringResultPassedThrough(t *testing.T) {
	tool := registerOne(t, ToolDef{
		Spec:    ToolSpec{Name: "s"},
		Handler: okHandler("plain text result"),
	}, nil)

	res := tool.Execute(context.Background(), nil, &Invocation{})
	assert.False(t, res.IsError)
	assert.Equal(t, "plain text result", res.Text)
}

func TestExecuteValidationFailure(t *testing.T) {
	def := ToolDef{
		Spec: ToolSpec{
			Name:        "strict",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"n":{"type":"integer"}},"required":["n"],"additionalProperties":false}`),
		},
		Handler: okHandler("never reached"),
	}
	tool := registerOne(t, def, nil)

	res := tool.Execute(context.Background(), json.RawMessage(`{"wrong":"field"}`), &Invocation{})
	te := decodeToolError(t, res)
	assert.Equal(t, ErrTypeValidation, te.Type)
	// An agent caller recovers by reading suggestions and retrying.
	assert.NotEmpty(t, te.Suggestions)
}

func TestExecuteNonObjectArguments(t *testing.T) {
	tool := registerOne(t, ToolDef{Spec: ToolSpec{Name: "x"}, Handler: okHandler("ok")}, nil)

	res := tool.Execute(context.Background(), json.RawMessage(`[1,2,3]`), &Invocation{})
	te := decodeToolError(t, res)
	assert.Equal(t, ErrTypeValidation, te.Type)
}

func TestExecuteEmptyArgumentsAllowed(t *testing.T) {
	tool := registerOne(t, ToolDef{
		Spec:    ToolSpec{Name: "x", InputSchema: json.RawMessage(`{"type":"object"}`)},
		Handler: okHandler("ok"),
	}, nil)

	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`{}`)} {
		res := tool.Execute(context.Background(), raw, &Invocation{})
		assert.False(t, res.IsError)
	}
}

func TestExecuteCredentialFiltering(t *testing.T) {
	provider := &fakeProvider{name: "stripe", keys: []string{"secret_key"}}
	var seen map[string]string
	def := ToolDef{
		Spec: ToolSpec{Name: "charge"},
		Handler: func(_ context.Context, _ map[string]any, credentials map[string]string, _ *Invocation) (any, error) {
			seen = credentials
			return "ok", nil
		},
	}
	tool := registerOne(t, def, provider)

	inv := &Invocation{RawCredentials: map[string]string{
		"stripe_secret_key": "sk_live_1",
		"twilio_auth_token": "other-provider-secret",
	}}
	res := tool.Execute(context.Background(), nil, inv)
	require.False(t, res.IsError)

	// The tool sees only its own provider's keys, prefix stripped.
	assert.Equal(t, map[string]string{"secret_key": "sk_live_1"}, seen)
	assert.NotContains(t, seen, "twilio_auth_token")
	assert.NotContains(t, seen, "auth_token")
}

func TestExecuteCredentialMissing(t *testing.T) {
	provider := &fakeProvider{name: "stripe", keys: []string{"secret_key", "publishable_key"}}
	tool := registerOne(t, ToolDef{Spec: ToolSpec{Name: "charge"}, Handler: okHandler("nope")}, provider)

	// Only one of two keys available: structured credential_missing, not a crash.
	inv := &Invocation{RawCredentials: map[string]string{"stripe_secret_key": "sk"}}
	res := tool.Execute(context.Background(), nil, inv)
	te := decodeToolError(t, res)
	assert.Equal(t, ErrTypeCredentialMissing, te.Type)
	assert.Equal(t, "stripe", te.Details["provider"])

	// Nil invocation credentials behave the same.
	res = tool.Execute(context.Background(), nil, &Invocation{})
	te = decodeToolError(t, res)
	assert.Equal(t, ErrTypeCredentialMissing, te.Type)
}

func TestExecutePanicIsolated(t *testing.T) {
	def := ToolDef{
		Spec: ToolSpec{Name: "boom"},
		Handler: func(_ context.Context, _ map[string]any, _ map[string]string, _ *Invocation) (any, error) {
			panic("tool exploded")
		},
	}
	tool := registerOne(t, def, nil)

	res := tool.Execute(context.Background(), nil, &Invocation{})
	te := decodeToolError(t, res)
	assert.Equal(t, ErrTypeInternal, te.Type)
	assert.Contains(t, te.Message, "tool exploded")
}

func TestExecuteUpstreamError(t *testing.T) {
	def := ToolDef{
		Spec: ToolSpec{Name: "remote"},
		Handler: func(_ context.Context, _ map[string]any, _ map[string]string, _ *Invocation) (any, error) {
			return nil, &UpstreamError{Provider: "stripe", StatusCode: 502, RequestID: "req_123", Message: "bad gateway"}
		},
	}
	tool := registerOne(t, def, nil)

	res := tool.Execute(context.Background(), nil, &Invocation{})
	te := decodeToolError(t, res)
	assert.Equal(t, ErrTypeUpstream, te.Type)
	assert.Equal(t, "req_123", te.Details["request_id"])
	assert.Contains(t, te.Message, "502")
}

func TestExecuteHandlerError(t *testing.T) {
	def := ToolDef{
		Spec: ToolSpec{Name: "fail"},
		Handler: func(_ context.Context, _ map[string]any, _ map[string]string, _ *Invocation) (any, error) {
			return nil, errors.New("something went wrong")
		},
	}
	tool := registerOne(t, def, nil)

	res := tool.Execute(context.Background(), nil, &Invocation{})
	te := decodeToolError(t, res)
	assert.Equal(t, ErrTypeExecution, te.Type)
	assert.Equal(t, "something went wrong", te.Message)
}
