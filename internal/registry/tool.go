// ABOUTME: Tool execution boundary: schema validation, credential filtering, failure isolation.
// ABOUTME: Every failure inside a tool body becomes a structured error, never a crash.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Tool is a registered capability bound to its owning provider.
// The fully-qualified name is deterministic: {domain}_{provider}_{tool}.
// Legacy tools registered outside the provider system have Provider == nil
// and use their registered name verbatim.
type Tool struct {
	FullName string
	Domain   string
	Provider Provider
	Spec     ToolSpec

	handler Handler
	schema  *gojsonschema.Schema
}

// Result is the outcome of a tool execution: a single text payload plus an
// error flag. Structured return values are serialized once more as text for
// transport compatibility.
type Result struct {
	Text    string
	IsError bool
}

// Execute runs the tool against validated arguments and filtered credentials.
// It never panics and never returns a Go error: all failure modes are folded
// into a structured-error Result so one bad tool cannot take down the
// dispatcher or leak into the session.
func (t *Tool) Execute(ctx context.Context, rawArgs json.RawMessage, inv *Invocation) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = errResult(&ToolError{
				IsError: true,
				Type:    ErrTypeInternal,
				Message: fmt.Sprintf("tool %s panicked: %v", t.FullName, r),
				Suggestions: []string{
					"this is a server-side fault, not an argument problem",
					"retry once; report the tool name if the failure persists",
				},
			})
		}
	}()

	args, toolErr := t.parseArgs(rawArgs)
	if toolErr != nil {
		return errResult(toolErr)
	}

	credentials, toolErr := t.filterCredentials(inv)
	if toolErr != nil {
		return errResult(toolErr)
	}

	value, err := t.handler(ctx, args, credentials, inv)
	if err != nil {
		return errResult(t.convertError(err))
	}

	text, err := renderResult(value)
	if err != nil {
		return errResult(&ToolError{
			IsError: true,
			Type:    ErrTypeInternal,
			Message: fmt.Sprintf("tool %s returned an unserializable value: %v", t.FullName, err),
		})
	}
	return &Result{Text: text}
}

// parseArgs decodes and schema-validates the raw arguments.
func (t *Tool) parseArgs(rawArgs json.RawMessage) (map[string]any, *ToolError) {
	if len(rawArgs) == 0 || string(rawArgs) == "null" {
		rawArgs = json.RawMessage(`{}`)
	}

	var args map[string]any
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, &ToolError{
			IsError: true,
			Type:    ErrTypeValidation,
			Message: "arguments must be a JSON object",
			Suggestions: []string{
				"send arguments as a JSON object matching the tool's inputSchema",
			},
		}
	}

	if t.schema == nil {
		return args, nil
	}

	result, err := t.schema.Validate(gojsonschema.NewBytesLoader(rawArgs))
	if err != nil {
		return nil, &ToolError{
			IsError: true,
			Type:    ErrTypeValidation,
			Message: fmt.Sprintf("argument validation failed: %v", err),
			Suggestions: []string{
				"send arguments as a JSON object matching the tool's inputSchema",
			},
		}
	}
	if !result.Valid() {
		suggestions := make([]string, 0, len(result.Errors())+1)
		details := make(map[string]any)
		for _, fieldErr := range result.Errors() {
			suggestions = append(suggestions, fmt.Sprintf("%s: %s", fieldErr.Field(), fieldErr.Description()))
			details[fieldErr.Field()] = fieldErr.Description()
		}
		suggestions = append(suggestions, "correct the listed fields and call the tool again")
		return nil, &ToolError{
			IsError:     true,
			Type:        ErrTypeValidation,
			Message:     fmt.Sprintf("invalid arguments for %s", t.FullName),
			Suggestions: suggestions,
			Details:     details,
		}
	}
	return args, nil
}

// filterCredentials narrows the invocation's credential set to exactly the
// keys this tool's provider declared, stripping the provider prefix. Missing
// keys surface as a credential_missing error at execute time so tools/list can
// still show the tool exists.
func (t *Tool) filterCredentials(inv *Invocation) (map[string]string, *ToolError) {
	if t.Provider == nil {
		return map[string]string{}, nil
	}
	required := t.Provider.RequiredCredentialKeys()
	if len(required) == 0 {
		return map[string]string{}, nil
	}

	providerName := t.Provider.Name()
	credentials := make(map[string]string, len(required))
	var missing []string
	for _, key := range required {
		value := ""
		if inv != nil {
			value = inv.RawCredentials[providerName+"_"+key]
		}
		if value == "" {
			missing = append(missing, key)
			continue
		}
		credentials[key] = value
	}

	if len(missing) > 0 {
		return nil, &ToolError{
			IsError: true,
			Type:    ErrTypeCredentialMissing,
			Message: fmt.Sprintf("tenant has no configured credentials for provider %q", providerName),
			Suggestions: []string{
				fmt.Sprintf("ask an administrator to configure the %q credential for this tenant", providerName),
				fmt.Sprintf("required fields: %v", required),
			},
			Details: map[string]any{
				"provider":       providerName,
				"missing_fields": missing,
			},
		}
	}
	return credentials, nil
}

// convertError maps a handler error to the structured error shape.
func (t *Tool) convertError(err error) *ToolError {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		details := map[string]any{
			"provider": upstream.Provider,
			"status":   upstream.StatusCode,
		}
		if upstream.RequestID != "" {
			details["request_id"] = upstream.RequestID
		}
		return &ToolError{
			IsError: true,
			Type:    ErrTypeUpstream,
			Message: upstream.Error(),
			Suggestions: []string{
				"the third-party provider rejected or failed the request",
				"retry later, or verify the tenant's provider configuration",
			},
			Details: details,
		}
	}
	return &ToolError{
		IsError: true,
		Type:    ErrTypeExecution,
		Message: err.Error(),
	}
}

// renderResult serializes a handler's return value as a single text payload.
func renderResult(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func errResult(e *ToolError) *Result {
	return &Result{Text: e.JSON(), IsError: true}
}
