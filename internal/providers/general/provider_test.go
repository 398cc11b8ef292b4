// ABOUTME: Tests for the general provider's tools.
// ABOUTME: Calculator parsing and timezone lookup get the detailed coverage.

package general

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTool(t *testing.T, p *Provider, name string, args map[string]any) (any, error) {
	t.Helper()
	for _, def := range p.Tools() {
		if def.Spec.Name == name {
			return def.Handler(context.Background(), args, nil, nil)
		}
	}
	t.Fatalf("tool %q not declared", name)
	return nil, nil
}

func TestServerStatus(t *testing.T) {
	p := New("1.2.3")
	out, err := callTool(t, p, "get_server_status", nil)
	require.NoError(t, err)

	status := out.(map[string]any)
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, "1.2.3", status["version"])
}

func TestCurrentTime(t *testing.T) {
	p := New("test")

	out, err := callTool(t, p, "current_time", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "UTC", out.(map[string]any)["timezone"])

	out, err = callTool(t, p, "current_time", map[string]any{"timezone": "America/Toronto"})
	require.NoError(t, err)
	result := out.(map[string]any)
	assert.Equal(t, "America/Toronto", result["timezone"])
	_, perr := time.Parse(time.RFC3339, result["time"].(string))
	assert.NoError(t, perr)

	_, err = callTool(t, p, "current_time", map[string]any{"timezone": "Nowhere/Atlantis"})
	assert.Error(t, err)
}

func TestCalculatorExpressions(t *testing.T) {
	tests := []struct {
		expression string
		want       float64
	}{
		{"1+1", 2},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"2 * -3", -6},
		{"1.5 + 2.25", 3.75},
		{"((1+2)*(3+4))", 21},
		{" 7 ", 7},
	}
	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			got, err := evaluate(tt.expression)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCalculatorRejectsBadInput(t *testing.T) {
	bad := []string{
		"",
		"   ",
		"1 +",
		"(1+2",
		"1 + foo",
		"2 ** 3",
		"1; drop table",
		"1 / 0",
	}
	for _, expression := range bad {
		t.Run(expression, func(t *testing.T) {
			_, err := evaluate(expression)
			assert.Error(t, err)
		})
	}
}

func TestCalculatorTool(t *testing.T) {
	p := New("test")
	out, err := callTool(t, p, "calculator", map[string]any{"expression": "6*7"})
	require.NoError(t, err)
	assert.InDelta(t, 42.0, out.(map[string]any)["result"].(float64), 1e-9)
}

func TestTimezoneByLocation(t *testing.T) {
	p := New("test")

	out, err := callTool(t, p, "get_timezone_by_location", map[string]any{"location": "Toronto"})
	require.NoError(t, err)
	assert.Equal(t, "America/Toronto", out.(map[string]any)["timezone"])

	// Case-insensitive.
	out, err = callTool(t, p, "get_timezone_by_location", map[string]any{"location": "  NEW YORK  "})
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", out.(map[string]any)["timezone"])

	_, err = callTool(t, p, "get_timezone_by_location", map[string]any{"location": "Gotham"})
	assert.Error(t, err)
}

func TestSystemInfo(t *testing.T) {
	p := New("test")
	out, err := callTool(t, p, "system_info", nil)
	require.NoError(t, err)
	info := out.(map[string]any)
	assert.NotEmpty(t, info["go_version"])
	assert.Positive(t, info["num_cpu"])
}

func TestDeclaredScopes(t *testing.T) {
	p := New("test")
	scopes := map[string][]string{}
	for _, def := range p.Tools() {
		scopes[def.Spec.Name] = def.Spec.RequiredScopes
	}

	assert.Empty(t, scopes["get_server_status"], "status must be visible without scopes")
	assert.Equal(t, []string{"basic"}, scopes["current_time"])
	assert.Equal(t, []string{"admin"}, scopes["system_info"])
}
