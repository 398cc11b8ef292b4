// ABOUTME: Tests for the capability registry: registration, resolution, visibility.
// ABOUTME: Covers scope subsetting, credential gating, ordering, and legacy merging.

package registry

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider implements Provider for tests.
type fakeProvider struct {
	name string
	keys []string
	defs []ToolDef
}

func (p *fakeProvider) Name() string                    { return p.name }
func (p *fakeProvider) Tools() []ToolDef                { return p.defs }
func (p *fakeProvider) RequiredCredentialKeys() []string { return p.keys }
func (p *fakeProvider) ValidateCredentials(_ context.Context, _ map[string]string) error {
	return nil
}

func okHandler(result any) Handler {
	return func(_ context.Context, _ map[string]any, _ map[string]string, _ *Invocation) (any, error) {
		return result, nil
	}
}

func toolDef(name string, scopes ...string) ToolDef {
	return ToolDef{
		Spec: ToolSpec{
			Name:           name,
			Description:    name + " description",
			InputSchema:    json.RawMessage(`{"type":"object"}`),
			RequiredScopes: scopes,
		},
		Handler: okHandler("ok"),
	}
}

func names(descriptors []ToolDescriptor) []string {
	out := make([]string, len(descriptors))
	for i, d := range descriptors {
		out[i] = d.Name
	}
	return out
}

func TestRegisterProviderQualifiesNames(t *testing.T) {
	r := New(slog.Default())
	p := &fakeProvider{name: "general", defs: []ToolDef{toolDef("current_time", "basic")}}
	require.NoError(t, r.RegisterProvider("general", p))

	tool, ok := r.Resolve("general_general_current_time")
	require.True(t, ok)
	assert.Equal(t, "general", tool.Domain)
	assert.Equal(t, "current_time", tool.Spec.Name)

	_, ok = r.Resolve("current_time")
	assert.False(t, ok)
}

func TestRegisterProviderCollision(t *testing.T) {
	r := New(slog.Default())
	p1 := &fakeProvider{name: "x", defs: []ToolDef{toolDef("dup")}}
	p2 := &fakeProvider{name: "x", defs: []ToolDef{toolDef("dup")}}

	require.NoError(t, r.RegisterProvider("d", p1))
	assert.ErrorIs(t, r.RegisterProvider("d", p2), ErrToolCollision)
}

func TestAvailableScopeFiltering(t *testing.T) {
	r := New(slog.Default())
	p := &fakeProvider{name: "general", defs: []ToolDef{
		toolDef("status"),          // no scopes: always visible
		toolDef("time", "basic"),   // basic
		toolDef("sysinfo", "admin"), // admin only
	}}
	require.NoError(t, r.RegisterProvider("general", p))

	visible := r.Available([]string{"basic"}, nil)
	assert.Equal(t, []string{"general_general_status", "general_general_time"}, names(visible))

	// No scopes at all: only the unscoped tool.
	visible = r.Available(nil, nil)
	assert.Equal(t, []string{"general_general_status"}, names(visible))

	// Extra scopes are harmless.
	visible = r.Available([]string{"basic", "admin", "unrelated"}, nil)
	assert.Len(t, visible, 3)
}

func TestAvailableMonotonicInScopes(t *testing.T) {
	r := New(slog.Default())
	p := &fakeProvider{name: "g", defs: []ToolDef{
		toolDef("a", "basic"),
		toolDef("b", "basic", "files"),
		toolDef("c", "admin"),
	}}
	require.NoError(t, r.RegisterProvider("d", p))

	smaller := names(r.Available([]string{"basic"}, nil))
	larger := names(r.Available([]string{"basic", "files", "admin"}, nil))

	// Granting a superset of scopes never removes a previously visible tool.
	for _, name := range smaller {
		assert.Contains(t, larger, name)
	}
}

func TestAvailableCredentialGating(t *testing.T) {
	r := New(slog.Default())
	p := &fakeProvider{
		name: "stripe",
		keys: []string{"secret_key", "publishable_key"},
		defs: []ToolDef{toolDef("create_payment", "payments")},
	}
	require.NoError(t, r.RegisterProvider("payments", p))

	scopes := []string{"payments"}

	// No credentials configured: hidden.
	assert.Empty(t, r.Available(scopes, nil))

	// Partial credentials: still hidden.
	assert.Empty(t, r.Available(scopes, []string{"stripe_secret_key"}))

	// All declared keys present: visible.
	visible := r.Available(scopes, []string{"stripe_secret_key", "stripe_publishable_key"})
	assert.Equal(t, []string{"payments_stripe_create_payment"}, names(visible))

	// Keys from another provider don't count.
	assert.Empty(t, r.Available(scopes, []string{"paypal_secret_key", "paypal_publishable_key"}))
}

func TestAvailableRegistrationOrder(t *testing.T) {
	r := New(slog.Default())
	require.NoError(t, r.RegisterProvider("b", &fakeProvider{name: "second", defs: []ToolDef{toolDef("z")}}))
	require.NoError(t, r.RegisterProvider("a", &fakeProvider{name: "first", defs: []ToolDef{toolDef("a")}}))

	// Order is registration order, not alphabetical.
	assert.Equal(t, []string{"b_second_z", "a_first_a"}, names(r.Available(nil, nil)))
}

func TestLegacyToolsMergedAsFallback(t *testing.T) {
	r := New(slog.Default())
	p := &fakeProvider{name: "general", defs: []ToolDef{toolDef("status")}}
	require.NoError(t, r.RegisterProvider("general", p))

	// A legacy tool colliding with a provider tool name is shadowed.
	require.NoError(t, r.RegisterLegacyTool(ToolSpec{Name: "general_general_status", Description: "legacy dup"}, okHandler("dup")))
	require.NoError(t, r.RegisterLegacyTool(ToolSpec{Name: "connection_test", Description: "legacy"}, okHandler("ok")))

	visible := r.Available(nil, nil)
	assert.Equal(t, []string{"general_general_status", "connection_test"}, names(visible))

	// First registration wins: the provider tool's description survives.
	for _, d := range visible {
		if d.Name == "general_general_status" {
			assert.Equal(t, "status description", d.Description)
		}
	}

	// Resolve prefers the provider tool, falls back to legacy for others.
	tool, ok := r.Resolve("connection_test")
	require.True(t, ok)
	assert.Equal(t, "legacy", tool.Domain)
}

func TestResolveNotFound(t *testing.T) {
	r := New(slog.Default())
	_, ok := r.Resolve("nope")
	assert.False(t, ok)
}

func TestToolCount(t *testing.T) {
	r := New(slog.Default())
	require.NoError(t, r.RegisterProvider("d", &fakeProvider{name: "p", defs: []ToolDef{toolDef("a"), toolDef("b")}}))
	require.NoError(t, r.RegisterLegacyTool(ToolSpec{Name: "c"}, okHandler(nil)))
	assert.Equal(t, 3, r.ToolCount())
}
