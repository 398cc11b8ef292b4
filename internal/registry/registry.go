// ABOUTME: Capability registry organized as Domain -> Provider -> Tool.
// ABOUTME: Built once at startup, read-only thereafter; computes tenant-visible tool sets.

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xeipuuv/gojsonschema"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ToolDescriptor is the client-facing view of a registered tool.
type ToolDescriptor struct {
	Name           string
	Description    string
	InputSchema    json.RawMessage
	RequiredScopes []string
	Domain         string
	Provider       string
}

// Registry is the three-level capability catalog. Register all providers and
// legacy tools at startup before serving; after that the registry is
// read-only, so Resolve and Available need no locking.
type Registry struct {
	tools  map[string]*Tool // fully-qualified name -> provider tool
	order  []*Tool          // provider tools in registration order
	legacy []*Tool          // fallback pass, merged after provider tools
	logger *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "registry"),
	}
}

// RegisterProvider asks the provider for its tool declarations and binds them
// under the domain. Tool names are fully qualified as {domain}_{provider}_{tool}.
// Returns ErrToolCollision if any resulting name is already taken.
func (r *Registry) RegisterProvider(domain string, provider Provider) error {
	defs := provider.Tools()

	// Validate the whole declaration set before registering any of it.
	staged := make([]*Tool, 0, len(defs))
	for _, def := range defs {
		fullName := fmt.Sprintf("%s_%s_%s", domain, provider.Name(), def.Spec.Name)
		if _, exists := r.tools[fullName]; exists {
			return fmt.Errorf("%w: %q", ErrToolCollision, fullName)
		}

		tool := &Tool{
			FullName: fullName,
			Domain:   domain,
			Provider: provider,
			Spec:     def.Spec,
			handler:  def.Handler,
		}
		if len(def.Spec.InputSchema) > 0 {
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(def.Spec.InputSchema))
			if err != nil {
				return fmt.Errorf("compiling input schema for %q: %w", fullName, err)
			}
			tool.schema = schema
		}
		staged = append(staged, tool)
	}

	for _, tool := range staged {
		r.tools[tool.FullName] = tool
		r.order = append(r.order, tool)
	}

	r.logger.Info("registered provider",
		"domain", domain,
		"provider", provider.Name(),
		"tool_count", len(staged),
		"required_credentials", provider.RequiredCredentialKeys(),
	)
	return nil
}

// RegisterLegacyTool registers a tool outside the provider system under its
// literal name. Legacy tools are merged into listings as a fallback pass:
// a provider tool with the same name shadows them (first registration wins).
func (r *Registry) RegisterLegacyTool(spec ToolSpec, handler Handler) error {
	tool := &Tool{
		FullName: spec.Name,
		Domain:   "legacy",
		Spec:     spec,
		handler:  handler,
	}
	if len(spec.InputSchema) > 0 {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(spec.InputSchema))
		if err != nil {
			return fmt.Errorf("compiling input schema for legacy tool %q: %w", spec.Name, err)
		}
		tool.schema = schema
	}
	r.legacy = append(r.legacy, tool)

	r.logger.Info("registered legacy tool", "name", spec.Name)
	return nil
}

// Resolve looks up a tool by fully-qualified name. Provider tools take
// precedence over legacy tools with the same name.
func (r *Registry) Resolve(fullName string) (*Tool, bool) {
	if tool, ok := r.tools[fullName]; ok {
		return tool, true
	}
	for _, tool := range r.legacy {
		if tool.FullName == fullName {
			return tool, true
		}
	}
	return nil, false
}

// Available computes the tool set visible to a caller holding the given
// scopes and configured credential keys. A tool is included iff its required
// scopes are a subset of the caller's scopes AND its provider either needs no
// credentials or every declared key, namespaced as {provider}_{key}, is
// present. Order is registration order; callers must not read priority into it.
func (r *Registry) Available(scopes, credentialKeys []string) []ToolDescriptor {
	scopeSet := toSet(scopes)
	keySet := toSet(credentialKeys)

	var result []ToolDescriptor
	seen := make(map[string]bool)

	for _, tool := range r.order {
		if !subset(tool.Spec.RequiredScopes, scopeSet) {
			continue
		}
		if !credentialsSatisfied(tool.Provider, keySet) {
			continue
		}
		result = append(result, describe(tool))
		seen[tool.FullName] = true
	}

	// Legacy fallback pass: scope check only, skip collisions with entries
	// already included above.
	for _, tool := range r.legacy {
		if seen[tool.FullName] {
			continue
		}
		if !subset(tool.Spec.RequiredScopes, scopeSet) {
			continue
		}
		result = append(result, describe(tool))
		seen[tool.FullName] = true
	}

	return result
}

// ToolCount returns the number of registered tools including legacy entries.
func (r *Registry) ToolCount() int {
	return len(r.order) + len(r.legacy)
}

func describe(tool *Tool) ToolDescriptor {
	d := ToolDescriptor{
		Name:           tool.FullName,
		Description:    tool.Spec.Description,
		InputSchema:    tool.Spec.InputSchema,
		RequiredScopes: tool.Spec.RequiredScopes,
		Domain:         tool.Domain,
	}
	if tool.Provider != nil {
		d.Provider = tool.Provider.Name()
	}
	return d
}

// credentialsSatisfied reports whether the provider's declared keys are all
// present in the caller's configured credential key set.
func credentialsSatisfied(provider Provider, keySet map[string]struct{}) bool {
	if provider == nil {
		return true
	}
	required := provider.RequiredCredentialKeys()
	if len(required) == 0 {
		return true
	}
	for _, key := range required {
		if _, ok := keySet[provider.Name()+"_"+key]; !ok {
			return false
		}
	}
	return true
}

// subset reports whether every element of required is in the set.
// An empty required list always passes.
func subset(required []string, set map[string]struct{}) bool {
	for _, item := range required {
		if _, ok := set[item]; !ok {
			return false
		}
	}
	return true
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
