// ABOUTME: Package documentation for the capability registry.
// ABOUTME: Explains the Domain -> Provider -> Tool catalog and visibility rules.

// Package registry implements the capability catalog that decides which tools
// exist and which of them a given caller may see.
//
// # Structure
//
// The catalog has three levels: a Domain is a named grouping (bookings,
// payments); a Provider is an integration implementation inside a domain that
// declares tools and the credential keys it needs; a Tool is one callable
// capability with an input schema and required scopes. A tool's
// fully-qualified name is deterministic:
//
//	{domain}_{provider}_{tool}
//
// Legacy tools registered outside the provider system keep their literal name
// and are merged into listings as a fallback pass, losing collisions to
// provider tools.
//
// # Visibility
//
// A tool is visible to a caller iff the tool's required scopes are a subset
// of the caller's scopes AND the provider either needs no credentials or the
// tenant has an active, fully-configured credential covering every declared
// key. Scopes are opaque and flat: there is no hierarchy and no wildcard.
//
// # Execution
//
// Tool.Execute is the failure-isolation boundary: arguments are validated
// against the declared JSON schema, credentials are narrowed to the owning
// provider's keys, and every failure mode - bad arguments, missing
// credentials, upstream errors, panics - is folded into a structured
// machine-parseable payload with a suggestions list. A tool failure is data,
// never a crash.
//
// # Concurrency
//
// Register providers at startup, before serving. After construction the
// registry is read-only, so Resolve and Available are safe for concurrent use
// without locking.
package registry
