// ABOUTME: Package documentation for authentication and scope checking.
// ABOUTME: Explains the generic-failure rule and the two token namespaces.

// Package auth authenticates bearer tokens and checks scopes.
//
// Two disjoint namespaces exist: tenant tokens (opaque secrets bound to one
// tenant, carrying flat scopes) and admin tokens (for the management surface).
// A secret from one namespace never authenticates on the other.
//
// Every rejection - unknown secret, expired token, deactivated token,
// inactive tenant, tenant mismatch - collapses into ErrAuthenticationFailed.
// The concrete reason appears only in server logs, never in a response.
//
// Scope checking is flat subset matching over opaque case-sensitive labels.
// There is no hierarchy, no implication, and no wildcard; "admin" is just
// another label that happens to gate administrative tools.
package auth
