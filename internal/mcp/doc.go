// ABOUTME: Package documentation for the protocol dispatcher.
// ABOUTME: Covers the auth-per-request rule and the two layers of errors.

// Package mcp implements the JSON-RPC 2.0 dispatcher over Streamable HTTP.
//
// Every POST authenticates independently: the bearer token (Authorization
// header or token query parameter, optionally a signed connection token) is
// resolved to a tenant identity before any method runs. Sessions exist for
// client continuity and audit correlation only; presenting a session id
// grants nothing, and an unknown session id denies nothing.
//
// Errors live on two layers. Protocol errors (parse failures, unknown
// methods, authentication, insufficient scope) become JSON-RPC error objects
// with the codes in server.go. Tool-level failures (bad arguments, missing
// credentials, upstream errors) are results, not errors: the structured
// payload rides in result.content with isError set, so an agent can read the
// suggestions and retry without special transport handling.
package mcp
