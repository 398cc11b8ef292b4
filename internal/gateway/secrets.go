// ABOUTME: Opaque secret generation for bearer and admin tokens.
// ABOUTME: Prefixed random strings so secrets are recognizable in scans and leaks.

package gateway

import (
	"crypto/rand"
	"encoding/base64"
)

// newTokenSecret returns a fresh opaque bearer secret. The prefix makes leaked
// secrets easy to grep for in scanning tools.
func newTokenSecret() string {
	return "mcp_" + randomString(32)
}

// newAdminSecret returns a fresh admin token secret in its own namespace.
func newAdminSecret() string {
	return "mcpadm_" + randomString(32)
}

func randomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
