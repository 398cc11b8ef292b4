// ABOUTME: Symmetric encryption for tenant credentials at rest.
// ABOUTME: Tolerates legacy plaintext values by sniffing a format marker before decrypting.

package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// Marker prefixes every ciphertext produced by this vault. Values without the
// marker are treated as legacy plaintext and passed through unchanged.
const Marker = "$VAULT;1$"

// KeySize is the required key length in bytes.
const KeySize = 32

// ErrInvalidKey indicates the provided key is not KeySize bytes.
var ErrInvalidKey = errors.New("vault key must be 32 bytes")

// ErrEmptyPlaintext indicates an attempt to encrypt an empty value.
var ErrEmptyPlaintext = errors.New("cannot encrypt empty value")

const nonceSize = 24

// Vault encrypts and decrypts credential values with a process-wide symmetric key.
// It is stateless beyond the key and safe for concurrent use.
type Vault struct {
	key    [KeySize]byte
	logger *slog.Logger
}

// New creates a Vault from a raw 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	v := &Vault{logger: slog.Default().With("component", "vault")}
	copy(v.key[:], key)
	return v, nil
}

// Open creates a Vault from a base64-encoded key, as stored in configuration.
func Open(encoded string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding vault key: %w", err)
	}
	return New(key)
}

// GenerateKey produces a new random key and its base64 encoding for operator storage.
func GenerateKey() ([]byte, string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, "", fmt.Errorf("generating vault key: %w", err)
	}
	return key, base64.StdEncoding.EncodeToString(key), nil
}

// OpenOrGenerate returns a Vault for the configured key. If no key is configured
// it generates one, surfaces it to the operator via the log, and continues.
// Losing the generated key makes previously encrypted credentials unreadable,
// so production deployments must pin vault.key in config.
func OpenOrGenerate(encoded string, logger *slog.Logger) (*Vault, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if encoded != "" {
		return Open(encoded)
	}
	key, b64, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	logger.Warn("no vault key configured, generated an ephemeral key",
		"generated_key", b64,
		"action", "store this key as vault.key to keep credentials readable across restarts",
	)
	return New(key)
}

// Encrypt seals a plaintext value and returns the marked, base64-encoded ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key)
	return Marker + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values lacking the format marker,
// and marked values that fail to open, are returned unchanged: stored
// credentials predate the vault in some tenants and must keep working.
// Decrypt never fails.
func (v *Vault) Decrypt(value string) string {
	if !IsEncrypted(value) {
		return value
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Marker))
	if err != nil || len(raw) <= nonceSize {
		v.logger.Warn("vault value has marker but malformed payload, passing through")
		return value
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &v.key)
	if !ok {
		v.logger.Warn("vault value failed authentication, passing through")
		return value
	}
	return string(plaintext)
}

// IsEncrypted reports whether a stored value carries the vault format marker.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Marker)
}
