// ABOUTME: HS256-signed connection tokens embedding tenant and token references.
// ABOUTME: The signature is a hint, not an authority; the store is re-checked on use.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signed token errors
var (
	ErrInvalidSignedToken = errors.New("invalid signed token")
	ErrExpiredSignedToken = errors.New("signed token expired")
	ErrMissingClaim       = errors.New("missing required claim")
)

// SignedTokens issues and verifies HS256 JWTs that carry a tenant ID and a
// token secret as claims. A verified JWT only tells the gateway which stored
// token to check: the embedded secret still goes through Authenticate, so
// deactivating the stored token kills every JWT minted from it.
type SignedTokens struct {
	secret []byte
}

// NewSignedTokens creates a SignedTokens signer/verifier with the given secret.
func NewSignedTokens(secret []byte) *SignedTokens {
	return &SignedTokens{secret: secret}
}

// Issue creates a signed connection token for the given tenant and stored
// token secret, expiring after ttl.
func (s *SignedTokens) Issue(tenantID, tokenSecret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"tenant_id":    tenantID,
		"token_secret": tokenSecret,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates the JWT signature and expiry and extracts the embedded
// tenant ID and token secret. The caller must still authenticate the secret
// against the store.
func (s *SignedTokens) Verify(tokenString string) (tenantID, tokenSecret string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", ErrExpiredSignedToken
		}
		return "", "", fmt.Errorf("%w: %v", ErrInvalidSignedToken, err)
	}
	if !token.Valid {
		return "", "", ErrInvalidSignedToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidSignedToken
	}
	tenantID, ok = claims["tenant_id"].(string)
	if !ok || tenantID == "" {
		return "", "", fmt.Errorf("%w: tenant_id", ErrMissingClaim)
	}
	tokenSecret, ok = claims["token_secret"].(string)
	if !ok || tokenSecret == "" {
		return "", "", fmt.Errorf("%w: token_secret", ErrMissingClaim)
	}
	return tenantID, tokenSecret, nil
}
