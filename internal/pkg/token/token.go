package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewRefreshToken generates a cryptographically random 64-character hex token.
func NewRefreshToken() (string, error) {
	return random(32, "generate refresh token")
}

// NewMagicLinkToken generates the opaque token embedded in magic-link URLs.
func NewMagicLinkToken() (string, error) {
	return random(32, "generate magic link token")
}

// NewOAuthStateToken generates the state parameter for processor OAuth flows.
func NewOAuthStateToken() (string, error) {
	return random(32, "generate oauth state token")
}

func random(n int, what string) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	return hex.EncodeToString(b), nil
}
