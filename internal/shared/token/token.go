// Package token mints opaque bearer tokens and the hashes stored in their place.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Bytes is the entropy of a kiosk or staff token.
const Bytes = 32

// Generate returns 32 random bytes as 64 lowercase hex characters.
func Generate() (string, error) {
	buf := make([]byte, Bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("could not generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash is the SHA-256 hex digest stored in place of a token.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
