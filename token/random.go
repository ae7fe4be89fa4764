package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Byte lengths for the random values used by the login flow
const (
	StateLength        = 16
	NonceLength        = 16
	CodeVerifierLength = 32
	SessionIDLength    = 32
	CSRFTokenLength    = 32

	minRandomLength = 12
)

// RandomID returns byteLength bytes from crypto/rand as an unpadded base64url string.
func RandomID(byteLength int) (string, error) {
	if byteLength < minRandomLength {
		return "", fmt.Errorf("[token.RandomID] length %d below minimum %d", byteLength, minRandomLength)
	}
	b := make([]byte, byteLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[token.RandomID] rand.Read: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CodeChallenge derives the PKCE S256 challenge from a verifier
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
