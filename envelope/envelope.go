// Package envelope wraps token bundles in authenticated encryption so they are
// never stored in plaintext. Each envelope records the id of the key that sealed
// it, allowing keys to be rotated without re-encrypting existing sessions.
package envelope

import (
	"crypto/rand"
	"fmt"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sizes of the AEAD parameters
const (
	KeySize   = chacha20poly1305.KeySize   // 256-bit key
	NonceSize = chacha20poly1305.NonceSize // 96-bit nonce
	TagSize   = chacha20poly1305.Overhead  // 128-bit authentication tag
)

// Envelope is an encrypted payload plus everything needed to open it except the key.
type Envelope struct {
	KeyID      string `json:"kid"`
	IV         []byte `json:"iv"`
	Tag        []byte `json:"tag"`
	Ciphertext []byte `json:"ct"`
}

// Encrypt seals plaintext with key under a fresh random nonce. The key id is
// bound into the ciphertext as additional data.
func Encrypt(key []byte, keyID string, plaintext []byte) (*Envelope, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("[envelope.Encrypt] key for %q: %w", keyID, err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("[envelope.Encrypt] rand.Read: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, []byte(keyID))
	split := len(sealed) - TagSize
	return &Envelope{
		KeyID:      keyID,
		IV:         nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
	}, nil
}

// Decrypt verifies the tag and returns the plaintext. Any failure, including a
// wrong key or malformed envelope, is reported as ErrIntegrity.
func Decrypt(key []byte, env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("[envelope.Decrypt] nil envelope: %w", apperrors.ErrIntegrity)
	}
	if len(env.IV) != NonceSize || len(env.Tag) != TagSize {
		return nil, fmt.Errorf("[envelope.Decrypt] malformed envelope: %w", apperrors.ErrIntegrity)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("[envelope.Decrypt] key for %q: %v: %w", env.KeyID, err, apperrors.ErrIntegrity)
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := aead.Open(nil, env.IV, sealed, []byte(env.KeyID))
	if err != nil {
		return nil, fmt.Errorf("[envelope.Decrypt] open: %w", apperrors.ErrIntegrity)
	}
	return plaintext, nil
}
