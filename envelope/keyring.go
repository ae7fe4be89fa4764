package envelope

import (
	"fmt"

	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
)

// Keyring holds the configured envelope keys. New envelopes are always sealed
// with the active key; any configured key can open.
type Keyring struct {
	keys     map[string][]byte
	activeID string
}

// NewKeyring validates and copies the key material
func NewKeyring(keys map[string][]byte, activeID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("[envelope.NewKeyring] no keys configured")
	}
	copied := make(map[string][]byte, len(keys))
	for kid, key := range keys {
		if len(key) != KeySize {
			return nil, fmt.Errorf("[envelope.NewKeyring] key %q must be %d bytes", kid, KeySize)
		}
		copied[kid] = append([]byte(nil), key...)
	}
	if _, ok := copied[activeID]; !ok {
		return nil, fmt.Errorf("[envelope.NewKeyring] active key %q not configured", activeID)
	}
	return &Keyring{keys: copied, activeID: activeID}, nil
}

// ActiveKeyID is the key id new envelopes are sealed with
func (k *Keyring) ActiveKeyID() string {
	return k.activeID
}

func (k *Keyring) Seal(plaintext []byte) (*Envelope, error) {
	return Encrypt(k.keys[k.activeID], k.activeID, plaintext)
}

// Open decrypts env with the key its key id names
func (k *Keyring) Open(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("[Keyring.Open] nil envelope: %w", apperrors.ErrIntegrity)
	}
	key, ok := k.keys[env.KeyID]
	if !ok {
		return nil, fmt.Errorf("[Keyring.Open] unknown key id %q: %w", env.KeyID, apperrors.ErrIntegrity)
	}
	return Decrypt(key, env)
}
