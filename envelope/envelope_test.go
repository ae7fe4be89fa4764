package envelope_test

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/storefront-auth/envelope"
	apperrors "github.com/jrsteele09/storefront-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, envelope.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := newKey(t)
	bundle := []byte(`{"access_token":"at","id_token":"it","refresh_token":"rt","expires_at":1700000000}`)

	env, err := envelope.Encrypt(key, "k1", bundle)
	require.NoError(t, err)
	require.Equal(t, "k1", env.KeyID)
	require.Len(t, env.IV, envelope.NonceSize)
	require.Len(t, env.Tag, envelope.TagSize)
	require.False(t, bytes.Contains(env.Ciphertext, []byte("access_token")))

	out, err := envelope.Decrypt(key, env)
	require.NoError(t, err)
	require.Equal(t, bundle, out)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := newKey(t)
	a, err := envelope.Encrypt(key, "k1", []byte("same"))
	require.NoError(t, err)
	b, err := envelope.Encrypt(key, "k1", []byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a.IV, b.IV)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEncrypt_BadKey(t *testing.T) {
	_, err := envelope.Encrypt([]byte("short"), "k1", []byte("x"))
	require.Error(t, err)
}

func TestDecrypt_IntegrityFailures(t *testing.T) {
	key := newKey(t)
	env, err := envelope.Encrypt(key, "k1", []byte("secret bundle"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    []byte
		mutate func(e *envelope.Envelope)
	}{
		{"wrong key", newKey(t), func(e *envelope.Envelope) {}},
		{"tampered ciphertext", key, func(e *envelope.Envelope) { e.Ciphertext[0] ^= 0xff }},
		{"tampered tag", key, func(e *envelope.Envelope) { e.Tag[0] ^= 0xff }},
		{"tampered iv", key, func(e *envelope.Envelope) { e.IV[0] ^= 0xff }},
		{"relabelled key id", key, func(e *envelope.Envelope) { e.KeyID = "k2" }},
		{"truncated tag", key, func(e *envelope.Envelope) { e.Tag = e.Tag[:4] }},
		{"short key", []byte("short"), func(e *envelope.Envelope) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *env
			c.IV = append([]byte(nil), env.IV...)
			c.Tag = append([]byte(nil), env.Tag...)
			c.Ciphertext = append([]byte(nil), env.Ciphertext...)
			tt.mutate(&c)

			out, err := envelope.Decrypt(tt.key, &c)
			require.ErrorIs(t, err, apperrors.ErrIntegrity)
			require.Nil(t, out)
		})
	}

	_, err = envelope.Decrypt(key, nil)
	require.ErrorIs(t, err, apperrors.ErrIntegrity)
}

func TestEnvelope_JSONRoundTrip(t *testing.T) {
	key := newKey(t)
	env, err := envelope.Encrypt(key, "k1", []byte("payload"))
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded envelope.Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	out, err := envelope.Decrypt(key, &decoded)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), out)
}

func TestKeyring_Rotation(t *testing.T) {
	oldKey, newKeyBytes := newKey(t), newKey(t)

	before, err := envelope.NewKeyring(map[string][]byte{"old": oldKey}, "old")
	require.NoError(t, err)
	sealedOld, err := before.Seal([]byte("bundle"))
	require.NoError(t, err)

	after, err := envelope.NewKeyring(map[string][]byte{"old": oldKey, "new": newKeyBytes}, "new")
	require.NoError(t, err)
	require.Equal(t, "new", after.ActiveKeyID())

	out, err := after.Open(sealedOld)
	require.NoError(t, err)
	require.Equal(t, []byte("bundle"), out)

	sealedNew, err := after.Seal([]byte("bundle"))
	require.NoError(t, err)
	require.Equal(t, "new", sealedNew.KeyID)

	_, err = before.Open(sealedNew)
	require.ErrorIs(t, err, apperrors.ErrIntegrity)
}

func TestNewKeyring_Validation(t *testing.T) {
	_, err := envelope.NewKeyring(nil, "k1")
	require.Error(t, err)
	_, err = envelope.NewKeyring(map[string][]byte{"k1": []byte("short")}, "k1")
	require.Error(t, err)
	_, err = envelope.NewKeyring(map[string][]byte{"k1": newKey(t)}, "k2")
	require.Error(t, err)
}
