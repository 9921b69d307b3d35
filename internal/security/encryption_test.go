package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedFingerprint(fp string) FingerprintFunc {
	return func() string { return fp }
}

func TestDeriveKey_Deterministic(t *testing.T) {
	key1 := DeriveKey("AA:BB:CC:DD:EE:FF")
	key2 := DeriveKey("AA:BB:CC:DD:EE:FF")

	require.Len(t, key1, 32)
	assert.Equal(t, key1, key2, "same fingerprint must derive the same key")
}

func TestDeriveKey_DistinctPerFingerprint(t *testing.T) {
	key1 := DeriveKey("AA:BB:CC:DD:EE:FF")
	key2 := DeriveKey("AA:BB:CC:DD:EE:00")

	assert.NotEqual(t, key1, key2)
}

func TestDeviceCipher_RoundTrip(t *testing.T) {
	c := NewDeviceCipher(fixedFingerprint("AA:BB:CC:DD:EE:FF"))

	ciphertext, err := c.Encrypt([]byte("AB12-CD34-EF56-7890|2026-01-01"))
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "AB12", "plaintext must not leak")

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "AB12-CD34-EF56-7890|2026-01-01", string(plaintext))
}

func TestDeviceCipher_WrongDeviceFails(t *testing.T) {
	original := NewDeviceCipher(fixedFingerprint("AA:BB:CC:DD:EE:FF"))
	copied := NewDeviceCipher(fixedFingerprint("11:22:33:44:55:66"))

	ciphertext, err := original.Encrypt([]byte("secret payload"))
	require.NoError(t, err)

	plaintext, err := copied.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecryptFailed)
	assert.Nil(t, plaintext)
}

func TestDeviceCipher_CorruptedCiphertext(t *testing.T) {
	c := NewDeviceCipher(fixedFingerprint("AA:BB:CC:DD:EE:FF"))

	ciphertext, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = c.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDeviceCipher_ShortCiphertext(t *testing.T) {
	c := NewDeviceCipher(fixedFingerprint("AA:BB:CC:DD:EE:FF"))

	_, err := c.Decrypt([]byte("short"))
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDeviceCipher_EmptyPlaintext(t *testing.T) {
	c := NewDeviceCipher(fixedFingerprint("AA:BB:CC:DD:EE:FF"))

	_, err := c.Encrypt(nil)
	assert.Error(t, err)
}

func TestDeviceCipher_UnknownFingerprintStillWorks(t *testing.T) {
	// A degraded fingerprint is a valid identity: encryption must not fail,
	// it just binds to the sentinel.
	c := NewDeviceCipher(fixedFingerprint(UnknownFingerprint))

	ciphertext, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plaintext))
}
