package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfSalt is the fixed product salt mixed into key derivation. The key
	// must be recomputable from the fingerprint alone on every run, so the
	// salt cannot be random.
	kdfSalt = "VMS-DESK-KDF-V1"

	kdfIterations = 4096
	keyLength     = 32 // AES-256
	nonceSize     = 12 // GCM standard
)

// ErrDecryptFailed is returned when authenticated decryption rejects the
// ciphertext: either the payload was produced on a different device or the
// stored bytes were corrupted. The two cases are indistinguishable by design.
var ErrDecryptFailed = errors.New("payload decryption failed")

// DeviceCipher encrypts and decrypts opaque payloads under a symmetric key
// derived from the device fingerprint. A store encrypted on one machine
// does not decrypt on another; that is the anti-copy property the license
// subsystem is built on.
type DeviceCipher struct {
	fingerprint FingerprintFunc
}

// NewDeviceCipher creates a cipher bound to the given fingerprint source.
// A nil fingerprint falls back to DeviceFingerprint.
func NewDeviceCipher(fingerprint FingerprintFunc) *DeviceCipher {
	if fingerprint == nil {
		fingerprint = DeviceFingerprint
	}
	return &DeviceCipher{fingerprint: fingerprint}
}

// DeriveKey stretches a fingerprint into AES-256 key material. The
// derivation is deterministic per fingerprint and distinct across
// fingerprints.
func DeriveKey(fingerprint string) []byte {
	return pbkdf2.Key([]byte(fingerprint), []byte(kdfSalt), kdfIterations, keyLength, sha256.New)
}

// Encrypt seals plaintext under the current device key with AES-256-GCM.
// The random nonce is prepended to the returned ciphertext.
func (c *DeviceCipher) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, errors.New("plaintext cannot be empty")
	}

	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. It returns ErrDecryptFailed
// when the authentication tag does not verify under the current device key.
func (c *DeviceCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize+1 {
		return nil, ErrDecryptFailed
	}

	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func (c *DeviceCipher) aead() (cipher.AEAD, error) {
	key := DeriveKey(c.fingerprint())
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
