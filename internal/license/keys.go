package license

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// productTag is mixed into key derivation so keys from other products
	// sharing the same scheme never validate here.
	productTag = "VMS_DESK"

	// ExpiryDateLayout is the fixed textual form for expiry dates, both in
	// vendor-issued keys and inside the stored token.
	ExpiryDateLayout = "2006-01-02"

	keyDigestChars = 16
	keyGroupSize   = 4
)

// DeriveLicenseKey computes the human-presentable license key for a device
// fingerprint and expiry date. The vendor runs the same derivation
// out-of-band and hands the result to the customer; the application
// recomputes it locally and compares. There is no separate verifier secret.
//
// Format: first 16 hex characters of SHA-256(fingerprint_expiry_tag),
// uppercased and grouped in fours: AB12-CD34-EF56-7890.
func DeriveLicenseKey(fingerprint, expiryDate string) string {
	base := fmt.Sprintf("%s_%s_%s", fingerprint, expiryDate, productTag)
	sum := sha256.Sum256([]byte(base))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))[:keyDigestChars]

	groups := make([]string, 0, keyDigestChars/keyGroupSize)
	for i := 0; i < keyDigestChars; i += keyGroupSize {
		groups = append(groups, digest[i:i+keyGroupSize])
	}
	return strings.Join(groups, "-")
}

// validateKey reports whether inputKey is the key this derivation produces
// for the given fingerprint and expiry date.
func validateKey(inputKey, fingerprint, expiryDate string) bool {
	expected := DeriveLicenseKey(fingerprint, expiryDate)
	return subtle.ConstantTimeCompare([]byte(inputKey), []byte(expected)) == 1
}
