package license

import "errors"

// Internal error taxonomy. These never cross the manager's public boundary;
// they exist so internal paths and logs can tell failure modes apart while
// the UI only ever sees a boolean.
var (
	// ErrCrypto means authenticated decryption rejected the payload:
	// wrong device or corrupted bytes.
	ErrCrypto = errors.New("license payload decryption failed")

	// ErrFormat means the payload decrypted but did not parse into a
	// key|expiry token.
	ErrFormat = errors.New("license payload malformed")

	// ErrExpired means the wall clock is past the expiry cutover.
	ErrExpired = errors.New("license expired")

	// ErrKeyMismatch means the derived key does not match the stored or
	// supplied key.
	ErrKeyMismatch = errors.New("license key mismatch")

	// ErrNotActivated means no license record or an empty payload exists.
	ErrNotActivated = errors.New("license not activated")

	// ErrInactive means a valid payload exists but the license was logged
	// out.
	ErrInactive = errors.New("license deactivated")

	// ErrStorage means the underlying store failed; license state cannot
	// be determined and callers must fail closed.
	ErrStorage = errors.New("license storage failure")
)
