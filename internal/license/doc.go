// Package license implements the device-bound license lifecycle: key
// derivation, activation, login/logout, revocation and expiry handling.
//
// The license token (key + expiry date) is only ever persisted encrypted
// under a key derived from the current device fingerprint, so a store
// copied to another machine stops decrypting. All internal failures are
// typed; the public API collapses them to booleans so callers cannot
// distinguish a wrong key from a corrupted store or a foreign device.
package license
