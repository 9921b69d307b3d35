package license

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vmscli/internal/cache"
	"vmscli/internal/security"
)

const (
	// tokenSeparator joins key and expiry inside the encrypted payload.
	tokenSeparator = "|"

	// expiryCutoverHour: a license expires at this hour of the expiry
	// date, not at midnight.
	expiryCutoverHour = 10

	// sampleExpiryDate is the expiry used for the display-only sample key
	// when the caller gives no hint.
	sampleExpiryDate = "2026-01-01"
)

// Record is the persisted license state, a singleton per installation.
type Record struct {
	EncryptedPayload  []byte
	DeviceFingerprint string
	ActivatedAt       time.Time
	IsActive          bool
}

// Store is the single-record persistence contract the manager runs against.
// Load returns (nil, nil) when no record exists yet.
type Store interface {
	Load() (*Record, error)
	Save(Record) error
	SetActive(active bool) error
	Delete() error
}

// DeviceInfo is display-only data the UI shows the user so they can request
// a key from the vendor.
type DeviceInfo struct {
	Fingerprint      string `json:"fingerprint"`
	SampleLicenseKey string `json:"sample_license_key"`
}

// token is the transient decrypted license payload. Never persisted in
// clear.
type token struct {
	Key        string
	ExpiryDate string
}

// checkCacheKey holds the memoized validation result.
const checkCacheKey = "license:check"

// checkResult is a memoized check outcome, valid or not.
type checkResult struct {
	tok *token
	err error
}

// Manager drives the license lifecycle against a Store. All public methods
// return plain booleans: cryptographic, format and storage failures are
// logged internally and deliberately indistinguishable to callers.
//
// Validation runs a key derivation and an authenticated decryption, so the
// result is memoized for a few seconds; every state-changing operation
// drops the memo before reporting success.
type Manager struct {
	store       Store
	fingerprint security.FingerprintFunc
	cipher      *security.DeviceCipher
	logger      *slog.Logger
	checks      *cache.ReadCache
	now         func() time.Time
}

// NewManager creates a Manager bound to the real device fingerprint.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return NewManagerWithFingerprint(store, security.DeviceFingerprint, logger)
}

// NewManagerWithFingerprint creates a Manager with an injected fingerprint
// source, used by tests and by callers that already resolved the identity.
func NewManagerWithFingerprint(store Store, fingerprint security.FingerprintFunc, logger *slog.Logger) *Manager {
	if fingerprint == nil {
		fingerprint = security.DeviceFingerprint
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:       store,
		fingerprint: fingerprint,
		cipher:      security.NewDeviceCipher(fingerprint),
		logger:      logger.With(slog.String("component", "license")),
		now:         time.Now,
	}
	m.checks = cache.NewWithClock(cache.DefaultTTL, func() time.Time { return m.now() })
	return m
}

// IsLicensed reports whether the installation holds a currently valid,
// active license. Any internal failure yields false.
func (m *Manager) IsLicensed() bool {
	_, err := m.check()
	if err != nil {
		m.logger.Debug("license check failed", slog.String("reason", err.Error()))
		return false
	}
	return true
}

// Status returns the lifecycle state for UI routing. Storage failures map
// to an unlicensed-equivalent state; the UI fails closed either way.
func (m *Manager) Status() State {
	_, err := m.check()
	return stateFor(err)
}

// Activate validates a vendor-issued key against the current device and
// expiry date, then persists the encrypted token bound to this machine.
// This is the only path that writes a fresh payload.
func (m *Manager) Activate(inputKey, expiryDate string) bool {
	if _, err := time.ParseInLocation(ExpiryDateLayout, expiryDate, time.Local); err != nil {
		m.logger.Warn("activation rejected: bad expiry date format",
			slog.String("expiry_date", expiryDate))
		return false
	}

	fp := m.fingerprint()
	if !validateKey(inputKey, fp, expiryDate) {
		m.logger.Warn("activation rejected: key mismatch",
			slog.String("license_key", MaskLicenseKey(inputKey)))
		return false
	}

	plaintext := inputKey + tokenSeparator + expiryDate
	encrypted, err := m.cipher.Encrypt([]byte(plaintext))
	if err != nil {
		m.logger.Error("activation failed: encryption error", slog.String("error", err.Error()))
		return false
	}

	record := Record{
		EncryptedPayload:  encrypted,
		DeviceFingerprint: fp,
		ActivatedAt:       m.now(),
		IsActive:          true,
	}
	if err := m.store.Save(record); err != nil {
		m.logger.Error("activation failed: storage error", slog.String("error", err.Error()))
		return false
	}
	m.checks.Invalidate("")

	m.logger.Info("license activated",
		slog.String("license_key", MaskLicenseKey(inputKey)),
		slog.String("expiry_date", expiryDate))
	return true
}

// Login re-activates a logged-out license. Only the key is supplied; the
// expiry comes from the stored token. Decryption failure (copied store),
// key mismatch or expiry all yield false.
func (m *Manager) Login(inputKey string) bool {
	tok, err := m.loadToken()
	if err != nil {
		m.logger.Warn("login failed", slog.String("reason", err.Error()))
		return false
	}

	if subtle.ConstantTimeCompare([]byte(inputKey), []byte(tok.Key)) != 1 {
		m.logger.Warn("login failed: key mismatch",
			slog.String("license_key", MaskLicenseKey(inputKey)))
		return false
	}

	if err := m.checkExpiry(tok.ExpiryDate); err != nil {
		m.logger.Warn("login failed: stored license expired",
			slog.String("expiry_date", tok.ExpiryDate))
		return false
	}

	if err := m.store.SetActive(true); err != nil {
		m.logger.Error("login failed: storage error", slog.String("error", err.Error()))
		return false
	}
	m.checks.Invalidate("")

	m.logger.Info("license login", slog.String("license_key", MaskLicenseKey(inputKey)))
	return true
}

// Logout deactivates the license without touching the payload or the
// device binding, so a later Login with the same key succeeds.
func (m *Manager) Logout() bool {
	if err := m.store.SetActive(false); err != nil {
		m.logger.Error("logout failed: storage error", slog.String("error", err.Error()))
		return false
	}
	m.checks.Invalidate("")
	m.logger.Info("license logout")
	return true
}

// Revoke deletes the license record entirely. The next IsLicensed treats
// the installation as never activated. Administrative use only.
func (m *Manager) Revoke() bool {
	if err := m.store.Delete(); err != nil {
		m.logger.Error("revoke failed: storage error", slog.String("error", err.Error()))
		return false
	}
	m.checks.Invalidate("")
	m.logger.Info("license revoked")
	return true
}

// GetCurrentDeviceInfo returns the fingerprint and a sample key for the
// given expiry hint, for display in the activation dialog.
func (m *Manager) GetCurrentDeviceInfo(expiryHint string) DeviceInfo {
	if expiryHint == "" {
		expiryHint = sampleExpiryDate
	}
	fp := m.fingerprint()
	return DeviceInfo{
		Fingerprint:      fp,
		SampleLicenseKey: DeriveLicenseKey(fp, expiryHint),
	}
}

// check returns the memoized validation result, running the full chain on
// a cold or expired memo.
func (m *Manager) check() (*token, error) {
	if cached, ok := m.checks.Get(checkCacheKey); ok {
		res := cached.(checkResult)
		return res.tok, res.err
	}
	tok, err := m.runCheck()
	m.checks.Set(checkCacheKey, checkResult{tok: tok, err: err})
	return tok, err
}

// runCheck walks the full validation chain and returns the decrypted token
// or the first typed failure.
func (m *Manager) runCheck() (*token, error) {
	rec, err := m.loadRecord()
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, ErrInactive
	}

	tok, err := m.decodeToken(rec)
	if err != nil {
		return nil, err
	}

	if err := m.checkExpiry(tok.ExpiryDate); err != nil {
		return nil, err
	}

	if !validateKey(tok.Key, m.fingerprint(), tok.ExpiryDate) {
		return nil, ErrKeyMismatch
	}
	return tok, nil
}

// loadRecord reads the singleton record, mapping absence and empty
// payloads to ErrNotActivated.
func (m *Manager) loadRecord() (*Record, error) {
	rec, err := m.store.Load()
	if err != nil {
		m.logger.Error("license record read failed", slog.String("error", err.Error()))
		return nil, ErrStorage
	}
	if rec == nil || len(rec.EncryptedPayload) == 0 {
		return nil, ErrNotActivated
	}
	return rec, nil
}

// loadToken reads and decrypts the stored payload without judging activity
// or expiry. Login uses this: a logged-out record still decodes.
func (m *Manager) loadToken() (*token, error) {
	rec, err := m.loadRecord()
	if err != nil {
		return nil, err
	}
	return m.decodeToken(rec)
}

func (m *Manager) decodeToken(rec *Record) (*token, error) {
	plaintext, err := m.cipher.Decrypt(rec.EncryptedPayload)
	if err != nil {
		return nil, ErrCrypto
	}

	parts := strings.SplitN(string(plaintext), tokenSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrFormat
	}
	return &token{Key: parts[0], ExpiryDate: parts[1]}, nil
}

// checkExpiry compares the clock against the fixed-time cutover on the
// expiry date.
func (m *Manager) checkExpiry(expiryDate string) error {
	expiry, err := time.ParseInLocation(ExpiryDateLayout, expiryDate, time.Local)
	if err != nil {
		return ErrFormat
	}
	cutover := time.Date(expiry.Year(), expiry.Month(), expiry.Day(),
		expiryCutoverHour, 0, 0, 0, time.Local)
	if m.now().After(cutover) {
		return ErrExpired
	}
	return nil
}

// MaskLicenseKey hides the middle of a key for log output.
func MaskLicenseKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return fmt.Sprintf("%s****%s", key[:4], key[len(key)-4:])
}
