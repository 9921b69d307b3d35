package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrityGuard_FirstRunCreatesBinding(t *testing.T) {
	s, _ := newTestStore(t)

	rec, err := s.License().Load()
	require.NoError(t, err)
	require.NotNil(t, rec, "first open must create the singleton record")
	assert.Equal(t, testFingerprint, rec.DeviceFingerprint)
	assert.Empty(t, rec.EncryptedPayload)
	assert.False(t, rec.IsActive)
}

func TestIntegrityGuard_HealthyReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_management.db")

	s, _ := openTestStore(t, path, testFingerprint)
	registerVisitor(t, s, nil)
	require.NoError(t, s.Close())

	reopened, _ := openTestStore(t, path, testFingerprint)
	visitors, err := reopened.ActiveVisitors()
	require.NoError(t, err)
	assert.Len(t, visitors, 1, "same device must keep its data")
}

func TestIntegrityGuard_MismatchBacksUpAndClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_management.db")

	s, _ := openTestStore(t, path, testFingerprint)
	registerVisitor(t, s, nil)
	registerVisitor(t, s, func(v *Visitor) {
		v.NRIC = "T7654321B"
		v.HPNo = "98765432"
	})
	require.NoError(t, s.Close())

	// Simulate the database file being copied to another machine.
	copied, _ := openTestStore(t, path, foreignFingerprint)

	visitors, err := copied.ActiveVisitors()
	require.NoError(t, err)
	assert.Empty(t, visitors, "live table must be cleared on mismatch")

	var backups []VisitorBackup
	require.NoError(t, copied.db.Find(&backups).Error)
	require.Len(t, backups, 2, "every row must be snapshotted before the wipe")
	assert.Equal(t, backups[0].BackedUpAt, backups[1].BackedUpAt,
		"one guard run shares one batch stamp")

	rec, err := copied.License().Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, foreignFingerprint, rec.DeviceFingerprint,
		"binding must follow the current device")
}

func TestIntegrityGuard_MismatchLeavesLicensePayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_management.db")

	s, _ := openTestStore(t, path, testFingerprint)
	payload := []byte("opaque-ciphertext")
	require.NoError(t, s.db.Model(&LicenseRecord{}).
		Where("id = ?", licenseRecordID).
		Updates(map[string]any{"encrypted_payload": payload, "is_active": true}).Error)
	require.NoError(t, s.Close())

	copied, _ := openTestStore(t, path, foreignFingerprint)
	rec, err := copied.License().Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, payload, rec.EncryptedPayload,
		"guard only touches the binding, not the payload")
	assert.True(t, rec.IsActive, "guard must not flip the activation flag")
}

func TestIntegrityGuard_MismatchWithNoVisitors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitor_management.db")

	s, _ := openTestStore(t, path, testFingerprint)
	require.NoError(t, s.Close())

	copied, _ := openTestStore(t, path, foreignFingerprint)
	var backups []VisitorBackup
	require.NoError(t, copied.db.Find(&backups).Error)
	assert.Empty(t, backups, "nothing to back up on an empty store")

	rec, err := copied.License().Load()
	require.NoError(t, err)
	assert.Equal(t, foreignFingerprint, rec.DeviceFingerprint)
}
