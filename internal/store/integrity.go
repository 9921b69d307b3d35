package store

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// verifyDeviceIdentity reconciles the store with the machine it is running
// on. It runs exactly once, synchronously, during Open, before any
// business data is served.
//
// First run: a placeholder license record bound to this device is created.
// Healthy run: stored and current fingerprints match, nothing happens.
// Mismatch: the store was copied or moved from another machine. All visit
// records are snapshotted into visitor_backups, the live table is cleared,
// and the binding is rewritten to the current device. The license payload
// and activation flag are left untouched; a mismatch may be a legitimate
// hardware replacement and the backup keeps that reversible.
func (s *Store) verifyDeviceIdentity() error {
	current := s.fingerprint()

	var row LicenseRecord
	err := s.db.First(&row, licenseRecordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		placeholder := LicenseRecord{
			ID:                licenseRecordID,
			DeviceFingerprint: current,
			IsActive:          false,
		}
		if err := s.db.Create(&placeholder).Error; err != nil {
			return fmt.Errorf("create license placeholder: %w", err)
		}
		s.logger.Info("first run, store bound to this device",
			slog.String("fingerprint", current))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read device binding: %w", err)
	}

	if row.DeviceFingerprint == current {
		return nil
	}

	s.logger.Warn("store appears to have been copied from another machine",
		slog.String("stored_fingerprint", row.DeviceFingerprint),
		slog.String("current_fingerprint", current))

	backedUp, err := s.protectVisitorData()
	if err != nil {
		return fmt.Errorf("apply data protection policy: %w", err)
	}

	if err := s.db.Model(&LicenseRecord{}).
		Where("id = ?", licenseRecordID).
		Update("device_fingerprint", current).Error; err != nil {
		return fmt.Errorf("rebind device fingerprint: %w", err)
	}

	s.cache.Invalidate("")
	s.logger.Info("store rebound to this device",
		slog.String("fingerprint", current),
		slog.Int64("visits_backed_up", backedUp))
	return nil
}

// protectVisitorData snapshots every visit row into the backup table, all
// stamped with the same batch time, then clears the live table. Runs in one
// transaction so a failure leaves the live data intact.
func (s *Store) protectVisitorData() (int64, error) {
	batchTime := s.now()
	var count int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var visits []Visitor
		if err := tx.Find(&visits).Error; err != nil {
			return err
		}
		count = int64(len(visits))
		if count == 0 {
			return nil
		}

		backups := make([]VisitorBackup, 0, len(visits))
		for _, v := range visits {
			backups = append(backups, VisitorBackup{
				SourceID:    v.ID,
				VisitRecord: v.VisitRecord,
				BackedUpAt:  batchTime,
			})
		}
		if err := tx.CreateInBatches(backups, 200).Error; err != nil {
			return err
		}

		return tx.Where("1 = 1").Delete(&Visitor{}).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
