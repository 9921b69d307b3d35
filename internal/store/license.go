package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vmscli/internal/license"
)

// LicenseStore adapts the singleton license row to the manager's Store
// contract. It is an explicit single-record store: Load returns (nil, nil)
// when no record exists rather than leaking the fixed row id upward.
type LicenseStore struct {
	s *Store
}

// License returns the license persistence view of this store.
func (s *Store) License() *LicenseStore { return &LicenseStore{s: s} }

// Load reads the singleton record.
func (l *LicenseStore) Load() (*license.Record, error) {
	var row LicenseRecord
	err := l.s.db.First(&row, licenseRecordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load license record: %w", err)
	}
	return &license.Record{
		EncryptedPayload:  row.EncryptedPayload,
		DeviceFingerprint: row.DeviceFingerprint,
		ActivatedAt:       row.ActivatedAt,
		IsActive:          row.IsActive,
	}, nil
}

// Save upserts the singleton record. License state changes can affect any
// cached read, so the whole cache is dropped.
func (l *LicenseStore) Save(rec license.Record) error {
	row := LicenseRecord{
		ID:                licenseRecordID,
		EncryptedPayload:  rec.EncryptedPayload,
		DeviceFingerprint: rec.DeviceFingerprint,
		ActivatedAt:       rec.ActivatedAt,
		IsActive:          rec.IsActive,
	}
	if err := l.s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("save license record: %w", err)
	}
	l.s.cache.Invalidate("")
	return nil
}

// SetActive flips the activation flag only; payload and device binding stay
// untouched so a later login can restore the license.
func (l *LicenseStore) SetActive(active bool) error {
	res := l.s.db.Model(&LicenseRecord{}).
		Where("id = ?", licenseRecordID).
		Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("set license active: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("no license record to update")
	}
	l.s.cache.Invalidate("")
	return nil
}

// Delete removes the record entirely; the next Load reports a
// never-activated installation.
func (l *LicenseStore) Delete() error {
	if err := l.s.db.Delete(&LicenseRecord{}, licenseRecordID).Error; err != nil {
		return fmt.Errorf("delete license record: %w", err)
	}
	l.s.cache.Invalidate("")
	return nil
}
