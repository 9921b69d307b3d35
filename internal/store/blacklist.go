package store

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// IsBlacklisted reports whether an HP number is barred from registration.
func (s *Store) IsBlacklisted(hpNo string) (bool, error) {
	var count int64
	err := s.db.Model(&BlacklistEntry{}).Where("hp_no = ?", hpNo).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return count > 0, nil
}

// AddToBlacklist bars an HP number, deriving name and NRIC from the most
// recent completed visit when one exists. Re-adding replaces the entry.
func (s *Store) AddToBlacklist(hpNo, reason string) error {
	if hpNo == "" {
		return fmt.Errorf("%w: HP number is required", ErrInvalidVisitor)
	}

	entry := BlacklistEntry{HPNo: hpNo, Reason: reason}
	if visit, err := s.MostRecentVisitForAutofill("", hpNo); err == nil && visit != nil {
		entry.Name = visit.Name
		entry.NRIC = visit.NRIC
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hp_no"}},
		UpdateAll: true,
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("add to blacklist: %w", err)
	}
	return nil
}

// Blacklist returns all entries, newest first.
func (s *Store) Blacklist() ([]BlacklistEntry, error) {
	var entries []BlacklistEntry
	if err := s.db.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	return entries, nil
}

// RemoveFromBlacklist lifts the bar on an HP number.
func (s *Store) RemoveFromBlacklist(hpNo string) error {
	if err := s.db.Where("hp_no = ?", hpNo).Delete(&BlacklistEntry{}).Error; err != nil {
		return fmt.Errorf("remove from blacklist: %w", err)
	}
	return nil
}
