package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// hashPassword digests a user id and password pair. The user id is mixed in
// so two operators with the same password hash differently.
func hashPassword(userID, password string) string {
	sum := sha256.Sum256([]byte(userID + "::" + password))
	return hex.EncodeToString(sum[:])
}

// CreateUser adds a desk operator account. Duplicate user ids fail.
func (s *Store) CreateUser(name, organization, userID, password, role string) error {
	user := User{
		Name:         name,
		Organization: organization,
		UserID:       userID,
		PasswordHash: hashPassword(userID, password),
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserByCredentials returns the account matching the id/password pair, or
// (nil, nil) when none matches.
func (s *Store) UserByCredentials(userID, password string) (*User, error) {
	var user User
	err := s.db.Where("user_id = ? AND password_hash = ?", userID, hashPassword(userID, password)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return &user, nil
}

// UserByID returns the account for a user id without a password check, or
// (nil, nil) when absent.
func (s *Store) UserByID(userID string) (*User, error) {
	var user User
	err := s.db.Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return &user, nil
}

// ListUsers returns all accounts, oldest first.
func (s *Store) ListUsers() ([]User, error) {
	var users []User
	if err := s.db.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DeleteUser removes an account by user id.
func (s *Store) DeleteUser(userID string) error {
	if err := s.db.Where("user_id = ?", userID).Delete(&User{}).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// SetUserActive enables or disables an account.
func (s *Store) SetUserActive(userID string, active bool) error {
	err := s.db.Model(&User{}).Where("user_id = ?", userID).
		Update("is_active", active).Error
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}

// SetUserRole changes an account's role.
func (s *Store) SetUserRole(userID, role string) error {
	err := s.db.Model(&User{}).Where("user_id = ?", userID).
		Update("role", role).Error
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	return nil
}
