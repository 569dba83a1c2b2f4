package models

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Column bounds for User.
const (
	MaxNameLen     = 20
	MaxUsernameLen = 20
)

// User is the single account that owns the watchlist.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:20"`
	Username     string `gorm:"size:20"`
	PasswordHash string `gorm:"size:128"`
}

// TableName keeps the table name singular.
func (User) TableName() string {
	return "user"
}

// SetPassword stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// ValidatePassword reports whether password matches the stored hash.
func (u *User) ValidatePassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// LoginRequest represents the login form. A nil field was not submitted.
type LoginRequest struct {
	Username *string `form:"username"`
	Password *string `form:"password"`
}

// Complete reports whether both fields were submitted.
func (r LoginRequest) Complete() bool {
	return r.Username != nil && r.Password != nil
}

// Empty reports whether either submitted field is blank.
func (r LoginRequest) Empty() bool {
	return value(r.Username) == "" || value(r.Password) == ""
}

// SettingsRequest represents the settings form. A nil Name was not submitted.
type SettingsRequest struct {
	Name *string `form:"name"`
}

// ErrInvalidName is returned for an empty or oversized display name.
var ErrInvalidName = errors.New("name must be 1 to 20 characters")

// Validate checks the display name bound.
func (r SettingsRequest) Validate() error {
	name := value(r.Name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLen {
		return ErrInvalidName
	}
	return nil
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
