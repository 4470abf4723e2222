package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserStatus is the verification state of an account
type UserStatus string

const (
	UserStatusPending UserStatus = "PENDING"
	UserStatusActive  UserStatus = "ACTIVE"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null;type:varchar(320)" json:"email"` // stored normalized
	PasswordHash string         `gorm:"not null" json:"-"`                                   // Never expose password in JSON
	Name         string         `gorm:"type:varchar(255)" json:"name"`
	Role         Role           `gorm:"type:varchar(20);not null;default:'STUDENT'" json:"role"`
	Status       UserStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	VerifiedAt   *time.Time     `json:"verified_at,omitempty"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Challenge   *OTPChallenge `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Enrollments []Enrollment  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Payments    []Payment     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsActive reports whether the account finished email verification
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// NormalizeEmail is the canonical form used for storage and lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
