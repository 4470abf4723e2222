package model

import "time"

// OTPChallenge is the single outstanding email verification code of a user.
// Only the bcrypt hash of the code is persisted.
type OTPChallenge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	CodeHash  string    `gorm:"not null" json:"-"`
	IssuedAt  time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for OTPChallenge
func (OTPChallenge) TableName() string {
	return "otp_challenges"
}

// IsLive is the sole expiry authority: a challenge counts only while now < ExpiresAt
func (o *OTPChallenge) IsLive(now time.Time) bool {
	return now.Before(o.ExpiresAt)
}

// ResendAvailableIn returns how long until a new code may be issued
func (o *OTPChallenge) ResendAvailableIn(now time.Time, cooldown time.Duration) time.Duration {
	wait := o.IssuedAt.Add(cooldown).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
