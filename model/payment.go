package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentStatus is the settlement state of an order
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment records a provider order for a course purchase
type Payment struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"user_id"`
	CourseID        uint            `gorm:"not null;index" json:"course_id"`
	EnrollmentID    *uint           `gorm:"index" json:"enrollment_id,omitempty"`
	ProviderOrderID string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"provider_order_id"`
	Provider        string          `gorm:"type:varchar(30);not null" json:"provider"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency        string          `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`
	Status          PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	ApprovalURL     string          `gorm:"type:text" json:"approval_url,omitempty"`
	CaptureID       string          `gorm:"type:varchar(100)" json:"capture_id,omitempty"`
	CaptureAttempts int             `gorm:"not null;default:0" json:"capture_attempts"`
	FailureReason   string          `gorm:"type:text" json:"failure_reason,omitempty"`
	ProviderPayload datatypes.JSON  `json:"-"` // last raw provider response, for reconciliation
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	// Relationships
	User       *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course     *Course     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
	Enrollment *Enrollment `gorm:"foreignKey:EnrollmentID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// Capturable reports whether a capture may still be attempted
func (p *Payment) Capturable() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusFailed
}
