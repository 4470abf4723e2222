package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Course is a purchasable course owned by an instructor
type Course struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
	InstructorID uint            `gorm:"not null;index" json:"instructor_id"`
	Title        string          `gorm:"not null;type:varchar(255)" json:"title"`
	Description  string          `gorm:"type:text" json:"description"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Capacity     int             `gorm:"not null;default:0" json:"capacity"` // 0 means unlimited
	Published    bool            `gorm:"not null;default:false;index" json:"published"`

	// Relationships
	Instructor  User         `gorm:"foreignKey:InstructorID;constraint:OnDelete:CASCADE" json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsFree reports whether the course can be joined without payment
func (c *Course) IsFree() bool {
	return c.Price.IsZero()
}

// HasSeat reports whether another enrollment fits under the capacity limit
func (c *Course) HasSeat(enrolled int64) bool {
	return c.Capacity == 0 || enrolled < int64(c.Capacity)
}
