package model

import "time"

// EnrollmentStatus is the state of a user's seat in a course
type EnrollmentStatus string

const (
	EnrollmentStatusPending EnrollmentStatus = "PENDING"
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
)

// Enrollment links a user to a course; at most one per (user, course)
type Enrollment struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID  uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course;index" json:"course_id"`
	Status    EnrollmentStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	// Relationships
	Course *Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}
