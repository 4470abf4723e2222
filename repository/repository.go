// Package repository is the persistence boundary of the API. Services depend on
// Store and never see *gorm.DB directly.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sahilchouksey/coursemart-api/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories and opens transactions over them
type Store interface {
	Users() UserRepository
	Challenges() ChallengeRepository
	Courses() CourseRepository
	Enrollments() EnrollmentRepository
	Payments() PaymentRepository

	// WithinTx runs fn against a transactional Store. Any error returned by fn
	// rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByEmailForUpdate locks the row until the surrounding transaction ends
	GetByEmailForUpdate(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Save(ctx context.Context, user *model.User) error
}

type ChallengeRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*model.OTPChallenge, error)
	// Replace removes any challenge of the user and stores the given one
	Replace(ctx context.Context, challenge *model.OTPChallenge) error
	// IncrementAttempts bumps the failed attempt counter and returns the new value
	IncrementAttempts(ctx context.Context, id uint) (int, error)
	DeleteByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CourseFilter narrows ListCourses
type CourseFilter struct {
	Search        string
	PublishedOnly bool
	InstructorID  uint
	Page          int
	Limit         int
}

type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (*model.Course, error)
	GetByIDForUpdate(ctx context.Context, id uint) (*model.Course, error)
	List(ctx context.Context, filter CourseFilter) ([]model.Course, int64, error)
	Create(ctx context.Context, course *model.Course) error
	Save(ctx context.Context, course *model.Course) error
	Delete(ctx context.Context, id uint) error
}

type EnrollmentRepository interface {
	Get(ctx context.Context, userID, courseID uint) (*model.Enrollment, error)
	Create(ctx context.Context, enrollment *model.Enrollment) error
	Save(ctx context.Context, enrollment *model.Enrollment) error
	CountByCourse(ctx context.Context, courseID uint) (int64, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Enrollment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]model.Enrollment, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByProviderOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	GetByProviderOrderIDForUpdate(ctx context.Context, orderID string) (*model.Payment, error)
	// GetPending returns the newest PENDING payment of a user for a course
	GetPending(ctx context.Context, userID, courseID uint) (*model.Payment, error)
	Save(ctx context.Context, payment *model.Payment) error
	ListByUser(ctx context.Context, userID uint) ([]model.Payment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]model.Payment, error)
	// FailStalePending marks PENDING payments last touched before the cutoff as FAILED
	FailStalePending(ctx context.Context, before time.Time, reason string) (int64, error)
}
