package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sahilchouksey/coursemart-api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of GORM. The *gorm.DB should be opened
// with TranslateError so unique violations surface as ErrDuplicate.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a Store backed by db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository             { return &gormUsers{db: s.db} }
func (s *GormStore) Challenges() ChallengeRepository   { return &gormChallenges{db: s.db} }
func (s *GormStore) Courses() CourseRepository         { return &gormCourses{db: s.db} }
func (s *GormStore) Enrollments() EnrollmentRepository { return &gormEnrollments{db: s.db} }
func (s *GormStore) Payments() PaymentRepository       { return &gormPayments{db: s.db} }

// WithinTx runs fn inside a database transaction
func (s *GormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps GORM errors onto the repository sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", model.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) GetByEmailForUpdate(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := forUpdate(r.db.WithContext(ctx)).
		Where("email = ?", model.NormalizeEmail(email)).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *gormUsers) Create(ctx context.Context, user *model.User) error {
	user.Email = model.NormalizeEmail(user.Email)
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) Save(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

type gormChallenges struct {
	db *gorm.DB
}

func (r *gormChallenges) GetByUserID(ctx context.Context, userID uint) (*model.OTPChallenge, error) {
	var challenge model.OTPChallenge
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&challenge).Error; err != nil {
		return nil, translate(err)
	}
	return &challenge, nil
}

func (r *gormChallenges) Replace(ctx context.Context, challenge *model.OTPChallenge) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", challenge.UserID).Delete(&model.OTPChallenge{}).Error; err != nil {
			return err
		}
		challenge.ID = 0
		return tx.Create(challenge).Error
	}))
}

func (r *gormChallenges) IncrementAttempts(ctx context.Context, id uint) (int, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&model.OTPChallenge{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1"))
	if result.Error != nil {
		return 0, translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var attempts int
	if err := db.Model(&model.OTPChallenge{}).Where("id = ?", id).Pluck("attempts", &attempts).Error; err != nil {
		return 0, translate(err)
	}
	return attempts, nil
}

func (r *gormChallenges) DeleteByUserID(ctx context.Context, userID uint) error {
	return translate(r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.OTPChallenge{}).Error)
}

func (r *gormChallenges) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&model.OTPChallenge{})
	return result.RowsAffected, translate(result.Error)
}

type gormCourses struct {
	db *gorm.DB
}

func (r *gormCourses) GetByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *gormCourses) GetByIDForUpdate(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := forUpdate(r.db.WithContext(ctx)).First(&course, id).Error; err != nil {
		return nil, translate(err)
	}
	return &course, nil
}

func (r *gormCourses) List(ctx context.Context, filter CourseFilter) ([]model.Course, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Course{})

	if filter.PublishedOnly {
		query = query.Where("published = ?", true)
	}
	if filter.InstructorID != 0 {
		query = query.Where("instructor_id = ?", filter.InstructorID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var courses []model.Course
	offset := (filter.Page - 1) * filter.Limit
	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&courses).Error
	if err != nil {
		return nil, 0, translate(err)
	}

	return courses, total, nil
}

func (r *gormCourses) Create(ctx context.Context, course *model.Course) error {
	return translate(r.db.WithContext(ctx).Create(course).Error)
}

func (r *gormCourses) Save(ctx context.Context, course *model.Course) error {
	return translate(r.db.WithContext(ctx).Save(course).Error)
}

func (r *gormCourses) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&model.Course{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormEnrollments struct {
	db *gorm.DB
}

func (r *gormEnrollments) Get(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &enrollment, nil
}

func (r *gormEnrollments) Create(ctx context.Context, enrollment *model.Enrollment) error {
	return translate(r.db.WithContext(ctx).Create(enrollment).Error)
}

func (r *gormEnrollments) Save(ctx context.Context, enrollment *model.Enrollment) error {
	return translate(r.db.WithContext(ctx).Save(enrollment).Error)
}

func (r *gormEnrollments) CountByCourse(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, translate(err)
}

func (r *gormEnrollments) ListByUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, translate(err)
}

func (r *gormEnrollments) ListByCourse(ctx context.Context, courseID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, translate(err)
}

type gormPayments struct {
	db *gorm.DB
}

func (r *gormPayments) Create(ctx context.Context, payment *model.Payment) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *gormPayments) GetByProviderOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	var payment model.Payment
	if err := r.db.WithContext(ctx).Where("provider_order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *gormPayments) GetByProviderOrderIDForUpdate(ctx context.Context, orderID string) (*model.Payment, error) {
	var payment model.Payment
	err := forUpdate(r.db.WithContext(ctx)).
		Where("provider_order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *gormPayments) GetPending(ctx context.Context, userID, courseID uint) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.PaymentStatusPending).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (r *gormPayments) Save(ctx context.Context, payment *model.Payment) error {
	return translate(r.db.WithContext(ctx).Save(payment).Error)
}

func (r *gormPayments) ListByUser(ctx context.Context, userID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, translate(err)
}

func (r *gormPayments) ListByCourse(ctx context.Context, courseID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, translate(err)
}

func (r *gormPayments) FailStalePending(ctx context.Context, before time.Time, reason string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("status = ? AND updated_at < ?", model.PaymentStatusPending, before).
		Updates(map[string]interface{}{
			"status":         model.PaymentStatusFailed,
			"failure_reason": reason,
		})
	return result.RowsAffected, translate(result.Error)
}
