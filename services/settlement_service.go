package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/services/paypal"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
	"github.com/sahilchouksey/coursemart-api/utils/authz"
	"gorm.io/datatypes"
)

// DuplicateCaptureReason marks a payment whose funds were captured after the
// course had already been settled by another order
const DuplicateCaptureReason = "captured after enrollment was already active, refund required"

// PaymentProvider creates and captures provider-side orders
type PaymentProvider interface {
	Name() string
	CreateOrder(ctx context.Context, input paypal.CreateOrderInput) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
}

// SettlementConfig holds order creation parameters
type SettlementConfig struct {
	Currency        string
	ReturnURL       string
	CancelURL       string
	ProviderTimeout time.Duration
}

// SettlementService takes a purchase from order creation to an ACTIVE enrollment
type SettlementService struct {
	store    repository.Store
	provider PaymentProvider
	config   SettlementConfig
	now      func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(store repository.Store, provider PaymentProvider, config SettlementConfig) *SettlementService {
	if config.Currency == "" {
		config.Currency = "USD"
	}
	if config.ProviderTimeout == 0 {
		config.ProviderTimeout = 15 * time.Second
	}
	return &SettlementService{
		store:    store,
		provider: provider,
		config:   config,
		now:      time.Now,
	}
}

// CaptureResult is the settled payment together with the enrollment it produced
type CaptureResult struct {
	Payment    *model.Payment    `json:"payment"`
	Enrollment *model.Enrollment `json:"enrollment"`
}

// loadPurchasableCourse returns the course if the user may still buy a seat in it
func loadPurchasableCourse(ctx context.Context, tx repository.Store, userID, courseID uint, lock bool) (*model.Course, error) {
	var (
		course *model.Course
		err    error
	)
	if lock {
		course, err = tx.Courses().GetByIDForUpdate(ctx, courseID)
	} else {
		course, err = tx.Courses().GetByID(ctx, courseID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Course not found")
	}
	if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, apperror.NotFound("Course not found")
	}

	_, err = tx.Enrollments().Get(ctx, userID, courseID)
	if err == nil {
		return nil, apperror.Conflict("Already enrolled in this course")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	enrolled, err := tx.Enrollments().CountByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.HasSeat(enrolled) {
		return nil, apperror.Conflict("Course is full")
	}

	return course, nil
}

// CreateOrder opens a provider order for the current course price and records it as PENDING.
// Nothing is persisted when the provider call fails.
func (s *SettlementService) CreateOrder(ctx context.Context, userID, courseID uint) (*model.Payment, error) {
	course, err := loadPurchasableCourse(ctx, s.store, userID, courseID, false)
	if err != nil {
		return nil, wrapInternal("Failed to load course", err)
	}
	if course.IsFree() {
		return nil, apperror.InvalidState("Course is free, enroll directly instead")
	}

	// An open order at the current price is handed back instead of opening a second one
	pending, err := s.store.Payments().GetPending(ctx, userID, course.ID)
	switch {
	case err == nil && pending.Amount.Equal(course.Price) && pending.Currency == s.config.Currency:
		log.Infow("reusing pending payment order", "payment_id", pending.ID, "provider_order_id", pending.ProviderOrderID)
		return pending, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, apperror.Internal("Failed to load payments", err)
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	order, err := s.provider.CreateOrder(providerCtx, paypal.CreateOrderInput{
		Amount:      course.Price,
		Currency:    s.config.Currency,
		Description: course.Title,
		ReferenceID: fmt.Sprintf("course-%d-user-%d", course.ID, userID),
		ReturnURL:   s.config.ReturnURL,
		CancelURL:   s.config.CancelURL,
	})
	if err != nil {
		log.Errorw("payment order creation failed", "user_id", userID, "course_id", courseID, "error", err)
		return nil, apperror.ExternalService("Failed to create payment order", err)
	}

	payment := &model.Payment{
		UserID:          userID,
		CourseID:        course.ID,
		ProviderOrderID: order.ID,
		Provider:        s.provider.Name(),
		Amount:          course.Price,
		Currency:        s.config.Currency,
		Status:          model.PaymentStatusPending,
		ApprovalURL:     order.ApprovalURL(),
		ProviderPayload: datatypes.JSON(order.Raw),
	}
	if err := s.store.Payments().Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			log.Errorw("duplicate provider order id", "provider_order_id", order.ID, "user_id", userID)
			return nil, apperror.Internal("Duplicate provider order id", err)
		}
		return nil, apperror.Internal("Failed to save payment", err)
	}

	log.Infow("payment order created", "payment_id", payment.ID, "provider_order_id", payment.ProviderOrderID, "amount", payment.Amount.String())
	return payment, nil
}

// checkCapturable loads and locks the payment, rejecting foreign and settled orders
func checkCapturable(ctx context.Context, tx repository.Store, orderID string, userID uint) (*model.Payment, error) {
	payment, err := tx.Payments().GetByProviderOrderIDForUpdate(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Payment not found")
	}
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, apperror.Forbidden("You do not have access to this payment")
	}
	if !payment.Capturable() {
		return nil, apperror.Conflict("Payment already completed")
	}
	return payment, nil
}

// activeEnrollment returns the user's ACTIVE enrollment in the course, or nil
func activeEnrollment(ctx context.Context, tx repository.Store, userID, courseID uint) (*model.Enrollment, error) {
	enrollment, err := tx.Enrollments().Get(ctx, userID, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.EnrollmentStatusActive {
		return nil, nil
	}
	return enrollment, nil
}

// CaptureOrder confirms funds with the provider and, on success, completes the payment
// and creates the enrollment in one transaction. A provider failure marks the payment
// FAILED, which stays capturable. Orders for a course the user already owns are
// rejected before the provider is called.
func (s *SettlementService) CaptureOrder(ctx context.Context, orderID string, userID uint) (*CaptureResult, error) {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		payment, err := checkCapturable(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		enrolled, err := activeEnrollment(ctx, tx, payment.UserID, payment.CourseID)
		if err != nil {
			return err
		}
		if enrolled != nil {
			return apperror.Conflict("Already enrolled in this course")
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal("Failed to load payment", err)
	}

	// The provider call runs without holding the row lock; the state is re-checked below
	providerCtx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	capture, captureErr := s.provider.CaptureOrder(providerCtx, orderID)
	cancel()
	if captureErr == nil && !capture.Completed() {
		captureErr = fmt.Errorf("provider reported status %q", capture.Status)
	}

	var (
		result    *CaptureResult
		duplicate bool
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		payment, err := checkCapturable(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}

		payment.CaptureAttempts++
		if capture != nil && len(capture.Raw) > 0 {
			payment.ProviderPayload = datatypes.JSON(capture.Raw)
		}

		if captureErr != nil {
			payment.Status = model.PaymentStatusFailed
			payment.FailureReason = captureErr.Error()
			return tx.Payments().Save(ctx, payment)
		}

		enrollment, err := activeEnrollment(ctx, tx, payment.UserID, payment.CourseID)
		if err != nil {
			return err
		}
		if enrollment != nil {
			// Another order settled the course while this one was at the provider
			duplicate = true
			payment.Status = model.PaymentStatusFailed
			payment.CaptureID = capture.CaptureID
			payment.FailureReason = DuplicateCaptureReason
			return tx.Payments().Save(ctx, payment)
		}

		now := s.now()
		payment.Status = model.PaymentStatusCompleted
		payment.CaptureID = capture.CaptureID
		payment.FailureReason = ""
		payment.CompletedAt = &now

		enrollment, err = tx.Enrollments().Get(ctx, payment.UserID, payment.CourseID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			enrollment = &model.Enrollment{
				UserID:   payment.UserID,
				CourseID: payment.CourseID,
				Status:   model.EnrollmentStatusActive,
			}
			if err := tx.Enrollments().Create(ctx, enrollment); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			enrollment.Status = model.EnrollmentStatusActive
			if err := tx.Enrollments().Save(ctx, enrollment); err != nil {
				return err
			}
		}

		payment.EnrollmentID = &enrollment.ID
		if err := tx.Payments().Save(ctx, payment); err != nil {
			return err
		}

		result = &CaptureResult{Payment: payment, Enrollment: enrollment}
		return nil
	})
	if err != nil {
		return nil, wrapInternal("Failed to settle payment", err)
	}

	if captureErr != nil {
		log.Warnw("payment capture failed", "provider_order_id", orderID, "user_id", userID, "error", captureErr)
		return nil, apperror.ExternalService("Payment capture failed", captureErr)
	}
	if duplicate {
		log.Errorw("payment captured for an already enrolled course, refund required", "provider_order_id", orderID, "user_id", userID, "capture_id", capture.CaptureID)
		return nil, apperror.Conflict("Already enrolled in this course")
	}

	log.Infow("payment captured", "payment_id", result.Payment.ID, "enrollment_id", result.Enrollment.ID)
	return result, nil
}

// EnrollFree enrolls the user into a free course without a provider round trip
func (s *SettlementService) EnrollFree(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment *model.Enrollment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		// Locking the course serializes seat counting
		course, err := loadPurchasableCourse(ctx, tx, userID, courseID, true)
		if err != nil {
			return err
		}
		if !course.IsFree() {
			return apperror.InvalidState("Course requires payment, create an order instead")
		}

		enrollment = &model.Enrollment{
			UserID:   userID,
			CourseID: courseID,
			Status:   model.EnrollmentStatusActive,
		}
		if err := tx.Enrollments().Create(ctx, enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.Conflict("Already enrolled in this course")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapInternal("Failed to enroll", err)
	}
	return enrollment, nil
}

// managedCourse loads a course and checks the actor may see its listings
func (s *SettlementService) managedCourse(ctx context.Context, actor *model.User, courseID uint) (*model.Course, error) {
	course, err := s.store.Courses().GetByID(ctx, courseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Course not found")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to load course", err)
	}
	if err := authz.RequireCourseManager(actor, course); err != nil {
		return nil, err
	}
	return course, nil
}

// GetCourseEnrollments lists enrollments of a course for its instructor or an admin
func (s *SettlementService) GetCourseEnrollments(ctx context.Context, actor *model.User, courseID uint) ([]model.Enrollment, error) {
	if _, err := s.managedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	enrollments, err := s.store.Enrollments().ListByCourse(ctx, courseID)
	if err != nil {
		return nil, apperror.Internal("Failed to list enrollments", err)
	}
	return enrollments, nil
}

// GetCoursePayments lists payments of a course for its instructor or an admin
func (s *SettlementService) GetCoursePayments(ctx context.Context, actor *model.User, courseID uint) ([]model.Payment, error) {
	if _, err := s.managedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().ListByCourse(ctx, courseID)
	if err != nil {
		return nil, apperror.Internal("Failed to list payments", err)
	}
	return payments, nil
}

// ListMyEnrollments returns the caller's enrollments with their courses
func (s *SettlementService) ListMyEnrollments(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	enrollments, err := s.store.Enrollments().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("Failed to list enrollments", err)
	}
	return enrollments, nil
}

// ListMyPayments returns the caller's payments
func (s *SettlementService) ListMyPayments(ctx context.Context, userID uint) ([]model.Payment, error) {
	payments, err := s.store.Payments().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperror.Internal("Failed to list payments", err)
	}
	return payments, nil
}
