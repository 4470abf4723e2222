package services

import (
	"context"
	"sync"
	"testing"

	"github.com/sahilchouksey/coursemart-api/model"
	"github.com/sahilchouksey/coursemart-api/repository"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlementFixture struct {
	svc        *SettlementService
	store      *repository.MemoryStore
	provider   *fakeProvider
	instructor *model.User
	student    *model.User
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()
	ctx := context.Background()

	f := &settlementFixture{
		store:      repository.NewMemoryStore(),
		provider:   &fakeProvider{nextOrderID: "P1"},
		instructor: &model.User{Email: "instructor@x.com", Role: model.RoleInstructor, Status: model.UserStatusActive},
		student:    &model.User{Email: "a@x.com", Role: model.RoleStudent, Status: model.UserStatusActive},
	}
	require.NoError(t, f.store.Users().Create(ctx, f.instructor))
	require.NoError(t, f.store.Users().Create(ctx, f.student))

	f.svc = NewSettlementService(f.store, f.provider, SettlementConfig{
		Currency:  "USD",
		ReturnURL: "https://shop/return",
		CancelURL: "https://shop/cancel",
	})
	return f
}

func (f *settlementFixture) course(t *testing.T, price string, capacity int, published bool) *model.Course {
	t.Helper()
	c := &model.Course{
		InstructorID: f.instructor.ID,
		Title:        "Go in Practice",
		Price:        decimal.RequireFromString(price),
		Capacity:     capacity,
		Published:    published,
	}
	require.NoError(t, f.store.Courses().Create(context.Background(), c))
	return c
}

func TestCreateOrderAndCapture(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "99.99", 0, true)

	payment, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, "P1", payment.ProviderOrderID)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("99.99")))
	assert.Equal(t, "https://pay.test/approve/P1", payment.ApprovalURL)

	require.Len(t, f.provider.created, 1)
	assert.Equal(t, "USD", f.provider.created[0].Currency)
	assert.Equal(t, "https://shop/return", f.provider.created[0].ReturnURL)

	result, err := f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, "CAP-P1", result.Payment.CaptureID)
	assert.Equal(t, model.EnrollmentStatusActive, result.Enrollment.Status)
	require.NotNil(t, result.Payment.EnrollmentID)
	assert.Equal(t, result.Enrollment.ID, *result.Payment.EnrollmentID)
}

func TestCaptureOrder_SecondCaptureConflicts(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	require.NoError(t, err)

	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, 1, f.provider.captures)

	enrollments, err := f.store.Enrollments().ListByCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
}

func TestCaptureOrder_ConcurrentCapturesEnrollOnce(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CaptureOrder(ctx, "P1", f.student.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	count, err := f.store.Enrollments().CountByCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCaptureOrder_ProviderFailureMarksFailedAndAllowsRetry(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	f.provider.captureErr = errProviderDown
	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	assert.True(t, apperror.Is(err, apperror.KindExternalService))

	payment, err := f.store.Payments().GetByProviderOrderID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
	assert.Equal(t, 1, payment.CaptureAttempts)
	assert.Contains(t, payment.FailureReason, "provider unavailable")

	_, err = f.store.Enrollments().Get(ctx, f.student.ID, course.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	f.provider.captureErr = nil
	result, err := f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, result.Payment.Status)
	assert.Equal(t, 2, result.Payment.CaptureAttempts)
	assert.Empty(t, result.Payment.FailureReason)
}

func TestCaptureOrder_NonCompletedStatusIsAFailure(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	f.provider.captureStatus = "PAYER_ACTION_REQUIRED"
	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	assert.True(t, apperror.Is(err, apperror.KindExternalService))

	payment, err := f.store.Payments().GetByProviderOrderID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
}

func TestCaptureOrder_Ownership(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CaptureOrder(ctx, "missing", f.student.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.CaptureOrder(ctx, "P1", f.instructor.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	assert.Equal(t, 0, f.provider.captures)
}

func TestCreateOrder_Rejections(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, f.student.ID, 999)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	draft := f.course(t, "10.00", 0, false)
	_, err = f.svc.CreateOrder(ctx, f.student.ID, draft.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	free := f.course(t, "0", 0, true)
	_, err = f.svc.CreateOrder(ctx, f.student.ID, free.ID)
	assert.True(t, apperror.Is(err, apperror.KindInvalidState))

	full := f.course(t, "10.00", 1, true)
	require.NoError(t, f.store.Enrollments().Create(ctx, &model.Enrollment{UserID: f.instructor.ID, CourseID: full.ID}))
	_, err = f.svc.CreateOrder(ctx, f.student.ID, full.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	open := f.course(t, "10.00", 0, true)
	require.NoError(t, f.store.Enrollments().Create(ctx, &model.Enrollment{UserID: f.student.ID, CourseID: open.ID}))
	_, err = f.svc.CreateOrder(ctx, f.student.ID, open.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	assert.Empty(t, f.provider.created)
}

func TestCreateOrder_ProviderFailurePersistsNothing(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	f.provider.createErr = errProviderDown
	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	assert.True(t, apperror.Is(err, apperror.KindExternalService))

	payments, err := f.store.Payments().ListByUser(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreateOrder_DuplicateProviderOrderID(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	first := f.course(t, "10.00", 0, true)
	second := f.course(t, "20.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, first.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(ctx, f.student.ID, second.ID)
	assert.True(t, apperror.Is(err, apperror.KindInternal))
}

func TestEnrollFree(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	free := f.course(t, "0", 1, true)
	enrollment, err := f.svc.EnrollFree(ctx, f.student.ID, free.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)

	_, err = f.svc.EnrollFree(ctx, f.student.ID, free.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	_, err = f.svc.EnrollFree(ctx, f.instructor.ID, free.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict), "capacity reached")

	paid := f.course(t, "5.00", 0, true)
	_, err = f.svc.EnrollFree(ctx, f.student.ID, paid.ID)
	assert.True(t, apperror.Is(err, apperror.KindInvalidState))

	mine, err := f.svc.ListMyEnrollments(ctx, f.student.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Course)
	assert.Equal(t, free.ID, mine[0].Course.ID)
}

func TestCourseListings_Permissions(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	_, err = f.svc.GetCoursePayments(ctx, f.student, course.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	other := &model.User{ID: 500, Role: model.RoleInstructor}
	_, err = f.svc.GetCourseEnrollments(ctx, other, course.ID)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))

	payments, err := f.svc.GetCoursePayments(ctx, f.instructor, course.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	admin := &model.User{ID: 900, Role: model.RoleAdmin}
	enrollments, err := f.svc.GetCourseEnrollments(ctx, admin, course.ID)
	require.NoError(t, err)
	assert.Empty(t, enrollments)

	_, err = f.svc.GetCoursePayments(ctx, admin, 12345)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	mine, err := f.svc.ListMyPayments(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateOrder_ReusesPendingOrder(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	first, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	f.provider.nextOrderID = "P2"
	second, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "P1", second.ProviderOrderID)
	assert.Len(t, f.provider.created, 1)

	// A price change opens a fresh order at the new price
	course.Price = decimal.RequireFromString("12.00")
	require.NoError(t, f.store.Courses().Save(ctx, course))
	third, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "P2", third.ProviderOrderID)
	assert.True(t, third.Amount.Equal(decimal.RequireFromString("12.00")))
}

func TestCaptureOrder_SecondOrderForOwnedCourseIsNotCharged(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	f.provider.captureErr = errProviderDown
	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	require.Error(t, err)
	f.provider.captureErr = nil

	// P1 is FAILED, so a new order is opened and settled
	f.provider.nextOrderID = "P2"
	_, err = f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	_, err = f.svc.CaptureOrder(ctx, "P2", f.student.ID)
	require.NoError(t, err)
	require.Equal(t, 2, f.provider.captures)

	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, 2, f.provider.captures, "provider must not be called again")

	p1, err := f.store.Payments().GetByProviderOrderID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, p1.Status)

	count, err := f.store.Enrollments().CountByCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCaptureOrder_EnrollmentDuringProviderCallIsFlagged(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	course := f.course(t, "10.00", 0, true)

	_, err := f.svc.CreateOrder(ctx, f.student.ID, course.ID)
	require.NoError(t, err)

	f.provider.onCapture = func(string) {
		require.NoError(t, f.store.Enrollments().Create(ctx, &model.Enrollment{
			UserID:   f.student.ID,
			CourseID: course.ID,
			Status:   model.EnrollmentStatusActive,
		}))
	}

	_, err = f.svc.CaptureOrder(ctx, "P1", f.student.ID)
	assert.True(t, apperror.Is(err, apperror.KindConflict))

	payment, err := f.store.Payments().GetByProviderOrderID(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
	assert.Equal(t, DuplicateCaptureReason, payment.FailureReason)
	assert.Equal(t, "CAP-P1", payment.CaptureID)
	assert.Nil(t, payment.EnrollmentID)
}
