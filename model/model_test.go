package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("")
	assert.True(t, ok)
	assert.Equal(t, RoleStudent, r)

	r, ok = ParseRole(" instructor ")
	assert.True(t, ok)
	assert.Equal(t, RoleInstructor, r)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@example.com", NormalizeEmail("  Ann@Example.COM "))
}

func TestOTPChallengeIsLive(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := OTPChallenge{IssuedAt: now, ExpiresAt: now.Add(5 * time.Minute)}

	assert.True(t, c.IsLive(now.Add(4*time.Minute)))
	assert.False(t, c.IsLive(now.Add(5*time.Minute)))
	assert.False(t, c.IsLive(now.Add(6*time.Minute)))
}

func TestOTPChallengeResendAvailableIn(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := OTPChallenge{IssuedAt: now}

	assert.Equal(t, 45*time.Second, c.ResendAvailableIn(now.Add(15*time.Second), time.Minute))
	assert.Equal(t, time.Duration(0), c.ResendAvailableIn(now.Add(2*time.Minute), time.Minute))
}

func TestCourseSeats(t *testing.T) {
	unlimited := Course{Capacity: 0}
	assert.True(t, unlimited.HasSeat(10000))

	small := Course{Capacity: 2, Price: decimal.RequireFromString("99.99")}
	assert.True(t, small.HasSeat(1))
	assert.False(t, small.HasSeat(2))
	assert.False(t, small.IsFree())
}

func TestPaymentCapturable(t *testing.T) {
	assert.True(t, (&Payment{Status: PaymentStatusPending}).Capturable())
	assert.True(t, (&Payment{Status: PaymentStatusFailed}).Capturable())
	assert.False(t, (&Payment{Status: PaymentStatusCompleted}).Capturable())
}
