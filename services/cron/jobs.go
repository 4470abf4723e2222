package cron

import (
	"context"
	"fmt"
	"time"
)

const (
	JobCleanupExpiredOTP  = "cleanup_expired_otp"
	JobCleanupBlacklist   = "cleanup_token_blacklist"
	JobAbandonStaleOrders = "abandon_stale_orders"

	// ExpiredChallengeRetention keeps expired challenges around briefly for support lookups
	ExpiredChallengeRetention = time.Hour
	// StalePaymentAge is how long a PENDING order may wait for capture
	StalePaymentAge = 24 * time.Hour
	// AbandonedReason is stored on payments failed by AbandonStalePayments
	AbandonedReason = "abandoned"
)

// CleanupExpiredChallenges deletes OTP challenges that expired more than an hour ago.
// Verification never depends on this sweep; expiry is checked on read.
func (m *CronManager) CleanupExpiredChallenges(ctx context.Context) (int64, error) {
	removed, err := m.store.Challenges().DeleteExpired(ctx, m.now().Add(-ExpiredChallengeRetention))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired challenges: %w", err)
	}
	return removed, nil
}

// CleanupTokenBlacklist removes blacklist entries whose tokens have expired anyway
func (m *CronManager) CleanupTokenBlacklist(ctx context.Context) (int64, error) {
	if m.tokens == nil {
		return 0, nil
	}
	removed, err := m.tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup token blacklist: %w", err)
	}
	return removed, nil
}

// AbandonStalePayments marks PENDING payments untouched for StalePaymentAge as FAILED.
// FAILED payments remain capturable if the buyer returns.
func (m *CronManager) AbandonStalePayments(ctx context.Context) (int64, error) {
	failed, err := m.store.Payments().FailStalePending(ctx, m.now().Add(-StalePaymentAge), AbandonedReason)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon stale payments: %w", err)
	}
	return failed, nil
}
