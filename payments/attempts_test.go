package payments

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

func TestRetryWithAttemptsIsRetryableNow(t *testing.T) {
	r := RetryWithAttempts(3)

	require.True(t, r.IsRetryableNow(PaymentAttempts{Count: 0}, fn.None[clock.Clock]()))
	require.True(t, r.IsRetryableNow(PaymentAttempts{Count: 2}, fn.None[clock.Clock]()))
	require.False(t, r.IsRetryableNow(PaymentAttempts{Count: 3}, fn.None[clock.Clock]()))
}

func TestRetryWithTimeoutNoClockNeverRetryable(t *testing.T) {
	r := RetryWithTimeout(time.Hour)

	require.False(t, r.IsRetryableNow(PaymentAttempts{}, fn.None[clock.Clock]()))
}

func TestRetryWithTimeoutRespectsElapsedTime(t *testing.T) {
	testClock := clock.NewTestClock(time.Unix(1000, 0))
	r := RetryWithTimeout(time.Minute)

	attempts := NewPaymentAttempts(fn.Some[clock.Clock](testClock))
	require.True(t, r.IsRetryableNow(attempts, fn.Some[clock.Clock](testClock)))

	testClock.SetTime(testClock.Now().Add(2 * time.Minute))
	require.False(t, r.IsRetryableNow(attempts, fn.Some[clock.Clock](testClock)))
}

func TestNewPaymentAttemptsStampsFirstAttempt(t *testing.T) {
	testClock := clock.NewTestClock(time.Unix(500, 0))

	withClock := NewPaymentAttempts(fn.Some[clock.Clock](testClock))
	require.Equal(t, testClock.Now(), withClock.FirstAttemptedAt)

	withoutClock := NewPaymentAttempts(fn.None[clock.Clock]())
	require.True(t, withoutClock.FirstAttemptedAt.IsZero())
}
