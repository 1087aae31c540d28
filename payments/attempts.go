package payments

import (
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"
)

// PaymentAttempts stores the minimal bookkeeping needed to decide whether an
// outbound payment can be retried: how many attempts have been made, and
// when the first one was made.
type PaymentAttempts struct {
	// Count is incremented only after the result of an attempt is known.
	// A zero count means the first attempt's result isn't known yet.
	Count uint64

	// FirstAttemptedAt is only meaningful when the payment's retry
	// strategy is RetryTimeout, and only when a clock was supplied (see
	// Retry.IsRetryableNow).
	FirstAttemptedAt time.Time
}

// NewPaymentAttempts returns a zeroed PaymentAttempts, stamping
// FirstAttemptedAt from clk if one was supplied.
func NewPaymentAttempts(clk fn.Option[clock.Clock]) PaymentAttempts {
	var a PaymentAttempts
	clk.WhenSome(func(c clock.Clock) {
		a.FirstAttemptedAt = c.Now()
	})
	return a
}

// String implements fmt.Stringer.
func (a PaymentAttempts) String() string {
	return fmt.Sprintf("attempts: %d", a.Count)
}

// retryKind distinguishes the two Retry strategies.
type retryKind uint8

const (
	retryKindAttempts retryKind = iota
	retryKindTimeout
)

// Retry is the strategy governing whether a failed payment may be retried
// automatically. It is a closed sum type with two variants: a bounded
// number of Attempts, or a wall-clock Timeout.
type Retry struct {
	kind retryKind
	maxAttempts uint64
	timeout time.Duration
}

// RetryWithAttempts builds a Retry strategy that permits up to max attempts.
func RetryWithAttempts(max uint64) Retry {
	return Retry{kind: retryKindAttempts, maxAttempts: max}
}

// RetryWithTimeout builds a Retry strategy that permits retries until d has
// elapsed since the first attempt.
func RetryWithTimeout(d time.Duration) Retry {
	return Retry{kind: retryKindTimeout, timeout: d}
}

// IsRetryableNow reports whether another attempt is permitted given the
// attempts made so far. For RetryTimeout, a missing clock (environments
// without a monotonic clock) degrades the strategy to perpetually
// non-retryable.
func (r Retry) IsRetryableNow(attempts PaymentAttempts, clk fn.Option[clock.Clock]) bool {
	switch r.kind {
	case retryKindAttempts:
		return attempts.Count < r.maxAttempts

	case retryKindTimeout:
		if clk.IsNone() {
			return false
		}
		var now time.Time
		clk.WhenSome(func(c clock.Clock) { now = c.Now() })
		return now.Sub(attempts.FirstAttemptedAt) <= r.timeout

	default:
		return false
	}
}
