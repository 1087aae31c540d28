package payments

import (
	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/route"
)

// Status is the discriminant of a PendingOutboundPayment. The numeric
// values match the on-disk discriminant byte paymentdb writes, so
// paymentdb can use Status directly as the wire tag.
type Status uint8

const (
	// StatusLegacy marks pre-retry-era persisted state: retries are
	// impossible, and only the session-priv set is tracked.
	StatusLegacy Status = 0

	// StatusFulfilled marks a payment whose preimage has been received;
	// it is kept around only until its remaining HTLCs resolve.
	StatusFulfilled Status = 1

	// StatusRetryable marks a live, possibly-retryable payment.
	StatusRetryable Status = 2

	// StatusAbandoned marks a payment the user gave up on, still
	// waiting for its remaining HTLCs to resolve.
	StatusAbandoned Status = 3
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusLegacy:
		return "legacy"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRetryable:
		return "retryable"
	case StatusAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// PendingOutboundPayment is the per-payment state machine tracked by the
// registry: a closed sum type over {Legacy, Retryable, Fulfilled,
// Abandoned}, modeled as one struct carrying a discriminant plus every
// variant's fields. Methods pattern-match on status rather than relying on
// dynamic dispatch or a type hierarchy.
type PendingOutboundPayment struct {
	status Status

	// sessionPrivs is present in every variant: the set of session
	// secrets identifying HTLCs still outstanding for this payment.
	sessionPrivs map[SessionPriv]struct{}

	// paymentHash is required for Retryable and Abandoned, optional for
	// Fulfilled (set unless it predates this field), and always absent
	// for Legacy.
	paymentHash fn.Option[lntypes.Hash]

	// Retryable-only fields.
	retryStrategy fn.Option[Retry]
	attempts PaymentAttempts
	paymentParams *route.PaymentParameters
	paymentSecret fn.Option[Secret]
	keysendPreimage fn.Option[lntypes.Preimage]
	pendingAmtMSat route.MilliSatoshi
	pendingFeeMSat fn.Option[route.MilliSatoshi]
	totalMSat route.MilliSatoshi
	startingBlockHeight uint32

	// Fulfilled-only field.
	timerTicksWithoutHTLCs uint8
}

// NewLegacy constructs a Legacy payment from a previously-persisted session
// priv set. New code never creates Legacy payments; this constructor exists
// only for paymentdb to reconstruct pre-retry-era state from disk.
func NewLegacy(sessionPrivs []SessionPriv) *PendingOutboundPayment {
	return &PendingOutboundPayment{
		status: StatusLegacy,
		sessionPrivs: sessionPrivSet(sessionPrivs),
	}
}

// NewRetryable constructs a fresh Retryable payment with an empty session
// set; callers insert sessions via Insert once paths are chosen.
func NewRetryable(hash lntypes.Hash, secret fn.Option[Secret],
	keysendPreimage fn.Option[lntypes.Preimage],
	paymentParams *route.PaymentParameters, retryStrategy fn.Option[Retry],
	totalMSat route.MilliSatoshi, startingBlockHeight uint32,
	clk fn.Option[clock.Clock]) *PendingOutboundPayment {

	return &PendingOutboundPayment{
		status: StatusRetryable,
		sessionPrivs: make(map[SessionPriv]struct{}),
		paymentHash: fn.Some(hash),
		retryStrategy: retryStrategy,
		attempts: NewPaymentAttempts(clk),
		paymentParams: paymentParams,
		paymentSecret: secret,
		keysendPreimage: keysendPreimage,
		pendingFeeMSat: fn.Some[route.MilliSatoshi](0),
		totalMSat: totalMSat,
		startingBlockHeight: startingBlockHeight,
	}
}

// NewRetryableFromParts reconstructs a Retryable payment from persisted
// fields. The retry strategy and attempt counter are never persisted: a
// freshly loaded payment always starts with a fresh PaymentAttempts
// counter and no retry strategy, making it manually- but not
// automatically-retryable.
func NewRetryableFromParts(sessionPrivs []SessionPriv, hash lntypes.Hash,
	paymentParams *route.PaymentParameters, secret fn.Option[Secret],
	keysendPreimage fn.Option[lntypes.Preimage],
	pendingAmtMSat route.MilliSatoshi, pendingFeeMSat fn.Option[route.MilliSatoshi],
	totalMSat route.MilliSatoshi, startingBlockHeight uint32) *PendingOutboundPayment {

	return &PendingOutboundPayment{
		status: StatusRetryable,
		sessionPrivs: sessionPrivSet(sessionPrivs),
		paymentHash: fn.Some(hash),
		paymentParams: paymentParams,
		paymentSecret: secret,
		keysendPreimage: keysendPreimage,
		pendingAmtMSat: pendingAmtMSat,
		pendingFeeMSat: pendingFeeMSat,
		totalMSat: totalMSat,
		startingBlockHeight: startingBlockHeight,
		attempts: PaymentAttempts{},
	}
}

// NewFulfilledFromParts reconstructs a Fulfilled payment from persisted
// fields.
func NewFulfilledFromParts(sessionPrivs []SessionPriv,
	hash fn.Option[lntypes.Hash], timerTicks uint8) *PendingOutboundPayment {

	return &PendingOutboundPayment{
		status: StatusFulfilled,
		sessionPrivs: sessionPrivSet(sessionPrivs),
		paymentHash: hash,
		timerTicksWithoutHTLCs: timerTicks,
	}
}

// NewAbandonedFromParts reconstructs an Abandoned payment from persisted
// fields.
func NewAbandonedFromParts(sessionPrivs []SessionPriv,
	hash lntypes.Hash) *PendingOutboundPayment {

	return &PendingOutboundPayment{
		status: StatusAbandoned,
		sessionPrivs: sessionPrivSet(sessionPrivs),
		paymentHash: fn.Some(hash),
	}
}

func sessionPrivSet(privs []SessionPriv) map[SessionPriv]struct{} {
	set := make(map[SessionPriv]struct{}, len(privs))
	for _, p := range privs {
		set[p] = struct{}{}
	}
	return set
}

// Status returns the payment's current variant.
func (p *PendingOutboundPayment) Status() Status {
	return p.status
}

// IncrementAttempts bumps the attempt counter. A no-op for every variant
// but Retryable.
func (p *PendingOutboundPayment) IncrementAttempts() {
	if p.status == StatusRetryable {
		p.attempts.Count++
	}
}

// IsAutoRetryableNow reports whether an automatic retry is currently
// permitted: only true for a Retryable payment that has a retry strategy
// and whose strategy predicate holds.
func (p *PendingOutboundPayment) IsAutoRetryableNow(clk fn.Option[clock.Clock]) bool {
	if p.status != StatusRetryable {
		return false
	}
	retryable := false
	p.retryStrategy.WhenSome(func(r Retry) {
		retryable = r.IsRetryableNow(p.attempts, clk)
	})
	return retryable
}

// IsRetryableNow reports whether a manual retry is currently permitted.
// Manual retries are always allowed when no strategy is set (the caller is
// driving retries themselves); otherwise it defers to the strategy.
func (p *PendingOutboundPayment) IsRetryableNow(clk fn.Option[clock.Clock]) bool {
	if p.status != StatusRetryable {
		return false
	}
	if p.retryStrategy.IsNone() {
		return true
	}
	return p.IsAutoRetryableNow(clk)
}

// PaymentParameters returns the stored recipient constraints, if this is a
// Retryable payment that has them.
func (p *PendingOutboundPayment) PaymentParameters() *route.PaymentParameters {
	if p.status != StatusRetryable {
		return nil
	}
	return p.paymentParams
}

// InsertPreviouslyFailedSCID records a short channel id that has now failed
// an HTLC for this payment, so future retries can route around it.
func (p *PendingOutboundPayment) InsertPreviouslyFailedSCID(scid uint64) {
	if p.status == StatusRetryable && p.paymentParams != nil {
		p.paymentParams.PreviouslyFailedChannels = append(
			p.paymentParams.PreviouslyFailedChannels, scid,
		)
	}
}

// IsFulfilled reports whether this payment has received its preimage.
func (p *PendingOutboundPayment) IsFulfilled() bool {
	return p.status == StatusFulfilled
}

// IsAbandoned reports whether the user has given up on this payment.
func (p *PendingOutboundPayment) IsAbandoned() bool {
	return p.status == StatusAbandoned
}

// PendingFeeMSat returns the accumulated routing fee for outstanding
// shards, when tracked (Retryable payments created post-0.0.103-equivalent
// only).
func (p *PendingOutboundPayment) PendingFeeMSat() fn.Option[route.MilliSatoshi] {
	if p.status != StatusRetryable {
		return fn.None[route.MilliSatoshi]()
	}
	return p.pendingFeeMSat
}

// PaymentHash returns the payment hash, if this variant carries one.
// Legacy payments never do.
func (p *PendingOutboundPayment) PaymentHash() fn.Option[lntypes.Hash] {
	return p.paymentHash
}

// PaymentSecret returns the MPP secret, when this is a Retryable payment
// that has one.
func (p *PendingOutboundPayment) PaymentSecret() fn.Option[Secret] {
	if p.status != StatusRetryable {
		return fn.None[Secret]()
	}
	return p.paymentSecret
}

// KeysendPreimage returns the spontaneous-payment preimage, when set.
func (p *PendingOutboundPayment) KeysendPreimage() fn.Option[lntypes.Preimage] {
	if p.status != StatusRetryable {
		return fn.None[lntypes.Preimage]()
	}
	return p.keysendPreimage
}

// TotalMSat returns the total payment amount across every path. Zero for
// non-Retryable variants.
func (p *PendingOutboundPayment) TotalMSat() route.MilliSatoshi {
	if p.status != StatusRetryable {
		return 0
	}
	return p.totalMSat
}

// PendingAmtMSat returns the amount currently committed to outstanding
// paths. Zero for non-Retryable variants.
func (p *PendingOutboundPayment) PendingAmtMSat() route.MilliSatoshi {
	if p.status != StatusRetryable {
		return 0
	}
	return p.pendingAmtMSat
}

// Attempts returns the attempt bookkeeping.
func (p *PendingOutboundPayment) Attempts() PaymentAttempts {
	return p.attempts
}

// RetryStrategy returns the configured retry strategy, if any.
func (p *PendingOutboundPayment) RetryStrategy() fn.Option[Retry] {
	return p.retryStrategy
}

// StartingBlockHeight returns the best known block height when this
// payment was initiated.
func (p *PendingOutboundPayment) StartingBlockHeight() uint32 {
	return p.startingBlockHeight
}

// TimerTicksWithoutHTLCs returns the idempotency-TTL counter tracked while
// Fulfilled with no outstanding sessions.
func (p *PendingOutboundPayment) TimerTicksWithoutHTLCs() uint8 {
	return p.timerTicksWithoutHTLCs
}

// IncrementTimerTicks bumps the idempotency-TTL counter and returns the new
// value.
func (p *PendingOutboundPayment) IncrementTimerTicks() uint8 {
	p.timerTicksWithoutHTLCs++
	return p.timerTicksWithoutHTLCs
}

// ResetTimerTicks zeroes the idempotency-TTL counter.
func (p *PendingOutboundPayment) ResetTimerTicks() {
	p.timerTicksWithoutHTLCs = 0
}

// SessionPrivs returns the set of outstanding session secrets, in no
// particular order.
func (p *PendingOutboundPayment) SessionPrivs() []SessionPriv {
	out := make([]SessionPriv, 0, len(p.sessionPrivs))
	for sp := range p.sessionPrivs {
		out = append(out, sp)
	}
	return out
}

// MarkFulfilled transitions the payment to Fulfilled in place, preserving
// the session set by moving (not cloning) the underlying map.
func (p *PendingOutboundPayment) MarkFulfilled() {
	sessionPrivs := p.sessionPrivs
	hash := p.paymentHash

	*p = PendingOutboundPayment{
		status: StatusFulfilled,
		sessionPrivs: sessionPrivs,
		paymentHash: hash,
	}
}

// MarkAbandoned transitions a Retryable or already-Abandoned payment to
// Abandoned in place, preserving the session set. Legacy and Fulfilled
// payments are not abandonable and return ErrNotAbandonable.
func (p *PendingOutboundPayment) MarkAbandoned() error {
	switch p.status {
	case StatusLegacy, StatusFulfilled:
		return ErrNotAbandonable

	case StatusRetryable, StatusAbandoned:
		sessionPrivs := p.sessionPrivs
		var hash lntypes.Hash
		p.paymentHash.WhenSome(func(h lntypes.Hash) { hash = h })

		*p = PendingOutboundPayment{
			status: StatusAbandoned,
			sessionPrivs: sessionPrivs,
			paymentHash: fn.Some(hash),
		}
		return nil

	default:
		return ErrNotAbandonable
	}
}

// Insert records a new outstanding session for the given path, returning
// false (and leaving all bookkeeping unchanged) if the session priv is
// already present. Legacy and Retryable payments track sessions; Fulfilled
// and Abandoned payments reject new insertions outright (their session set
// only shrinks).
func (p *PendingOutboundPayment) Insert(sessionPriv SessionPriv, path route.Path) bool {
	switch p.status {
	case StatusLegacy, StatusRetryable:
		if _, exists := p.sessionPrivs[sessionPriv]; exists {
			return false
		}
		p.sessionPrivs[sessionPriv] = struct{}{}

	default:
		return false
	}

	if p.status == StatusRetryable {
		last := path.Last()
		p.pendingAmtMSat += last.FeeMSat
		p.pendingFeeMSat = fn.MapOption(func(fee route.MilliSatoshi) route.MilliSatoshi {
			return fee + path.PathFees()
		})(p.pendingFeeMSat)
	}

	return true
}

// Remove drops a session from the outstanding set, returning false (and
// leaving all bookkeeping unchanged) if it was already absent. path is
// required whenever the payment is Retryable (to adjust the pending
// amount and pending fee); it is ignored for every other variant.
func (p *PendingOutboundPayment) Remove(sessionPriv SessionPriv, path route.Path) bool {
	if _, exists := p.sessionPrivs[sessionPriv]; !exists {
		return false
	}
	delete(p.sessionPrivs, sessionPriv)

	if p.status == StatusRetryable {
		last := path.Last()
		p.pendingAmtMSat -= last.FeeMSat
		p.pendingFeeMSat = fn.MapOption(func(fee route.MilliSatoshi) route.MilliSatoshi {
			return fee - path.PathFees()
		})(p.pendingFeeMSat)
	}

	return true
}

// RemainingParts returns the number of outstanding, unresolved HTLCs for
// this payment.
func (p *PendingOutboundPayment) RemainingParts() int {
	return len(p.sessionPrivs)
}
