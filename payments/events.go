package payments

import (
	"sync"

	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/route"
)

// Event is the marker interface implemented by every event this package
// emits. Consumers type-switch on the concrete type, mirroring a closed
// event enum.
type Event interface {
	eventMarker()
}

// PaymentSent is emitted when the first preimage for a payment is received,
// at the moment the payment becomes Fulfilled; other HTLCs of the payment
// may still be outstanding then.
type PaymentSent struct {
	PaymentID ID
	PaymentHash lntypes.Hash
	Preimage lntypes.Preimage
	FeePaidMSat fn.Option[route.MilliSatoshi]
}

func (PaymentSent) eventMarker() {}

// PaymentPathSuccessful is emitted when one path of a (possibly
// multi-path) payment succeeds.
type PaymentPathSuccessful struct {
	PaymentID ID
	PaymentHash fn.Option[lntypes.Hash]
	Path route.Path
}

func (PaymentPathSuccessful) eventMarker() {}

// PaymentPathFailed is emitted when one path fails, whether or not the
// overall payment is retryable afterward.
type PaymentPathFailed struct {
	PaymentID ID
	PaymentHash lntypes.Hash
	PaymentFailedPermanently bool
	Path route.Path
	ShortChannelID fn.Option[uint64]

	// NetworkUpdate is the gossip update, if any, the failing hop
	// attached to its onion failure message.
	NetworkUpdate fn.Option[NetworkUpdate]

	// AllPathsFailed reports whether this was the payment's last
	// outstanding path, independent of whether that path's own failure
	// was permanent.
	AllPathsFailed bool

	// Retry carries the parameters a caller could hand back to
	// RetryPaymentWithRoute to resend this path's value: the amount
	// that reached (or would have reached) the recipient over it, and
	// the recipient's final CLTV expiry delta.
	Retry *route.RouteParameters
}

func (PaymentPathFailed) eventMarker() {}

// NetworkUpdate is an opaque gossip update (a channel_update or
// node_announcement) extracted from an onion failure message. Its wire
// contents are out of scope for this engine; it is only ever passed
// through from the channel layer to a caller that knows how to apply it
// to its own graph.
type NetworkUpdate struct {
	Payload []byte
}

// PaymentFailed is emitted once a user-abandoned payment has no HTLCs left
// outstanding, either from AbandonPayment or from FailHTLC clearing its
// last session. A payment that has only run out of automatic retries does
// not emit it.
type PaymentFailed struct {
	PaymentID ID
	PaymentHash fn.Option[lntypes.Hash]
	Reason fn.Option[FailureReason]
}

func (PaymentFailed) eventMarker() {}

// PendingHTLCsForwardable signals the driver that at least one payment may
// now be eligible for an automatic retry.
type PendingHTLCsForwardable struct {
	TimeForwardable uint64 // milliseconds to defer scheduling by
}

func (PendingHTLCsForwardable) eventMarker() {}

// ProbeSuccessful is emitted when a probe payment's path resolves as if it
// had succeeded (probes are never actually claimable).
type ProbeSuccessful struct {
	PaymentID ID
	Path route.Path
}

func (ProbeSuccessful) eventMarker() {}

// ProbeFailed is emitted when a probe payment's path fails.
type ProbeFailed struct {
	PaymentID ID
	Path route.Path
	ShortChannelID fn.Option[uint64]
}

func (ProbeFailed) eventMarker() {}

// FailureReason enumerates why a payment was ultimately abandoned or
// failed outright, mirroring PaymentFailureReason.
type FailureReason uint8

const (
	FailureReasonRecipientRejected FailureReason = iota
	FailureReasonUserAbandoned
	FailureReasonRetriesExhausted
	FailureReasonPaymentExpired
	FailureReasonRouteNotFound
	FailureReasonUnexpectedError
	FailureReasonIncorrectPaymentDetails
	FailureReasonPartialFailure
)

// EventQueue is an externally-owned sink for events, guarded by its own
// mutex that callers must never acquire while holding the registry mutex.
// It is a plain mutex-protected slice rather than a channel-based queue
// because RemoveStaleResolvedPayments must be able to scan the queue's
// contents without draining it, which a channel cannot do.
type EventQueue struct {
	mu sync.Mutex
	events []Event
}

// NewEventQueue returns an empty EventQueue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push appends an event for an external consumer to later drain.
func (q *EventQueue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Snapshot returns a copy of every currently queued event, without
// removing them — used by RemoveStaleResolvedPayments to check whether a
// PaymentSent/PaymentFailed notification for a given payment is still
// unconsumed before reclaiming its registry slot.
func (q *EventQueue) Snapshot() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, len(q.events))
	copy(out, q.events)
	return out
}

// Drain removes and returns every currently queued event.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.events
	q.events = nil
	return out
}
