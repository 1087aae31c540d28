package routing

import (
	"crypto/sha256"

	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

// idempotencyTimeoutTicks bounds how many RemoveStaleResolvedPayments passes
// a resolved payment (Fulfilled or Abandoned, with no HTLCs outstanding) is
// kept around once its terminal event has left the queue, guarding against
// reclaiming its slot while a caller might still retry the request that
// produced it.
const idempotencyTimeoutTicks = 3

// ClaimHTLC records that sessionPriv's HTLC on path resolved with preimage.
// A duplicate claim against an already Fulfilled payment is a no-op beyond
// dropping the session if fromOnchain, matching idempotent on-chain replay.
func (o *OutboundPayments) ClaimHTLC(paymentID payments.ID, preimage lntypes.Preimage,
	sessionPriv payments.SessionPriv, path route.Path, fromOnchain bool,
	events *payments.EventQueue) {

	o.mu.Lock()

	payment, ok := o.pending[paymentID]
	if !ok {
		o.mu.Unlock()
		return
	}

	if payment.IsFulfilled() {
		if fromOnchain {
			payment.Remove(sessionPriv, path)
		}
		o.mu.Unlock()
		return
	}

	feePaid := payment.PendingFeeMSat()
	hash := preimage.Hash()
	payment.MarkFulfilled()

	if fromOnchain {
		payment.Remove(sessionPriv, path)
	}

	o.mu.Unlock()

	events.Push(payments.PaymentSent{
		PaymentID: paymentID,
		PaymentHash: hash,
		Preimage: preimage,
		FeePaidMSat: feePaid,
	})

	// Off-chain, the remaining sessions are reaped later via
	// FinalizeClaims once forwarding confirms every shard settled;
	// on-chain claims are observed one at a time and so report success
	// immediately.
	if fromOnchain {
		events.Push(payments.PaymentPathSuccessful{
			PaymentID: paymentID,
			PaymentHash: fn.Some(hash),
			Path: path,
		})
	}
}

// FinalizeClaims bulk-removes sessionPrivs from a Fulfilled payment once the
// channel layer confirms every one of them has settled off-chain. It is a
// no-op if the payment is missing or not yet Fulfilled.
func (o *OutboundPayments) FinalizeClaims(paymentID payments.ID,
	sessionPrivs []payments.SessionPriv) {

	o.mu.Lock()
	defer o.mu.Unlock()

	payment, ok := o.pending[paymentID]
	if !ok || !payment.IsFulfilled() {
		return
	}

	for _, sp := range sessionPrivs {
		payment.Remove(sp, nil)
	}
}

// FailHTLC records that sessionPriv's HTLC on path failed. It backfills
// the payment's final CLTV expiry delta from the first failure that
// reports one, tracks the failed short channel id so a retry can route
// around it, and — if the payment was already user-abandoned and no HTLCs
// remain — reclaims it and emits PaymentFailed. A payment that has merely
// exhausted its automatic retries, without AbandonPayment having been
// called, stays in the registry: it is still reachable by a future
// SendPayment with the same id, which must keep being rejected as a
// duplicate.
func (o *OutboundPayments) FailHTLC(paymentID payments.ID,
	sessionPriv payments.SessionPriv, path route.Path, permanent bool,
	failedSCID fn.Option[uint64], finalCLTVExpiryDelta fn.Option[uint16],
	networkUpdate fn.Option[payments.NetworkUpdate], events *payments.EventQueue) {

	o.mu.Lock()

	payment, ok := o.pending[paymentID]
	if !ok {
		o.mu.Unlock()
		return
	}

	if payment.IsFulfilled() {
		payment.Remove(sessionPriv, path)
		o.mu.Unlock()
		return
	}

	if !payment.Remove(sessionPriv, path) {
		// Already removed by an earlier duplicate notification.
		o.mu.Unlock()
		return
	}

	failedSCID.WhenSome(payment.InsertPreviouslyFailedSCID)

	params := payment.PaymentParameters()
	if params != nil && params.FinalCLTVExpiryDelta.IsNone() {
		finalCLTVExpiryDelta.WhenSome(func(d uint16) {
			params.FinalCLTVExpiryDelta = fn.Some(d)
		})
	}

	var cltvDelta uint16
	if params != nil {
		params.FinalCLTVExpiryDelta.WhenSome(func(d uint16) { cltvDelta = d })
	}
	if cltvDelta == 0 {
		cltvDelta = path.Last().CLTVExpiryDelta
	}

	retry := &route.RouteParameters{
		PaymentParams: params,
		FinalValueMSat: path.Last().FeeMSat,
		FinalCLTVExpiryDelta: cltvDelta,
	}

	var paymentHash lntypes.Hash
	payment.PaymentHash().WhenSome(func(h lntypes.Hash) { paymentHash = h })
	isProbe := o.PaymentIsProbe(paymentID, paymentHash)

	allPathsFailed := payment.RemainingParts() == 0

	abandonedNow := allPathsFailed && payment.Status() == payments.StatusAbandoned
	if abandonedNow {
		delete(o.pending, paymentID)
	}

	autoRetryable := !abandonedNow && payment.IsAutoRetryableNow(o.clock)

	o.mu.Unlock()

	switch {
	case isProbe && permanent:
		events.Push(payments.ProbeSuccessful{
			PaymentID: paymentID,
			Path: path,
		})

	case isProbe && !permanent:
		events.Push(payments.ProbeFailed{
			PaymentID: paymentID,
			Path: path,
			ShortChannelID: failedSCID,
		})

	default:
		events.Push(payments.PaymentPathFailed{
			PaymentID: paymentID,
			PaymentHash: paymentHash,
			PaymentFailedPermanently: permanent,
			AllPathsFailed: allPathsFailed,
			Path: path,
			ShortChannelID: failedSCID,
			NetworkUpdate: networkUpdate,
			Retry: retry,
		})
	}

	if abandonedNow {
		events.Push(payments.PaymentFailed{
			PaymentID: paymentID,
			PaymentHash: fn.Some(paymentHash),
			Reason: fn.Some(payments.FailureReasonUserAbandoned),
		})
		return
	}

	if autoRetryable {
		events.Push(payments.PendingHTLCsForwardable{TimeForwardable: 0})
	}
}

// AbandonPayment marks paymentID as user-abandoned. If no HTLCs remain
// outstanding the payment is immediately reclaimed and PaymentFailed is
// emitted; otherwise it lingers until FailHTLC clears its last session and
// emits PaymentFailed. A ClaimHTLC arriving first turns it into a Fulfilled
// payment instead.
func (o *OutboundPayments) AbandonPayment(paymentID payments.ID,
	events *payments.EventQueue) error {

	o.mu.Lock()

	payment, ok := o.pending[paymentID]
	if !ok {
		o.mu.Unlock()
		return &ParameterError{
			Cause: apiMisuseErrorf("payment with id %s not found", paymentID),
		}
	}

	if err := payment.MarkAbandoned(); err != nil {
		o.mu.Unlock()
		return &ParameterError{Cause: apiMisuseErrorf("%v", err)}
	}

	remaining := payment.RemainingParts()
	var paymentHash lntypes.Hash
	payment.PaymentHash().WhenSome(func(h lntypes.Hash) { paymentHash = h })

	if remaining == 0 {
		delete(o.pending, paymentID)
	}

	o.mu.Unlock()

	if remaining == 0 {
		events.Push(payments.PaymentFailed{
			PaymentID: paymentID,
			PaymentHash: fn.Some(paymentHash),
			Reason: fn.Some(payments.FailureReasonUserAbandoned),
		})
	}

	return nil
}

// RemoveStaleResolvedPayments reclaims registry slots for Fulfilled or
// Abandoned payments with no outstanding sessions, once their terminal
// event is no longer sitting unconsumed in events. A payment whose event
// is still queued has its idempotency-TTL counter reset rather than
// incremented, so a slow consumer never causes a premature reclaim.
func (o *OutboundPayments) RemoveStaleResolvedPayments(events *payments.EventQueue) {
	referenced := referencedPaymentIDs(events.Snapshot())

	o.mu.Lock()
	defer o.mu.Unlock()

	for id, payment := range o.pending {
		if payment.RemainingParts() != 0 {
			continue
		}
		if payment.Status() != payments.StatusFulfilled &&
			payment.Status() != payments.StatusAbandoned {

			continue
		}

		if _, stillQueued := referenced[id]; stillQueued {
			payment.ResetTimerTicks()
			continue
		}

		if payment.IncrementTimerTicks() > idempotencyTimeoutTicks {
			delete(o.pending, id)
		}
	}
}

func referencedPaymentIDs(events []payments.Event) map[payments.ID]struct{} {
	ids := make(map[payments.ID]struct{}, len(events))
	for _, e := range events {
		switch ev := e.(type) {
		case payments.PaymentSent:
			ids[ev.PaymentID] = struct{}{}
		case payments.PaymentPathSuccessful:
			ids[ev.PaymentID] = struct{}{}
		case payments.PaymentPathFailed:
			ids[ev.PaymentID] = struct{}{}
		case payments.PaymentFailed:
			ids[ev.PaymentID] = struct{}{}
		case payments.ProbeSuccessful:
			ids[ev.PaymentID] = struct{}{}
		case payments.ProbeFailed:
			ids[ev.PaymentID] = struct{}{}
		}
	}
	return ids
}

// PaymentIsProbe reports whether paymentHash matches the synthetic cookie
// SendProbe derives for paymentID, identifying a probe payment to FailHTLC
// without needing a separate is-probe flag threaded through the registry.
func (o *OutboundPayments) PaymentIsProbe(paymentID payments.ID, paymentHash lntypes.Hash) bool {
	return paymentHash == ProbingCookieFromID(paymentID, o.probingCookieSecret)
}

// ProbingCookieFromID derives the synthetic payment hash SendProbe uses in
// place of a real invoice hash: SHA-256 of the secret concatenated with the
// payment id, so only this node can recognize its own probes.
func ProbingCookieFromID(paymentID payments.ID, probingCookieSecret [32]byte) lntypes.Hash {
	var data [64]byte
	copy(data[:32], probingCookieSecret[:])
	copy(data[32:], paymentID[:])
	return lntypes.Hash(sha256.Sum256(data[:]))
}
