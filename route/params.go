package route

import fn "github.com/lightningnetwork/lnd/fn/v2"

// PaymentParameters carries the recipient-imposed constraints for a payment,
// threaded through retries so a later attempt can reuse what an earlier one
// learned (e.g. channels that have already failed this payment).
type PaymentParameters struct {
	// ExpiryTime is the invoice expiry, as an absolute Unix timestamp in
	// seconds. Absent for keysend/probe payments that carry no invoice.
	ExpiryTime fn.Option[int64]

	// FinalCLTVExpiryDelta is the cltv delta demanded by the recipient.
	// When absent, routing.FailHTLC fills it in from the final cltv expiry
	// delta reported with the first failed HTLC that carries one.
	FinalCLTVExpiryDelta fn.Option[uint16]

	// PreviouslyFailedChannels accumulates the short channel ids that
	// have failed an HTLC for this payment, across every retry, so the
	// router can route around them next time.
	PreviouslyFailedChannels []uint64
}

// RouteParameters bundles the information needed to ask a Router for a new
// Route: the recipient constraints plus how much value (and CLTV budget)
// still needs to reach the destination.
type RouteParameters struct {
	PaymentParams *PaymentParameters
	FinalValueMSat MilliSatoshi
	FinalCLTVExpiryDelta uint16
}

// InFlightHtlcs is an opaque snapshot of the HTLCs currently in flight
// across the node, supplied by the ComputeInFlightHtlcsFunc collaborator so
// a Router can avoid oversubscribing channel liquidity. Its internal shape
// is owned by the in-flight-HTLC-inventory collaborator, out of scope for
// this engine.
type InFlightHtlcs struct {
	// ByChannel maps a short channel id to the total msat currently
	// committed outbound over it.
	ByChannel map[uint64]MilliSatoshi
}

// NewInFlightHtlcs returns an empty InFlightHtlcs snapshot.
func NewInFlightHtlcs() InFlightHtlcs {
	return InFlightHtlcs{ByChannel: make(map[uint64]MilliSatoshi)}
}
