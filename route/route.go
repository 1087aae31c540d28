// Package route defines the read-only route model the outbound payment
// engine is handed by its Router collaborator: a Route made of one or more
// Paths, each an ordered chain of RouteHops. Unlike
// github.com/lightningnetwork/lnd/routing/route (one shard per Route
// value), this Route groups every shard of one logical multi-path payment
// together.
package route

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

// MaxHopsPerPath is the maximum number of hops a single Path may contain.
const MaxHopsPerPath = 20

// ErrEmptyPath is returned when a Path has no hops.
var ErrEmptyPath = errors.New("route: path has no hops")

// RouteHop describes a single hop along a payment path.
type RouteHop struct {
	// PubKey is the node the HTLC is forwarded to (or, for the final
	// hop, the payment recipient).
	PubKey *btcec.PublicKey

	// ChannelID is the short channel id the HTLC traverses to reach
	// PubKey.
	ChannelID uint64

	// FeeMSat is, for every hop but the last, the fee charged for
	// forwarding past this hop. For the last hop in a Path, FeeMSat is
	// instead the amount delivered to the recipient over that path.
	FeeMSat MilliSatoshi

	// CLTVExpiryDelta is the block-height delta this hop adds to the
	// HTLC's timeout lock.
	CLTVExpiryDelta uint16
}

// Path is an ordered sequence of hops, 1 to MaxHopsPerPath long.
type Path []*RouteHop

// Last returns the final hop of the path. It panics on an empty path; the
// routing package rejects empty paths (in addNewPendingPayment and
// RetryPaymentWithRoute) before any accessor is called.
func (p Path) Last() *RouteHop {
	return p[len(p)-1]
}

// PathFees sums the fees charged by every hop but the last (the amount
// delivered to the recipient is excluded).
func (p Path) PathFees() MilliSatoshi {
	var total MilliSatoshi
	for _, hop := range p[:len(p)-1] {
		total += hop.FeeMSat
	}
	return total
}

// Route groups every Path (shard) belonging to one logical payment,
// together with the PaymentParameters the recipient imposed, if known.
type Route struct {
	Paths []Path

	// PaymentParams carries the recipient-imposed constraints for this
	// route, when known. It is absent for pre-built test routes that
	// bypass the router.
	PaymentParams *PaymentParameters
}

// TotalAmount returns the sum of the amounts delivered to the recipient
// across every path, i.e. the sum of each path's last hop's FeeMSat.
func (r *Route) TotalAmount() MilliSatoshi {
	var total MilliSatoshi
	for _, p := range r.Paths {
		total += p.Last().FeeMSat
	}
	return total
}
