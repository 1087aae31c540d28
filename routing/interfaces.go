package routing

import (
	"github.com/btcsuite/btcd/btcec/v2"
	fn "github.com/lightningnetwork/lnd/fn/v2"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

// ChannelHint is an opaque, engine-owned reference to one of the node's
// local channels, as reported by the channel-state layer. Its contents are
// out of scope for this engine; Router and CheckRetryPayments
// only ever pass it through.
type ChannelHint struct {
	ChannelID uint64
}

// Router finds a Route satisfying params, optionally preferring the given
// first hops and aware of currently in-flight HTLCs. Route finding itself
// is out of scope for this engine — Router is the external collaborator
// contract this package depends on.
type Router interface {
	FindRoute(ourNodeID *btcec.PublicKey, params *route.RouteParameters,
		firstHops []ChannelHint, inflight route.InFlightHtlcs) (*route.Route, error)
}

// EntropySource supplies cryptographically secure randomness for session
// secrets and synthetic payment/probe identifiers.
type EntropySource interface {
	GetSecureRandomBytes() [32]byte
}

// NodeSigner identifies the local node. Key material and
// signing are out of scope for this engine.
type NodeSigner interface {
	NodeID() (*btcec.PublicKey, error)
}

// SendPaymentAlongPathFunc dispatches a single onion HTLC attempt along
// path, returning an *APIError on failure. Onion construction and the
// actual channel-layer dispatch are out of scope for this engine; this is
// the collaborator contract this package depends on to reach the wire.
type SendPaymentAlongPathFunc func(path route.Path, paymentParams *route.PaymentParameters,
	paymentHash lntypes.Hash, paymentSecret fn.Option[payments.Secret],
	totalMSat route.MilliSatoshi, curHeight uint32, paymentID payments.ID,
	keysendPreimage fn.Option[lntypes.Preimage], sessionPriv payments.SessionPriv) error

// ComputeInFlightHtlcsFunc snapshots the HTLCs currently in flight across
// the node, invoked on each routing attempt. In-flight HTLC
// inventory is out of scope for this engine.
type ComputeInFlightHtlcsFunc func() route.InFlightHtlcs

// FirstHopsFunc reports the node's current usable channels. Invoked fresh
// on every automatic retry pass by CheckRetryPayments.
type FirstHopsFunc func() []ChannelHint
