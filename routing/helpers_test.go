package routing

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

func testPubKey(t *testing.T, seed byte) *btcec.PublicKey {
	t.Helper()

	var buf [32]byte
	buf[0] = seed
	buf[31] = 1
	priv, pub := btcec.PrivKeyFromBytes(buf[:])
	_ = priv
	return pub
}

type fakeNodeSigner struct {
	id *btcec.PublicKey
}

func (f fakeNodeSigner) NodeID() (*btcec.PublicKey, error) {
	return f.id, nil
}

type fakeEntropySource struct {
	counter byte
}

func (f *fakeEntropySource) GetSecureRandomBytes() [32]byte {
	f.counter++
	var b [32]byte
	b[0] = f.counter
	return b
}

type fakeRouter struct {
	route *route.Route
	err   error
}

func (f fakeRouter) FindRoute(*btcec.PublicKey, *route.RouteParameters,
	[]ChannelHint, route.InFlightHtlcs) (*route.Route, error) {

	return f.route, f.err
}

func singleHopRoute(hop *btcec.PublicKey, feeMSat route.MilliSatoshi) *route.Route {
	return &route.Route{
		Paths: []route.Path{
			{{PubKey: hop, ChannelID: 1, FeeMSat: feeMSat, CLTVExpiryDelta: 40}},
		},
	}
}

func twoHopPath(t *testing.T, dest *btcec.PublicKey, feeMSat route.MilliSatoshi) route.Path {
	t.Helper()
	return route.Path{
		{PubKey: testPubKey(t, 200), ChannelID: 1, FeeMSat: 10, CLTVExpiryDelta: 40},
		{PubKey: dest, ChannelID: 2, FeeMSat: feeMSat, CLTVExpiryDelta: 40},
	}
}

func newTestRegistry() *OutboundPayments {
	var secret [32]byte
	secret[0] = 0x42
	return New(Config{
		Clock:               fn.None[clock.Clock](),
		ProbingCookieSecret: secret,
	})
}

func alwaysSucceeds(route.Path, *route.PaymentParameters, lntypes.Hash,
	fn.Option[payments.Secret], route.MilliSatoshi, uint32, payments.ID,
	fn.Option[lntypes.Preimage], payments.SessionPriv) error {

	return nil
}

func alwaysFails(route.Path, *route.PaymentParameters, lntypes.Hash,
	fn.Option[payments.Secret], route.MilliSatoshi, uint32, payments.ID,
	fn.Option[lntypes.Preimage], payments.SessionPriv) error {

	return invalidRouteError("simulated channel-layer failure")
}

func requireParameterError(t *testing.T, err error) *ParameterError {
	t.Helper()
	var paramErr *ParameterError
	require.ErrorAs(t, err, &paramErr)
	return paramErr
}
