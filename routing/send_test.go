package routing

import (
	"testing"

	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

func TestSendPaymentRegistersAndDispatches(t *testing.T) {
	o := newTestRegistry()
	dest := testPubKey(t, 1)
	us := testPubKey(t, 2)
	rt := singleHopRoute(dest, 1000)

	router := fakeRouter{route: rt}
	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	var hash lntypes.Hash
	hash[0] = 9
	paymentID := payments.ID{1}

	err := o.SendPayment(hash, fn.None[payments.Secret](), paymentID,
		payments.RetryWithAttempts(1), &route.RouteParameters{FinalValueMSat: 1000},
		router, nil, func() route.InFlightHtlcs { return route.NewInFlightHtlcs() },
		entropy, signer, 100, alwaysSucceeds)

	require.NoError(t, err)
	require.True(t, o.HasPendingPayments())
}

func TestSendPaymentAllPathsFailIsResendSafe(t *testing.T) {
	o := newTestRegistry()
	dest := testPubKey(t, 1)
	us := testPubKey(t, 2)
	rt := singleHopRoute(dest, 1000)

	router := fakeRouter{route: rt}
	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	var hash lntypes.Hash
	hash[0] = 10
	paymentID := payments.ID{2}

	err := o.SendPayment(hash, fn.None[payments.Secret](), paymentID,
		payments.RetryWithAttempts(0), &route.RouteParameters{FinalValueMSat: 1000},
		router, nil, func() route.InFlightHtlcs { return route.NewInFlightHtlcs() },
		entropy, signer, 100, alwaysFails)

	var allFailed *AllFailedResendSafeError
	require.ErrorAs(t, err, &allFailed)
	require.False(t, o.HasPendingPayments())
}

func TestSendPaymentWithRouteRejectsDuplicateID(t *testing.T) {
	o := newTestRegistry()
	dest := testPubKey(t, 1)
	us := testPubKey(t, 2)
	rt := singleHopRoute(dest, 1000)

	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}
	paymentID := payments.ID{3}

	var hash lntypes.Hash
	hash[0] = 11

	err := o.SendPaymentWithRoute(rt, hash, fn.None[payments.Secret](), paymentID,
		entropy, signer, 100, alwaysSucceeds)
	require.NoError(t, err)

	err = o.SendPaymentWithRoute(rt, hash, fn.None[payments.Secret](), paymentID,
		entropy, signer, 100, alwaysSucceeds)

	var dup *DuplicatePaymentError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, paymentID, dup.ID)
}

func TestSendPaymentWithRouteRejectsMultiPathWithoutSecret(t *testing.T) {
	o := newTestRegistry()
	dest := testPubKey(t, 1)
	us := testPubKey(t, 2)

	rt := &route.Route{
		Paths: []route.Path{
			{{PubKey: dest, ChannelID: 1, FeeMSat: 500}},
			{{PubKey: dest, ChannelID: 2, FeeMSat: 500}},
		},
	}

	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	var hash lntypes.Hash
	hash[0] = 12

	err := o.SendPaymentWithRoute(rt, hash, fn.None[payments.Secret](), payments.ID{4},
		entropy, signer, 100, alwaysSucceeds)

	requireParameterError(t, err)
}

func TestSendPaymentWithRouteRejectsPathLoopingThroughUs(t *testing.T) {
	o := newTestRegistry()
	dest := testPubKey(t, 1)
	us := testPubKey(t, 2)

	rt := &route.Route{
		Paths: []route.Path{
			{
				{PubKey: us, ChannelID: 1, FeeMSat: 10},
				{PubKey: dest, ChannelID: 2, FeeMSat: 500},
			},
		},
	}

	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	var hash lntypes.Hash
	hash[0] = 13

	err := o.SendPaymentWithRoute(rt, hash, fn.None[payments.Secret](), payments.ID{5},
		entropy, signer, 100, alwaysSucceeds)

	var pathErr *PathParameterError
	require.ErrorAs(t, err, &pathErr)
}

func TestSendProbeRequiresAtLeastTwoHops(t *testing.T) {
	o := newTestRegistry()
	us := testPubKey(t, 2)
	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	_, _, err := o.SendProbe(route.Path{{PubKey: testPubKey(t, 1)}}, entropy, signer,
		100, alwaysSucceeds)

	requireParameterError(t, err)
}

func TestSendProbeHashMatchesProbingCookie(t *testing.T) {
	o := newTestRegistry()
	us := testPubKey(t, 2)
	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	hops := twoHopPath(t, testPubKey(t, 1), 1000)

	hash, paymentID, err := o.SendProbe(hops, entropy, signer, 100, alwaysSucceeds)
	require.NoError(t, err)
	require.Equal(t, ProbingCookieFromID(paymentID, o.probingCookieSecret), hash)
	require.True(t, o.PaymentIsProbe(paymentID, hash))
}

func TestSendSpontaneousPaymentDerivesHashFromPreimage(t *testing.T) {
	o := newTestRegistry()
	dest := testPubKey(t, 1)
	us := testPubKey(t, 2)
	rt := singleHopRoute(dest, 1000)

	router := fakeRouter{route: rt}
	entropy := &fakeEntropySource{}
	signer := fakeNodeSigner{id: us}

	preimage := lntypes.Preimage{1, 2, 3}

	hash, err := o.SendSpontaneousPayment(fn.Some(preimage), payments.ID{6},
		payments.RetryWithAttempts(1), &route.RouteParameters{FinalValueMSat: 1000},
		router, nil, func() route.InFlightHtlcs { return route.NewInFlightHtlcs() },
		entropy, signer, 100, alwaysSucceeds)

	require.NoError(t, err)
	require.Equal(t, preimage.Hash(), hash)
}
