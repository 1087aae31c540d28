package paymentdb

import (
	"bytes"
	"testing"

	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/payments"
	"github.com/lnoutbound/engine/route"
)

func roundTrip(t *testing.T, p *payments.PendingOutboundPayment) *payments.PendingOutboundPayment {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Serialize(&buf, p))

	got, err := Deserialize(&buf)
	require.NoError(t, err)
	return got
}

func TestSerializeDeserializeLegacy(t *testing.T) {
	privs := []payments.SessionPriv{{1}, {2}}
	p := payments.NewLegacy(privs)

	got := roundTrip(t, p)
	require.Equal(t, payments.StatusLegacy, got.Status())
	require.ElementsMatch(t, privs, got.SessionPrivs())
}

func TestSerializeDeserializeFulfilled(t *testing.T) {
	var hash lntypes.Hash
	hash[0] = 0xaa

	p := payments.NewFulfilledFromParts([]payments.SessionPriv{{3}}, fn.Some(hash), 2)

	got := roundTrip(t, p)
	require.Equal(t, payments.StatusFulfilled, got.Status())
	require.Equal(t, uint8(2), got.TimerTicksWithoutHTLCs())

	var gotHash lntypes.Hash
	got.PaymentHash().WhenSome(func(h lntypes.Hash) { gotHash = h })
	require.Equal(t, hash, gotHash)
}

func TestSerializeDeserializeFulfilledWithoutHash(t *testing.T) {
	p := payments.NewFulfilledFromParts([]payments.SessionPriv{{3}}, fn.None[lntypes.Hash](), 0)

	got := roundTrip(t, p)
	require.Equal(t, payments.StatusFulfilled, got.Status())
	require.True(t, got.PaymentHash().IsNone())
}

func TestSerializeDeserializeAbandoned(t *testing.T) {
	var hash lntypes.Hash
	hash[0] = 0xbb

	p := payments.NewAbandonedFromParts([]payments.SessionPriv{{4}, {5}}, hash)

	got := roundTrip(t, p)
	require.Equal(t, payments.StatusAbandoned, got.Status())

	var gotHash lntypes.Hash
	got.PaymentHash().WhenSome(func(h lntypes.Hash) { gotHash = h })
	require.Equal(t, hash, gotHash)
}

func TestSerializeDeserializeRetryable(t *testing.T) {
	var hash lntypes.Hash
	hash[0] = 0xcc

	params := &route.PaymentParameters{
		ExpiryTime:               fn.Some(int64(1700000000)),
		FinalCLTVExpiryDelta:     fn.Some(uint16(80)),
		PreviouslyFailedChannels: []uint64{1, 2, 3},
	}
	secret := payments.Secret{7}
	preimage := lntypes.Preimage{8}

	p := payments.NewRetryable(hash, fn.Some(secret), fn.Some(preimage), params,
		fn.Some(payments.RetryWithAttempts(5)), 5000, 700, fn.None[clock.Clock]())
	p.Insert(payments.SessionPriv{9}, route.Path{{FeeMSat: 1000}})

	got := roundTrip(t, p)
	require.Equal(t, payments.StatusRetryable, got.Status())
	require.Equal(t, route.MilliSatoshi(5000), got.TotalMSat())
	require.Equal(t, route.MilliSatoshi(1000), got.PendingAmtMSat())
	require.Equal(t, uint32(700), got.StartingBlockHeight())

	var gotHash lntypes.Hash
	got.PaymentHash().WhenSome(func(h lntypes.Hash) { gotHash = h })
	require.Equal(t, hash, gotHash)

	var gotSecret payments.Secret
	got.PaymentSecret().WhenSome(func(s payments.Secret) { gotSecret = s })
	require.Equal(t, secret, gotSecret)

	var gotPreimage lntypes.Preimage
	got.KeysendPreimage().WhenSome(func(pre lntypes.Preimage) { gotPreimage = pre })
	require.Equal(t, preimage, gotPreimage)

	gotParams := got.PaymentParameters()
	require.NotNil(t, gotParams)
	require.Equal(t, []uint64{1, 2, 3}, gotParams.PreviouslyFailedChannels)

	var gotDelta uint16
	gotParams.FinalCLTVExpiryDelta.WhenSome(func(d uint16) { gotDelta = d })
	require.Equal(t, uint16(80), gotDelta)

	// Retry strategy is deliberately never persisted.
	require.True(t, got.RetryStrategy().IsNone())
}
