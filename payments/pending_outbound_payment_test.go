package payments

import (
	"testing"

	"github.com/lightningnetwork/lnd/clock"
	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"

	"github.com/lnoutbound/engine/lntypes"
	"github.com/lnoutbound/engine/route"
)

func testHash(b byte) lntypes.Hash {
	var h lntypes.Hash
	h[0] = b
	return h
}

func testPath(feeMSat route.MilliSatoshi) route.Path {
	return route.Path{{
		ChannelID: 1,
		FeeMSat:   feeMSat,
	}}
}

func TestNewRetryableStartsWithEmptySessionSet(t *testing.T) {
	p := NewRetryable(testHash(1), fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())

	require.Equal(t, StatusRetryable, p.Status())
	require.Empty(t, p.SessionPrivs())
	require.Equal(t, route.MilliSatoshi(1000), p.TotalMSat())
}

func TestInsertIsIdempotent(t *testing.T) {
	p := NewRetryable(testHash(1), fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())

	var sp SessionPriv
	sp[0] = 0xaa

	require.True(t, p.Insert(sp, testPath(100)))
	require.False(t, p.Insert(sp, testPath(100)))
	require.Len(t, p.SessionPrivs(), 1)
	require.Equal(t, route.MilliSatoshi(100), p.PendingAmtMSat())
}

func TestRemoveIsIdempotent(t *testing.T) {
	p := NewRetryable(testHash(1), fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())

	var sp SessionPriv
	sp[0] = 0xbb
	p.Insert(sp, testPath(200))

	require.True(t, p.Remove(sp, testPath(200)))
	require.False(t, p.Remove(sp, testPath(200)))
	require.Zero(t, p.PendingAmtMSat())
}

func TestMarkFulfilledPreservesSessionsAndHash(t *testing.T) {
	hash := testHash(7)
	p := NewRetryable(hash, fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())

	var sp SessionPriv
	sp[0] = 0xcc
	p.Insert(sp, testPath(100))

	p.MarkFulfilled()

	require.True(t, p.IsFulfilled())
	require.Contains(t, p.SessionPrivs(), sp)

	var gotHash lntypes.Hash
	p.PaymentHash().WhenSome(func(h lntypes.Hash) { gotHash = h })
	require.Equal(t, hash, gotHash)
}

func TestMarkAbandonedRejectsLegacyAndFulfilled(t *testing.T) {
	legacy := NewLegacy(nil)
	require.ErrorIs(t, legacy.MarkAbandoned(), ErrNotAbandonable)

	fulfilled := NewFulfilledFromParts(nil, fn.None[lntypes.Hash](), 0)
	require.ErrorIs(t, fulfilled.MarkAbandoned(), ErrNotAbandonable)
}

func TestMarkAbandonedTransitionsRetryable(t *testing.T) {
	p := NewRetryable(testHash(2), fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())

	require.NoError(t, p.MarkAbandoned())
	require.True(t, p.IsAbandoned())
}

func TestIsRetryableNowWithNoStrategyAlwaysManuallyRetryable(t *testing.T) {
	p := NewRetryable(testHash(3), fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())

	require.True(t, p.IsRetryableNow(fn.None[clock.Clock]()))
	require.False(t, p.IsAutoRetryableNow(fn.None[clock.Clock]()))
}

func TestInsertRejectedAfterFulfilled(t *testing.T) {
	p := NewRetryable(testHash(4), fn.None[Secret](), fn.None[lntypes.Preimage](),
		nil, fn.None[Retry](), 1000, 100, fn.None[clock.Clock]())
	p.MarkFulfilled()

	var sp SessionPriv
	sp[0] = 0xdd
	require.False(t, p.Insert(sp, testPath(50)))
}
