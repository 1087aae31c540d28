package route

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func threeHopPath() Path {
	return Path{
		{ChannelID: 1, FeeMSat: 10, CLTVExpiryDelta: 40},
		{ChannelID: 2, FeeMSat: 5, CLTVExpiryDelta: 40},
		{ChannelID: 3, FeeMSat: 1000, CLTVExpiryDelta: 144},
	}
}

func TestPathLastReturnsFinalHop(t *testing.T) {
	p := threeHopPath()
	require.Equal(t, uint64(3), p.Last().ChannelID)
	require.Equal(t, MilliSatoshi(1000), p.Last().FeeMSat)
}

func TestPathFeesExcludesFinalHop(t *testing.T) {
	p := threeHopPath()
	require.Equal(t, MilliSatoshi(15), p.PathFees())
}

func TestRouteTotalAmountSumsEveryPath(t *testing.T) {
	r := &Route{
		Paths: []Path{
			{{FeeMSat: 1000}},
			{{FeeMSat: 500}, {FeeMSat: 2000}},
		},
	}
	require.Equal(t, MilliSatoshi(3000), r.TotalAmount())
}

func TestMilliSatoshiString(t *testing.T) {
	require.Equal(t, "1000 mSAT", MilliSatoshi(1000).String())
}
