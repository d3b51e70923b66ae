package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starcoin-bridge/bridgecore/chainid"
)

func devnetToSepolia(t *testing.T) chainid.Route {
	t.Helper()
	route, err := chainid.GetRoute(chainid.HomeDevnet, chainid.EthSepolia)
	require.NoError(t, err)
	return route
}

func TestRouteLimitNotConfiguredFailsClosed(t *testing.T) {
	l := New()
	route := devnetToSepolia(t)
	_, err := l.CheckAndRecordSendingTransfer(route, 1, 5_00000000, 10, 0)
	assert.ErrorIs(t, err, ErrLimitNotFoundForRoute)
}

func TestSlidingWindowFiftyHourScenario(t *testing.T) {
	l := New()
	route := devnetToSepolia(t)
	l.UpdateRouteLimit(route, 100_000_000_00000000) // $100M, 8dp

	const ethPriceUSD8dp = 5_00000000

	ok, err := l.CheckAndRecordSendingTransfer(route, 1, ethPriceUSD8dp, 10_000, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, _ := l.Snapshot(route)
	assert.Equal(t, uint64(50_000)*1_00000000, rec.TotalAmount)

	for h := uint64(1); h < 50; h++ {
		ok, err := l.CheckAndRecordSendingTransfer(route, 1, ethPriceUSD8dp, 1_000, h*HourMillis)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	rec, ok2 := l.Snapshot(route)
	require.True(t, ok2)
	assert.Len(t, rec.PerHourAmounts, MaxHourBuckets)
	assert.Equal(t, uint64(24_000)*ethPriceUSD8dp, rec.TotalAmount)
}

func TestLimitBoundaryScenario(t *testing.T) {
	l := New()
	route := devnetToSepolia(t)
	l.UpdateRouteLimit(route, 1_000_000_00000000) // $1M, 8dp

	const ethPriceUSD8dp = 10_00000000

	ok, err := l.CheckAndRecordSendingTransfer(route, 1, ethPriceUSD8dp, 90_000, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.CheckAndRecordSendingTransfer(route, 1, ethPriceUSD8dp, 10_000, HourMillis)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, _ := l.Snapshot(route)
	assert.Equal(t, uint64(100_000)*ethPriceUSD8dp, rec.TotalAmount)

	before, _ := l.Snapshot(route)
	ok, err = l.CheckAndRecordSendingTransfer(route, 1, ethPriceUSD8dp, 1, HourMillis)
	require.NoError(t, err)
	assert.False(t, ok)

	after, _ := l.Snapshot(route)
	assert.Equal(t, before, after)

	ok, err = l.CheckAndRecordSendingTransfer(route, 1, ethPriceUSD8dp, 90_000, 24*HourMillis)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateRouteLimitOverwrites(t *testing.T) {
	l := New()
	route := devnetToSepolia(t)
	l.UpdateRouteLimit(route, 100)
	got, err := l.RouteLimit(route)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got)

	l.UpdateRouteLimit(route, 200)
	got, err = l.RouteLimit(route)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), got)
}
