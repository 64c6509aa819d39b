package cooldown

import (
	"testing"
	"time"

	"github.com/riverforge/combine-trader/internal/strategy"
	"github.com/stretchr/testify/require"
)

func TestSuppressesOppositeSideWithinWindow(t *testing.T) {
	th := New(DefaultConfig())
	now := time.Now()
	th.Record("BTC-EUR", strategy.Buy, now)

	require.True(t, th.Suppressed("BTC-EUR", strategy.Sell, 90, 55, now.Add(5*time.Minute)))
}

func TestAllowsOppositeSideAfterWindow(t *testing.T) {
	th := New(DefaultConfig())
	now := time.Now()
	th.Record("BTC-EUR", strategy.Buy, now)

	require.False(t, th.Suppressed("BTC-EUR", strategy.Sell, 90, 55, now.Add(31*time.Minute)))
}

func TestSuppressesSameSideStackingBelowThreshold(t *testing.T) {
	th := New(DefaultConfig())
	now := time.Now()
	th.Record("BTC-EUR", strategy.Buy, now)

	require.True(t, th.Suppressed("BTC-EUR", strategy.Buy, 60, 55, now.Add(time.Minute)))
}

func TestAllowsSameSideStackingAboveThreshold(t *testing.T) {
	th := New(DefaultConfig())
	now := time.Now()
	th.Record("BTC-EUR", strategy.Buy, now)

	require.False(t, th.Suppressed("BTC-EUR", strategy.Buy, 75, 55, now.Add(time.Minute)))
}

func TestNoSuppressionWithoutPriorTrade(t *testing.T) {
	th := New(DefaultConfig())
	require.False(t, th.Suppressed("ETH-EUR", strategy.Buy, 90, 55, time.Now()))
}

func TestClearRemovesState(t *testing.T) {
	th := New(DefaultConfig())
	now := time.Now()
	th.Record("BTC-EUR", strategy.Buy, now)
	th.Clear("BTC-EUR")

	require.False(t, th.Suppressed("BTC-EUR", strategy.Sell, 90, 55, now.Add(time.Minute)))
}
