package strategy

import (
	"testing"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/stretchr/testify/require"
)

func TestTrendFollowingBuy(t *testing.T) {
	s := NewTrendFollowing(DefaultTrendConfig())
	ind := market.Indicators{
		Price: 110, BBMiddle: 100, RSI14: 60,
		MACDLine: 5, MACDSignal: 1,
	}
	sig := s.Analyse(ind, portfolio.View{})
	require.Equal(t, Buy, sig.Action)
	require.GreaterOrEqual(t, sig.PositionMultiplier, 0.7)
	require.LessOrEqual(t, sig.PositionMultiplier, 1.2)
}

func TestTrendFollowingSell(t *testing.T) {
	s := NewTrendFollowing(DefaultTrendConfig())
	ind := market.Indicators{
		Price: 90, BBMiddle: 100, RSI14: 40,
		MACDLine: -5, MACDSignal: -1,
	}
	sig := s.Analyse(ind, portfolio.View{})
	require.Equal(t, Sell, sig.Action)
}

func TestTrendFollowingHoldWhenWeak(t *testing.T) {
	s := NewTrendFollowing(DefaultTrendConfig())
	ind := market.Indicators{Price: 100, BBMiddle: 100, RSI14: 50}
	sig := s.Analyse(ind, portfolio.View{})
	require.Equal(t, Hold, sig.Action)
}

func TestTrendFollowingSuppressedByOverboughtRSI(t *testing.T) {
	s := NewTrendFollowing(DefaultTrendConfig())
	ind := market.Indicators{
		Price: 110, BBMiddle: 100, RSI14: 90,
		MACDLine: 5, MACDSignal: 1,
	}
	sig := s.Analyse(ind, portfolio.View{})
	require.Equal(t, Hold, sig.Action)
}

func TestTrendFollowingRegimeSuitability(t *testing.T) {
	s := NewTrendFollowing(DefaultTrendConfig())
	require.Equal(t, 0.9, s.RegimeSuitability(Bull))
	require.Equal(t, 0.3, s.RegimeSuitability(Sideways))
}
