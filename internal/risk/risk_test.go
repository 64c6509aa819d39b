package risk

import (
	"testing"

	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/stretchr/testify/require"
)

func TestLevelMultiplier(t *testing.T) {
	require.Equal(t, 1.0, Low.Multiplier())
	require.Equal(t, 0.75, Medium.Multiplier())
	require.Equal(t, 0.5, High.Multiplier())
}

func TestSizeBuyAppliesRiskAndPositionMultiplier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = Low
	cfg.ExchangeMinTradeSize = 10

	sized := SizeBuy(cfg, combiner.Bull, 500, 1.2, 0)
	require.False(t, sized.Skip)
	require.InDelta(t, 600, sized.QuoteAmount, 1e-9)
}

func TestSizeBuySkipsBelowMinimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExchangeMinTradeSize = 1000

	sized := SizeBuy(cfg, combiner.Bull, 500, 1.0, 0)
	require.True(t, sized.Skip)
}

func TestSizeBuyBearMarketHardOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = Low
	cfg.ExchangeMinTradeSize = 1
	cfg.PerOrderMax = 20 // caller pre-scales to 2% of portfolio

	sized := SizeBuy(cfg, combiner.BearMarketHard, 1000, 1.0, 0)
	require.False(t, sized.Skip)
	require.InDelta(t, 20, sized.QuoteAmount, 1e-9)
}

func TestSizeBuyBearMarketHardTradeCap(t *testing.T) {
	cfg := DefaultConfig()
	sized := SizeBuy(cfg, combiner.BearMarketHard, 500, 1.0, 3)
	require.True(t, sized.Skip)
}

func TestSizeSellRespectsAssetMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetQuoteAllocation = 0.3
	cfg.ExchangeMinTradeSize = 1

	sized := SizeSell(cfg, 1.0, 100, 1000, 100, 1.0, 0.2)
	require.False(t, sized.Skip)
	require.LessOrEqual(t, sized.BaseAmount, 0.2+1e-9)
}

func TestSizeSellSkipsBelowMinimum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExchangeMinTradeSize = 1_000_000

	sized := SizeSell(cfg, 1.0, 100, 1000, 100, 1.0, 0)
	require.True(t, sized.Skip)
}
