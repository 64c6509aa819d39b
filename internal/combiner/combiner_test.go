package combiner

import (
	"testing"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/strategy"
	"github.com/stretchr/testify/require"
)

func TestDetectRegimeBull(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0.05, ATR: 1, Price: 100}
	require.Equal(t, Bull, DetectRegime(cfg, ind))
}

func TestDetectRegimeBear(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: -0.05, ATR: 1, Price: 100}
	require.Equal(t, Bear, DetectRegime(cfg, ind))
}

func TestDetectRegimeSidewaysOnHighVol(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0.05, ATR: 50, Price: 100}
	require.Equal(t, Sideways, DetectRegime(cfg, ind))
}

func TestDetectRegimeBearMarketHardOverrides(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0.05, PriceChange7d: -0.10, ATR: 1, Price: 100}
	require.Equal(t, BearMarketHard, DetectRegime(cfg, ind))
}

func TestWeightsSumToOne(t *testing.T) {
	for _, r := range []Regime{Bull, Bear, Sideways, BearMarketHard} {
		sum := 0.0
		for _, v := range WeightsFor(r) {
			sum += v
		}
		require.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestRedistributeAdvisoryFallback(t *testing.T) {
	w := WeightsFor(Bull)
	out := RedistributeAdvisoryFallback(w)
	require.Equal(t, 0.0, out["advisory"])

	sum := 0.0
	for _, v := range out {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestCombineUnanimousBuy(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0.05, ATR: 1, Price: 100}
	signals := map[string]strategy.Signal{
		"trend":          {Action: strategy.Buy, Confidence: 90},
		"mean_reversion": {Action: strategy.Buy, Confidence: 80},
		"momentum":       {Action: strategy.Buy, Confidence: 85},
		"advisory":       {Action: strategy.Buy, Confidence: 70},
	}
	combined := Combine(cfg, "BTC-EUR", ind, signals)
	require.Equal(t, strategy.Buy, combined.Action)
	require.Greater(t, combined.Confidence, cfg.ActionThreshold)
}

func TestCombineHoldOnDisagreement(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0.05, ATR: 1, Price: 100}
	signals := map[string]strategy.Signal{
		"trend":          {Action: strategy.Buy, Confidence: 50},
		"mean_reversion": {Action: strategy.Sell, Confidence: 50},
		"momentum":       {Action: strategy.Hold, Confidence: 0},
		"advisory":       {Action: strategy.Hold, Confidence: 0},
	}
	combined := Combine(cfg, "BTC-EUR", ind, signals)
	require.Equal(t, strategy.Hold, combined.Action)
}

func TestCombineCloseCallPrefersHighestConfidenceStrategy(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0, ATR: 10, Price: 100} // SIDEWAYS
	signals := map[string]strategy.Signal{
		"trend":          {Action: strategy.Buy, Confidence: 80},
		"mean_reversion": {Action: strategy.Sell, Confidence: 29},
		"momentum":       {Action: strategy.Hold, Confidence: 0},
		"advisory":       {Action: strategy.Hold, Confidence: 0},
	}
	combined := Combine(cfg, "BTC-EUR", ind, signals)
	// buyMag = 0.15*80 = 12, sellMag = 0.40*29 = 11.6: a close call
	// (within 1) that the net weighted vote alone would leave at HOLD.
	require.Equal(t, strategy.Buy, combined.Action)
}

func TestCombineExactCancellationPrefersHold(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0, ATR: 10, Price: 100} // SIDEWAYS
	signals := map[string]strategy.Signal{
		"trend":          {Action: strategy.Buy, Confidence: 80},
		"mean_reversion": {Action: strategy.Sell, Confidence: 30},
		"momentum":       {Action: strategy.Hold, Confidence: 0},
		"advisory":       {Action: strategy.Hold, Confidence: 0},
	}
	combined := Combine(cfg, "BTC-EUR", ind, signals)
	// buyMag = 0.15*80 = 12 = sellMag = 0.40*30 = 12: an exact
	// cancellation stays HOLD even though trend has higher confidence.
	require.Equal(t, strategy.Hold, combined.Action)
}

func TestCombineRedistributesOnAdvisoryFallback(t *testing.T) {
	cfg := DefaultConfig()
	ind := market.Indicators{PriceChange30d: 0.05, ATR: 1, Price: 100}
	signals := map[string]strategy.Signal{
		"trend":          {Action: strategy.Buy, Confidence: 90},
		"mean_reversion": {Action: strategy.Buy, Confidence: 80},
		"momentum":       {Action: strategy.Buy, Confidence: 85},
		"advisory":       {Action: strategy.Hold, Confidence: 0, Fallback: true},
	}
	combined := Combine(cfg, "BTC-EUR", ind, signals)
	require.Equal(t, 0.0, combined.Weights["advisory"])
	require.Equal(t, strategy.Buy, combined.Action)
}
