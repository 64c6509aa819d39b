// Package combiner detects the market regime and combines the
// strategy ensemble's individual signals into one combined signal
// per pair via a regime-conditioned weight table.
package combiner

import (
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/strategy"
)

// Regime is the market-regime classification driving both strategy
// weights here and the risk sizer's override. It
// must stay in lockstep with strategy.Regime (duplicated there to
// avoid an import cycle).
type Regime string

const (
	Bull           Regime = "BULL"
	Bear           Regime = "BEAR"
	Sideways       Regime = "SIDEWAYS"
	BearMarketHard Regime = "BEAR_MARKET_HARD"
)

func (r Regime) toStrategyRegime() strategy.Regime {
	return strategy.Regime(r)
}

// Config parameterizes regime detection and the action threshold.
type Config struct {
	BullChange30d      float64 // default +0.02
	BearChange30d      float64 // default -0.02
	MaxNormalizedVol   float64 // default 0.3
	BearHardChange7d   float64 // default -0.05
	ActionThreshold    float64 // default 55, on the [0,100] |weighted vote| scale
}

func DefaultConfig() Config {
	return Config{
		BullChange30d:    0.02,
		BearChange30d:    -0.02,
		MaxNormalizedVol: 0.3,
		BearHardChange7d: -0.05,
		ActionThreshold:  55,
	}
}

// Weights is the per-strategy weight set for a combiner pass. Keys
// match strategy.Strategy.Name().
type Weights map[string]float64

// baseWeights is the per-regime strategy weight table. BEAR_MARKET_HARD reuses BEAR's
// weighting: it is a downstream-risk override, not a distinct voting
// regime.
var baseWeights = map[Regime]Weights{
	Bull:           {"trend": 0.35, "mean_reversion": 0.20, "momentum": 0.25, "advisory": 0.20},
	Bear:           {"trend": 0.30, "mean_reversion": 0.25, "momentum": 0.25, "advisory": 0.20},
	Sideways:       {"trend": 0.15, "mean_reversion": 0.40, "momentum": 0.25, "advisory": 0.20},
	BearMarketHard: {"trend": 0.30, "mean_reversion": 0.25, "momentum": 0.25, "advisory": 0.20},
}

// DetectRegime classifies the market regime from a pair's indicators
//. BEAR_MARKET_HARD is an override raised independently
// of the BULL/BEAR/SIDEWAYS classification whenever the 7-day change
// crosses the hard-bear line.
func DetectRegime(cfg Config, ind market.Indicators) Regime {
	if ind.PriceChange7d < cfg.BearHardChange7d {
		return BearMarketHard
	}
	vol := ind.NormalizedVolatility()
	switch {
	case ind.PriceChange30d > cfg.BullChange30d && vol < cfg.MaxNormalizedVol:
		return Bull
	case ind.PriceChange30d < cfg.BearChange30d && vol < cfg.MaxNormalizedVol:
		return Bear
	default:
		return Sideways
	}
}

// WeightsFor returns a copy of the regime's weight table, safe for
// the caller to redistribute in place.
func WeightsFor(regime Regime) Weights {
	src := baseWeights[regime]
	if src == nil {
		src = baseWeights[Sideways]
	}
	w := make(Weights, len(src))
	for k, v := range src {
		w[k] = v
	}
	return w
}

// RedistributeAdvisoryFallback zeroes the advisory weight and spreads
// it proportionally across the remaining strategies.
func RedistributeAdvisoryFallback(w Weights) Weights {
	advisoryWeight := w["advisory"]
	if advisoryWeight == 0 {
		return w
	}
	remaining := 1 - advisoryWeight
	if remaining <= 0 {
		return w
	}
	out := make(Weights, len(w))
	for k, v := range w {
		if k == "advisory" {
			out[k] = 0
			continue
		}
		out[k] = v + v/remaining*advisoryWeight
	}
	return out
}

// Combined is the per-pair output of a combiner pass.
type Combined struct {
	Pair                 string
	Action               strategy.Action
	Confidence           float64 // combined_confidence, [0,100]
	Regime               Regime
	Weights              Weights
	IndividualStrategies map[string]strategy.Signal
	PriceChange24h       float64
}

// Combine computes the regime, applies the weight table (redistributing
// away from advisory if it fell back), and folds the individual
// signals into one combined signal via the weighted-vote rule:
// combined_confidence = |Σ wᵢ·voteᵢ·confᵢ|, action decided by the
// sign of that weighted vote against ActionThreshold, HOLD on tie
//.
func Combine(cfg Config, pair string, ind market.Indicators, signals map[string]strategy.Signal) Combined {
	regime := DetectRegime(cfg, ind)
	weights := WeightsFor(regime)

	if adv, ok := signals["advisory"]; ok && adv.Fallback {
		weights = RedistributeAdvisoryFallback(weights)
	}

	var weightedVote float64
	var buyMag, sellMag float64
	for name, sig := range signals {
		w := weights[name]
		weightedVote += w * sig.Action.Vote() * sig.Confidence
		switch sig.Action {
		case strategy.Buy:
			buyMag += w * sig.Confidence
		case strategy.Sell:
			sellMag += w * sig.Confidence
		}
	}

	action := strategy.Hold
	switch {
	case weightedVote >= cfg.ActionThreshold:
		action = strategy.Buy
	case weightedVote <= -cfg.ActionThreshold:
		action = strategy.Sell
	case buyMag > 0 && sellMag > 0 && buyMag != sellMag && absf(buyMag-sellMag) < 1:
		// Neither side cleared the threshold and the opposing
		// magnitudes nearly cancel out: defer to whichever individual
		// strategy is most confident rather than default to HOLD. An
		// exact cancellation (buyMag == sellMag) falls through and
		// stays HOLD.
		action = highestConfidenceAction(signals)
	}

	return Combined{
		Pair:                 pair,
		Action:               action,
		Confidence:           clamp(absf(weightedVote)),
		Regime:               regime,
		Weights:              weights,
		IndividualStrategies: signals,
		PriceChange24h:       ind.PriceChange24h,
	}
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// highestConfidenceAction returns the action of the signal with the
// largest individual confidence, used to break close calls between
// opposing BUY/SELL pressure.
func highestConfidenceAction(signals map[string]strategy.Signal) strategy.Action {
	best := strategy.Hold
	bestConf := -1.0
	for _, sig := range signals {
		if sig.Confidence > bestConf {
			bestConf = sig.Confidence
			best = sig.Action
		}
	}
	return best
}

func clamp(f float64) float64 {
	if f > 100 {
		return 100
	}
	if f < 0 {
		return 0
	}
	return f
}
