package strategy

import (
	"fmt"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

// TrendConfig parameterizes the trend-following strategy.
type TrendConfig struct {
	TrendThreshold  float64 // default 0.5, on a [0,1] trend-strength scale
	RSIOverbought   float64 // default 75
	RSIOversold     float64 // default 25 (mirror of overbought)
}

func DefaultTrendConfig() TrendConfig {
	return TrendConfig{TrendThreshold: 0.5, RSIOverbought: 75, RSIOversold: 25}
}

// TrendFollowing computes trend strength and direction from MACD line
// vs signal, price vs Bollinger middle, and RSI confirmation.
type TrendFollowing struct {
	cfg TrendConfig
}

func NewTrendFollowing(cfg TrendConfig) *TrendFollowing {
	return &TrendFollowing{cfg: cfg}
}

func (t *TrendFollowing) Name() string { return "trend" }

func (t *TrendFollowing) RegimeSuitability(regime Regime) float64 {
	switch regime {
	case Bull:
		return 0.9
	case Bear:
		return 0.8
	case Sideways:
		return 0.3
	default:
		return 0.5
	}
}

// trendStrength blends three [-1,1]-ish inputs into a [0,1] magnitude
// and a signed direction: MACD histogram sign/size, price position
// relative to the Bollinger middle band, and RSI's distance from 50.
func trendStrength(ind market.Indicators) (strength float64, up bool) {
	macdSignal := 0.0
	if ind.MACDLine != 0 || ind.MACDSignal != 0 {
		denom := absf(ind.MACDLine) + absf(ind.MACDSignal)
		if denom > 0 {
			macdSignal = (ind.MACDLine - ind.MACDSignal) / denom
		}
	}

	priceSignal := 0.0
	if ind.BBMiddle != 0 {
		priceSignal = clampUnit((ind.Price - ind.BBMiddle) / ind.BBMiddle / 0.05)
	}

	rsiSignal := clampUnit((ind.RSI14 - 50) / 50)

	blended := 0.4*macdSignal + 0.35*priceSignal + 0.25*rsiSignal
	up = blended >= 0
	strength = clampUnit(absf(blended))
	return strength, up
}

func (t *TrendFollowing) Analyse(ind market.Indicators, _ portfolio.View) Signal {
	strength, up := trendStrength(ind)

	// position_multiplier scales 0.7->1.2 linearly with trend strength
	//.
	multiplier := clampMultiplier(0.7 + strength*(1.2-0.7))

	if strength < t.cfg.TrendThreshold {
		return Signal{Action: Hold, Confidence: clampConfidence(strength * 100), Reasoning: "trend strength below threshold", PositionMultiplier: multiplier}
	}

	confidence := clampConfidence(50 + strength*50)

	if up && ind.RSI14 < t.cfg.RSIOverbought {
		return Signal{
			Action:             Buy,
			Confidence:         confidence,
			Reasoning:          fmt.Sprintf("uptrend strength %.2f, RSI %.1f not overbought", strength, ind.RSI14),
			PositionMultiplier: multiplier,
		}
	}
	if !up && ind.RSI14 > t.cfg.RSIOversold {
		return Signal{
			Action:             Sell,
			Confidence:         confidence,
			Reasoning:          fmt.Sprintf("downtrend strength %.2f, RSI %.1f not oversold", strength, ind.RSI14),
			PositionMultiplier: multiplier,
		}
	}
	return Signal{Action: Hold, Confidence: clampConfidence(strength * 40), Reasoning: "trend direction contradicted by RSI extreme", PositionMultiplier: multiplier}
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clampUnit(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < -1 {
		return -1
	}
	return f
}
