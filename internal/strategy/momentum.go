package strategy

import (
	"fmt"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

// MomentumConfig parameterizes the momentum strategy.
type MomentumConfig struct {
	BuyThreshold  float64 // default +70 on the combined [-100,100] score
	SellThreshold float64 // default -70
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{BuyThreshold: 70, SellThreshold: -70}
}

// Momentum blends price, volume, and technical momentum into one
// combined score: 0.4*price + 0.3*volume + 0.3*technical.
type Momentum struct {
	cfg MomentumConfig
}

func NewMomentum(cfg MomentumConfig) *Momentum {
	return &Momentum{cfg: cfg}
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) RegimeSuitability(regime Regime) float64 {
	switch regime {
	case Bull, Bear:
		return 0.8
	case Sideways:
		return 0.4
	default:
		return 0.5
	}
}

// priceMomentum normalises the 24h price change (a fraction, e.g.
// 0.05 == +5%) into [-100,100], saturating at +/-10%.
func priceMomentum(ind market.Indicators) float64 {
	return clampScore(ind.PriceChange24h / 0.10 * 100)
}

// volumeMomentum compares current volume to its SMA and signs the
// result with the 24h price direction, so heavy volume reinforces the
// move; it saturates at +/-100 once volume is double the average.
func volumeMomentum(ind market.Indicators) float64 {
	if ind.VolumeSMA == 0 {
		return 0
	}
	ratio := ind.Volume/ind.VolumeSMA - 1
	if ind.PriceChange24h < 0 {
		ratio = -ratio
	}
	return clampScore(ratio * 100)
}

// technicalMomentum blends the MACD histogram sign/size with RSI's
// distance from neutral.
func technicalMomentum(ind market.Indicators) float64 {
	macdComponent := 0.0
	denom := absf(ind.MACDLine) + absf(ind.MACDSignal)
	if denom > 0 {
		macdComponent = ind.MACDHistogram / denom * 100
	}
	rsiComponent := (ind.RSI14 - 50) * 2
	return clampScore(0.6*macdComponent + 0.4*rsiComponent)
}

func clampScore(s float64) float64 {
	if s > 100 {
		return 100
	}
	if s < -100 {
		return -100
	}
	return s
}

func (m *Momentum) Analyse(ind market.Indicators, _ portfolio.View) Signal {
	p := priceMomentum(ind)
	v := volumeMomentum(ind)
	t := technicalMomentum(ind)
	combined := 0.4*p + 0.3*v + 0.3*t

	// position_multiplier climbs to 1.3 for very strong momentum,
	// scaling from the action threshold up to the score's extreme.
	multiplier := clampMultiplier(1.0 + (absf(combined)-m.cfg.BuyThreshold)/(100-m.cfg.BuyThreshold)*0.3)

	switch {
	case combined > m.cfg.BuyThreshold:
		return Signal{
			Action:             Buy,
			Confidence:         clampConfidence(50 + (combined-m.cfg.BuyThreshold)/(100-m.cfg.BuyThreshold)*50),
			Reasoning:          fmt.Sprintf("combined momentum %.1f (price %.1f, volume %.1f, technical %.1f)", combined, p, v, t),
			PositionMultiplier: multiplier,
		}
	case combined < m.cfg.SellThreshold:
		return Signal{
			Action:             Sell,
			Confidence:         clampConfidence(50 + (m.cfg.SellThreshold-combined)/(100+m.cfg.SellThreshold)*50),
			Reasoning:          fmt.Sprintf("combined momentum %.1f (price %.1f, volume %.1f, technical %.1f)", combined, p, v, t),
			PositionMultiplier: multiplier,
		}
	default:
		return Signal{Action: Hold, Confidence: clampConfidence(absf(combined) / m.cfg.BuyThreshold * 40), Reasoning: "combined momentum within neutral band", PositionMultiplier: 1.0}
	}
}
