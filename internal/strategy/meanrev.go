package strategy

import (
	"fmt"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

// MeanRevConfig parameterizes the mean-reversion strategy.
type MeanRevConfig struct {
	RSIOversoldWeak     float64 // default 30
	RSIOversoldStrong   float64 // default 20
	RSIOverboughtWeak   float64 // default 70
	RSIOverboughtStrong float64 // default 80
	ZWeak               float64 // default -1.0 (mirrored for overbought)
	ZStrong             float64 // default -1.5 (mirrored for overbought)
}

func DefaultMeanRevConfig() MeanRevConfig {
	return MeanRevConfig{
		RSIOversoldWeak: 30, RSIOversoldStrong: 20,
		RSIOverboughtWeak: 70, RSIOverboughtStrong: 80,
		ZWeak: -1.0, ZStrong: -1.5,
	}
}

// MeanReversion combines RSI extremes and a Bollinger z-score. z = (price - bb_middle) / (bb_middle * bb_std_pct).
type MeanReversion struct {
	cfg MeanRevConfig
}

func NewMeanReversion(cfg MeanRevConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg}
}

func (m *MeanReversion) Name() string { return "mean_reversion" }

func (m *MeanReversion) RegimeSuitability(regime Regime) float64 {
	switch regime {
	case Sideways:
		return 0.9
	case Bull, Bear:
		return 0.6
	default:
		return 0.5
	}
}

func zScore(ind market.Indicators) float64 {
	denom := ind.BBMiddle * ind.BBStdPct
	if denom == 0 {
		return 0
	}
	return (ind.Price - ind.BBMiddle) / denom
}

func (m *MeanReversion) Analyse(ind market.Indicators, _ portfolio.View) Signal {
	z := zScore(ind)

	if ind.RSI14 < m.cfg.RSIOversoldWeak && z < m.cfg.ZWeak {
		confidence := 60.0
		if ind.RSI14 < m.cfg.RSIOversoldStrong && z < m.cfg.ZStrong {
			confidence = 80.0
		}
		return Signal{
			Action:             Buy,
			Confidence:         confidence,
			Reasoning:          fmt.Sprintf("RSI %.1f oversold, z-score %.2f below band", ind.RSI14, z),
			PositionMultiplier: 1.0,
		}
	}

	if ind.RSI14 > m.cfg.RSIOverboughtWeak && z > -m.cfg.ZWeak {
		confidence := 60.0
		if ind.RSI14 > m.cfg.RSIOverboughtStrong && z > -m.cfg.ZStrong {
			confidence = 80.0
		}
		return Signal{
			Action:             Sell,
			Confidence:         confidence,
			Reasoning:          fmt.Sprintf("RSI %.1f overbought, z-score %.2f above band", ind.RSI14, z),
			PositionMultiplier: 1.0,
		}
	}

	return Signal{Action: Hold, Confidence: 40, Reasoning: "no RSI/band extreme", PositionMultiplier: 1.0}
}
