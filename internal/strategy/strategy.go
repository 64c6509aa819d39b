// Package strategy implements the individual strategy ensemble: trend-following, mean-reversion, momentum and advisory, each
// a pure function of its inputs with no cross-cycle state —
// capability-based polymorphism rather than a class hierarchy.
package strategy

import (
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

// Action is the signal's directional call.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// Vote maps an Action to its signed contribution for the combiner's
// weighted-vote formula.
func (a Action) Vote() float64 {
	switch a {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// Signal is one strategy's ephemeral output for one pair in one
// cycle.
type Signal struct {
	Action             Action
	Confidence         float64 // [0,100]
	Reasoning          string
	PositionMultiplier float64 // [0.5, 1.5]
	Fallback           bool    // true only for the advisory safe-HOLD
}

// clampConfidence keeps a strategy's confidence inside the contract's
// [0,100] bound regardless of how the formula derived it.
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func clampMultiplier(m float64) float64 {
	if m < 0.5 {
		return 0.5
	}
	if m > 1.5 {
		return 1.5
	}
	return m
}

// Regime mirrors combiner.Regime without importing it, avoiding a
// strategy→combiner dependency cycle (the combiner imports strategy,
// not the reverse). Values must stay in lockstep with combiner.Regime.
type Regime string

const (
	Bull            Regime = "BULL"
	Bear            Regime = "BEAR"
	Sideways        Regime = "SIDEWAYS"
	BearMarketHard  Regime = "BEAR_MARKET_HARD"
)

// Strategy is the capability interface every ensemble member
// implements: analyse is pure over its inputs, and
// regime suitability expresses how much weight the strategy deserves
// in a given regime (informational; the combiner's per-regime weight
// table is the authoritative source of weights — this method
// documents and can be used to sanity-check that table).
type Strategy interface {
	Name() string
	Analyse(ind market.Indicators, view portfolio.View) Signal
	RegimeSuitability(regime Regime) float64
}

// HoldSignal is the degenerate "no opinion" signal any strategy can
// return — e.g. on missing prerequisite data.
func HoldSignal(reason string) Signal {
	return Signal{Action: Hold, Confidence: 0, Reasoning: reason, PositionMultiplier: 1.0}
}
