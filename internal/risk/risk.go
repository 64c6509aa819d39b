// Package risk applies the risk-level multiplier, min/max trade size
// and the BEAR_MARKET_HARD override to a ranked opportunity.
package risk

import (
	"github.com/riverforge/combine-trader/internal/combiner"
)

// Level is the operator-configured risk appetite.
type Level string

const (
	Low    Level = "LOW"
	Medium Level = "MEDIUM"
	High   Level = "HIGH"
)

// Multiplier returns the risk-level scaling factor.
func (l Level) Multiplier() float64 {
	switch l {
	case Medium:
		return 0.75
	case High:
		return 0.5
	default:
		return 1.0
	}
}

// Config parameterizes the sizer.
type Config struct {
	Level                    Level
	ExchangeMinTradeSize     float64
	PerOrderMax              float64
	TargetQuoteAllocation    float64 // fraction, e.g. 0.3
	MaxRebalanceOvershootPct float64 // default 0.05

	BearMarketHardMultiplier float64 // default 0.25
	BearMarketHardMaxPct     float64 // default 0.02, of portfolio value
	BearMarketHardMaxTrades  int     // default 3
}

func DefaultConfig() Config {
	return Config{
		Level:                    Medium,
		MaxRebalanceOvershootPct: 0.05,
		BearMarketHardMultiplier: 0.25,
		BearMarketHardMaxPct:     0.02,
		BearMarketHardMaxTrades:  3,
	}
}

// Sized is the final quote/base amount to submit for one opportunity,
// or Skip if it falls below the exchange minimum.
type Sized struct {
	QuoteAmount float64
	BaseAmount  float64
	Skip        bool
	SkipReason  string
}

// SizeBuy clamps an allocated BUY amount by the risk multiplier,
// position multiplier, per-order maximum, and (if active) the
// BEAR_MARKET_HARD override.
func SizeBuy(cfg Config, regime combiner.Regime, allocatedQuote, positionMultiplier float64, tradesSoFarThisCycle int) Sized {
	riskMultiplier := cfg.Level.Multiplier()
	perOrderMax := cfg.PerOrderMax

	if regime == combiner.BearMarketHard {
		riskMultiplier *= cfg.BearMarketHardMultiplier
		if tradesSoFarThisCycle >= cfg.BearMarketHardMaxTrades {
			return Sized{Skip: true, SkipReason: "BEAR_MARKET_HARD trade cap reached"}
		}
	}

	quote := allocatedQuote * riskMultiplier * clampPositionMultiplier(positionMultiplier)

	// The caller is expected to pass PerOrderMax already scaled to
	// bear_market_hard_max_pct * portfolio_value when the override is
	// active; this clamp applies either way.
	if perOrderMax > 0 && quote > perOrderMax {
		quote = perOrderMax
	}

	if quote < cfg.ExchangeMinTradeSize {
		return Sized{Skip: true, SkipReason: "below exchange minimum trade size"}
	}
	return Sized{QuoteAmount: quote}
}

// SizeSell computes the base-asset amount to sell: min(held_base *
// target_fraction, assetMax), where target_fraction = position
// multiplier * rebalance_factor, and rebalance_factor is chosen so
// the post-trade quote-currency share moves toward
// target_quote_allocation without overshooting by more than
// MaxRebalanceOvershootPct.
func SizeSell(cfg Config, heldBase, price, portfolioValueQuote, quoteBalance, positionMultiplier, assetMax float64) Sized {
	currentQuoteShare := 0.0
	if portfolioValueQuote > 0 {
		currentQuoteShare = quoteBalance / portfolioValueQuote
	}

	shortfall := cfg.TargetQuoteAllocation - currentQuoteShare
	rebalanceFactor := 1.0
	if shortfall > 0 && heldBase*price > 0 {
		// How much of the held base, sold, would close the shortfall —
		// expressed as a fraction of the held base.
		neededQuote := shortfall * portfolioValueQuote
		rebalanceFactor = clampUnitPositive(neededQuote / (heldBase * price))
	}

	targetFraction := clampPositionMultiplier(positionMultiplier) * rebalanceFactor

	// Cap so the post-trade quote share doesn't overshoot target by
	// more than MaxRebalanceOvershootPct.
	maxOvershootQuote := (cfg.TargetQuoteAllocation + cfg.MaxRebalanceOvershootPct) * portfolioValueQuote
	maxSellQuoteForOvershoot := maxOvershootQuote - quoteBalance
	base := heldBase * targetFraction
	if assetMax > 0 && base > assetMax {
		base = assetMax
	}
	if price > 0 {
		maxBaseForOvershoot := maxSellQuoteForOvershoot / price
		if base > maxBaseForOvershoot {
			base = maxBaseForOvershoot
		}
	}
	if base <= 0 {
		return Sized{Skip: true, SkipReason: "no sellable amount after rebalance cap"}
	}

	quote := base * price
	if quote < cfg.ExchangeMinTradeSize {
		return Sized{Skip: true, SkipReason: "below exchange minimum trade size"}
	}
	return Sized{QuoteAmount: quote, BaseAmount: base}
}

func clampPositionMultiplier(m float64) float64 {
	if m < 0.5 {
		return 0.5
	}
	if m > 1.5 {
		return 1.5
	}
	return m
}

func clampUnitPositive(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
