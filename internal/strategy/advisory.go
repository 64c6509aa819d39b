package strategy

import (
	"context"

	"github.com/riverforge/combine-trader/internal/advisory"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

// ContextualStrategy is an optional capability a Strategy may also
// implement: a version of Analyse that can make an external call
// bounded by a caller-supplied context and aware of which pair it is
// evaluating. Only the advisory strategy needs it; the orchestrator
// type-asserts for this capability rather than widening the base Strategy
// contract for every pure-formula strategy.
type ContextualStrategy interface {
	Strategy
	AnalyseContext(ctx context.Context, pair string, ind market.Indicators, view portfolio.View) Signal
}

// AdvisoryConfig carries the engine's target quote-allocation
// percentage, needed to build the portfolio-awareness block.
type AdvisoryConfig struct {
	TargetQuoteAllocationPct float64
}

// Advisory wraps an advisory.Advisor as a Strategy/ContextualStrategy.
// Its Analyse (no context) falls back to context.Background(), for
// callers that only hold the base Strategy interface; real cycle
// callers should use AnalyseContext so the advisory call inherits the
// cycle's cancellation and the pair it's evaluating.
type Advisory struct {
	advisor *advisory.Advisor
	cfg     AdvisoryConfig
}

func NewAdvisory(advisor *advisory.Advisor, cfg AdvisoryConfig) *Advisory {
	return &Advisory{advisor: advisor, cfg: cfg}
}

func (a *Advisory) Name() string { return "advisory" }

func (a *Advisory) RegimeSuitability(regime Regime) float64 {
	// The advisory model is regime-agnostic; its weight is set by the
	// combiner's per-regime table, not by this strategy.
	return 0.5
}

func (a *Advisory) Analyse(ind market.Indicators, view portfolio.View) Signal {
	return a.AnalyseContext(context.Background(), "", ind, view)
}

func (a *Advisory) AnalyseContext(ctx context.Context, pair string, ind market.Indicators, view portfolio.View) Signal {
	aware := advisory.BuildAwareness(view, a.cfg.TargetQuoteAllocationPct)
	dec := a.advisor.Evaluate(ctx, pair, ind, aware)

	var action Action
	switch dec.Action {
	case "BUY":
		action = Buy
	case "SELL":
		action = Sell
	default:
		action = Hold
	}

	return Signal{
		Action:             action,
		Confidence:         clampConfidence(dec.Confidence),
		Reasoning:          dec.Reasoning,
		PositionMultiplier: 1.0,
		Fallback:           dec.Fallback,
	}
}
