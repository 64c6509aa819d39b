// Package opportunity scores, ranks and allocates cash across a
// cycle's combined signals. Config is split into a nested
// ScoringConfig/AllocationConfig pair so the scorer and the allocator
// can be tuned independently.
package opportunity

import (
	"math"
	"sort"

	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/riverforge/combine-trader/internal/strategy"
)

// ScoringConfig parameterizes the per-pair opportunity score.
type ScoringConfig struct {
	ActionBonusPct      float64 // default 0.20
	MomentumThreshold   float64 // default 0.03 (24h change fraction)
	MomentumBonus       float64 // default 10
	ConsensusBonusEach  float64 // default 5
	ConsensusBonusCap   float64 // default 15
	RegimeAlignBonus    float64 // default 5
	MinActionableScore  float64 // default 50
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		ActionBonusPct:     0.20,
		MomentumThreshold:  0.03,
		MomentumBonus:      10,
		ConsensusBonusEach: 5,
		ConsensusBonusCap:  15,
		RegimeAlignBonus:   5,
		MinActionableScore: 50,
	}
}

// AllocationConfig parameterizes the BUY capital allocation.
type AllocationConfig struct {
	ReserveRatio        float64 // default 0.2
	MinReserveAbsolute  float64 // default 0
	PowerFactor         float64 // default 1.2
	MinTradeAllocation  float64 // default 50
	MaxSingleTradeRatio float64 // default 0.6
}

func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		ReserveRatio:        0.2,
		PowerFactor:         1.2,
		MinTradeAllocation:  50,
		MaxSingleTradeRatio: 0.6,
	}
}

// Opportunity augments a combined signal with its opportunity score,
// consensus count and (once ranked) position.
type Opportunity struct {
	Pair            string
	Combined        combiner.Combined
	Score           float64
	ConsensusCount  int
	Rank            int
	AllocatedQuote  float64 // set only for BUY opportunities that survive allocation
}

// Score computes the per-pair opportunity score for one combined signal.
// HOLD signals score 0 and are excluded by the caller.
func Score(cfg ScoringConfig, c combiner.Combined) (score float64, consensusCount int) {
	if c.Action == strategy.Hold {
		return 0, 0
	}

	base := c.Confidence
	score = base * (1 + cfg.ActionBonusPct)

	if absf(c.PriceChange24h) > cfg.MomentumThreshold {
		score += cfg.MomentumBonus
	}

	for _, sig := range c.IndividualStrategies {
		if sig.Action == c.Action {
			consensusCount++
		}
	}
	consensusBonus := float64(consensusCount) * cfg.ConsensusBonusEach
	if consensusBonus > cfg.ConsensusBonusCap {
		consensusBonus = cfg.ConsensusBonusCap
	}
	score += consensusBonus

	if (c.Action == strategy.Buy && c.Regime == combiner.Bull) || (c.Action == strategy.Sell && c.Regime == combiner.Bear) {
		score += cfg.RegimeAlignBonus
	}

	return clamp100(score), consensusCount
}

// Rank scores every combined signal, drops HOLDs and below-threshold
// opportunities, and returns the survivors sorted by descending score
// with Rank populated.
func Rank(cfg ScoringConfig, combined []combiner.Combined) []Opportunity {
	opps := make([]Opportunity, 0, len(combined))
	for _, c := range combined {
		score, consensus := Score(cfg, c)
		if score < cfg.MinActionableScore {
			continue
		}
		opps = append(opps, Opportunity{Pair: c.Pair, Combined: c, Score: score, ConsensusCount: consensus})
	}

	sort.SliceStable(opps, func(i, j int) bool { return opps[i].Score > opps[j].Score })
	for i := range opps {
		opps[i].Rank = i + 1
	}
	return opps
}

// Reserve computes the cycle's reserve floor.
func Reserve(cfg AllocationConfig, portfolioValueQuote float64) float64 {
	r := cfg.ReserveRatio * portfolioValueQuote
	if cfg.MinReserveAbsolute > r {
		return cfg.MinReserveAbsolute
	}
	return r
}

// Allocate distributes tradableQuote across the BUY opportunities in
// opps using power-law weights, dropping below-minimum survivors and
// renormalising to a fixpoint, then clipping over-maximum shares and
// redistributing the excess. Opportunities are mutated in
// place (AllocatedQuote set); SELL opportunities are left untouched.
func Allocate(cfg AllocationConfig, opps []Opportunity, tradableQuote float64) {
	if tradableQuote <= 0 {
		return
	}

	type candidate struct {
		idx    int
		weight float64
	}
	candidates := make([]candidate, 0, len(opps))
	for i, o := range opps {
		if o.Combined.Action != strategy.Buy {
			continue
		}
		candidates = append(candidates, candidate{idx: i, weight: pow(o.Score, cfg.PowerFactor)})
	}
	if len(candidates) == 0 {
		return
	}

	// Drop-below-minimum / renormalise to fixpoint.
	for {
		total := 0.0
		for _, c := range candidates {
			total += c.weight
		}
		if total == 0 {
			return
		}

		dropped := false
		survivors := candidates[:0:0]
		for _, c := range candidates {
			share := c.weight / total * tradableQuote
			if share < cfg.MinTradeAllocation {
				dropped = true
				continue
			}
			survivors = append(survivors, c)
		}
		candidates = survivors
		if !dropped || len(candidates) == 0 {
			break
		}
	}
	if len(candidates) == 0 {
		return
	}

	total := 0.0
	for _, c := range candidates {
		total += c.weight
	}
	shares := make(map[int]float64, len(candidates))
	for _, c := range candidates {
		shares[c.idx] = c.weight / total * tradableQuote
	}

	// Clip over-maximum shares and redistribute the excess
	// proportionally to non-capped survivors, iterated to fixpoint.
	maxShare := cfg.MaxSingleTradeRatio * tradableQuote
	for {
		excess := 0.0
		cappedNow := map[int]bool{}
		for idx, share := range shares {
			if share > maxShare {
				excess += share - maxShare
				shares[idx] = maxShare
				cappedNow[idx] = true
			}
		}
		if excess == 0 {
			break
		}
		uncappedTotal := 0.0
		for idx, share := range shares {
			if !cappedNow[idx] {
				uncappedTotal += share
			}
		}
		if uncappedTotal == 0 {
			break
		}
		for idx, share := range shares {
			if !cappedNow[idx] {
				shares[idx] = share + share/uncappedTotal*excess
			}
		}
	}

	for idx, share := range shares {
		opps[idx].AllocatedQuote = share
	}
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func clamp100(f float64) float64 {
	if f > 100 {
		return 100
	}
	if f < 0 {
		return 0
	}
	return f
}

func pow(base, exp float64) float64 {
	if base <= 0 {
		return 0
	}
	return math.Pow(base, exp)
}
