// Package orchestrator drives the three-phase decision cycle on a
// scheduled tick with single-cycle mutual exclusion: a time.Ticker
// plus a select over ticker/stop channel, an isRunning guard, and a
// WaitGroup for graceful shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/riverforge/combine-trader/internal/cooldown"
	"github.com/riverforge/combine-trader/internal/decision"
	"github.com/riverforge/combine-trader/internal/exchange"
	"github.com/riverforge/combine-trader/internal/executor"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/opportunity"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/riverforge/combine-trader/internal/risk"
	"github.com/riverforge/combine-trader/internal/strategy"
	"github.com/riverforge/combine-trader/internal/workerpool"
	"github.com/riverforge/combine-trader/internal/xerrors"
	"github.com/riverforge/combine-trader/internal/xlog"
)

// State names the cycle's current phase for observability.
type State string

const (
	StateIdle         State = "IDLE"
	StateCollecting   State = "COLLECTING"
	StateAnalysing    State = "ANALYSING"
	StateRanking      State = "RANKING"
	StateExecuting    State = "EXECUTING"
	StateSnapshotting State = "SNAPSHOTTING"
	StateDegraded     State = "DEGRADED"
)

// Config parameterizes the cycle driver itself (cadence and the
// sub-component configs each phase needs).
type Config struct {
	Pairs                    []string
	QuoteCurrency            string
	DecisionInterval         time.Duration
	CollectConcurrency       int
	MaxConsecutiveFailures   int // default 3; third consecutive failure is runtime-fatal
	ShutdownBudget           time.Duration // default 30s
	CombinerConfig           combiner.Config
	ScoringConfig            opportunity.ScoringConfig
	AllocationConfig         opportunity.AllocationConfig
	RiskConfig               risk.Config
	TargetQuoteAllocationPct float64
}

func DefaultConfig() Config {
	return Config{
		DecisionInterval:       time.Hour,
		MaxConsecutiveFailures: 3,
		ShutdownBudget:         30 * time.Second,
		CombinerConfig:         combiner.DefaultConfig(),
		ScoringConfig:          opportunity.DefaultScoringConfig(),
		AllocationConfig:       opportunity.DefaultAllocationConfig(),
		RiskConfig:             risk.DefaultConfig(),
	}
}

// Orchestrator wires every phase's collaborators and drives the
// scheduled cycle loop.
type Orchestrator struct {
	cfg Config

	collector  *market.Collector
	strategies []strategy.Strategy
	ledger     *portfolio.Store
	throttle   *cooldown.Throttle
	exec       *executor.Executor
	decisions  *decision.Ring

	state atomic.Value // State

	cycleRunning int32 // atomic bool: a cycle is currently executing
	consecutiveFailures int

	stopCh  chan struct{}
	stopped chan struct{}
	fatalCh chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex // guards consecutiveFailures
}

func New(cfg Config, collector *market.Collector, strategies []strategy.Strategy, ledger *portfolio.Store, throttle *cooldown.Throttle, exec *executor.Executor, decisions *decision.Ring) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		collector:  collector,
		strategies: strategies,
		ledger:     ledger,
		throttle:   throttle,
		exec:       exec,
		decisions:  decisions,
		fatalCh:    make(chan struct{}),
	}
	o.state.Store(StateIdle)
	return o
}

func (o *Orchestrator) State() State { return o.state.Load().(State) }

// Fatal is closed once consecutive cycle failures reach
// cfg.MaxConsecutiveFailures; the caller running Run in a goroutine
// should treat a close on this channel as runtime-fatal and exit the
// process after calling Stop.
func (o *Orchestrator) Fatal() <-chan struct{} { return o.fatalCh }

// Run starts the scheduled cycle loop and blocks until Stop is
// called. It executes one cycle immediately, then on every tick
// thereafter; a tick that lands while a cycle is still running is
// dropped with a warning rather than queued.
func (o *Orchestrator) Run(ctx context.Context) {
	o.stopCh = make(chan struct{})
	o.stopped = make(chan struct{})
	o.wg.Add(1)
	defer o.wg.Done()
	defer close(o.stopped)

	xlog.Infof("🚀 decision engine started, cadence %v, %d pairs", o.cfg.DecisionInterval, len(o.cfg.Pairs))

	o.runOneCycleIfIdle(ctx)

	ticker := time.NewTicker(o.cfg.DecisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.runOneCycleIfIdle(ctx)
		case <-o.stopCh:
			xlog.Info("⏹ stop signal received, exiting cycle loop")
			return
		case <-ctx.Done():
			xlog.Info("⏹ context cancelled, exiting cycle loop")
			return
		}
	}
}

// Stop requests a graceful shutdown: the in-flight cycle (if any)
// finishes its current opportunity then returns; Stop blocks until
// the loop exits or cfg.ShutdownBudget elapses.
func (o *Orchestrator) Stop() {
	if o.stopCh == nil {
		return
	}
	close(o.stopCh)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.cfg.ShutdownBudget):
		xlog.Warn("⚠️  shutdown budget exceeded, exiting without waiting for in-flight cycle")
	}
}

func (o *Orchestrator) runOneCycleIfIdle(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&o.cycleRunning, 0, 1) {
		xlog.Warn("⏭  tick dropped: a cycle is already running")
		return
	}
	defer atomic.StoreInt32(&o.cycleRunning, 0)

	cycleID := uuid.NewString()
	if _, err := o.RunCycle(ctx, cycleID); err != nil {
		o.mu.Lock()
		o.consecutiveFailures++
		failures := o.consecutiveFailures
		o.mu.Unlock()

		xlog.Err(err, fmt.Sprintf("cycle %s failed (%d consecutive)", cycleID, failures))
		o.state.Store(StateDegraded)

		if failures >= o.cfg.MaxConsecutiveFailures {
			xlog.Errorf("💥 %d consecutive cycle failures, escalating to runtime-fatal", failures)
			select {
			case <-o.fatalCh:
			default:
				close(o.fatalCh)
			}
		}
		return
	}

	o.mu.Lock()
	o.consecutiveFailures = 0
	o.mu.Unlock()
	o.state.Store(StateIdle)
}

// CycleResult summarizes one completed cycle for logging/tests.
type CycleResult struct {
	CycleID       string
	PairsAnalysed int
	PairsExcluded int
	Opportunities int
	Executed      int
}

// RunCycle drives one full pass of the three-phase cycle:
// COLLECTING -> ANALYSING -> RANKING -> EXECUTING -> SNAPSHOTTING. A
// pair-local or component-local failure never aborts the cycle; only
// an xerrors.CycleFatal error (authentication, lock contention) or a
// failure to persist the ledger returns an error here, at which point
// the caller marks the cycle DEGRADED.
func (o *Orchestrator) RunCycle(ctx context.Context, cycleID string) (CycleResult, error) {
	result := CycleResult{CycleID: cycleID}
	now := time.Now()

	o.state.Store(StateCollecting)
	snapshots, excluded := o.collect(ctx)
	result.PairsExcluded = len(excluded)
	for pair, reason := range excluded {
		xlog.Warnf("⚠️  excluding %s this cycle: %v", pair, reason)
		if xerrors.CycleFatal(reason) {
			return result, fmt.Errorf("collect %s: %w", pair, reason)
		}
	}

	o.state.Store(StateAnalysing)
	view := o.ledger.View()
	combined := make([]combiner.Combined, 0, len(snapshots))
	for _, snap := range snapshots {
		signals := o.analysePair(ctx, snap.Pair, snap.Indicators, view)
		c := combiner.Combine(o.cfg.CombinerConfig, snap.Pair, snap.Indicators, signals)
		combined = append(combined, c)
	}
	result.PairsAnalysed = len(combined)

	o.state.Store(StateRanking)
	ranked := opportunity.Rank(o.cfg.ScoringConfig, combined)
	result.Opportunities = len(ranked)

	reserve := opportunity.Reserve(o.cfg.AllocationConfig, view.PortfolioValueQuote)
	poolQuote := view.QuoteBalance() - reserve
	if poolQuote < 0 {
		poolQuote = 0
	}
	opportunity.Allocate(o.cfg.AllocationConfig, ranked, poolQuote)

	o.state.Store(StateExecuting)
	executed, execErr := o.executeRanked(ctx, cycleID, ranked, now)
	result.Executed = executed

	o.state.Store(StateSnapshotting)
	if err := o.ledger.Persist(); err != nil {
		return result, fmt.Errorf("persist ledger at cycle end: %w", err)
	}
	if execErr != nil {
		return result, fmt.Errorf("cycle-fatal execution error: %w", execErr)
	}

	return result, nil
}

// collect fetches a PairSnapshot per pair concurrently (bounded by
// CollectConcurrency), returning the survivors and a map of excluded
// pairs to their exclusion reason — missing data is pair-local and
// never aborts the cycle.
func (o *Orchestrator) collect(ctx context.Context) ([]market.PairSnapshot, map[string]error) {
	type outcome struct {
		snap market.PairSnapshot
		err  error
	}
	outcomes := workerpool.Run(o.cfg.Pairs, o.cfg.CollectConcurrency, func(pair string) outcome {
		snap, err := o.collector.Collect(ctx, pair)
		return outcome{snap: snap, err: err}
	})

	snapshots := make([]market.PairSnapshot, 0, len(outcomes))
	excluded := make(map[string]error)
	for i, out := range outcomes {
		if out.err != nil {
			excluded[o.cfg.Pairs[i]] = out.err
			continue
		}
		snapshots = append(snapshots, out.snap)
	}
	return snapshots, excluded
}

// analysePair runs every strategy in the ensemble over one pair,
// using the contextual call for strategies that implement it
// (currently only advisory) so it inherits the cycle's context and
// knows which pair it is evaluating.
func (o *Orchestrator) analysePair(ctx context.Context, pair string, ind market.Indicators, view portfolio.View) map[string]strategy.Signal {
	signals := make(map[string]strategy.Signal, len(o.strategies))
	for _, s := range o.strategies {
		var sig strategy.Signal
		if cs, ok := s.(strategy.ContextualStrategy); ok {
			sig = cs.AnalyseContext(ctx, pair, ind, view)
		} else {
			sig = s.Analyse(ind, view)
		}
		if ind.Degraded && sig.Confidence > 50 {
			sig.Confidence = 50
		}
		signals[s.Name()] = sig
	}
	return signals
}

// executeRanked walks the ranked opportunities in order (serial
// execution — at most one in-flight order at a time), consulting the
// cool-down throttle before sizing and submitting each one. SELL
// opportunities size against current holdings even without an
// allocation; BUY opportunities without a surviving allocation are
// skipped (Allocate already dropped them below the minimum).
func (o *Orchestrator) executeRanked(ctx context.Context, cycleID string, ranked []opportunity.Opportunity, now time.Time) (int, error) {
	executed := 0
	tradesSoFar := 0

	for _, opp := range ranked {
		select {
		case <-o.stopCh:
			xlog.Info("⏹ stop requested, skipping remaining opportunities")
			return executed, nil
		default:
		}
		c := opp.Combined
		if o.throttle.Suppressed(c.Pair, c.Action, c.Confidence, o.cfg.CombinerConfig.ActionThreshold, now) {
			_ = o.decisions.Append(decision.FromCombined(cycleID, c, now, false, true, "cooldown suppressed", ""))
			continue
		}

		view := o.ledger.View()
		var sized risk.Sized
		var plan executor.Plan

		switch c.Action {
		case strategy.Buy:
			if opp.AllocatedQuote <= 0 {
				_ = o.decisions.Append(decision.FromCombined(cycleID, c, now, false, false, "no surviving allocation", ""))
				continue
			}
			multiplier := positionMultiplierFor(c)
			riskCfg := o.cfg.RiskConfig
			if c.Regime == combiner.BearMarketHard {
				riskCfg.PerOrderMax = riskCfg.BearMarketHardMaxPct * view.PortfolioValueQuote
			}
			sized = risk.SizeBuy(riskCfg, c.Regime, opp.AllocatedQuote, multiplier, tradesSoFar)
			plan = executor.Plan{
				Pair: c.Pair, QuoteCurrency: o.cfg.QuoteCurrency, BaseAsset: baseAsset(c.Pair, o.cfg.QuoteCurrency),
				Side: exchange.SideBuy, QuoteAmount: sized.QuoteAmount,
				CombinedSignal: c.Action, Confidence: c.Confidence, Reasoning: reasoningFor(c),
			}
		case strategy.Sell:
			asset := baseAsset(c.Pair, o.cfg.QuoteCurrency)
			held := view.AssetAmount(asset)
			multiplier := positionMultiplierFor(c)
			sized = risk.SizeSell(o.cfg.RiskConfig, held, lastPrice(view, asset), view.PortfolioValueQuote, view.QuoteBalance(), multiplier, 0)
			plan = executor.Plan{
				Pair: c.Pair, QuoteCurrency: o.cfg.QuoteCurrency, BaseAsset: asset,
				Side: exchange.SideSell, BaseAmount: sized.BaseAmount,
				CombinedSignal: c.Action, Confidence: c.Confidence, Reasoning: reasoningFor(c),
			}
		default:
			continue
		}

		if sized.Skip {
			_ = o.decisions.Append(decision.FromCombined(cycleID, c, now, false, false, sized.SkipReason, ""))
			continue
		}

		if err := o.exec.Execute(ctx, cycleID, plan, now); err != nil {
			if xerrors.CycleFatal(err) {
				xlog.Err(err, "cycle-fatal error during execution, aborting remaining opportunities")
				_ = o.decisions.Append(decision.FromCombined(cycleID, c, now, false, false, "cycle aborted: "+err.Error(), ""))
				return executed, err
			}
			xlog.Err(err, "execution error for "+c.Pair)
			_ = o.decisions.Append(decision.FromCombined(cycleID, c, now, false, false, err.Error(), ""))
			continue
		}

		tradesSoFar++
		executed++
		_ = o.decisions.Append(decision.FromCombined(cycleID, c, now, true, false, "", ""))
	}

	return executed, nil
}

func positionMultiplierFor(c combiner.Combined) float64 {
	if sig, ok := c.IndividualStrategies["trend"]; ok {
		return sig.PositionMultiplier
	}
	for _, sig := range c.IndividualStrategies {
		return sig.PositionMultiplier
	}
	return 1.0
}

func reasoningFor(c combiner.Combined) string {
	for name, sig := range c.IndividualStrategies {
		if sig.Action == c.Action && sig.Reasoning != "" {
			return fmt.Sprintf("%s: %s", name, sig.Reasoning)
		}
	}
	return "combined ensemble signal"
}

func lastPrice(view portfolio.View, asset string) float64 {
	h, ok := view.Holdings[asset]
	if !ok || h.LastPriceQuote == nil {
		return 0
	}
	return *h.LastPriceQuote
}

// baseAsset strips the trailing "-QUOTE" suffix from a pair, e.g.
// "BTC-EUR" with quote "EUR" -> "BTC".
func baseAsset(pair, quote string) string {
	suffix := "-" + quote
	if len(pair) > len(suffix) && pair[len(pair)-len(suffix):] == suffix {
		return pair[:len(pair)-len(suffix)]
	}
	return pair
}
