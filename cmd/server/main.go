package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/riverforge/combine-trader/internal/advisory"
	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/riverforge/combine-trader/internal/config"
	"github.com/riverforge/combine-trader/internal/cooldown"
	"github.com/riverforge/combine-trader/internal/decision"
	"github.com/riverforge/combine-trader/internal/exchange"
	"github.com/riverforge/combine-trader/internal/executor"
	"github.com/riverforge/combine-trader/internal/lockfile"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/opportunity"
	"github.com/riverforge/combine-trader/internal/orchestrator"
	"github.com/riverforge/combine-trader/internal/performance"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/riverforge/combine-trader/internal/risk"
	"github.com/riverforge/combine-trader/internal/server"
	"github.com/riverforge/combine-trader/internal/store"
	"github.com/riverforge/combine-trader/internal/strategy"
	"github.com/riverforge/combine-trader/internal/telemetry"
	"github.com/riverforge/combine-trader/internal/xlog"
)

const candleGranularity = time.Hour

func main() {
	os.Exit(run())
}

// run wires every collaborator and blocks until shutdown, returning
// the process exit code: 0 clean, 1 startup-fatal, 2 runtime-fatal.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	xlog.Init(xlog.Config{Level: cfg.LogLevel, Pretty: true})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		xlog.Err(err, "create data dir")
		return 1
	}

	lock, err := lockfile.Acquire(filepath.Join(cfg.DataDir, "engine.lock"))
	if err != nil {
		xlog.Err(err, "acquire process lock")
		return 1
	}
	defer lock.Release()

	telemetry.Init()

	client, err := buildExchangeClient(cfg)
	if err != nil {
		xlog.Err(err, "build exchange client")
		return 1
	}

	ledger, err := loadOrSeedLedger(filepath.Join(cfg.DataDir, "portfolio.json"), cfg.Universe.BaseCurrency)
	if err != nil {
		xlog.Err(err, "load portfolio ledger")
		return 1
	}

	tradeLog, err := executor.LoadTradeLog(filepath.Join(cfg.DataDir, "trades", "trade_history.json"))
	if err != nil {
		xlog.Err(err, "load trade log")
		return 1
	}

	decisions, err := decision.LoadRing(filepath.Join(cfg.DataDir, "cache", "latest_decisions.json"), 200)
	if err != nil {
		xlog.Err(err, "load decision ring")
		return 1
	}

	perfTracker, err := performance.LoadTracker(
		filepath.Join(cfg.DataDir, "performance", "portfolio_snapshots.json"),
		filepath.Join(cfg.DataDir, "performance", "performance_config.json"),
		performance.DefaultConfig(),
	)
	if err != nil {
		xlog.Err(err, "load performance tracker")
		return 1
	}

	db, err := store.Open(filepath.Join(cfg.DataDir, "engine.db"))
	if err != nil {
		xlog.Err(err, "open sqlite store")
		return 1
	}
	defer db.Close()
	tacticStore := store.NewTacticStore(db)
	historicalStore := store.NewHistoricalStore(db)
	_ = historicalStore // opened with the database; nothing in the running engine writes candles to it

	riskCfg := buildRiskConfig(cfg, tacticStore)
	throttle := cooldown.New(cooldown.Config{
		Window:             cfg.Risk.CooldownWindow,
		SameSideStackDelta: cfg.Risk.SameSideStackDelta,
	})
	exec := executor.New(client, ledger, tradeLog, throttle, riskCfg)
	collector := market.NewCollector(client, candleGranularity, 60)

	strategies := buildStrategies(cfg)

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.Pairs = cfg.Universe.TradingPairs
	orchCfg.QuoteCurrency = cfg.Universe.BaseCurrency
	orchCfg.DecisionInterval = time.Duration(cfg.Cadence.DecisionIntervalMinutes) * time.Minute
	orchCfg.CollectConcurrency = 4
	orchCfg.CombinerConfig = combiner.DefaultConfig()
	orchCfg.ScoringConfig = opportunity.DefaultScoringConfig()
	orchCfg.AllocationConfig = buildAllocationConfig(cfg)
	orchCfg.RiskConfig = riskCfg
	orchCfg.TargetQuoteAllocationPct = cfg.Allocation.TargetQuoteAllocationPct

	orch := orchestrator.New(orchCfg, collector, strategies, ledger, throttle, exec, decisions)

	srv := server.New(ledger, decisions, tradeLog, orch, telemetry.Registry)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			xlog.Err(err, "http server")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runOrchestrator(ctx, orch)
	go runPerformanceSampler(ctx, perfTracker, ledger, tradeLog, telemetry.SetPortfolio)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	exitCode := 0
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				xlog.Info("SIGHUP received, ignoring (no config reload wired)")
				continue
			}
			xlog.Infof("%s received, shutting down", sig)
			orch.Stop()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			httpServer.Shutdown(shutdownCtx)
			shutdownCancel()
			return exitCode

		case <-orch.Fatal():
			xlog.Error("runtime-fatal: max consecutive cycle failures reached")
			orch.Stop()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			httpServer.Shutdown(shutdownCtx)
			shutdownCancel()
			return 2
		}
	}
}

func runOrchestrator(ctx context.Context, orch *orchestrator.Orchestrator) {
	orch.Run(ctx)
}

// runPerformanceSampler snapshots the ledger on the tracker's own
// cadence and keeps the portfolio telemetry gauges current — a
// read-only observer of the ledger, never a mutator.
func runPerformanceSampler(ctx context.Context, tracker *performance.Tracker, ledger *portfolio.Store, tradeLog *executor.TradeLog, setGauges func(float64, float64)) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UTC()
			view := ledger.View()
			if tracker.ShouldSnapshot(now) {
				if err := tracker.Snapshot(view, now); err != nil {
					xlog.Err(err, "performance snapshot")
				}
			}
			metrics := tracker.Compute(view, tradeLog.Records(), now)
			setGauges(view.PortfolioValueQuote, metrics.MaxDrawdownPct)
		case <-ctx.Done():
			return
		}
	}
}

func loadOrSeedLedger(path, quoteCurrency string) (*portfolio.Store, error) {
	if _, err := os.Stat(path); err == nil {
		return portfolio.Load(path)
	}
	return portfolio.NewStore(path, portfolio.FromSnapshot(quoteCurrency, 0, nil, nil)), nil
}

func buildExchangeClient(cfg *config.Config) (exchange.Client, error) {
	switch cfg.Exchange.Name {
	case "binance":
		return exchange.NewBinanceClient(exchange.BinanceConfig{
			APIKey:     cfg.Exchange.APIKey,
			APISecret:  cfg.Exchange.APISecret,
			QuoteAsset: cfg.Universe.BaseCurrency,
			RatePerSec: float64(cfg.Exchange.RateLimitPerSec),
			Retry:      exchange.DefaultRetryConfig(),
		}), nil
	case "bybit":
		return exchange.NewBybitClient(exchange.BybitConfig{
			APIKey:     cfg.Exchange.APIKey,
			APISecret:  cfg.Exchange.APISecret,
			QuoteAsset: cfg.Universe.BaseCurrency,
			RatePerSec: float64(cfg.Exchange.RateLimitPerSec),
			Retry:      exchange.DefaultRetryConfig(),
		}), nil
	case "simulated", "":
		return exchange.NewSimulatedClient(exchange.SimConfig{
			SlippageBps: cfg.Risk.SlippageBps,
			FeeBps:      cfg.Risk.FeeBps,
		}, exchange.Balances{cfg.Universe.BaseCurrency: 10000}), nil
	default:
		return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange.Name)
	}
}

func buildAdvisoryClient(cfg *config.Config) advisory.Client {
	if cfg.Advisory.Provider == "localfunc" || cfg.Advisory.APIKey == "" {
		return advisory.NewLocalFuncClient()
	}
	return advisory.NewHTTPClient(cfg.Advisory.Location, cfg.Advisory.APIKey, cfg.Advisory.PrimaryModel, time.Duration(cfg.Advisory.TimeoutSec)*time.Second)
}

func buildStrategies(cfg *config.Config) []strategy.Strategy {
	advisor := advisory.NewAdvisor(
		buildAdvisoryClient(cfg),
		advisory.WithProvider(cfg.Advisory.Provider),
		advisory.WithModel(cfg.Advisory.PrimaryModel, cfg.Advisory.FallbackModel),
		advisory.WithTimeout(time.Duration(cfg.Advisory.TimeoutSec)*time.Second),
	)

	return []strategy.Strategy{
		strategy.NewTrendFollowing(strategy.DefaultTrendConfig()),
		strategy.NewMeanReversion(strategy.DefaultMeanRevConfig()),
		strategy.NewMomentum(strategy.DefaultMomentumConfig()),
		strategy.NewAdvisory(advisor, strategy.AdvisoryConfig{TargetQuoteAllocationPct: cfg.Allocation.TargetQuoteAllocationPct}),
	}
}

func buildRiskConfig(cfg *config.Config, tacticStore *store.TacticStore) risk.Config {
	base := risk.DefaultConfig()
	base.Level = risk.Level(cfg.Risk.RiskLevel)
	base.ExchangeMinTradeSize = cfg.Allocation.MinTradeAmount
	// PerOrderMax is left at its zero value (uncapped) here: outside
	// BEAR_MARKET_HARD the allocator's MaxSingleTradeRatio already caps
	// a single opportunity's share of the tradable pool, and SizeBuy's
	// per-order cap is reserved for the regime override the
	// orchestrator computes dynamically from current portfolio value.
	base.TargetQuoteAllocation = cfg.Allocation.TargetQuoteAllocationPct
	base.BearMarketHardMultiplier = cfg.Risk.BearMarketHardRiskMul
	base.BearMarketHardMaxPct = cfg.Risk.BearMarketHardMaxPct
	base.BearMarketHardMaxTrades = cfg.Risk.BearMarketHardMaxTrades

	active, err := tacticStore.GetActive()
	if err != nil {
		return base
	}
	tacticCfg, err := active.ParseConfig()
	if err != nil {
		return base
	}
	if tacticCfg.Risk.Level != "" {
		return tacticCfg.Risk
	}
	return base
}

func buildAllocationConfig(cfg *config.Config) opportunity.AllocationConfig {
	return opportunity.AllocationConfig{
		ReserveRatio:        cfg.Allocation.CapitalReserveRatio,
		MinReserveAbsolute:  cfg.Allocation.MinQuoteReserveAbsolute,
		PowerFactor:         cfg.Allocation.AllocationPowerFactor,
		MinTradeAllocation:  cfg.Allocation.MinTradeAllocation,
		MaxSingleTradeRatio: cfg.Allocation.MaxSingleTradeRatio,
	}
}
