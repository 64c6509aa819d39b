package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverforge/combine-trader/internal/cooldown"
	"github.com/riverforge/combine-trader/internal/decision"
	"github.com/riverforge/combine-trader/internal/exchange"
	"github.com/riverforge/combine-trader/internal/executor"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/riverforge/combine-trader/internal/strategy"
)

// fakeStrategy returns a canned signal regardless of its inputs —
// used here to drive the orchestrator deterministically without
// depending on the real ensemble's indicator arithmetic, which is
// covered by internal/strategy's own tests.
type fakeStrategy struct {
	name string
	sig  strategy.Signal
}

func (f fakeStrategy) Name() string { return f.name }
func (f fakeStrategy) Analyse(market.Indicators, portfolio.View) strategy.Signal { return f.sig }
func (f fakeStrategy) RegimeSuitability(strategy.Regime) float64 { return 1.0 }

func buildDowntrendCandles(n int, granularity time.Duration) []market.Candle {
	candles := make([]market.Candle, 0, n)
	last := 100.0
	start := time.Now().Add(-time.Duration(n) * granularity)
	for i := 0; i < n; i++ {
		open := last
		last = open * 0.988
		candles = append(candles, market.Candle{
			OpenTime: start.Add(time.Duration(i) * granularity),
			Open:     open,
			High:     open * 1.001,
			Low:      last * 0.999,
			Close:    last,
			Volume:   1000,
		})
	}
	return candles
}

func buildUptrendCandles(n int, granularity time.Duration) []market.Candle {
	candles := make([]market.Candle, 0, n)
	last := 100.0
	start := time.Now().Add(-time.Duration(n) * granularity)
	for i := 0; i < n; i++ {
		open := last
		last = open * 1.005
		candles = append(candles, market.Candle{
			OpenTime: start.Add(time.Duration(i) * granularity),
			Open:     open,
			High:     last * 1.001,
			Low:      open * 0.999,
			Close:    last,
			Volume:   1000,
		})
	}
	return candles
}

type fixture struct {
	client    *exchange.SimulatedClient
	ledger    *portfolio.Store
	throttle  *cooldown.Throttle
	tradeLog  *executor.TradeLog
	decisions *decision.Ring
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	client := exchange.NewSimulatedClient(exchange.DefaultSimConfig(), exchange.Balances{"EUR": 10000})
	client.SeedTicker("BTC-EUR", market.Ticker{Price: 100, Bid: 99.9, Ask: 100.1})
	client.SeedCandles("BTC-EUR", buildUptrendCandles(40, 24*time.Hour))

	ledger := portfolio.NewStore(filepath.Join(dir, "ledger.json"), portfolio.FromSnapshot("EUR", 10000, nil, nil))
	tradeLog, err := executor.LoadTradeLog(filepath.Join(dir, "trades.json"))
	require.NoError(t, err)
	decisions, err := decision.LoadRing(filepath.Join(dir, "decisions.json"), 100)
	require.NoError(t, err)
	throttle := cooldown.New(cooldown.DefaultConfig())

	return fixture{client: client, ledger: ledger, throttle: throttle, tradeLog: tradeLog, decisions: decisions}
}

func buyStrategies() []strategy.Strategy {
	return []strategy.Strategy{
		fakeStrategy{name: "trend", sig: strategy.Signal{Action: strategy.Buy, Confidence: 80, PositionMultiplier: 1.0}},
		fakeStrategy{name: "mean_reversion", sig: strategy.Signal{Action: strategy.Hold, Confidence: 40, PositionMultiplier: 1.0}},
		fakeStrategy{name: "momentum", sig: strategy.Signal{Action: strategy.Buy, Confidence: 75, PositionMultiplier: 1.0}},
		fakeStrategy{name: "advisory", sig: strategy.Signal{Action: strategy.Buy, Confidence: 70, PositionMultiplier: 1.0}},
	}
}

func sellStrategies() []strategy.Strategy {
	return []strategy.Strategy{
		fakeStrategy{name: "trend", sig: strategy.Signal{Action: strategy.Sell, Confidence: 80, PositionMultiplier: 1.0}},
		fakeStrategy{name: "mean_reversion", sig: strategy.Signal{Action: strategy.Hold, Confidence: 40, PositionMultiplier: 1.0}},
		fakeStrategy{name: "momentum", sig: strategy.Signal{Action: strategy.Sell, Confidence: 75, PositionMultiplier: 1.0}},
		fakeStrategy{name: "advisory", sig: strategy.Signal{Action: strategy.Sell, Confidence: 70, PositionMultiplier: 1.0}},
	}
}

func newOrchestrator(fx fixture, strategies []strategy.Strategy) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Pairs = []string{"BTC-EUR"}
	cfg.QuoteCurrency = "EUR"
	cfg.CollectConcurrency = 2
	cfg.RiskConfig.ExchangeMinTradeSize = 1

	collector := market.NewCollector(fx.client, 24*time.Hour, 40)
	exec := executor.New(fx.client, fx.ledger, fx.tradeLog, fx.throttle, cfg.RiskConfig)

	return New(cfg, collector, strategies, fx.ledger, fx.throttle, exec, fx.decisions)
}

func TestRunCycleExecutesUnanimousBuy(t *testing.T) {
	fx := newFixture(t)
	o := newOrchestrator(fx, buyStrategies())

	result, err := o.RunCycle(context.Background(), "cycle-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.PairsAnalysed)
	require.Equal(t, 0, result.PairsExcluded)
	require.Equal(t, 1, result.Opportunities)
	require.Equal(t, 1, result.Executed)

	view := fx.ledger.View()
	require.Less(t, view.QuoteBalance(), 10000.0)
	require.Greater(t, view.AssetAmount("BTC"), 0.0)

	records := fx.decisions.Records()
	require.Len(t, records, 1)
	require.True(t, records[0].Executed)
	require.Equal(t, "BUY", records[0].Action)
}

func TestRunCycleSuppressesOppositeSideWithinCooldown(t *testing.T) {
	fx := newFixture(t)

	buyOrch := newOrchestrator(fx, buyStrategies())
	_, err := buyOrch.RunCycle(context.Background(), "cycle-1")
	require.NoError(t, err)

	sellOrch := newOrchestrator(fx, sellStrategies())
	result, err := sellOrch.RunCycle(context.Background(), "cycle-2")
	require.NoError(t, err)
	require.Equal(t, 0, result.Executed, "opposite-side signal within the cooldown window must be suppressed")

	records := fx.decisions.Records()
	require.Len(t, records, 2)
	require.True(t, records[1].Suppressed)
}

func TestRunAndStopGracefully(t *testing.T) {
	fx := newFixture(t)
	o := newOrchestrator(fx, buyStrategies())
	o.cfg.DecisionInterval = time.Hour // long enough that only the immediate cycle runs

	done := make(chan struct{})
	go func() {
		o.Run(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return fx.ledger.View().AssetAmount("BTC") > 0
	}, time.Second, 10*time.Millisecond)

	o.Stop()
	<-done
	require.Equal(t, StateIdle, o.State())
}

func TestRunCycleTradablePoolComesFromQuoteBalanceNotPortfolioValue(t *testing.T) {
	dir := t.TempDir()
	client := exchange.NewSimulatedClient(exchange.DefaultSimConfig(), exchange.Balances{"EUR": 1000, "BTC": 8})
	client.SeedTicker("BTC-EUR", market.Ticker{Price: 100, Bid: 99.9, Ask: 100.1})
	client.SeedCandles("BTC-EUR", buildUptrendCandles(40, 24*time.Hour))

	// quote_balance=1000, non-quote holdings worth 800 => portfolio_value=1800.
	ledger := portfolio.NewStore(filepath.Join(dir, "ledger.json"),
		portfolio.FromSnapshot("EUR", 1000, map[string]float64{"BTC": 8}, map[string]float64{"BTC": 100}))
	tradeLog, err := executor.LoadTradeLog(filepath.Join(dir, "trades.json"))
	require.NoError(t, err)
	decisions, err := decision.LoadRing(filepath.Join(dir, "decisions.json"), 100)
	require.NoError(t, err)
	throttle := cooldown.New(cooldown.DefaultConfig())
	fx := fixture{client: client, ledger: ledger, throttle: throttle, tradeLog: tradeLog, decisions: decisions}

	require.InDelta(t, 1800, fx.ledger.View().PortfolioValueQuote, 1e-9)
	require.InDelta(t, 1000, fx.ledger.View().QuoteBalance(), 1e-9)

	o := newOrchestrator(fx, buyStrategies())
	result, err := o.RunCycle(context.Background(), "cycle-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Executed)

	// reserve = max(0, 0.2*1800) = 360, tradable pool = quote_balance(1000) -
	// reserve(360) = 640, not portfolio_value(1800) - reserve(360) = 1440.
	// The single BUY opportunity is clipped to 60% of the pool by
	// MaxSingleTradeRatio and scaled by the Medium risk multiplier (0.75):
	// 0.6*640*0.75 = 288.
	records := fx.tradeLog.Records()
	require.Len(t, records, 1)
	require.InDelta(t, 288, records[0].QuoteAmount, 1e-6)

	spentQuote := 1000 - fx.ledger.View().QuoteBalance()
	require.LessOrEqual(t, spentQuote, 640.0+1e-6, "BUY must not spend more than quote_balance - reserve")
}

func TestRunCycleBearMarketHardCapsPerOrderAtPctOfPortfolio(t *testing.T) {
	dir := t.TempDir()
	client := exchange.NewSimulatedClient(exchange.DefaultSimConfig(), exchange.Balances{"EUR": 100000})
	client.SeedTicker("BTC-EUR", market.Ticker{Price: 100, Bid: 99.9, Ask: 100.1})
	client.SeedCandles("BTC-EUR", buildDowntrendCandles(40, 24*time.Hour))

	ledger := portfolio.NewStore(filepath.Join(dir, "ledger.json"), portfolio.FromSnapshot("EUR", 100000, nil, nil))
	tradeLog, err := executor.LoadTradeLog(filepath.Join(dir, "trades.json"))
	require.NoError(t, err)
	decisions, err := decision.LoadRing(filepath.Join(dir, "decisions.json"), 100)
	require.NoError(t, err)
	throttle := cooldown.New(cooldown.DefaultConfig())
	fx := fixture{client: client, ledger: ledger, throttle: throttle, tradeLog: tradeLog, decisions: decisions}

	o := newOrchestrator(fx, buyStrategies())
	result, err := o.RunCycle(context.Background(), "cycle-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Executed)

	records := fx.decisions.Records()
	require.Len(t, records, 1)
	require.Equal(t, "BEAR_MARKET_HARD", records[0].Regime)

	// Uncapped, the 60%-of-pool allocation times the BEAR_MARKET_HARD risk
	// multiplier (0.75*0.25) would size this BUY at 9000; the regime
	// override caps PerOrderMax at 2% of portfolio value (100000) = 2000.
	tradeRecords := fx.tradeLog.Records()
	require.Len(t, tradeRecords, 1)
	require.InDelta(t, 2000, tradeRecords[0].QuoteAmount, 1e-6)
}
