package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverforge/combine-trader/internal/cooldown"
	"github.com/riverforge/combine-trader/internal/exchange"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/riverforge/combine-trader/internal/risk"
	"github.com/riverforge/combine-trader/internal/strategy"
)

func newFixture(t *testing.T) (*Executor, *exchange.SimulatedClient, *portfolio.Store, *TradeLog) {
	t.Helper()
	dir := t.TempDir()

	client := exchange.NewSimulatedClient(exchange.DefaultSimConfig(), exchange.Balances{"EUR": 10000})
	client.SeedTicker("BTC-EUR", market.Ticker{Price: 50000, Bid: 49995, Ask: 50005})

	ledger := portfolio.NewStore(filepath.Join(dir, "ledger.json"), portfolio.FromSnapshot("EUR", 10000, nil, nil))
	tradeLog, err := LoadTradeLog(filepath.Join(dir, "trades.json"))
	require.NoError(t, err)
	throttle := cooldown.New(cooldown.DefaultConfig())

	ex := New(client, ledger, tradeLog, throttle, risk.DefaultConfig())
	return ex, client, ledger, tradeLog
}

func TestExecuteBuyFillsAndUpdatesLedger(t *testing.T) {
	ex, _, ledger, tradeLog := newFixture(t)

	plan := Plan{
		Pair:           "BTC-EUR",
		QuoteCurrency:  "EUR",
		BaseAsset:      "BTC",
		Side:           exchange.SideBuy,
		QuoteAmount:    1000,
		CombinedSignal: strategy.Buy,
		Confidence:     80,
		Reasoning:      "unanimous buy",
	}

	err := ex.Execute(context.Background(), "cycle-1", plan, time.Now())
	require.NoError(t, err)

	view := ledger.View()
	require.Less(t, view.QuoteBalance(), 10000.0)
	require.Greater(t, view.AssetAmount("BTC"), 0.0)
	require.Equal(t, 1, view.TradesExecuted)

	records := tradeLog.Records()
	require.Len(t, records, 1)
	require.Equal(t, "SIMULATED", records[0].Status)
	require.Equal(t, "BTC-EUR", records[0].Pair)
}

func TestExecuteSellFillsAndUpdatesLedger(t *testing.T) {
	ex, _, ledger, _ := newFixture(t)

	// Seed an existing BTC holding to sell from.
	_ = ledger.ApplyTrade("EUR", -5000, "BTC", 0.1, map[string]float64{"BTC": 50000}, time.Now())

	plan := Plan{
		Pair:           "BTC-EUR",
		QuoteCurrency:  "EUR",
		BaseAsset:      "BTC",
		Side:           exchange.SideSell,
		BaseAmount:     0.05,
		CombinedSignal: strategy.Sell,
		Confidence:     75,
	}

	err := ex.Execute(context.Background(), "cycle-2", plan, time.Now())
	require.NoError(t, err)

	view := ledger.View()
	require.InDelta(t, 0.05, view.AssetAmount("BTC"), 1e-9)
}

// rejectingClient always returns an order-rejected error, exercising
// the no-ledger-mutation path.
type rejectingClient struct {
	*exchange.SimulatedClient
}

func (r rejectingClient) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, errRejected
}

var errRejected = &rejectError{}

type rejectError struct{}

func (e *rejectError) Error() string { return "insufficient balance: order rejected" }

func TestExecuteRejectedOrderRecordsWithoutLedgerMutation(t *testing.T) {
	_, simClient, ledger, tradeLog := newFixture(t)
	ex := New(rejectingClient{simClient}, ledger, tradeLog, cooldown.New(cooldown.DefaultConfig()), risk.DefaultConfig())

	plan := Plan{
		Pair:           "BTC-EUR",
		QuoteCurrency:  "EUR",
		BaseAsset:      "BTC",
		Side:           exchange.SideBuy,
		QuoteAmount:    1000,
		CombinedSignal: strategy.Buy,
		Confidence:     80,
	}

	err := ex.Execute(context.Background(), "cycle-3", plan, time.Now())
	require.NoError(t, err)

	view := ledger.View()
	require.Equal(t, 10000.0, view.QuoteBalance())
	require.Equal(t, 0, view.TradesExecuted)

	records := tradeLog.Records()
	require.Len(t, records, 1)
	require.Equal(t, "REJECTED", records[0].Status)
}

// unknownClient always reports an UNKNOWN terminal status, exercising
// the idempotent-restart reconciliation path.
type unknownClient struct {
	*exchange.SimulatedClient
}

func (u unknownClient) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	return exchange.OrderResult{Status: exchange.StatusUnknown, ExchangeID: req.ClientOrderID}, nil
}

func TestExecuteUnknownStatusLeavesLedgerUntouched(t *testing.T) {
	_, simClient, ledger, tradeLog := newFixture(t)
	ex := New(unknownClient{simClient}, ledger, tradeLog, cooldown.New(cooldown.DefaultConfig()), risk.DefaultConfig())

	plan := Plan{
		Pair:           "BTC-EUR",
		QuoteCurrency:  "EUR",
		BaseAsset:      "BTC",
		Side:           exchange.SideBuy,
		QuoteAmount:    1000,
		CombinedSignal: strategy.Buy,
		Confidence:     80,
	}

	err := ex.Execute(context.Background(), "cycle-4", plan, time.Now())
	require.NoError(t, err)

	view := ledger.View()
	require.Equal(t, 10000.0, view.QuoteBalance())

	records := tradeLog.Records()
	require.Len(t, records, 1)
	require.Equal(t, "UNKNOWN", records[0].Status)
}

func TestExecuteLocksPerPair(t *testing.T) {
	ex, _, _, _ := newFixture(t)
	lockA := ex.lockFor("BTC-EUR")
	lockB := ex.lockFor("BTC-EUR")
	require.Same(t, lockA, lockB)

	lockC := ex.lockFor("ETH-EUR")
	require.NotSame(t, lockA, lockC)
}
