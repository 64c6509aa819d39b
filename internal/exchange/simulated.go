package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/riverforge/combine-trader/internal/market"
)

// SimConfig parameterizes simulation-mode fills.
type SimConfig struct {
	SlippageBps float64 // default 5
	FeeBps      float64 // default 10
}

func DefaultSimConfig() SimConfig {
	return SimConfig{SlippageBps: 5, FeeBps: 10}
}

// SimulatedClient is a deterministic in-memory Client used for
// simulation-mode trading and tests — no network calls, seeded with
// fixed tickers/candles and filling every order at the current ticker
// mid adjusted by configurable slippage and fee.
type SimulatedClient struct {
	mu       sync.Mutex
	cfg      SimConfig
	tickers  map[string]market.Ticker
	candles  map[string][]market.Candle
	balances Balances
	orders   map[string]OrderResult
	counter  int
}

func NewSimulatedClient(cfg SimConfig, balances Balances) *SimulatedClient {
	return &SimulatedClient{
		cfg:      cfg,
		tickers:  map[string]market.Ticker{},
		candles:  map[string][]market.Candle{},
		balances: balances,
		orders:   map[string]OrderResult{},
	}
}

// SeedTicker installs a fixed ticker for pair, used by tests to drive
// deterministic scenarios.
func (s *SimulatedClient) SeedTicker(pair string, t market.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickers[pair] = t
}

// SeedCandles installs a fixed candle history for pair.
func (s *SimulatedClient) SeedCandles(pair string, candles []market.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[pair] = candles
}

func (s *SimulatedClient) GetProductTicker(_ context.Context, pair string) (market.Ticker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickers[pair]
	if !ok {
		return market.Ticker{}, fmt.Errorf("simulated: no ticker seeded for %s", pair)
	}
	return t, nil
}

func (s *SimulatedClient) GetCandles(_ context.Context, pair string, _ time.Duration, lookback int) ([]market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candles[pair]
	if !ok {
		return nil, fmt.Errorf("simulated: no candles seeded for %s", pair)
	}
	if lookback > 0 && lookback < len(c) {
		return c[len(c)-lookback:], nil
	}
	return c, nil
}

func (s *SimulatedClient) GetBalances(_ context.Context) (Balances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Balances, len(s.balances))
	for k, v := range s.balances {
		out[k] = v
	}
	return out, nil
}

// PlaceMarketOrder fills deterministically at the seeded ticker's mid
// price, applying slippage against the taker and a fee deducted from
// what the taker receives: the filled base amount on a BUY, the filled
// quote amount on a SELL.
func (s *SimulatedClient) PlaceMarketOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickers[req.Pair]
	if !ok {
		return OrderResult{}, fmt.Errorf("simulated: no ticker seeded for %s", req.Pair)
	}
	mid := (t.Bid + t.Ask) / 2
	if mid == 0 {
		mid = t.Price
	}

	slip := mid * s.cfg.SlippageBps / 10000
	fillPrice := mid
	switch req.Side {
	case SideBuy:
		fillPrice = mid + slip
	case SideSell:
		fillPrice = mid - slip
	}

	var base, quote float64
	switch req.Side {
	case SideBuy:
		quote = req.QuoteAmount
		base = quote / fillPrice * (1 - s.cfg.FeeBps/10000)
	case SideSell:
		base = req.BaseAmount
		quote = base * fillPrice * (1 - s.cfg.FeeBps/10000)
	}

	result := OrderResult{
		Status:      StatusSimulated,
		FilledBase:  base,
		FilledQuote: quote,
		FillPrice:   fillPrice,
		ExchangeID:  req.ClientOrderID,
	}
	s.orders[req.ClientOrderID] = result
	return result, nil
}

func (s *SimulatedClient) GetOrderStatus(_ context.Context, clientOrderID string) (OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.orders[clientOrderID]
	if !ok {
		return OrderResult{Status: StatusUnknown}, nil
	}
	return r, nil
}

// ClientOrderID deterministically hashes (pair, cycleID, side,
// counter) into an idempotent order ID.
func ClientOrderID(pair, cycleID string, side Side, counter int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", pair, cycleID, side, counter)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
