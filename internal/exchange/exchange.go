// Package exchange defines the engine's sole dependency on the
// outside trading venue: one interface the rest of the
// codebase codes against, with concrete adapters for Binance and
// Bybit plus a deterministic simulation-mode client for tests and
// dry runs.
package exchange

import (
	"context"
	"time"

	"github.com/riverforge/combine-trader/internal/market"
)

// Side is the order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the terminal or provisional status of a submitted
// order.
type OrderStatus string

const (
	StatusFilled    OrderStatus = "FILLED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusUnknown   OrderStatus = "UNKNOWN"
	StatusSimulated OrderStatus = "SIMULATED"
)

// OrderRequest is what the executor submits for one opportunity.
type OrderRequest struct {
	Pair          string
	Side          Side
	QuoteAmount   float64 // for BUY: quote currency to spend
	BaseAmount    float64 // for SELL: base asset to sell
	ClientOrderID string
}

// OrderResult is the venue's response to an order placement.
type OrderResult struct {
	Status       OrderStatus
	FilledBase   float64
	FilledQuote  float64
	FillPrice    float64
	ExchangeID   string
	RejectReason string
}

// Balances is a snapshot of account holdings, keyed by asset symbol
// (including the quote currency).
type Balances map[string]float64

// Client is the one interface the engine depends on for everything
// exchange-related: account state, market data, and order placement.
// Concrete implementations (Binance, Bybit, a deterministic simulator)
// are swappable behind it.
type Client interface {
	market.CandleSource

	GetBalances(ctx context.Context) (Balances, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	GetOrderStatus(ctx context.Context, clientOrderID string) (OrderResult, error)
}

// DefaultExchangeTimeout is the bounded timeout every exchange call
// gets.
const DefaultExchangeTimeout = 30 * time.Second
