// Package executor turns one ranked, sized opportunity into a placed
// order and its durable side effects: idempotent client-order-id
// generation, per-pair locking, ledger mutation, trade-log append,
// and cool-down update.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riverforge/combine-trader/internal/cooldown"
	"github.com/riverforge/combine-trader/internal/exchange"
	"github.com/riverforge/combine-trader/internal/persist"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/riverforge/combine-trader/internal/risk"
	"github.com/riverforge/combine-trader/internal/strategy"
	"github.com/riverforge/combine-trader/internal/xerrors"
	"github.com/riverforge/combine-trader/internal/xlog"
)

// TradeRecord is one immutable append to the trade log.
type TradeRecord struct {
	ID            string    `json:"id"`
	TimestampUTC  time.Time `json:"timestamp_utc"`
	Pair          string    `json:"pair"`
	Side          string    `json:"side"`
	BaseAmount    float64   `json:"base_amount"`
	QuoteAmount   float64   `json:"quote_amount"`
	Price         float64   `json:"price"`
	Fees          float64   `json:"fees,omitempty"`
	Strategy      string    `json:"strategy"`
	Confidence    float64   `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"` // FILLED, PARTIAL, REJECTED, SIMULATED, UNKNOWN
	PnL           *float64  `json:"pnl,omitempty"`
}

// TradeLog is the append-only, atomically-persisted file of
// TradeRecords.
type TradeLog struct {
	mu      sync.Mutex
	path    string
	records []TradeRecord
}

func LoadTradeLog(path string) (*TradeLog, error) {
	var records []TradeRecord
	if persist.Exists(path) {
		if err := persist.ReadJSON(path, &records); err != nil {
			return nil, fmt.Errorf("load trade log: %w", err)
		}
	}
	return &TradeLog{path: path, records: records}, nil
}

func (l *TradeLog) Append(rec TradeRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return persist.WriteJSONAtomic(l.path, l.records)
}

func (l *TradeLog) Records() []TradeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TradeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Executor runs opportunities serially within a cycle, one pair at a
// time, with a per-pair lock guarding against any concurrent trade on
// the same pair within the process.
type Executor struct {
	client    exchange.Client
	ledger    *portfolio.Store
	tradeLog  *TradeLog
	cooldown  *cooldown.Throttle
	riskCfg   risk.Config

	pairLocksMu sync.Mutex
	pairLocks   map[string]*sync.Mutex

	counterMu sync.Mutex
	counter   int
}

func New(client exchange.Client, ledger *portfolio.Store, tradeLog *TradeLog, throttle *cooldown.Throttle, riskCfg risk.Config) *Executor {
	return &Executor{
		client:    client,
		ledger:    ledger,
		tradeLog:  tradeLog,
		cooldown:  throttle,
		riskCfg:   riskCfg,
		pairLocks: map[string]*sync.Mutex{},
	}
}

func (e *Executor) lockFor(pair string) *sync.Mutex {
	e.pairLocksMu.Lock()
	defer e.pairLocksMu.Unlock()
	m, ok := e.pairLocks[pair]
	if !ok {
		m = &sync.Mutex{}
		e.pairLocks[pair] = m
	}
	return m
}

func (e *Executor) nextCounter() int {
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	e.counter++
	return e.counter
}

// Plan is the resolved instruction for one opportunity, already sized
// by the risk sizer and cleared by the cooldown throttle.
type Plan struct {
	Pair               string
	QuoteCurrency      string
	BaseAsset          string
	Side               exchange.Side
	QuoteAmount        float64 // BUY
	BaseAmount         float64 // SELL
	Price              float64
	CombinedSignal     strategy.Action
	Confidence         float64
	Reasoning          string
}

// Execute runs one plan: acquires the pair lock, mints a
// deterministic client_order_id, places the order, and on a terminal
// status updates the ledger, trade log and cooldown state. It never
// returns an error for an opportunity-local failure (insufficient
// balance, rejection) — those are recorded in the trade log and
// logged; only an xerrors.CycleFatal client error (authentication,
// lock contention) or a ledger update/persist failure propagates.
func (e *Executor) Execute(ctx context.Context, cycleID string, plan Plan, now time.Time) error {
	lock := e.lockFor(plan.Pair)
	lock.Lock()
	defer lock.Unlock()

	clientOrderID := exchange.ClientOrderID(plan.Pair, cycleID, plan.Side, e.nextCounter())

	req := exchange.OrderRequest{
		Pair:          plan.Pair,
		Side:          plan.Side,
		QuoteAmount:   plan.QuoteAmount,
		BaseAmount:    plan.BaseAmount,
		ClientOrderID: clientOrderID,
	}

	result, err := e.client.PlaceMarketOrder(ctx, req)
	if err != nil {
		if xerrors.CycleFatal(err) {
			return err
		}
		xlog.Warnf("❌ [executor] %s %s rejected: %v", plan.Pair, plan.Side, err)
		return e.recordTerminal(plan, clientOrderID, exchange.OrderResult{Status: exchange.StatusRejected, RejectReason: err.Error()}, now)
	}

	switch result.Status {
	case exchange.StatusFilled, exchange.StatusSimulated:
		if err := e.applyFill(plan, result, now); err != nil {
			xlog.Err(err, "ledger update failed for "+plan.Pair)
			return err
		}
		if err := e.ledger.Persist(); err != nil {
			xlog.Err(err, "ledger persist failed for "+plan.Pair)
			return err
		}
		e.cooldown.Record(plan.Pair, plan.CombinedSignal, now)
	case exchange.StatusUnknown:
		xlog.Warnf("⚠️  [executor] %s order status unknown; deferring to next-cycle reconciliation", plan.Pair)
	}

	return e.recordTerminal(plan, clientOrderID, result, now)
}

func (e *Executor) applyFill(plan Plan, result exchange.OrderResult, now time.Time) error {
	prices := map[string]float64{plan.BaseAsset: result.FillPrice}
	switch plan.Side {
	case exchange.SideBuy:
		return e.ledger.ApplyTrade(plan.QuoteCurrency, -result.FilledQuote, plan.BaseAsset, result.FilledBase, prices, now)
	default:
		return e.ledger.ApplyTrade(plan.BaseAsset, -result.FilledBase, plan.QuoteCurrency, result.FilledQuote, prices, now)
	}
}

func (e *Executor) recordTerminal(plan Plan, clientOrderID string, result exchange.OrderResult, now time.Time) error {
	rec := TradeRecord{
		ID:           clientOrderID,
		TimestampUTC: now.UTC(),
		Pair:         plan.Pair,
		Side:         string(plan.Side),
		BaseAmount:   result.FilledBase,
		QuoteAmount:  result.FilledQuote,
		Price:        result.FillPrice,
		Strategy:     "combined",
		Confidence:   plan.Confidence,
		Reasoning:    plan.Reasoning,
		OrderID:      result.ExchangeID,
		Status:       string(result.Status),
	}
	if result.Status == exchange.StatusRejected {
		rec.Reasoning = result.RejectReason
	}
	return e.tradeLog.Append(rec)
}
