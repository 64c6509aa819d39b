// Package portfolio owns the engine's single mutable aggregate: the
// ledger of held amounts and cash. The orchestrator/executor is the
// only mutator; everyone else gets a defensive-copy View.
package portfolio

import (
	"fmt"
	"sync"
	"time"

	"github.com/riverforge/combine-trader/internal/persist"
	"github.com/riverforge/combine-trader/internal/xerrors"
)

// Version is carried forward on every load/save.
const Version = 1

// Holding is one symbol's position in the ledger.
type Holding struct {
	Amount         float64  `json:"amount"`
	InitialAmount  float64  `json:"initial_amount"`
	LastPriceQuote *float64 `json:"last_price_quote,omitempty"`
}

// Ledger is the persisted schema: a mapping from symbol (quote
// currency plus each held asset) to a Holding, plus scalars.
type Ledger struct {
	Version           int                 `json:"version"`
	QuoteCurrency     string              `json:"quote_currency"`
	Holdings          map[string]Holding  `json:"holdings"`
	TradesExecuted    int                 `json:"trades_executed"`
	PortfolioValueQuote float64           `json:"portfolio_value_quote"`
	InitialValueQuote float64             `json:"initial_value_quote"`
	LastUpdated       time.Time           `json:"last_updated"`
}

// Store wraps a Ledger with the mutex that makes "mutated only by the
// executor and the exchange-sync step" enforceable in-process, and an
// atomic-persistence path to disk.
type Store struct {
	mu     sync.RWMutex
	path   string
	ledger Ledger
}

// NewStore creates an in-memory ledger store seeded with the given
// ledger (e.g. freshly loaded, or built from an exchange snapshot at
// first start).
func NewStore(path string, ledger Ledger) *Store {
	if ledger.Holdings == nil {
		ledger.Holdings = map[string]Holding{}
	}
	return &Store{path: path, ledger: ledger}
}

// Load reads the ledger from disk, falling back to .bak on parse
// failure (persist.ReadJSON already does this); ErrLedgerCorruption is
// the caller's cue to fall back further, to an exchange snapshot.
func Load(path string) (*Store, error) {
	var l Ledger
	if err := persist.ReadJSON(path, &l); err != nil {
		if persist.Exists(path) {
			return nil, fmt.Errorf("load ledger: %w: %v", xerrors.ErrLedgerCorruption, err)
		}
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return NewStore(path, l), nil
}

// FromSnapshot builds a fresh ledger from an exchange account
// snapshot — used at first start and for exchange-sync recovery.
func FromSnapshot(quoteCurrency string, quoteAmount float64, assetAmounts map[string]float64, prices map[string]float64) Ledger {
	holdings := map[string]Holding{
		quoteCurrency: {Amount: quoteAmount, InitialAmount: quoteAmount},
	}
	value := quoteAmount
	for asset, amount := range assetAmounts {
		price := prices[asset]
		p := price
		holdings[asset] = Holding{Amount: amount, InitialAmount: amount, LastPriceQuote: &p}
		value += amount * price
	}
	return Ledger{
		Version:             Version,
		QuoteCurrency:       quoteCurrency,
		Holdings:            holdings,
		PortfolioValueQuote: value,
		InitialValueQuote:   value,
		LastUpdated:         time.Now().UTC(),
	}
}

// View is a read-only, defensive-copy snapshot of the ledger, safe to
// hand to strategies.
type View struct {
	QuoteCurrency       string
	Holdings            map[string]Holding
	TradesExecuted      int
	PortfolioValueQuote float64
	InitialValueQuote   float64
	LastUpdated         time.Time
}

// QuoteBalance returns the held amount of the quote currency.
func (v View) QuoteBalance() float64 {
	return v.Holdings[v.QuoteCurrency].Amount
}

// AssetAmount returns the held amount of a given asset symbol (0 if
// not held).
func (v View) AssetAmount(asset string) float64 {
	return v.Holdings[asset].Amount
}

// View returns a defensive copy of the current ledger state.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := make(map[string]Holding, len(s.ledger.Holdings))
	for k, v := range s.ledger.Holdings {
		holdings[k] = v
	}
	return View{
		QuoteCurrency:       s.ledger.QuoteCurrency,
		Holdings:            holdings,
		TradesExecuted:      s.ledger.TradesExecuted,
		PortfolioValueQuote: s.ledger.PortfolioValueQuote,
		InitialValueQuote:   s.ledger.InitialValueQuote,
		LastUpdated:         s.ledger.LastUpdated,
	}
}

// ApplyTrade mutates the ledger for a filled trade: decrements the
// source symbol, increments the destination symbol, recomputes
// portfolio_value_quote from current prices, bumps trades_executed,
// and sets last_updated. Only the executor calls this, under the
// cycle lock.
//
// prices must contain the latest quote price for every held asset
// symbol so invariant 1 (portfolio_value_quote ==
// quote.amount + Σ asset.amount×asset.last_price_quote) holds
// immediately after the mutation.
func (s *Store) ApplyTrade(sourceSymbol string, sourceDelta float64, destSymbol string, destDelta float64, prices map[string]float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyDelta(sourceSymbol, sourceDelta); err != nil {
		return err
	}
	if err := s.applyDelta(destSymbol, destDelta); err != nil {
		return err
	}

	for asset, price := range prices {
		if asset == s.ledger.QuoteCurrency {
			continue
		}
		h := s.ledger.Holdings[asset]
		p := price
		h.LastPriceQuote = &p
		s.ledger.Holdings[asset] = h
	}

	s.recomputeValueLocked()
	s.ledger.TradesExecuted++
	s.setLastUpdatedLocked(now)
	return nil
}

func (s *Store) applyDelta(symbol string, delta float64) error {
	h := s.ledger.Holdings[symbol]
	newAmount := h.Amount + delta
	if newAmount < -1e-9 {
		return fmt.Errorf("ledger: %s would go negative (%.8f + %.8f = %.8f)", symbol, h.Amount, delta, newAmount)
	}
	if newAmount < 0 {
		newAmount = 0
	}
	h.Amount = newAmount
	s.ledger.Holdings[symbol] = h
	return nil
}

func (s *Store) recomputeValueLocked() {
	value := s.ledger.Holdings[s.ledger.QuoteCurrency].Amount
	for symbol, h := range s.ledger.Holdings {
		if symbol == s.ledger.QuoteCurrency {
			continue
		}
		if h.LastPriceQuote != nil {
			value += h.Amount * (*h.LastPriceQuote)
		}
	}
	s.ledger.PortfolioValueQuote = value
}

// setLastUpdatedLocked enforces the monotonic-non-decreasing
// invariant on last_updated even if the caller passes a
// clock that appears to go backwards.
func (s *Store) setLastUpdatedLocked(now time.Time) {
	if now.After(s.ledger.LastUpdated) {
		s.ledger.LastUpdated = now
	}
}

// SyncPrices updates last_price_quote for held assets from a fresh
// price map and recomputes portfolio_value_quote, without touching
// amounts — used by the exchange-sync step between cycles.
func (s *Store) SyncPrices(prices map[string]float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for asset, price := range prices {
		if asset == s.ledger.QuoteCurrency {
			continue
		}
		h, ok := s.ledger.Holdings[asset]
		if !ok {
			continue
		}
		p := price
		h.LastPriceQuote = &p
		s.ledger.Holdings[asset] = h
	}
	s.recomputeValueLocked()
	s.setLastUpdatedLocked(now)
}

// Persist writes the ledger to disk atomically.
func (s *Store) Persist() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return persist.WriteJSONAtomic(s.path, s.ledger)
}

// Reset returns the pre-reset value/composition; recording them is the
// caller's job (performance.Tracker.Reset). Reset here only sets new initial values
// so subsequent invariant checks treat "now" as the new baseline. It
// never discards trades_executed or holdings — the administrative
// reset preserves history.
func (s *Store) Reset(now time.Time) (preResetValue float64, preResetComposition map[string]Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preResetValue = s.ledger.PortfolioValueQuote
	preResetComposition = make(map[string]Holding, len(s.ledger.Holdings))
	for k, v := range s.ledger.Holdings {
		preResetComposition[k] = v
	}

	s.ledger.InitialValueQuote = s.ledger.PortfolioValueQuote
	s.setLastUpdatedLocked(now)
	return preResetValue, preResetComposition
}
