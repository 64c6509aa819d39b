package market

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CandleSource is the subset of the exchange adapter the collector
// needs: ticker and candle history. Kept narrow so market can be
// tested without the full exchange.Client surface.
type CandleSource interface {
	GetProductTicker(ctx context.Context, pair string) (Ticker, error)
	GetCandles(ctx context.Context, pair string, granularity time.Duration, lookback int) ([]Candle, error)
}

// Ticker is the live best-bid/ask/last-trade snapshot for a pair.
type Ticker struct {
	Price    float64
	Volume24h float64
	Bid      float64
	Ask      float64
}

// PairSnapshot is everything the strategies and combiner need about
// one pair for one cycle.
type PairSnapshot struct {
	Pair       string
	Price      float64
	Volume24h  float64
	Bid, Ask   float64
	Window     Window
	Indicators Indicators
}

// Collector produces PairSnapshot for each pair in the universe.
type Collector struct {
	source      CandleSource
	granularity time.Duration
	lookback    int
	// candles-per-N-days at this granularity, for rolling price
	// changes.
	per24h, per7d, per30d int
}

// NewCollector builds a Collector for the given candle granularity
// and lookback window size (in candle count).
func NewCollector(source CandleSource, granularity time.Duration, lookback int) *Collector {
	perDay := int(24 * time.Hour / granularity)
	if perDay <= 0 {
		perDay = 1
	}
	return &Collector{
		source:      source,
		granularity: granularity,
		lookback:    lookback,
		per24h:      perDay,
		per7d:       perDay * 7,
		per30d:      perDay * 30,
	}
}

// Collect fetches the ticker and candle window for one pair and
// derives indicators. When there are too few candles it returns an
// error for which IsInsufficientSamples reports true — the caller
// excludes the pair with a logged reason, rather than failing the
// cycle.
func (c *Collector) Collect(ctx context.Context, pair string) (PairSnapshot, error) {
	ticker, err := c.source.GetProductTicker(ctx, pair)
	if err != nil {
		return PairSnapshot{}, fmt.Errorf("ticker for %s: %w", pair, err)
	}

	candles, err := c.source.GetCandles(ctx, pair, c.granularity, c.lookback)
	if err != nil {
		return PairSnapshot{}, fmt.Errorf("candles for %s: %w", pair, err)
	}

	window := Window{Pair: pair, Granularity: c.granularity, Candles: candles}
	if len(candles) < MinSamples {
		return PairSnapshot{}, fmt.Errorf("pair %s: only %d candles, need %d: %w", pair, len(candles), MinSamples, errInsufficientSamples)
	}

	ind := Compute(window, c.per24h, c.per7d, c.per30d)
	ind.Degraded = window.Stale(time.Now())

	return PairSnapshot{
		Pair:       pair,
		Price:      ticker.Price,
		Volume24h:  ticker.Volume24h,
		Bid:        ticker.Bid,
		Ask:        ticker.Ask,
		Window:     window,
		Indicators: ind,
	}, nil
}

var errInsufficientSamples = errors.New("insufficient candle samples")

// IsInsufficientSamples reports whether err was raised because the
// pair had fewer than MinSamples candles.
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}
