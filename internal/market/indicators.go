package market

// Indicators holds every derived signal the strategies consume: RSI(14), MACD(12/26/9) line/
// signal/histogram, Bollinger Bands(20, 2σ), SMA-20/50, EMA-12/26,
// ATR, volume SMA, and rolling 24h/7d/30d price changes.
type Indicators struct {
	Price float64

	RSI14 float64

	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64

	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	// BBStdPct is the Bollinger std-dev expressed as a fraction of the
	// middle band, used by the mean-reversion strategy's z-score.
	BBStdPct float64

	SMA20 float64
	SMA50 float64
	EMA12 float64
	EMA26 float64

	ATR float64

	VolumeSMA float64
	Volume    float64

	PriceChange24h float64
	PriceChange7d  float64
	PriceChange30d float64

	// Degraded is set when the most recent candle is stale; downstream confidence is capped at 50.
	Degraded bool
}

// candlesPer24h/Per7d/Per30d express the rolling-change lookbacks
// in candle counts for a given granularity; callers derive these
// counts themselves since Window already knows its own granularity.

// Compute derives the full Indicators set from a candle window. It
// assumes the caller has already checked len(w.Candles) >= MinSamples
// and populates PriceChange24h/7d/30d from the supplied candle counts
// for those horizons (one per granularity, since a 1h window's "24h"
// is 24 candles but a 1d window's "24h" doesn't exist as a full
// lookback).
func Compute(w Window, candlesPer24h, candlesPer7d, candlesPer30d int) Indicators {
	closes := w.Closes()
	last, _ := w.Latest()

	macdLine := ema(closes, 12) - ema(closes, 26)

	fast := emaSeries(closes, 12)
	slow := emaSeries(closes, 26)
	macdSeries := make([]float64, len(closes))
	for i := range closes {
		if i >= 25 { // both EMAs defined from index 25 onward (26-period, 0-indexed)
			macdSeries[i] = fast[i] - slow[i]
		}
	}
	signal := emaOfSeries(macdSeries, 25, 9)

	mid := sma(closes, 20)
	sd := stddev(closes, 20)
	bbStdPct := 0.0
	if mid != 0 {
		bbStdPct = sd / mid
	}

	ind := Indicators{
		Price:          last.Close,
		RSI14:          rsi(closes, 14),
		MACDLine:       macdLine,
		MACDSignal:     signal,
		MACDHistogram:  macdLine - signal,
		BBUpper:        mid + 2*sd,
		BBMiddle:       mid,
		BBLower:        mid - 2*sd,
		BBStdPct:       bbStdPct,
		SMA20:          mid,
		SMA50:          sma(closes, 50),
		EMA12:          ema(closes, 12),
		EMA26:          ema(closes, 26),
		ATR:            atr(w.Candles, 14),
		VolumeSMA:      volumeSMA(w.Candles, 20),
		Volume:         last.Volume,
		PriceChange24h: w.PriceChange(candlesPer24h),
		PriceChange7d:  w.PriceChange(candlesPer7d),
		PriceChange30d: w.PriceChange(candlesPer30d),
	}
	return ind
}

// emaOfSeries computes an EMA over a sub-series that only becomes
// valid starting at `start`, used to derive the MACD signal line from
// the MACD line series.
func emaOfSeries(series []float64, start, period int) float64 {
	n := len(series)
	if n-start < period {
		return 0
	}
	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += series[i]
	}
	e := sum / float64(period)
	mult := 2.0 / float64(period+1)
	for i := start + period; i < n; i++ {
		e = (series[i]-e)*mult + e
	}
	return e
}

func volumeSMA(candles []Candle, period int) float64 {
	if len(candles) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// NormalizedVolatility is ATR expressed as a fraction of price — used
// by the combiner's regime classifier.
func (i Indicators) NormalizedVolatility() float64 {
	if i.Price == 0 {
		return 0
	}
	return i.ATR / i.Price
}
