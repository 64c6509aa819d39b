// Package market produces the per-pair candle window and derived
// technical indicators the rest of the engine reasons about:
// Wilder-smoothed RSI and ATR, dual-EMA MACD, and a from-scratch
// SMA/Bollinger implementation in the same style.
package market

import (
	"math"
	"time"
)

// Candle is one fixed-granularity OHLCV record.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Window is an ordered, bounded-lookback sequence of candles for one
// pair, oldest first. It is re-derived every cycle and never
// persisted beyond optional historical archives.
type Window struct {
	Pair       string
	Granularity time.Duration
	Candles    []Candle
}

// Latest returns the most recent candle, or the zero value if empty.
func (w Window) Latest() (Candle, bool) {
	if len(w.Candles) == 0 {
		return Candle{}, false
	}
	return w.Candles[len(w.Candles)-1], true
}

// Stale reports whether the most recent candle is older than
// 2×granularity.
func (w Window) Stale(now time.Time) bool {
	last, ok := w.Latest()
	if !ok {
		return true
	}
	return now.Sub(last.OpenTime) > 2*w.Granularity
}

// MinSamples is the sample count required before indicators are
// trusted: MACD's 26-period slow EMA plus the signal line's 9-period
// smoothing, 26+9=35, which also covers RSI(14), Bollinger(20) and
// EMA-26. It is below SMA-50's period, so SMA50 reads 0 for windows
// of fewer than 50 candles.
const MinSamples = 35

// Closes extracts the close-price series.
func (w Window) Closes() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Close
	}
	return out
}

// PriceChange returns the fractional change between the latest close
// and the close `lookback` candles earlier, or 0 if there aren't
// enough candles.
func (w Window) PriceChange(lookback int) float64 {
	n := len(w.Candles)
	if n == 0 || lookback >= n {
		return 0
	}
	latest := w.Candles[n-1].Close
	prior := w.Candles[n-1-lookback].Close
	if prior == 0 {
		return 0
	}
	return (latest - prior) / prior
}

// sma computes the simple moving average of the last `period` closes.
func sma(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

// ema computes the exponential moving average over the full series,
// seeded by the SMA of the first `period` points.
func ema(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	e := sum / float64(period)
	mult := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		e = (closes[i]-e)*mult + e
	}
	return e
}

// emaSeries returns the EMA value at every index from `period-1`
// onward, needed to derive the MACD signal line.
func emaSeries(closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < period || period <= 0 {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	e := sum / float64(period)
	out[period-1] = e
	mult := 2.0 / float64(period+1)
	for i := period; i < n; i++ {
		e = (closes[i]-e)*mult + e
		out[i] = e
	}
	return out
}

// rsi computes Wilder-smoothed RSI over `period`.
func rsi(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 0
	}
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + (-change)) / float64(period)
		}
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// atr computes Wilder-smoothed Average True Range over the full
// candle set rather than just closes.
func atr(candles []Candle, period int) float64 {
	if len(candles) <= period {
		return 0
	}
	trs := make([]float64, len(candles))
	for i := 1; i < len(candles); i++ {
		high, low, prevClose := candles[i].High, candles[i].Low, candles[i-1].Close
		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)
		trs[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trs[i]
	}
	a := sum / float64(period)
	for i := period + 1; i < len(candles); i++ {
		a = (a*float64(period-1) + trs[i]) / float64(period)
	}
	return a
}

// stddev computes the population standard deviation of the last `period`
// closes, used for the Bollinger Band width.
func stddev(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	mean := sma(closes, period)
	sumSq := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(period))
}
