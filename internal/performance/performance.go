// Package performance derives return/risk metrics from the portfolio
// ledger and trade log on demand, and maintains the snapshot history
// and reset log as two atomically-persisted JSON files. It never
// mutates the ledger or trade log it reads.
package performance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/riverforge/combine-trader/internal/executor"
	"github.com/riverforge/combine-trader/internal/persist"
	"github.com/riverforge/combine-trader/internal/portfolio"
)

const riskFreeRate = 0.02

// Snapshot is one point-in-time record of portfolio value, appended
// by Tracker.Snapshot whenever its caller asks. The engine's sampler in
// cmd/server calls it on the configured cadence only; no snapshot is
// taken per executed trade, at startup, or on reset.
type Snapshot struct {
	TimestampUTC  time.Time `json:"timestamp_utc"`
	ValueQuote    float64   `json:"value_quote"`
	QuoteBalance  float64   `json:"quote_balance"`
	TradesExecuted int      `json:"trades_executed"`
}

// ResetEntry records one administrative reset: the pre-reset value
// and holdings composition, so metrics computed after the reset treat
// it as the new baseline without losing the history before it.
type ResetEntry struct {
	TimestampUTC        time.Time                     `json:"timestamp_utc"`
	PreResetValueQuote  float64                       `json:"pre_reset_value_quote"`
	PreResetComposition map[string]portfolio.Holding   `json:"pre_reset_composition"`
}

// Config is the persisted tracking state: schema version, snapshot
// retention bound, and the reset history.
type Config struct {
	SchemaVersion   int          `json:"schema_version"`
	SnapshotEvery   time.Duration `json:"snapshot_every"`
	RetentionCount  int          `json:"retention_count"`
	Resets          []ResetEntry `json:"resets"`
}

func DefaultConfig() Config {
	return Config{SchemaVersion: 1, SnapshotEvery: time.Hour, RetentionCount: 24 * 90}
}

// Tracker owns the snapshot history and reset log files. It reads
// (never mutates) a ledger and a trade log to compute metrics.
type Tracker struct {
	snapshotsPath string
	configPath    string

	cfg       Config
	snapshots []Snapshot
}

// LoadTracker loads existing snapshot/config files if present,
// otherwise starts fresh with cfg.
func LoadTracker(snapshotsPath, configPath string, cfg Config) (*Tracker, error) {
	t := &Tracker{snapshotsPath: snapshotsPath, configPath: configPath, cfg: cfg}

	if persist.Exists(configPath) {
		if err := persist.ReadJSON(configPath, &t.cfg); err != nil {
			return nil, fmt.Errorf("load performance config: %w", err)
		}
	}
	if persist.Exists(snapshotsPath) {
		if err := persist.ReadJSON(snapshotsPath, &t.snapshots); err != nil {
			return nil, fmt.Errorf("load portfolio snapshots: %w", err)
		}
	}
	return t, nil
}

// ShouldSnapshot reports whether enough time has passed since the
// last stored snapshot to take another at the configured cadence.
func (t *Tracker) ShouldSnapshot(now time.Time) bool {
	if len(t.snapshots) == 0 {
		return true
	}
	return now.Sub(t.snapshots[len(t.snapshots)-1].TimestampUTC) >= t.cfg.SnapshotEvery
}

// Snapshot appends a new snapshot from the ledger's current view and
// persists it, trimming to the retention bound.
func (t *Tracker) Snapshot(view portfolio.View, now time.Time) error {
	t.snapshots = append(t.snapshots, Snapshot{
		TimestampUTC:   now.UTC(),
		ValueQuote:     view.PortfolioValueQuote,
		QuoteBalance:   view.QuoteBalance(),
		TradesExecuted: view.TradesExecuted,
	})
	if over := len(t.snapshots) - t.cfg.RetentionCount; t.cfg.RetentionCount > 0 && over > 0 {
		t.snapshots = t.snapshots[over:]
	}
	return persist.WriteJSONAtomic(t.snapshotsPath, t.snapshots)
}

// Reset records the ledger's pre-reset value/composition into the
// reset history and persists the config. The ledger's own Reset call
// (which sets its new initial value) is the caller's separate
// responsibility — this only maintains the historical log.
func (t *Tracker) Reset(preResetValue float64, preResetComposition map[string]portfolio.Holding, now time.Time) error {
	t.cfg.Resets = append(t.cfg.Resets, ResetEntry{
		TimestampUTC:        now.UTC(),
		PreResetValueQuote:  preResetValue,
		PreResetComposition: preResetComposition,
	})
	return persist.WriteJSONAtomic(t.configPath, t.cfg)
}

// Snapshots returns a copy of the stored snapshot history.
func (t *Tracker) Snapshots() []Snapshot {
	out := make([]Snapshot, len(t.snapshots))
	copy(out, t.snapshots)
	return out
}

// Metrics is the full set of derived performance figures, computed on
// demand from the ledger's current view, the snapshot history and the
// trade log — never stored directly.
type Metrics struct {
	TotalReturnPct     float64 `json:"total_return_pct"`
	AnnualisedReturnPct float64 `json:"annualised_return_pct"`
	CAGRPct            float64 `json:"cagr_pct"`
	VolatilityPct      float64 `json:"volatility_pct"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	SortinoRatio       float64 `json:"sortino_ratio"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	WinRatePct         float64 `json:"win_rate_pct"`
	ProfitFactor       float64 `json:"profit_factor"`
}

// Compute derives Metrics from the current ledger view and the trade
// log's records, using the tracker's stored snapshot history for the
// daily-return series. It mutates neither input.
func (t *Tracker) Compute(view portfolio.View, trades []executor.TradeRecord, now time.Time) Metrics {
	initial := view.InitialValueQuote
	current := view.PortfolioValueQuote

	var m Metrics
	if initial > 0 {
		m.TotalReturnPct = (current - initial) / initial * 100
	}

	years := now.Sub(firstSnapshotTime(t.snapshots, now)).Hours() / 24 / 365
	if years > 0 && initial > 0 && current > 0 {
		m.AnnualisedReturnPct = (math.Pow(current/initial, 1/years) - 1) * 100
		m.CAGRPct = m.AnnualisedReturnPct
	}

	dailyReturns := dailyReturnSeries(t.snapshots)
	m.VolatilityPct = stdev(dailyReturns) * math.Sqrt(365) * 100

	meanDaily := mean(dailyReturns)
	dailyRiskFree := riskFreeRate / 365
	if vol := stdev(dailyReturns); vol > 0 {
		m.SharpeRatio = (meanDaily - dailyRiskFree) / vol * math.Sqrt(365)
	}
	if downside := downsideDeviation(dailyReturns, dailyRiskFree); downside > 0 {
		m.SortinoRatio = (meanDaily - dailyRiskFree) / downside * math.Sqrt(365)
	}

	m.MaxDrawdownPct = maxDrawdown(t.snapshots) * 100

	wins, losses, grossProfit, grossLoss := 0, 0, 0.0, 0.0
	for _, tr := range trades {
		if tr.PnL == nil {
			continue
		}
		if *tr.PnL >= 0 {
			wins++
			grossProfit += *tr.PnL
		} else {
			losses++
			grossLoss += -*tr.PnL
		}
	}
	if wins+losses > 0 {
		m.WinRatePct = float64(wins) / float64(wins+losses) * 100
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	return m
}

func firstSnapshotTime(snapshots []Snapshot, fallback time.Time) time.Time {
	if len(snapshots) == 0 {
		return fallback
	}
	return snapshots[0].TimestampUTC
}

// dailyReturnSeries buckets the snapshot history into daily closing
// values (last snapshot of each UTC day) and returns the fractional
// day-over-day returns.
func dailyReturnSeries(snapshots []Snapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}
	byDay := map[string]float64{}
	order := []string{}
	for _, s := range snapshots {
		key := s.TimestampUTC.Format("2006-01-02")
		if _, ok := byDay[key]; !ok {
			order = append(order, key)
		}
		byDay[key] = s.ValueQuote
	}
	sort.Strings(order)

	returns := make([]float64, 0, len(order)-1)
	for i := 1; i < len(order); i++ {
		prev := byDay[order[i-1]]
		cur := byDay[order[i]]
		if prev <= 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev)
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func downsideDeviation(xs []float64, target float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	count := 0
	for _, x := range xs {
		if x < target {
			d := x - target
			sumSq += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(count))
}

// maxDrawdown computes the largest running-peak-to-trough fractional
// decline across the snapshot history.
func maxDrawdown(snapshots []Snapshot) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	peak := snapshots[0].ValueQuote
	maxDD := 0.0
	for _, s := range snapshots {
		if s.ValueQuote > peak {
			peak = s.ValueQuote
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - s.ValueQuote) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
