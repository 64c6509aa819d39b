// Package telemetry exposes the engine's Prometheus registry: cycle,
// trade and portfolio gauges/counters on a custom registry (not the
// default global one), in the registry-and-GaugeVec pattern.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the engine's custom prometheus registry.
	Registry = prometheus.NewRegistry()

	CycleDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "combine_trader",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Decision cycle duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	CyclesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "combine_trader",
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Total decision cycles by terminal state.",
		},
		[]string{"state"}, // "idle", "degraded"
	)

	PairsExcludedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "combine_trader",
			Subsystem: "cycle",
			Name:      "pairs_excluded_total",
			Help:      "Pairs excluded from a cycle, by reason.",
		},
		[]string{"reason"},
	)

	OpportunityScore = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "combine_trader",
			Subsystem: "opportunity",
			Name:      "score",
			Help:      "Most recent opportunity score per pair.",
		},
		[]string{"pair"},
	)

	TradesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "combine_trader",
			Subsystem: "trade",
			Name:      "total",
			Help:      "Executed trades by pair, side and status.",
		},
		[]string{"pair", "side", "status"},
	)

	PortfolioValueQuote = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "combine_trader",
			Subsystem: "portfolio",
			Name:      "value_quote",
			Help:      "Current portfolio value in quote currency.",
		},
	)

	PortfolioDrawdownPct = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "combine_trader",
			Subsystem: "portfolio",
			Name:      "drawdown_pct",
			Help:      "Maximum drawdown from running peak over the snapshot history, percent.",
		},
	)

	CooldownSuppressedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "combine_trader",
			Subsystem: "cooldown",
			Name:      "suppressed_total",
			Help:      "Signals suppressed by the cool-down throttle, by pair.",
		},
		[]string{"pair"},
	)
)

// Init registers the standard Go runtime/process collectors
// alongside the engine-specific metrics above.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// RecordCycle records one completed cycle's duration and terminal
// state.
func RecordCycle(durationSeconds float64, degraded bool) {
	CycleDuration.Observe(durationSeconds)
	state := "idle"
	if degraded {
		state = "degraded"
	}
	CyclesTotal.WithLabelValues(state).Inc()
}

// RecordTrade increments the trade counter for one pair/side/status.
func RecordTrade(pair, side, status string) {
	TradesTotal.WithLabelValues(pair, side, status).Inc()
}

// SetPortfolio updates the portfolio value and drawdown gauges.
func SetPortfolio(valueQuote, drawdownPct float64) {
	PortfolioValueQuote.Set(valueQuote)
	PortfolioDrawdownPct.Set(drawdownPct)
}
