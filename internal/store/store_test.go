package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverforge/combine-trader/internal/combiner"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/risk"
)

func TestTacticCreateGetAndSetActive(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	defer db.Close()

	ts := NewTacticStore(db)

	def := &Tactic{ID: "default", Name: "Default", IsDefault: true, Config: "{}"}
	require.NoError(t, ts.Create(def))

	custom := &Tactic{ID: "aggressive", Name: "Aggressive"}
	cfg := &TacticConfig{
		WeightOverrides: map[combiner.Regime]combiner.Weights{
			combiner.Bull: {"trend": 0.5, "mean_reversion": 0.1, "momentum": 0.2, "advisory": 0.2},
		},
		Risk: risk.Config{},
	}
	require.NoError(t, custom.SetConfig(cfg))
	require.NoError(t, ts.Create(custom))

	require.NoError(t, ts.SetActive("aggressive"))

	active, err := ts.GetActive()
	require.NoError(t, err)
	require.Equal(t, "aggressive", active.ID)

	parsed, err := active.ParseConfig()
	require.NoError(t, err)
	require.Equal(t, 0.5, parsed.WeightOverrides[combiner.Bull]["trend"])

	list, err := ts.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestTacticDeleteRefusesDefault(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	defer db.Close()

	ts := NewTacticStore(db)
	def := &Tactic{ID: "default", Name: "Default", IsDefault: true, Config: "{}"}
	require.NoError(t, ts.Create(def))

	require.Error(t, ts.Delete("default"))
}

func TestHistoricalAppendAndRange(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	defer db.Close()

	hs := NewHistoricalStore(db)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []market.Candle{
		{OpenTime: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
		{OpenTime: start.Add(time.Hour), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 12},
	}
	require.NoError(t, hs.Append("BTC-EUR", time.Hour, candles))

	got, err := hs.Range("BTC-EUR", time.Hour, start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 100.0, got[0].Open)
	require.Equal(t, 101.5, got[1].Close)
}

func TestHistoricalAppendIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "engine.db"))
	require.NoError(t, err)
	defer db.Close()

	hs := NewHistoricalStore(db)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []market.Candle{{OpenTime: start, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10}}

	require.NoError(t, hs.Append("BTC-EUR", time.Hour, candles))
	require.NoError(t, hs.Append("BTC-EUR", time.Hour, candles))

	got, err := hs.Range("BTC-EUR", time.Hour, start, start)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
