package portfolio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromSnapshotInvariant(t *testing.T) {
	l := FromSnapshot("EUR", 1000, map[string]float64{"BTC": 0.02}, map[string]float64{"BTC": 40000})
	require.InDelta(t, 1800, l.PortfolioValueQuote, 1e-9)
	require.Equal(t, l.PortfolioValueQuote, l.InitialValueQuote)
}

func TestApplyTradeMaintainsInvariant(t *testing.T) {
	l := FromSnapshot("EUR", 1000, map[string]float64{"BTC": 0}, map[string]float64{"BTC": 40000})
	s := NewStore(filepath.Join(t.TempDir(), "portfolio.json"), l)

	// Buy 0.01 BTC for 400 EUR.
	err := s.ApplyTrade("EUR", -400, "BTC", 0.01, map[string]float64{"BTC": 40000}, time.Now())
	require.NoError(t, err)

	v := s.View()
	expected := v.QuoteBalance() + v.AssetAmount("BTC")*40000
	require.InDelta(t, expected, v.PortfolioValueQuote, 1e-6)
	require.InDelta(t, 600, v.QuoteBalance(), 1e-9)
	require.InDelta(t, 0.01, v.AssetAmount("BTC"), 1e-9)
	require.Equal(t, 1, v.TradesExecuted)
}

func TestApplyTradeRejectsOverdraw(t *testing.T) {
	l := FromSnapshot("EUR", 100, nil, nil)
	s := NewStore(filepath.Join(t.TempDir(), "portfolio.json"), l)

	err := s.ApplyTrade("EUR", -500, "BTC", 0.01, nil, time.Now())
	require.Error(t, err)
}

func TestLastUpdatedMonotonic(t *testing.T) {
	l := FromSnapshot("EUR", 100, nil, nil)
	s := NewStore(filepath.Join(t.TempDir(), "portfolio.json"), l)

	future := time.Now().Add(time.Hour)
	s.SyncPrices(nil, future)
	require.Equal(t, future, s.View().LastUpdated)

	// A call with an earlier timestamp must not roll last_updated
	// backwards.
	s.SyncPrices(nil, future.Add(-time.Hour))
	require.Equal(t, future, s.View().LastUpdated)
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.json")
	l := FromSnapshot("EUR", 1000, map[string]float64{"BTC": 0.02}, map[string]float64{"BTC": 40000})
	s := NewStore(path, l)
	require.NoError(t, s.Persist())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, s.View().PortfolioValueQuote, loaded.View().PortfolioValueQuote)
}

func TestResetPreservesHistory(t *testing.T) {
	l := FromSnapshot("EUR", 1000, map[string]float64{"BTC": 0.02}, map[string]float64{"BTC": 40000})
	s := NewStore(filepath.Join(t.TempDir(), "portfolio.json"), l)

	preValue, preComposition := s.Reset(time.Now())
	require.InDelta(t, 1800, preValue, 1e-9)
	require.Contains(t, preComposition, "BTC")
	require.Equal(t, s.View().PortfolioValueQuote, s.View().InitialValueQuote)
}
