package exchange

import (
	"context"
	"testing"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/stretchr/testify/require"
)

func TestSimulatedClientFillsBuyWithSlippageAndFee(t *testing.T) {
	c := NewSimulatedClient(DefaultSimConfig(), Balances{"EUR": 1000})
	c.SeedTicker("BTC-EUR", market.Ticker{Price: 40000, Bid: 39990, Ask: 40010})

	result, err := c.PlaceMarketOrder(context.Background(), OrderRequest{
		Pair: "BTC-EUR", Side: SideBuy, QuoteAmount: 400, ClientOrderID: "abc",
	})
	require.NoError(t, err)
	require.Equal(t, StatusSimulated, result.Status)
	require.Greater(t, result.FillPrice, 40000.0) // slippage pushes the buy fill above mid
	require.Less(t, result.FilledBase, 400/40000.0) // fee shrinks the filled base
}

func TestSimulatedClientFillsSell(t *testing.T) {
	c := NewSimulatedClient(DefaultSimConfig(), Balances{"EUR": 1000})
	c.SeedTicker("BTC-EUR", market.Ticker{Price: 40000, Bid: 39990, Ask: 40010})

	result, err := c.PlaceMarketOrder(context.Background(), OrderRequest{
		Pair: "BTC-EUR", Side: SideSell, BaseAmount: 0.01, ClientOrderID: "def",
	})
	require.NoError(t, err)
	require.Less(t, result.FillPrice, 40000.0)
	require.Greater(t, result.FilledQuote, 0.0)
}

func TestSimulatedClientOrderStatusRoundTrip(t *testing.T) {
	c := NewSimulatedClient(DefaultSimConfig(), Balances{"EUR": 1000})
	c.SeedTicker("BTC-EUR", market.Ticker{Price: 40000, Bid: 40000, Ask: 40000})

	_, err := c.PlaceMarketOrder(context.Background(), OrderRequest{
		Pair: "BTC-EUR", Side: SideBuy, QuoteAmount: 100, ClientOrderID: "xyz",
	})
	require.NoError(t, err)

	status, err := c.GetOrderStatus(context.Background(), "xyz")
	require.NoError(t, err)
	require.Equal(t, StatusSimulated, status.Status)
}

func TestSimulatedClientUnknownOrder(t *testing.T) {
	c := NewSimulatedClient(DefaultSimConfig(), Balances{})
	status, err := c.GetOrderStatus(context.Background(), "never-placed")
	require.NoError(t, err)
	require.Equal(t, StatusUnknown, status.Status)
}

func TestClientOrderIDDeterministic(t *testing.T) {
	a := ClientOrderID("BTC-EUR", "cycle-1", SideBuy, 0)
	b := ClientOrderID("BTC-EUR", "cycle-1", SideBuy, 0)
	c := ClientOrderID("BTC-EUR", "cycle-1", SideBuy, 1)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
