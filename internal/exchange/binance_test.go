package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinanceIntervalMapping(t *testing.T) {
	i, err := binanceInterval(time.Hour)
	require.NoError(t, err)
	require.Equal(t, "1h", i)

	_, err = binanceInterval(37 * time.Minute)
	require.Error(t, err)
}

func TestBinanceSymbolStripsHyphen(t *testing.T) {
	require.Equal(t, "BTCEUR", binanceSymbol("BTC-EUR"))
}
