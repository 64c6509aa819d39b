package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/xerrors"
)

// BybitClient adapts bybit.go.api's v5 unified-trading client to the
// engine's exchange.Client contract — the second concrete
// implementation proving exchange.Client is a real abstraction
// boundary, not a Binance-shaped leaky one.
type BybitClient struct {
	api        *bybit.Client
	limiter    *RateLimiter
	retry      RetryConfig
	quoteAsset string
}

type BybitConfig struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	QuoteAsset string
	RatePerSec float64
	Retry      RetryConfig
}

func NewBybitClient(cfg BybitConfig) *BybitClient {
	baseURL := bybit.MAINNET
	if cfg.Testnet {
		baseURL = bybit.TESTNET
	}
	api := bybit.NewBybitHttpClient(cfg.APIKey, cfg.APISecret, bybit.WithBaseURL(baseURL))
	return &BybitClient{api: api, limiter: NewRateLimiter(cfg.RatePerSec), retry: cfg.Retry, quoteAsset: cfg.QuoteAsset}
}

func bybitSymbol(pair string) string {
	return strings.ReplaceAll(pair, "-", "")
}

func (c *BybitClient) GetProductTicker(ctx context.Context, pair string) (market.Ticker, error) {
	var out market.Ticker
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		params := map[string]interface{}{"category": "spot", "symbol": bybitSymbol(pair)}
		resp, err := c.api.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return classifyBybitError(err)
		}
		ticker, err := firstBybitTicker(resp)
		if err != nil {
			return fmt.Errorf("bybit: %w: %v", xerrors.ErrDataUnavailable, err)
		}
		out = ticker
		return nil
	})
	return out, err
}

func (c *BybitClient) GetCandles(ctx context.Context, pair string, granularity time.Duration, lookback int) ([]market.Candle, error) {
	interval, err := bybitInterval(granularity)
	if err != nil {
		return nil, err
	}

	var out []market.Candle
	err = WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		params := map[string]interface{}{
			"category": "spot",
			"symbol":   bybitSymbol(pair),
			"interval": interval,
			"limit":    lookback,
		}
		resp, err := c.api.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return classifyBybitError(err)
		}
		out, err = parseBybitKlines(resp)
		return err
	})
	return out, err
}

func (c *BybitClient) GetBalances(ctx context.Context) (Balances, error) {
	var out Balances
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		params := map[string]interface{}{"accountType": "UNIFIED"}
		resp, err := c.api.NewUtaBybitServiceWithParams(params).GetWalletBalance(ctx)
		if err != nil {
			return classifyBybitError(err)
		}
		out, err = parseBybitBalances(resp)
		return err
	})
	return out, err
}

func (c *BybitClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var out OrderResult
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		side := "Buy"
		qty := req.QuoteAmount
		marketUnit := "quoteCoin" // a BUY's qty is denominated in quote currency
		if req.Side == SideSell {
			side = "Sell"
			qty = req.BaseAmount
			marketUnit = "baseCoin"
		}

		params := map[string]interface{}{
			"category":    "spot",
			"symbol":      bybitSymbol(req.Pair),
			"side":        side,
			"orderType":   "Market",
			"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
			"orderLinkId": req.ClientOrderID,
			"marketUnit":  marketUnit,
		}
		resp, err := c.api.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		if err != nil {
			if isBybitRejection(err) {
				return fmt.Errorf("bybit order rejected: %w: %v", xerrors.ErrOrderRejected, err)
			}
			return classifyBybitError(err)
		}
		out, err = parseBybitOrderResult(resp, req)
		return err
	})
	return out, err
}

func (c *BybitClient) GetOrderStatus(ctx context.Context, clientOrderID string) (OrderResult, error) {
	var out OrderResult
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		params := map[string]interface{}{"category": "spot", "orderLinkId": clientOrderID}
		resp, err := c.api.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
		if err != nil {
			return classifyBybitError(err)
		}
		out, err = parseBybitOrderStatus(resp, clientOrderID)
		return err
	})
	return out, err
}

func bybitInterval(granularity time.Duration) (string, error) {
	switch granularity {
	case time.Minute:
		return "1", nil
	case 5 * time.Minute:
		return "5", nil
	case 15 * time.Minute:
		return "15", nil
	case time.Hour:
		return "60", nil
	case 4 * time.Hour:
		return "240", nil
	case 24 * time.Hour:
		return "D", nil
	default:
		return "", fmt.Errorf("bybit: unsupported candle granularity %v", granularity)
	}
}

func classifyBybitError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "10006") || strings.Contains(msg, "rate limit"):
		return fmt.Errorf("%w: %v", xerrors.ErrRateLimited, err)
	case strings.Contains(msg, "10003") || strings.Contains(msg, "API key"):
		return fmt.Errorf("%w: %v", xerrors.ErrAuthentication, err)
	default:
		return fmt.Errorf("%w: %v", xerrors.ErrTransientNetwork, err)
	}
}

func isBybitRejection(err error) bool {
	return strings.Contains(err.Error(), "110007") // ab insufficient balance / order rejected family
}
