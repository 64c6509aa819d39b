package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/xerrors"
)

// BinanceClient adapts go-binance/v2 to the engine's exchange.Client
// contract. Auth, symbol formatting and error classification lean on
// Binance's REST client rather than hand-rolled HMAC signing.
type BinanceClient struct {
	api          *binance.Client
	limiter      *RateLimiter
	retry        RetryConfig
	quoteAsset   string
}

// BinanceConfig carries the credentials and rate budget the
// "Exchange" configuration surface names.
type BinanceConfig struct {
	APIKey      string
	APISecret   string
	QuoteAsset  string
	RatePerSec  float64
	Retry       RetryConfig
}

func NewBinanceClient(cfg BinanceConfig) *BinanceClient {
	return &BinanceClient{
		api:        binance.NewClient(cfg.APIKey, cfg.APISecret),
		limiter:    NewRateLimiter(cfg.RatePerSec),
		retry:      cfg.Retry,
		quoteAsset: cfg.QuoteAsset,
	}
}

func binanceSymbol(pair string) string {
	return strings.ReplaceAll(pair, "-", "")
}

func (c *BinanceClient) GetProductTicker(ctx context.Context, pair string) (market.Ticker, error) {
	var out market.Ticker
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		symbol := binanceSymbol(pair)

		prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return classifyBinanceError(err)
		}
		if len(prices) == 0 {
			return fmt.Errorf("binance: no price for %s: %w", pair, xerrors.ErrDataUnavailable)
		}
		price, err := strconv.ParseFloat(prices[0].Price, 64)
		if err != nil {
			return fmt.Errorf("binance: parse price: %w", err)
		}

		book, err := c.api.NewListBookTickersService().Symbol(symbol).Do(ctx)
		if err != nil {
			return classifyBinanceError(err)
		}
		bid, ask := price, price
		if len(book) > 0 {
			bid, _ = strconv.ParseFloat(book[0].BidPrice, 64)
			ask, _ = strconv.ParseFloat(book[0].AskPrice, 64)
		}

		stats, err := c.api.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
		volume := 0.0
		if err == nil && len(stats) > 0 {
			volume, _ = strconv.ParseFloat(stats[0].Volume, 64)
		}

		out = market.Ticker{Price: price, Bid: bid, Ask: ask, Volume24h: volume}
		return nil
	})
	return out, err
}

func (c *BinanceClient) GetCandles(ctx context.Context, pair string, granularity time.Duration, lookback int) ([]market.Candle, error) {
	interval, err := binanceInterval(granularity)
	if err != nil {
		return nil, err
	}

	var out []market.Candle
	err = WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		klines, err := c.api.NewKlinesService().
			Symbol(binanceSymbol(pair)).
			Interval(interval).
			Limit(lookback).
			Do(ctx)
		if err != nil {
			return classifyBinanceError(err)
		}

		out = make([]market.Candle, 0, len(klines))
		for _, k := range klines {
			open, _ := strconv.ParseFloat(k.Open, 64)
			high, _ := strconv.ParseFloat(k.High, 64)
			low, _ := strconv.ParseFloat(k.Low, 64)
			close, _ := strconv.ParseFloat(k.Close, 64)
			vol, _ := strconv.ParseFloat(k.Volume, 64)
			out = append(out, market.Candle{
				OpenTime: time.UnixMilli(k.OpenTime),
				Open:     open,
				High:     high,
				Low:      low,
				Close:    close,
				Volume:   vol,
			})
		}
		return nil
	})
	return out, err
}

func (c *BinanceClient) GetBalances(ctx context.Context) (Balances, error) {
	var out Balances
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		account, err := c.api.NewGetAccountService().Do(ctx)
		if err != nil {
			return classifyBinanceError(err)
		}
		out = make(Balances, len(account.Balances))
		for _, b := range account.Balances {
			free, _ := strconv.ParseFloat(b.Free, 64)
			if free > 0 {
				out[b.Asset] = free
			}
		}
		return nil
	})
	return out, err
}

func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	var out OrderResult
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		svc := c.api.NewCreateOrderService().
			Symbol(binanceSymbol(req.Pair)).
			Type(binance.OrderTypeMarket).
			NewClientOrderID(req.ClientOrderID)

		switch req.Side {
		case SideBuy:
			svc = svc.Side(binance.SideTypeBuy).QuoteOrderQty(strconv.FormatFloat(req.QuoteAmount, 'f', -1, 64))
		case SideSell:
			svc = svc.Side(binance.SideTypeSell).Quantity(strconv.FormatFloat(req.BaseAmount, 'f', -1, 64))
		}

		resp, err := svc.Do(ctx)
		if err != nil {
			if isBinanceRejection(err) {
				return fmt.Errorf("binance order rejected: %w: %v", xerrors.ErrOrderRejected, err)
			}
			return classifyBinanceError(err)
		}

		filledQuote, _ := strconv.ParseFloat(resp.CummulativeQuoteQuantity, 64)
		filledBase, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
		fillPrice := 0.0
		if filledBase > 0 {
			fillPrice = filledQuote / filledBase
		}

		out = OrderResult{
			Status:      StatusFilled,
			FilledBase:  filledBase,
			FilledQuote: filledQuote,
			FillPrice:   fillPrice,
			ExchangeID:  strconv.FormatInt(resp.OrderID, 10),
		}
		return nil
	})
	return out, err
}

func (c *BinanceClient) GetOrderStatus(ctx context.Context, clientOrderID string) (OrderResult, error) {
	var out OrderResult
	err := WithRetry(ctx, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		// Binance's order-query endpoint requires the symbol alongside
		// the client order ID, which this method does not receive, so
		// no query is sent: every id reports UNKNOWN, without an error.
		out = OrderResult{Status: StatusUnknown, ExchangeID: clientOrderID}
		return nil
	})
	return out, err
}

func binanceInterval(granularity time.Duration) (string, error) {
	switch granularity {
	case time.Minute:
		return "1m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case time.Hour:
		return "1h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", fmt.Errorf("binance: unsupported candle granularity %v", granularity)
	}
}

func classifyBinanceError(err error) error {
	if apiErr, ok := err.(*binance.APIError); ok {
		switch {
		case apiErr.Code == -1021 || apiErr.Code == -1003:
			return fmt.Errorf("%w: %v", xerrors.ErrRateLimited, err)
		case apiErr.Code == -2014 || apiErr.Code == -2015:
			return fmt.Errorf("%w: %v", xerrors.ErrAuthentication, err)
		}
	}
	return fmt.Errorf("%w: %v", xerrors.ErrTransientNetwork, err)
}

func isBinanceRejection(err error) bool {
	apiErr, ok := err.(*binance.APIError)
	return ok && apiErr.Code == -2010
}
