package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"

	"github.com/riverforge/combine-trader/internal/market"
)

// The v5 unified-trading API wraps every payload in
// {retCode, retMsg, result: {list: [...]}}. These helpers decode just
// enough of that envelope to fill exchange.Client's return types,
// without depending on bybit.go.api's per-endpoint response structs
// (the library returns the raw envelope from NewUtaBybitServiceWithParams,
// so decoding result.list generically here covers every category).

func bybitResultList(resp *bybit.ServerResponse) ([]map[string]interface{}, error) {
	var body struct {
		Result struct {
			List json.RawMessage `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Result, &body); err != nil {
		return nil, fmt.Errorf("bybit: decode result envelope: %w", err)
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(body.Result.List, &list); err != nil {
		return nil, fmt.Errorf("bybit: decode result list: %w", err)
	}
	return list, nil
}

func asFloat(m map[string]interface{}, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func asString(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func firstBybitTicker(resp *bybit.ServerResponse) (market.Ticker, error) {
	list, err := bybitResultList(resp)
	if err != nil {
		return market.Ticker{}, err
	}
	if len(list) == 0 {
		return market.Ticker{}, fmt.Errorf("bybit: empty ticker list")
	}
	t := list[0]
	return market.Ticker{
		Price:     asFloat(t, "lastPrice"),
		Bid:       asFloat(t, "bid1Price"),
		Ask:       asFloat(t, "ask1Price"),
		Volume24h: asFloat(t, "volume24h"),
	}, nil
}

// parseBybitKlines decodes the v5 kline list, whose rows are arrays
// [startTime, open, high, low, close, volume, turnover] rather than
// objects like the ticker/balance endpoints.
func parseBybitKlines(resp *bybit.ServerResponse) ([]market.Candle, error) {
	var body struct {
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Result, &body); err != nil {
		return nil, fmt.Errorf("bybit: decode kline list: %w", err)
	}

	candles := make([]market.Candle, 0, len(body.Result.List))
	for _, row := range body.Result.List {
		if len(row) < 6 {
			continue
		}
		openMs, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)
		candles = append(candles, market.Candle{
			OpenTime: time.UnixMilli(openMs),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			Volume:   volume,
		})
	}
	// Bybit returns klines newest-first; the engine expects
	// oldest-first chronological order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func parseBybitBalances(resp *bybit.ServerResponse) (Balances, error) {
	list, err := bybitResultList(resp)
	if err != nil {
		return nil, err
	}
	out := Balances{}
	if len(list) == 0 {
		return out, nil
	}
	coins, _ := list[0]["coin"].([]interface{})
	for _, c := range coins {
		cm, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		asset := asString(cm, "coin")
		free := asFloat(cm, "availableToWithdraw")
		if asset != "" && free > 0 {
			out[asset] = free
		}
	}
	return out, nil
}

func parseBybitOrderResult(resp *bybit.ServerResponse, req OrderRequest) (OrderResult, error) {
	var body struct {
		Result struct {
			OrderID     string `json:"orderId"`
			OrderLinkID string `json:"orderLinkId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp.Result, &body); err != nil {
		return OrderResult{}, fmt.Errorf("bybit: decode order result: %w", err)
	}
	// The v5 create-order endpoint acknowledges acceptance, not the
	// fill; the engine treats acceptance of a market order as filled,
	// with the requested amounts as the filled amounts, and does not
	// query the order again afterwards.
	return OrderResult{
		Status:      StatusFilled,
		FilledBase:  req.BaseAmount,
		FilledQuote: req.QuoteAmount,
		ExchangeID:  body.Result.OrderID,
	}, nil
}

func parseBybitOrderStatus(resp *bybit.ServerResponse, clientOrderID string) (OrderResult, error) {
	list, err := bybitResultList(resp)
	if err != nil {
		return OrderResult{}, err
	}
	for _, o := range list {
		if asString(o, "orderLinkId") != clientOrderID {
			continue
		}
		status := StatusUnknown
		switch asString(o, "orderStatus") {
		case "Filled":
			status = StatusFilled
		case "Rejected", "Cancelled":
			status = StatusRejected
		}
		return OrderResult{
			Status:      status,
			FilledBase:  asFloat(o, "cumExecQty"),
			FilledQuote: asFloat(o, "cumExecValue"),
			ExchangeID:  asString(o, "orderId"),
		}, nil
	}
	return OrderResult{Status: StatusUnknown, ExchangeID: clientOrderID}, nil
}
