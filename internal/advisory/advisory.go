// Package advisory wraps a language-model adapter as an opaque oracle,
// configured via a WithProvider/WithModel/WithTimeout options pattern,
// with JSON/decision-tag extraction out of the raw completion text
// (reJSONFence, reDecisionTag).
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/riverforge/combine-trader/internal/xlog"
)

// Client is the oracle interface any language-model backend
// implements: given an assembled prompt, return raw completion text.
// Retries, fallback model selection and prompt construction are the
// implementation's concern, hidden behind this one method.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Option configures an Advisor via the WithProvider/WithModel/
// WithTimeout options pattern.
type Option func(*Advisor)

func WithProvider(provider string) Option {
	return func(a *Advisor) { a.provider = provider }
}

func WithModel(model, fallback string) Option {
	return func(a *Advisor) { a.model, a.fallbackModel = model, fallback }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Advisor) { a.timeout = d }
}

// Awareness is the portfolio-awareness block every advisory prompt
// must carry: quote balance in absolute and relative
// terms plus the three threshold levels.
type Awareness struct {
	QuoteBalance    float64
	QuoteBalancePct float64
	TargetPct       float64
	CriticalLow     float64 // 0.6 * target
	Low             float64 // == target
	High            float64 // 1.5 * target
}

// BuildAwareness derives the portfolio-awareness block from a ledger
// view and the engine's target quote-allocation percentage.
func BuildAwareness(view portfolio.View, targetPct float64) Awareness {
	pct := 0.0
	if view.PortfolioValueQuote > 0 {
		pct = view.QuoteBalance() / view.PortfolioValueQuote
	}
	return Awareness{
		QuoteBalance:    view.QuoteBalance(),
		QuoteBalancePct: pct,
		TargetPct:       targetPct,
		CriticalLow:     targetPct * 0.6,
		Low:             targetPct,
		High:            targetPct * 1.5,
	}
}

// Decision is the advisor's parsed opinion, before being folded into
// a strategy.Signal.
type Decision struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Fallback   bool    `json:"-"`
}

// SafeHold is returned whenever the advisor cannot produce a trusted
// opinion: parse failure, empty response, or timeout. The
// engine must never fail a cycle because of it.
func SafeHold(reason string) Decision {
	return Decision{Action: "HOLD", Confidence: 0, Reasoning: reason, Fallback: true}
}

var (
	reJSONFence   = regexp.MustCompile(`(?is)` + "```json\\s*(\\{.*?\\})\\s*```")
	reDecisionTag = regexp.MustCompile(`(?s)<decision>(.*?)</decision>`)
	reJSONObject  = regexp.MustCompile(`(?s)\{.*\}`)
)

// Advisor evaluates one pair per call, assembling the compact market
// summary plus the portfolio-awareness block, and degrading safely on
// any failure.
type Advisor struct {
	client        Client
	provider      string
	model         string
	fallbackModel string
	timeout       time.Duration
}

func NewAdvisor(client Client, opts ...Option) *Advisor {
	a := &Advisor{client: client, timeout: 20 * time.Second}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Evaluate calls the oracle for one pair and returns a Decision,
// falling back to SafeHold on any timeout, empty response, or parse
// failure. ctx should already carry the engine's 20s advisory budget
//; Evaluate also enforces its own timeout as a backstop.
func (a *Advisor) Evaluate(ctx context.Context, pair string, ind market.Indicators, aware Awareness) Decision {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	system := systemPrompt(aware)
	user := userPrompt(pair, ind, aware)

	raw, err := a.client.Complete(ctx, system, user)
	if err != nil {
		xlog.Warnf("🤖 [advisory] %s: completion failed: %v", pair, err)
		return SafeHold("advisory unavailable")
	}
	if strings.TrimSpace(raw) == "" {
		xlog.Warnf("🤖 [advisory] %s: empty response", pair)
		return SafeHold("advisory unavailable")
	}

	dec, ok := parseDecision(raw)
	if !ok {
		xlog.Warnf("🤖 [advisory] %s: could not parse response", pair)
		return SafeHold("advisory unavailable")
	}
	dec.Action = strings.ToUpper(strings.TrimSpace(dec.Action))
	if dec.Action != "BUY" && dec.Action != "SELL" && dec.Action != "HOLD" {
		xlog.Warnf("🤖 [advisory] %s: unrecognised action %q", pair, dec.Action)
		return SafeHold("advisory unavailable")
	}
	return dec
}

// parseDecision tries, in order: a fenced ```json block, a
// <decision>...</decision> tag, then a bare JSON object anywhere in
// the text.
func parseDecision(raw string) (Decision, bool) {
	candidates := []string{}
	if m := reJSONFence.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := reDecisionTag.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := reJSONObject.FindString(raw); m != "" {
		candidates = append(candidates, m)
	}

	for _, c := range candidates {
		var d Decision
		if err := json.Unmarshal([]byte(c), &d); err == nil && d.Action != "" {
			return d, true
		}
	}
	return Decision{}, false
}

func systemPrompt(aware Awareness) string {
	var b strings.Builder
	b.WriteString("You are a cryptocurrency trading advisor. Respond with a single JSON object {\"action\":\"BUY|SELL|HOLD\",\"confidence\":0-100,\"reasoning\":\"...\"}.\n")
	switch {
	case aware.QuoteBalancePct < aware.CriticalLow:
		b.WriteString("Quote balance is critically low: prefer SELL, and require confidence > 85 to recommend BUY.\n")
	case aware.QuoteBalancePct < aware.Low:
		b.WriteString("Quote balance is below target: prefer SELL.\n")
	case aware.QuoteBalancePct > aware.High:
		b.WriteString("Quote balance is well above target: prefer BUY.\n")
	}
	return b.String()
}

func userPrompt(pair string, ind market.Indicators, aware Awareness) string {
	return fmt.Sprintf(
		"pair=%s price=%.8f rsi14=%.1f macd_hist=%.6f bb_mid=%.8f atr=%.8f change24h=%.4f quote_balance=%.2f quote_balance_pct=%.4f target_pct=%.4f",
		pair, ind.Price, ind.RSI14, ind.MACDHistogram, ind.BBMiddle, ind.ATR, ind.PriceChange24h,
		aware.QuoteBalance, aware.QuoteBalancePct, aware.TargetPct,
	)
}
