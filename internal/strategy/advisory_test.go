package strategy

import (
	"context"
	"testing"

	"github.com/riverforge/combine-trader/internal/advisory"
	"github.com/riverforge/combine-trader/internal/market"
	"github.com/riverforge/combine-trader/internal/portfolio"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	response string
	err      error
}

func (s stubClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return s.response, s.err
}

func TestAdvisoryStrategyMapsBuy(t *testing.T) {
	adv := advisory.NewAdvisor(stubClient{response: `{"action":"buy","confidence":77,"reasoning":"strong setup"}`})
	s := NewAdvisory(adv, AdvisoryConfig{TargetQuoteAllocationPct: 0.3})

	sig := s.AnalyseContext(context.Background(), "BTC-EUR", market.Indicators{}, portfolio.View{})
	require.Equal(t, Buy, sig.Action)
	require.Equal(t, 77.0, sig.Confidence)
	require.False(t, sig.Fallback)
}

func TestAdvisoryStrategyFallbackIsSafeHold(t *testing.T) {
	adv := advisory.NewAdvisor(stubClient{response: ""})
	s := NewAdvisory(adv, AdvisoryConfig{TargetQuoteAllocationPct: 0.3})

	sig := s.Analyse(market.Indicators{}, portfolio.View{})
	require.Equal(t, Hold, sig.Action)
	require.Equal(t, 0.0, sig.Confidence)
	require.True(t, sig.Fallback)
}

func TestAdvisoryImplementsContextualStrategy(t *testing.T) {
	var _ ContextualStrategy = (*Advisory)(nil)
}
