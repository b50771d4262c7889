package advisor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var bpsDivisor = decimal.NewFromInt(10_000)

func (a *Advisor) fallbackRecommendations(req SwapRequest) []Recommendation {
	now := a.now().UTC()
	pair := fmt.Sprintf("%s/%s", strings.ToUpper(req.FromToken), strings.ToUpper(req.ToToken))
	recs := []Recommendation{{
		ID:          "fallback-rate",
		Type:        "rate",
		Title:       "Quoted rate",
		Description: rateDescription(req, pair),
		Confidence:  90,
		Impact:      "medium",
		Action:      "Request a quote before executing",
		Timestamp:   now,
	}, {
		ID:          "fallback-risk",
		Type:        "risk",
		Title:       "Protect against slippage",
		Description: "Set a minimum output on execution. The swap reverts instead of settling below it.",
		Confidence:  85,
		Impact:      "high",
		Action:      "Use the quote's minimum output",
		Timestamp:   now,
	}, {
		ID:          "fallback-timing",
		Type:        "timing",
		Title:       "Execute before the quote expires",
		Description: "Quotes are valid for a limited window. Execute with a deadline close to the quote expiry.",
		Confidence:  70,
		Impact:      "low",
		Action:      "Execute now",
		Timestamp:   now,
	}}
	return recs
}

func rateDescription(req SwapRequest, pair string) string {
	amount, errAmount := decimal.NewFromString(strings.TrimSpace(req.Amount))
	rate, errRate := decimal.NewFromString(strings.TrimSpace(req.Rate))
	if errAmount != nil || errRate != nil || !amount.IsPositive() || !rate.IsPositive() {
		return fmt.Sprintf("%s swaps settle at the ledger rate less the protocol fee.", pair)
	}
	gross := amount.Mul(rate)
	fee := amount.Mul(decimal.NewFromInt(int64(req.FeeBps))).Div(bpsDivisor)
	net := gross.Sub(fee)
	return fmt.Sprintf("%s %s at %s %s per %s returns about %s %s after a %s fee.",
		amount.String(), strings.ToUpper(req.FromToken), rate.String(), strings.ToUpper(req.ToToken),
		strings.ToUpper(req.FromToken), net.StringFixed(4), strings.ToUpper(req.ToToken), feePercent(req.FeeBps))
}

func feePercent(bps uint32) string {
	return decimal.NewFromInt(int64(bps)).Div(decimal.NewFromInt(100)).String() + "%"
}

func (a *Advisor) fallbackAnalysis(tokens []string, timeframe string) MarketAnalysis {
	from, to := "AUTOX", "SHIFT"
	if len(tokens) > 0 && strings.TrimSpace(tokens[0]) != "" {
		from = tokens[0]
	}
	if len(tokens) > 1 && strings.TrimSpace(tokens[1]) != "" {
		to = tokens[1]
	}
	return MarketAnalysis{
		OverallSentiment: "neutral",
		Volatility:       "low",
		Recommendations:  a.fallbackRecommendations(SwapRequest{FromToken: from, ToToken: to}),
		Insights: []string{
			fmt.Sprintf("No market model is configured; analysis for %s over %s reflects ledger rates only.", strings.Join(tokens, ", "), timeframe),
			"Ledger swaps mint and burn supply, so there is no pool depth to exhaust.",
		},
		OptimalTiming: Timing{
			BestTime:   "Any time",
			Confidence: 50,
			Reason:     "Ledger rates do not vary with trading activity",
		},
	}
}

func fallbackExplanation(swap map[string]any) string {
	from := stringField(swap, "fromToken", "the source token")
	to := stringField(swap, "toToken", "the destination token")
	rate := stringField(swap, "rate", "the ledger")
	fee := stringField(swap, "fee", "the protocol")
	slippage := stringField(swap, "slippage", "the configured")
	return fmt.Sprintf("Your %s to %s swap burns the input amount and mints the output at %s rate. "+
		"A %s fee is deducted from the output and sent to the fee recipient. "+
		"The %s slippage tolerance sets the minimum you accept; if the output would be lower the swap is rejected and nothing moves.",
		from, to, rate, fee, slippage)
}

func stringField(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return fallback
	}
	return s
}
