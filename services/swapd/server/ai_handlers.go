package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/advisor"
)

type analyzeRequest struct {
	Tokens    []string `json:"tokens"`
	Timeframe string   `json:"timeframe"`
}

type explainRequest struct {
	Swap   map[string]any `json:"swap"`
	SwapID string         `json:"swapId"`
}

// handleRecommend answers ?from&to&amount. Ledger terms are attached when
// the pair is quotable so fallback guidance reflects real pricing.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := strings.TrimSpace(q.Get("from"))
	to := strings.TrimSpace(q.Get("to"))
	amount := strings.TrimSpace(q.Get("amount"))
	if from == "" || to == "" || amount == "" {
		s.fail(w, r, fmt.Errorf("%w: from, to and amount are required", errBadRequest))
		return
	}
	req := advisor.SwapRequest{FromToken: from, ToToken: to, Amount: amount}
	if quote, fromTok, toTok, ok := s.tryQuote(r, from, to, amount); ok {
		req.FromToken = fromTok.Symbol
		req.ToToken = toTok.Symbol
		req.Rate = swapledger.FormatRate(quote.Rate)
		req.FeeBps = quote.FeeBps
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": s.advisor.Recommend(r.Context(), req),
		"aiEnabled":       s.advisor.Enabled(),
	})
}

func (s *Server) tryQuote(r *http.Request, from, to, amount string) (swapledger.Quote, swapledger.Token, swapledger.Token, bool) {
	ctx := r.Context()
	fromTok, err := s.ledger.ResolveToken(ctx, from)
	if err != nil {
		return swapledger.Quote{}, swapledger.Token{}, swapledger.Token{}, false
	}
	toTok, err := s.ledger.ResolveToken(ctx, to)
	if err != nil {
		return swapledger.Quote{}, swapledger.Token{}, swapledger.Token{}, false
	}
	amountIn, err := swapledger.ParseUnits(amount, fromTok.Decimals)
	if err != nil {
		return swapledger.Quote{}, swapledger.Token{}, swapledger.Token{}, false
	}
	quote, err := s.ledger.GenerateQuote(ctx, fromTok.Address, toTok.Address, amountIn)
	if err != nil {
		return swapledger.Quote{}, swapledger.Token{}, swapledger.Token{}, false
	}
	return quote, fromTok, toTok, true
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.Tokens) == 0 {
		s.fail(w, r, fmt.Errorf("%w: tokens required", errBadRequest))
		return
	}
	s.writeJSON(w, http.StatusOK, s.advisor.Analyze(r.Context(), req.Tokens, req.Timeframe))
}

// handleExplain accepts either an inline swap description or the id of a
// settled swap.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	swap := req.Swap
	if id := strings.TrimSpace(req.SwapID); id != "" {
		view, err := s.swapByID(r, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		swap = map[string]any{
			"fromToken": view.FromSymbol,
			"toToken":   view.ToSymbol,
			"amountIn":  view.AmountIn,
			"amountOut": view.EffectiveAmountOut,
			"rate":      view.Rate,
			"fee":       view.Fee,
			"slippage":  fmt.Sprintf("%d bps", view.SlippageToleranceBps),
		}
	}
	if len(swap) == 0 {
		s.fail(w, r, fmt.Errorf("%w: swap or swapId required", errBadRequest))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"explanation": s.advisor.Explain(r.Context(), swap)})
}
