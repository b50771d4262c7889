package server

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

type quoteRequest struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	AmountIn  string `json:"amountIn"`
	Amount    string `json:"amount"`
}

type executeRequest struct {
	FromToken            string  `json:"fromToken"`
	ToToken              string  `json:"toToken"`
	AmountIn             string  `json:"amountIn"`
	MinAmountOut         string  `json:"minAmountOut"`
	Recipient            string  `json:"recipient"`
	Payer                string  `json:"payer"`
	Deadline             int64   `json:"deadline"`
	SlippageToleranceBps *uint32 `json:"slippageToleranceBps"`
	QuoteID              string  `json:"quoteId"`
}

type historyView struct {
	Swaps  []swapView `json:"swaps"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		tokens []swapledger.Token
		err    error
	)
	all := strings.EqualFold(r.URL.Query().Get("include"), "all")
	if all {
		tokens, err = s.ledger.Tokens(ctx)
	} else {
		tokens, err = s.ledger.SupportedTokens(ctx)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]tokenView, 0, len(tokens))
	for _, tok := range tokens {
		supported := true
		if all {
			if supported, err = s.ledger.IsSupported(ctx, tok.Address); err != nil {
				s.fail(w, r, err)
				return
			}
		}
		out = append(out, newTokenView(tok, supported))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	from, err := s.ledger.ResolveToken(ctx, req.FromToken)
	if err != nil {
		s.fail(w, r, unsupported(req.FromToken, err))
		return
	}
	to, err := s.ledger.ResolveToken(ctx, req.ToToken)
	if err != nil {
		s.fail(w, r, unsupported(req.ToToken, err))
		return
	}
	raw := req.AmountIn
	if raw == "" {
		raw = req.Amount
	}
	amount, err := parseAmount("amountIn", raw, from.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	quote, err := s.ledger.GenerateQuote(ctx, from.Address, to.Address, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.quotes.Put(ctx, quote); err != nil {
		s.logger.Warn("cache quote", "error", err)
	}
	s.writeJSON(w, http.StatusOK, newQuoteView(quote, from, to))
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	quote, err := s.quotes.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cache := s.newTokenCache()
	from, err := cache.get(ctx, quote.FromToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := cache.get(ctx, quote.ToToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newQuoteView(quote, from, to))
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		s.fail(w, r, errUnauthenticated)
		return
	}
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	swapReq, err := s.buildSwapRequest(r, caller, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	record, err := s.ledger.ExecuteSwap(r.Context(), caller, swapReq)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.newTokenCache().swapView(r.Context(), record)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// buildSwapRequest resolves the payload. The pause flag, the deadline and
// token support are checked first, in the ledger's order, so the first
// failing check wins. A missing minimum is taken from the referenced quote,
// or from a fresh quote under the requested tolerance.
func (s *Server) buildSwapRequest(r *http.Request, caller common.Address, req executeRequest) (swapledger.SwapRequest, error) {
	ctx := r.Context()
	var out swapledger.SwapRequest
	st, err := s.ledger.State(ctx)
	if err != nil {
		return out, err
	}
	if st.Paused {
		return out, swapledger.ErrSystemPaused
	}
	now := s.now()
	deadline := now.Add(s.ledger.QuoteTTL())
	if req.Deadline > 0 {
		deadline = time.Unix(req.Deadline, 0)
	}
	if deadline.Before(now) {
		return out, fmt.Errorf("%w: deadline %d has passed", swapledger.ErrDeadlineExpired, req.Deadline)
	}
	from, to, err := s.swapLegs(r, req.FromToken, req.ToToken)
	if err != nil {
		return out, err
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn, from.Decimals)
	if err != nil {
		return out, err
	}
	recipient := caller
	if strings.TrimSpace(req.Recipient) != "" {
		if recipient, err = parseAddress("recipient", req.Recipient); err != nil {
			return out, err
		}
	}
	payer, err := optionalAddress("payer", req.Payer)
	if err != nil {
		return out, err
	}
	out = swapledger.SwapRequest{
		FromToken: from.Address,
		ToToken:   to.Address,
		AmountIn:  amountIn,
		Recipient: recipient,
		Payer:     payer,
		Deadline:  deadline,
	}
	if req.SlippageToleranceBps != nil {
		out.SlippageToleranceBps = *req.SlippageToleranceBps
	}

	switch {
	case strings.TrimSpace(req.MinAmountOut) != "":
		if out.MinAmountOut, err = parseAmount("minAmountOut", req.MinAmountOut, to.Decimals); err != nil {
			return out, err
		}
	case strings.TrimSpace(req.QuoteID) != "":
		quote, err := s.quotes.Get(ctx, req.QuoteID)
		if err != nil {
			return out, err
		}
		if quote.FromToken != from.Address || quote.ToToken != to.Address || quote.AmountIn.Cmp(amountIn) != 0 {
			return out, fmt.Errorf("%w: quote %s does not match request", errBadRequest, req.QuoteID)
		}
		out.MinAmountOut = quote.MinAmountOut
		if req.SlippageToleranceBps == nil {
			out.SlippageToleranceBps = quote.SlippageBps
		}
	default:
		quote, err := s.ledger.GenerateQuote(ctx, from.Address, to.Address, amountIn)
		if err != nil {
			return out, err
		}
		if req.SlippageToleranceBps == nil {
			out.SlippageToleranceBps = quote.SlippageBps
			out.MinAmountOut = quote.MinAmountOut
		} else {
			out.MinAmountOut = minAmountOut(quote.EffectiveAmountOut(), out.SlippageToleranceBps)
		}
	}
	return out, nil
}

// swapLegs resolves both legs and requires them to be supported and distinct.
func (s *Server) swapLegs(r *http.Request, fromRef, toRef string) (swapledger.Token, swapledger.Token, error) {
	ctx := r.Context()
	from, err := s.ledger.ResolveToken(ctx, fromRef)
	if err != nil {
		return swapledger.Token{}, swapledger.Token{}, unsupported(fromRef, err)
	}
	to, err := s.ledger.ResolveToken(ctx, toRef)
	if err != nil {
		return swapledger.Token{}, swapledger.Token{}, unsupported(toRef, err)
	}
	if from.Address == to.Address {
		return swapledger.Token{}, swapledger.Token{}, fmt.Errorf("%w: %s on both legs", swapledger.ErrUnsupportedToken, from.Symbol)
	}
	for _, tok := range []swapledger.Token{from, to} {
		ok, err := s.ledger.IsSupported(ctx, tok.Address)
		if err != nil {
			return swapledger.Token{}, swapledger.Token{}, err
		}
		if !ok {
			return swapledger.Token{}, swapledger.Token{}, fmt.Errorf("%w: %s is not enabled for swaps", swapledger.ErrUnsupportedToken, tok.Symbol)
		}
	}
	return from, to, nil
}

func minAmountOut(effective *big.Int, bps uint32) *big.Int {
	if bps > 10_000 {
		bps = 10_000
	}
	out := new(big.Int).Mul(effective, big.NewInt(int64(10_000-bps)))
	return out.Quo(out, big.NewInt(10_000))
}

// unsupported maps an unknown token reference onto the swap error.
func unsupported(ref string, err error) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("%w: token required", swapledger.ErrUnsupportedToken)
	}
	return fmt.Errorf("%w: %s: %v", swapledger.ErrUnsupportedToken, ref, err)
}

func (s *Server) handleSwapStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.swapByID(r, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) swapByID(r *http.Request, raw string) (swapView, error) {
	raw = strings.TrimSpace(raw)
	if len(strings.TrimPrefix(raw, "0x")) != 2*common.HashLength {
		return swapView{}, fmt.Errorf("%w: swap id must be a 32-byte hex hash", errBadRequest)
	}
	rec, err := s.ledger.SwapStatus(r.Context(), common.HexToHash(raw))
	if err != nil {
		return swapView{}, err
	}
	return s.newTokenCache().swapView(r.Context(), rec)
}

func (s *Server) handleSwapHistory(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if limit == 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recs, total, err := s.ledger.SwapHistory(r.Context(), account, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views, err := s.newTokenCache().swapViews(r.Context(), recs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, historyView{Swaps: views, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stats, err := s.ledger.UserStats(r.Context(), account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	volume := "0"
	if stats.CumulativeVolume != nil {
		volume = stats.CumulativeVolume.String()
	}
	s.writeJSON(w, http.StatusOK, statsView{
		Account:          account.Hex(),
		SwapCount:        stats.SwapCount,
		CumulativeVolume: volume,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.ledger.State(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stateView{
		Address:      s.ledger.Address().Hex(),
		Owner:        st.Owner.Hex(),
		FeeRecipient: st.FeeRecipient.Hex(),
		FeeBps:       st.FeeBps,
		Paused:       st.Paused,
		SwapCount:    st.SwapSequence,
		QuoteTTL:     s.ledger.QuoteTTL().String(),
	})
}
