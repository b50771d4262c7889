package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

const maxBodyBytes = 1 << 20

type tokenView struct {
	Address     string `json:"address"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	Owner       string `json:"owner"`
	TotalSupply string `json:"totalSupply"`
	Supported   bool   `json:"supported"`
}

type quoteView struct {
	ID                 string `json:"id"`
	FromToken          string `json:"fromToken"`
	FromSymbol         string `json:"fromSymbol"`
	ToToken            string `json:"toToken"`
	ToSymbol           string `json:"toSymbol"`
	AmountIn           string `json:"amountIn"`
	AmountOut          string `json:"amountOut"`
	Fee                string `json:"fee"`
	EffectiveAmountOut string `json:"effectiveAmountOut"`
	MinAmountOut       string `json:"minAmountOut"`
	Rate               string `json:"rate"`
	FeeBps             uint32 `json:"feeBps"`
	SlippageBps        uint32 `json:"slippageBps"`
	IssuedAt           string `json:"issuedAt"`
	ValidUntil         string `json:"validUntil"`
}

type swapView struct {
	ID                   string `json:"id"`
	Sequence             uint64 `json:"sequence"`
	Caller               string `json:"caller"`
	Payer                string `json:"payer"`
	Recipient            string `json:"recipient"`
	FromToken            string `json:"fromToken"`
	FromSymbol           string `json:"fromSymbol"`
	ToToken              string `json:"toToken"`
	ToSymbol             string `json:"toSymbol"`
	AmountIn             string `json:"amountIn"`
	AmountOut            string `json:"amountOut"`
	EffectiveAmountOut   string `json:"effectiveAmountOut"`
	Fee                  string `json:"fee"`
	FeeRecipient         string `json:"feeRecipient"`
	Rate                 string `json:"rate"`
	SlippageToleranceBps uint32 `json:"slippageToleranceBps"`
	Timestamp            string `json:"timestamp"`
	Status               string `json:"status"`
}

type statsView struct {
	Account          string `json:"account"`
	SwapCount        uint64 `json:"swapCount"`
	CumulativeVolume string `json:"cumulativeVolume"`
}

type stateView struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	FeeRecipient string `json:"feeRecipient"`
	FeeBps       uint32 `json:"feeBps"`
	Paused       bool   `json:"paused"`
	SwapCount    uint64 `json:"swapCount"`
	QuoteTTL     string `json:"quoteTtl"`
}

func newTokenView(tok swapledger.Token, supported bool) tokenView {
	return tokenView{
		Address:     tok.Address.Hex(),
		Symbol:      tok.Symbol,
		Name:        tok.Name,
		Decimals:    tok.Decimals,
		Owner:       tok.Owner.Hex(),
		TotalSupply: swapledger.FormatUnits(tok.TotalSupply, tok.Decimals),
		Supported:   supported,
	}
}

func newQuoteView(q swapledger.Quote, from, to swapledger.Token) quoteView {
	return quoteView{
		ID:                 q.ID,
		FromToken:          from.Address.Hex(),
		FromSymbol:         from.Symbol,
		ToToken:            to.Address.Hex(),
		ToSymbol:           to.Symbol,
		AmountIn:           swapledger.FormatUnits(q.AmountIn, from.Decimals),
		AmountOut:          swapledger.FormatUnits(q.AmountOut, to.Decimals),
		Fee:                swapledger.FormatUnits(q.Fee, to.Decimals),
		EffectiveAmountOut: swapledger.FormatUnits(q.EffectiveAmountOut(), to.Decimals),
		MinAmountOut:       swapledger.FormatUnits(q.MinAmountOut, to.Decimals),
		Rate:               swapledger.FormatRate(q.Rate),
		FeeBps:             q.FeeBps,
		SlippageBps:        q.SlippageBps,
		IssuedAt:           q.IssuedAt.UTC().Format(time.RFC3339),
		ValidUntil:         q.ValidUntil.UTC().Format(time.RFC3339),
	}
}

// tokenCache memoises token lookups while rendering a response.
type tokenCache struct {
	ledger *swapledger.Ledger
	tokens map[common.Address]swapledger.Token
}

func (s *Server) newTokenCache() *tokenCache {
	return &tokenCache{ledger: s.ledger, tokens: make(map[common.Address]swapledger.Token)}
}

func (c *tokenCache) get(ctx context.Context, addr common.Address) (swapledger.Token, error) {
	if tok, ok := c.tokens[addr]; ok {
		return tok, nil
	}
	tok, err := c.ledger.Token(ctx, addr)
	if err != nil {
		return swapledger.Token{}, err
	}
	c.tokens[addr] = tok
	return tok, nil
}

func (c *tokenCache) swapView(ctx context.Context, rec swapledger.SwapRecord) (swapView, error) {
	from, err := c.get(ctx, rec.FromToken)
	if err != nil {
		return swapView{}, err
	}
	to, err := c.get(ctx, rec.ToToken)
	if err != nil {
		return swapView{}, err
	}
	return swapView{
		ID:                   rec.ID.Hex(),
		Sequence:             rec.Sequence,
		Caller:               rec.Caller.Hex(),
		Payer:                rec.Payer.Hex(),
		Recipient:            rec.Recipient.Hex(),
		FromToken:            from.Address.Hex(),
		FromSymbol:           from.Symbol,
		ToToken:              to.Address.Hex(),
		ToSymbol:             to.Symbol,
		AmountIn:             swapledger.FormatUnits(rec.AmountIn, from.Decimals),
		AmountOut:            swapledger.FormatUnits(rec.AmountOut, to.Decimals),
		EffectiveAmountOut:   swapledger.FormatUnits(rec.EffectiveAmountOut, to.Decimals),
		Fee:                  swapledger.FormatUnits(rec.FeeAmount, to.Decimals),
		FeeRecipient:         rec.FeeRecipient.Hex(),
		Rate:                 rec.Rate,
		SlippageToleranceBps: rec.SlippageToleranceBps,
		Timestamp:            rec.Timestamp.UTC().Format(time.RFC3339),
		Status:               string(rec.Status),
	}, nil
}

func (c *tokenCache) swapViews(ctx context.Context, recs []swapledger.SwapRecord) ([]swapView, error) {
	out := make([]swapView, 0, len(recs))
	for _, rec := range recs {
		view, err := c.swapView(ctx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", errBadRequest)
		}
		return fmt.Errorf("%w: invalid payload: %v", errBadRequest, err)
	}
	return nil
}

// parseAddress parses a hex account. The zero address is rejected.
func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s must be a hex address", swapledger.ErrInvalidAddress, field)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: %s must not be zero", swapledger.ErrInvalidAddress, field)
	}
	return addr, nil
}

// optionalAddress returns the zero address for an empty field.
func optionalAddress(field, raw string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, raw)
}

func parseAmount(field, raw string, decimals uint8) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %s required", swapledger.ErrInvalidAmount, field)
	}
	amount, err := swapledger.ParseUnits(raw, decimals)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

func (s *Server) tokenParam(r *http.Request) (swapledger.Token, error) {
	return s.ledger.ResolveToken(r.Context(), chi.URLParam(r, "token"))
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return v, nil
}

func formatAmount(v *big.Int, decimals uint8) string {
	return swapledger.FormatUnits(v, decimals)
}
