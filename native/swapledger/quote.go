package swapledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ethereum/go-ethereum/common"
)

type swapTerms struct {
	rate      *big.Rat
	amountOut *big.Int
	fee       *big.Int
	effective *big.Int
}

// computeTerms prices amountIn of from into to at rate, deducting feeBps in the
// output token.
func computeTerms(from, to Token, amountIn *big.Int, rate *big.Rat, feeBps uint32) (swapTerms, error) {
	fromScale := pow10(from.Decimals)
	toScale := pow10(to.Decimals)

	num := new(big.Int).Mul(amountIn, rate.Num())
	num.Mul(num, toScale)
	den := new(big.Int).Mul(rate.Denom(), fromScale)
	amountOut := new(big.Int).Quo(num, den)

	feeNum := new(big.Int).Mul(amountIn, big.NewInt(int64(feeBps)))
	feeNum.Mul(feeNum, toScale)
	feeDen := new(big.Int).Mul(big.NewInt(bpsDenominator), fromScale)
	fee := new(big.Int).Quo(feeNum, feeDen)

	if amountOut.Sign() == 0 || amountOut.Cmp(fee) <= 0 {
		return swapTerms{}, fmt.Errorf("%w: amount too small to cover fee", ErrInvalidAmount)
	}
	if _, err := addChecked(amountOut, new(big.Int)); err != nil {
		return swapTerms{}, err
	}
	return swapTerms{
		rate:      rate,
		amountOut: amountOut,
		fee:       fee,
		effective: new(big.Int).Sub(amountOut, fee),
	}, nil
}

func applySlippage(amount *big.Int, bps uint32) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(bpsDenominator-bps)))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// resolveRate asks the rate source for a positive rate and falls back to 1.0
// on any failure.
func (l *Ledger) resolveRate(ctx context.Context, from, to Token) *big.Rat {
	pair := PairKey(from.Symbol, to.Symbol)
	if l.rates != nil {
		rate, err := l.rates.Rate(ctx, from, to)
		if err == nil && rate != nil && rate.Sign() > 0 {
			return rate
		}
		l.logger.Warn("rate unavailable, using unit rate", "pair", pair, "error", err)
	}
	l.metrics.RecordRateFallback(pair)
	return big.NewRat(1, 1)
}

// GenerateQuote prices a prospective swap. Quotes are advisory and remain
// available while the ledger is paused.
func (l *Ledger) GenerateQuote(ctx context.Context, fromToken, toToken common.Address, amountIn *big.Int) (quote Quote, err error) {
	ctx, finish := l.start(ctx, "generate_quote",
		attribute.String("from", fromToken.Hex()), attribute.String("to", toToken.Hex()))
	defer func() { finish(err) }()

	var (
		from, to Token
		feeBps   uint32
	)
	err = l.read(ctx, func(v *view) error {
		st, err := v.mustState()
		if err != nil {
			return err
		}
		feeBps = st.FeeBps
		from, to, err = v.swapLegs(fromToken, toToken)
		return err
	})
	if err != nil {
		return Quote{}, err
	}
	if err := checkAmount(amountIn, false); err != nil {
		return Quote{}, err
	}
	rate := l.resolveRate(ctx, from, to)
	terms, err := computeTerms(from, to, amountIn, rate, feeBps)
	if err != nil {
		return Quote{}, err
	}
	issued := l.now()
	return Quote{
		ID:           uuid.NewString(),
		FromToken:    fromToken,
		ToToken:      toToken,
		AmountIn:     cloneInt(amountIn),
		AmountOut:    terms.amountOut,
		Fee:          terms.fee,
		MinAmountOut: applySlippage(terms.effective, l.defaultSlippageBps),
		Rate:         terms.rate,
		FeeBps:       feeBps,
		SlippageBps:  l.defaultSlippageBps,
		IssuedAt:     issued,
		ValidUntil:   issued.Add(l.quoteTTL),
	}, nil
}

// swapLegs loads both tokens and requires them to be registered, whitelisted
// and distinct.
func (v *view) swapLegs(fromToken, toToken common.Address) (Token, Token, error) {
	if fromToken == toToken {
		return Token{}, Token{}, fmt.Errorf("%w: identical legs", ErrUnsupportedToken)
	}
	legs := make([]Token, 0, 2)
	for _, addr := range []common.Address{fromToken, toToken} {
		tok, ok, err := v.token(addr)
		if err != nil {
			return Token{}, Token{}, err
		}
		if !ok {
			return Token{}, Token{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, addr.Hex())
		}
		supported, err := v.supported(addr)
		if err != nil {
			return Token{}, Token{}, err
		}
		if !supported {
			return Token{}, Token{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, tok.Symbol)
		}
		legs = append(legs, tok)
	}
	return legs[0], legs[1], nil
}
