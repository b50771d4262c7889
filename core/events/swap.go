package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeSwapExecuted is emitted once a swap has settled.
	TypeSwapExecuted = "swapledger.swap_executed"
)

// SwapExecuted captures the settlement of a single swap.
type SwapExecuted struct {
	ID                 string
	Sequence           uint64
	Caller             common.Address
	Payer              common.Address
	Recipient          common.Address
	FromToken          common.Address
	ToToken            common.Address
	AmountIn           *big.Int
	AmountOut          *big.Int
	EffectiveAmountOut *big.Int
	Fee                *big.Int
	FeeRecipient       common.Address
	Rate               string
	Timestamp          int64
}

// EventType implements Event.
func (SwapExecuted) EventType() string { return TypeSwapExecuted }

// Attributes implements Event.
func (e SwapExecuted) Attributes() map[string]string {
	return map[string]string{
		"id":                 strings.TrimSpace(e.ID),
		"sequence":           strconv.FormatUint(e.Sequence, 10),
		"caller":             e.Caller.Hex(),
		"payer":              e.Payer.Hex(),
		"recipient":          e.Recipient.Hex(),
		"fromToken":          e.FromToken.Hex(),
		"toToken":            e.ToToken.Hex(),
		"amountIn":           amountString(e.AmountIn),
		"amountOut":          amountString(e.AmountOut),
		"effectiveAmountOut": amountString(e.EffectiveAmountOut),
		"fee":                amountString(e.Fee),
		"feeRecipient":       e.FeeRecipient.Hex(),
		"rate":               strings.TrimSpace(e.Rate),
		"timestamp":          strconv.FormatInt(e.Timestamp, 10),
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
