// Package swapledger implements the swap settlement ledger: token authority,
// swap whitelist, quoting, atomic swap execution, per-account statistics and
// owner access control over a transactional key-value store.
package swapledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultDecimals matches the precision of the seeded AUTOX/SHIFT/MATIC tokens.
	DefaultDecimals uint8 = 18
	// DefaultFeeBasisPoints is the 0.3% swap fee.
	DefaultFeeBasisPoints uint32 = 30
	// MaxFeeBasisPoints caps owner fee updates at 10%.
	MaxFeeBasisPoints uint32 = 1000
	// DefaultSlippageBasisPoints is the informational quote tolerance (0.5%).
	DefaultSlippageBasisPoints uint32 = 50
	// DefaultQuoteTTL bounds advisory quote validity.
	DefaultQuoteTTL = 5 * time.Minute

	bpsDenominator = 10_000
	maxDecimals    = 36
)

// SwapStatus labels a settled swap record.
type SwapStatus string

// Swap statuses recorded within the ledger.
const (
	SwapStatusCompleted SwapStatus = "completed"
)

// Token describes a ledger-native token.
type Token struct {
	Address     common.Address
	Symbol      string
	Name        string
	Decimals    uint8
	Owner       common.Address
	TotalSupply *big.Int
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (t Token) Copy() Token {
	clone := t
	clone.TotalSupply = cloneInt(t.TotalSupply)
	return clone
}

// Quote is an advisory pricing snapshot. It is never consumed by execution.
type Quote struct {
	ID           string
	FromToken    common.Address
	ToToken      common.Address
	AmountIn     *big.Int
	AmountOut    *big.Int
	Fee          *big.Int
	MinAmountOut *big.Int
	Rate         *big.Rat
	FeeBps       uint32
	SlippageBps  uint32
	IssuedAt     time.Time
	ValidUntil   time.Time
}

// EffectiveAmountOut returns the output net of fee.
func (q Quote) EffectiveAmountOut() *big.Int {
	return subOrZero(q.AmountOut, q.Fee)
}

// SwapRequest is the caller-supplied intent to swap. Payer defaults to the
// caller when left as the zero address.
type SwapRequest struct {
	FromToken            common.Address
	ToToken              common.Address
	AmountIn             *big.Int
	MinAmountOut         *big.Int
	Recipient            common.Address
	Payer                common.Address
	Deadline             time.Time
	SlippageToleranceBps uint32
}

// SwapRecord is the append-only settlement record of a successful swap.
type SwapRecord struct {
	ID                   common.Hash
	Sequence             uint64
	Caller               common.Address
	Payer                common.Address
	Recipient            common.Address
	FromToken            common.Address
	ToToken              common.Address
	AmountIn             *big.Int
	AmountOut            *big.Int
	EffectiveAmountOut   *big.Int
	FeeAmount            *big.Int
	FeeRecipient         common.Address
	Rate                 string
	SlippageToleranceBps uint32
	Timestamp            time.Time
	Status               SwapStatus
}

// Copy returns a deep copy of the record.
func (r SwapRecord) Copy() SwapRecord {
	clone := r
	clone.AmountIn = cloneInt(r.AmountIn)
	clone.AmountOut = cloneInt(r.AmountOut)
	clone.EffectiveAmountOut = cloneInt(r.EffectiveAmountOut)
	clone.FeeAmount = cloneInt(r.FeeAmount)
	return clone
}

// UserStats accumulates per-account swap activity.
type UserStats struct {
	Account          common.Address
	SwapCount        uint64
	CumulativeVolume *big.Int
}

// LedgerState captures the owner-controlled configuration of the ledger.
type LedgerState struct {
	Owner        common.Address
	FeeRecipient common.Address
	FeeBps       uint32
	Paused       bool
	SwapSequence uint64
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func subOrZero(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(cloneInt(a), cloneInt(b))
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}
