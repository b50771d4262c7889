package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeTokenRegistered is emitted when a token is created on the ledger.
	TypeTokenRegistered = "swapledger.token_registered"
	// TypeTokenSupportChanged is emitted when the swap whitelist flag flips.
	TypeTokenSupportChanged = "swapledger.token_support_changed"
	// TypeMinterAdded is emitted when an account joins a token's minter set.
	TypeMinterAdded = "swapledger.minter_added"
	// TypeMinterRemoved is emitted when an account leaves a token's minter set.
	TypeMinterRemoved = "swapledger.minter_removed"
	// TypeTokensMinted is emitted for every supply increase.
	TypeTokensMinted = "swapledger.mint"
	// TypeTokensBurned is emitted for every supply decrease.
	TypeTokensBurned = "swapledger.burn"
	// TypeTokensTransferred is emitted for holder-to-holder transfers.
	TypeTokensTransferred = "swapledger.transfer"
	// TypeApproval is emitted when an allowance is set.
	TypeApproval = "swapledger.approval"
)

// TokenRegistered records the creation of a token.
type TokenRegistered struct {
	Token    common.Address
	Symbol   string
	Decimals uint8
	Owner    common.Address
}

// EventType implements Event.
func (TokenRegistered) EventType() string { return TypeTokenRegistered }

// Attributes implements Event.
func (e TokenRegistered) Attributes() map[string]string {
	return map[string]string{
		"token":    e.Token.Hex(),
		"symbol":   normalizeAsset(e.Symbol),
		"decimals": strconv.FormatUint(uint64(e.Decimals), 10),
		"owner":    e.Owner.Hex(),
	}
}

// TokenSupportChanged records a whitelist transition.
type TokenSupportChanged struct {
	Token   common.Address
	Enabled bool
	Actor   common.Address
}

// EventType implements Event.
func (TokenSupportChanged) EventType() string { return TypeTokenSupportChanged }

// Attributes implements Event.
func (e TokenSupportChanged) Attributes() map[string]string {
	return map[string]string{
		"token":   e.Token.Hex(),
		"enabled": strconv.FormatBool(e.Enabled),
		"actor":   e.Actor.Hex(),
	}
}

// MinterChanged records a minter set change. Added distinguishes the two
// event types.
type MinterChanged struct {
	Token   common.Address
	Account common.Address
	Added   bool
}

// EventType implements Event.
func (e MinterChanged) EventType() string {
	if e.Added {
		return TypeMinterAdded
	}
	return TypeMinterRemoved
}

// Attributes implements Event.
func (e MinterChanged) Attributes() map[string]string {
	return map[string]string{
		"token":   e.Token.Hex(),
		"account": e.Account.Hex(),
	}
}

// SupplyChanged records a mint or burn.
type SupplyChanged struct {
	Token   common.Address
	Account common.Address
	Actor   common.Address
	Amount  *big.Int
	Minted  bool
}

// EventType implements Event.
func (e SupplyChanged) EventType() string {
	if e.Minted {
		return TypeTokensMinted
	}
	return TypeTokensBurned
}

// Attributes implements Event.
func (e SupplyChanged) Attributes() map[string]string {
	return map[string]string{
		"token":   e.Token.Hex(),
		"account": e.Account.Hex(),
		"actor":   e.Actor.Hex(),
		"amount":  amountString(e.Amount),
	}
}

// Transferred records a balance transfer between holders.
type Transferred struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// EventType implements Event.
func (Transferred) EventType() string { return TypeTokensTransferred }

// Attributes implements Event.
func (e Transferred) Attributes() map[string]string {
	return map[string]string{
		"token":  e.Token.Hex(),
		"from":   e.From.Hex(),
		"to":     e.To.Hex(),
		"amount": amountString(e.Amount),
	}
}

// Approval records an allowance update.
type Approval struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

// EventType implements Event.
func (Approval) EventType() string { return TypeApproval }

// Attributes implements Event.
func (e Approval) Attributes() map[string]string {
	return map[string]string{
		"token":   e.Token.Hex(),
		"owner":   e.Owner.Hex(),
		"spender": e.Spender.Hex(),
		"amount":  amountString(e.Amount),
	}
}
