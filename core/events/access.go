package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TypeLedgerPaused          = "swapledger.paused"
	TypeLedgerUnpaused        = "swapledger.unpaused"
	TypeOwnershipTransferred  = "swapledger.ownership_transferred"
	TypeFeeRecipientChanged   = "swapledger.fee_recipient_changed"
	TypeFeeBasisPointsChanged = "swapledger.fee_bps_changed"
)

// PauseChanged records a pause flag transition.
type PauseChanged struct {
	Paused bool
	Actor  common.Address
}

// EventType implements Event.
func (e PauseChanged) EventType() string {
	if e.Paused {
		return TypeLedgerPaused
	}
	return TypeLedgerUnpaused
}

// Attributes implements Event.
func (e PauseChanged) Attributes() map[string]string {
	return map[string]string{"actor": e.Actor.Hex()}
}

// OwnershipTransferred records an owner handover.
type OwnershipTransferred struct {
	Previous common.Address
	Next     common.Address
}

// EventType implements Event.
func (OwnershipTransferred) EventType() string { return TypeOwnershipTransferred }

// Attributes implements Event.
func (e OwnershipTransferred) Attributes() map[string]string {
	return map[string]string{
		"previous": e.Previous.Hex(),
		"next":     e.Next.Hex(),
	}
}

// FeeRecipientChanged records a fee routing update.
type FeeRecipientChanged struct {
	Previous common.Address
	Next     common.Address
}

// EventType implements Event.
func (FeeRecipientChanged) EventType() string { return TypeFeeRecipientChanged }

// Attributes implements Event.
func (e FeeRecipientChanged) Attributes() map[string]string {
	return map[string]string{
		"previous": e.Previous.Hex(),
		"next":     e.Next.Hex(),
	}
}

// FeeBasisPointsChanged records a fee rate update.
type FeeBasisPointsChanged struct {
	Previous uint32
	Next     uint32
}

// EventType implements Event.
func (FeeBasisPointsChanged) EventType() string { return TypeFeeBasisPointsChanged }

// Attributes implements Event.
func (e FeeBasisPointsChanged) Attributes() map[string]string {
	return map[string]string{
		"previous": strconv.FormatUint(uint64(e.Previous), 10),
		"next":     strconv.FormatUint(uint64(e.Next), 10),
	}
}
