package swapledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

// Pause halts swap execution. Pausing an already paused ledger succeeds
// without emitting an event.
func (l *Ledger) Pause(ctx context.Context, caller common.Address) error {
	return l.setPaused(ctx, "pause", caller, true)
}

// Unpause resumes swap execution.
func (l *Ledger) Unpause(ctx context.Context, caller common.Address) error {
	return l.setPaused(ctx, "unpause", caller, false)
}

func (l *Ledger) setPaused(ctx context.Context, op string, caller common.Address, paused bool) (err error) {
	ctx, finish := l.start(ctx, op, attribute.String("caller", caller.Hex()))
	defer func() { finish(err) }()

	err = l.update(ctx, func(v *view) error {
		st, err := requireOwner(v, caller)
		if err != nil {
			return err
		}
		if st.Paused == paused {
			return nil
		}
		st.Paused = paused
		if err := v.putState(st); err != nil {
			return err
		}
		v.emit(events.PauseChanged{Paused: paused, Actor: caller})
		return nil
	})
	if err == nil {
		l.metrics.SetPaused(paused)
		l.logger.Info("ledger pause state set", "paused", paused, "actor", caller.Hex())
	}
	return err
}

// TransferOwnership hands ledger ownership to next.
func (l *Ledger) TransferOwnership(ctx context.Context, caller, next common.Address) (err error) {
	ctx, finish := l.start(ctx, "transfer_ownership")
	defer func() { finish(err) }()

	if next == (common.Address{}) {
		return ErrInvalidAddress
	}
	return l.update(ctx, func(v *view) error {
		st, err := requireOwner(v, caller)
		if err != nil {
			return err
		}
		if st.Owner == next {
			return nil
		}
		previous := st.Owner
		st.Owner = next
		if err := v.putState(st); err != nil {
			return err
		}
		v.emit(events.OwnershipTransferred{Previous: previous, Next: next})
		return nil
	})
}

// SetFeeRecipient changes the account credited with swap fees.
func (l *Ledger) SetFeeRecipient(ctx context.Context, caller, recipient common.Address) (err error) {
	ctx, finish := l.start(ctx, "set_fee_recipient")
	defer func() { finish(err) }()

	if recipient == (common.Address{}) {
		return ErrInvalidAddress
	}
	return l.update(ctx, func(v *view) error {
		st, err := requireOwner(v, caller)
		if err != nil {
			return err
		}
		if st.FeeRecipient == recipient {
			return nil
		}
		previous := st.FeeRecipient
		st.FeeRecipient = recipient
		if err := v.putState(st); err != nil {
			return err
		}
		v.emit(events.FeeRecipientChanged{Previous: previous, Next: recipient})
		return nil
	})
}

// SetFeeBasisPoints updates the swap fee, capped at MaxFeeBasisPoints.
func (l *Ledger) SetFeeBasisPoints(ctx context.Context, caller common.Address, bps uint32) (err error) {
	ctx, finish := l.start(ctx, "set_fee_bps", attribute.Int64("bps", int64(bps)))
	defer func() { finish(err) }()

	if bps > MaxFeeBasisPoints {
		return ErrInvalidAmount
	}
	return l.update(ctx, func(v *view) error {
		st, err := requireOwner(v, caller)
		if err != nil {
			return err
		}
		if st.FeeBps == bps {
			return nil
		}
		previous := st.FeeBps
		st.FeeBps = bps
		if err := v.putState(st); err != nil {
			return err
		}
		v.emit(events.FeeBasisPointsChanged{Previous: previous, Next: bps})
		return nil
	})
}

// State returns the owner-controlled ledger configuration.
func (l *Ledger) State(ctx context.Context) (LedgerState, error) {
	var out LedgerState
	err := l.read(ctx, func(v *view) error {
		st, err := v.mustState()
		if err != nil {
			return err
		}
		out = LedgerState(st)
		return nil
	})
	return out, err
}
