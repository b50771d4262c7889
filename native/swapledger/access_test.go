package swapledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 2; i++ {
		if err := f.ledger.Pause(f.ctx, ownerAddr); err != nil {
			t.Fatalf("pause %d: %v", i, err)
		}
	}
	if got := f.emitter.Count(events.TypeLedgerPaused); got != 1 {
		t.Fatalf("expected one paused event, got %d", got)
	}
	st, err := f.ledger.State(f.ctx)
	if err != nil || !st.Paused {
		t.Fatalf("expected paused state, got %+v %v", st, err)
	}
	for i := 0; i < 2; i++ {
		if err := f.ledger.Unpause(f.ctx, ownerAddr); err != nil {
			t.Fatalf("unpause %d: %v", i, err)
		}
	}
	if got := f.emitter.Count(events.TypeLedgerUnpaused); got != 1 {
		t.Fatalf("expected one unpaused event, got %d", got)
	}
	if err := f.ledger.Pause(f.ctx, aliceAddr); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAdminOperationsWhilePaused(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Pause(f.ctx, ownerAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.ledger.SetFeeBasisPoints(f.ctx, ownerAddr, 100); err != nil {
		t.Fatalf("set fee while paused: %v", err)
	}
	if err := f.ledger.Mint(f.ctx, ownerAddr, autoxAddr, bobAddr, units(1)); err != nil {
		t.Fatalf("mint while paused: %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.TransferOwnership(f.ctx, ownerAddr, common.Address{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if err := f.ledger.TransferOwnership(f.ctx, ownerAddr, bobAddr); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	if err := f.ledger.Pause(f.ctx, ownerAddr); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected previous owner to lose access, got %v", err)
	}
	if err := f.ledger.Pause(f.ctx, bobAddr); err != nil {
		t.Fatalf("new owner pause: %v", err)
	}
}

func TestFeeConfiguration(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.SetFeeBasisPoints(f.ctx, ownerAddr, MaxFeeBasisPoints+1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected cap violation, got %v", err)
	}
	if err := f.ledger.SetFeeRecipient(f.ctx, ownerAddr, common.Address{}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if err := f.ledger.SetFeeRecipient(f.ctx, ownerAddr, carolAddr); err != nil {
		t.Fatalf("set fee recipient: %v", err)
	}
	if err := f.ledger.SetFeeBasisPoints(f.ctx, ownerAddr, 0); err != nil {
		t.Fatalf("set zero fee: %v", err)
	}
	st, err := f.ledger.State(f.ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.FeeRecipient != carolAddr || st.FeeBps != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
	record, err := f.ledger.ExecuteSwap(f.ctx, aliceAddr, f.request(units(2), units(3)))
	if err != nil {
		t.Fatalf("swap without fee: %v", err)
	}
	if record.FeeAmount.Sign() != 0 || record.EffectiveAmountOut.Cmp(units(3)) != 0 {
		t.Fatalf("expected zero fee settlement, got %+v", record)
	}
}

func TestNewKeepsPersistedState(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Pause(f.ctx, ownerAddr); err != nil {
		t.Fatalf("pause: %v", err)
	}
	reopened, err := New(context.Background(), f.store, nil, Config{Address: ledgerAddr, Owner: bobAddr})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	st, err := reopened.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Owner != ownerAddr || !st.Paused || st.FeeRecipient != feeAddr {
		t.Fatalf("expected persisted state to win, got %+v", st)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, nil, nil, Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
	if _, err := New(ctx, NewMemoryStore(), nil, Config{Owner: ownerAddr}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid ledger address, got %v", err)
	}
	if _, err := New(ctx, NewMemoryStore(), nil, Config{Address: ledgerAddr, Owner: ownerAddr, FeeBps: 5000}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected fee cap error, got %v", err)
	}
}
