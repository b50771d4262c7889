package swapledger

import (
	"errors"
	"testing"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

func TestSetSupportedTokenIsIdempotent(t *testing.T) {
	f := newFixture(t)
	before := f.emitter.Count(events.TypeTokenSupportChanged)
	kv, lists := f.snapshot()
	if err := f.ledger.SetSupportedToken(f.ctx, ownerAddr, autoxAddr, true); err != nil {
		t.Fatalf("repeat enable: %v", err)
	}
	f.requireUnchanged(t, kv, lists)
	if got := f.emitter.Count(events.TypeTokenSupportChanged); got != before {
		t.Fatalf("expected no event on no-op, got %d new", got-before)
	}

	if err := f.ledger.SetSupportedToken(f.ctx, ownerAddr, autoxAddr, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if ok, _ := f.ledger.IsSupported(f.ctx, autoxAddr); ok {
		t.Fatalf("expected autox to be delisted")
	}
	supported, err := f.ledger.SupportedTokens(f.ctx)
	if err != nil {
		t.Fatalf("supported tokens: %v", err)
	}
	if len(supported) != 2 || supported[0].Symbol != "SHIFT" {
		t.Fatalf("unexpected supported set %+v", supported)
	}
}

func TestSetSupportedTokenRequiresOwner(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.SetSupportedToken(f.ctx, aliceAddr, autoxAddr, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSetSupportedTokenUnknown(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.SetSupportedToken(f.ctx, ownerAddr, unknownAddr, true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := f.ledger.SetSupportedToken(f.ctx, ownerAddr, unknownAddr, false); err != nil {
		t.Fatalf("disabling an unknown token is a no-op, got %v", err)
	}
}
