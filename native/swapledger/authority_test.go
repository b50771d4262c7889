package swapledger

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

func TestRegisterTokenRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.RegisterToken(f.ctx, bobAddr, Token{Address: autoxAddr, Symbol: "OTHER", Decimals: 18})
	if !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists for duplicate address, got %v", err)
	}
	_, err = f.ledger.RegisterToken(f.ctx, bobAddr, Token{Address: unknownAddr, Symbol: "autox", Decimals: 18})
	if !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists for duplicate symbol, got %v", err)
	}
}

func TestRegisterTokenValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		token Token
		want  error
	}{
		{"zero address", Token{Symbol: "NEW"}, ErrInvalidAddress},
		{"empty symbol", Token{Address: unknownAddr, Symbol: "  "}, ErrInvalidToken},
		{"slash in symbol", Token{Address: unknownAddr, Symbol: "A/B"}, ErrInvalidToken},
		{"too many decimals", Token{Address: unknownAddr, Symbol: "NEW", Decimals: 40}, ErrInvalidToken},
	}
	for _, tc := range cases {
		if _, err := f.ledger.RegisterToken(f.ctx, bobAddr, tc.token); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestRegisterTokenAssignsCallerAsOwner(t *testing.T) {
	f := newFixture(t)
	tok, err := f.ledger.RegisterToken(f.ctx, bobAddr, Token{Address: unknownAddr, Symbol: " usdx ", Decimals: 6})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tok.Owner != bobAddr || tok.Symbol != "USDX" || tok.Name != "USDX" {
		t.Fatalf("unexpected token %+v", tok)
	}
	resolved, err := f.ledger.ResolveToken(f.ctx, "usdx")
	if err != nil || resolved.Address != unknownAddr {
		t.Fatalf("resolve by symbol: %+v %v", resolved, err)
	}
	resolved, err = f.ledger.ResolveToken(f.ctx, unknownAddr.Hex())
	if err != nil || resolved.Symbol != "USDX" {
		t.Fatalf("resolve by address: %+v %v", resolved, err)
	}
	tokens, err := f.ledger.Tokens(f.ctx)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 4 || tokens[3].Address != unknownAddr {
		t.Fatalf("expected registration order, got %+v", tokens)
	}
}

func TestMinterManagementIsOwnerOnlyAndIdempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.AddMinter(f.ctx, bobAddr, autoxAddr, bobAddr); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	before := f.emitter.Count(events.TypeMinterAdded)
	for i := 0; i < 2; i++ {
		if err := f.ledger.AddMinter(f.ctx, ownerAddr, autoxAddr, bobAddr); err != nil {
			t.Fatalf("add minter: %v", err)
		}
	}
	if got := f.emitter.Count(events.TypeMinterAdded) - before; got != 1 {
		t.Fatalf("expected a single minter_added event, got %d", got)
	}
	minters, err := f.ledger.Minters(f.ctx, autoxAddr)
	if err != nil {
		t.Fatalf("minters: %v", err)
	}
	for i := 1; i < len(minters); i++ {
		if bytes.Compare(minters[i-1].Bytes(), minters[i].Bytes()) >= 0 {
			t.Fatalf("expected sorted unique minters, got %v", minters)
		}
	}
	if err := f.ledger.RemoveMinter(f.ctx, ownerAddr, autoxAddr, bobAddr); err != nil {
		t.Fatalf("remove minter: %v", err)
	}
	if err := f.ledger.RemoveMinter(f.ctx, ownerAddr, autoxAddr, bobAddr); err != nil {
		t.Fatalf("remove absent minter: %v", err)
	}
	if ok, _ := f.ledger.IsMinter(f.ctx, autoxAddr, bobAddr); ok {
		t.Fatalf("expected bob to be removed")
	}
	if err := f.ledger.AddMinter(f.ctx, ownerAddr, unknownAddr, bobAddr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown token, got %v", err)
	}
}

func TestMintChecksAuthorityBeforeAmount(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Mint(f.ctx, bobAddr, autoxAddr, bobAddr, big.NewInt(0)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.ledger.Mint(f.ctx, ownerAddr, autoxAddr, bobAddr, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := f.ledger.Mint(f.ctx, ownerAddr, autoxAddr, common.Address{}, big.NewInt(1)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
}

func TestMintRejectsSupplyOverflow(t *testing.T) {
	f := newFixture(t)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	headroom := new(big.Int).Sub(max, f.supply(t, autoxAddr))
	if err := f.ledger.Mint(f.ctx, ownerAddr, autoxAddr, bobAddr, headroom); err != nil {
		t.Fatalf("mint to cap: %v", err)
	}
	if err := f.ledger.Mint(f.ctx, ownerAddr, autoxAddr, bobAddr, big.NewInt(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected overflow to be rejected, got %v", err)
	}
}

func TestBurnWithAllowance(t *testing.T) {
	f := newFixture(t)
	amount := units(10)
	if err := f.ledger.Burn(f.ctx, bobAddr, autoxAddr, aliceAddr, amount); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	if err := f.ledger.Approve(f.ctx, aliceAddr, autoxAddr, bobAddr, amount); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.ledger.Burn(f.ctx, bobAddr, autoxAddr, aliceAddr, amount); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := f.balance(t, autoxAddr, aliceAddr); got.Cmp(units(990)) != 0 {
		t.Fatalf("unexpected balance %s", got)
	}
	if got := f.supply(t, autoxAddr); got.Cmp(units(990)) != 0 {
		t.Fatalf("unexpected supply %s", got)
	}
	if err := f.ledger.Burn(f.ctx, aliceAddr, autoxAddr, aliceAddr, units(991)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Transfer(f.ctx, aliceAddr, autoxAddr, bobAddr, units(25)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := f.balance(t, autoxAddr, bobAddr); got.Cmp(units(25)) != 0 {
		t.Fatalf("unexpected recipient balance %s", got)
	}
	if err := f.ledger.Transfer(f.ctx, bobAddr, autoxAddr, aliceAddr, units(26)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if f.emitter.Count(events.TypeTokensTransferred) != 1 {
		t.Fatalf("expected one transfer event, got %v", f.emitter.Types())
	}
}

func TestBalanceOfUnknownToken(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.BalanceOf(f.ctx, unknownAddr, aliceAddr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
