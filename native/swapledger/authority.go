package swapledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

// RegisterToken creates a token owned by caller with zero supply.
func (l *Ledger) RegisterToken(ctx context.Context, caller common.Address, token Token) (registered Token, err error) {
	ctx, finish := l.start(ctx, "register_token", attribute.String("token", token.Address.Hex()))
	defer func() { finish(err) }()

	if caller == (common.Address{}) || token.Address == (common.Address{}) {
		return Token{}, ErrInvalidAddress
	}
	symbol := normalizeSymbol(token.Symbol)
	if symbol == "" || strings.Contains(symbol, "/") {
		return Token{}, fmt.Errorf("%w: symbol %q", ErrInvalidToken, token.Symbol)
	}
	if token.Decimals > maxDecimals {
		return Token{}, fmt.Errorf("%w: decimals %d above %d", ErrInvalidToken, token.Decimals, maxDecimals)
	}
	registered = Token{
		Address:     token.Address,
		Symbol:      symbol,
		Name:        strings.TrimSpace(token.Name),
		Decimals:    token.Decimals,
		Owner:       caller,
		TotalSupply: new(big.Int),
	}
	if registered.Name == "" {
		registered.Name = symbol
	}
	err = l.update(ctx, func(v *view) error {
		if _, exists, err := v.token(token.Address); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("%w: %s", ErrTokenExists, token.Address.Hex())
		}
		if _, taken, err := v.symbolOwner(symbol); err != nil {
			return err
		} else if taken {
			return fmt.Errorf("%w: symbol %s", ErrTokenExists, symbol)
		}
		if err := v.registerToken(registered); err != nil {
			return err
		}
		v.emit(events.TokenRegistered{Token: registered.Address, Symbol: symbol, Decimals: registered.Decimals, Owner: caller})
		return nil
	})
	if err != nil {
		return Token{}, err
	}
	l.logger.Info("token registered", "token", registered.Address.Hex(), "symbol", symbol)
	return registered.Copy(), nil
}

// AddMinter grants the minter role on token. Only the token owner may call it.
// Adding an existing minter is a no-op.
func (l *Ledger) AddMinter(ctx context.Context, caller, token, account common.Address) (err error) {
	return l.changeMinter(ctx, "add_minter", caller, token, account, true)
}

// RemoveMinter revokes the minter role on token. Removing an absent minter is a
// no-op.
func (l *Ledger) RemoveMinter(ctx context.Context, caller, token, account common.Address) (err error) {
	return l.changeMinter(ctx, "remove_minter", caller, token, account, false)
}

func (l *Ledger) changeMinter(ctx context.Context, op string, caller, token, account common.Address, add bool) (err error) {
	ctx, finish := l.start(ctx, op, attribute.String("token", token.Hex()), attribute.String("account", account.Hex()))
	defer func() { finish(err) }()

	if account == (common.Address{}) {
		return ErrInvalidAddress
	}
	return l.update(ctx, func(v *view) error {
		tok, err := v.requireToken(token)
		if err != nil {
			return err
		}
		if caller != tok.Owner {
			return ErrUnauthorized
		}
		changed, err := v.setMinter(token, account, add)
		if err != nil {
			return err
		}
		if changed {
			v.emit(events.MinterChanged{Token: token, Account: account, Added: add})
		}
		return nil
	})
}

// Mint creates amount of token for to. Caller must be a minter.
func (l *Ledger) Mint(ctx context.Context, caller, token, to common.Address, amount *big.Int) (err error) {
	ctx, finish := l.start(ctx, "mint", attribute.String("token", token.Hex()))
	defer func() { finish(err) }()

	return l.update(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		ok, err := v.isMinter(token, caller)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnauthorized
		}
		if err := checkAmount(amount, false); err != nil {
			return err
		}
		if to == (common.Address{}) {
			return ErrInvalidAddress
		}
		return v.mint(token, to, amount, caller)
	})
}

// Burn destroys amount of token held by from. Caller must be from or hold an
// allowance from it, which is consumed.
func (l *Ledger) Burn(ctx context.Context, caller, token, from common.Address, amount *big.Int) (err error) {
	ctx, finish := l.start(ctx, "burn", attribute.String("token", token.Hex()))
	defer func() { finish(err) }()

	return l.update(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		if err := checkAmount(amount, false); err != nil {
			return err
		}
		if from == (common.Address{}) || caller == (common.Address{}) {
			return ErrInvalidAddress
		}
		if caller != from {
			if err := v.spendAllowance(token, from, caller, amount); err != nil {
				return err
			}
		}
		return v.burn(token, from, amount, caller)
	})
}

// Approve sets the allowance spender may draw from owner. Zero revokes.
func (l *Ledger) Approve(ctx context.Context, owner, token, spender common.Address, amount *big.Int) (err error) {
	ctx, finish := l.start(ctx, "approve", attribute.String("token", token.Hex()))
	defer func() { finish(err) }()

	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrInvalidAddress
	}
	if err := checkAmount(amount, true); err != nil {
		return err
	}
	return l.update(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		if err := v.setAllowance(token, owner, spender, amount); err != nil {
			return err
		}
		v.emit(events.Approval{Token: token, Owner: owner, Spender: spender, Amount: cloneInt(amount)})
		return nil
	})
}

// Transfer moves amount of token from caller to to.
func (l *Ledger) Transfer(ctx context.Context, caller, token, to common.Address, amount *big.Int) (err error) {
	ctx, finish := l.start(ctx, "transfer", attribute.String("token", token.Hex()))
	defer func() { finish(err) }()

	if caller == (common.Address{}) || to == (common.Address{}) {
		return ErrInvalidAddress
	}
	if err := checkAmount(amount, false); err != nil {
		return err
	}
	return l.update(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		fromBal, err := v.balance(token, caller)
		if err != nil {
			return err
		}
		if fromBal.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
		if caller == to {
			return nil
		}
		toBal, err := v.balance(token, to)
		if err != nil {
			return err
		}
		if err := v.setBalance(token, caller, fromBal.Sub(fromBal, amount)); err != nil {
			return err
		}
		if err := v.setBalance(token, to, toBal.Add(toBal, amount)); err != nil {
			return err
		}
		v.emit(events.Transferred{Token: token, From: caller, To: to, Amount: cloneInt(amount)})
		return nil
	})
}

// Token returns the token registered at addr.
func (l *Ledger) Token(ctx context.Context, addr common.Address) (Token, error) {
	var tok Token
	err := l.read(ctx, func(v *view) error {
		var err error
		tok, err = v.requireToken(addr)
		return err
	})
	return tok, err
}

// TokenBySymbol resolves a registered token by its symbol.
func (l *Ledger) TokenBySymbol(ctx context.Context, symbol string) (Token, error) {
	var tok Token
	err := l.read(ctx, func(v *view) error {
		addr, ok, err := v.symbolOwner(symbol)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: symbol %s", ErrNotFound, normalizeSymbol(symbol))
		}
		tok, err = v.requireToken(addr)
		return err
	})
	return tok, err
}

// ResolveToken accepts a hex address or a symbol.
func (l *Ledger) ResolveToken(ctx context.Context, ref string) (Token, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return l.Token(ctx, common.HexToAddress(ref))
	}
	return l.TokenBySymbol(ctx, ref)
}

// Tokens lists registered tokens in registration order.
func (l *Ledger) Tokens(ctx context.Context) ([]Token, error) {
	var out []Token
	err := l.read(ctx, func(v *view) error {
		addrs, err := v.tokenAddresses()
		if err != nil {
			return err
		}
		out = make([]Token, 0, len(addrs))
		for _, addr := range addrs {
			tok, ok, err := v.token(addr)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, tok)
			}
		}
		return nil
	})
	return out, err
}

// BalanceOf returns holder's balance of token. Unknown tokens yield NotFound.
func (l *Ledger) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	var bal *big.Int
	err := l.read(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		var err error
		bal, err = v.balance(token, holder)
		return err
	})
	return bal, err
}

// Allowance returns the amount spender may draw from owner.
func (l *Ledger) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var amt *big.Int
	err := l.read(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		var err error
		amt, err = v.allowance(token, owner, spender)
		return err
	})
	return amt, err
}

// Minters returns the sorted minter set of token.
func (l *Ledger) Minters(ctx context.Context, token common.Address) ([]common.Address, error) {
	var out []common.Address
	err := l.read(ctx, func(v *view) error {
		if _, err := v.requireToken(token); err != nil {
			return err
		}
		var err error
		out, err = v.minters(token)
		return err
	})
	return out, err
}

// IsMinter reports whether account may mint token.
func (l *Ledger) IsMinter(ctx context.Context, token, account common.Address) (bool, error) {
	var ok bool
	err := l.read(ctx, func(v *view) error {
		var err error
		ok, err = v.isMinter(token, account)
		return err
	})
	return ok, err
}

func (v *view) mint(token, to common.Address, amount *big.Int, actor common.Address) error {
	tok, err := v.requireToken(token)
	if err != nil {
		return err
	}
	supply, err := addChecked(tok.TotalSupply, amount)
	if err != nil {
		return err
	}
	bal, err := v.balance(token, to)
	if err != nil {
		return err
	}
	tok.TotalSupply = supply
	if err := v.putToken(tok); err != nil {
		return err
	}
	if err := v.setBalance(token, to, bal.Add(bal, amount)); err != nil {
		return err
	}
	v.emit(events.SupplyChanged{Token: token, Account: to, Actor: actor, Amount: cloneInt(amount), Minted: true})
	return nil
}

func (v *view) burn(token, from common.Address, amount *big.Int, actor common.Address) error {
	tok, err := v.requireToken(token)
	if err != nil {
		return err
	}
	bal, err := v.balance(token, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	tok.TotalSupply = subOrZero(tok.TotalSupply, amount)
	if err := v.putToken(tok); err != nil {
		return err
	}
	if err := v.setBalance(token, from, bal.Sub(bal, amount)); err != nil {
		return err
	}
	v.emit(events.SupplyChanged{Token: token, Account: from, Actor: actor, Amount: cloneInt(amount), Minted: false})
	return nil
}

func (v *view) spendAllowance(token, owner, spender common.Address, amount *big.Int) error {
	allowed, err := v.allowance(token, owner, spender)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return v.setAllowance(token, owner, spender, allowed.Sub(allowed, amount))
}
