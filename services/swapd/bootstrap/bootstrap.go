// Package bootstrap seeds a ledger with the configured token set.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/config"
)

// Result summarises the changes applied.
type Result struct {
	Registered []string
	Minted     int
}

// Apply registers each configured token, grants the ledger and configured
// accounts mint authority, applies the whitelist flag and credits initial
// balances. Balances are only minted when the token is registered by this
// call, so repeated runs leave supply untouched.
func Apply(ctx context.Context, ledger *swapledger.Ledger, seeds []config.TokenSeed, logger *slog.Logger) (Result, error) {
	var result Result
	if ledger == nil {
		return result, fmt.Errorf("bootstrap: ledger required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	state, err := ledger.State(ctx)
	if err != nil {
		return result, fmt.Errorf("bootstrap: ledger state: %w", err)
	}
	admin := state.Owner
	for _, seed := range seeds {
		addr := common.HexToAddress(seed.Address)
		tok, err := ledger.Token(ctx, addr)
		fresh := false
		switch {
		case err == nil:
		case errors.Is(err, swapledger.ErrNotFound):
			decimals := swapledger.DefaultDecimals
			if seed.Decimals != nil {
				decimals = *seed.Decimals
			}
			tok, err = ledger.RegisterToken(ctx, admin, swapledger.Token{
				Address:  addr,
				Symbol:   seed.Symbol,
				Name:     seed.Name,
				Decimals: decimals,
			})
			if err != nil {
				return result, fmt.Errorf("bootstrap: register %s: %w", seed.Symbol, err)
			}
			fresh = true
			result.Registered = append(result.Registered, tok.Symbol)
		default:
			return result, fmt.Errorf("bootstrap: lookup %s: %w", seed.Symbol, err)
		}

		minters := []common.Address{ledger.Address()}
		for _, raw := range seed.Minters {
			minters = append(minters, common.HexToAddress(raw))
		}
		for _, minter := range minters {
			ok, err := ledger.IsMinter(ctx, addr, minter)
			if err != nil {
				return result, fmt.Errorf("bootstrap: minter check %s: %w", tok.Symbol, err)
			}
			if ok {
				continue
			}
			if err := ledger.AddMinter(ctx, tok.Owner, addr, minter); err != nil {
				return result, fmt.Errorf("bootstrap: add minter %s to %s: %w", minter.Hex(), tok.Symbol, err)
			}
		}

		if seed.Supported != nil {
			supported, err := ledger.IsSupported(ctx, addr)
			if err != nil {
				return result, fmt.Errorf("bootstrap: support check %s: %w", tok.Symbol, err)
			}
			if supported != *seed.Supported {
				if err := ledger.SetSupportedToken(ctx, admin, addr, *seed.Supported); err != nil {
					return result, fmt.Errorf("bootstrap: whitelist %s: %w", tok.Symbol, err)
				}
			}
		}

		if !fresh {
			continue
		}
		for holder, raw := range seed.Balances {
			amount, err := swapledger.ParseAmount(strings.TrimSpace(raw), tok.Decimals, true)
			if err != nil {
				return result, fmt.Errorf("bootstrap: %s balance for %s: %w", tok.Symbol, holder, err)
			}
			if err := ledger.Mint(ctx, ledger.Address(), addr, common.HexToAddress(holder), amount); err != nil {
				return result, fmt.Errorf("bootstrap: mint %s to %s: %w", tok.Symbol, holder, err)
			}
			result.Minted++
		}
	}
	if len(result.Registered) > 0 || result.Minted > 0 {
		logger.Info("ledger bootstrapped", "registered", strings.Join(result.Registered, ","), "balances", result.Minted)
	}
	return result, nil
}
