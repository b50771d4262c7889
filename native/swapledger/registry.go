package swapledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

// SetSupportedToken toggles whether token may be used as a swap leg. Only the
// ledger owner may call it. Enabling an unregistered token fails with
// ErrNotFound; repeating the current value is a silent no-op.
func (l *Ledger) SetSupportedToken(ctx context.Context, caller, token common.Address, enabled bool) (err error) {
	ctx, finish := l.start(ctx, "set_supported_token",
		attribute.String("token", token.Hex()), attribute.Bool("enabled", enabled))
	defer func() { finish(err) }()

	return l.update(ctx, func(v *view) error {
		if _, err := requireOwner(v, caller); err != nil {
			return err
		}
		if token == (common.Address{}) {
			return ErrInvalidAddress
		}
		if enabled {
			if _, err := v.requireToken(token); err != nil {
				return err
			}
		}
		current, err := v.supported(token)
		if err != nil {
			return err
		}
		if current == enabled {
			return nil
		}
		if err := v.setSupported(token, enabled); err != nil {
			return err
		}
		v.emit(events.TokenSupportChanged{Token: token, Enabled: enabled, Actor: caller})
		return nil
	})
}

// IsSupported reports whether token is whitelisted for swaps.
func (l *Ledger) IsSupported(ctx context.Context, token common.Address) (bool, error) {
	var ok bool
	err := l.read(ctx, func(v *view) error {
		var err error
		ok, err = v.supported(token)
		return err
	})
	return ok, err
}

// SupportedTokens lists whitelisted tokens in registration order.
func (l *Ledger) SupportedTokens(ctx context.Context) ([]Token, error) {
	var out []Token
	err := l.read(ctx, func(v *view) error {
		addrs, err := v.tokenAddresses()
		if err != nil {
			return err
		}
		for _, addr := range addrs {
			ok, err := v.supported(addr)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			tok, found, err := v.token(addr)
			if err != nil {
				return err
			}
			if found {
				out = append(out, tok)
			}
		}
		return nil
	})
	return out, err
}
