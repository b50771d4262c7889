package swapledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// checkAmount rejects nil, negative and >uint256 values. Zero is accepted only
// when allowZero is set.
func checkAmount(v *big.Int, allowZero bool) error {
	if v == nil || v.Sign() < 0 {
		return ErrInvalidAmount
	}
	if v.Sign() == 0 && !allowZero {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidAmount)
	}
	return nil
}

// addChecked returns a+b or ErrInvalidAmount when the sum leaves uint256 range.
func addChecked(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(cloneInt(a))
	if overflow {
		return nil, ErrInvalidAmount
	}
	y, overflow := uint256.FromBig(cloneInt(b))
	if overflow {
		return nil, ErrInvalidAmount
	}
	sum, carry := new(uint256.Int).AddOverflow(x, y)
	if carry {
		return nil, fmt.Errorf("%w: supply overflow", ErrInvalidAmount)
	}
	return sum.ToBig(), nil
}

// ParseUnits converts a human decimal string such as "1.5" into base units for
// a token with the supplied decimals. More fractional digits than decimals is
// an error.
func ParseUnits(value string, decimals uint8) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidAmount, decimals)
	}
	out := scaled.BigInt()
	if err := checkAmount(out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseAmount accepts either a base-unit integer ("1500000") or, when
// human is set, a decimal string scaled by decimals.
func ParseAmount(value string, decimals uint8, human bool) (*big.Int, error) {
	if human {
		return ParseUnits(value, decimals)
	}
	out, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, value)
	}
	if err := checkAmount(out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// FormatRate renders a rate with up to 18 fractional digits.
func FormatRate(rate *big.Rat) string {
	if rate == nil {
		return "0"
	}
	return decimal.NewFromBigRat(rate, 18).String()
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
