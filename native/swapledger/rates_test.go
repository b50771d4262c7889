package swapledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestDefaultStaticRates(t *testing.T) {
	rates := DefaultStaticRates()
	rate, err := rates.Rate(context.Background(), Token{Symbol: "autox"}, Token{Symbol: "SHIFT"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rate.Cmp(big.NewRat(3, 2)) != 0 {
		t.Fatalf("expected 1.5, got %s", rate.FloatString(4))
	}
	if _, err := rates.Rate(context.Background(), Token{Symbol: "AUTOX"}, Token{Symbol: "USDX"}); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestNewStaticRatesValidation(t *testing.T) {
	for _, table := range []map[string]string{
		{"AUTOX": "1"},
		{"AUTOX/SHIFT": "zero"},
		{"AUTOX/SHIFT": "-1"},
	} {
		if _, err := NewStaticRates(table); err == nil {
			t.Fatalf("expected error for %v", table)
		}
	}
}

func TestStaticRatesSetCopies(t *testing.T) {
	rates, err := NewStaticRates(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r := big.NewRat(2, 1)
	rates.Set("a", "b", r)
	r.SetInt64(9)
	got, ok := rates.Lookup("A", "B")
	if !ok || got.Cmp(big.NewRat(2, 1)) != 0 {
		t.Fatalf("expected stored copy, got %v", got)
	}
}

func TestFirstAvailable(t *testing.T) {
	failing := RateSourceFunc(func(context.Context, Token, Token) (*big.Rat, error) {
		return nil, errors.New("offline")
	})
	zero := RateSourceFunc(func(context.Context, Token, Token) (*big.Rat, error) {
		return new(big.Rat), nil
	})
	chain := FirstAvailable(failing, zero, nil, DefaultStaticRates())
	rate, err := chain.Rate(context.Background(), Token{Symbol: "MATIC"}, Token{Symbol: "SHIFT"})
	if err != nil || rate.Cmp(big.NewRat(3, 2)) != 0 {
		t.Fatalf("expected static fallback, got %v %v", rate, err)
	}
	if _, err := FirstAvailable(failing).Rate(context.Background(), Token{}, Token{}); err == nil {
		t.Fatalf("expected error when every source fails")
	}
}
