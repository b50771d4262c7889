package swapledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

// ErrRateUnavailable is returned by rate sources that have no price for a pair.
var ErrRateUnavailable = errors.New("rate unavailable")

// RateSource supplies the conversion rate for a token pair expressed as whole
// toToken units per whole fromToken unit.
type RateSource interface {
	Rate(ctx context.Context, from, to Token) (*big.Rat, error)
}

// RateSourceFunc adapts a function to the RateSource interface.
type RateSourceFunc func(ctx context.Context, from, to Token) (*big.Rat, error)

// Rate implements RateSource.
func (f RateSourceFunc) Rate(ctx context.Context, from, to Token) (*big.Rat, error) {
	return f(ctx, from, to)
}

// PairKey returns the canonical "FROM/TO" symbol key.
func PairKey(from, to string) string {
	return normalizeSymbol(from) + "/" + normalizeSymbol(to)
}

// StaticRates is a symbol-pair rate table safe for concurrent use.
type StaticRates struct {
	mu    sync.RWMutex
	rates map[string]*big.Rat
}

// NewStaticRates parses a table keyed by "FROM/TO" with decimal rate strings.
func NewStaticRates(table map[string]string) (*StaticRates, error) {
	s := &StaticRates{rates: make(map[string]*big.Rat, len(table))}
	for pair, raw := range table {
		from, to, ok := strings.Cut(pair, "/")
		if !ok || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return nil, fmt.Errorf("invalid pair %q", pair)
		}
		rate, ok := new(big.Rat).SetString(strings.TrimSpace(raw))
		if !ok || rate.Sign() <= 0 {
			return nil, fmt.Errorf("invalid rate %q for pair %s", raw, pair)
		}
		s.rates[PairKey(from, to)] = rate
	}
	return s, nil
}

// DefaultStaticRates returns the seeded AUTOX/SHIFT/MATIC table.
func DefaultStaticRates() *StaticRates {
	s, err := NewStaticRates(DefaultRateTable())
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultRateTable lists the seeded pair rates.
func DefaultRateTable() map[string]string {
	return map[string]string{
		"AUTOX/SHIFT": "1.5",
		"AUTOX/MATIC": "1.0",
		"SHIFT/AUTOX": "0.6667",
		"SHIFT/MATIC": "0.6667",
		"MATIC/AUTOX": "1.0",
		"MATIC/SHIFT": "1.5",
	}
}

// Set installs or replaces a pair rate.
func (s *StaticRates) Set(from, to string, rate *big.Rat) {
	if s == nil || rate == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[PairKey(from, to)] = new(big.Rat).Set(rate)
}

// Lookup returns the rate for a symbol pair.
func (s *StaticRates) Lookup(from, to string) (*big.Rat, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[PairKey(from, to)]
	if !ok {
		return nil, false
	}
	return new(big.Rat).Set(rate), true
}

// Rate implements RateSource.
func (s *StaticRates) Rate(_ context.Context, from, to Token) (*big.Rat, error) {
	if rate, ok := s.Lookup(from.Symbol, to.Symbol); ok {
		return rate, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, PairKey(from.Symbol, to.Symbol))
}

// FirstAvailable queries sources in order and returns the first positive rate.
func FirstAvailable(sources ...RateSource) RateSource {
	return RateSourceFunc(func(ctx context.Context, from, to Token) (*big.Rat, error) {
		var errs []error
		for _, src := range sources {
			if src == nil {
				continue
			}
			rate, err := src.Rate(ctx, from, to)
			if err == nil && rate != nil && rate.Sign() > 0 {
				return rate, nil
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, PairKey(from.Symbol, to.Symbol))
		}
		return nil, errors.Join(errs...)
	})
}
