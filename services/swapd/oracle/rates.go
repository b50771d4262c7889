package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

// SnapshotRates serves ledger conversion rates from persisted oracle
// snapshots. Lookups try the direct pair, then the inverse of the reverse
// pair, then the fallback source.
type SnapshotRates struct {
	store    SnapshotStore
	maxAge   time.Duration
	fallback swapledger.RateSource
	clock    func() time.Time
}

var _ swapledger.RateSource = (*SnapshotRates)(nil)

// NewSnapshotRates builds a rate source over store. Snapshots older than
// maxAge are ignored; a non-positive maxAge disables the freshness check.
func NewSnapshotRates(store SnapshotStore, maxAge time.Duration, fallback swapledger.RateSource) *SnapshotRates {
	return &SnapshotRates{store: store, maxAge: maxAge, fallback: fallback, clock: time.Now}
}

// Rate implements swapledger.RateSource.
func (s *SnapshotRates) Rate(ctx context.Context, from, to swapledger.Token) (*big.Rat, error) {
	if s.store != nil {
		if rate, err := s.fresh(ctx, from.Symbol, to.Symbol); err == nil {
			return rate, nil
		}
		if rate, err := s.fresh(ctx, to.Symbol, from.Symbol); err == nil {
			return new(big.Rat).Inv(rate), nil
		}
	}
	if s.fallback != nil {
		return s.fallback.Rate(ctx, from, to)
	}
	return nil, fmt.Errorf("%w: %s", swapledger.ErrRateUnavailable, swapledger.PairKey(from.Symbol, to.Symbol))
}

func (s *SnapshotRates) fresh(ctx context.Context, base, quote string) (*big.Rat, error) {
	snap, err := s.store.LatestSnapshot(ctx, base, quote)
	if err != nil {
		return nil, err
	}
	if s.maxAge > 0 && s.clock().Sub(snap.ObservedAt()) > s.maxAge {
		return nil, fmt.Errorf("snapshot for %s/%s is stale", base, quote)
	}
	rate, ok := new(big.Rat).SetString(snap.MedianRate)
	if !ok || rate.Sign() <= 0 {
		return nil, fmt.Errorf("invalid snapshot rate %q", snap.MedianRate)
	}
	return rate, nil
}
