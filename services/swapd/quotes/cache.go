// Package quotes keeps issued swap quotes addressable by ID until they expire.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

// ErrNotFound is returned for unknown or expired quotes.
var ErrNotFound = errors.New("quote not found")

// Cache stores issued quotes until their ValidUntil time.
type Cache interface {
	Put(ctx context.Context, quote swapledger.Quote) error
	Get(ctx context.Context, id string) (swapledger.Quote, error)
	Close() error
}

// Memory is an in-process Cache.
type Memory struct {
	mu     sync.Mutex
	quotes map[string]swapledger.Quote
	now    func() time.Time
}

// NewMemory returns an empty in-process cache. A nil clock defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{quotes: make(map[string]swapledger.Quote), now: now}
}

// Put stores the quote and evicts expired entries.
func (m *Memory) Put(_ context.Context, quote swapledger.Quote) error {
	if quote.ID == "" {
		return fmt.Errorf("quote id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, q := range m.quotes {
		if !now.Before(q.ValidUntil) {
			delete(m.quotes, id)
		}
	}
	if !now.Before(quote.ValidUntil) {
		return nil
	}
	m.quotes[quote.ID] = quote
	return nil
}

// Get returns a live quote.
func (m *Memory) Get(_ context.Context, id string) (swapledger.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok {
		return swapledger.Quote{}, ErrNotFound
	}
	if !m.now().Before(q.ValidUntil) {
		delete(m.quotes, id)
		return swapledger.Quote{}, ErrNotFound
	}
	return q, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// record is the serialised form of a quote.
type record struct {
	ID           string `json:"id"`
	FromToken    string `json:"fromToken"`
	ToToken      string `json:"toToken"`
	AmountIn     string `json:"amountIn"`
	AmountOut    string `json:"amountOut"`
	Fee          string `json:"fee"`
	MinAmountOut string `json:"minAmountOut"`
	Rate         string `json:"rate"`
	FeeBps       uint32 `json:"feeBps"`
	SlippageBps  uint32 `json:"slippageBps"`
	IssuedAt     int64  `json:"issuedAt"`
	ValidUntil   int64  `json:"validUntil"`
}

func toRecord(q swapledger.Quote) record {
	r := record{
		ID:           q.ID,
		FromToken:    q.FromToken.Hex(),
		ToToken:      q.ToToken.Hex(),
		AmountIn:     intString(q.AmountIn),
		AmountOut:    intString(q.AmountOut),
		Fee:          intString(q.Fee),
		MinAmountOut: intString(q.MinAmountOut),
		FeeBps:       q.FeeBps,
		SlippageBps:  q.SlippageBps,
		IssuedAt:     q.IssuedAt.UnixNano(),
		ValidUntil:   q.ValidUntil.UnixNano(),
	}
	if q.Rate != nil {
		r.Rate = q.Rate.RatString()
	}
	return r
}

func fromRecord(r record) (swapledger.Quote, error) {
	q := swapledger.Quote{
		ID:          r.ID,
		FromToken:   common.HexToAddress(r.FromToken),
		ToToken:     common.HexToAddress(r.ToToken),
		FeeBps:      r.FeeBps,
		SlippageBps: r.SlippageBps,
		IssuedAt:    time.Unix(0, r.IssuedAt).UTC(),
		ValidUntil:  time.Unix(0, r.ValidUntil).UTC(),
	}
	var err error
	for _, f := range []struct {
		dst **big.Int
		raw string
	}{
		{&q.AmountIn, r.AmountIn},
		{&q.AmountOut, r.AmountOut},
		{&q.Fee, r.Fee},
		{&q.MinAmountOut, r.MinAmountOut},
	} {
		if *f.dst, err = parseInt(f.raw); err != nil {
			return swapledger.Quote{}, err
		}
	}
	if r.Rate != "" {
		rate, ok := new(big.Rat).SetString(r.Rate)
		if !ok {
			return swapledger.Quote{}, fmt.Errorf("invalid cached rate %q", r.Rate)
		}
		q.Rate = rate
	}
	return q, nil
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseInt(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid cached amount %q", raw)
	}
	return v, nil
}
