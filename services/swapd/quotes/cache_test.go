package quotes

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

func sampleQuote(issued time.Time) swapledger.Quote {
	return swapledger.Quote{
		ID:           uuid.NewString(),
		FromToken:    common.HexToAddress("0xa001"),
		ToToken:      common.HexToAddress("0xa002"),
		AmountIn:     big.NewInt(100),
		AmountOut:    big.NewInt(150),
		Fee:          big.NewInt(1),
		MinAmountOut: big.NewInt(148),
		Rate:         big.NewRat(3, 2),
		FeeBps:       30,
		SlippageBps:  50,
		IssuedAt:     issued.UTC(),
		ValidUntil:   issued.Add(5 * time.Minute).UTC(),
	}
}

func TestMemoryExpiresAtValidUntil(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewMemory(func() time.Time { return now })
	q := sampleQuote(now)
	require.NoError(t, cache.Put(context.Background(), q))

	got, err := cache.Get(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, q.ID, got.ID)

	now = q.ValidUntil
	_, err = cache.Get(context.Background(), q.ID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryIgnoresExpiredPut(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cache := NewMemory(func() time.Time { return now })
	q := sampleQuote(now.Add(-time.Hour))
	require.NoError(t, cache.Put(context.Background(), q))
	_, err := cache.Get(context.Background(), q.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Error(t, cache.Put(context.Background(), swapledger.Quote{}))
}

func TestRecordRoundTripPreservesTerms(t *testing.T) {
	q := sampleQuote(time.Unix(1700000000, 123))
	back, err := fromRecord(toRecord(q))
	require.NoError(t, err)
	require.Equal(t, q.FromToken, back.FromToken)
	require.Zero(t, q.MinAmountOut.Cmp(back.MinAmountOut))
	require.Zero(t, q.Rate.Cmp(back.Rate))
	require.True(t, q.ValidUntil.Equal(back.ValidUntil))

	bad := toRecord(q)
	bad.AmountOut = "1.5"
	_, err = fromRecord(bad)
	require.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("SWAPD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SWAPD_TEST_REDIS_ADDR not set")
	}
	cache := NewRedis(addr, "", 0, "autoxshift:test:")
	t.Cleanup(func() { _ = cache.Close() })
	ctx := context.Background()
	require.NoError(t, cache.Ping(ctx))

	q := sampleQuote(time.Now())
	require.NoError(t, cache.Put(ctx, q))
	got, err := cache.Get(ctx, q.ID)
	require.NoError(t, err)
	require.Zero(t, q.AmountOut.Cmp(got.AmountOut))

	_, err = cache.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}
