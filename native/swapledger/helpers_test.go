package swapledger

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

var (
	ledgerAddr  = common.HexToAddress("0x00000000000000000000000000000000000a0701")
	ownerAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	feeAddr     = common.HexToAddress("0x1000000000000000000000000000000000000002")
	aliceAddr   = common.HexToAddress("0x2000000000000000000000000000000000000001")
	bobAddr     = common.HexToAddress("0x2000000000000000000000000000000000000002")
	carolAddr   = common.HexToAddress("0x2000000000000000000000000000000000000003")
	autoxAddr   = common.HexToAddress("0xa000000000000000000000000000000000000001")
	shiftAddr   = common.HexToAddress("0xa000000000000000000000000000000000000002")
	maticAddr   = common.HexToAddress("0xa000000000000000000000000000000000000003")
	unknownAddr = common.HexToAddress("0xa0000000000000000000000000000000000000ff")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_750_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureEmitter) Types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.EventType())
	}
	return out
}

func (c *captureEmitter) Count(eventType string) int {
	n := 0
	for _, typ := range c.Types() {
		if typ == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	ctx     context.Context
	ledger  *Ledger
	store   *MemoryStore
	clock   *testClock
	emitter *captureEmitter
}

func units(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), pow10(18))
}

func mustUnits(t *testing.T, value string) *big.Int {
	t.Helper()
	out, err := ParseUnits(value, 18)
	require.NoError(t, err)
	return out
}

// newFixture returns a ledger with AUTOX, SHIFT and MATIC registered and
// whitelisted, the ledger holding mint authority on each, and alice funded
// with 1000 AUTOX.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	clock := newTestClock()
	emitter := &captureEmitter{}
	base := []Option{WithClock(clock.Now), WithEmitter(emitter)}
	ledger, err := New(ctx, store, DefaultStaticRates(), Config{
		Address:      ledgerAddr,
		Owner:        ownerAddr,
		FeeRecipient: feeAddr,
	}, append(base, opts...)...)
	require.NoError(t, err)

	for _, tok := range []Token{
		{Address: autoxAddr, Symbol: "AUTOX", Name: "AutoX Token", Decimals: 18},
		{Address: shiftAddr, Symbol: "SHIFT", Name: "Shift Token", Decimals: 18},
		{Address: maticAddr, Symbol: "MATIC", Name: "Polygon", Decimals: 18},
	} {
		_, err := ledger.RegisterToken(ctx, ownerAddr, tok)
		require.NoError(t, err)
		require.NoError(t, ledger.AddMinter(ctx, ownerAddr, tok.Address, ledgerAddr))
		require.NoError(t, ledger.AddMinter(ctx, ownerAddr, tok.Address, ownerAddr))
		require.NoError(t, ledger.SetSupportedToken(ctx, ownerAddr, tok.Address, true))
	}
	require.NoError(t, ledger.Mint(ctx, ownerAddr, autoxAddr, aliceAddr, units(1000)))
	return &fixture{ctx: ctx, ledger: ledger, store: store, clock: clock, emitter: emitter}
}

func (f *fixture) request(amountIn, minOut *big.Int) SwapRequest {
	return SwapRequest{
		FromToken:            autoxAddr,
		ToToken:              shiftAddr,
		AmountIn:             amountIn,
		MinAmountOut:         minOut,
		Recipient:            aliceAddr,
		Deadline:             f.clock.Now().Add(time.Hour),
		SlippageToleranceBps: 50,
	}
}

func (f *fixture) balance(t *testing.T, token, holder common.Address) *big.Int {
	t.Helper()
	bal, err := f.ledger.BalanceOf(f.ctx, token, holder)
	require.NoError(t, err)
	return bal
}

func (f *fixture) supply(t *testing.T, token common.Address) *big.Int {
	t.Helper()
	tok, err := f.ledger.Token(f.ctx, token)
	require.NoError(t, err)
	return tok.TotalSupply
}

// snapshot captures the raw store contents so tests can assert that failed
// operations leave no trace.
func (f *fixture) snapshot() (map[string]string, map[string]int) {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()
	kv := make(map[string]string, len(f.store.kv))
	for k, v := range f.store.kv {
		kv[k] = string(v)
	}
	lists := make(map[string]int, len(f.store.lists))
	for k, v := range f.store.lists {
		lists[k] = len(v)
	}
	return kv, lists
}

func (f *fixture) requireUnchanged(t *testing.T, kv map[string]string, lists map[string]int) {
	t.Helper()
	afterKV, afterLists := f.snapshot()
	require.Equal(t, kv, afterKV)
	require.Equal(t, lists, afterLists)
}
