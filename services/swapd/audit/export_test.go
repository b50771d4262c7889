package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/bootstrap"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/config"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

var (
	aliceAddr = common.HexToAddress("0x2000000000000000000000000000000000000001")
	autoxAddr = common.HexToAddress("0x000000000000000000000000000000000000a001")
	shiftAddr = common.HexToAddress("0x000000000000000000000000000000000000a002")
)

type fixture struct {
	ledger *swapledger.Ledger
	clock  time.Time
}

func newFixture(t *testing.T, swaps int) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{clock: time.Unix(1_750_000_000, 0).UTC()}
	l, err := swapledger.New(ctx, swapledger.NewMemoryStore(), nil, swapledger.Config{
		Address: common.HexToAddress(config.DefaultLedgerAddress),
		Owner:   common.HexToAddress(config.DefaultOwnerAddress),
	}, swapledger.WithClock(func() time.Time { return f.clock }))
	require.NoError(t, err)
	yes := true
	_, err = bootstrap.Apply(ctx, l, []config.TokenSeed{
		{Address: autoxAddr.Hex(), Symbol: "AUTOX", Supported: &yes, Balances: map[string]string{aliceAddr.Hex(): "100000"}},
		{Address: shiftAddr.Hex(), Symbol: "SHIFT", Supported: &yes},
	}, nil)
	require.NoError(t, err)
	f.ledger = l
	for i := 0; i < swaps; i++ {
		amount, err := swapledger.ParseUnits("10", 18)
		require.NoError(t, err)
		_, err = l.ExecuteSwap(ctx, aliceAddr, swapledger.SwapRequest{
			FromToken:            autoxAddr,
			ToToken:              shiftAddr,
			AmountIn:             amount,
			MinAmountOut:         big.NewInt(1),
			Recipient:            aliceAddr,
			Deadline:             f.clock.Add(time.Hour),
			SlippageToleranceBps: 50,
		})
		require.NoError(t, err)
		f.clock = f.clock.Add(time.Minute)
	}
	return f
}

func TestCollectPagesThroughWindow(t *testing.T) {
	f := newFixture(t, pageSize+3)
	start := time.Unix(1_750_000_000, 0).UTC()

	rows, err := Collect(context.Background(), f.ledger, start, f.clock)
	require.NoError(t, err)
	require.Len(t, rows, pageSize+3)
	require.Equal(t, uint64(1), rows[0].Sequence)
	require.Equal(t, "AUTOX", rows[0].FromToken)
	require.Equal(t, "SHIFT", rows[0].ToToken)
	require.Equal(t, "10", rows[0].AmountIn)
	require.Equal(t, "15", rows[0].AmountOut)
	require.Equal(t, "0.03", rows[0].Fee)
	require.Equal(t, "14.97", rows[0].EffectiveAmountOut)

	windowed, err := Collect(context.Background(), f.ledger, start.Add(10*time.Minute), start.Add(19*time.Minute))
	require.NoError(t, err)
	require.Len(t, windowed, 10)
	require.Equal(t, uint64(11), windowed[0].Sequence)
}

func TestWriteCSV(t *testing.T) {
	f := newFixture(t, 2)
	rows, err := Collect(context.Background(), f.ledger, time.Time{}, time.Time{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "CSV", rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, rows[1].ID, records[2][0])
	require.Equal(t, "50", records[1][14])
	require.Equal(t, "completed", records[1][15])
}

func TestExportParquetFile(t *testing.T) {
	f := newFixture(t, 3)
	path := filepath.Join(t.TempDir(), "nested", "swaps.parquet")
	n, err := Export(context.Background(), f.ledger, FormatParquet, path, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PAR1")))
	require.True(t, bytes.HasSuffix(data, []byte("PAR1")))

	_, err = Export(context.Background(), f.ledger, "xml", path, time.Time{}, time.Time{})
	require.Error(t, err)
}

func TestSchedulerRecordsRuns(t *testing.T) {
	f := newFixture(t, 2)
	store, err := storage.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	sched, err := NewScheduler(SchedulerConfig{OutputDir: dir, Format: "csv", Window: time.Hour}, f.ledger, store, nil)
	require.NoError(t, err)
	sched.now = func() time.Time { return f.clock }

	run, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, run.Records)
	require.FileExists(t, run.Path)

	runs, err := store.AuditRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, run.Path, runs[0].Path)
	require.Empty(t, runs[0].Error)

	_, err = NewScheduler(SchedulerConfig{Format: "xml"}, f.ledger, store, nil)
	require.Error(t, err)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	f := newFixture(t, 0)
	sched, err := NewScheduler(SchedulerConfig{Schedule: "every tuesday"}, f.ledger, nil, nil)
	require.NoError(t, err)
	require.Error(t, sched.Run(context.Background()))
}
