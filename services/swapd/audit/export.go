// Package audit exports settled swaps for offline reconciliation.
package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

// Supported export formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

const pageSize = 500

// Ledger is the read surface the exporter needs.
type Ledger interface {
	ListSwaps(ctx context.Context, start, end int64, cursor string, limit int) ([]swapledger.SwapRecord, string, error)
	Token(ctx context.Context, addr common.Address) (swapledger.Token, error)
}

// Row is one exported swap with amounts in whole-token units.
type Row struct {
	ID                 string
	Sequence           uint64
	Timestamp          time.Time
	Caller             string
	Payer              string
	Recipient          string
	FromToken          string
	ToToken            string
	AmountIn           string
	AmountOut          string
	EffectiveAmountOut string
	Fee                string
	FeeRecipient       string
	Rate               string
	SlippageBps        uint32
	Status             string
}

var csvHeader = []string{
	"id", "sequence", "timestamp", "caller", "payer", "recipient",
	"from_token", "to_token", "amount_in", "amount_out", "effective_amount_out",
	"fee", "fee_recipient", "rate", "slippage_bps", "status",
}

// Collect pages through every swap settled within [from, to].
func Collect(ctx context.Context, ledger Ledger, from, to time.Time) ([]Row, error) {
	tokens := make(map[common.Address]swapledger.Token)
	lookup := func(addr common.Address) (swapledger.Token, error) {
		if tok, ok := tokens[addr]; ok {
			return tok, nil
		}
		tok, err := ledger.Token(ctx, addr)
		if err != nil {
			return swapledger.Token{}, fmt.Errorf("audit: token %s: %w", addr.Hex(), err)
		}
		tokens[addr] = tok
		return tok, nil
	}
	var (
		rows   []Row
		cursor string
	)
	for {
		page, next, err := ledger.ListSwaps(ctx, unixOrZero(from), unixOrZero(to), cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("audit: list swaps: %w", err)
		}
		for _, rec := range page {
			fromTok, err := lookup(rec.FromToken)
			if err != nil {
				return nil, err
			}
			toTok, err := lookup(rec.ToToken)
			if err != nil {
				return nil, err
			}
			rows = append(rows, Row{
				ID:                 rec.ID.Hex(),
				Sequence:           rec.Sequence,
				Timestamp:          rec.Timestamp.UTC(),
				Caller:             rec.Caller.Hex(),
				Payer:              rec.Payer.Hex(),
				Recipient:          rec.Recipient.Hex(),
				FromToken:          fromTok.Symbol,
				ToToken:            toTok.Symbol,
				AmountIn:           swapledger.FormatUnits(rec.AmountIn, fromTok.Decimals),
				AmountOut:          swapledger.FormatUnits(rec.AmountOut, toTok.Decimals),
				EffectiveAmountOut: swapledger.FormatUnits(rec.EffectiveAmountOut, toTok.Decimals),
				Fee:                swapledger.FormatUnits(rec.FeeAmount, toTok.Decimals),
				FeeRecipient:       rec.FeeRecipient.Hex(),
				Rate:               rec.Rate,
				SlippageBps:        rec.SlippageToleranceBps,
				Status:             string(rec.Status),
			})
		}
		if next == "" {
			return rows, nil
		}
		cursor = next
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("audit: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			strconv.FormatUint(row.Sequence, 10),
			row.Timestamp.Format(time.RFC3339Nano),
			row.Caller,
			row.Payer,
			row.Recipient,
			row.FromToken,
			row.ToToken,
			row.AmountIn,
			row.AmountOut,
			row.EffectiveAmountOut,
			row.Fee,
			row.FeeRecipient,
			row.Rate,
			strconv.FormatUint(uint64(row.SlippageBps), 10),
			row.Status,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("audit: write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("audit: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	ID                 string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence           int64  `parquet:"name=sequence, type=INT64"`
	Timestamp          string `parquet:"name=timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
	Caller             string `parquet:"name=caller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payer              string `parquet:"name=payer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Recipient          string `parquet:"name=recipient, type=BYTE_ARRAY, convertedtype=UTF8"`
	FromToken          string `parquet:"name=from_token, type=BYTE_ARRAY, convertedtype=UTF8"`
	ToToken            string `parquet:"name=to_token, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountIn           string `parquet:"name=amount_in, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountOut          string `parquet:"name=amount_out, type=BYTE_ARRAY, convertedtype=UTF8"`
	EffectiveAmountOut string `parquet:"name=effective_amount_out, type=BYTE_ARRAY, convertedtype=UTF8"`
	Fee                string `parquet:"name=fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	FeeRecipient       string `parquet:"name=fee_recipient, type=BYTE_ARRAY, convertedtype=UTF8"`
	Rate               string `parquet:"name=rate, type=BYTE_ARRAY, convertedtype=UTF8"`
	SlippageBps        int32  `parquet:"name=slippage_bps, type=INT32"`
	Status             string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WriteParquet writes rows as a single snappy-compressed parquet file.
func WriteParquet(w io.Writer, rows []Row) error {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		return fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		pr := &parquetRow{
			ID:                 row.ID,
			Sequence:           int64(row.Sequence),
			Timestamp:          row.Timestamp.Format(time.RFC3339Nano),
			Caller:             row.Caller,
			Payer:              row.Payer,
			Recipient:          row.Recipient,
			FromToken:          row.FromToken,
			ToToken:            row.ToToken,
			AmountIn:           row.AmountIn,
			AmountOut:          row.AmountOut,
			EffectiveAmountOut: row.EffectiveAmountOut,
			Fee:                row.Fee,
			FeeRecipient:       row.FeeRecipient,
			Rate:               row.Rate,
			SlippageBps:        int32(row.SlippageBps),
			Status:             row.Status,
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("audit: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("audit: parquet flush: %w", err)
	}
	return nil
}

// Write encodes rows in the requested format.
func Write(w io.Writer, format string, rows []Row) error {
	switch NormalizeFormat(format) {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatParquet:
		return WriteParquet(w, rows)
	default:
		return fmt.Errorf("audit: unsupported format %q", format)
	}
}

// NormalizeFormat lowercases format and defaults it to csv.
func NormalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		return FormatCSV
	}
	return f
}

// Export collects swaps in [from, to] and writes them to path.
func Export(ctx context.Context, ledger Ledger, format, path string, from, to time.Time) (int, error) {
	format = NormalizeFormat(format)
	if format != FormatCSV && format != FormatParquet {
		return 0, fmt.Errorf("audit: unsupported format %q", format)
	}
	rows, err := Collect(ctx, ledger, from, to)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("audit: create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("audit: create %s: %w", path, err)
	}
	if err := Write(file, format, rows); err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("audit: close %s: %w", path, err)
	}
	return len(rows), nil
}
