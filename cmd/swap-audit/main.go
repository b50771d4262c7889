package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/audit"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/config"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

type exportReport struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	From    string `json:"from"`
	To      string `json:"to"`
	Records int    `json:"records"`
}

func main() {
	configPath := flag.String("config", "", "Path to swapd configuration file")
	database := flag.String("database", "", "Database path or DSN (overrides config)")
	fromFlag := flag.String("from", "", "Start of the export window (RFC3339, default 24h ago)")
	toFlag := flag.String("to", "", "End of the export window (RFC3339, default now)")
	format := flag.String("format", audit.FormatCSV, "Output format: csv or parquet")
	out := flag.String("out", "-", "Output file, or - for stdout")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	var (
		cfg config.Config
		err error
	)
	if strings.TrimSpace(*configPath) != "" {
		cfg, err = config.Load(*configPath)
	} else {
		// The exporter never serves requests, so it does not need a JWT secret.
		os.Setenv("SWAPD_AUTH_DISABLED", "true")
		cfg, err = config.Default()
	}
	if err != nil {
		exit("failed to load config", err)
	}
	if strings.TrimSpace(*database) != "" {
		cfg.DatabasePath = *database
	}

	now := time.Now().UTC()
	to, err := parseTime(*toFlag, now)
	if err != nil {
		exit("invalid --to", err)
	}
	from, err := parseTime(*fromFlag, to.Add(-24*time.Hour))
	if err != nil {
		exit("invalid --from", err)
	}
	if from.After(to) {
		exit("invalid window", fmt.Errorf("--from %s is after --to %s", from.Format(time.RFC3339), to.Format(time.RFC3339)))
	}

	dsn, err := storage.ResolveDSN(cfg.DatabasePath)
	if err != nil {
		exit("failed to resolve database", err)
	}
	store, err := storage.Open(dsn)
	if err != nil {
		exit("failed to open database", err)
	}
	defer store.Close()

	ctx := context.Background()
	rates, err := swapledger.NewStaticRates(cfg.Rates)
	if err != nil {
		exit("failed to parse rates", err)
	}
	ledger, err := swapledger.New(ctx, store, rates, swapledger.Config{
		Address:            common.HexToAddress(cfg.Ledger.Address),
		Owner:              common.HexToAddress(cfg.Ledger.Owner),
		FeeRecipient:       common.HexToAddress(cfg.Ledger.FeeRecipient),
		FeeBps:             cfg.Ledger.FeeBps,
		QuoteTTL:           cfg.Ledger.QuoteTTL.Duration,
		DefaultSlippageBps: cfg.Ledger.DefaultSlippageBps,
	})
	if err != nil {
		exit("failed to open ledger", err)
	}

	if *out == "-" {
		rows, err := audit.Collect(ctx, ledger, from, to)
		if err != nil {
			exit("failed to collect swaps", err)
		}
		if err := audit.Write(os.Stdout, audit.NormalizeFormat(*format), rows); err != nil {
			exit("failed to write export", err)
		}
		return
	}

	records, err := audit.Export(ctx, ledger, *format, *out, from, to)
	if err != nil {
		exit("failed to export swaps", err)
	}
	output, err := json.MarshalIndent(exportReport{
		Path:    *out,
		Format:  audit.NormalizeFormat(*format),
		From:    from.Format(time.RFC3339),
		To:      to.Format(time.RFC3339),
		Records: records,
	}, "", "  ")
	if err != nil {
		exit("failed to encode report", err)
	}
	fmt.Println(string(output))
}

func parseTime(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func exit(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
