package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeFile(t, "swapd.yaml", `
listen: ":9090"
auth:
  secret: "s3cret"
oracle:
  interval: 10s
ledger:
  quote_ttl: 2m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9090" {
		t.Fatalf("unexpected listen %q", cfg.ListenAddress)
	}
	if cfg.Oracle.Interval.Duration != 10*time.Second {
		t.Fatalf("unexpected interval %s", cfg.Oracle.Interval)
	}
	if cfg.Ledger.QuoteTTL.Duration != 2*time.Minute {
		t.Fatalf("unexpected quote ttl %s", cfg.Ledger.QuoteTTL)
	}
	if len(cfg.Tokens) != 3 || cfg.Tokens[0].Symbol != "AUTOX" || *cfg.Tokens[0].Decimals != 18 {
		t.Fatalf("expected default tokens, got %+v", cfg.Tokens)
	}
	if cfg.Rates["AUTOX/SHIFT"] != "1.5" {
		t.Fatalf("expected default rate table, got %v", cfg.Rates)
	}
	if len(cfg.Pairs) != 6 {
		t.Fatalf("expected pairs derived from rates, got %d", len(cfg.Pairs))
	}
	if cfg.Ledger.FeeBps != 30 || cfg.Ledger.DefaultSlippageBps != 50 {
		t.Fatalf("unexpected ledger defaults %+v", cfg.Ledger)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "swapd.toml", `
listen = ":7000"
database = "file:swapd?mode=memory"

[auth]
disabled = true

[audit]
schedule = "@daily"
format = "parquet"
window = "12h"

[[tokens]]
address = "0x000000000000000000000000000000000000b001"
symbol = "usdx"
decimals = 6
minters = ["0x000000000000000000000000000000000000c001"]

[tokens.balances]
"0x000000000000000000000000000000000000c002" = "100.5"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7000" || !cfg.Auth.Disabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Audit.Window.Duration != 12*time.Hour || cfg.Audit.Format != "parquet" {
		t.Fatalf("unexpected audit config %+v", cfg.Audit)
	}
	if len(cfg.Tokens) != 1 || *cfg.Tokens[0].Decimals != 6 || !*cfg.Tokens[0].Supported {
		t.Fatalf("unexpected tokens %+v", cfg.Tokens)
	}
	if cfg.Tokens[0].Balances["0x000000000000000000000000000000000000c002"] != "100.5" {
		t.Fatalf("unexpected balances %v", cfg.Tokens[0].Balances)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("SWAPD_DATABASE", "postgres://swap@localhost/swap")
	t.Setenv("SWAPD_LISTEN", ":6000")
	t.Setenv("SWAPD_AUTH_SECRET", "from-env")
	t.Setenv("GOOGLE_API_KEY", "gkey")
	t.Setenv("SWAPD_REDIS_ADDR", "localhost:6379")
	t.Setenv("SWAPD_KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if cfg.DatabasePath != "postgres://swap@localhost/swap" || cfg.ListenAddress != ":6000" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.Auth.Secret != "from-env" || cfg.Advisor.APIKey != "gkey" {
		t.Fatalf("expected secrets from env")
	}
	if cfg.QuoteCache.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.QuoteCache.Redis.Addr)
	}
	if len(cfg.Events.Kafka.Brokers) != 2 || cfg.Events.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Events.Kafka.Brokers)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing secret": "listen: \":1\"\n",
		"bad owner":      "auth: {disabled: true}\nledger: {owner: nope}\n",
		"fee above cap":  "auth: {disabled: true}\nledger: {fee_bps: 2000}\n",
		"bad format":     "auth: {disabled: true}\naudit: {format: xml}\n",
		"dup tokens":     "auth: {disabled: true}\ntokens:\n  - {address: \"0x000000000000000000000000000000000000b001\", symbol: A}\n  - {address: \"0x000000000000000000000000000000000000b002\", symbol: a}\n",
	}
	for name, body := range cases {
		path := writeFile(t, "swapd.yaml", body)
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Fatalf("unexpected duration %s", d)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Fatalf("expected parse error")
	}
}
