package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.UnmarshalText([]byte(value.Value))
}

// UnmarshalText parses human readable duration strings for TOML and env input.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for swapd.
type Config struct {
	ListenAddress string            `yaml:"listen" toml:"listen"`
	DatabasePath  string            `yaml:"database" toml:"database"`
	Environment   string            `yaml:"environment" toml:"environment"`
	Ledger        LedgerConfig      `yaml:"ledger" toml:"ledger"`
	Tokens        []TokenSeed       `yaml:"tokens" toml:"tokens"`
	Rates         map[string]string `yaml:"rates" toml:"rates"`
	Oracle        OracleConfig      `yaml:"oracle" toml:"oracle"`
	Sources       []Source          `yaml:"sources" toml:"sources"`
	Pairs         []Pair            `yaml:"pairs" toml:"pairs"`
	Auth          AuthConfig        `yaml:"auth" toml:"auth"`
	RateLimit     RateLimitConfig   `yaml:"rate_limit" toml:"rate_limit"`
	Advisor       AdvisorConfig     `yaml:"advisor" toml:"advisor"`
	Events        EventsConfig      `yaml:"events" toml:"events"`
	QuoteCache    QuoteCacheConfig  `yaml:"quote_cache" toml:"quote_cache"`
	Audit         AuditConfig       `yaml:"audit" toml:"audit"`
	Logging       LoggingConfig     `yaml:"logging" toml:"logging"`
}

// LedgerConfig seeds the swap ledger on first start.
type LedgerConfig struct {
	Address            string   `yaml:"address" toml:"address"`
	Owner              string   `yaml:"owner" toml:"owner"`
	FeeRecipient       string   `yaml:"fee_recipient" toml:"fee_recipient"`
	FeeBps             uint32   `yaml:"fee_bps" toml:"fee_bps"`
	DefaultSlippageBps uint32   `yaml:"default_slippage_bps" toml:"default_slippage_bps"`
	QuoteTTL           Duration `yaml:"quote_ttl" toml:"quote_ttl"`
}

// TokenSeed describes a token registered at startup.
type TokenSeed struct {
	Address   string            `yaml:"address" toml:"address"`
	Symbol    string            `yaml:"symbol" toml:"symbol"`
	Name      string            `yaml:"name" toml:"name"`
	Decimals  *uint8            `yaml:"decimals" toml:"decimals"`
	Supported *bool             `yaml:"supported" toml:"supported"`
	Minters   []string          `yaml:"minters" toml:"minters"`
	Balances  map[string]string `yaml:"balances" toml:"balances"`
}

// OracleConfig tunes the aggregation loop.
type OracleConfig struct {
	Interval Duration `yaml:"interval" toml:"interval"`
	MaxAge   Duration `yaml:"max_age" toml:"max_age"`
	MinFeeds int      `yaml:"min_feeds" toml:"min_feeds"`
}

// Source describes an upstream rate feed.
type Source struct {
	Name          string            `yaml:"name" toml:"name"`
	Type          string            `yaml:"type" toml:"type"`
	Endpoint      string            `yaml:"endpoint" toml:"endpoint"`
	APIKey        string            `yaml:"api_key" toml:"api_key"`
	RatePath      string            `yaml:"rate_path" toml:"rate_path"`
	TimestampPath string            `yaml:"timestamp_path" toml:"timestamp_path"`
	Rates         map[string]string `yaml:"rates" toml:"rates"`
}

// Pair identifies a base/quote pair to publish.
type Pair struct {
	Base  string `yaml:"base" toml:"base"`
	Quote string `yaml:"quote" toml:"quote"`
}

// AuthConfig controls caller identity.
type AuthConfig struct {
	Disabled bool     `yaml:"disabled" toml:"disabled"`
	Secret   string   `yaml:"secret" toml:"secret"`
	Issuer   string   `yaml:"issuer" toml:"issuer"`
	Audience string   `yaml:"audience" toml:"audience"`
	Leeway   Duration `yaml:"leeway" toml:"leeway"`
}

// RateLimitConfig throttles clients by remote address.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int `yaml:"burst" toml:"burst"`
}

// AdvisorConfig configures the AI advisory client.
type AdvisorConfig struct {
	APIKey   string   `yaml:"api_key" toml:"api_key"`
	Model    string   `yaml:"model" toml:"model"`
	Endpoint string   `yaml:"endpoint" toml:"endpoint"`
	Timeout  Duration `yaml:"timeout" toml:"timeout"`
}

// EventsConfig controls external event publication.
type EventsConfig struct {
	LogCapacity int         `yaml:"log_capacity" toml:"log_capacity"`
	Kafka       KafkaConfig `yaml:"kafka" toml:"kafka"`
}

// KafkaConfig enables the Kafka event sink when brokers are set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic"`
}

// QuoteCacheConfig selects the issued-quote cache backend.
type QuoteCacheConfig struct {
	Redis RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig enables the redis quote cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

// AuditConfig schedules periodic swap exports.
type AuditConfig struct {
	Schedule  string   `yaml:"schedule" toml:"schedule"`
	OutputDir string   `yaml:"output_dir" toml:"output_dir"`
	Format    string   `yaml:"format" toml:"format"`
	Window    Duration `yaml:"window" toml:"window"`
}

// LoggingConfig controls log verbosity and file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
	Compress   bool   `yaml:"compress" toml:"compress"`
}

// Load reads configuration from the supplied path. Files ending in .toml are
// decoded as TOML, everything else as YAML.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return finalize(cfg)
}

// Default returns a configuration populated only from defaults and the
// environment.
func Default() (Config, error) {
	return finalize(Config{})
}

func finalize(cfg Config) (Config, error) {
	applyDefaults(&cfg)
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultLedgerAddress is the ledger account used when none is configured.
const DefaultLedgerAddress = "0x00000000000000000000000000000000005a9001"

// DefaultOwnerAddress is the development owner used when none is configured.
const DefaultOwnerAddress = "0x00000000000000000000000000000000000a0001"

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":5000"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/var/data/swapd.sqlite"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Ledger.Address == "" {
		cfg.Ledger.Address = DefaultLedgerAddress
	}
	if cfg.Ledger.Owner == "" {
		cfg.Ledger.Owner = DefaultOwnerAddress
	}
	if cfg.Ledger.FeeBps == 0 {
		cfg.Ledger.FeeBps = 30
	}
	if cfg.Ledger.DefaultSlippageBps == 0 {
		cfg.Ledger.DefaultSlippageBps = 50
	}
	if cfg.Ledger.QuoteTTL.Duration == 0 {
		cfg.Ledger.QuoteTTL.Duration = 5 * time.Minute
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = []TokenSeed{
			{Address: "0x000000000000000000000000000000000000a001", Symbol: "AUTOX", Name: "AutoX Token"},
			{Address: "0x000000000000000000000000000000000000a002", Symbol: "SHIFT", Name: "Shift Token"},
			{Address: "0x000000000000000000000000000000000000a003", Symbol: "MATIC", Name: "Polygon"},
		}
	}
	for i := range cfg.Tokens {
		if cfg.Tokens[i].Decimals == nil {
			decimals := uint8(18)
			cfg.Tokens[i].Decimals = &decimals
		}
		if cfg.Tokens[i].Supported == nil {
			supported := true
			cfg.Tokens[i].Supported = &supported
		}
	}
	if len(cfg.Rates) == 0 {
		cfg.Rates = map[string]string{
			"AUTOX/SHIFT": "1.5",
			"AUTOX/MATIC": "1.0",
			"SHIFT/AUTOX": "0.6667",
			"SHIFT/MATIC": "0.6667",
			"MATIC/AUTOX": "1.0",
			"MATIC/SHIFT": "1.5",
		}
	}
	if cfg.Oracle.Interval.Duration == 0 {
		cfg.Oracle.Interval.Duration = 30 * time.Second
	}
	if cfg.Oracle.MaxAge.Duration == 0 {
		cfg.Oracle.MaxAge.Duration = 2 * time.Minute
	}
	if cfg.Oracle.MinFeeds <= 0 {
		cfg.Oracle.MinFeeds = 1
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = []Source{{Name: "static", Type: "static"}}
	}
	if len(cfg.Pairs) == 0 {
		for pair := range cfg.Rates {
			base, quote, _ := strings.Cut(pair, "/")
			cfg.Pairs = append(cfg.Pairs, Pair{Base: base, Quote: quote})
		}
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "autoxshift"
	}
	if cfg.Auth.Leeway.Duration == 0 {
		cfg.Auth.Leeway.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 100
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = "gemini-pro"
	}
	if cfg.Advisor.Endpoint == "" {
		cfg.Advisor.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Advisor.Timeout.Duration == 0 {
		cfg.Advisor.Timeout.Duration = 15 * time.Second
	}
	if cfg.Events.LogCapacity <= 0 {
		cfg.Events.LogCapacity = 1024
	}
	if cfg.Events.Kafka.Topic == "" {
		cfg.Events.Kafka.Topic = "autoxshift.ledger"
	}
	if cfg.QuoteCache.Redis.Prefix == "" {
		cfg.QuoteCache.Redis.Prefix = "autoxshift:quote:"
	}
	if cfg.Audit.Format == "" {
		cfg.Audit.Format = "csv"
	}
	if cfg.Audit.Window.Duration == 0 {
		cfg.Audit.Window.Duration = 24 * time.Hour
	}
	if cfg.Audit.OutputDir == "" {
		cfg.Audit.OutputDir = "audit"
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("SWAPD_DATABASE")); v != "" {
		cfg.DatabasePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPD_LISTEN")); v != "" {
		cfg.ListenAddress = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPD_ENV")); v != "" {
		cfg.Environment = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPD_AUTH_SECRET")); v != "" {
		cfg.Auth.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPD_AUTH_DISABLED")); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SWAPD_AUTH_DISABLED: %w", err)
		}
		cfg.Auth.Disabled = disabled
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); v != "" {
		cfg.Advisor.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPD_REDIS_ADDR")); v != "" {
		cfg.QuoteCache.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPD_KAFKA_BROKERS")); v != "" {
		var brokers []string
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
		cfg.Events.Kafka.Brokers = brokers
	}
	return nil
}

func validate(cfg Config) error {
	for name, raw := range map[string]string{
		"ledger.address": cfg.Ledger.Address,
		"ledger.owner":   cfg.Ledger.Owner,
	} {
		if !common.IsHexAddress(raw) || common.HexToAddress(raw) == (common.Address{}) {
			return fmt.Errorf("%s must be a non-zero hex address", name)
		}
	}
	if cfg.Ledger.FeeRecipient != "" && !common.IsHexAddress(cfg.Ledger.FeeRecipient) {
		return fmt.Errorf("ledger.fee_recipient must be a hex address")
	}
	if cfg.Ledger.FeeBps > 1000 {
		return fmt.Errorf("ledger.fee_bps must not exceed 1000")
	}
	if cfg.Ledger.DefaultSlippageBps > 10_000 {
		return fmt.Errorf("ledger.default_slippage_bps must not exceed 10000")
	}
	seen := make(map[string]struct{}, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		if !common.IsHexAddress(tok.Address) {
			return fmt.Errorf("token %s: address must be hex", tok.Symbol)
		}
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if symbol == "" {
			return fmt.Errorf("token %s: symbol required", tok.Address)
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("token %s configured twice", symbol)
		}
		seen[symbol] = struct{}{}
		for _, minter := range tok.Minters {
			if !common.IsHexAddress(minter) {
				return fmt.Errorf("token %s: minter %q must be hex", symbol, minter)
			}
		}
		for holder := range tok.Balances {
			if !common.IsHexAddress(holder) {
				return fmt.Errorf("token %s: balance holder %q must be hex", symbol, holder)
			}
		}
	}
	if len(cfg.Pairs) == 0 {
		return fmt.Errorf("at least one pair must be configured")
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one oracle source must be configured")
	}
	if !cfg.Auth.Disabled && strings.TrimSpace(cfg.Auth.Secret) == "" {
		return fmt.Errorf("auth.secret is required unless auth.disabled is set")
	}
	switch strings.ToLower(cfg.Audit.Format) {
	case "csv", "parquet":
	default:
		return fmt.Errorf("audit.format must be csv or parquet")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must be positive")
	}
	return nil
}
