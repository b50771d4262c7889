package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/observability/logging"
	telemetry "github.com/ayushsaklani-min/AutoXshift/observability/otel"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/adapters"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/advisor"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/audit"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/bootstrap"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/config"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/eventsink"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/oracle"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/quotes"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/server"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

const idempotencyRetention = 24 * time.Hour

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var (
		cfgPath  string
		envFile  string
		certFile string
		keyFile  string
	)
	flag.StringVar(&cfgPath, "config", "", "path to swapd configuration file (yaml or toml)")
	flag.StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before configuration")
	flag.StringVar(&certFile, "tls-cert", "", "TLS certificate file")
	flag.StringVar(&keyFile, "tls-key", "", "TLS key file")
	flag.Parse()

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("swapd: load %s: %v", envFile, err)
	}

	var (
		cfg config.Config
		err error
	)
	if strings.TrimSpace(cfgPath) != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.Default()
	}
	if err != nil {
		log.Fatalf("swapd: load config: %v", err)
	}

	logger, logCloser := logging.SetupWithOptions("swapd", cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "swapd",
		Environment: cfg.Environment,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     true,
		Traces:      true,
		Disabled:    otlpEndpoint == "",
	})
	if err != nil {
		fatal(logger, "init telemetry", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := storage.ResolveDSN(cfg.DatabasePath)
	if err != nil {
		fatal(logger, "resolve storage DSN", err)
	}
	store, err := storage.Open(dsn)
	if err != nil {
		fatal(logger, "open storage", err)
	}
	defer store.Close()

	eventLog := events.NewLog(cfg.Events.LogCapacity)

	static, err := swapledger.NewStaticRates(cfg.Rates)
	if err != nil {
		fatal(logger, "static rates", err)
	}
	rates := oracle.NewSnapshotRates(store, cfg.Oracle.MaxAge.Duration, static)
	ledger, err := swapledger.New(ctx, store, rates, swapledger.Config{
		Address:            common.HexToAddress(cfg.Ledger.Address),
		Owner:              common.HexToAddress(cfg.Ledger.Owner),
		FeeRecipient:       common.HexToAddress(cfg.Ledger.FeeRecipient),
		FeeBps:             cfg.Ledger.FeeBps,
		QuoteTTL:           cfg.Ledger.QuoteTTL.Duration,
		DefaultSlippageBps: cfg.Ledger.DefaultSlippageBps,
	}, swapledger.WithEmitter(eventLog), swapledger.WithLogger(logger))
	if err != nil {
		fatal(logger, "open ledger", err)
	}
	if _, err := bootstrap.Apply(ctx, ledger, cfg.Tokens, logger); err != nil {
		fatal(logger, "bootstrap ledger", err)
	}

	registry := adapters.NewRegistry()
	registry.Rates = cfg.Rates
	sources, err := registry.BuildAll(cfg.Sources)
	if err != nil {
		fatal(logger, "build oracle sources", err)
	}
	pairs := make([]oracle.Pair, 0, len(cfg.Pairs))
	for _, pair := range cfg.Pairs {
		pairs = append(pairs, oracle.Pair{Base: pair.Base, Quote: pair.Quote})
	}
	mgr, err := oracle.New(store, sources, pairs, cfg.Oracle.Interval.Duration, cfg.Oracle.MaxAge.Duration, cfg.Oracle.MinFeeds,
		oracle.WithLogger(logger), oracle.WithPublisher(oracle.EmitterPublisher{Emitter: eventLog}))
	if err != nil {
		fatal(logger, "oracle manager", err)
	}
	go func() {
		if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("oracle manager stopped", "error", err)
		}
	}()

	if len(cfg.Events.Kafka.Brokers) > 0 {
		writer, err := eventsink.NewWriter(eventsink.Config{Brokers: cfg.Events.Kafka.Brokers, Topic: cfg.Events.Kafka.Topic})
		if err != nil {
			fatal(logger, "kafka writer", err)
		}
		sink := eventsink.New(writer, logger)
		go func() {
			if err := sink.Run(ctx, eventLog); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("event sink stopped", "error", err)
			}
		}()
	}

	scheduler, err := audit.NewScheduler(audit.SchedulerConfig{
		Schedule:  cfg.Audit.Schedule,
		OutputDir: cfg.Audit.OutputDir,
		Format:    cfg.Audit.Format,
		Window:    cfg.Audit.Window.Duration,
	}, ledger, store, logger)
	if err != nil {
		fatal(logger, "audit scheduler", err)
	}
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("audit scheduler stopped", "error", err)
		}
	}()
	go pruneIdempotency(ctx, store, logger)

	var quoteCache quotes.Cache = quotes.NewMemory(time.Now)
	if addr := strings.TrimSpace(cfg.QuoteCache.Redis.Addr); addr != "" {
		redisCache := quotes.NewRedis(addr, cfg.QuoteCache.Redis.Password, cfg.QuoteCache.Redis.DB, cfg.QuoteCache.Redis.Prefix)
		if err := redisCache.Ping(ctx); err != nil {
			fatal(logger, "redis quote cache", err)
		}
		quoteCache = redisCache
	}
	defer quoteCache.Close()

	adv := advisor.New(advisor.Config{
		APIKey:   cfg.Advisor.APIKey,
		Model:    cfg.Advisor.Model,
		Endpoint: cfg.Advisor.Endpoint,
		Timeout:  cfg.Advisor.Timeout.Duration,
	}, advisor.WithLogger(logger))

	auth, err := server.NewAuthenticator(server.AuthConfig{
		Disabled: cfg.Auth.Disabled,
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway.Duration,
	}, logger)
	if err != nil {
		fatal(logger, "authenticator", err)
	}
	if cfg.Auth.Disabled {
		logger.Warn("caller authentication disabled; trusting " + server.CallerHeader)
	}

	srv, err := server.New(server.Config{
		ListenAddress:     cfg.ListenAddress,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		Version:           version,
		TLS:               server.TLSConfig{CertFile: certFile, KeyFile: keyFile},
	}, server.Deps{
		Ledger:  ledger,
		Storage: store,
		Quotes:  quoteCache,
		Advisor: adv,
		Events:  eventLog,
		Auth:    auth,
		Logger:  logger,
	})
	if err != nil {
		fatal(logger, "http server", err)
	}
	if err := srv.Run(ctx); err != nil {
		fatal(logger, "http server", err)
	}
	logger.Info("swapd stopped")
}

func pruneIdempotency(ctx context.Context, store *storage.Storage, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := store.PruneIdempotency(ctx, now.Add(-idempotencyRetention)); err != nil {
				logger.Warn("prune idempotency keys", "error", err)
			} else if n > 0 {
				logger.Info("pruned idempotency keys", "count", n)
			}
		}
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
