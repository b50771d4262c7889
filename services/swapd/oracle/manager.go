package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ayushsaklani-min/AutoXshift/observability"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

// Quote is a single upstream observation for a pair.
type Quote struct {
	Rate      *big.Rat
	Timestamp time.Time
}

// Clone returns a deep copy of the quote.
func (q Quote) Clone() Quote {
	out := Quote{Timestamp: q.Timestamp}
	if q.Rate != nil {
		out.Rate = new(big.Rat).Set(q.Rate)
	}
	return out
}

// Source resolves a price quote for a currency pair.
type Source interface {
	Name() string
	Fetch(ctx context.Context, base, quote string) (Quote, error)
}

// SnapshotStore persists oracle samples and aggregates.
type SnapshotStore interface {
	RecordSample(ctx context.Context, base, quote, source, rate string, observed, recorded time.Time) error
	RecordSnapshot(ctx context.Context, base, quote, median string, feeders []string, proofID string, ts time.Time) error
	LatestSnapshot(ctx context.Context, base, quote string) (storage.Snapshot, error)
}

// Publisher receives every aggregated update.
type Publisher interface {
	PublishOracleUpdate(ctx context.Context, update Update) error
}

// Update models an aggregated median for a pair.
type Update struct {
	Base    string
	Quote   string
	Median  string
	Feeders []string
	ProofID string
	Time    time.Time
}

// Pair identifies a base/quote pair.
type Pair struct {
	Base  string
	Quote string
}

// ErrInsufficientFeeds is returned when fewer than the configured minimum
// number of sources produced a usable quote.
var ErrInsufficientFeeds = errors.New("insufficient oracle feeds")

// Manager orchestrates periodic aggregation across configured sources.
type Manager struct {
	logger    *slog.Logger
	store     SnapshotStore
	sources   []Source
	pairs     []Pair
	minFeeds  int
	maxAge    time.Duration
	interval  time.Duration
	publisher Publisher
	clock     func() time.Time
	once      sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithPublisher overrides the default publisher.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// New constructs a manager instance.
func New(store SnapshotStore, sources []Source, pairs []Pair, interval, maxAge time.Duration, minFeeds int, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("storage required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source required")
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one pair required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	if minFeeds <= 0 {
		minFeeds = 1
	}
	mgr := &Manager{
		logger:   slog.Default(),
		store:    store,
		sources:  append([]Source{}, sources...),
		pairs:    append([]Pair{}, pairs...),
		interval: interval,
		maxAge:   maxAge,
		minFeeds: minFeeds,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	if mgr.publisher == nil {
		mgr.publisher = PublisherFunc(func(context.Context, Update) error { return nil })
	}
	if mgr.logger == nil {
		mgr.logger = slog.Default()
	}
	if mgr.clock == nil {
		mgr.clock = time.Now
	}
	return mgr, nil
}

// MaxAge reports how long a snapshot stays fresh.
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Run blocks, periodically polling upstream feeds until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("manager not configured")
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.once.Do(func() {
		m.logger.Info("oracle manager started", "sources", len(m.sources), "pairs", len(m.pairs))
	})
	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("oracle tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick performs a single aggregation cycle across all configured pairs. A
// failing pair does not prevent the remaining pairs from being processed.
func (m *Manager) Tick(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("manager not configured")
	}
	var errs []error
	for _, pair := range m.pairs {
		if err := m.processPair(ctx, pair); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) processPair(ctx context.Context, pair Pair) error {
	base := strings.ToUpper(strings.TrimSpace(pair.Base))
	quote := strings.ToUpper(strings.TrimSpace(pair.Quote))
	if base == "" || quote == "" {
		return fmt.Errorf("invalid pair configuration")
	}
	metrics := observability.Oracle()
	now := m.clock()
	quotes := make([]Quote, 0, len(m.sources))
	feeders := make([]string, 0, len(m.sources))
	var oldest time.Time
	for _, src := range m.sources {
		if src == nil {
			continue
		}
		quoteOut, err := src.Fetch(ctx, base, quote)
		metrics.RecordFetch(src.Name(), err)
		if err != nil {
			m.logger.Warn("oracle source failed", "source", src.Name(), "pair", storage.PairKey(base, quote), "error", err)
			continue
		}
		if quoteOut.Rate == nil || quoteOut.Rate.Sign() <= 0 {
			m.logger.Warn("oracle source returned invalid rate", "source", src.Name())
			continue
		}
		if quoteOut.Timestamp.IsZero() {
			quoteOut.Timestamp = now
		}
		if quoteOut.Timestamp.After(now.Add(5 * time.Second)) {
			m.logger.Warn("oracle source produced future timestamp", "source", src.Name())
			continue
		}
		if quoteOut.Timestamp.Before(now.Add(-m.maxAge)) {
			m.logger.Warn("oracle source quote expired", "source", src.Name())
			continue
		}
		feeders = append(feeders, src.Name())
		quotes = append(quotes, quoteOut.Clone())
		if oldest.IsZero() || quoteOut.Timestamp.Before(oldest) {
			oldest = quoteOut.Timestamp
		}
		if err := m.store.RecordSample(ctx, base, quote, src.Name(), quoteOut.Rate.FloatString(18), quoteOut.Timestamp, now); err != nil {
			m.logger.Warn("record oracle sample", "error", err)
		}
	}
	if len(quotes) < m.minFeeds {
		return fmt.Errorf("%w for %s/%s", ErrInsufficientFeeds, base, quote)
	}
	median := computeMedian(quotes)
	if median == nil || median.Sign() <= 0 {
		return fmt.Errorf("median computation failed for %s/%s", base, quote)
	}
	proof := proofID(base, quote, feeders, now)
	medianStr := median.FloatString(18)
	if err := m.store.RecordSnapshot(ctx, base, quote, medianStr, feeders, proof, now); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	metrics.RecordSnapshot(storage.PairKey(base, quote), now.Sub(oldest))
	update := Update{Base: base, Quote: quote, Median: medianStr, Feeders: feeders, ProofID: proof, Time: now}
	if err := m.publisher.PublishOracleUpdate(ctx, update); err != nil {
		return fmt.Errorf("publish update: %w", err)
	}
	return nil
}

func computeMedian(quotes []Quote) *big.Rat {
	if len(quotes) == 0 {
		return nil
	}
	sorted := make([]*big.Rat, 0, len(quotes))
	for _, q := range quotes {
		if q.Rate == nil {
			continue
		}
		sorted = append(sorted, new(big.Rat).Set(q.Rate))
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return new(big.Rat).Set(sorted[mid])
	}
	sum := new(big.Rat).Add(sorted[mid-1], sorted[mid])
	return sum.Quo(sum, big.NewRat(2, 1))
}

func proofID(base, quote string, feeders []string, ts time.Time) string {
	digest := sha256.New()
	digest.Write([]byte(strings.ToUpper(strings.TrimSpace(base))))
	digest.Write([]byte("/"))
	digest.Write([]byte(strings.ToUpper(strings.TrimSpace(quote))))
	digest.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	sorted := append([]string{}, feeders...)
	sort.Strings(sorted)
	for _, f := range sorted {
		digest.Write([]byte(strings.ToLower(strings.TrimSpace(f))))
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// PublisherFunc adapts ordinary functions to Publisher.
type PublisherFunc func(ctx context.Context, update Update) error

// PublishOracleUpdate implements Publisher.
func (f PublisherFunc) PublishOracleUpdate(ctx context.Context, update Update) error {
	if f == nil {
		return nil
	}
	return f(ctx, update)
}
