package swapledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
	"github.com/ayushsaklani-min/AutoXshift/observability"
)

// Config seeds a fresh ledger. Persisted state wins over Config on restart.
type Config struct {
	// Address is the ledger's own account. It must hold the minter role on
	// both legs of every swap.
	Address            common.Address
	Owner              common.Address
	FeeRecipient       common.Address
	FeeBps             uint32
	QuoteTTL           time.Duration
	DefaultSlippageBps uint32
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for deadlines and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithEmitter registers the event emitter notified after each commit.
func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) {
		if emitter != nil {
			l.emitter = emitter
		}
	}
}

// WithLogger overrides the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Ledger is the authoritative swap settlement state machine. Mutations are
// serialised and each one runs inside a single Store transaction.
type Ledger struct {
	mu                 sync.Mutex
	address            common.Address
	store              Store
	rates              RateSource
	clock              func() time.Time
	quoteTTL           time.Duration
	defaultSlippageBps uint32
	emitter            events.Emitter
	metrics            *observability.SwapLedgerMetrics
	tracer             trace.Tracer
	logger             *slog.Logger
}

// New opens a ledger over store, initialising owner state when absent.
func New(ctx context.Context, store Store, rates RateSource, cfg Config, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("swapledger: store required")
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("swapledger: ledger address required: %w", ErrInvalidAddress)
	}
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("swapledger: owner required: %w", ErrInvalidAddress)
	}
	if cfg.FeeRecipient == (common.Address{}) {
		cfg.FeeRecipient = cfg.Owner
	}
	if cfg.FeeBps == 0 {
		cfg.FeeBps = DefaultFeeBasisPoints
	}
	if cfg.FeeBps > MaxFeeBasisPoints {
		return nil, fmt.Errorf("swapledger: fee %d bps above cap: %w", cfg.FeeBps, ErrInvalidAmount)
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultQuoteTTL
	}
	if cfg.DefaultSlippageBps == 0 {
		cfg.DefaultSlippageBps = DefaultSlippageBasisPoints
	}
	if cfg.DefaultSlippageBps > bpsDenominator {
		return nil, fmt.Errorf("swapledger: slippage %d bps above 100%%: %w", cfg.DefaultSlippageBps, ErrInvalidAmount)
	}
	if rates == nil {
		rates = DefaultStaticRates()
	}
	l := &Ledger{
		address:            cfg.Address,
		store:              store,
		rates:              rates,
		clock:              time.Now,
		quoteTTL:           cfg.QuoteTTL,
		defaultSlippageBps: cfg.DefaultSlippageBps,
		emitter:            events.NoopEmitter{},
		metrics:            observability.SwapLedger(),
		tracer:             otel.Tracer("swapledger"),
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.logger = l.logger.With(slog.String("component", "swapledger"))

	var paused bool
	err := l.store.Update(ctx, func(s Storage) error {
		v := &view{s: s}
		st, ok, err := v.state()
		if err != nil {
			return err
		}
		if ok {
			paused = st.Paused
			return nil
		}
		return v.putState(storedState{
			Owner:        cfg.Owner,
			FeeRecipient: cfg.FeeRecipient,
			FeeBps:       cfg.FeeBps,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("swapledger: initialise state: %w", err)
	}
	l.metrics.SetPaused(paused)
	return l, nil
}

// Address returns the ledger's own account.
func (l *Ledger) Address() common.Address {
	if l == nil {
		return common.Address{}
	}
	return l.address
}

// QuoteTTL returns the advisory quote validity window.
func (l *Ledger) QuoteTTL() time.Duration {
	return l.quoteTTL
}

func (l *Ledger) now() time.Time {
	return l.clock().UTC()
}

// start opens a span for op and returns a finish func that records the span
// status and metrics for the resulting error.
func (l *Ledger) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := l.tracer.Start(ctx, "swapledger."+op, trace.WithAttributes(attrs...))
	began := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		l.metrics.Observe(op, time.Since(began), ErrorKind(err))
	}
}

// update runs fn under the ledger mutex inside one store transaction and
// emits queued events after a successful commit.
func (l *Ledger) update(ctx context.Context, fn func(v *view) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateLocked(ctx, fn)
}

func (l *Ledger) updateLocked(ctx context.Context, fn func(v *view) error) error {
	var pending []events.Event
	err := l.store.Update(ctx, func(s Storage) error {
		v := &view{s: s}
		if err := fn(v); err != nil {
			return err
		}
		pending = v.pending
		return nil
	})
	if err != nil {
		return err
	}
	for _, ev := range pending {
		l.emitter.Emit(ev)
	}
	return nil
}

func (l *Ledger) read(ctx context.Context, fn func(v *view) error) error {
	return l.store.View(ctx, func(s Storage) error {
		return fn(&view{s: s})
	})
}

// requireOwner loads the ledger state and checks that caller owns the ledger.
func requireOwner(v *view, caller common.Address) (storedState, error) {
	st, err := v.mustState()
	if err != nil {
		return storedState{}, err
	}
	if caller == (common.Address{}) || caller != st.Owner {
		return storedState{}, ErrUnauthorized
	}
	return st, nil
}

func isValidationError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrUnsupportedToken, ErrInvalidAmount, ErrInvalidAddress,
		ErrInsufficientFunds, ErrInsufficientAllowance, ErrDeadlineExpired,
		ErrSlippageExceeded, ErrSystemPaused, ErrNotFound, ErrTokenExists, ErrInvalidToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
