package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autoxshift"

var (
	swapLedgerOnce sync.Once
	swapLedgerReg  *SwapLedgerMetrics

	httpMetricsOnce sync.Once
	httpRegistry    *HTTPMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics
)

// SwapLedgerMetrics captures ledger operation outcomes and settlement volume.
type SwapLedgerMetrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	rateFallbacks *prometheus.CounterVec
	volume        *prometheus.CounterVec
	paused        prometheus.Gauge
}

// SwapLedger returns the singleton metrics registry for ledger operations.
func SwapLedger() *SwapLedgerMetrics {
	swapLedgerOnce.Do(func() {
		swapLedgerReg = &SwapLedgerMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "requests_total",
				Help:      "Count of ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "errors_total",
				Help:      "Count of ledger failures segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			rateFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "rate_fallbacks_total",
				Help:      "Count of pricing requests that fell back to the unit rate.",
			}, []string{"pair"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "swap_volume_total",
				Help:      "Cumulative settled input volume in whole token units.",
			}, []string{"token"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "paused",
				Help:      "Indicates whether swap execution is paused (1) or active (0).",
			}),
		}
		prometheus.MustRegister(
			swapLedgerReg.requests,
			swapLedgerReg.latency,
			swapLedgerReg.errors,
			swapLedgerReg.rateFallbacks,
			swapLedgerReg.volume,
			swapLedgerReg.paused,
		)
	})
	return swapLedgerReg
}

// Observe records the execution metrics for a ledger operation. reason should
// be a low-cardinality label describing the failure class.
func (m *SwapLedgerMetrics) Observe(operation string, duration time.Duration, reason string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if reason = strings.TrimSpace(reason); reason != "" {
		outcome = "error"
		m.errors.WithLabelValues(op, reason).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordRateFallback counts a pricing request served with the unit rate.
func (m *SwapLedgerMetrics) RecordRateFallback(pair string) {
	if m == nil {
		return
	}
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		pair = "unknown"
	}
	m.rateFallbacks.WithLabelValues(pair).Inc()
}

// RecordSwapVolume adds settled input volume for the supplied token symbol.
func (m *SwapLedgerMetrics) RecordSwapVolume(token string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		token = "unknown"
	}
	m.volume.WithLabelValues(token).Add(amount)
}

// SetPaused toggles the paused gauge.
func (m *SwapLedgerMetrics) SetPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

// HTTPMetrics tracks the swapd HTTP surface.
type HTTPMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// HTTP returns the lazily-initialised HTTP metrics registry.
func HTTP() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &HTTPMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Count of HTTP requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.throttles)
	})
	return httpRegistry
}

// Observe records a completed HTTP request.
func (m *HTTPMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route = strings.TrimSpace(route); route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, statusLabel(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the route.
func (m *HTTPMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route = strings.TrimSpace(route); route == "" {
		route = "unmatched"
	}
	m.throttles.WithLabelValues(route).Inc()
}

// OracleMetrics captures oracle polling health.
type OracleMetrics struct {
	fetches   *prometheus.CounterVec
	snapshots *prometheus.CounterVec
	age       *prometheus.GaugeVec
}

// Oracle returns the oracle metrics registry.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "fetches_total",
				Help:      "Rate source fetches segmented by source and outcome.",
			}, []string{"source", "outcome"}),
			snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "snapshots_total",
				Help:      "Aggregated rate snapshots persisted per pair.",
			}, []string{"pair"}),
			age: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "oracle",
				Name:      "snapshot_age_seconds",
				Help:      "Age of the newest sample contributing to the latest snapshot.",
			}, []string{"pair"}),
		}
		prometheus.MustRegister(oracleRegistry.fetches, oracleRegistry.snapshots, oracleRegistry.age)
	})
	return oracleRegistry
}

// RecordFetch counts a source fetch attempt.
func (m *OracleMetrics) RecordFetch(source string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(strings.TrimSpace(source), outcome).Inc()
}

// RecordSnapshot counts a persisted snapshot and its freshness.
func (m *OracleMetrics) RecordSnapshot(pair string, age time.Duration) {
	if m == nil {
		return
	}
	pair = strings.ToUpper(strings.TrimSpace(pair))
	m.snapshots.WithLabelValues(pair).Inc()
	m.age.WithLabelValues(pair).Set(age.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
