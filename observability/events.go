package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking ledger event delivery.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of ledger events delivered segmented by sink and type.",
			}, []string{"sink", "type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Count of ledger events a sink failed to deliver.",
			}, []string{"sink", "type"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordPublished increments the delivered counter for the sink and event type.
func (m *eventMetrics) RecordPublished(sink, eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(sink), normalizeLabel(eventType)).Inc()
}

// RecordDropped increments the failure counter for the sink and event type.
func (m *eventMetrics) RecordDropped(sink, eventType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(sink), normalizeLabel(eventType)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
