package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSwapLedgerObserveSplitsOutcomes(t *testing.T) {
	m := SwapLedger()
	m.Observe("metrics_test_execute", time.Millisecond, "")
	m.Observe("metrics_test_execute", time.Millisecond, "slippage_exceeded")
	m.Observe("metrics_test_execute", time.Millisecond, "slippage_exceeded")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("metrics_test_execute", "success")); got != 1 {
		t.Fatalf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("metrics_test_execute", "error")); got != 2 {
		t.Fatalf("error count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("metrics_test_execute", "slippage_exceeded")); got != 2 {
		t.Fatalf("reason count = %v, want 2", got)
	}
}

func TestSwapLedgerFallbackVolumeAndPause(t *testing.T) {
	m := SwapLedger()
	m.RecordRateFallback(" autox/zzz ")
	if got := testutil.ToFloat64(m.rateFallbacks.WithLabelValues("AUTOX/ZZZ")); got != 1 {
		t.Fatalf("fallbacks = %v, want 1", got)
	}

	m.RecordSwapVolume("mtv", 2.5)
	m.RecordSwapVolume("mtv", 0)
	m.RecordSwapVolume("mtv", -1)
	if got := testutil.ToFloat64(m.volume.WithLabelValues("MTV")); got != 2.5 {
		t.Fatalf("volume = %v, want 2.5", got)
	}

	m.SetPaused(true)
	if got := testutil.ToFloat64(m.paused); got != 1 {
		t.Fatalf("paused gauge = %v, want 1", got)
	}
	m.SetPaused(false)
	if got := testutil.ToFloat64(m.paused); got != 0 {
		t.Fatalf("paused gauge = %v, want 0", got)
	}
}

func TestHTTPMetricsBucketsStatus(t *testing.T) {
	m := HTTP()
	m.Observe("/metrics-test/{id}", 201, time.Millisecond)
	m.Observe("/metrics-test/{id}", 404, time.Millisecond)
	m.Observe("/metrics-test/{id}", 503, time.Millisecond)
	m.RecordThrottle("")

	for _, status := range []string{"2xx", "4xx", "5xx"} {
		if got := testutil.ToFloat64(m.requests.WithLabelValues("/metrics-test/{id}", status)); got != 1 {
			t.Fatalf("%s count = %v, want 1", status, got)
		}
	}
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unmatched")); got < 1 {
		t.Fatalf("expected unmatched throttle to be counted")
	}
}

func TestOracleAndEventMetrics(t *testing.T) {
	o := Oracle()
	o.RecordFetch("metrics-test-source", nil)
	o.RecordFetch("metrics-test-source", errors.New("boom"))
	if got := testutil.ToFloat64(o.fetches.WithLabelValues("metrics-test-source", "error")); got != 1 {
		t.Fatalf("fetch errors = %v, want 1", got)
	}
	o.RecordSnapshot("mt/pair", 3*time.Second)
	if got := testutil.ToFloat64(o.age.WithLabelValues("MT/PAIR")); got != 3 {
		t.Fatalf("snapshot age = %v, want 3", got)
	}

	e := Events()
	e.RecordPublished("", "metrics.test")
	e.RecordDropped("kafka", "")
	if got := testutil.ToFloat64(e.published.WithLabelValues("unknown", "metrics.test")); got != 1 {
		t.Fatalf("published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.dropped.WithLabelValues("kafka", "unknown")); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}

	var nilMetrics *SwapLedgerMetrics
	nilMetrics.Observe("noop", time.Second, "x")
}
