package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if fetchAttemptsTotal == nil || cacheEventsTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveFetch(t *testing.T) {
	Init()
	before := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues(OutcomeNotFound))
	ObserveFetch(OutcomeNotFound, 50*time.Millisecond)
	if got := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues(OutcomeNotFound)); got != before+1 {
		t.Errorf("expected not_found attempts to be %f, got %f", before+1, got)
	}
	if val := testutil.CollectAndCount(fetchDurationSeconds); val <= 0 {
		t.Errorf("expected fetch duration to be observed, got %d", val)
	}
}

func TestObserveCacheAndRateLimit(t *testing.T) {
	Init()
	evictions := testutil.ToFloat64(cacheEventsTotal.WithLabelValues(CacheEviction))
	waits := testutil.ToFloat64(rateLimitWaitsTotal)

	ObserveCache(CacheEviction)
	ObserveRateLimitWait()
	ObserveAnalysis("ok")

	if got := testutil.ToFloat64(cacheEventsTotal.WithLabelValues(CacheEviction)); got != evictions+1 {
		t.Errorf("expected eviction count %f, got %f", evictions+1, got)
	}
	if got := testutil.ToFloat64(rateLimitWaitsTotal); got != waits+1 {
		t.Errorf("expected rate limit waits %f, got %f", waits+1, got)
	}
}
