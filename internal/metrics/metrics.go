// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Cache events.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheEviction = "eviction"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchDurationSeconds       prometheus.Histogram
	rateLimitWaitsTotal        prometheus.Counter
	cacheEventsTotal           *prometheus.CounterVec
	analysesTotal              *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gplay_fetch_attempts_total",
				Help: "Total storefront fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gplay_fetch_duration_seconds",
				Help:    "Histogram of single storefront fetch attempt latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		rateLimitWaitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gplay_rate_limit_waits_total",
				Help: "Total waits taken after a throttling response.",
			},
		)

		cacheEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gplay_cache_events_total",
				Help: "Total app data cache events, labeled by event.",
			},
			[]string{"event"},
		)

		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gplay_analyses_total",
				Help: "Total scraper calls, labeled by result kind.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gplay_http_requests_total",
				Help: "Total number of API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gplay_http_request_duration_seconds",
				Help:    "Histogram of API request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(outcome string, duration time.Duration) {
	Init()
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitWait counts a backoff taken after throttling.
func ObserveRateLimitWait() {
	Init()
	rateLimitWaitsTotal.Inc()
}

// ObserveCache counts a cache hit, miss or eviction.
func ObserveCache(event string) {
	Init()
	cacheEventsTotal.WithLabelValues(event).Inc()
}

// ObserveAnalysis counts a finished scraper call by result ("ok" or an error kind).
func ObserveAnalysis(result string) {
	Init()
	analysesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
