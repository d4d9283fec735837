// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	fetchFailuresTotal         *prometheus.CounterVec
	documentsTotal             *prometheus.CounterVec
	discardedTotal             *prometheus.CounterVec
	storeDocuments             prometheus.Gauge
	activeWorkers              prometheus.Gauge
	politenessDelaySeconds     prometheus.Histogram
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
				Name: "wikicrawler_fetch_attempts_total",
				Help: "Total number of upstream fetch attempts, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		fetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikicrawler_fetch_failures_total",
				Help: "Fetches that failed after exhausting every retry, labeled by site.",
			},
			[]string{"site"},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikicrawler_documents_total",
				Help: "Upsert outcomes, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		discardedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikicrawler_discarded_total",
				Help: "Titles dropped before reaching the store, labeled by source and reason.",
			},
			[]string{"source", "reason"},
		)

		storeDocuments = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikicrawler_store_documents",
				Help: "Last observed number of documents in the store.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wikicrawler_active_workers",
				Help: "Number of workers currently processing a title.",
			},
		)

		politenessDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wikicrawler_politeness_wait_seconds",
				Help:    "Histogram of time spent waiting on the politeness limiter.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts a single fetch attempt. No-op until Init is called.
func ObserveFetchAttempt(rawURL string, ok bool) {
	if fetchAttemptsTotal == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	fetchAttemptsTotal.WithLabelValues(SanitizeSite(rawURL), result).Inc()
}

// ObserveFetchExhausted counts a fetch that ran out of retries.
func ObserveFetchExhausted(rawURL string) {
	if fetchFailuresTotal == nil {
		return
	}
	fetchFailuresTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveOutcome increments the per-source outcome counter.
func ObserveOutcome(source, outcome string) {
	if documentsTotal == nil {
		return
	}
	documentsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveDiscard counts a title dropped before the store (fetch_failed, too_short, seen).
func ObserveDiscard(source, reason string) {
	if discardedTotal == nil {
		return
	}
	discardedTotal.WithLabelValues(source, reason).Inc()
}

// SetStoreDocuments records the latest store-wide document count.
func SetStoreDocuments(total int64) {
	if storeDocuments == nil {
		return
	}
	storeDocuments.Set(float64(total))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObservePolitenessDelay records the duration of a politeness wait.
func ObservePolitenessDelay(duration time.Duration) {
	if politenessDelaySeconds == nil {
		return
	}
	politenessDelaySeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
