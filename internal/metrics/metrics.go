// Package metrics exposes Prometheus collectors for the page monitor.
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

// Fetch result labels.
const (
	ResultAvailable   = "available"
	ResultUnavailable = "unavailable"
)

// Notification kinds and delivery statuses.
const (
	NotificationAvailable = "available"
	NotificationChange    = "change"
	StatusSent            = "sent"
	StatusFailed          = "failed"
)

var (
	pagewatchFetchesTotal         *prometheus.CounterVec
	pagewatchFetchDurationSeconds *prometheus.HistogramVec
	pagewatchChangesTotal         prometheus.Counter
	pagewatchNotificationsTotal   *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagewatchFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagewatch_fetches_total",
				Help: "Total number of page fetches, labeled by site and result.",
			},
			[]string{"site", "result"},
		)

		pagewatchFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagewatch_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		pagewatchChangesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagewatch_changes_total",
				Help: "Total number of change records written.",
			},
		)

		pagewatchNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagewatch_notifications_total",
				Help: "Total number of notifications attempted, labeled by kind and status.",
			},
			[]string{"kind", "status"},
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

// ObserveFetch counts a fetch and records its latency when known.
func ObserveFetch(site string, result string, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	pagewatchFetchesTotal.WithLabelValues(sanitizedSite, result).Inc()
	if duration > 0 {
		pagewatchFetchDurationSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
	}
}

// ObserveChange increments the change record counter.
func ObserveChange() {
	pagewatchChangesTotal.Inc()
}

// ObserveNotification counts a notification attempt.
func ObserveNotification(kind, status string) {
	pagewatchNotificationsTotal.WithLabelValues(kind, status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
