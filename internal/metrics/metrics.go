// Package metrics holds the Prometheus instrumentation for the proxy:
// package-level promauto collectors, no DI container.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchAttemptsTotal counts every outbound fetch attempt, labeled by
	// outcome ("ok", "transport_error").
	FetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsproxy_fetch_attempts_total",
		Help: "Total number of upstream fetch attempts, by outcome.",
	}, []string{"outcome"})

	// FetchRetriesTotal counts retries (attempts beyond the first).
	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsproxy_fetch_retries_total",
		Help: "Total number of upstream fetch retries.",
	}, []string{"reason"})

	// FetchDurationSeconds observes the wall-clock time of a single fetch
	// attempt (not including prior retries' backoff sleep).
	FetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hlsproxy_fetch_duration_seconds",
		Help:    "Duration of a single upstream fetch attempt.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// ProxyRequestsTotal counts inbound requests handled by the HTTP
	// surface, labeled by route and response class.
	ProxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsproxy_requests_total",
		Help: "Total number of proxy HTTP requests, by route and status class.",
	}, []string{"route", "status_class"})

	// ClassifierDecisionsTotal counts playlist/media classifications,
	// useful for spotting upstream content-type drift.
	ClassifierDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hlsproxy_classifier_decisions_total",
		Help: "Total number of content classifications, by decision.",
	}, []string{"decision"})
)

// Handler exposes the registered collectors in Prometheus exposition
// format at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
