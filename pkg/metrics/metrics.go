// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "water_usage_history"

// Introspection outcome labels.
const (
	OutcomeAuthorized = "authorized"
	OutcomeDenied     = "denied"
	OutcomeTimeout    = "timeout"
	OutcomeError      = "error"
)

// Conditional request outcome labels.
const (
	ConditionalNotModified = "not_modified"
	ConditionalFresh       = "fresh"
	ConditionalUnavailable = "freshness_unavailable"
)

var (
	introspections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "authz",
		Name:      "introspections_total",
		Help:      "Token introspection round trips by outcome and denial reason.",
	}, []string{"outcome", "reason"})

	introspectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "authz",
		Name:      "introspection_duration_seconds",
		Help:      "Latency of token introspection round trips.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	conditionalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "conditional_requests_total",
		Help:      "Conditional request evaluations by outcome.",
	}, []string{"outcome"})
)

// ObserveIntrospection records one finished introspection.
func ObserveIntrospection(outcome, reason string, elapsed time.Duration) {
	introspections.WithLabelValues(outcome, reason).Inc()
	introspectionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func ObserveConditional(outcome string) {
	conditionalRequests.WithLabelValues(outcome).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
