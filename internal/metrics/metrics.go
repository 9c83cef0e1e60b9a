// Package metrics exposes Prometheus collectors for the payment flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "esewa"

var (
	// HTTPRequests counts API requests by route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration observes API latency by route.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route"},
	)

	// PaymentsInitiated counts signed forms issued, split by cache reuse.
	PaymentsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "initiated_total",
			Help:      "Signed payment forms handed out",
		},
		[]string{"source"},
	)

	// SignatureVerifications counts gateway response verifications by result.
	SignatureVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "signature_verifications_total",
			Help:      "Gateway response signature checks",
		},
		[]string{"result"},
	)

	// StatusChecks counts status endpoint calls by outcome.
	StatusChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "status_checks_total",
			Help:      "Transaction status checks against the gateway",
		},
		[]string{"outcome"},
	)
)

// ObserveVerification records one signature check.
func ObserveVerification(valid bool) {
	if valid {
		SignatureVerifications.WithLabelValues("valid").Inc()
		return
	}
	SignatureVerifications.WithLabelValues("invalid").Inc()
}
