// Package metrics provides Prometheus metrics for the question service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundTotal counts processed inbound messages by outcome.
	InboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "questiond",
			Name:      "inbound_total",
			Help:      "Total number of processed inbound replies by outcome",
		},
		[]string{"outcome"},
	)

	// IdentificationAttemptsTotal counts record locator attempts.
	IdentificationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "questiond",
			Name:      "identification_attempts_total",
			Help:      "Total number of question record identification attempts",
		},
		[]string{"method", "result"},
	)

	// CycleTransitionsTotal counts applied cycle transitions.
	CycleTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "questiond",
			Name:      "cycle_transitions_total",
			Help:      "Total number of applied question cycle transitions",
		},
		[]string{"transition"},
	)

	// DigestsTotal counts digest deliveries by final status.
	DigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "questiond",
			Name:      "digests_total",
			Help:      "Total number of digests by final status",
		},
		[]string{"status"},
	)
)

// RecordInbound records the outcome of one inbound message.
func RecordInbound(outcome string) {
	InboundTotal.WithLabelValues(outcome).Inc()
}

// RecordIdentificationAttempt records one locator strategy run.
func RecordIdentificationAttempt(method, result string) {
	IdentificationAttemptsTotal.WithLabelValues(method, result).Inc()
}

// RecordCycleTransition records an applied transition.
func RecordCycleTransition(transition string) {
	CycleTransitionsTotal.WithLabelValues(transition).Inc()
}

// RecordDigest records a digest reaching a final status.
func RecordDigest(status string) {
	DigestsTotal.WithLabelValues(status).Inc()
}
