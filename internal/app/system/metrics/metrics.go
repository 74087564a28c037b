// internal/app/system/metrics/metrics.go

// Package metrics registers the Prometheus collectors for the access
// core. All collectors are package level and registered once.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionEvents counts processed auth-state events by type.
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "numerizam",
		Subsystem: "session",
		Name:      "events_total",
		Help:      "Auth-state events processed by the session reconciler.",
	}, []string{"type"})

	// StaleDiscards counts events and fetch results dropped because a
	// newer event superseded them.
	StaleDiscards = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "numerizam",
		Subsystem: "session",
		Name:      "stale_discards_total",
		Help:      "Events or profile fetches discarded as stale.",
	})

	// FetchTimeouts counts profile fetches that exceeded their deadline.
	FetchTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "numerizam",
		Subsystem: "session",
		Name:      "fetch_timeouts_total",
		Help:      "Profile fetches that exceeded the reconciliation deadline.",
	})

	// DegradedFallbacks counts sessions admitted with the degraded
	// default identity after a failed profile fetch.
	DegradedFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "numerizam",
		Subsystem: "session",
		Name:      "degraded_fallbacks_total",
		Help:      "Sessions admitted with the degraded fallback identity.",
	})

	// ApprovalDecisions counts reviewed approval requests by outcome.
	ApprovalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "numerizam",
		Subsystem: "approval",
		Name:      "decisions_total",
		Help:      "Approval requests reviewed, by outcome.",
	}, []string{"outcome"})

	// FanoutFailures counts notification batches that failed entirely.
	FanoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "numerizam",
		Subsystem: "approval",
		Name:      "fanout_failures_total",
		Help:      "Admin notification fan-outs that failed entirely.",
	})
)
