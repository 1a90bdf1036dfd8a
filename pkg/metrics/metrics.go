// Package metrics registers prometheus instruments for the batch
// reconciliation passes and the chain gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassDuration observes the wall time of one engine pass.
	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "suibison",
		Subsystem: "batch",
		Name:      "pass_duration_seconds",
		Help:      "Duration of one batch engine pass.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"engine"})

	// AccountsProcessed counts accounts reconciled per engine.
	AccountsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "suibison",
		Subsystem: "batch",
		Name:      "accounts_processed_total",
		Help:      "Accounts reconciled, by engine.",
	}, []string{"engine"})

	// AccountFailures counts per-account reconciliation failures that were
	// logged and skipped.
	AccountFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "suibison",
		Subsystem: "batch",
		Name:      "account_failures_total",
		Help:      "Per-account failures skipped during a pass, by engine.",
	}, []string{"engine"})

	// GatewayRequests counts chain gateway calls by method and outcome.
	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "suibison",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Chain gateway requests, by method and outcome.",
	}, []string{"method", "outcome"})
)
