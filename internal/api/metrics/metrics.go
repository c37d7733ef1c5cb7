// Package metrics defines and registers all custom Prometheus metrics for
// the billing engine. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry at import time via
// promauto; the /metrics endpoint exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing"

// ── Deduction metrics ─────────────────────────────────────────────────────────

// DeductionsTotal counts deduction attempts that reached the transaction.
// Labels:
//   - reason: the ledger reason (e.g. "agent_run")
//   - result: "ok", "insufficient", or "error"
var DeductionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deductions_total",
		Help:      "Total number of deduction attempts, by reason and result.",
	},
	[]string{"reason", "result"},
)

// CreditsDeductedTotal accumulates the credits successfully debited.
var CreditsDeductedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credits_deducted_total",
		Help:      "Total credits debited across all committed deductions.",
	},
)

// InsufficientBalanceTotal counts deductions rejected for lack of credits.
var InsufficientBalanceTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "insufficient_balance_total",
		Help:      "Total number of deductions rejected due to insufficient balance.",
	},
)

// DeductionDuration measures the stop-session billing path end-to-end.
// Label:
//   - reason: the ledger reason billed
var DeductionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "deduction_duration_seconds",
		Help:      "Duration of the transition-guard-to-commit billing path.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"reason"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// TransitionConflictsTotal counts stop calls that lost the transition race.
// A non-zero value under retries is healthy: it is the guard working.
var TransitionConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transition_conflicts_total",
		Help:      "Total number of stop calls that found the session already stopped.",
	},
)

// ── Notification metrics ──────────────────────────────────────────────────────

// ThresholdNotificationsTotal counts threshold crossings that requested an alert.
// Label:
//   - type: "credits_low" or "credits_exhausted"
var ThresholdNotificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "threshold_notifications_total",
		Help:      "Total number of low/exhausted balance notification requests.",
	},
	[]string{"type"},
)

// NotificationQueueDepth tracks pending notification requests per worker.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var NotificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notification requests pending per worker.",
	},
	[]string{"worker_id"},
)

// NotificationDeliveriesTotal counts delivery attempts at the publisher.
// Label:
//   - result: "ok", "deduped", or "error"
var NotificationDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_deliveries_total",
		Help:      "Total notification delivery attempts, by result.",
	},
	[]string{"result"},
)
