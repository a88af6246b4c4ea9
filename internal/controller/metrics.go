package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	reconcileDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nodelabelpreserver",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation loops in seconds",
			// Buckets chosen to capture fast reconciles and longer tail up to 60s.
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"node", "controller"},
	)

	reconcileErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodelabelpreserver",
			Name:      "reconcile_errors_total",
			Help:      "Total number of reconciliation errors",
		},
		[]string{"node", "controller", "reason"},
	)

	backupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodelabelpreserver",
			Name:      "backups_total",
			Help:      "Total number of label backup records written",
		},
		[]string{"node"},
	)

	restoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodelabelpreserver",
			Name:      "restores_total",
			Help:      "Total number of nodes that had labels restored",
		},
		[]string{"node"},
	)

	safetyValveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodelabelpreserver",
			Name:      "safety_valve_total",
			Help:      "Total number of deletions released without a backup after the retry window expired",
		},
		[]string{"node"},
	)

	sweptRecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nodelabelpreserver",
			Name:      "swept_records_total",
			Help:      "Total number of orphaned backup records removed by the sweeper",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		reconcileDurationHistogram,
		reconcileErrorsTotal,
		backupsTotal,
		restoresTotal,
		safetyValveTotal,
		sweptRecordsTotal,
	)
}

// IncrementBackups records a backup record written for the named node.
func IncrementBackups(node string) {
	backupsTotal.WithLabelValues(node).Inc()
}

// IncrementRestores records a restore applied to the named node.
func IncrementRestores(node string) {
	restoresTotal.WithLabelValues(node).Inc()
}

// IncrementSafetyValve records a deletion released without a successful
// backup because the retry window expired.
func IncrementSafetyValve(node string) {
	safetyValveTotal.WithLabelValues(node).Inc()
}

// IncrementSweptRecords records an orphaned backup record deleted by the
// sweeper.
func IncrementSweptRecords() {
	sweptRecordsTotal.Inc()
}

// ReconcileMetrics provides helpers to record reconcile-level metrics for a
// specific controller and node.
type ReconcileMetrics struct {
	node       string
	controller string
}

// NewReconcileMetrics creates a new ReconcileMetrics instance.
func NewReconcileMetrics(node, controller string) *ReconcileMetrics {
	return &ReconcileMetrics{
		node:       node,
		controller: controller,
	}
}

// ObserveDuration records the duration of a reconcile loop in seconds.
func (m *ReconcileMetrics) ObserveDuration(durationSeconds float64) {
	reconcileDurationHistogram.
		WithLabelValues(m.node, m.controller).
		Observe(durationSeconds)
}

// IncrementError increments the reconcile error counter with the given reason.
// Reason values should be low-cardinality strings (for example, "StoreError").
func (m *ReconcileMetrics) IncrementError(reason string) {
	reconcileErrorsTotal.
		WithLabelValues(m.node, m.controller, reason).
		Inc()
}
