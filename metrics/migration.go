package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes used to label migration operations.
const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)

// MigrationMetrics instruments the migration flows.
type MigrationMetrics struct {
	// Trigger operations by mode and outcome.
	triggerOperations *prometheus.CounterVec

	// CSV rows mapped into instructions, by flow.
	rowsMapped *prometheus.CounterVec
}

// NewDefaultMigrationMetrics creates Prometheus metric instrumentation for
// the trigger reconciler and the CSV flows.
func NewDefaultMigrationMetrics(pkg string) MigrationMetrics {
	metrics := MigrationMetrics{
		triggerOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_trigger_operations", pkg),
				Help: "How many trigger units were processed, partitioned by mode and outcome.",
			},
			[]string{"mode", "outcome"}, // Labels.
		),
		rowsMapped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_csv_rows_mapped", pkg),
				Help: "How many CSV rows were mapped into ledger instructions, partitioned by flow.",
			},
			[]string{"flow"}, // Labels.
		),
	}
	metrics.triggerOperations = registerOnce(metrics.triggerOperations).(*prometheus.CounterVec)
	metrics.rowsMapped = registerOnce(metrics.rowsMapped).(*prometheus.CounterVec)
	return metrics
}

// TriggerOperations returns the counter for the given mode and outcome.
func (m *MigrationMetrics) TriggerOperations(mode, outcome string) prometheus.Counter {
	return m.triggerOperations.WithLabelValues(mode, outcome)
}

// RowsMapped returns the counter of mapped rows for the given flow.
func (m *MigrationMetrics) RowsMapped(flow string) prometheus.Counter {
	return m.rowsMapped.WithLabelValues(flow)
}
