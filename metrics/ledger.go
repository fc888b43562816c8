package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Labels to use for partitioning ledger requests.
	ledgerRequestLabels = []string{"operation", "status"}

	// Labels to use for partitioning ledger request latencies.
	ledgerLatencyLabels = []string{"operation"}
)

// LedgerMetrics instruments round-trips to the ledger node.
type LedgerMetrics struct {
	// Counts of requests made to the node.
	requests *prometheus.CounterVec

	// Latencies of node requests.
	latencies *prometheus.HistogramVec
}

// NewDefaultLedgerMetrics creates Prometheus metric instrumentation for
// ledger node requests:
//
// 1. Counts of requests, partitioned by operation and status.
// 2. Latencies of requests, partitioned by operation.
func NewDefaultLedgerMetrics(pkg string) LedgerMetrics {
	metrics := LedgerMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_ledger_requests", pkg),
				Help: "How many ledger node requests were made, partitioned by operation and status.",
			},
			ledgerRequestLabels,
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_ledger_request_latencies", pkg),
				Help: "How long ledger node requests take, partitioned by operation.",
			},
			ledgerLatencyLabels,
		),
	}
	metrics.requests = registerOnce(metrics.requests).(*prometheus.CounterVec)
	metrics.latencies = registerOnce(metrics.latencies).(*prometheus.HistogramVec)
	return metrics
}

// Requests returns the counter for the given operation and status.
func (m *LedgerMetrics) Requests(operation, status string) prometheus.Counter {
	return m.requests.WithLabelValues(operation, status)
}

// RequestLatencies returns a new latency timer for the given operation.
func (m *LedgerMetrics) RequestLatencies(operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(operation))
}
