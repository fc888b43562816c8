package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce registers the collector with the default registry. Commands
// may construct the same metrics more than once per process (e.g. in tests),
// so an identical collector that is already registered is returned instead.
// Panics on any other registration error.
func registerOnce(collector prometheus.Collector) prometheus.Collector {
	err := prometheus.Register(collector)
	if err == nil {
		return collector
	}
	are := &prometheus.AlreadyRegisteredError{}
	if errors.As(err, are) {
		return are.ExistingCollector
	}
	panic(err)
}
