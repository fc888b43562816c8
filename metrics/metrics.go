// Package metrics contains the prometheus infrastructure.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/fraudledger/migrate/log"
)

const (
	moduleName = "metrics"

	// DefaultNamespace prefixes the metric names of this binary.
	DefaultNamespace = "ledger_migrate"

	shutdownTimeout = 5 * time.Second
)

// PullService is a service that supports the Prometheus pull method.
type PullService struct {
	pullEndpoint string
	logger       *log.Logger
}

// NewPullService creates a new Prometheus pull service.
func NewPullService(pullEndpoint string, logger *log.Logger) *PullService {
	return &PullService{
		pullEndpoint: pullEndpoint,
		logger:       logger.WithModule(moduleName),
	}
}

// Run serves the metrics endpoint until ctx is done.
func (s *PullService) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:           s.pullEndpoint,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving metrics", "endpoint", s.pullEndpoint)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Push sends the current contents of the default registry to a Prometheus
// Pushgateway under the given job name. Batch commands call this once on exit.
func Push(ctx context.Context, gateway string, job string) error {
	return push.New(gateway, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
}
