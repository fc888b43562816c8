// Package common implements common ledger-migrate command options.
package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fraudledger/migrate/config"
	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/ledger/client"
	"github.com/fraudledger/migrate/log"
	"github.com/fraudledger/migrate/metrics"
)

const pushTimeout = 10 * time.Second

// ConfigFile is the path to the configuration file, set by the root command.
var ConfigFile string

var rootLogger = log.NewDefaultLogger("ledger-migrate")

// Init initializes the common environment.
func Init(cfg *config.Config) error {
	var w io.Writer = os.Stdout
	format := log.FmtJSON
	level := log.LevelInfo

	if cfg.Log != nil {
		var err error
		if w, err = getLoggingStream(cfg.Log); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if err := format.Set(cfg.Log.Format); err != nil {
			return err
		}
		if err := level.Set(cfg.Log.Level); err != nil {
			return err
		}
	}
	logger, err := log.NewLogger("ledger-migrate", w, format, level)
	if err != nil {
		return err
	}
	rootLogger = logger
	return nil
}

// Setup loads the configuration file and initializes the common environment.
// Failures are logged and terminate the process.
func Setup() *config.Config {
	cfg, err := config.InitConfig(ConfigFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	if err = Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	return cfg
}

// RootLogger returns the logger defined by logging flags.
func RootLogger() *log.Logger {
	return rootLogger
}

func getLoggingStream(cfg *config.LogConfig) (io.Writer, error) {
	if cfg == nil || cfg.File == "" {
		return os.Stdout, nil
	}
	w, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// NewLedgerClient creates a new client to the configured ledger node.
func NewLedgerClient(cfg *config.LedgerConfig) (*client.Client, error) {
	if cfg == nil || !cfg.Configured() {
		return nil, fmt.Errorf("ledger config not provided")
	}
	return client.New(cfg.Endpoint, client.Options{
		RequestTimeout: cfg.RequestTimeout,
		PollInterval:   cfg.PollInterval,
	}, rootLogger)
}

// Signer returns the configured signing identity.
func Signer(cfg *config.LedgerConfig) (ledger.Signer, error) {
	if cfg == nil || !cfg.Configured() {
		return ledger.Signer{}, fmt.Errorf("ledger config not provided")
	}
	account, err := ledger.ParseAccountID(cfg.Account)
	if err != nil {
		return ledger.Signer{}, err
	}
	keys, err := ledger.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return ledger.Signer{}, err
	}
	return ledger.Signer{Account: account, Keys: keys}, nil
}

// Run runs fn next to the optional metrics pull service, and pushes the
// collected metrics to the configured Pushgateway once fn returns.
func Run(ctx context.Context, cfg *config.MetricsConfig, fn func(ctx context.Context) error) error {
	if cfg == nil {
		return fn(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	// Stops the pull service once fn is done.
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if cfg.PullEndpoint != "" {
		service := metrics.NewPullService(cfg.PullEndpoint, rootLogger)
		g.Go(func() error {
			return service.Run(runCtx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return fn(runCtx)
	})
	err := g.Wait()

	if cfg.PushGateway != "" {
		pushCtx, pushCancel := context.WithTimeout(context.Background(), pushTimeout)
		defer pushCancel()
		if perr := metrics.Push(pushCtx, cfg.PushGateway, cfg.Job); perr != nil {
			rootLogger.Warn("failed to push metrics", "err", perr, "gateway", cfg.PushGateway)
		}
	}
	return err
}
