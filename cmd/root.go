// Package cmd implements commands for the ledger-migrate executable.
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fraudledger/migrate/cmd/common"
	"github.com/fraudledger/migrate/cmd/genesis"
	"github.com/fraudledger/migrate/cmd/triggers"
	"github.com/fraudledger/migrate/log"
)

var rootCmd = &cobra.Command{
	Use:   "ledger-migrate",
	Short: "Migrate fraud records and WASM triggers onto the ledger",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Debug hook. If we receive SIGUSR1, dump all goroutines.
		go dumpGoroutinesOnSignal(cmd.Context(), syscall.SIGUSR1)
	},
}

// Execute spawns the main entry point after handing the config file.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&common.ConfigFile, "config", "", "path to the config.yml file")

	for _, f := range []func(*cobra.Command){
		genesis.Register,
		triggers.Register,
	} {
		f(rootCmd)
	}
}

// Starts listening for the specified signals, and logs a dump of all
// goroutines when the process receives one of those signals.
func dumpGoroutinesOnSignal(ctx context.Context, signals ...os.Signal) {
	logger := log.NewDefaultLogger("toplevel")
	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)
	defer signal.Stop(c)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
		}
		b := bytes.NewBufferString("")
		_ = pprof.Lookup("goroutine").WriteTo(b, 1)
		logger.Warn("USER-REQUESTED DUMP: all goroutines", "goroutines_all", b.String())

		b = bytes.NewBufferString("")
		_ = pprof.Lookup("block").WriteTo(b, 1)
		logger.Warn("USER-REQUESTED DUMP: stack traces that led to blocking on synchronization primitives", "goroutines_block", b.String())
	}
}
