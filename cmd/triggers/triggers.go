// Package triggers implements the triggers sub-commands.
package triggers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fraudledger/migrate/cmd/common"
	"github.com/fraudledger/migrate/config"
	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/triggers"
)

const moduleName = "triggers_cmd"

var (
	request = triggers.Request{Repeats: -1}

	triggersCmd = &cobra.Command{
		Use:   "triggers",
		Short: "Manage WASM triggers on the ledger",
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Register, replace or unregister triggers from compiled WASM units",
		Run:   runReconcile,
	}
)

func runReconcile(cmd *cobra.Command, args []string) {
	cfg := common.Setup()
	logger := common.RootLogger().WithModule(moduleName)

	err := common.Run(cmd.Context(), cfg.Metrics, func(ctx context.Context) error {
		client, err := common.NewLedgerClient(cfg.Ledger)
		if err != nil {
			return err
		}
		return reconcile(ctx, afero.NewOsFs(), cfg, client, cmd.OutOrStdout())
	})
	if err != nil {
		logger.Error("trigger reconciliation failed", "err", err, "mode", request.Mode.String())
		os.Exit(1)
	}
}

// reconcile runs the flag-configured request as the configured ledger
// account and prints the affected trigger ids, one per line.
func reconcile(ctx context.Context, fs afero.Fs, cfg *config.Config, client ledger.Client, out io.Writer) error {
	signer, err := common.Signer(cfg.Ledger)
	if err != nil {
		return err
	}

	req := request
	req.Admin = signer.Account
	req.Keys = signer.Keys

	reconciler := triggers.NewReconciler(client, fs, triggers.Config{
		AckTimeout: cfg.Ledger.AckTimeout,
	}, common.RootLogger())
	ids, err := reconciler.Reconcile(ctx, req)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

// Register registers the triggers sub-commands.
func Register(parentCmd *cobra.Command) {
	f := reconcileCmd.Flags()
	f.StringVar(&request.Source, "source", "", "directory of compiled WASM units, or a single file in register mode")
	f.Var(&request.Mode, "mode", "what to do with each unit")
	f.Int64Var(&request.Repeats, "repeats", -1, "repeat count of a registered trigger, negative for indefinitely")
	f.Var(&request.TriggerType, "trigger-type", "event filter of a registered trigger")
	f.StringVar(&request.TechnicalAccount, "technical-account", "", "technical account of a registered trigger, as name@domain")
	f.StringVar(&request.TriggerArgument, "trigger-argument", "", "period in seconds for time triggers, optional origin account for data triggers")
	_ = reconcileCmd.MarkFlagRequired("source")

	triggersCmd.AddCommand(reconcileCmd)
	parentCmd.AddCommand(triggersCmd)
}
