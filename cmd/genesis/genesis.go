// Package genesis implements the genesis sub-commands.
package genesis

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/fraudledger/migrate/cmd/common"
	"github.com/fraudledger/migrate/config"
	"github.com/fraudledger/migrate/genesis"
	"github.com/fraudledger/migrate/ledger"
)

const moduleName = "genesis_cmd"

var (
	csvFile     string
	genesisFile string
	outFile     string
	adminKeyOut string

	genesisCmd = &cobra.Command{
		Use:   "genesis",
		Short: "Convert fraud record exports into ledger instructions",
	}

	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Append fraud records to a genesis block",
		Run:   runBuild,
	}

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Submit fraud records to a running ledger",
		Run:   runImport,
	}
)

func newMapper(cfg *config.Config) (*genesis.Mapper, error) {
	if cfg.Genesis == nil {
		return nil, fmt.Errorf("genesis config not provided")
	}
	return genesis.NewMapper(cfg.Genesis.Schema(), cfg.Genesis.DomainID(), cfg.Genesis.AdminID())
}

func runBuild(cmd *cobra.Command, args []string) {
	cfg := common.Setup()
	logger := common.RootLogger().WithModule(moduleName)

	err := common.Run(cmd.Context(), cfg.Metrics, func(ctx context.Context) error {
		return build(afero.NewOsFs(), cfg)
	})
	if err != nil {
		logger.Error("genesis build failed", "err", err)
		os.Exit(1)
	}
	logger.Info("genesis block written", "out", outFile)
}

func build(fs afero.Fs, cfg *config.Config) error {
	mapper, err := newMapper(cfg)
	if err != nil {
		return err
	}

	doc, err := fs.Open(genesisFile)
	if err != nil {
		return fmt.Errorf("%w: %w", genesis.ErrMalformedGenesisInput, err)
	}
	defer doc.Close()
	records, err := fs.Open(csvFile)
	if err != nil {
		return err
	}
	defer records.Close()

	assembler := genesis.NewAssembler(mapper, rand.Reader, common.RootLogger())
	block, keys, err := assembler.Assemble(doc, records)
	if err != nil {
		return err
	}

	// The key goes first: a block whose admin key was lost is unusable.
	if err = saveAdminKey(fs, keys); err != nil {
		return err
	}

	out, err := fs.Create(outFile)
	if err != nil {
		return err
	}
	if err = block.Write(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func runImport(cmd *cobra.Command, args []string) {
	cfg := common.Setup()
	logger := common.RootLogger().WithModule(moduleName)

	var rows int
	err := common.Run(cmd.Context(), cfg.Metrics, func(ctx context.Context) error {
		var err error
		rows, err = importRecords(ctx, afero.NewOsFs(), cfg)
		return err
	})
	if err != nil {
		logger.Error("genesis import failed", "err", err, "rows_imported", rows)
		os.Exit(1)
	}
	logger.Info("fraud records imported", "rows", rows)
}

func importRecords(ctx context.Context, fs afero.Fs, cfg *config.Config) (int, error) {
	mapper, err := newMapper(cfg)
	if err != nil {
		return 0, err
	}
	client, err := common.NewLedgerClient(cfg.Ledger)
	if err != nil {
		return 0, err
	}
	signer, err := common.Signer(cfg.Ledger)
	if err != nil {
		return 0, err
	}

	records, err := fs.Open(csvFile)
	if err != nil {
		return 0, err
	}
	defer records.Close()

	importer := genesis.NewImporter(client, mapper, rand.Reader, cfg.Ledger.AckTimeout, common.RootLogger())
	keys, rows, err := importer.Import(ctx, signer, records)
	if keys != nil {
		// The admin account may exist even when a later row failed.
		if kerr := saveAdminKey(fs, keys); kerr != nil && err == nil {
			err = kerr
		}
	}
	return rows, err
}

func saveAdminKey(fs afero.Fs, keys *ledger.KeyPair) error {
	if adminKeyOut == "" {
		common.RootLogger().WithModule(moduleName).Warn("admin key not persisted, --admin-key-out unset",
			"public_key", keys.Public.String(),
		)
		return nil
	}
	return genesis.WriteKeyPair(fs, adminKeyOut, keys)
}

// Register registers the genesis sub-commands.
func Register(parentCmd *cobra.Command) {
	buildCmd.Flags().StringVar(&csvFile, "csv", "", "path to the fraud records CSV export")
	buildCmd.Flags().StringVar(&genesisFile, "genesis", "", "path to the existing genesis block")
	buildCmd.Flags().StringVar(&outFile, "out", "", "path the extended genesis block is written to")
	buildCmd.Flags().StringVar(&adminKeyOut, "admin-key-out", "", "path the generated admin key pair is written to")
	for _, f := range []string{"csv", "genesis", "out"} {
		_ = buildCmd.MarkFlagRequired(f)
	}

	importCmd.Flags().StringVar(&csvFile, "csv", "", "path to the fraud records CSV export")
	importCmd.Flags().StringVar(&adminKeyOut, "admin-key-out", "", "path the generated admin key pair is written to")
	_ = importCmd.MarkFlagRequired("csv")

	genesisCmd.AddCommand(buildCmd, importCmd)
	parentCmd.AddCommand(genesisCmd)
}
