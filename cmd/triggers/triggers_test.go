package triggers

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/fraudledger/migrate/config"
	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/ledger/ledgertest"
	"github.com/fraudledger/migrate/triggers"
)

const testSeed = "0101010101010101010101010101010101010101010101010101010101010101"

var registerOnce sync.Once

// parseFlags parses args into the package-level request, starting from
// the flag defaults.
func parseFlags(t *testing.T, args ...string) {
	registerOnce.Do(func() { Register(&cobra.Command{Use: "root"}) })
	request = triggers.Request{Repeats: -1}
	require.NoError(t, reconcileCmd.Flags().Parse(args))
	t.Cleanup(func() { request = triggers.Request{Repeats: -1} })
}

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.InitConfig("")
	require.NoError(t, err)
	cfg.Ledger.Endpoint = "http://localhost:8080"
	cfg.Ledger.Account = "some_admin@some_domain"
	cfg.Ledger.PrivateKey = testSeed
	return cfg
}

func TestRegisterFlags(t *testing.T) {
	parseFlags(t,
		"--source", "/wasm/fraudcheck.wasm",
		"--mode", "1",
		"--repeats", "3",
		"--trigger-type", "time",
		"--technical-account", "robot@some_domain",
		"--trigger-argument", "60",
	)
	require.Equal(t, "/wasm/fraudcheck.wasm", request.Source)
	require.Equal(t, triggers.ModeRegister, request.Mode)
	require.Equal(t, int64(3), request.Repeats)
	require.Equal(t, triggers.TriggerTypeTime, request.TriggerType)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/wasm/fraudcheck.wasm", []byte("\x00asm"), 0o644))
	node := ledgertest.New()
	var out bytes.Buffer

	require.NoError(t, reconcile(context.Background(), fs, testConfig(t), node, &out))
	require.Equal(t, "fraudcheck\n", out.String())

	trigger, ok := node.Trigger(ledger.TriggerID{Name: "fraudcheck"})
	require.True(t, ok)
	require.True(t, trigger.Action.Repeats.Equal(ledger.Exactly(3)))
	require.Equal(t, uint64(60), trigger.Action.Filter.Time.Period.Secs)
	require.Equal(t, "robot@some_domain", trigger.Action.TechnicalAccount.String())
	require.Equal(t, "some_admin@some_domain", node.Transactions()[0].Payload.Account.String())
}

func TestFlagDefaults(t *testing.T) {
	parseFlags(t, "--source", "/wasm")
	require.Equal(t, triggers.ModeDefault, request.Mode)
	require.Equal(t, int64(-1), request.Repeats)
	require.Equal(t, triggers.TriggerTypeTime, request.TriggerType)

	parseFlags(t, "--source", "/wasm", "--mode", "unregister", "--trigger-type", "1")
	require.Equal(t, triggers.ModeUnregister, request.Mode)
	require.Equal(t, triggers.TriggerTypeAccountMetadata, request.TriggerType)
}

func TestInvalidFlagValues(t *testing.T) {
	registerOnce.Do(func() { Register(&cobra.Command{Use: "root"}) })
	require.Error(t, reconcileCmd.Flags().Parse([]string{"--mode", "replace"}))
	require.Error(t, reconcileCmd.Flags().Parse([]string{"--trigger-type", "cron"}))
}

func TestReconcileReplacesExecutables(t *testing.T) {
	parseFlags(t, "--source", "/wasm")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/wasm/limits.wasm", []byte("new"), 0o644))
	node := ledgertest.New()
	node.AddTrigger(ledger.Trigger{
		ID:     ledger.TriggerID{Name: "limits_v2"},
		Action: ledger.Action{Executable: ledger.Executable{Wasm: []byte("old")}, Repeats: ledger.Indefinitely(), Filter: ledger.AccountMetadataFilter(nil)},
	})
	var out bytes.Buffer

	require.NoError(t, reconcile(context.Background(), fs, testConfig(t), node, &out))
	require.Equal(t, "limits_v2\n", out.String())
	trigger, ok := node.Trigger(ledger.TriggerID{Name: "limits_v2"})
	require.True(t, ok)
	require.Equal(t, []byte("new"), trigger.Action.Executable.Wasm)
}

func TestReconcileRequiresLedgerAccount(t *testing.T) {
	parseFlags(t, "--source", "/wasm")
	cfg, err := config.InitConfig("")
	require.NoError(t, err)

	err = reconcile(context.Background(), afero.NewMemMapFs(), cfg, ledgertest.New(), &bytes.Buffer{})
	require.ErrorContains(t, err, "ledger config not provided")
}
