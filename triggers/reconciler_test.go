package triggers_test

import (
	"bytes"
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/ledger/ledgertest"
	"github.com/fraudledger/migrate/log"
	"github.com/fraudledger/migrate/triggers"
)

var (
	admin   = ledger.AccountID{Name: "some_admin", Domain: ledger.DomainID{Name: "some_domain"}}
	testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func adminKeys(t testing.TB) *ledger.KeyPair {
	keys, err := ledger.KeyPairFromSeed(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	return keys
}

func memFS(t testing.TB, files map[string]string) afero.Fs {
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, fs.MkdirAll(path.Dir(name), 0o755))
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func newReconciler(node *ledgertest.Ledger, fs afero.Fs, ackTimeout time.Duration) *triggers.Reconciler {
	return triggers.NewReconciler(node, fs, triggers.Config{
		AckTimeout: ackTimeout,
		Clock:      func() time.Time { return testNow },
	}, log.NewDiscardLogger())
}

func existing(name string, wasm string) ledger.Trigger {
	technical := ledger.AccountID{Name: "robot", Domain: admin.Domain}
	return ledger.Trigger{
		ID: ledger.TriggerID{Name: ledger.Name(name)},
		Action: ledger.Action{
			Executable:       ledger.Executable{Wasm: []byte(wasm)},
			Repeats:          ledger.Exactly(5),
			TechnicalAccount: &technical,
			Filter:           ledger.AccountMetadataFilter(&admin),
			Metadata:         ledger.Metadata{"owner": ledger.StringValue("risk")},
		},
	}
}

func instructionKinds(tx *ledger.SignedTransaction) []string {
	var kinds []string
	for _, inst := range tx.Instructions() {
		kinds = append(kinds, inst.Kind())
	}
	return kinds
}

func TestRegisterTimeTrigger(t *testing.T) {
	require := require.New(t)

	node := ledgertest.New()
	fs := memFS(t, map[string]string{"/wasm/fraudcheck.wasm": "\x00asm-fraudcheck"})

	ids, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source:          "/wasm/fraudcheck.wasm",
		Mode:            triggers.ModeRegister,
		Admin:           admin,
		Keys:            adminKeys(t),
		Repeats:         -1,
		TriggerType:     triggers.TriggerTypeTime,
		TriggerArgument: "3600",
	})
	require.NoError(err)
	require.Equal([]ledger.TriggerID{{Name: "fraudcheck"}}, ids)

	trigger, ok := node.Trigger(ledger.TriggerID{Name: "fraudcheck"})
	require.True(ok)
	require.True(trigger.Action.Repeats.Equal(ledger.Indefinitely()))
	require.Equal(ledger.TimeFilter(testNow, time.Hour), trigger.Action.Filter)
	require.Equal([]byte("\x00asm-fraudcheck"), trigger.Action.Executable.Wasm)
	require.Nil(trigger.Action.TechnicalAccount)
	require.Empty(trigger.Action.Metadata)

	txs := node.Transactions()
	require.Len(txs, 1)
	require.Equal([]string{ledger.KindRegisterTrigger}, instructionKinds(txs[0]))
	require.Equal(admin, txs[0].Payload.Account)
}

func TestRegisterDataTrigger(t *testing.T) {
	require := require.New(t)

	node := ledgertest.New()
	fs := memFS(t, map[string]string{"/wasm/limits": "payload"})

	ids, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source:           "/wasm/limits",
		Mode:             triggers.ModeRegister,
		Admin:            admin,
		Keys:             adminKeys(t),
		Repeats:          2,
		TriggerType:      triggers.TriggerTypeAccountMetadata,
		TechnicalAccount: "robot@some_domain",
		TriggerArgument:  "alice@some_domain",
	})
	require.NoError(err)
	require.Equal([]ledger.TriggerID{{Name: "limits"}}, ids)

	trigger, ok := node.Trigger(ids[0])
	require.True(ok)
	require.True(trigger.Action.Repeats.Equal(ledger.Exactly(2)))
	require.Equal("robot@some_domain", trigger.Action.TechnicalAccount.String())
	require.Equal("DataByAccountMetadata(alice@some_domain)", trigger.Action.Filter.String())
}

func TestRegisterRejections(t *testing.T) {
	for _, tc := range []struct {
		name     string
		files    map[string]string
		source   string
		triggers []string
		argument string
		err      error
		queries  int
	}{
		{
			name:     "already exists",
			files:    map[string]string{"/wasm/fraudcheck.wasm": "x"},
			source:   "/wasm/fraudcheck.wasm",
			triggers: []string{"fraudcheck_v1"},
			argument: "60",
			err:      triggers.ErrTriggerAlreadyExists,
			queries:  1,
		},
		{
			name:     "directory source",
			files:    map[string]string{"/wasm/fraudcheck.wasm": "x"},
			source:   "/wasm",
			argument: "60",
			err:      triggers.ErrInputNotFound,
		},
		{
			name:     "missing file",
			files:    map[string]string{},
			source:   "/wasm/fraudcheck.wasm",
			argument: "60",
			err:      triggers.ErrInputNotFound,
		},
		{
			name:     "bad period",
			files:    map[string]string{"/wasm/fraudcheck.wasm": "x"},
			source:   "/wasm/fraudcheck.wasm",
			argument: "hourly",
			err:      triggers.ErrInvalidArgument,
		},
		{
			name:     "empty unit name",
			files:    map[string]string{"/wasm/.wasm": "x"},
			source:   "/wasm/.wasm",
			argument: "60",
			err:      triggers.ErrInvalidUnitName,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			node := ledgertest.New()
			for _, name := range tc.triggers {
				node.AddTrigger(existing(name, "old"))
			}

			_, err := newReconciler(node, memFS(t, tc.files), time.Second).Reconcile(context.Background(), triggers.Request{
				Source:          tc.source,
				Mode:            triggers.ModeRegister,
				Admin:           admin,
				Keys:            adminKeys(t),
				Repeats:         -1,
				TriggerType:     triggers.TriggerTypeTime,
				TriggerArgument: tc.argument,
			})
			require.ErrorIs(t, err, tc.err)
			require.Empty(t, node.Transactions())
			require.Len(t, node.Queries(), tc.queries)
		})
	}
}

func TestDefaultReplacesExecutable(t *testing.T) {
	require := require.New(t)

	node := ledgertest.New()
	node.AddTrigger(existing("fraudcheck_v3", "old fraud"))
	node.AddTrigger(existing("limits", "old limits"))
	node.AddTrigger(existing("untouched", "keep"))
	fs := memFS(t, map[string]string{
		"/wasm/fraudcheck.wasm":    "new fraud",
		"/wasm/nested/limits.wasm": "new limits",
		"/wasm/README.md":          "ignored",
	})

	ids, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeDefault,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.NoError(err)
	require.Equal([]ledger.TriggerID{{Name: "fraudcheck_v3"}, {Name: "limits"}}, ids)

	for i, wasm := range []string{"new fraud", "new limits"} {
		trigger, ok := node.Trigger(ids[i])
		require.True(ok)
		require.Equal([]byte(wasm), trigger.Action.Executable.Wasm)

		// Everything but the executable is carried over.
		previous := existing(string(ids[i].Name), "")
		require.True(previous.Action.Repeats.Equal(trigger.Action.Repeats))
		require.Equal(previous.Action.TechnicalAccount, trigger.Action.TechnicalAccount)
		require.Equal(previous.Action.Filter, trigger.Action.Filter)
		require.Equal(previous.Action.Metadata, trigger.Action.Metadata)
	}
	untouched, ok := node.Trigger(ledger.TriggerID{Name: "untouched"})
	require.True(ok)
	require.Equal([]byte("keep"), untouched.Action.Executable.Wasm)

	txs := node.Transactions()
	require.Len(txs, 2)
	for _, tx := range txs {
		require.Equal([]string{ledger.KindUnregisterTrigger, ledger.KindRegisterTrigger}, instructionKinds(tx))
	}
}

func TestDefaultIsIdempotent(t *testing.T) {
	node := ledgertest.New()
	node.AddTrigger(existing("fraudcheck", "v0"))
	node.AddTrigger(existing("limits", "v0"))
	fs := memFS(t, map[string]string{
		"/wasm/fraudcheck.wasm": "v1",
		"/wasm/limits.wasm":     "v1",
	})
	r := newReconciler(node, fs, time.Second)
	req := triggers.Request{Source: "/wasm", Mode: triggers.ModeDefault, Admin: admin, Keys: adminKeys(t)}

	first, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)
	afterFirst := node.TriggerIDs()

	second, err := r.Reconcile(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.ElementsMatch(t, afterFirst, node.TriggerIDs())
}

func TestUnregister(t *testing.T) {
	require := require.New(t)

	node := ledgertest.New()
	node.AddTrigger(existing("fraudcheck", "v0"))
	node.AddTrigger(existing("limits", "v0"))
	fs := memFS(t, map[string]string{"/wasm/fraudcheck.wasm": "v1"})

	ids, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeUnregister,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.NoError(err)
	require.Equal([]ledger.TriggerID{{Name: "fraudcheck"}}, ids)
	require.Equal([]ledger.TriggerID{{Name: "limits"}}, node.TriggerIDs())

	// The unregistered id is exactly the one fetched from the ledger.
	txs := node.Transactions()
	require.Len(txs, 1)
	require.Equal([]ledger.Instruction{ledger.UnregisterTrigger{ID: ids[0]}}, txs[0].Instructions())
}

func TestTieBreakPicksSmallestID(t *testing.T) {
	node := ledgertest.New()
	node.AddTrigger(existing("fraud_v2", "v2"))
	node.AddTrigger(existing("fraud_v1", "v1"))
	fs := memFS(t, map[string]string{"/wasm/fraud.wasm": "v3"})

	ids, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeUnregister,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.NoError(t, err)
	require.Equal(t, []ledger.TriggerID{{Name: "fraud_v1"}}, ids)
}

func TestUnitsSharingATriggerAreRejected(t *testing.T) {
	for _, mode := range []triggers.Mode{triggers.ModeDefault, triggers.ModeUnregister} {
		t.Run(mode.String(), func(t *testing.T) {
			node := ledgertest.New()
			node.AddTrigger(existing("fraudcheck_v1", "old"))
			fs := memFS(t, map[string]string{
				"/wasm/fraud.wasm":      "A",
				"/wasm/fraudcheck.wasm": "B",
			})

			ids, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
				Source: "/wasm",
				Mode:   mode,
				Admin:  admin,
				Keys:   adminKeys(t),
			})
			require.ErrorIs(t, err, triggers.ErrAmbiguousTrigger)
			require.Nil(t, ids)

			var ambiguous *triggers.AmbiguousTriggerError
			require.True(t, errors.As(err, &ambiguous))
			require.Equal(t, ledger.TriggerID{Name: "fraudcheck_v1"}, ambiguous.Trigger)
			require.Equal(t, []string{"fraud", "fraudcheck"}, ambiguous.Units)

			require.Empty(t, node.Transactions())
			require.Len(t, node.Queries(), 1)
			trigger, ok := node.Trigger(ledger.TriggerID{Name: "fraudcheck_v1"})
			require.True(t, ok)
			require.Equal(t, []byte("old"), trigger.Action.Executable.Wasm)
		})
	}
}

func TestDefaultInputErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		files  map[string]string
		source string
	}{
		{"empty directory", map[string]string{"/wasm/notes.txt": "x"}, "/wasm"},
		{"missing directory", map[string]string{}, "/nowhere"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			node := ledgertest.New()
			node.AddTrigger(existing("fraudcheck", "v0"))

			_, err := newReconciler(node, memFS(t, tc.files), time.Second).Reconcile(context.Background(), triggers.Request{
				Source: tc.source,
				Mode:   triggers.ModeDefault,
				Admin:  admin,
				Keys:   adminKeys(t),
			})
			require.ErrorIs(t, err, triggers.ErrInputNotFound)
			require.Empty(t, node.Queries())
			require.Empty(t, node.Transactions())
		})
	}
}

func TestUnknownTrigger(t *testing.T) {
	node := ledgertest.New()
	node.AddTrigger(existing("fraudcheck", "v0"))
	fs := memFS(t, map[string]string{
		"/wasm/fraudcheck.wasm": "v1",
		"/wasm/audit.wasm":      "v1",
	})

	_, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeDefault,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.ErrorIs(t, err, triggers.ErrUnknownTrigger)

	var unknown *triggers.UnknownTriggerError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, []string{"audit"}, unknown.Provided)
	require.Equal(t, []ledger.TriggerID{{Name: "fraudcheck"}}, unknown.Found)
	require.Empty(t, node.Transactions())
}

func TestUnknownTriggerIssuesNoTransactions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("an unmatched unit aborts before any submission", prop.ForAll(
		func(known []string, missing string, unregister bool) bool {
			node := ledgertest.New()
			files := map[string]string{"/wasm/z" + missing + ".wasm": "missing"}
			for i, name := range known {
				node.AddTrigger(existing("k"+name+"_v1", "old"))
				files[path.Join("/wasm", string(rune('a'+i%26)), "k"+name+".wasm")] = "new"
			}
			mode := triggers.ModeDefault
			if unregister {
				mode = triggers.ModeUnregister
			}

			_, err := newReconciler(node, memFS(t, files), time.Second).Reconcile(context.Background(), triggers.Request{
				Source: "/wasm",
				Mode:   mode,
				Admin:  admin,
				Keys:   adminKeys(t),
			})
			var unknown *triggers.UnknownTriggerError
			return errors.As(err, &unknown) &&
				len(unknown.Provided) == 1 &&
				unknown.Provided[0] == "z"+missing &&
				len(node.Transactions()) == 0
		},
		gen.SliceOfN(5, gen.Identifier()),
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestSubmissionTimeoutAbortsBatch(t *testing.T) {
	node := ledgertest.New()
	node.AddTrigger(existing("a_trigger", "v0"))
	node.AddTrigger(existing("b_trigger", "v0"))
	node.NeverAcknowledge = true
	fs := memFS(t, map[string]string{
		"/wasm/a_trigger.wasm": "v1",
		"/wasm/b_trigger.wasm": "v1",
	})

	_, err := newReconciler(node, fs, 20*time.Millisecond).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeDefault,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.ErrorIs(t, err, ledger.ErrSubmissionTimeout)
	require.Len(t, node.Transactions(), 1)
}

func TestSubmissionFailureKeepsEarlierUnits(t *testing.T) {
	node := ledgertest.New()
	node.AddTrigger(existing("a_trigger", "v0"))
	node.AddTrigger(existing("b_trigger", "v0"))
	node.FailSubmissionAfter = 1
	fs := memFS(t, map[string]string{
		"/wasm/a_trigger.wasm": "v1",
		"/wasm/b_trigger.wasm": "v1",
	})

	_, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeDefault,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.ErrorIs(t, err, ledger.ErrRemoteFailure)

	a, ok := node.Trigger(ledger.TriggerID{Name: "a_trigger"})
	require.True(t, ok)
	require.Equal(t, []byte("v1"), a.Action.Executable.Wasm)
	b, ok := node.Trigger(ledger.TriggerID{Name: "b_trigger"})
	require.True(t, ok)
	require.Equal(t, []byte("v0"), b.Action.Executable.Wasm)
}

func TestDiscoveryFailurePropagates(t *testing.T) {
	node := ledgertest.New()
	node.QueryErr = &ledger.RemoteError{Op: "query", Status: 503, Message: "unavailable"}
	fs := memFS(t, map[string]string{"/wasm/fraudcheck.wasm": "v1"})

	_, err := newReconciler(node, fs, time.Second).Reconcile(context.Background(), triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeDefault,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.ErrorIs(t, err, ledger.ErrRemoteFailure)
	require.Empty(t, node.Transactions())
}

func TestCancelledContext(t *testing.T) {
	node := ledgertest.New()
	node.AddTrigger(existing("fraudcheck", "v0"))
	fs := memFS(t, map[string]string{"/wasm/fraudcheck.wasm": "v1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReconciler(node, fs, time.Second).Reconcile(ctx, triggers.Request{
		Source: "/wasm",
		Mode:   triggers.ModeDefault,
		Admin:  admin,
		Keys:   adminKeys(t),
	})
	require.ErrorIs(t, err, context.Canceled)
}
