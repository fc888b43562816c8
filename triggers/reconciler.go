// Package triggers reconciles WASM executables on disk with the triggers
// registered on the ledger.
package triggers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/fraudledger/migrate/ledger"
	"github.com/fraudledger/migrate/log"
	"github.com/fraudledger/migrate/metrics"
)

const moduleName = "triggers"

// DefaultAckTimeout bounds the wait for each transaction's acknowledgement.
const DefaultAckTimeout = 30 * time.Second

// Config tunes a Reconciler. Zero values select defaults.
type Config struct {
	// AckTimeout bounds the acknowledgement wait per submitted transaction.
	AckTimeout time.Duration
	// Clock supplies the current time for signing and time filters.
	Clock func() time.Time
}

// Request describes one reconciliation.
type Request struct {
	// Source is a directory of WASM files, or a single file in register mode.
	Source string
	Mode   Mode
	// Admin is the account queries and transactions are scoped to.
	Admin ledger.AccountID
	Keys  *ledger.KeyPair

	// The remaining fields only apply to register mode.

	// Repeats is the repeat count; negative means indefinitely.
	Repeats          int64
	TriggerType      TriggerType
	TechnicalAccount string
	TriggerArgument  string
}

// Reconciler registers, unregisters or replaces triggers from WASM units.
type Reconciler struct {
	client     ledger.Client
	fs         afero.Fs
	ackTimeout time.Duration
	now        func() time.Time
	logger     *log.Logger
	metrics    metrics.MigrationMetrics
}

// NewReconciler returns a reconciler reading units from fs.
func NewReconciler(client ledger.Client, fs afero.Fs, cfg Config, logger *log.Logger) *Reconciler {
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Reconciler{
		client:     client,
		fs:         fs,
		ackTimeout: cfg.AckTimeout,
		now:        cfg.Clock,
		logger:     logger.WithModule(moduleName),
		metrics:    metrics.NewDefaultMigrationMetrics(metrics.DefaultNamespace),
	}
}

// Reconcile applies req.Mode to every unit under req.Source, one
// transaction per unit, and returns the affected trigger ids in unit
// order. Units are processed sequentially and the first failure aborts the
// batch; transactions already acknowledged are not undone.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) ([]ledger.TriggerID, error) {
	if req.Keys == nil {
		return nil, fmt.Errorf("%w: missing signing key", ErrInvalidArgument)
	}
	logger := r.logger.With("mode", req.Mode.String(), "source", req.Source, "admin", req.Admin)

	units, err := LoadUnits(r.fs, req.Source, req.Mode)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded units", "count", len(units))

	var template *ledger.Action
	if req.Mode == ModeRegister {
		if template, err = newAction(req, r.now()); err != nil {
			return nil, err
		}
	}

	signer := ledger.Signer{Account: req.Admin, Keys: req.Keys}
	found, err := ledger.QueryActiveTriggerIDs(ctx, r.client, signer, r.now())
	if err != nil {
		return nil, fmt.Errorf("discovering triggers: %w", err)
	}
	logger.Debug("discovered triggers", "count", len(found))

	if req.Mode.unregisters() {
		var unmatched []string
		for _, u := range units {
			if len(ledger.MatchPrefix(found, string(u.Name))) == 0 {
				unmatched = append(unmatched, string(u.Name))
			}
		}
		if len(unmatched) > 0 {
			return nil, &UnknownTriggerError{Found: found, Provided: unmatched}
		}
		if err := checkDistinctTargets(units, found); err != nil {
			return nil, err
		}
	}

	records := make([]*ledger.Trigger, len(units))
	for i, u := range units {
		matches := ledger.MatchPrefix(found, string(u.Name))
		if req.Mode == ModeRegister {
			if len(matches) > 0 {
				return nil, fmt.Errorf("%w: %s matches %s", ErrTriggerAlreadyExists, u.Name, matches[0])
			}
			records[i] = &ledger.Trigger{ID: ledger.TriggerID{Name: u.Name}, Action: *template}
			continue
		}
		if len(matches) > 1 {
			logger.Warn("unit matches several triggers, using the smallest id",
				"unit", u.Name, "matches", len(matches), "trigger", matches[0])
		}
		record, err := ledger.QueryTriggerByID(ctx, r.client, signer, matches[0], r.now())
		if err != nil {
			return nil, fmt.Errorf("fetching trigger %s: %w", matches[0], err)
		}
		records[i] = record
	}

	ids := make([]ledger.TriggerID, len(units))
	for i, u := range units {
		if err := r.submit(ctx, req, signer, u, records[i]); err != nil {
			r.metrics.TriggerOperations(req.Mode.String(), metrics.OutcomeFailed).Inc()
			return nil, err
		}
		r.metrics.TriggerOperations(req.Mode.String(), metrics.OutcomeSubmitted).Inc()
		ids[i] = records[i].ID
	}
	logger.Info("reconciled triggers", "count", len(ids))
	return ids, nil
}

// submit sends the unregister and/or register instructions for one unit
// and waits for the acknowledgement.
func (r *Reconciler) submit(ctx context.Context, req Request, signer ledger.Signer, u Unit, record *ledger.Trigger) error {
	builder := ledger.NewTransaction(signer.Account)
	if req.Mode.unregisters() {
		builder.Add(ledger.UnregisterTrigger{ID: record.ID})
	}
	if req.Mode.registers() {
		action := record.Action
		action.Executable = ledger.Executable{Wasm: u.Payload}
		builder.Add(ledger.RegisterTrigger{Trigger: ledger.Trigger{ID: record.ID, Action: action}})
	}
	tx, err := builder.BuildSigned(signer.Keys, r.now())
	if err != nil {
		return err
	}
	hash, err := ledger.Submit(ctx, r.client, tx, r.ackTimeout)
	if err != nil {
		return fmt.Errorf("trigger %s (%s): %w", record.ID, u.Path, err)
	}
	r.logger.Info("trigger submitted",
		"trigger", record.ID,
		"unit", u.Path,
		"mode", req.Mode.String(),
		"tx", hash,
		"repeats", record.Action.Repeats,
		"filter", record.Action.Filter,
	)
	return nil
}

// newAction builds the action of a freshly registered trigger. The
// executable is filled in per unit.
func newAction(req Request, now time.Time) (*ledger.Action, error) {
	repeats, err := RepeatsFromCount(req.Repeats)
	if err != nil {
		return nil, err
	}
	technical, err := ParseTechnicalAccount(req.TechnicalAccount)
	if err != nil {
		return nil, err
	}
	filter, err := BuildFilter(req.TriggerType, req.TriggerArgument, now)
	if err != nil {
		return nil, err
	}
	return &ledger.Action{
		Repeats:          repeats,
		TechnicalAccount: technical,
		Filter:           filter,
		Metadata:         ledger.Metadata{},
	}, nil
}

// checkDistinctTargets fails when several units resolve to the same
// trigger, since only the last payload would survive.
func checkDistinctTargets(units []Unit, found []ledger.TriggerID) error {
	targets := map[ledger.TriggerID][]string{}
	var order []ledger.TriggerID
	for _, u := range units {
		id := ledger.MatchPrefix(found, string(u.Name))[0]
		if _, ok := targets[id]; !ok {
			order = append(order, id)
		}
		targets[id] = append(targets[id], string(u.Name))
	}
	for _, id := range order {
		if len(targets[id]) > 1 {
			return &AmbiguousTriggerError{Trigger: id, Units: targets[id]}
		}
	}
	return nil
}
