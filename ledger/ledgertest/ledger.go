// Package ledgertest provides an in-memory ledger.Client for tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fraudledger/migrate/ledger"
)

// Ledger is an in-memory node. Transactions are validated and applied
// atomically on submission; Await reports the outcome.
type Ledger struct {
	mu sync.Mutex

	triggerOrder []ledger.TriggerID
	triggers     map[ledger.TriggerID]ledger.Trigger
	domains      map[ledger.DomainID]struct{}
	accounts     map[ledger.AccountID][]ledger.PublicKey
	definitions  map[ledger.AssetDefinitionID]struct{}
	metadata     map[string]ledger.Metadata
	grants       []ledger.GrantPermission

	transactions []*ledger.SignedTransaction
	queries      []*ledger.SignedQuery

	// QueryErr, when set, fails every query.
	QueryErr error
	// SubmitErr, when set, fails every submission.
	SubmitErr error
	// FailSubmissionAfter fails submissions once this many transactions were accepted. Zero disables it.
	FailSubmissionAfter int
	// NeverAcknowledge makes Await block until its context is done.
	NeverAcknowledge bool
}

var _ ledger.Client = (*Ledger)(nil)

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		triggers:    map[ledger.TriggerID]ledger.Trigger{},
		domains:     map[ledger.DomainID]struct{}{},
		accounts:    map[ledger.AccountID][]ledger.PublicKey{},
		definitions: map[ledger.AssetDefinitionID]struct{}{},
		metadata:    map[string]ledger.Metadata{},
	}
}

// AddTrigger registers a trigger directly, bypassing transactions.
func (l *Ledger) AddTrigger(t ledger.Trigger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.triggers[t.ID]; !ok {
		l.triggerOrder = append(l.triggerOrder, t.ID)
	}
	l.triggers[t.ID] = t
}

// Trigger returns the trigger registered under id.
func (l *Ledger) Trigger(id ledger.TriggerID) (ledger.Trigger, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.triggers[id]
	return t, ok
}

// TriggerIDs returns the registered trigger ids in registration order.
func (l *Ledger) TriggerIDs() []ledger.TriggerID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.TriggerID(nil), l.triggerOrder...)
}

// Transactions returns every accepted transaction, in submission order.
func (l *Ledger) Transactions() []*ledger.SignedTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ledger.SignedTransaction(nil), l.transactions...)
}

// Queries returns every query received.
func (l *Ledger) Queries() []*ledger.SignedQuery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ledger.SignedQuery(nil), l.queries...)
}

// HasDomain reports whether the domain was registered.
func (l *Ledger) HasDomain(id ledger.DomainID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.domains[id]
	return ok
}

// HasAssetDefinition reports whether the asset definition was registered.
func (l *Ledger) HasAssetDefinition(id ledger.AssetDefinitionID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.definitions[id]
	return ok
}

// HasAccount reports whether the account was registered.
func (l *Ledger) HasAccount(id ledger.AccountID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.accounts[id]
	return ok
}

// Metadata returns the key-values stored on an asset or asset definition.
func (l *Ledger) Metadata(object ledger.ObjectID) ledger.Metadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metadata[object.String()]
}

// Grants returns every permission granted so far.
func (l *Ledger) Grants() []ledger.GrantPermission {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.GrantPermission(nil), l.grants...)
}

// SendQuery implements ledger.Client. Results round-trip through JSON like
// they would over the wire.
func (l *Ledger) SendQuery(ctx context.Context, query *ledger.SignedQuery, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := query.Verify(); err != nil {
		return &ledger.RemoteError{Op: "query", Status: 401, Message: err.Error()}
	}

	l.mu.Lock()
	l.queries = append(l.queries, query)
	if l.QueryErr != nil {
		err := l.QueryErr
		l.mu.Unlock()
		return err
	}
	var answer interface{}
	switch q := query.Payload.Query.Query.(type) {
	case ledger.FindAllActiveTriggerIDs:
		answer = append([]ledger.TriggerID{}, l.triggerOrder...)
	case ledger.FindTriggerByID:
		t, ok := l.triggers[q.ID]
		if !ok {
			l.mu.Unlock()
			return &ledger.RemoteError{Op: "query " + q.Kind(), Status: 404, Message: fmt.Sprintf("trigger %s not found", q.ID)}
		}
		answer = t
	default:
		l.mu.Unlock()
		return &ledger.RemoteError{Op: "query", Status: 400, Message: fmt.Sprintf("unsupported query %T", q)}
	}
	l.mu.Unlock()

	encoded, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, result)
}

// SendTransaction implements ledger.Client.
func (l *Ledger) SendTransaction(ctx context.Context, tx *ledger.SignedTransaction) (ledger.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Verify(); err != nil {
		return nil, &ledger.RemoteError{Op: "submit transaction", Status: 401, Message: err.Error()}
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.SubmitErr != nil {
		return nil, l.SubmitErr
	}
	if l.FailSubmissionAfter > 0 && len(l.transactions) >= l.FailSubmissionAfter {
		return nil, &ledger.RemoteError{Op: "submit transaction", Status: 503, Message: "node unavailable"}
	}
	l.transactions = append(l.transactions, tx)

	p := &pending{hash: hash, never: l.NeverAcknowledge}
	if err := l.apply(tx.Instructions()); err != nil {
		p.err = &ledger.RemoteError{Op: "transaction " + hash.Hex(), Message: "rejected: " + err.Error()}
	}
	return p, nil
}

// apply executes instructions against a staged copy and commits only if all succeed.
func (l *Ledger) apply(instructions []ledger.Instruction) error {
	triggers := make(map[ledger.TriggerID]ledger.Trigger, len(l.triggers))
	for k, v := range l.triggers {
		triggers[k] = v
	}
	order := append([]ledger.TriggerID(nil), l.triggerOrder...)

	type kv struct {
		object string
		key    ledger.Name
		value  ledger.Value
	}
	var (
		domains     []ledger.DomainID
		accounts    []ledger.RegisterAccount
		definitions []ledger.AssetDefinitionID
		writes      []kv
		grants      []ledger.GrantPermission
	)

	for _, inst := range instructions {
		switch i := inst.(type) {
		case ledger.RegisterTrigger:
			if _, ok := triggers[i.Trigger.ID]; ok {
				return fmt.Errorf("trigger %s already exists", i.Trigger.ID)
			}
			triggers[i.Trigger.ID] = i.Trigger
			order = append(order, i.Trigger.ID)
		case ledger.UnregisterTrigger:
			if _, ok := triggers[i.ID]; !ok {
				return fmt.Errorf("trigger %s not found", i.ID)
			}
			delete(triggers, i.ID)
			for n, id := range order {
				if id == i.ID {
					order = append(order[:n:n], order[n+1:]...)
					break
				}
			}
		case ledger.RegisterDomain:
			domains = append(domains, i.ID)
		case ledger.RegisterAccount:
			accounts = append(accounts, i)
		case ledger.RegisterAssetDefinition:
			definitions = append(definitions, i.ID)
		case ledger.SetKeyValue:
			writes = append(writes, kv{i.Object.String(), i.Key, i.Value})
		case ledger.GrantPermission:
			grants = append(grants, i)
		default:
			return fmt.Errorf("unsupported instruction %s", inst.Kind())
		}
	}

	l.triggers = triggers
	l.triggerOrder = order
	for _, d := range domains {
		l.domains[d] = struct{}{}
	}
	for _, a := range accounts {
		l.accounts[a.ID] = a.Signatories
	}
	for _, d := range definitions {
		l.definitions[d] = struct{}{}
	}
	for _, w := range writes {
		md, ok := l.metadata[w.object]
		if !ok {
			md = ledger.Metadata{}
			l.metadata[w.object] = md
		}
		md[w.key] = w.value
	}
	l.grants = append(l.grants, grants...)
	return nil
}

type pending struct {
	hash  ledger.Hash
	err   error
	never bool
}

func (p *pending) Hash() ledger.Hash {
	return p.hash
}

func (p *pending) Await(ctx context.Context) error {
	if p.never {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.err
}
