package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Client submits signed queries and transactions to a ledger node.
type Client interface {
	// SendQuery evaluates the query and decodes its result into result.
	SendQuery(ctx context.Context, query *SignedQuery, result interface{}) error

	// SendTransaction submits the transaction. The returned handle can be
	// awaited for the node's acknowledgement.
	SendTransaction(ctx context.Context, tx *SignedTransaction) (Pending, error)
}

// Pending is a submitted transaction awaiting acknowledgement.
type Pending interface {
	// Hash identifies the submitted transaction.
	Hash() Hash

	// Await blocks until the transaction is committed, rejected, or ctx is done.
	Await(ctx context.Context) error
}

// Signer is an account together with the key pair it signs with.
type Signer struct {
	Account AccountID
	Keys    *KeyPair
}

// QueryActiveTriggerIDs returns the identifiers of all active triggers
// visible to the signer's account.
func QueryActiveTriggerIDs(ctx context.Context, c Client, signer Signer, now time.Time) ([]TriggerID, error) {
	q, err := SignQuery(FindAllActiveTriggerIDs{}, signer.Account, signer.Keys, now)
	if err != nil {
		return nil, err
	}
	var ids []TriggerID
	if err := c.SendQuery(ctx, q, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// QueryTriggerByID fetches the trigger registered under id.
func QueryTriggerByID(ctx context.Context, c Client, signer Signer, id TriggerID, now time.Time) (*Trigger, error) {
	q, err := SignQuery(FindTriggerByID{ID: id}, signer.Account, signer.Keys, now)
	if err != nil {
		return nil, err
	}
	var trigger Trigger
	if err := c.SendQuery(ctx, q, &trigger); err != nil {
		return nil, err
	}
	return &trigger, nil
}

// Submit sends tx and waits up to ackTimeout for its acknowledgement.
// Exceeding the timeout yields ErrSubmissionTimeout; cancellation of ctx
// itself is returned as is.
func Submit(ctx context.Context, c Client, tx *SignedTransaction, ackTimeout time.Duration) (Hash, error) {
	pending, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return Hash{}, err
	}
	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	if err := pending.Await(ackCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return pending.Hash(), fmt.Errorf("%w: transaction %s after %s", ErrSubmissionTimeout, pending.Hash(), ackTimeout)
		}
		return pending.Hash(), err
	}
	return pending.Hash(), nil
}

// MatchPrefix returns, in lexicographic order, every id whose name starts with prefix.
func MatchPrefix(ids []TriggerID, prefix string) []TriggerID {
	var matches []TriggerID
	for _, id := range ids {
		if strings.HasPrefix(string(id.Name), prefix) {
			matches = append(matches, id)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Name < matches[j].Name
	})
	return matches
}
