package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Query is a read request evaluated by the node.
type Query interface {
	Kind() string
}

const (
	KindFindAllActiveTriggerIDs = "FindAllActiveTriggerIds"
	KindFindTriggerByID         = "FindTriggerById"
)

// FindAllActiveTriggerIDs lists the identifiers of every active trigger.
type FindAllActiveTriggerIDs struct{}

func (FindAllActiveTriggerIDs) Kind() string { return KindFindAllActiveTriggerIDs }

// FindTriggerByID fetches the full trigger record.
type FindTriggerByID struct {
	ID TriggerID `json:"id"`
}

func (FindTriggerByID) Kind() string { return KindFindTriggerByID }

// QueryBox gives a Query its tagged JSON encoding.
type QueryBox struct {
	Query
}

func (b QueryBox) MarshalJSON() ([]byte, error) {
	if b.Query == nil {
		return nil, fmt.Errorf("query: nil")
	}
	return json.Marshal(map[string]Query{b.Kind(): b.Query})
}

func (b *QueryBox) UnmarshalJSON(data []byte) error {
	kind, body, err := singleVariant(data)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	switch kind {
	case KindFindAllActiveTriggerIDs:
		b.Query = FindAllActiveTriggerIDs{}
	case KindFindTriggerByID:
		var q FindTriggerByID
		if err := json.Unmarshal(body, &q); err != nil {
			return fmt.Errorf("query %s: %w", kind, err)
		}
		b.Query = q
	default:
		return fmt.Errorf("query: unsupported kind %q", kind)
	}
	return nil
}

// QueryPayload is the signed part of a query.
type QueryPayload struct {
	Account     AccountID `json:"account_id"`
	Query       QueryBox  `json:"query"`
	TimestampMs uint64    `json:"timestamp_ms"`
}

// SignedQuery is a query payload with the caller's signature.
type SignedQuery struct {
	Payload   QueryPayload `json:"payload"`
	Signature Signature    `json:"signature"`
}

// SignQuery builds a query scoped to account and signs it.
func SignQuery(q Query, account AccountID, keys *KeyPair, now time.Time) (*SignedQuery, error) {
	payload := QueryPayload{
		Account:     account,
		Query:       QueryBox{q},
		TimestampMs: uint64(now.UnixMilli()),
	}
	h, _, err := hashJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding query %s: %w", q.Kind(), err)
	}
	return &SignedQuery{
		Payload:   payload,
		Signature: keys.Sign(h[:]),
	}, nil
}

// Verify checks the query signature.
func (q *SignedQuery) Verify() error {
	h, _, err := hashJSON(q.Payload)
	if err != nil {
		return err
	}
	if !q.Signature.Verify(h[:]) {
		return fmt.Errorf("query: invalid signature")
	}
	return nil
}
