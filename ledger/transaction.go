package ledger

import (
	"fmt"
	"time"
)

// DefaultTransactionTTL is how long a submitted transaction stays valid.
const DefaultTransactionTTL = 100 * time.Second

// TransactionPayload is the signed part of a transaction.
type TransactionPayload struct {
	Account        AccountID        `json:"account_id"`
	Instructions   []InstructionBox `json:"instructions"`
	CreationTimeMs uint64           `json:"creation_time_ms"`
	TimeToLiveMs   uint64           `json:"time_to_live_ms"`
}

// SignedTransaction is a transaction payload with its signatures.
type SignedTransaction struct {
	Payload    TransactionPayload `json:"payload"`
	Signatures []Signature        `json:"signatures"`
}

// Hash returns the payload digest the node uses to identify the transaction.
func (tx *SignedTransaction) Hash() (Hash, error) {
	h, _, err := hashJSON(tx.Payload)
	return h, err
}

// Verify checks that the transaction carries at least one signature and
// that all signatures are valid.
func (tx *SignedTransaction) Verify() error {
	h, err := tx.Hash()
	if err != nil {
		return err
	}
	if len(tx.Signatures) == 0 {
		return fmt.Errorf("transaction %s: no signatures", h)
	}
	for _, sig := range tx.Signatures {
		if !sig.Verify(h[:]) {
			return fmt.Errorf("transaction %s: invalid signature by %s", h, sig.PublicKey)
		}
	}
	return nil
}

// Instructions returns the unboxed instructions of the transaction.
func (tx *SignedTransaction) Instructions() []Instruction {
	out := make([]Instruction, len(tx.Payload.Instructions))
	for i, b := range tx.Payload.Instructions {
		out[i] = b.Instruction
	}
	return out
}

// TransactionBuilder accumulates instructions for one account.
type TransactionBuilder struct {
	account      AccountID
	instructions []Instruction
}

// NewTransaction starts a transaction on behalf of account.
func NewTransaction(account AccountID) *TransactionBuilder {
	return &TransactionBuilder{account: account}
}

// Add appends instructions.
func (b *TransactionBuilder) Add(instructions ...Instruction) *TransactionBuilder {
	b.instructions = append(b.instructions, instructions...)
	return b
}

// BuildSigned freezes the payload and signs it.
func (b *TransactionBuilder) BuildSigned(keys *KeyPair, now time.Time) (*SignedTransaction, error) {
	if len(b.instructions) == 0 {
		return nil, fmt.Errorf("transaction for %s has no instructions", b.account)
	}
	tx := &SignedTransaction{
		Payload: TransactionPayload{
			Account:        b.account,
			Instructions:   Box(b.instructions...),
			CreationTimeMs: uint64(now.UnixMilli()),
			TimeToLiveMs:   uint64(DefaultTransactionTTL / time.Millisecond),
		},
	}
	h, err := tx.Hash()
	if err != nil {
		return nil, fmt.Errorf("encoding transaction: %w", err)
	}
	tx.Signatures = []Signature{keys.Sign(h[:])}
	return tx, nil
}
