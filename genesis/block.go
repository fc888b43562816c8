package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fraudledger/migrate/ledger"
)

const transactionsKey = "transactions"

// Transaction is one genesis transaction. Instructions are kept as raw
// JSON so kinds this tool does not model pass through unchanged.
type Transaction struct {
	Isi []json.RawMessage `json:"isi"`
}

// Block is a genesis block document. Top-level keys other than
// "transactions" are preserved.
type Block struct {
	Transactions []Transaction
	extra        map[string]json.RawMessage
}

// ReadBlock parses a genesis block document.
func ReadBlock(r io.Reader) (*Block, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGenesisInput, err)
	}
	txs, ok := raw[transactionsKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedGenesisInput, transactionsKey)
	}
	var block Block
	if err := json.Unmarshal(txs, &block.Transactions); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedGenesisInput, transactionsKey, err)
	}
	if block.Transactions == nil {
		return nil, fmt.Errorf("%w: %q is not a list", ErrMalformedGenesisInput, transactionsKey)
	}
	for i, tx := range block.Transactions {
		if tx.Isi == nil {
			return nil, fmt.Errorf("%w: transaction %d has no instruction list", ErrMalformedGenesisInput, i)
		}
	}
	delete(raw, transactionsKey)
	block.extra = raw
	return &block, nil
}

// Append adds a transaction holding instructions.
func (b *Block) Append(instructions []ledger.Instruction) error {
	isi := make([]json.RawMessage, len(instructions))
	for i, inst := range instructions {
		encoded, err := json.Marshal(ledger.InstructionBox{Instruction: inst})
		if err != nil {
			return fmt.Errorf("encoding %s: %w", inst.Kind(), err)
		}
		isi[i] = encoded
	}
	b.Transactions = append(b.Transactions, Transaction{Isi: isi})
	return nil
}

func (b *Block) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(b.extra)+1)
	for k, v := range b.extra {
		out[k] = v
	}
	txs := b.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	out[transactionsKey] = txs
	return json.Marshal(out)
}

// Write writes the block as indented JSON.
func (b *Block) Write(w io.Writer) error {
	encoded, err := json.Marshal(b)
	if err != nil {
		return err
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, encoded, "", "  "); err != nil {
		return err
	}
	indented.WriteByte('\n')
	_, err = indented.WriteTo(w)
	return err
}
