package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of a Hash in bytes.
const HashSize = blake2b.Size256

// Hash is a blake2b-256 digest identifying a transaction or query payload.
type Hash [HashSize]byte

// hashJSON returns the canonical JSON encoding of v and its digest.
func hashJSON(v interface{}) (Hash, []byte, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return Hash{}, nil, err
	}
	return blake2b.Sum256(encoded), encoded, nil
}

// ParseHash parses a hex encoded hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hash: %w", err)
	}
	if len(raw) != HashSize {
		return h, fmt.Errorf("hash: invalid length %d", len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// Hex returns the hex encoding of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) String() string {
	return h.Hex()
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
