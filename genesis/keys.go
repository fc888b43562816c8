package genesis

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"

	"github.com/fraudledger/migrate/ledger"
)

// WriteKeyPair stores keys as JSON readable only by the owner.
func WriteKeyPair(fs afero.Fs, path string, keys *ledger.KeyPair) error {
	encoded, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, append(encoded, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing key pair to %s: %w", path, err)
	}
	return nil
}

// ReadKeyPair loads a key pair written by WriteKeyPair.
func ReadKeyPair(fs afero.Fs, path string) (*ledger.KeyPair, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var keys ledger.KeyPair
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("parsing key pair %s: %w", path, err)
	}
	return &keys, nil
}
