package triggers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/fraudledger/migrate/ledger"
)

// WasmSuffix marks trigger executables in a source directory.
const WasmSuffix = ".wasm"

// Unit is one WASM executable read from the source. Its name is the file
// name without the WASM suffix and is used as a trigger name prefix.
type Unit struct {
	Name    ledger.Name
	Path    string
	Payload []byte
}

func unitName(path string) (ledger.Name, error) {
	base := strings.TrimSuffix(filepath.Base(path), WasmSuffix)
	name, err := ledger.ParseName(base)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidUnitName, path, err)
	}
	return name, nil
}

// LoadUnits enumerates the units named by source. In register mode source
// must be a single regular file; otherwise source is walked recursively
// and every regular file ending in WasmSuffix is a unit. Files sharing a
// name collapse into one unit holding the last path walked.
func LoadUnits(fs afero.Fs, source string, mode Mode) ([]Unit, error) {
	if mode == ModeRegister {
		info, err := fs.Stat(source)
		if err != nil || !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrInputNotFound, source)
		}
		name, err := unitName(source)
		if err != nil {
			return nil, err
		}
		payload, err := afero.ReadFile(fs, source)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", source, err)
		}
		return []Unit{{Name: name, Path: source, Payload: payload}}, nil
	}

	var units []Unit
	index := map[ledger.Name]int{}
	err := afero.Walk(fs, source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() || !strings.HasSuffix(info.Name(), WasmSuffix) {
			return nil
		}
		name, err := unitName(path)
		if err != nil {
			return err
		}
		payload, err := afero.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		unit := Unit{Name: name, Path: path, Payload: payload}
		if i, ok := index[name]; ok {
			units[i] = unit
			return nil
		}
		index[name] = len(units)
		units = append(units, unit)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrInputNotFound, source, err)
		}
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: no %s files under %s", ErrInputNotFound, WasmSuffix, source)
	}
	return units, nil
}
