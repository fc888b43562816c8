package genesis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// readRows calls fn for every record after the header. Line numbers count
// the header as line 1.
func readRows(r io.Reader, fn func(line int, record []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: header: %v", ErrMalformedRow, err)
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		line, _ := reader.FieldPos(0)
		if err := fn(line, record); err != nil {
			return fmt.Errorf("csv line %d: %w", line, err)
		}
	}
}
