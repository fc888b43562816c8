package log

import (
	"fmt"
	"strings"
)

// Format is a log line encoding. It implements the pflag.Value interface.
type Format uint

const (
	// FmtLogfmt encodes lines as logfmt key=value pairs.
	FmtLogfmt Format = iota
	// FmtJSON encodes lines as JSON objects.
	FmtJSON
)

// formatNames is indexed by Format.
var formatNames = [...]string{"logfmt", "JSON"}

func (f *Format) String() string {
	if int(*f) < len(formatNames) {
		return formatNames[*f]
	}
	return fmt.Sprintf("Format(%d)", uint(*f))
}

// Set parses s case-insensitively.
func (f *Format) Set(s string) error {
	for i, n := range formatNames {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			*f = Format(i)
			return nil
		}
	}
	return fmt.Errorf("logging: invalid log format: '%s'", s)
}

func (f *Format) Type() string {
	return "[" + strings.Join(formatNames[:], ",") + "]"
}

// ParseFormat returns the Format named by s. On error the returned format
// is FmtJSON.
func ParseFormat(s string) (Format, error) {
	var f Format
	if err := f.Set(s); err != nil {
		return FmtJSON, err
	}
	return f, nil
}
