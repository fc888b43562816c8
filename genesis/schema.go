package genesis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fraudledger/migrate/ledger"
)

// ValueType is the type a CSV column is converted to.
type ValueType string

const (
	// TypeString stores the column verbatim.
	TypeString ValueType = "string"
	// TypeInt stores the column as a signed integer.
	TypeInt ValueType = "int"
	// TypeDate stores the column as epoch seconds.
	TypeDate ValueType = "date"
)

const (
	// DefaultDateLayout is the layout of date columns.
	DefaultDateLayout = "2006-01-02 15:04:05"
	// DefaultExpiryOffset is added to the expiry column.
	DefaultExpiryOffset = 120 * 24 * time.Hour
)

// Field maps one CSV column to a metadata key.
type Field struct {
	Name   ledger.Name
	Column int
	Type   ValueType
}

// Schema is the column table of the fraud record CSV.
type Schema struct {
	// ID names the asset definition of each row.
	ID Field
	// Attributes are stored on the asset, in order.
	Attributes []Field
	// Expiry is a date column stored with ExpiryOffset added.
	Expiry       Field
	ExpiryOffset time.Duration
	// DateLayout parses date columns, in UTC.
	DateLayout string
}

// DefaultSchema is the column table of the fraud record export.
func DefaultSchema() Schema {
	return Schema{
		ID: Field{Name: "id", Column: 0, Type: TypeString},
		Attributes: []Field{
			{Name: "ft", Column: 12, Type: TypeInt},
			{Name: "org", Column: 4, Type: TypeString},
			{Name: "dst", Column: 5, Type: TypeString},
			{Name: "sts", Column: 14, Type: TypeInt},
			{Name: "ts", Column: 1, Type: TypeDate},
		},
		Expiry:       Field{Name: "ed", Column: 1, Type: TypeDate},
		ExpiryOffset: DefaultExpiryOffset,
		DateLayout:   DefaultDateLayout,
	}
}

// Validate checks that every field has a usable column and type.
func (s Schema) Validate() error {
	fields := append([]Field{s.ID, s.Expiry}, s.Attributes...)
	for _, f := range fields {
		if _, err := ledger.ParseName(string(f.Name)); err != nil {
			return fmt.Errorf("schema field %q: %w", f.Name, err)
		}
		if f.Column < 0 {
			return fmt.Errorf("schema field %s: negative column %d", f.Name, f.Column)
		}
		switch f.Type {
		case TypeString, TypeInt, TypeDate:
		default:
			return fmt.Errorf("%w: field %s has type %q", ErrUnsupportedValueType, f.Name, f.Type)
		}
	}
	if s.ID.Type != TypeString {
		return fmt.Errorf("%w: id field must be a string, got %q", ErrUnsupportedValueType, s.ID.Type)
	}
	if s.Expiry.Type != TypeDate {
		return fmt.Errorf("%w: expiry field must be a date, got %q", ErrUnsupportedValueType, s.Expiry.Type)
	}
	if s.DateLayout == "" {
		return fmt.Errorf("schema: empty date layout")
	}
	return nil
}

// column returns the raw value of f in record.
func column(record []string, f Field) (string, error) {
	if f.Column >= len(record) {
		return "", fmt.Errorf("%w: field %s needs column %d, row has %d", ErrMalformedRow, f.Name, f.Column, len(record))
	}
	return record[f.Column], nil
}

func (s Schema) parseDate(f Field, raw string) (time.Time, error) {
	t, err := time.ParseInLocation(s.DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.Name, err)
	}
	return t, nil
}

// value converts the raw column of f to its typed value.
func (s Schema) value(f Field, raw string) (ledger.Value, error) {
	switch f.Type {
	case TypeString:
		return ledger.StringValue(raw), nil
	case TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return ledger.Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, f.Name, err)
		}
		return ledger.IntValue(n), nil
	case TypeDate:
		t, err := s.parseDate(f, raw)
		if err != nil {
			return ledger.Value{}, err
		}
		return ledger.IntValue(t.Unix()), nil
	default:
		return ledger.Value{}, fmt.Errorf("%w: field %s has type %q", ErrUnsupportedValueType, f.Name, f.Type)
	}
}
