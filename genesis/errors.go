package genesis

import "errors"

var (
	// ErrMalformedGenesisInput is returned when the genesis document does
	// not have the expected block shape.
	ErrMalformedGenesisInput = errors.New("malformed genesis input")

	// ErrUnsupportedValueType is returned for a schema field of unknown type.
	ErrUnsupportedValueType = errors.New("unsupported value type")

	// ErrMalformedRow is returned when a CSV row lacks a mapped column.
	ErrMalformedRow = errors.New("malformed row")

	// ErrInvalidField is returned when a CSV value cannot be converted to
	// its field type.
	ErrInvalidField = errors.New("invalid field")
)
