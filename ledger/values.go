package ledger

import (
	"encoding/json"
	"fmt"
)

// ValueKind is the type tag of a Value.
type ValueKind uint8

const (
	// KindString is a UTF-8 string value.
	KindString ValueKind = iota
	// KindInt is a signed 64-bit integer value.
	KindInt
)

// Value is a typed value stored under a metadata key.
type Value struct {
	kind ValueKind
	str  string
	num  int64
}

// StringValue returns a string Value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// IntValue returns an integer Value.
func IntValue(n int64) Value {
	return Value{kind: KindInt, num: n}
}

// Kind returns the type tag of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// AsString returns the string payload and whether the value is a string.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt returns the integer payload and whether the value is an integer.
func (v Value) AsInt() (int64, bool) {
	return v.num, v.kind == KindInt
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	default:
		return v.str
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(map[string]string{"String": v.str})
	case KindInt:
		return json.Marshal(map[string]int64{"Int": v.num})
	default:
		return nil, fmt.Errorf("value: unsupported kind %d", v.kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("value: expected exactly one variant, got %d", len(raw))
	}
	for tag, body := range raw {
		switch tag {
		case "String":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return fmt.Errorf("value: %w", err)
			}
			*v = StringValue(s)
		case "Int":
			var n int64
			if err := json.Unmarshal(body, &n); err != nil {
				return fmt.Errorf("value: %w", err)
			}
			*v = IntValue(n)
		default:
			return fmt.Errorf("value: unsupported variant %q", tag)
		}
	}
	return nil
}

// Metadata is a key-value map attached to ledger entities.
type Metadata map[Name]Value
