package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Trigger is an event-driven executable registered on the ledger.
type Trigger struct {
	ID     TriggerID `json:"id"`
	Action Action    `json:"action"`
}

// Action describes what a trigger executes, how often and on which events.
type Action struct {
	Executable       Executable  `json:"executable"`
	Repeats          Repeats     `json:"repeats"`
	TechnicalAccount *AccountID  `json:"technical_account,omitempty"`
	Filter           EventFilter `json:"filter"`
	Metadata         Metadata    `json:"metadata"`
}

// Executable is the code run by a trigger.
type Executable struct {
	Wasm []byte `json:"Wasm"`
}

// Repeats is the repeat policy of a trigger: Indefinitely or Exactly(n).
type Repeats struct {
	exactly *uint32
}

// Indefinitely returns a policy that never exhausts.
func Indefinitely() Repeats {
	return Repeats{}
}

// Exactly returns a policy that fires n times.
func Exactly(n uint32) Repeats {
	return Repeats{exactly: &n}
}

// Count returns the exact repeat count, or false for Indefinitely.
func (r Repeats) Count() (uint32, bool) {
	if r.exactly == nil {
		return 0, false
	}
	return *r.exactly, true
}

// Equal reports whether both policies are the same.
func (r Repeats) Equal(other Repeats) bool {
	a, aok := r.Count()
	b, bok := other.Count()
	return aok == bok && a == b
}

func (r Repeats) String() string {
	if n, ok := r.Count(); ok {
		return fmt.Sprintf("Exactly(%d)", n)
	}
	return "Indefinitely"
}

func (r Repeats) MarshalJSON() ([]byte, error) {
	if n, ok := r.Count(); ok {
		return json.Marshal(map[string]uint32{"Exactly": n})
	}
	return json.Marshal("Indefinitely")
}

func (r *Repeats) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "Indefinitely" {
			return fmt.Errorf("repeats: unsupported variant %q", s)
		}
		*r = Indefinitely()
		return nil
	}
	var exact struct {
		Exactly *uint32 `json:"Exactly"`
	}
	if err := json.Unmarshal(data, &exact); err != nil {
		return fmt.Errorf("repeats: %w", err)
	}
	if exact.Exactly == nil {
		return fmt.Errorf("repeats: missing Exactly count")
	}
	*r = Exactly(*exact.Exactly)
	return nil
}

// Duration is a seconds/nanoseconds pair as used by time schedules.
type Duration struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// EventFilter selects the events a trigger reacts to. Exactly one field is set.
type EventFilter struct {
	Time *TimeEventFilter `json:"Time,omitempty"`
	Data *DataEventFilter `json:"Data,omitempty"`
}

// TimeEventFilter fires at Start and then every Period.
type TimeEventFilter struct {
	Start  Duration  `json:"start"`
	Period *Duration `json:"period,omitempty"`
}

// DataEventFilter matches data events by entity and event kind.
type DataEventFilter struct {
	Entity string     `json:"entity"`
	Event  string     `json:"event"`
	Origin *AccountID `json:"origin,omitempty"`
}

// TimeFilter fires at start and then every interval. Sub-second precision is dropped.
func TimeFilter(start time.Time, interval time.Duration) EventFilter {
	return EventFilter{
		Time: &TimeEventFilter{
			Start:  Duration{Secs: uint64(start.Unix())},
			Period: &Duration{Secs: uint64(interval / time.Second)},
		},
	}
}

// AccountMetadataFilter matches metadata insertions on accounts, optionally
// only on the given origin account.
func AccountMetadataFilter(origin *AccountID) EventFilter {
	return EventFilter{
		Data: &DataEventFilter{
			Entity: "Account",
			Event:  "MetadataInserted",
			Origin: origin,
		},
	}
}

func (f EventFilter) String() string {
	switch {
	case f.Time != nil && f.Time.Period != nil:
		return fmt.Sprintf("Time(%d, %d)", f.Time.Start.Secs, f.Time.Period.Secs)
	case f.Time != nil:
		return fmt.Sprintf("Time(%d)", f.Time.Start.Secs)
	case f.Data != nil && f.Data.Origin != nil:
		return fmt.Sprintf("DataByAccountMetadata(%s)", f.Data.Origin)
	case f.Data != nil:
		return "DataByAccountMetadata"
	default:
		return "None"
	}
}
