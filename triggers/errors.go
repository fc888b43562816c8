package triggers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fraudledger/migrate/ledger"
)

var (
	// ErrInputNotFound is returned when the source holds no usable WASM unit.
	ErrInputNotFound = errors.New("input not found")

	// ErrUnknownTrigger is returned when a unit matches no existing trigger.
	ErrUnknownTrigger = errors.New("unknown trigger")

	// ErrAmbiguousTrigger is returned when several units resolve to the
	// same trigger.
	ErrAmbiguousTrigger = errors.New("ambiguous trigger")

	// ErrTriggerAlreadyExists is returned when registering a unit whose name
	// matches an existing trigger.
	ErrTriggerAlreadyExists = errors.New("trigger already exists")

	// ErrInvalidUnitName is returned when a unit's file name yields no
	// usable trigger name.
	ErrInvalidUnitName = errors.New("invalid unit name")

	// ErrInvalidArgument is returned for unusable repeat, account or filter
	// arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// UnknownTriggerError lists the units that matched no discovered trigger.
type UnknownTriggerError struct {
	// Found are the trigger ids discovered on the ledger.
	Found []ledger.TriggerID
	// Provided are the unit names without a matching trigger.
	Provided []string
}

func (e *UnknownTriggerError) Error() string {
	found := make([]string, len(e.Found))
	for i, id := range e.Found {
		found[i] = id.String()
	}
	return fmt.Sprintf("%s: no trigger matches [%s]; found [%s]",
		ErrUnknownTrigger, strings.Join(e.Provided, ", "), strings.Join(found, ", "))
}

func (e *UnknownTriggerError) Is(target error) bool {
	return target == ErrUnknownTrigger
}

// AmbiguousTriggerError names the units that all resolve to one trigger.
type AmbiguousTriggerError struct {
	Trigger ledger.TriggerID
	Units   []string
}

func (e *AmbiguousTriggerError) Error() string {
	return fmt.Sprintf("%s: units [%s] all resolve to %s", ErrAmbiguousTrigger, strings.Join(e.Units, ", "), e.Trigger)
}

func (e *AmbiguousTriggerError) Is(target error) bool {
	return target == ErrAmbiguousTrigger
}
