package triggers

import (
	"fmt"
	"strings"
)

// Mode selects what Reconcile does with each unit. It implements the
// pflag.Value interface.
type Mode uint

const (
	// ModeDefault replaces each existing trigger's executable.
	ModeDefault Mode = iota
	// ModeRegister registers a single new trigger.
	ModeRegister
	// ModeUnregister removes existing triggers.
	ModeUnregister
)

// String returns the string representation of a Mode.
func (m *Mode) String() string {
	switch *m {
	case ModeDefault:
		return "default"
	case ModeRegister:
		return "register"
	case ModeUnregister:
		return "unregister"
	default:
		return fmt.Sprintf("Mode(%d)", uint(*m))
	}
}

// Set sets the Mode to the value specified by the provided string. The
// numeric forms 0, 1 and 2 are accepted as aliases.
func (m *Mode) Set(s string) error {
	switch strings.ToLower(s) {
	case "default", "0":
		*m = ModeDefault
	case "register", "1":
		*m = ModeRegister
	case "unregister", "2":
		*m = ModeUnregister
	default:
		return fmt.Errorf("triggers: invalid mode: '%s'", s)
	}
	return nil
}

// Type returns the list of supported Modes.
func (m *Mode) Type() string {
	return "[default,register,unregister]"
}

func (m Mode) unregisters() bool {
	return m == ModeDefault || m == ModeUnregister
}

func (m Mode) registers() bool {
	return m == ModeDefault || m == ModeRegister
}

// TriggerType selects the event filter of newly registered triggers. It
// implements the pflag.Value interface.
type TriggerType uint

const (
	// TriggerTypeTime fires periodically; the argument is the period in seconds.
	TriggerTypeTime TriggerType = iota
	// TriggerTypeAccountMetadata fires on account metadata insertion; the
	// optional argument restricts it to one origin account.
	TriggerTypeAccountMetadata
)

// String returns the string representation of a TriggerType.
func (t *TriggerType) String() string {
	switch *t {
	case TriggerTypeTime:
		return "time"
	case TriggerTypeAccountMetadata:
		return "data-by-account-metadata"
	default:
		return fmt.Sprintf("TriggerType(%d)", uint(*t))
	}
}

// Set sets the TriggerType to the value specified by the provided string.
// The numeric forms 0 and 1 are accepted as aliases.
func (t *TriggerType) Set(s string) error {
	switch strings.ToLower(s) {
	case "time", "0":
		*t = TriggerTypeTime
	case "data-by-account-metadata", "1":
		*t = TriggerTypeAccountMetadata
	default:
		return fmt.Errorf("triggers: invalid trigger type: '%s'", s)
	}
	return nil
}

// Type returns the list of supported TriggerTypes.
func (t *TriggerType) Type() string {
	return "[time,data-by-account-metadata]"
}
