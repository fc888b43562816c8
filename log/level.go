package log

import (
	"fmt"
	"strings"
)

// Level is a log level. It implements the pflag.Value interface so it can
// back a command line flag as well as the `log.level` config key.
type Level uint

const (
	// LevelDebug is the log level for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the log level for informative messages.
	LevelInfo
	// LevelWarn is the log level for warning messages.
	LevelWarn
	// LevelError is the log level for error messages.
	LevelError
)

// levelNames is indexed by Level.
var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// levelAliases are accepted by Set in addition to the canonical names.
var levelAliases = map[string]Level{"WARNING": LevelWarn}

func (l *Level) String() string {
	if int(*l) < len(levelNames) {
		return levelNames[*l]
	}
	return fmt.Sprintf("Level(%d)", uint(*l))
}

// Set parses s case-insensitively.
func (l *Level) Set(s string) error {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			*l = Level(i)
			return nil
		}
	}
	if alias, ok := levelAliases[name]; ok {
		*l = alias
		return nil
	}
	return fmt.Errorf("logging: invalid log level: '%s'", s)
}

func (l *Level) Type() string {
	return "[" + strings.Join(levelNames[:], ",") + "]"
}

// ParseLevel returns the Level named by s. On error the returned level is
// LevelInfo.
func ParseLevel(s string) (Level, error) {
	var l Level
	if err := l.Set(s); err != nil {
		return LevelInfo, err
	}
	return l, nil
}
