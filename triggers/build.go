package triggers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fraudledger/migrate/ledger"
)

const maxPeriodSecs = int64(math.MaxInt64 / time.Second)

// RepeatsFromCount maps a repeat count to a policy: negative counts repeat
// indefinitely, others exactly that many times.
func RepeatsFromCount(n int64) (ledger.Repeats, error) {
	if n < 0 {
		return ledger.Indefinitely(), nil
	}
	if n > math.MaxUint32 {
		return ledger.Repeats{}, fmt.Errorf("%w: repeat count %d out of range", ErrInvalidArgument, n)
	}
	return ledger.Exactly(uint32(n)), nil
}

// ParseTechnicalAccount parses an optional technical account. An empty
// string yields nil.
func ParseTechnicalAccount(s string) (*ledger.AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := ledger.ParseAccountID(s)
	if err != nil {
		return nil, fmt.Errorf("%w: technical account: %v", ErrInvalidArgument, err)
	}
	return &id, nil
}

// BuildFilter builds the event filter of a new trigger. Time triggers start
// at now and repeat every argument seconds. Account metadata triggers
// optionally watch only the account named by argument.
func BuildFilter(tt TriggerType, argument string, now time.Time) (ledger.EventFilter, error) {
	argument = strings.TrimSpace(argument)
	switch tt {
	case TriggerTypeTime:
		secs, err := strconv.ParseInt(argument, 10, 64)
		if err != nil {
			return ledger.EventFilter{}, fmt.Errorf("%w: time trigger period %q: %v", ErrInvalidArgument, argument, err)
		}
		if secs <= 0 || secs > maxPeriodSecs {
			return ledger.EventFilter{}, fmt.Errorf("%w: time trigger period %d out of range", ErrInvalidArgument, secs)
		}
		return ledger.TimeFilter(now, time.Duration(secs)*time.Second), nil
	case TriggerTypeAccountMetadata:
		if argument == "" {
			return ledger.AccountMetadataFilter(nil), nil
		}
		origin, err := ledger.ParseAccountID(argument)
		if err != nil {
			return ledger.EventFilter{}, fmt.Errorf("%w: origin account: %v", ErrInvalidArgument, err)
		}
		return ledger.AccountMetadataFilter(&origin), nil
	default:
		return ledger.EventFilter{}, fmt.Errorf("%w: unsupported trigger type %d", ErrInvalidArgument, tt)
	}
}
