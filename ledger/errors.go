package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteFailure is returned when a query or submission fails on the
	// transport or is rejected by the node.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrSubmissionTimeout is returned when a submitted transaction is not
	// acknowledged within the acknowledgement timeout.
	ErrSubmissionTimeout = errors.New("submission acknowledgement timed out")
)

// RemoteError describes a failed round-trip to the node.
type RemoteError struct {
	// Op is the operation that failed, e.g. "query FindTriggerById".
	Op string
	// Status is the HTTP status, if the node answered at all.
	Status int
	// Message is the node's error body or the transport error text.
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: node returned %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteFailure
}
