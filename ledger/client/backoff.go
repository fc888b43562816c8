package client

import (
	"context"
	"fmt"
	"time"
)

// backoff doubles the wait between status polls up to a maximum.
type backoff struct {
	currentTimeout time.Duration
	maximumTimeout time.Duration
}

func newBackoff(initialTimeout time.Duration, maximumTimeout time.Duration) (*backoff, error) {
	if initialTimeout <= 0 {
		return nil, fmt.Errorf("initial poll interval %s must be positive", initialTimeout)
	}
	if maximumTimeout < initialTimeout {
		return nil, fmt.Errorf("maximum poll interval %s below initial interval %s", maximumTimeout, initialTimeout)
	}
	return &backoff{currentTimeout: initialTimeout, maximumTimeout: maximumTimeout}, nil
}

// Wait sleeps for the current interval, or until ctx is done.
func (b *backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.currentTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	b.currentTimeout *= 2
	if b.currentTimeout > b.maximumTimeout {
		b.currentTimeout = b.maximumTimeout
	}
	return nil
}

// Timeout returns the backoff timeout.
func (b *backoff) Timeout() time.Duration {
	return b.currentTimeout
}
