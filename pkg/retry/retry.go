package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultTimeout  = 300 * time.Second
	DefaultInterval = 5 * time.Second
)

// TimeoutError reports that a condition did not hold within the
// allotted time. Elapsed is at least the requested timeout; Attempts
// counts the checks made before giving up.
type TimeoutError struct {
	Elapsed  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %v (%d attempts)", e.Elapsed, e.Attempts)
}

// CancelledError reports a caller-initiated abort mid-wait. It is a
// cooperative outcome rather than a failure of the condition, but it
// is still returned as an error so no wait can resolve ambiguously.
type CancelledError struct {
	Attempts int
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("wait cancelled after %d attempts", e.Attempts)
}

func IsTimeout(err error) bool {
	_, ok := err.(*TimeoutError)
	return ok
}

func IsCancelled(err error) bool {
	_, ok := err.(*CancelledError)
	return ok
}

// AwaitCondition polls check until it returns true, the timeout
// elapses, or ctx is cancelled. The first check happens immediately;
// after a false result the loop waits out the full interval before
// checking again (a timer wait, never a busy spin). The clock is
// injectable so tests can drive the wait without real sleeping; pass
// clockwork.NewRealClock() otherwise.
func AwaitCondition(ctx context.Context, clock clockwork.Clock, check func(context.Context) bool, timeout, interval time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := clock.Now()
	for attempts := 1; ; attempts++ {
		if check(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return &CancelledError{Attempts: attempts}
		case <-clock.After(interval):
		}
		if elapsed := clock.Now().Sub(start); elapsed >= timeout {
			return &TimeoutError{Elapsed: elapsed, Attempts: attempts}
		}
	}
}
