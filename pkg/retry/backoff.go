package retry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultBackoffBase = 1 * time.Second
	DefaultBackoffCap  = 30 * time.Second
	DefaultMaxAttempts = 5
)

// Policy describes the exponential backoff applied between attempts
// at an operation that failed transiently.
type Policy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{
		Base:        DefaultBackoffBase,
		Cap:         DefaultBackoffCap,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Backoff returns the wait after the given (1-based) failed attempt:
// base, doubling each failure, capped.
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// WithBackoff invokes f, retrying while it fails with an error the
// transient classifier accepts. Errors the classifier refuses --
// terminal rejections, precondition violations -- are returned
// immediately, as is the last error once attempts are exhausted.
// Cancelling ctx during a wait returns a CancelledError.
func WithBackoff(ctx context.Context, clock clockwork.Clock, policy Policy, transient func(error) bool, f func(context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	for attempt := 1; ; attempt++ {
		err := f(ctx)
		if err == nil || !transient(err) {
			return err
		}
		if attempt >= policy.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return &CancelledError{Attempts: attempt}
		case <-clock.After(policy.Backoff(attempt)):
		}
	}
}
