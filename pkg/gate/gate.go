package gate

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	condmetrics "github.com/openverse/conductor/pkg/metrics"
	"github.com/openverse/conductor/pkg/probe"
	"github.com/openverse/conductor/pkg/retry"
)

// State of a wait. A gate starts Waiting and moves to exactly one of
// the terminal states; there is no way back.
type State string

const (
	Waiting   State = "waiting"
	Ready     State = "ready"
	TimedOut  State = "timed-out"
	Cancelled State = "cancelled"
)

// Outcome is the terminal record of one WaitReady call.
type Outcome struct {
	Service  string        `json:"service"`
	State    State         `json:"state"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
}

func (o Outcome) Ready() bool {
	return o.State == Ready
}

// Observer is told about each probe attempt as it happens. Reporting
// (console, logs) lives with the caller, not here.
type Observer func(endpoint probe.ServiceEndpoint, attempt int, result probe.Result)

// Gate blocks until a service reports ready, polling its health
// endpoint at a fixed interval for a bounded time.
type Gate struct {
	Prober   probe.Prober
	Observer Observer
	Clock    clockwork.Clock
	Timeout  time.Duration
	Interval time.Duration
}

func New(p probe.Prober) *Gate {
	return &Gate{
		Prober:  p,
		Clock:   clockwork.NewRealClock(),
		Timeout: retry.DefaultTimeout,
		// Interval left zero; retry.AwaitCondition applies its default
	}
}

// WaitReady probes the endpoint until it is ready or the gate times
// out. The outcome is always terminal: Ready on success, TimedOut with
// the retry loop's *retry.TimeoutError alongside (so the orchestrator
// cannot ignore it silently), or Cancelled with a *retry.CancelledError
// when ctx is cancelled mid-wait.
func (g *Gate) WaitReady(ctx context.Context, endpoint probe.ServiceEndpoint) (Outcome, error) {
	clock := g.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	start := clock.Now()
	attempts := 0
	err := retry.AwaitCondition(ctx, clock, func(ctx context.Context) bool {
		attempts++
		result := g.Prober.Probe(ctx, endpoint)
		if g.Observer != nil {
			g.Observer(endpoint, attempts, result)
		}
		return result.Ready()
	}, g.Timeout, g.Interval)

	outcome := Outcome{
		Service:  endpoint.Name,
		State:    Waiting,
		Attempts: attempts,
		Elapsed:  clock.Now().Sub(start),
	}
	switch err.(type) {
	case nil:
		outcome.State = Ready
	case *retry.TimeoutError:
		outcome.State = TimedOut
	case *retry.CancelledError:
		outcome.State = Cancelled
	}
	waitDuration.With(
		condmetrics.LabelService, endpoint.Name,
		condmetrics.LabelSuccess, boolLabel(outcome.Ready()),
	).Observe(outcome.Elapsed.Seconds())
	return outcome, err
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
