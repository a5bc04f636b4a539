package gate

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openverse/conductor/pkg/probe"
	"github.com/openverse/conductor/pkg/retry"
)

// readyAfter reports not-ready until it has been probed the given
// number of times.
type readyAfter struct {
	calls int
	after int
}

func (p *readyAfter) Probe(ctx context.Context, endpoint probe.ServiceEndpoint) probe.Result {
	p.calls++
	if p.calls >= p.after {
		code := http.StatusOK
		return probe.Result{StatusCode: &code, Timestamp: time.Now()}
	}
	return probe.Result{Error: "connection refused", Timestamp: time.Now()}
}

var ingestionEndpoint = probe.ServiceEndpoint{
	Name:           "ingestion",
	URL:            "http://localhost:8001/",
	ExpectedStatus: http.StatusOK,
}

// A service that answers on the third poll at 5s intervals should be
// reported ready after 3 attempts, between 10s and 15s in.
func TestWaitReadyAfterThirdPoll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	g := &Gate{
		Prober:   &readyAfter{after: 3},
		Clock:    clock,
		Timeout:  300 * time.Second,
		Interval: 5 * time.Second,
	}

	type waitResult struct {
		outcome Outcome
		err     error
	}
	done := make(chan waitResult)
	go func() {
		outcome, err := g.WaitReady(context.Background(), ingestionEndpoint)
		done <- waitResult{outcome, err}
	}()

	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(5 * time.Second)
	}
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, Ready, res.outcome.State)
	assert.Equal(t, 3, res.outcome.Attempts)
	assert.True(t, res.outcome.Elapsed >= 10*time.Second && res.outcome.Elapsed < 15*time.Second,
		"elapsed %v outside [10s,15s)", res.outcome.Elapsed)
	assert.True(t, res.outcome.Ready())
}

func TestWaitReadyTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	observed := 0
	g := &Gate{
		Prober:   &readyAfter{after: 1 << 30},
		Observer: func(endpoint probe.ServiceEndpoint, attempt int, result probe.Result) { observed++ },
		Clock:    clock,
		Timeout:  15 * time.Second,
		Interval: 5 * time.Second,
	}

	done := make(chan error)
	var outcome Outcome
	go func() {
		var err error
		outcome, err = g.WaitReady(context.Background(), ingestionEndpoint)
		done <- err
	}()

	for i := 0; i < 3; i++ {
		clock.BlockUntil(1)
		clock.Advance(5 * time.Second)
	}
	err := <-done
	require.Error(t, err)
	assert.True(t, retry.IsTimeout(err))
	assert.Equal(t, TimedOut, outcome.State)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, observed)
	assert.True(t, outcome.Elapsed >= 15*time.Second)
	assert.False(t, outcome.Ready())
}

func TestWaitReadyCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gate{
		Prober:   &readyAfter{after: 1 << 30},
		Clock:    clock,
		Timeout:  300 * time.Second,
		Interval: 5 * time.Second,
	}

	done := make(chan error)
	var outcome Outcome
	go func() {
		var err error
		outcome, err = g.WaitReady(ctx, ingestionEndpoint)
		done <- err
	}()

	clock.BlockUntil(1)
	cancel()
	err := <-done
	require.Error(t, err)
	assert.True(t, retry.IsCancelled(err))
	assert.Equal(t, Cancelled, outcome.State)
	assert.False(t, outcome.Ready())
}
