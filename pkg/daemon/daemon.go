package daemon

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log"

	"github.com/openverse/conductor/pkg/api"
	"github.com/openverse/conductor/pkg/gate"
	"github.com/openverse/conductor/pkg/ingest"
	"github.com/openverse/conductor/pkg/lifecycle"
	"github.com/openverse/conductor/pkg/search"
)

// Daemon is the running conductor: the coordinator plus the clients it
// fronts, exposed as the conductor API.
type Daemon struct {
	V           string
	Coordinator *lifecycle.Coordinator
	Ingest      ingest.Client
	Search      search.Client
	Logger      log.Logger

	mu       sync.RWMutex
	outcomes []gate.Outcome
}

// Invariant.
var _ api.Server = &Daemon{}

func (d *Daemon) Version(ctx context.Context) (string, error) {
	return d.V, nil
}

// Ping is healthy only when both backends the conductor drives are
// reachable.
func (d *Daemon) Ping(ctx context.Context) error {
	if err := d.Ingest.Ping(ctx); err != nil {
		return err
	}
	return d.Search.Healthy(ctx)
}

func (d *Daemon) SubmitTask(ctx context.Context, req ingest.TaskRequest) (lifecycle.ID, error) {
	return d.Coordinator.Submit(ctx, req)
}

func (d *Daemon) JobStatus(ctx context.Context, id lifecycle.ID) (lifecycle.Status, error) {
	return d.Coordinator.JobStatus(ctx, id)
}

func (d *Daemon) AliasState(ctx context.Context, model string) (map[string]string, error) {
	return d.Coordinator.AliasState(ctx, model)
}

// SetGateOutcomes records the result of stack bring-up so clients can
// inspect it later.
func (d *Daemon) SetGateOutcomes(outcomes []gate.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = outcomes
}

func (d *Daemon) GateOutcomes(ctx context.Context) ([]gate.Outcome, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]gate.Outcome, len(d.outcomes))
	copy(out, d.outcomes)
	return out, nil
}
