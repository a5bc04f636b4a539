package stack

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/openverse/conductor/pkg/gate"
	"github.com/openverse/conductor/pkg/probe"
)

// ReadyWaiter is the slice of the gate the stack needs; injecting it
// keeps bring-up testable without a network.
type ReadyWaiter interface {
	WaitReady(ctx context.Context, endpoint probe.ServiceEndpoint) (gate.Outcome, error)
}

// Stack brings up a set of services in dependency order: each service
// must gate ready before the next is attempted. For the Openverse
// stack the order is search backend, then ingestion server, then API.
type Stack struct {
	Gate     ReadyWaiter
	Services []probe.ServiceEndpoint
	Logger   log.Logger
}

// Up gates each service in turn. The first service that fails to come
// ready aborts the sequence -- a timed-out or cancelled gate is never
// silently skipped -- and the outcomes gathered so far, including the
// failing one, are returned alongside the gate's error.
func (s *Stack) Up(ctx context.Context) ([]gate.Outcome, error) {
	outcomes := make([]gate.Outcome, 0, len(s.Services))
	for _, endpoint := range s.Services {
		s.Logger.Log("service", endpoint.Name, "url", endpoint.URL, "state", gate.Waiting)
		outcome, err := s.Gate.WaitReady(ctx, endpoint)
		outcomes = append(outcomes, outcome)
		if err != nil {
			s.Logger.Log("service", endpoint.Name, "state", outcome.State, "attempts", outcome.Attempts, "elapsed", outcome.Elapsed, "err", err)
			return outcomes, errors.Wrapf(err, "waiting for %s", endpoint.Name)
		}
		s.Logger.Log("service", endpoint.Name, "state", outcome.State, "attempts", outcome.Attempts, "elapsed", outcome.Elapsed)
	}
	return outcomes, nil
}
