package api

import (
	"context"

	"github.com/openverse/conductor/pkg/gate"
	"github.com/openverse/conductor/pkg/ingest"
	"github.com/openverse/conductor/pkg/lifecycle"
)

// Server is the API conductord serves and conductorctl consumes.
type Server interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)

	// SubmitTask queues a lifecycle request and returns its job ID.
	SubmitTask(ctx context.Context, req ingest.TaskRequest) (lifecycle.ID, error)
	// JobStatus reports the state of a previously submitted job.
	JobStatus(ctx context.Context, id lifecycle.ID) (lifecycle.Status, error)
	// AliasState reports which suffix each of a model's aliases points at.
	AliasState(ctx context.Context, model string) (map[string]string, error)
	// GateOutcomes reports the readiness gates from stack bring-up.
	GateOutcomes(ctx context.Context) ([]gate.Outcome, error)
}
