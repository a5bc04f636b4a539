package lifecycle

import (
	"context"

	"github.com/go-kit/kit/log"

	"github.com/openverse/conductor/pkg/ingest"
)

type ID string

type StatusString string

const (
	StatusQueued    StatusString = "queued"
	StatusRunning   StatusString = "running"
	StatusFailed    StatusString = "failed"
	StatusSucceeded StatusString = "succeeded"
)

// Status holds the possible states of a lifecycle job; either,
//  1. queued or otherwise pending
//  2. succeeded
//  3. failed, with the error that stopped it
type Status struct {
	StatusString StatusString `json:"status"`
	Err          string       `json:"error,omitempty"`

	// the typed error behind Err; in-process callers use this to tell
	// precondition violations and cancellations from plain failures.
	// It doesn't survive serialization.
	cause error
}

func (s Status) Error() string {
	return s.Err
}

// Cause returns the typed error a failed job stopped with, if this
// Status was produced in-process.
func (s Status) Cause() error {
	return s.cause
}

func (s Status) Terminal() bool {
	return s.StatusString == StatusSucceeded || s.StatusString == StatusFailed
}

func failedStatus(err error) Status {
	return Status{StatusString: StatusFailed, Err: err.Error(), cause: err}
}

type jobFunc func(ctx context.Context, logger log.Logger) error

// Job is one queued lifecycle mutation for a model.
type Job struct {
	ID      ID
	Request ingest.TaskRequest
	Do      jobFunc
}
