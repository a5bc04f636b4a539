package lifecycle

import (
	"fmt"

	"github.com/pkg/errors"

	conderr "github.com/openverse/conductor/pkg/errors"
	"github.com/openverse/conductor/pkg/ingest"
)

// PreconditionError marks a violated ordering or alias-safety
// invariant. The request was never sent anywhere, and sending it again
// unchanged cannot succeed, so it is never retried.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

func IsPrecondition(err error) bool {
	switch cause := errors.Cause(err).(type) {
	case *PreconditionError:
		return true
	case *conderr.Error:
		return cause.Type == conderr.Precondition
	default:
		return false
	}
}

// Error is the terminal failure of a lifecycle action, carrying the
// action and whatever stopped it.
type Error struct {
	Action ingest.Action
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Action, e.Cause)
}

func unknownJobError(id ID) error {
	return &conderr.Error{
		Type: conderr.Missing,
		Err:  fmt.Errorf("unknown job ID %s", id),
		Help: `The job ID requested is not known to this conductor.

Job statuses are kept for a limited number of jobs; if the job is old,
its status may simply have been evicted. Otherwise, check that you are
querying the same conductord the job was submitted to.
`,
	}
}

func invalidRequestError(err error) error {
	return &conderr.Error{
		Type: conderr.User,
		Err:  err,
		Help: `The request is incomplete or malformed:

    ` + err.Error() + `

Every request names a model; INGEST_UPSTREAM also needs an index
suffix, and PROMOTE and DELETE_INDEX need both a suffix and an alias.
`,
	}
}

func apiPreconditionError(err *PreconditionError) error {
	return &conderr.Error{
		Type: conderr.Precondition,
		Err:  err,
		Help: `The operation was refused because it would violate an ordering or
alias-safety invariant:

    ` + err.Reason + `

Promotions require a succeeded upstream ingest for the same model and
suffix, and an index cannot be deleted while it is the promoted target
of its alias.
`,
	}
}
