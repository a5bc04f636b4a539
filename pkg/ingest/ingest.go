package ingest

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/openverse/conductor/pkg/retry"
)

// Action is a lifecycle operation understood by the ingestion server.
type Action string

const (
	ActionLoadTestData   Action = "LOAD_TEST_DATA"
	ActionIngestUpstream Action = "INGEST_UPSTREAM"
	ActionPromote        Action = "PROMOTE"
	ActionDeleteIndex    Action = "DELETE_INDEX"
)

// TaskRequest is the body of a task submission. Constructed by the
// caller, sent once, not mutated afterwards.
type TaskRequest struct {
	Model       string `json:"model"`
	Action      Action `json:"action"`
	IndexSuffix string `json:"index_suffix,omitempty"`
	Alias       string `json:"alias,omitempty"`
}

// TaskHandle identifies a task accepted by the ingestion server. The
// server tells us where to poll for progress.
type TaskHandle struct {
	TaskID      string `json:"task_id"`
	StatusCheck string `json:"status_check,omitempty"`
}

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskStatus is the remote job's progress as last polled.
type TaskStatus struct {
	State    TaskState `json:"state"`
	Progress float64   `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Client talks to the ingestion server.
type Client interface {
	// Ping hits the server's root readiness endpoint.
	Ping(ctx context.Context) error
	// SubmitTask starts a task; the work itself runs remotely and
	// asynchronously.
	SubmitTask(ctx context.Context, req TaskRequest) (TaskHandle, error)
	// TaskStatus polls a previously submitted task.
	TaskStatus(ctx context.Context, handle TaskHandle) (TaskStatus, error)
}

// RejectionError is terminal: the ingestion server understood the
// request and refused it. Retrying the same request will not help.
type RejectionError struct {
	StatusCode int
	Reason     string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("ingestion server rejected request (%d): %s", e.StatusCode, e.Reason)
}

func IsRejection(err error) bool {
	_, ok := errors.Cause(err).(*RejectionError)
	return ok
}

// IsTransient reports whether an error from a Client call is worth
// retrying: connection-level failures and server-side 5xx are; remote
// rejections, cancellations and expired waits are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	cause := errors.Cause(err)
	switch cause.(type) {
	case *RejectionError, *retry.TimeoutError, *retry.CancelledError:
		return false
	}
	if cause == context.Canceled {
		return false
	}
	return true
}
