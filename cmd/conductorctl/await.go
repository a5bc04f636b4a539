package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openverse/conductor/pkg/api"
	"github.com/openverse/conductor/pkg/ingest"
	"github.com/openverse/conductor/pkg/lifecycle"
)

var ErrTimeout = errors.New("timeout")

// runTask submits a lifecycle request and, unless told not to, polls
// the job until it resolves.
func runTask(ctx context.Context, stderr io.Writer, client api.Server, req ingest.TaskRequest, noWait bool, timeout time.Duration) error {
	jobID, err := client.SubmitTask(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Job ID %s\n", string(jobID))
	if noWait {
		return nil
	}
	if err := awaitJob(ctx, client, jobID, timeout); err != nil {
		return err
	}
	fmt.Fprintln(stderr, "Done.")
	return nil
}

// awaitJob polls for a job to have been completed, with exponential backoff.
func awaitJob(ctx context.Context, client api.Server, jobID lifecycle.ID, timeout time.Duration) error {
	return backoff(100*time.Millisecond, 2, 50, timeout, func() (bool, error) {
		j, err := client.JobStatus(ctx, jobID)
		if err != nil {
			return false, err
		}
		switch j.StatusString {
		case lifecycle.StatusFailed:
			return false, j
		case lifecycle.StatusSucceeded:
			if j.Err != "" {
				// How did we succeed but still get an error!?
				return false, j
			}
			return true, nil
		}
		return false, nil
	})
}

// backoff polls for f() to have been completed, with exponential backoff.
func backoff(initialDelay, factor, maxFactor, timeout time.Duration, f func() (bool, error)) error {
	maxDelay := initialDelay * maxFactor
	finish := time.Now().Add(timeout)
	for delay := initialDelay; time.Now().Before(finish); delay = min(delay*factor, maxDelay) {
		ok, err := f()
		if ok || err != nil {
			return err
		}
		// If we don't have time to try again, stop
		if time.Now().Add(delay).After(finish) {
			break
		}
		time.Sleep(delay)
	}
	return ErrTimeout
}

func min(t1, t2 time.Duration) time.Duration {
	if t1 < t2 {
		return t1
	}
	return t2
}
