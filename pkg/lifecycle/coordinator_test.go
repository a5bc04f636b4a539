package lifecycle

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conderr "github.com/openverse/conductor/pkg/errors"
	"github.com/openverse/conductor/pkg/ingest"
	"github.com/openverse/conductor/pkg/retry"
)

// fakeBackend plays both the ingestion server and the search backend.
// Submitting an ingest creates the index; submitting a delete removes
// it. Failure modes are scripted per action.
type fakeBackend struct {
	mu        sync.Mutex
	nextID    int
	submitted []ingest.TaskRequest
	tasks     map[string]ingest.TaskStatus
	indices   map[string]bool

	transientFailures map[ingest.Action]int
	reject            map[ingest.Action]bool
	failTask          map[ingest.Action]bool
	hang              map[ingest.Action]bool

	inFlight    int
	maxInFlight int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tasks:             map[string]ingest.TaskStatus{},
		indices:           map[string]bool{},
		transientFailures: map[ingest.Action]int{},
		reject:            map[ingest.Action]bool{},
		failTask:          map[ingest.Action]bool{},
		hang:              map[ingest.Action]bool{},
	}
}

func (f *fakeBackend) Ping(ctx context.Context) error    { return nil }
func (f *fakeBackend) Healthy(ctx context.Context) error { return nil }

func (f *fakeBackend) SubmitTask(ctx context.Context, req ingest.TaskRequest) (ingest.TaskHandle, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	// widen the window so interleaved mutations would be caught
	time.Sleep(2 * time.Millisecond)
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.transientFailures[req.Action]; n > 0 {
		f.transientFailures[req.Action] = n - 1
		return ingest.TaskHandle{}, errors.New("connection refused")
	}
	if f.reject[req.Action] {
		return ingest.TaskHandle{}, &ingest.RejectionError{StatusCode: 400, Reason: "refused"}
	}

	f.submitted = append(f.submitted, req)
	f.nextID++
	id := strconv.Itoa(f.nextID)

	status := ingest.TaskStatus{State: ingest.TaskSucceeded, Progress: 1}
	switch {
	case f.hang[req.Action]:
		status = ingest.TaskStatus{State: ingest.TaskRunning, Progress: 0.5}
	case f.failTask[req.Action]:
		status = ingest.TaskStatus{State: ingest.TaskFailed, Error: "remote worker crashed"}
	default:
		switch req.Action {
		case ingest.ActionIngestUpstream:
			f.indices[req.Model+"-"+req.IndexSuffix] = true
		case ingest.ActionDeleteIndex:
			delete(f.indices, req.Model+"-"+req.IndexSuffix)
		}
	}
	f.tasks[id] = status
	return ingest.TaskHandle{TaskID: id}, nil
}

func (f *fakeBackend) TaskStatus(ctx context.Context, handle ingest.TaskHandle) (ingest.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.tasks[handle.TaskID]
	if !ok {
		return ingest.TaskStatus{}, errors.New("no such task " + handle.TaskID)
	}
	return status, nil
}

func (f *fakeBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indices[name], nil
}

func (f *fakeBackend) submissions() []ingest.TaskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ingest.TaskRequest, len(f.submitted))
	copy(out, f.submitted)
	return out
}

func newTestCoordinator(f *fakeBackend) (*Coordinator, func()) {
	stop := make(chan struct{})
	wg := &sync.WaitGroup{}
	c := NewCoordinator(f, f, Config{
		TaskPollInterval: time.Millisecond,
		TaskPollTimeout:  5 * time.Second,
		AwaitInterval:    time.Millisecond,
		Retry:            retry.Policy{Base: time.Millisecond, Cap: 4 * time.Millisecond, MaxAttempts: 3},
	}, log.NewNopLogger(), clockwork.NewRealClock(), stop, wg)
	return c, func() {
		close(stop)
		wg.Wait()
	}
}

func TestIngestThenPromoteFIFO(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	// Submit both before awaiting either; within a model, execution
	// order is submission order, so the promote must see the recorded
	// ingest.
	ingestID, err := c.IngestUpstream(ctx, "image", "20260831")
	require.NoError(t, err)
	promoteID, err := c.Promote(ctx, "image", "20260831", "image-primary")
	require.NoError(t, err)

	status, err := c.Await(ctx, ingestID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status.StatusString)

	status, err = c.Await(ctx, promoteID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status.StatusString)

	aliases, err := c.AliasState(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"image-primary": "20260831"}, aliases)

	subs := f.submissions()
	require.Len(t, subs, 2)
	assert.Equal(t, ingest.ActionIngestUpstream, subs[0].Action)
	assert.Equal(t, ingest.ActionPromote, subs[1].Action)
}

func TestPromoteWithoutIngestFails(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	id, err := c.Promote(ctx, "image", "nonesuch", "image-primary")
	require.NoError(t, err)
	status, err := c.Await(ctx, id)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, StatusFailed, status.StatusString)
	// nothing was sent to the ingestion server
	assert.Empty(t, f.submissions())
}

func TestPromoteIdempotent(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "20260831") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.Promote(ctx, "image", "20260831", "image-primary") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.Promote(ctx, "image", "20260831", "image-primary") })

	aliases, err := c.AliasState(ctx, "image")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"image-primary": "20260831"}, aliases)
}

func TestDeletePromotedIndexRefused(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "20260831") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.Promote(ctx, "image", "20260831", "image-primary") })

	id, err := c.DeleteIndex(ctx, "image", "20260831", "image-primary")
	require.NoError(t, err)
	_, err = c.Await(ctx, id)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))

	// suffix naming the alias itself is refused outright
	id, err = c.DeleteIndex(ctx, "image", "image-primary", "image-primary")
	require.NoError(t, err)
	_, err = c.Await(ctx, id)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestDeleteSupersededIndex(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "202608") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.Promote(ctx, "image", "202608", "image-primary") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "202609") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.Promote(ctx, "image", "202609", "image-primary") })
	// the old build is no longer the promoted target; deleting it is fine
	mustSucceed(t, c, ctx, func() (ID, error) { return c.DeleteIndex(ctx, "image", "202608", "image-primary") })

	subs := f.submissions()
	last := subs[len(subs)-1]
	assert.Equal(t, ingest.ActionDeleteIndex, last.Action)
	assert.Equal(t, "202608", last.IndexSuffix)
}

func TestTransientSubmitFailureRetried(t *testing.T) {
	f := newFakeBackend()
	f.transientFailures[ingest.ActionIngestUpstream] = 2
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "audio", "20260831") })
	// two refused connections, then the accepted submission
	assert.Len(t, f.submissions(), 1)
}

func TestRejectionNotRetried(t *testing.T) {
	f := newFakeBackend()
	f.reject[ingest.ActionPromote] = true
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "20260831") })

	id, err := c.Promote(ctx, "image", "20260831", "image-primary")
	require.NoError(t, err)
	_, err = c.Await(ctx, id)
	require.Error(t, err)
	lcErr, ok := err.(*Error)
	require.True(t, ok, "expected *lifecycle.Error, got %T", err)
	assert.Equal(t, ingest.ActionPromote, lcErr.Action)
	assert.True(t, ingest.IsRejection(lcErr.Cause))
	// the alias record must be untouched by the failed promote
	aliases, err := c.AliasState(ctx, "image")
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestRemoteIngestFailure(t *testing.T) {
	f := newFakeBackend()
	f.failTask[ingest.ActionIngestUpstream] = true
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	id, err := c.IngestUpstream(ctx, "image", "20260831")
	require.NoError(t, err)
	status, err := c.Await(ctx, id)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, status.StatusString)
	assert.False(t, IsPrecondition(err))

	// the failed suffix is not promotable
	id, err = c.Promote(ctx, "image", "20260831", "image-primary")
	require.NoError(t, err)
	_, err = c.Await(ctx, id)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

// Two concurrent promotes for one model must resolve to exactly one
// alias state, with no interleaved remote mutations.
func TestConcurrentPromotesSerialized(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "a") })
	mustSucceed(t, c, ctx, func() (ID, error) { return c.IngestUpstream(ctx, "image", "b") })

	start := make(chan struct{})
	ids := make(chan ID, 2)
	var racers sync.WaitGroup
	for _, suffix := range []string{"a", "b"} {
		racers.Add(1)
		go func(suffix string) {
			defer racers.Done()
			<-start
			id, err := c.Promote(ctx, "image", suffix, "image-primary")
			require.NoError(t, err)
			ids <- id
		}(suffix)
	}
	close(start)
	racers.Wait()
	close(ids)
	for id := range ids {
		_, err := c.Await(ctx, id)
		require.NoError(t, err)
	}

	f.mu.Lock()
	maxInFlight := f.maxInFlight
	f.mu.Unlock()
	assert.Equal(t, 1, maxInFlight, "mutations for one model must not interleave")

	aliases, err := c.AliasState(ctx, "image")
	require.NoError(t, err)
	target := aliases["image-primary"]
	assert.Contains(t, []string{"a", "b"}, target)
}

func TestModelsRunIndependently(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	imageID, err := c.IngestUpstream(ctx, "image", "s")
	require.NoError(t, err)
	audioID, err := c.IngestUpstream(ctx, "audio", "s")
	require.NoError(t, err)

	for _, id := range []ID{imageID, audioID} {
		status, err := c.Await(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, status.StatusString)
	}
}

func TestShutdownResolvesInFlightJob(t *testing.T) {
	f := newFakeBackend()
	f.hang[ingest.ActionIngestUpstream] = true
	c, stop := newTestCoordinator(f)
	ctx := context.Background()

	id, err := c.IngestUpstream(ctx, "image", "20260831")
	require.NoError(t, err)

	// wait for the job to be mid-poll against the never-finishing task
	require.Eventually(t, func() bool {
		status, err := c.JobStatus(ctx, id)
		return err == nil && status.StatusString == StatusRunning
	}, 2*time.Second, time.Millisecond)

	stop()

	status, err := c.JobStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.StatusString)
	lcErr, ok := status.Cause().(*Error)
	require.True(t, ok, "expected *lifecycle.Error, got %T", status.Cause())
	assert.True(t, retry.IsCancelled(lcErr.Cause))
}

func TestLoadTestData(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	// no ingest has happened; LOAD_TEST_DATA is outside the invariant chain
	mustSucceed(t, c, ctx, func() (ID, error) { return c.LoadTestData(ctx, "image") })
	subs := f.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, ingest.ActionLoadTestData, subs[0].Action)
}

func TestSubmitValidation(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()
	ctx := context.Background()

	_, err := c.LoadTestData(ctx, "")
	assert.Error(t, err)
	_, err = c.IngestUpstream(ctx, "image", "")
	assert.Error(t, err)
	_, err = c.Promote(ctx, "image", "s", "")
	assert.Error(t, err)
	_, err = c.Submit(ctx, ingest.TaskRequest{Model: "image", Action: "REINDEX"})
	assert.Error(t, err)
}

func TestJobStatusUnknownID(t *testing.T) {
	f := newFakeBackend()
	c, stop := newTestCoordinator(f)
	defer stop()

	_, err := c.JobStatus(context.Background(), ID("nope"))
	require.Error(t, err)
	assert.True(t, conderr.IsMissing(err))
}

func mustSucceed(t *testing.T, c *Coordinator, ctx context.Context, submit func() (ID, error)) {
	t.Helper()
	id, err := submit()
	require.NoError(t, err)
	status, err := c.Await(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, status.StatusString)
}
