package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/openverse/conductor/pkg/guid"
	"github.com/openverse/conductor/pkg/ingest"
	condmetrics "github.com/openverse/conductor/pkg/metrics"
	"github.com/openverse/conductor/pkg/retry"
	"github.com/openverse/conductor/pkg/search"
)

const (
	// DefaultTaskPollInterval spaces status checks against a running
	// remote ingest.
	DefaultTaskPollInterval = 5 * time.Second
	// DefaultTaskPollTimeout bounds the wait for a remote ingest. An
	// upstream ingest of a large model can legitimately run for hours.
	DefaultTaskPollTimeout = 4 * time.Hour
	// DefaultAwaitInterval spaces local status-cache polls in Await.
	DefaultAwaitInterval = 100 * time.Millisecond

	defaultStatusCacheSize = 100
)

type Config struct {
	TaskPollInterval time.Duration
	TaskPollTimeout  time.Duration
	AwaitInterval    time.Duration
	Retry            retry.Policy
	StatusCacheSize  int
}

func (c Config) withDefaults() Config {
	if c.TaskPollInterval <= 0 {
		c.TaskPollInterval = DefaultTaskPollInterval
	}
	if c.TaskPollTimeout <= 0 {
		c.TaskPollTimeout = DefaultTaskPollTimeout
	}
	if c.AwaitInterval <= 0 {
		c.AwaitInterval = DefaultAwaitInterval
	}
	if c.Retry.Base <= 0 {
		c.Retry = retry.DefaultPolicy()
	}
	if c.StatusCacheSize <= 0 {
		c.StatusCacheSize = defaultStatusCacheSize
	}
	return c
}

// Coordinator sequences index lifecycle mutations against the
// ingestion API. Mutations for one model are serialized through that
// model's queue and worker goroutine, in submission order; different
// models proceed independently. The worker is also what makes the
// delete precondition's check-then-act atomic with respect to
// concurrent promotes: both run on the same goroutine.
type Coordinator struct {
	ingest ingest.Client
	search search.Client
	logger log.Logger
	clock  clockwork.Clock
	cfg    Config

	statusCache *StatusCache

	// ctx is cancelled when stop closes, so in-flight remote waits
	// abort instead of outliving the coordinator.
	ctx context.Context

	mu      sync.Mutex
	workers map[string]*modelWorker
	stop    <-chan struct{}
	wg      *sync.WaitGroup
}

func NewCoordinator(ing ingest.Client, se search.Client, cfg Config, logger log.Logger, clock clockwork.Clock, stop chan struct{}, wg *sync.WaitGroup) *Coordinator {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()
	return &Coordinator{
		ingest:      ing,
		search:      se,
		logger:      logger,
		clock:       clock,
		cfg:         cfg,
		statusCache: &StatusCache{Size: cfg.StatusCacheSize},
		ctx:         ctx,
		workers:     map[string]*modelWorker{},
		stop:        stop,
		wg:          wg,
	}
}

// modelWorker owns one model's queue and lifecycle state. The state
// maps are written only from the worker goroutine; the mutex is for
// readers on other goroutines (AliasState, tests).
type modelWorker struct {
	model string
	queue *Queue

	mu       sync.Mutex
	ingested map[string]bool        // suffixes with a recorded succeeded ingest
	aliases  map[string]aliasRecord // alias name -> current target
}

// aliasRecord is the coordinator's owned, versioned view of where an
// alias points. The version only moves forward.
type aliasRecord struct {
	Suffix  string
	Version int
	Updated time.Time
}

func (w *modelWorker) recordIngested(suffix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ingested[suffix] = true
}

func (w *modelWorker) hasIngested(suffix string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ingested[suffix]
}

func (w *modelWorker) clearIngested(suffix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.ingested, suffix)
}

func (w *modelWorker) setAlias(alias, suffix string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec := w.aliases[alias]
	rec.Suffix = suffix
	rec.Version++
	rec.Updated = now
	w.aliases[alias] = rec
}

func (w *modelWorker) aliasTarget(alias string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec, ok := w.aliases[alias]
	return rec.Suffix, ok
}

func (w *modelWorker) aliasState() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	state := map[string]string{}
	for alias, rec := range w.aliases {
		state[alias] = rec.Suffix
	}
	return state
}

func (c *Coordinator) worker(model string) *modelWorker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.workers[model]; ok {
		return w
	}
	w := &modelWorker{
		model:    model,
		queue:    NewQueue(c.stop, c.wg),
		ingested: map[string]bool{},
		aliases:  map[string]aliasRecord{},
	}
	c.workers[model] = w
	c.wg.Add(1)
	go c.runWorker(w)
	return w
}

func (c *Coordinator) runWorker(w *modelWorker) {
	defer c.wg.Done()
	logger := log.With(c.logger, "model", w.model)
	for {
		select {
		case <-c.stop:
			return
		case job := <-w.queue.Ready():
			queueLength.With(condmetrics.LabelModel, w.model).Set(float64(w.queue.Len()))
			jobLogger := log.With(logger, "jobID", job.ID, "action", job.Request.Action)
			jobLogger.Log("state", "in-progress")
			c.statusCache.SetStatus(job.ID, Status{StatusString: StatusRunning})
			start := time.Now()
			err := job.Do(c.ctx, jobLogger)
			jobDuration.With(
				condmetrics.LabelAction, string(job.Request.Action),
				condmetrics.LabelSuccess, fmt.Sprint(err == nil),
			).Observe(time.Since(start).Seconds())
			if err != nil {
				c.statusCache.SetStatus(job.ID, failedStatus(err))
				jobLogger.Log("state", "done", "success", "false", "err", err)
			} else {
				c.statusCache.SetStatus(job.ID, Status{StatusString: StatusSucceeded})
				jobLogger.Log("state", "done", "success", "true")
			}
		}
	}
}

// LoadTestData seeds the stack with sample records. It is deliberately
// outside the ingest/promote invariant chain.
func (c *Coordinator) LoadTestData(ctx context.Context, model string) (ID, error) {
	return c.Submit(ctx, ingest.TaskRequest{Model: model, Action: ingest.ActionLoadTestData})
}

// IngestUpstream starts an upstream ingest into the index named by
// model and suffix. The returned ID is a local job handle; the job
// itself polls the remote task to completion.
func (c *Coordinator) IngestUpstream(ctx context.Context, model, suffix string) (ID, error) {
	return c.Submit(ctx, ingest.TaskRequest{Model: model, Action: ingest.ActionIngestUpstream, IndexSuffix: suffix})
}

// Promote repoints alias at the index named by model and suffix.
func (c *Coordinator) Promote(ctx context.Context, model, suffix, alias string) (ID, error) {
	return c.Submit(ctx, ingest.TaskRequest{Model: model, Action: ingest.ActionPromote, IndexSuffix: suffix, Alias: alias})
}

// DeleteIndex removes a non-promoted index.
func (c *Coordinator) DeleteIndex(ctx context.Context, model, suffix, alias string) (ID, error) {
	return c.Submit(ctx, ingest.TaskRequest{Model: model, Action: ingest.ActionDeleteIndex, IndexSuffix: suffix, Alias: alias})
}

// Submit queues a lifecycle request on its model's worker and returns
// a job ID at once. Ordering and alias preconditions are checked when
// the job runs, under the model's serialization, not here.
func (c *Coordinator) Submit(ctx context.Context, req ingest.TaskRequest) (ID, error) {
	if err := validate(req); err != nil {
		return "", invalidRequestError(err)
	}
	w := c.worker(req.Model)
	id := ID(guid.New())
	c.statusCache.SetStatus(id, Status{StatusString: StatusQueued})
	w.queue.Enqueue(&Job{ID: id, Request: req, Do: c.jobFor(w, req)})
	queueLength.With(condmetrics.LabelModel, req.Model).Set(float64(w.queue.Len()))
	return id, nil
}

func validate(req ingest.TaskRequest) error {
	if req.Model == "" {
		return errors.New("model is required")
	}
	switch req.Action {
	case ingest.ActionLoadTestData:
		return nil
	case ingest.ActionIngestUpstream:
		if req.IndexSuffix == "" {
			return errors.New("index_suffix is required for INGEST_UPSTREAM")
		}
		return nil
	case ingest.ActionPromote, ingest.ActionDeleteIndex:
		if req.IndexSuffix == "" {
			return errors.Errorf("index_suffix is required for %s", req.Action)
		}
		if req.Alias == "" {
			return errors.Errorf("alias is required for %s", req.Action)
		}
		return nil
	default:
		return errors.Errorf("unknown action %q", req.Action)
	}
}

func (c *Coordinator) jobFor(w *modelWorker, req ingest.TaskRequest) jobFunc {
	switch req.Action {
	case ingest.ActionLoadTestData:
		return func(ctx context.Context, logger log.Logger) error {
			return c.runLoadTestData(ctx, req, logger)
		}
	case ingest.ActionIngestUpstream:
		return func(ctx context.Context, logger log.Logger) error {
			return c.runIngest(ctx, w, req, logger)
		}
	case ingest.ActionPromote:
		return func(ctx context.Context, logger log.Logger) error {
			return c.runPromote(ctx, w, req, logger)
		}
	default:
		return func(ctx context.Context, logger log.Logger) error {
			return c.runDelete(ctx, w, req, logger)
		}
	}
}

func (c *Coordinator) runLoadTestData(ctx context.Context, req ingest.TaskRequest, logger log.Logger) error {
	handle, err := c.submitWithRetry(ctx, req)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	logger.Log("task", handle.TaskID, "state", "submitted")
	last, err := c.awaitTask(ctx, handle)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	if last.State == ingest.TaskFailed {
		return &Error{Action: req.Action, Cause: errors.New(last.Error)}
	}
	return nil
}

func (c *Coordinator) runIngest(ctx context.Context, w *modelWorker, req ingest.TaskRequest, logger log.Logger) error {
	handle, err := c.submitWithRetry(ctx, req)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	logger.Log("task", handle.TaskID, "state", "submitted")

	// The ingest runs remotely; poll until it reaches a terminal state.
	last, err := c.awaitTask(ctx, handle)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	if last.State == ingest.TaskFailed {
		return &Error{Action: req.Action, Cause: errors.Errorf("remote ingest failed: %s", last.Error)}
	}

	// The index must be visible on the search backend before the
	// ingest counts as promotable.
	index := indexName(req.Model, req.IndexSuffix)
	exists, err := c.search.IndexExists(ctx, index)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	if !exists {
		return &Error{Action: req.Action, Cause: errors.Errorf("index %s not present after ingest", index)}
	}

	w.recordIngested(req.IndexSuffix)
	return nil
}

func (c *Coordinator) runPromote(ctx context.Context, w *modelWorker, req ingest.TaskRequest, logger log.Logger) error {
	if !w.hasIngested(req.IndexSuffix) {
		return apiPreconditionError(&PreconditionError{
			Reason: fmt.Sprintf("no succeeded INGEST_UPSTREAM recorded for %s", indexName(req.Model, req.IndexSuffix)),
		})
	}

	// Remotely this is a single atomic alias repoint; it is idempotent,
	// so retrying a transient failure is safe. A rejection is terminal.
	_, err := c.submitWithRetry(ctx, req)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	w.setAlias(req.Alias, req.IndexSuffix, time.Now().UTC())
	logger.Log("alias", req.Alias, "suffix", req.IndexSuffix, "state", "promoted")
	return nil
}

func (c *Coordinator) runDelete(ctx context.Context, w *modelWorker, req ingest.TaskRequest, logger log.Logger) error {
	if req.IndexSuffix == req.Alias {
		return apiPreconditionError(&PreconditionError{
			Reason: fmt.Sprintf("refusing to delete %q: suffix and alias are the same name", req.Alias),
		})
	}
	// The alias record is only ever written by promote jobs on this
	// same worker goroutine, so this check cannot interleave with a
	// concurrent promote for the model.
	if target, ok := w.aliasTarget(req.Alias); ok && target == req.IndexSuffix {
		return apiPreconditionError(&PreconditionError{
			Reason: fmt.Sprintf("index %s is currently promoted as %q", indexName(req.Model, req.IndexSuffix), req.Alias),
		})
	}
	if !w.hasIngested(req.IndexSuffix) {
		return apiPreconditionError(&PreconditionError{
			Reason: fmt.Sprintf("no succeeded INGEST_UPSTREAM recorded for %s", indexName(req.Model, req.IndexSuffix)),
		})
	}

	_, err := c.submitWithRetry(ctx, req)
	if err != nil {
		return &Error{Action: req.Action, Cause: err}
	}
	w.clearIngested(req.IndexSuffix)
	logger.Log("index", indexName(req.Model, req.IndexSuffix), "state", "deleted")
	return nil
}

func (c *Coordinator) submitWithRetry(ctx context.Context, req ingest.TaskRequest) (ingest.TaskHandle, error) {
	var handle ingest.TaskHandle
	err := retry.WithBackoff(ctx, c.clock, c.cfg.Retry, ingest.IsTransient, func(ctx context.Context) error {
		var err error
		handle, err = c.ingest.SubmitTask(ctx, req)
		return err
	})
	return handle, err
}

func (c *Coordinator) awaitTask(ctx context.Context, handle ingest.TaskHandle) (ingest.TaskStatus, error) {
	var last ingest.TaskStatus
	err := retry.AwaitCondition(ctx, c.clock, func(ctx context.Context) bool {
		status, err := c.ingest.TaskStatus(ctx, handle)
		if err != nil {
			// Transient poll failures just mean we ask again next tick.
			return false
		}
		last = status
		return status.State.Terminal()
	}, c.cfg.TaskPollTimeout, c.cfg.TaskPollInterval)
	return last, err
}

// JobStatus reports the current state of a lifecycle job.
func (c *Coordinator) JobStatus(ctx context.Context, id ID) (Status, error) {
	status, ok := c.statusCache.Status(id)
	if !ok {
		return Status{}, unknownJobError(id)
	}
	return status, nil
}

// Await blocks until the job reaches a terminal status, or ctx is
// cancelled. A failed job's typed cause is returned as the error.
func (c *Coordinator) Await(ctx context.Context, id ID) (Status, error) {
	var last Status
	err := retry.AwaitCondition(ctx, c.clock, func(ctx context.Context) bool {
		status, ok := c.statusCache.Status(id)
		if !ok {
			return false
		}
		last = status
		return status.Terminal()
	}, c.cfg.TaskPollTimeout, c.cfg.AwaitInterval)
	if err != nil {
		return last, err
	}
	if last.StatusString == StatusFailed {
		if cause := last.Cause(); cause != nil {
			return last, cause
		}
		return last, errors.New(last.Err)
	}
	return last, nil
}

// AliasState reports, for one model, which suffix each alias points
// at, per this coordinator's owned record.
func (c *Coordinator) AliasState(ctx context.Context, model string) (map[string]string, error) {
	if model == "" {
		return nil, errors.New("model is required")
	}
	c.mu.Lock()
	w, ok := c.workers[model]
	c.mu.Unlock()
	if !ok {
		return map[string]string{}, nil
	}
	return w.aliasState(), nil
}

func indexName(model, suffix string) string {
	return model + "-" + suffix
}
