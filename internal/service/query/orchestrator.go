package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"querydesk/internal/domain"
)

// Defaults for Options.
const (
	DefaultTimeout          = 60 * time.Second
	DefaultProgressInterval = 100 * time.Millisecond

	historyWriteTimeout = 5 * time.Second
)

// ErrShutdown is returned by Submit after Shutdown has begun.
var ErrShutdown = errors.New("query orchestrator is shut down")

// DriverResolver selects the backend driver for a descriptor.
// Implemented by engine.Registry.
type DriverResolver interface {
	Resolve(d domain.Descriptor) (domain.BackendDriver, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Timeout is the execution ceiling per submission.
	Timeout time.Duration
	// ProgressInterval is how often elapsed time is pushed to the sink.
	ProgressInterval time.Duration
	// MaxWorkers bounds concurrently running tasks; 0 means one worker per task.
	MaxWorkers int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	return o
}

// Snapshot describes the in-flight execution of a session.
type Snapshot struct {
	ExecutionID  string           `json:"execution_id"`
	SessionID    string           `json:"session_id"`
	ConnectionID int64            `json:"connection_id"`
	Statement    string           `json:"statement"`
	State        domain.TaskState `json:"state"`
	StartedAt    time.Time        `json:"started_at"`
	Elapsed      time.Duration    `json:"elapsed_ns"`
}

// execution is the in-flight record of one accepted submission.
type execution struct {
	id        string
	sessionID string
	task      *Task
	startedAt time.Time
	elapsed   atomic.Int64
	settled   atomic.Bool
	done      chan struct{}
	stop      context.CancelFunc

	// notify orders progress ticks before the interrupt notification.
	notify sync.Mutex
}

func (e *execution) connectionID() int64 { return e.task.Descriptor().ID }

// Orchestrator accepts submissions per session, runs each on its own worker,
// arms a timeout, and routes exactly one outcome per submission to the
// history ledger and the result sink.
type Orchestrator struct {
	history domain.HistoryRecorder
	sink    ResultSink
	drivers DriverResolver
	opts    Options
	logger  *slog.Logger
	workers *semaphore.Weighted
	now     func() time.Time

	mu       sync.Mutex
	active   map[string]*execution
	shutdown bool
	wg       sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(history domain.HistoryRecorder, sink ResultSink, drivers DriverResolver, opts Options, logger *slog.Logger) *Orchestrator {
	opts = opts.withDefaults()
	if sink == nil {
		sink = DiscardSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &Orchestrator{
		history: history,
		sink:    sink,
		drivers: drivers,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		active:  make(map[string]*execution),
	}
	if opts.MaxWorkers > 0 {
		o.workers = semaphore.NewWeighted(int64(opts.MaxWorkers))
	}
	return o
}

// Timeout returns the execution ceiling in effect.
func (o *Orchestrator) Timeout() time.Duration { return o.opts.Timeout }

// Submit starts executing statement against d in the given session and
// returns the execution id. A session with an in-flight execution rejects
// the submission with AlreadyRunningError; a missing descriptor or blank
// statement is rejected with EmptyInputError. Rejections create no task and
// write no history.
func (o *Orchestrator) Submit(ctx context.Context, sessionID string, d domain.Descriptor, statement string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", domain.ErrValidation("session id is required")
	}

	o.mu.Lock()
	if o.shutdown {
		o.mu.Unlock()
		return "", ErrShutdown
	}
	if _, busy := o.active[sessionID]; busy {
		o.mu.Unlock()
		o.logger.Info("submission rejected: already running", "session", sessionID)
		return "", domain.ErrAlreadyRunning(sessionID)
	}
	if d.IsZero() || strings.TrimSpace(statement) == "" {
		o.mu.Unlock()
		return "", domain.ErrEmptyInput("connection or query is empty")
	}

	driver, err := o.drivers.Resolve(d)
	if err != nil {
		// An unusable descriptor is a ConnectionError surfaced as a Failed outcome.
		driver = failingDriver{err: err}
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	e := &execution{
		id:        domain.NewID(),
		sessionID: sessionID,
		task:      NewTask(d, statement, driver),
		startedAt: o.now(),
		done:      make(chan struct{}),
		stop:      stop,
	}
	o.active[sessionID] = e
	o.wg.Add(2)
	o.mu.Unlock()

	o.logger.Info("query submitted",
		"session", sessionID, "execution_id", e.id, "connection_id", d.ID, "engine", string(d.Engine()))

	go o.runWorker(runCtx, e)
	go o.watch(e)
	return e.id, nil
}

// Cancel cancels the session's in-flight execution and records it as
// Cancelled. It returns NotFoundError when nothing is running, including
// when the execution finished before the cancel took effect.
func (o *Orchestrator) Cancel(_ context.Context, sessionID string) error {
	o.mu.Lock()
	e := o.active[sessionID]
	o.mu.Unlock()
	if e == nil || !o.interrupt(e, domain.HistoryStatusCancelled) {
		return domain.ErrNotFound("no query running in session %q", sessionID)
	}
	return nil
}

// Running returns a snapshot of the session's in-flight execution.
func (o *Orchestrator) Running(sessionID string) (Snapshot, bool) {
	o.mu.Lock()
	e := o.active[sessionID]
	o.mu.Unlock()
	if e == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		ExecutionID:  e.id,
		SessionID:    e.sessionID,
		ConnectionID: e.connectionID(),
		Statement:    e.task.Statement(),
		State:        e.task.State(),
		StartedAt:    e.startedAt,
		Elapsed:      time.Duration(e.elapsed.Load()),
	}, true
}

// ActiveSessions returns the ids of sessions with an in-flight execution.
func (o *Orchestrator) ActiveSessions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown rejects new submissions, cancels every in-flight execution
// (recording each as Cancelled), and waits for workers to exit or ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.shutdown = true
	pending := make([]*execution, 0, len(o.active))
	for _, e := range o.active {
		pending = append(pending, e)
	}
	o.mu.Unlock()

	for _, e := range pending {
		o.interrupt(e, domain.HistoryStatusCancelled)
	}

	waited := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) runWorker(ctx context.Context, e *execution) {
	defer o.wg.Done()
	if o.workers != nil {
		if err := o.workers.Acquire(ctx, 1); err != nil {
			// Settled while queued for a worker slot.
			e.task.abandon()
			return
		}
		defer o.workers.Release(1)
	}
	e.task.Run(ctx)
}

// watch is the coordinating loop of one execution: it waits for whichever of
// completion, timeout, or an explicit cancel comes first.
func (o *Orchestrator) watch(e *execution) {
	defer o.wg.Done()

	timeout := time.NewTimer(o.opts.Timeout)
	defer timeout.Stop()
	tick := time.NewTicker(o.opts.ProgressInterval)
	defer tick.Stop()

	for {
		select {
		case c := <-e.task.Completion():
			o.complete(e, c)
			return
		case <-timeout.C:
			o.interrupt(e, domain.HistoryStatusTimedOut)
			return
		case <-e.done:
			return
		case now := <-tick.C:
			e.notify.Lock()
			if !e.settled.Load() {
				elapsed := now.Sub(e.startedAt)
				e.elapsed.Store(int64(elapsed))
				o.sink.QueryProgress(e.sessionID, elapsed)
			}
			e.notify.Unlock()
		}
	}
}

// complete settles a normal Succeeded or Failed completion.
func (o *Orchestrator) complete(e *execution, c domain.Completion) {
	if !e.settled.CompareAndSwap(false, true) {
		return
	}
	defer o.retire(e)

	if c.Succeeded() {
		r := c.Result
		o.record(e, domain.HistoryStatusSuccess, r.RowCount, r.ElapsedSeconds)
		o.logger.Info("query succeeded",
			"session", e.sessionID, "execution_id", e.id, "rows", r.RowCount, "elapsed_sec", r.ElapsedSeconds)
		o.sink.QuerySucceeded(succeededEvent(e, r, o.now()))
		return
	}

	o.record(e, domain.HistoryStatusFailed, 0, 0)
	o.logger.Warn("query failed", "session", e.sessionID, "execution_id", e.id, "error", c.Err)
	o.sink.QueryFailed(failedEvent(e, c.Err, o.now()))
}

// interrupt settles a timeout or explicit cancellation. It reports false
// when another outcome already won.
func (o *Orchestrator) interrupt(e *execution, status domain.HistoryStatus) bool {
	if !e.settled.CompareAndSwap(false, true) {
		return false
	}
	defer o.retire(e)

	e.task.Cancel()

	var duration float64
	if status == domain.HistoryStatusTimedOut {
		duration = o.opts.Timeout.Seconds()
	}
	o.record(e, status, 0, duration)
	o.logger.Warn("query interrupted",
		"session", e.sessionID, "execution_id", e.id, "status", string(status))
	e.notify.Lock()
	o.sink.QueryInterrupted(interruptedEvent(e, status, o.opts.Timeout, o.now()))
	e.notify.Unlock()
	return true
}

func (o *Orchestrator) record(e *execution, status domain.HistoryStatus, rows int64, seconds float64) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()
	err := o.history.Record(ctx, domain.HistoryRecord{
		ConnectionID:     e.connectionID(),
		QueryText:        e.task.Statement(),
		Status:           status,
		RowsAffected:     rows,
		ExecutionTimeSec: seconds,
	})
	if err != nil {
		o.logger.Error("write query history",
			"session", e.sessionID, "execution_id", e.id, "connection_id", e.connectionID(), "error", err)
	}
}

// retire clears the active record and re-enables submissions for the session.
func (o *Orchestrator) retire(e *execution) {
	o.mu.Lock()
	if o.active[e.sessionID] == e {
		delete(o.active, e.sessionID)
	}
	o.mu.Unlock()
	e.stop()
	close(e.done)
}

// failingDriver reports a descriptor resolution error from Open so the
// submission still ends in a Failed outcome with a history entry.
type failingDriver struct{ err error }

func (f failingDriver) Open(context.Context, domain.Descriptor) (domain.BackendSession, error) {
	return nil, f.err
}
