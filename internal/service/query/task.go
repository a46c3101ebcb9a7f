// Package query runs user statements against live connections on background
// workers, enforces a timeout, and records every attempt in the history ledger.
package query

import (
	"context"
	"sync"
	"time"

	"querydesk/internal/domain"
)

// Task is the unit of concurrent execution: one statement against one
// connection that the task opens, owns, and closes exactly once.
//
// A task reports through Completion at most once. Cancellation is silent:
// once Cancel has been called no completion is ever delivered, and the
// caller that cancelled is responsible for its own bookkeeping.
type Task struct {
	descriptor domain.Descriptor
	statement  string
	driver     domain.BackendDriver
	now        func() time.Time

	mu        sync.Mutex
	state     domain.TaskState
	cancelled bool
	session   domain.BackendSession
	interrupt context.CancelFunc
	closeOnce sync.Once

	completion chan domain.Completion
	done       chan struct{}
	doneOnce   sync.Once
}

// NewTask creates a task in the Created state. The descriptor is copied.
func NewTask(d domain.Descriptor, statement string, driver domain.BackendDriver) *Task {
	return &Task{
		descriptor: d,
		statement:  statement,
		driver:     driver,
		now:        time.Now,
		state:      domain.TaskStateCreated,
		completion: make(chan domain.Completion, 1),
		done:       make(chan struct{}),
	}
}

// Completion delivers the single success or failure report.
func (t *Task) Completion() <-chan domain.Completion { return t.completion }

// Done is closed when Run returns and the connection has been released, or
// when the task is abandoned before it ever ran.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) finish() { t.doneOnce.Do(func() { close(t.done) }) }

// abandon releases a task that will never run. The task must already be
// cancelled.
func (t *Task) abandon() { t.finish() }

// Descriptor returns the task's copy of the connection descriptor.
func (t *Task) Descriptor() domain.Descriptor { return t.descriptor }

// Statement returns the statement text.
func (t *Task) Statement() string { return t.statement }

// State returns the current lifecycle state.
func (t *Task) State() domain.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancelled reports whether Cancel has been called.
func (t *Task) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Cancel may be called from any goroutine, any number of times, before or
// during Run. It interrupts an in-flight driver call through its context and
// then force-closes the connection if one is open. Cancel never blocks on I/O.
func (t *Task) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	if !t.state.Terminal() {
		t.state = domain.TaskStateCancelled
	}
	interrupt, sess := t.interrupt, t.session
	t.mu.Unlock()

	if interrupt != nil {
		interrupt()
	}
	if sess != nil {
		go t.closeSession(sess)
	}
}

// Run executes the task on the calling goroutine. The orchestrator calls it
// from a worker goroutine; ctx bounds the driver calls.
func (t *Task) Run(ctx context.Context) {
	defer t.finish()

	start := t.now()
	runCtx, interrupt := context.WithCancel(ctx)
	defer interrupt()

	t.mu.Lock()
	if t.cancelled || t.state != domain.TaskStateCreated {
		t.mu.Unlock()
		return
	}
	t.state = domain.TaskStateConnecting
	t.interrupt = interrupt
	t.mu.Unlock()

	sess, err := t.driver.Open(runCtx, t.descriptor)
	if err != nil {
		t.fail(err)
		return
	}
	defer t.closeSession(sess)

	t.mu.Lock()
	t.session = sess
	if t.cancelled {
		// Cancelled while connecting: never reach execute.
		t.mu.Unlock()
		return
	}
	t.state = domain.TaskStateExecuting
	t.mu.Unlock()

	rs, err := sess.Execute(runCtx, t.statement)
	if t.Cancelled() {
		// Errors raised because the connection was interrupted or closed
		// underneath execute are part of the cancellation, not failures.
		return
	}
	if err != nil {
		t.fail(err)
		return
	}

	result := &domain.QueryResult{
		Descriptor:     t.descriptor,
		Statement:      t.statement,
		Columns:        rs.Columns,
		Rows:           rs.Rows,
		RowCount:       rs.RowCount,
		ElapsedSeconds: t.now().Sub(start).Seconds(),
		RowProducing:   rs.RowProducing,
	}

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.state = domain.TaskStateSucceeded
	t.mu.Unlock()
	t.completion <- domain.Completion{Result: result}
}

func (t *Task) fail(err error) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.state = domain.TaskStateFailed
	t.mu.Unlock()
	t.completion <- domain.Completion{Err: err.Error()}
}

func (t *Task) closeSession(sess domain.BackendSession) {
	t.closeOnce.Do(func() {
		_ = sess.Close()
	})
}
