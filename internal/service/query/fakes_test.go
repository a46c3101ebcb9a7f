package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"querydesk/internal/domain"
)

// fakeDriver hands out fakeSessions and counts calls.
type fakeDriver struct {
	openErr   error
	openGate  chan struct{} // when set, Open blocks until closed or ctx ends
	session   *fakeSession
	opens     atomic.Int32
	openStart chan struct{}
}

func newFakeDriver(s *fakeSession) *fakeDriver {
	return &fakeDriver{session: s, openStart: make(chan struct{}, 1)}
}

func (d *fakeDriver) Open(ctx context.Context, _ domain.Descriptor) (domain.BackendSession, error) {
	d.opens.Add(1)
	select {
	case d.openStart <- struct{}{}:
	default:
	}
	if d.openGate != nil {
		select {
		case <-d.openGate:
		case <-ctx.Done():
			return nil, domain.ErrConnection(ctx.Err(), "connect")
		}
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.session, nil
}

// fakeSession returns a canned result. With block set, Execute waits for
// release or for ctx to end.
type fakeSession struct {
	result  *domain.ResultSet
	execErr error
	block   bool
	release chan struct{}

	started  chan struct{}
	execs    atomic.Int32
	closes   atomic.Int32
	closedMu sync.Mutex
	closed   bool
}

func newFakeSession(rs *domain.ResultSet) *fakeSession {
	return &fakeSession{result: rs, release: make(chan struct{}), started: make(chan struct{}, 1)}
}

func (s *fakeSession) Execute(ctx context.Context, _ string) (*domain.ResultSet, error) {
	s.execs.Add(1)
	select {
	case s.started <- struct{}{}:
	default:
	}
	if s.block {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, domain.ErrQuery(ctx.Err(), "execute query")
		}
	}
	if s.execErr != nil {
		return nil, s.execErr
	}
	return s.result, nil
}

func (s *fakeSession) Close() error {
	s.closes.Add(1)
	s.closedMu.Lock()
	s.closed = true
	s.closedMu.Unlock()
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.closedMu.Lock()
	defer s.closedMu.Unlock()
	return s.closed
}

// fakeResolver always returns the same driver, or err.
type fakeResolver struct {
	driver domain.BackendDriver
	err    error
}

func (r fakeResolver) Resolve(domain.Descriptor) (domain.BackendDriver, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.driver, nil
}

// memHistory records history entries in memory.
type memHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	err     error
}

func (h *memHistory) Record(_ context.Context, rec domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *memHistory) all() []domain.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryRecord(nil), h.records...)
}

var errBoom = errors.New("boom")

func testDescriptor() domain.Descriptor {
	d := domain.NewEmbeddedDescriptor("local", "/tmp/does-not-matter.db", domain.EngineSQLite)
	d.ID = 7
	return d
}
