package query

import (
	"sync"
	"time"

	"querydesk/internal/domain"
)

// EventKind classifies a terminal outcome delivered to a ResultSink.
type EventKind string

// Outcome kinds.
const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventTimedOut  EventKind = "timed_out"
	EventCancelled EventKind = "cancelled"
)

// Event is the single outcome report for one submission.
type Event struct {
	Kind        EventKind           `json:"kind"`
	SessionID   string              `json:"session_id"`
	ExecutionID string              `json:"execution_id"`
	Result      *domain.QueryResult `json:"-"`
	Message     string              `json:"message"`
	Summary     string              `json:"summary"`
	At          time.Time           `json:"at"`
}

// ResultSink receives outcome and progress notifications. Implementations
// must be safe for concurrent use and must not block for long.
type ResultSink interface {
	QuerySucceeded(ev Event)
	QueryFailed(ev Event)
	QueryInterrupted(ev Event)
	QueryProgress(sessionID string, elapsed time.Duration)
}

// DiscardSink drops every notification.
type DiscardSink struct{}

func (DiscardSink) QuerySucceeded(Event) {}
func (DiscardSink) QueryFailed(Event) {}
func (DiscardSink) QueryInterrupted(Event) {}
func (DiscardSink) QueryProgress(string, time.Duration) {}

// ChannelSink forwards outcome events to a buffered channel. Progress is
// dropped. When the buffer is full the event is discarded.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event { return s.events }

func (s *ChannelSink) push(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *ChannelSink) QuerySucceeded(ev Event) { s.push(ev) }
func (s *ChannelSink) QueryFailed(ev Event) { s.push(ev) }
func (s *ChannelSink) QueryInterrupted(ev Event) { s.push(ev) }
func (s *ChannelSink) QueryProgress(string, time.Duration) {}

// SessionView is what a Board remembers for one session.
type SessionView struct {
	SessionID string        `json:"session_id"`
	Running   bool          `json:"running"`
	Status    string        `json:"status"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Last      *Event        `json:"last,omitempty"`
}

// DefaultBoardLimit is the number of settled sessions a Board remembers.
const DefaultBoardLimit = 1024

// Board keeps the latest status line and outcome per session so that a
// polling front end can render them. Views of running sessions are always
// kept; once more than limit sessions have settled, the oldest outcome is
// evicted.
type Board struct {
	mu       sync.RWMutex
	sessions map[string]*SessionView
	limit    int
}

// NewBoard creates an empty Board remembering up to limit settled sessions.
// A limit of zero or less means DefaultBoardLimit.
func NewBoard(limit int) *Board {
	if limit <= 0 {
		limit = DefaultBoardLimit
	}
	return &Board{sessions: make(map[string]*SessionView), limit: limit}
}

func (b *Board) view(sessionID string) *SessionView {
	v, ok := b.sessions[sessionID]
	if !ok {
		v = &SessionView{SessionID: sessionID}
		b.sessions[sessionID] = v
	}
	return v
}

func (b *Board) settle(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.view(ev.SessionID)
	v.Running = false
	v.Status = ev.Summary
	v.Last = &ev
	b.evictSettled()
}

// evictSettled drops the oldest settled views beyond the limit. Callers hold mu.
func (b *Board) evictSettled() {
	for {
		var (
			settled int
			oldest  *SessionView
		)
		for _, v := range b.sessions {
			if v.Running || v.Last == nil {
				continue
			}
			settled++
			if oldest == nil || v.Last.At.Before(oldest.Last.At) {
				oldest = v
			}
		}
		if settled <= b.limit {
			return
		}
		delete(b.sessions, oldest.SessionID)
	}
}

func (b *Board) QuerySucceeded(ev Event) { b.settle(ev) }
func (b *Board) QueryFailed(ev Event) { b.settle(ev) }
func (b *Board) QueryInterrupted(ev Event) { b.settle(ev) }

func (b *Board) QueryProgress(sessionID string, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.view(sessionID)
	v.Running = true
	v.Elapsed = elapsed
	v.Status = ProgressStatus(elapsed)
}

// Session returns a copy of the session's view.
func (b *Board) Session(sessionID string) (SessionView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.sessions[sessionID]
	if !ok {
		return SessionView{}, false
	}
	return *v, true
}

// FanOut delivers every notification to each sink in order.
type FanOut []ResultSink

func (f FanOut) QuerySucceeded(ev Event) {
	for _, s := range f {
		s.QuerySucceeded(ev)
	}
}

func (f FanOut) QueryFailed(ev Event) {
	for _, s := range f {
		s.QueryFailed(ev)
	}
}

func (f FanOut) QueryInterrupted(ev Event) {
	for _, s := range f {
		s.QueryInterrupted(ev)
	}
}

func (f FanOut) QueryProgress(sessionID string, elapsed time.Duration) {
	for _, s := range f {
		s.QueryProgress(sessionID, elapsed)
	}
}
