package transfer

import (
	"sync"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a transfer session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateWriting
	StateRetrying
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateWriting:
		return "writing"
	case StateRetrying:
		return "retrying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress is a point-in-time snapshot of a session. Total is zero when the
// stream's size is unknown.
type Progress struct {
	BytesWritten int64
	Total        int64
}

// Session tracks one transfer. Safe for concurrent observation while the
// engine drives it.
type Session struct {
	ID uuid.UUID

	mu           sync.RWMutex
	state        State
	bytesWritten int64
	total        int64
	err          error
}

func newSession() *Session {
	return &Session{ID: uuid.New(), state: StateIdle}
}

// State returns the session's current phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Progress returns the bytes written so far and the total size if known.
// BytesWritten only ever covers a contiguous prefix of the stream.
func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Progress{BytesWritten: s.bytesWritten, Total: s.total}
}

// Err returns the failure cause once the session is in StateFailed or
// StateCancelled, nil otherwise.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = next
}

func (s *Session) finish(terminal State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = terminal
	s.err = err
}

func (s *Session) setTotal(total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
}

func (s *Session) addBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytesWritten += n
}
