package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	state    *State
	lastSeen time.Time
}

// Store maps session IDs to their State. Each browser gets its own State;
// nothing is shared between entries. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idle     time.Duration
	now      func() time.Time
}

// NewStore creates a Store that evicts sessions idle for longer than idle.
// A non-positive idle disables eviction.
func NewStore(idle time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		idle:     idle,
		now:      time.Now,
	}
}

// Get returns the State for id and marks it as seen.
func (s *Store) Get(id string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.state, true
}

// GetOrCreate returns the State for id, creating a new one when id is not a
// known session. The new State gets a fresh ID; callers must use st.ID().
func (s *Store) GetOrCreate(id string) (st *State, created bool) {
	if _, err := uuid.Parse(id); err == nil {
		if st, ok := s.Get(id); ok {
			return st, false
		}
	}
	st = New()
	s.mu.Lock()
	s.sessions[st.ID()] = &entry{state: st, lastSeen: s.now()}
	s.mu.Unlock()
	return st, true
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts idle sessions that have no outstanding turn and returns how
// many were removed.
func (s *Store) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.idle)
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) && !e.state.Busy() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
