package flow

import "sync"

// sessionLocks hands out one mutex per session id. Entries are reference
// counted and dropped once no turn holds or waits on them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the caller owns id and returns the matching unlock func.
func (s *sessionLocks) Lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// Len returns the number of live entries.
func (s *sessionLocks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
