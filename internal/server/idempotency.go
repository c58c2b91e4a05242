package server

import (
	"sync"
	"time"
)

// IdempotencyStore remembers which run a session-start key produced, so a
// retried request does not replace the session it already started
type IdempotencyStore struct {
	ttl  time.Duration
	now  func() time.Time
	seen map[string]idempotencyEntry
	mu   sync.Mutex
}

type idempotencyEntry struct {
	runID string
	at    time.Time
}

// NewIdempotencyStore creates a store whose keys expire after ttl
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]idempotencyEntry),
	}
}

// Lookup returns the run id recorded for key
func (s *IdempotencyStore) Lookup(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	e, ok := s.seen[key]
	return e.runID, ok
}

// Mark records key as having started runID
func (s *IdempotencyStore) Mark(key, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[key] = idempotencyEntry{runID: runID, at: s.now()}
}

// Len returns the number of live keys
func (s *IdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return len(s.seen)
}

func (s *IdempotencyStore) expireLocked() {
	cutoff := s.now().Add(-s.ttl)
	for key, e := range s.seen {
		if e.at.Before(cutoff) {
			delete(s.seen, key)
		}
	}
}
