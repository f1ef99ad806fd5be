package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps sessions in-process with expiry checked per read. It is
// for tests and single-instance development only.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Put(ctx context.Context, sess Session, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	sess.ExpiresAt = s.now().UTC().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Session, bool, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return Session{}, false, nil
	}
	if sess.Expired(s.now().UTC()) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return Session{}, false, nil
	}
	return sess, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Sweep removes expired sessions. The janitor calls this periodically.
func (s *MemoryStore) Sweep() int {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
