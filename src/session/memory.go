package session

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// MemoryStore keeps mappings in process memory. Nothing is evicted and a
// restart loses every mapping.
type MemoryStore struct {
	create CreateFunc

	mu      sync.RWMutex
	threads map[string]string
	group   singleflight.Group
}

func NewMemoryStore(create CreateFunc) *MemoryStore {
	return &MemoryStore{
		create:  create,
		threads: make(map[string]string),
	}
}

func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threads[sessionID], nil
}

func (s *MemoryStore) ResolveOrCreate(ctx context.Context, sessionID string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrEmptySessionID
	}
	if id, _ := s.Lookup(ctx, sessionID); id != "" {
		return id, false, nil
	}

	created := false
	v, err, _ := s.group.Do(sessionID, func() (any, error) {
		// a previous flight may have finished between Lookup and Do
		s.mu.RLock()
		id := s.threads[sessionID]
		s.mu.RUnlock()
		if id != "" {
			return id, nil
		}

		id, err := createThread(ctx, s.create)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.threads[sessionID] = id
		s.mu.Unlock()
		created = true
		return id, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), created, nil
}

// Len returns the number of known sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}
