package ticket

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a dev/test fallback used when REDIS_URL is not configured.
// It honors the same per-key atomicity contract via a single mutex and
// evicts expired entries lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// now is swappable so tests can drive TTL expiry without sleeping.
	now func() time.Time
}

type memEntry struct {
	rec      Record
	deadline time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, id string, rec Record, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = memEntry{rec: rec, deadline: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok {
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (s *MemoryStore) CompareAndSet(ctx context.Context, id string, expected State, rec Record, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(id)
	if !ok || e.rec.State != expected {
		return false, nil
	}

	s.entries[id] = memEntry{rec: rec, deadline: s.now().Add(ttl)}
	return true, nil
}

// live returns the entry for id, evicting it first if its TTL elapsed.
// Callers must hold s.mu.
func (s *MemoryStore) live(id string) (memEntry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return memEntry{}, false
	}
	if s.now().After(e.deadline) {
		delete(s.entries, id)
		return memEntry{}, false
	}
	return e, true
}
