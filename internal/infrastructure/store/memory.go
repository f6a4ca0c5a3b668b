package store

import (
	"context"
	"sync"
)

// MemoryStore keeps every key in process memory. Updaters run under the store
// mutex, so they must not call back into the store.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	changes *broadcaster
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[string][]byte),
		changes: newBroadcaster(),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, raw []byte) error {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), raw...)
	s.mu.Unlock()
	s.changes.publish(key)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	s.mu.Lock()
	cur, found := s.data[key]
	next, err := fn(append([]byte(nil), cur...), found)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.data[key] = next
	s.mu.Unlock()
	s.changes.publish(key)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	return s.changes.subscribe(ctx)
}

// SharedFeed is true: the map is private to this handle, so every write
// passes through it.
func (s *MemoryStore) SharedFeed() bool { return true }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error {
	s.changes.close()
	return nil
}
