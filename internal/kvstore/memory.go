package kvstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store, used by the one-shot CLI mode and by
// tests. It preserves the same single-key-atomic semantics as the Redis
// backend.
type MemoryStore struct {
	mu          sync.RWMutex
	data        map[string][]byte
	subscribers []*memorySub
}

type memorySub struct {
	keys map[string]struct{}
	ch   chan string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, keys ...string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := s.data[key]; ok {
			cp := make([]byte, len(value))
			copy(cp, value)
			result[key] = cp
		}
	}
	return result, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, values map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		cp := make([]byte, len(value))
		copy(cp, value)
		s.data[key] = cp
		for _, sub := range s.subscribers {
			if _, ok := sub.keys[key]; !ok {
				continue
			}
			select {
			case sub.ch <- key:
			default:
			}
		}
	}
	return nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, keys ...string) (<-chan string, error) {
	sub := &memorySub{
		keys: make(map[string]struct{}, len(keys)),
		ch:   make(chan string, 16),
	}
	for _, key := range keys {
		sub.keys[key] = struct{}{}
	}

	s.mu.Lock()
	s.subscribers = append(s.subscribers, sub)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, candidate := range s.subscribers {
			if candidate == sub {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(sub.ch)
	}()
	return sub.ch, nil
}
