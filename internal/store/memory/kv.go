package memory

import (
	"context"
	"sync"

	"github.com/wolfeidau/studiodesk/internal/store"
)

// KV implements store.KV using in-memory storage.
// This implementation is for testing and --store=memory only - data is lost on restart.
type KV struct {
	mu sync.RWMutex

	values map[string][]byte // key -> value
}

// NewKV creates a new in-memory key/value store.
func NewKV() *KV {
	return &KV{
		values: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.values[key]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Clone to avoid external modifications
	return append([]byte(nil), value...), nil
}

// Put stores a copy of value under key.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key, missing keys are ignored.
func (s *KV) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

// Len returns the number of stored keys.
func (s *KV) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Close is a no-op for the memory store.
func (s *KV) Close() error {
	return nil
}
