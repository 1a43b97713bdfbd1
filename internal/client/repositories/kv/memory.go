package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/callshield/internal/common"
)

// MemoryRepository keeps everything in process memory. It is used in tests
// and when no database path is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	stores map[string]map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{stores: make(map[string]map[string][]byte)}
}

func (r *MemoryRepository) Get(_ context.Context, store, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.stores[store][key]
	if !ok {
		return nil, fmt.Errorf("%s[%s]: %w", store, key, common.ErrorNotFound)
	}
	return clone(v), nil
}

func (r *MemoryRepository) Set(_ context.Context, store, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores[store]
	if !ok {
		s = make(map[string][]byte)
		r.stores[store] = s
	}
	s[key] = clone(value)
	return nil
}

func (r *MemoryRepository) Remove(_ context.Context, store, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.stores[store], key)
	return nil
}

func (r *MemoryRepository) GetAll(_ context.Context, store string) (map[string][]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]byte, len(r.stores[store]))
	for k, v := range r.stores[store] {
		out[k] = clone(v)
	}
	return out, nil
}

func (r *MemoryRepository) Clear(_ context.Context, store string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.stores, store)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
