package kvstore

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the in-memory store when no size is given.
const DefaultMemoryEntries = 10000

// MemoryStore is a process-local store used in development and tests. The
// least recently used keys are evicted once the size bound is reached.
type MemoryStore struct {
	cache *lru.Cache[string, string]
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.cache.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.cache.Add(key, value)
	return nil
}

// Len reports the number of stored keys.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
