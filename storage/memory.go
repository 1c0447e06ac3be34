package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a map-backed ObjectStore for tests. It honors limit/cursor
// pagination like a real backend; setting PageLimit caps every page below
// the requested limit so multi-page listings can be exercised with small
// key sets.
type MemoryStore struct {
	PageLimit int

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) List(_ context.Context, prefix string, limit int, cursor string) (*ListPage, error) {
	if limit <= 0 {
		limit = listPageSize
	}
	if s.PageLimit > 0 && s.PageLimit < limit {
		limit = s.PageLimit
	}

	s.mu.RLock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) && key > cursor {
			keys = append(keys, key)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	page := &ListPage{}
	if len(keys) > limit {
		page.Keys = keys[:limit]
		page.NextCursor = keys[limit-1]
		page.HasMore = true
	} else {
		page.Keys = keys
	}
	return page, nil
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
