package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps encoded entries in process, ordered by creation.
// Entries are stored as JSON so callers never share payloads with the cache.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front is the oldest entry
}

type memoryItem struct {
	fingerprint string
	value       []byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	s.mu.Lock()
	el, ok := s.items[fingerprint]
	var value []byte
	if ok {
		value = el.Value.(*memoryItem).value
	}
	s.mu.Unlock()

	if !ok {
		return nil, false, nil
	}
	entry, err := decodeEntry(value)
	if err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry *Entry, maxEntries int) (int, error) {
	value, err := encodeEntry(entry)
	if err != nil {
		return 0, fmt.Errorf("encode cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[entry.Fingerprint]; ok {
		s.order.Remove(el)
		delete(s.items, entry.Fingerprint)
	}
	s.items[entry.Fingerprint] = s.order.PushBack(&memoryItem{fingerprint: entry.Fingerprint, value: value})

	evicted := 0
	for maxEntries > 0 && s.order.Len() > maxEntries {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*memoryItem).fingerprint)
		evicted++
	}
	return evicted, nil
}

func (s *MemoryStore) Delete(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[fingerprint]; ok {
		s.order.Remove(el)
		delete(s.items, fingerprint)
	}
	return nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), nil
}
