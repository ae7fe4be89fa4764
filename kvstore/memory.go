package kvstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore is a thread-safe in-memory implementation of Store. Expired
// items stay in place until Reap is called, like an engine with deferred
// reclamation.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Item),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent external modifications
	return item.clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, item *Item) error {
	if item == nil || item.Key == "" {
		return errors.New("[MemoryStore.Put] item key cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[item.Key] = item.clone()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, key string, cond Condition, mutate Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.items[key]
	if !ok {
		return ErrNotFound
	}
	if cond != nil && !cond(current.clone()) {
		return ErrConditionFailed
	}
	next := current.clone()
	if err := mutate(next); err != nil {
		return err
	}
	next.Key = key
	m.items[key] = next
	return nil
}

func (m *MemoryStore) Query(_ context.Context, index, value string) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Item
	for _, item := range m.items {
		if v, ok := item.Indexes[index]; ok && v == value {
			out = append(out, item.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Reap physically removes every item expired at now and returns how many went
func (m *MemoryStore) Reap(now int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for key, item := range m.items {
		if item.Expired(now) {
			delete(m.items, key)
			count++
		}
	}
	return count
}

// Len is the number of physically stored items
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
