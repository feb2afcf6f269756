package offline

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage keeps cache namespaces in process memory.
type MemoryStorage struct {
	mu     sync.RWMutex
	order  []string
	caches map[string]map[string]Entry
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{caches: make(map[string]map[string]Entry)}
}

func (m *MemoryStorage) Open(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openLocked(name)
	return nil
}

func (m *MemoryStorage) openLocked(name string) map[string]Entry {
	cache, ok := m.caches[name]
	if !ok {
		cache = make(map[string]Entry)
		m.caches[name] = cache
		m.order = append(m.order, name)
	}
	return cache
}

func (m *MemoryStorage) Names(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.caches[name]; !ok {
		return false, nil
	}
	delete(m.caches, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Put stores a copy of the entry, opening the namespace when needed.
func (m *MemoryStorage) Put(_ context.Context, name string, entry Entry) error {
	if entry.Response == nil {
		return fmt.Errorf("put %s: entry has no response", entry.Key)
	}
	entry.Response = entry.Response.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.openLocked(name)[entry.Key] = entry
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, name, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.caches[name][key]
	if !ok {
		return Entry{}, false, nil
	}
	entry.Response = entry.Response.Clone()
	return entry, true, nil
}

func (m *MemoryStorage) Match(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, name := range m.order {
		if entry, ok := m.caches[name][key]; ok {
			entry.Response = entry.Response.Clone()
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

func (m *MemoryStorage) Entries(_ context.Context, name string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cache := m.caches[name]
	out := make([]Entry, 0, len(cache))
	for _, entry := range cache {
		entry.Response = entry.Response.Clone()
		out = append(out, entry)
	}
	return out, nil
}

func (m *MemoryStorage) Remove(_ context.Context, name, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches[name], key)
	return nil
}
