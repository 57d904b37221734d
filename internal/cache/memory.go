package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend stores entries in process memory. It backs dry runs and
// tests and is used when no database is configured.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]Entry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[Kind]map[string]Entry),
	}
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, kind Kind, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[kind][key]
	if !ok {
		return nil, nil
	}
	e.Payload = append([]byte(nil), e.Payload...)
	return &e, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, kind Kind, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.entries[kind]
	if !ok {
		table = make(map[string]Entry)
		m.entries[kind] = table
	}
	e.Payload = append([]byte(nil), e.Payload...)
	table[e.Key] = e
	return nil
}

// DeleteExpired implements Backend.
func (m *MemoryBackend) DeleteExpired(_ context.Context, kind Kind, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, e := range m.entries[kind] {
		if e.Expired(now) {
			delete(m.entries[kind], key)
			n++
		}
	}
	return n, nil
}

// PruneOldest implements Backend.
func (m *MemoryBackend) PruneOldest(_ context.Context, kind Kind, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.entries[kind]
	excess := len(table) - keep
	if excess <= 0 {
		return 0, nil
	}

	all := make([]Entry, 0, len(table))
	for _, e := range table {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	for _, e := range all[:excess] {
		delete(table, e.Key)
	}
	return int64(excess), nil
}

// Entries returns a copy of every entry of kind.
func (m *MemoryBackend) Entries(kind Kind) map[string]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modification
	result := make(map[string]Entry, len(m.entries[kind]))
	for k, v := range m.entries[kind] {
		v.Payload = append([]byte(nil), v.Payload...)
		result[k] = v
	}
	return result
}
