// Package statestore persists small per-visitor documents (cart, favorites)
// with a revision guard so late writes never overwrite newer state.
package statestore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Load when nothing is stored under the key
var ErrNotFound = errors.New("state not found")

// Store keeps revisioned documents
type Store interface {
	// Save stores data unless a document with an equal or newer revision exists.
	// It reports whether the write was applied.
	Save(ctx context.Context, key string, revision uint64, data []byte) (bool, error)
	Load(ctx context.Context, key string) ([]byte, uint64, error)
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	revision uint64
	data     []byte
	expires  time.Time
}

// MemoryStore is a process-local Store
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a memory store; entries expire after ttl when ttl > 0
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save implements Store
func (m *MemoryStore) Save(ctx context.Context, key string, revision uint64, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.live(key); ok && cur.revision >= revision {
		return false, nil
	}

	entry := memoryEntry{revision: revision, data: append([]byte(nil), data...)}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.entries[key] = entry
	return true, nil
}

// Load implements Store
func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.live(key)
	if !ok {
		return nil, 0, ErrNotFound
	}
	return append([]byte(nil), entry.data...), entry.revision, nil
}

// Delete implements Store
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored documents
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return entry, false
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		delete(m.entries, key)
		return entry, false
	}
	return entry, true
}
