package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDiscarded is returned by Update once the value has been discarded
var ErrDiscarded = errors.New("visitor state discarded")

// discardTimeout bounds the delete issued when a visitor scope is disposed
const discardTimeout = 3 * time.Second

// Versioned is an optimistic, persisted value. Mutations apply locally in
// call order and are then saved; a failed save is rolled back unless a newer
// mutation already replaced the value.
type Versioned[T any] struct {
	store Store
	key   string
	zero  func() T
	clone func(T) T

	mu       sync.Mutex
	value    T
	revision  uint64
	loaded    bool
	discarded bool
}

// NewVersioned creates a value stored under key. zero builds the empty value
// and clone deep-copies one.
func NewVersioned[T any](store Store, key string, zero func() T, clone func(T) T) *Versioned[T] {
	return &Versioned[T]{
		store: store,
		key:   key,
		zero:  zero,
		clone: clone,
		value: zero(),
	}
}

// Key returns the storage key
func (v *Versioned[T]) Key() string { return v.key }

func (v *Versioned[T]) ensureLoaded(ctx context.Context) error {
	if v.loaded {
		return nil
	}

	data, rev, err := v.store.Load(ctx, v.key)
	if errors.Is(err, ErrNotFound) {
		v.loaded = true
		return nil
	}
	if err != nil {
		return err
	}

	value := v.zero()
	if err := json.Unmarshal(data, &value); err != nil {
		log.Warn().Err(err).Str("key", v.key).Msg("Discarding unreadable visitor state")
		v.loaded = true
		v.revision = rev
		return nil
	}
	v.value = value
	v.revision = rev
	v.loaded = true
	return nil
}

// Get returns a copy of the current value and its revision
func (v *Versioned[T]) Get(ctx context.Context) (T, uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureLoaded(ctx); err != nil {
		var zero T
		return zero, 0, err
	}
	return v.clone(v.value), v.revision, nil
}

// Update applies fn to a copy of the value, installs the result under a new
// revision and persists it. It returns the resulting value and its revision.
func (v *Versioned[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, uint64, error) {
	v.mu.Lock()
	if v.discarded {
		v.mu.Unlock()
		return v.zero(), 0, ErrDiscarded
	}
	if err := v.ensureLoaded(ctx); err != nil {
		v.mu.Unlock()
		var zero T
		return zero, 0, err
	}

	prev := v.value
	next, err := fn(v.clone(v.value))
	if err != nil {
		defer v.mu.Unlock()
		return v.clone(prev), v.revision, err
	}

	v.revision++
	rev := v.revision
	v.value = next
	snapshot := v.clone(next)
	v.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err == nil {
		_, err = v.store.Save(ctx, v.key, rev, data)
	}
	if err != nil {
		v.mu.Lock()
		if v.revision == rev && !v.discarded {
			// the counter stays at rev so later writes still outrank anything stored
			v.value = prev
		}
		current, currentRevision := v.clone(v.value), v.revision
		v.mu.Unlock()
		return current, currentRevision, fmt.Errorf("persist %s: %w", v.key, err)
	}

	// a save that lands after Discard must not resurrect the document
	v.mu.Lock()
	discarded := v.discarded
	v.mu.Unlock()
	if discarded {
		v.deleteStored()
		return v.zero(), 0, ErrDiscarded
	}

	return snapshot, rev, nil
}

// Discard drops the local value and deletes the stored document.
// Later updates fail with ErrDiscarded.
func (v *Versioned[T]) Discard() {
	v.mu.Lock()
	v.value = v.zero()
	v.loaded = true
	v.discarded = true
	v.mu.Unlock()

	v.deleteStored()
}

func (v *Versioned[T]) deleteStored() {
	ctx, cancel := context.WithTimeout(context.Background(), discardTimeout)
	defer cancel()
	if err := v.store.Delete(ctx, v.key); err != nil {
		log.Warn().Err(err).Str("key", v.key).Msg("Failed to delete visitor state")
	}
}
