package edb

import (
	"context"
	"sync"
)

// A Medium is the persistent, unordered, string-keyed storage the store
// writes envelopes to. Implementations must be safe for concurrent use.
type Medium interface {
	// GetItem returns the value stored at key. ok is false when the key has
	// no entry.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	// SetItem stores value at key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
	// Keys lists every key of the medium, in no particular order.
	Keys(ctx context.Context) ([]string, error)
}

// An AtomicMedium can store a value only if the key has no entry yet, as a
// single operation. The store uses it to assign generated record keys
// without a check-then-set race.
type AtomicMedium interface {
	Medium
	// SetItemIfAbsent stores value at key and reports true, or reports false
	// without writing when key already has an entry.
	SetItemIfAbsent(ctx context.Context, key, value string) (bool, error)
}

// MemoryMedium is an in-memory Medium, mostly useful for tests and caches
// that do not need to survive the process.
type MemoryMedium struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryMedium returns an empty MemoryMedium.
func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{m: make(map[string]string)}
}

func (mm *MemoryMedium) GetItem(_ context.Context, key string) (string, bool, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	v, ok := mm.m[key]
	return v, ok, nil
}

func (mm *MemoryMedium) SetItem(_ context.Context, key, value string) error {
	mm.mu.Lock()
	mm.m[key] = value
	mm.mu.Unlock()
	return nil
}

func (mm *MemoryMedium) SetItemIfAbsent(_ context.Context, key, value string) (bool, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if _, ok := mm.m[key]; ok {
		return false, nil
	}
	mm.m[key] = value
	return true, nil
}

func (mm *MemoryMedium) RemoveItem(_ context.Context, key string) error {
	mm.mu.Lock()
	delete(mm.m, key)
	mm.mu.Unlock()
	return nil
}

func (mm *MemoryMedium) Keys(_ context.Context) ([]string, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	keys := make([]string, 0, len(mm.m))
	for k := range mm.m {
		keys = append(keys, k)
	}
	return keys, nil
}
