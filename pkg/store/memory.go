package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of StateStore.
// It keeps a deep copy of the last saved snapshot and provides thread-safe
// access via RWMutex.
// Note: This implementation does not persist state across restarts.
type MemoryStore struct {
	snap    *Snapshot
	saves   int
	saveErr error
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: NewSnapshot()}
}

// NewMemoryStoreWith creates an in-memory store pre-loaded with a copy of snap.
func NewMemoryStoreWith(snap *Snapshot) *MemoryStore {
	return &MemoryStore{snap: snap.Clone()}
}

// Load returns a copy of the stored snapshot.
func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Clone(), nil
}

// Save stores a copy of snap, or returns the error set with FailSaves.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// FailSaves makes every subsequent Save return err. A nil err restores normal behavior.
func (m *MemoryStore) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}
