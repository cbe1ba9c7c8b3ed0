package persist

import (
	"sync"

	"filekv/internal/store"
)

// Memory keeps the last snapshot in process memory. Nothing survives a
// restart; useful for embedding without a file and for tests.
type Memory struct {
	mu   sync.Mutex
	snap store.Snapshot
	ok   bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Persist(snap store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = append(store.Snapshot(nil), snap...)
	m.ok = true
	return nil
}

func (m *Memory) Restore() (store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ok {
		return nil, store.ErrNoSnapshot
	}
	return append(store.Snapshot(nil), m.snap...), nil
}

func (m *Memory) Close() error {
	return nil
}
