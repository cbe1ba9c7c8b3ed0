package store

import (
	"sort"
	"time"
)

// Record is one (key, value, expiration) triple of a Snapshot.
type Record struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

// Snapshot is the full table state at one instant, sorted by key.
type Snapshot []Record

// Persister is the persistence boundary. Persist is called with the Guard
// held after every mutation; Restore once, when the Store is built.
type Persister interface {
	Persist(Snapshot) error
	Restore() (Snapshot, error)
}

// snapshotLocked copies the table. Caller must hold s.mu.
func (s *Store) snapshotLocked() Snapshot {
	snap := make(Snapshot, 0, len(s.data))
	for k, e := range s.data {
		snap = append(snap, Record{Key: k, Value: e.Value, ExpiresAt: e.ExpiresAt})
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i].Key < snap[j].Key })
	return snap
}

// Snapshot returns a copy of the whole table, expired-but-unswept entries
// included.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}
