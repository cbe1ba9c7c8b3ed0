package store

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"filekv/internal/logs"
	"filekv/internal/metrics"
)

// Size limits enforced by Create and BatchCreate.
const (
	MaxKeySize   = 32
	MaxValueSize = 16 * 1024
	MaxBatchSize = 100
)

// MaxTTLSeconds is the largest ttl, in seconds, that fits a time.Duration.
const MaxTTLSeconds = math.MaxInt64 / int64(time.Second)

// TTLFromSeconds converts a caller supplied ttl. Zero means the entry never
// expires; negative values and values past MaxTTLSeconds fail with
// ErrInvalidTTL instead of wrapping around.
func TTLFromSeconds(seconds int64) (time.Duration, error) {
	if seconds < 0 {
		return 0, fmt.Errorf("%w: ttl_seconds must not be negative, got %d", ErrInvalidTTL, seconds)
	}
	if seconds > MaxTTLSeconds {
		return 0, fmt.Errorf("%w: ttl_seconds %d exceeds %d", ErrInvalidTTL, seconds, MaxTTLSeconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

// KV is one element of an ordered batch.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store is a concurrency-safe key-value table backed by a Persister.
//
// Design principles:
//   - One sync.Mutex (not an RWMutex) serializes every operation, reads and
//     the sweep included.
//   - The snapshot is persisted inside the critical section, so no caller
//     observes a mutation that is not yet on disk. A slow Persister stalls
//     every caller.
//   - An expired entry is indistinguishable from an absent one. Read and
//     Delete evict it, Create overwrites it.
//   - Each operation reads the clock once.
//
// Lock acquisition is unbounded and operations take no context.
type Store struct {
	mu        sync.Mutex
	data      map[string]Entry
	persister Persister
	metrics   *metrics.Registry
	logger    *logs.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore builds a Store and loads the persisted snapshot, if any.
// Entries that expired while the process was down are dropped.
func NewStore(
	persister Persister,
	metricsRegistry *metrics.Registry,
	logger *logs.Logger,
	opts ...Option,
) (*Store, error) {
	if persister == nil {
		return nil, errors.New("store: nil persister")
	}

	s := &Store{
		data:      make(map[string]Entry),
		persister: persister,
		metrics:   metricsRegistry,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := persister.Restore()
	switch {
	case errors.Is(err, ErrNoSnapshot):
		s.logger.Info("no snapshot found, starting empty")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%w: restore: %w", ErrPersistence, err)
	}

	now := s.now()
	dropped := 0
	for _, rec := range snap {
		e := Entry{Value: rec.Value, ExpiresAt: rec.ExpiresAt}
		if e.IsExpired(now) {
			dropped++
			continue
		}
		s.data[rec.Key] = e
	}

	s.metrics.Add(metrics.StoreKeys, int64(len(s.data)))
	s.metrics.Add(metrics.RestoredKeysTotal, int64(len(s.data)))
	s.logger.Infof("restored %d keys (%d already expired)", len(s.data), dropped)

	return s, nil
}

// Create inserts key with value. A ttl <= 0 means the entry never expires.
//
// Rules:
//   - Empty keys are rejected with ErrInvalidKey.
//   - Keys over MaxKeySize or values over MaxValueSize fail with ErrSizeLimitExceeded.
//   - A live key fails with ErrKeyAlreadyExists; an expired one is overwritten.
//   - If persisting fails the insert is undone and ErrPersistence is returned.
func (s *Store) Create(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(key, value, ttl, s.now())
}

// BatchCreate applies Create to each entry in order under a single
// acquisition of the lock.
//
// It is not a transaction: the first failing entry stops the batch, entries
// before it stay committed (and persisted). The returned count is the number
// of committed entries.
func (s *Store) BatchCreate(entries []KV, ttl time.Duration) (int, error) {
	if len(entries) > MaxBatchSize {
		s.metrics.Inc(metrics.StoreRejectedTotal)
		return 0, fmt.Errorf("%w: %d entries, max %d", ErrBatchTooLarge, len(entries), MaxBatchSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Inc(metrics.StoreBatchesTotal)

	now := s.now()
	for i, kv := range entries {
		if err := s.createLocked(kv.Key, kv.Value, ttl, now); err != nil {
			return i, fmt.Errorf("batch entry %d: %w", i, err)
		}
	}
	return len(entries), nil
}

// createLocked is the body of Create. Caller must hold s.mu.
func (s *Store) createLocked(key, value string, ttl time.Duration, now time.Time) error {
	if err := validate(key, value); err != nil {
		s.metrics.Inc(metrics.StoreRejectedTotal)
		return err
	}

	prev, exists := s.data[key]
	if exists && !prev.IsExpired(now) {
		s.metrics.Inc(metrics.StoreRejectedTotal)
		return fmt.Errorf("%w: %q", ErrKeyAlreadyExists, key)
	}

	entry := Entry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	s.data[key] = entry

	if err := s.persistLocked(); err != nil {
		if exists {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}

	s.metrics.Inc(metrics.StoreCreatesTotal)
	if exists {
		s.metrics.Inc(metrics.StoreExpiredTotal)
	} else {
		s.metrics.Inc(metrics.StoreKeys)
	}
	return nil
}

// Read returns the value stored under key.
//
// Behavior:
//   - Absent and expired keys both fail with ErrKeyNotFound.
//   - An expired key is evicted and the snapshot persisted. A failure of that
//     persist is logged; the next mutation or sweep rewrites the snapshot.
func (s *Store) Read(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Inc(metrics.StoreReadsTotal)

	entry, ok := s.liveLocked(key, s.now())
	if !ok {
		s.metrics.Inc(metrics.StoreMissesTotal)
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return entry.Value, nil
}

// Delete removes key. Absent and expired keys fail with ErrKeyNotFound.
// If persisting fails the entry is put back and ErrPersistence is returned.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveLocked(key, s.now())
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	delete(s.data, key)
	if err := s.persistLocked(); err != nil {
		s.data[key] = entry
		return err
	}

	s.metrics.Inc(metrics.StoreDeletesTotal)
	s.metrics.Add(metrics.StoreKeys, -1)
	return nil
}

// liveLocked looks key up and lazily evicts it if expired. Caller must hold s.mu.
func (s *Store) liveLocked(key string, now time.Time) (Entry, bool) {
	entry, ok := s.data[key]
	if !ok {
		return Entry{}, false
	}
	if !entry.IsExpired(now) {
		return entry, true
	}

	delete(s.data, key)
	s.metrics.Inc(metrics.StoreExpiredTotal)
	s.metrics.Add(metrics.StoreKeys, -1)

	if err := s.persistLocked(); err != nil {
		s.logger.Warnf("evicted expired key %q but snapshot was not saved: %v", key, err)
	}
	return Entry{}, false
}

// RemoveExpired removes every expired entry and persists the result, even
// when nothing was removed, so an earlier failed persist is retried.
//
// This is the body of one sweeper tick.
func (s *Store) RemoveExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, v := range s.data {
		if v.IsExpired(now) {
			delete(s.data, k)
			removed++
		}
	}

	if removed > 0 {
		s.metrics.Add(metrics.StoreExpiredTotal, int64(removed))
		s.metrics.Add(metrics.StoreKeys, -int64(removed))
	}

	return removed, s.persistLocked()
}

// List returns a copy of all non-expired entries.
// Used by admin APIs.
func (s *Store) List() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := make(map[string]Entry, len(s.data))
	for k, v := range s.data {
		if !v.IsExpired(now) {
			result[k] = v
		}
	}
	return result
}

// Len returns the number of entries in the table, expired-but-unswept ones
// included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data)
}

// persistLocked hands the current snapshot to the Persister. Caller must hold s.mu.
func (s *Store) persistLocked() error {
	err := s.persister.Persist(s.snapshotLocked())
	if err == nil {
		s.metrics.Inc(metrics.PersistWritesTotal)
		return nil
	}

	s.metrics.Inc(metrics.PersistFailuresTotal)
	if errors.Is(err, ErrStorageLimitExceeded) {
		s.metrics.Inc(metrics.StorageLimitExceededTotal)
	}
	s.logger.Warnf("persist failed: %v", err)

	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func validate(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if len(key) > MaxKeySize {
		return fmt.Errorf("%w: key is %d bytes, max %d", ErrSizeLimitExceeded, len(key), MaxKeySize)
	}
	if len(value) > MaxValueSize {
		return fmt.Errorf("%w: value is %d bytes, max %d", ErrSizeLimitExceeded, len(value), MaxValueSize)
	}
	return nil
}
