package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Store operations
	StoreKeys          MetricKey = "store_keys"
	StoreCreatesTotal  MetricKey = "store_creates_total"
	StoreReadsTotal    MetricKey = "store_reads_total"
	StoreMissesTotal   MetricKey = "store_misses_total"
	StoreDeletesTotal  MetricKey = "store_deletes_total"
	StoreBatchesTotal  MetricKey = "store_batches_total"
	StoreRejectedTotal MetricKey = "store_rejected_total"
	StoreExpiredTotal  MetricKey = "store_expired_total"

	// Persistence
	PersistWritesTotal        MetricKey = "persist_writes_total"
	PersistFailuresTotal      MetricKey = "persist_failures_total"
	StorageLimitExceededTotal MetricKey = "storage_limit_exceeded_total"
	RestoredKeysTotal         MetricKey = "restored_keys_total"

	// Sweeper
	SweepRunsTotal        MetricKey = "sweep_runs_total"
	SweepKeysRemovedTotal MetricKey = "sweep_keys_removed_total"
	SweepFailuresTotal    MetricKey = "sweep_failures_total"

	// HTTP
	HTTPRequestsTotal MetricKey = "http_requests_total"
	HTTPPanicsTotal   MetricKey = "http_panics_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta. A negative delta is how gauges such as
// StoreKeys go down.
func (r *Registry) Add(key MetricKey, delta int64) {
	if r == nil {
		return
	}

	atomic.AddInt64(r.counter(key), delta)
}

// Get returns the current value of a single metric, zero if never touched.
func (r *Registry) Get(key MetricKey) int64 {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if !ok {
		return 0
	}
	return atomic.LoadInt64(ptr)
}

// counter returns the slot for key, creating it on first use.
func (r *Registry) counter(key MetricKey) *int64 {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		return ptr
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		return ptr
	}

	ptr = new(int64)
	r.counters[key] = ptr
	return ptr
}
