package ttl

import (
	"context"
	"time"

	"filekv/internal/logs"
	"filekv/internal/metrics"
)

// DefaultInterval is the sweep period.
const DefaultInterval = time.Minute

// Store defines the minimal contract required by the sweeper.
// This keeps the sweeper decoupled from the concrete store implementation.
type Store interface {
	RemoveExpired() (int, error)
}

// Sweeper periodically evicts expired keys and persists the result.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewSweeper creates a new Sweeper. A non-positive interval selects
// DefaultInterval.
func NewSweeper(
	store Store,
	interval time.Duration,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		metrics:  metricsRegistry,
	}
}

// Start sweeps once immediately, then every interval, until ctx is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-ctx.Done():
			s.logger.Debug("ttl sweeper stopped")
			return
		}
	}
}

// runOnce performs a single sweep. A persistence failure is logged and
// counted; the next tick writes the snapshot again.
func (s *Sweeper) runOnce() {
	s.metrics.Inc(metrics.SweepRunsTotal)

	removed, err := s.store.RemoveExpired()
	if removed > 0 {
		s.metrics.Add(metrics.SweepKeysRemovedTotal, int64(removed))
		s.logger.Infof("ttl sweeper removed %d expired keys", removed)
	}
	if err != nil {
		s.metrics.Inc(metrics.SweepFailuresTotal)
		s.logger.Errorf("ttl sweep could not persist snapshot: %v", err)
	}
}
