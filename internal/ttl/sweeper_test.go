package ttl

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"filekv/internal/logs"
	"filekv/internal/metrics"
	"filekv/internal/persist"
	"filekv/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ---------------- Mock Store ---------------- */

type mockStore struct {
	calls   int32
	removed int
	err     error
}

func (m *mockStore) RemoveExpired() (int, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.removed, m.err
}

/* ---------------- Tests ---------------- */

func TestSweeper_RunOnce_RemovesExpiredAndUpdatesMetrics(t *testing.T) {
	store := &mockStore{removed: 3}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	sweeper := NewSweeper(store, time.Second, logger, reg)

	sweeper.runOnce()

	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap[string(metrics.SweepRunsTotal)])
	assert.Equal(t, int64(3), snap[string(metrics.SweepKeysRemovedTotal)])
	assert.Zero(t, snap[string(metrics.SweepFailuresTotal)])
}

func TestSweeper_RunOnce_PersistFailureIsLoggedNotFatal(t *testing.T) {
	store := &mockStore{removed: 1, err: errors.New("disk full")}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	sweeper := NewSweeper(store, time.Second, logger, reg)

	assert.NotPanics(t, sweeper.runOnce)
	assert.Equal(t, int64(1), reg.Get(metrics.SweepFailuresTotal))

	last := logger.GetLast(1)
	require.Len(t, last, 1)
	assert.Equal(t, logs.ERROR, last[0].Level)
	assert.Contains(t, last[0].Message, "disk full")
}

func TestSweeper_Start_SweepsImmediately(t *testing.T) {
	store := &mockStore{}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	// An hour-long interval: only the initial sweep can run during the test.
	sweeper := NewSweeper(store, time.Hour, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Start(ctx)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&store.calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSweeper_Start_RunsPeriodically(t *testing.T) {
	store := &mockStore{}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	sweeper := NewSweeper(store, 5*time.Millisecond, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Start(ctx)

	assert.Eventually(t, func() bool {
		return reg.Get(metrics.SweepRunsTotal) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSweeper_Start_StopsOnContextCancel(t *testing.T) {
	store := &mockStore{}
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	sweeper := NewSweeper(store, 5*time.Millisecond, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	runsAtStop := reg.Get(metrics.SweepRunsTotal)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, runsAtStop, reg.Get(metrics.SweepRunsTotal), "no sweeps after Start returned")
}

func TestSweeper_Start_CancelledContextDoesNothing(t *testing.T) {
	store := &mockStore{}
	sweeper := NewSweeper(store, time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper.Start(ctx)
	assert.Zero(t, atomic.LoadInt32(&store.calls))
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	sweeper := NewSweeper(&mockStore{}, 0, nil, nil)
	assert.Equal(t, time.Minute, sweeper.interval)
}

func TestSweeper_EvictsFromRealStore(t *testing.T) {
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)
	backend := persist.NewMemory()

	st, err := store.NewStore(backend, reg, logger)
	require.NoError(t, err)

	require.NoError(t, st.Create("short", "1", 10*time.Millisecond))
	require.NoError(t, st.Create("forever", "2", 0))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go NewSweeper(st, time.Hour, logger, reg).Start(ctx)

	assert.Eventually(t, func() bool {
		return st.Len() == 1
	}, time.Second, 5*time.Millisecond, "initial sweep evicts without any read")

	snap, err := backend.Restore()
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "forever", snap[0].Key)
}
