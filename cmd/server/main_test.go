package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"filekv/internal/config"
	"filekv/internal/persist"
	"filekv/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boltConfig(path string) config.Config {
	cfg := config.Default()
	cfg.Backend = persist.BackendBolt
	cfg.DataFile = path
	cfg.Listen = "127.0.0.1:0"
	return cfg
}

// writeCorruptBolt leaves a bucket entry too short to decode.
func writeCorruptBolt(t *testing.T, path string) {
	t.Helper()

	db, err := bolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte("entries"))
		if err != nil {
			return err
		}
		return bkt.Put([]byte("k"), []byte{1})
	}))
	require.NoError(t, db.Close())
}

func assertUnlocked(t *testing.T, path string) {
	t.Helper()

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 200 * time.Millisecond})
	require.NoError(t, err, "file lock must be released")
	assert.NoError(t, db.Close())
}

func TestRun_StoreErrorReleasesBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	writeCorruptBolt(t, path)

	err := run(context.Background(), boltConfig(path), io.Discard)
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.ErrorIs(t, err, persist.ErrCorruptSnapshot)

	assertUnlocked(t, path)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, boltConfig(path), io.Discard) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	assertUnlocked(t, path)
}
