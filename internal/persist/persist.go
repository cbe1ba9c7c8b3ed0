// Package persist implements the persistence boundary of the store: backends
// that save a full store.Snapshot after every mutation and load it back once
// at startup.
package persist

import (
	"context"
	"fmt"
	"io"

	"filekv/internal/store"
)

const (
	DefaultPath = "dataStore.json"

	// DefaultBoltPath is used by BackendBolt when no path is given.
	DefaultBoltPath = "dataStore.db"

	// DefaultMaxFileSize bounds the backing file at 1 GiB.
	DefaultMaxFileSize int64 = 1 << 30
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Backend is a store.Persister that owns resources to release on shutdown.
type Backend interface {
	store.Persister
	io.Closer
}

// Options selects and configures a Backend.
type Options struct {
	Backend     string
	Path        string
	MaxFileSize int64
	Retry       RetryPolicy
}

// DefaultPathFor returns the file a backend writes to when no path is
// configured, "" for backends without a file.
func DefaultPathFor(backend string) string {
	switch backend {
	case "", BackendJSON:
		return DefaultPath
	case BackendBolt:
		return DefaultBoltPath
	default:
		return ""
	}
}

// Open builds the configured backend. An empty Backend selects BackendJSON
// and an empty Path selects DefaultPathFor(Backend).
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewJSONFile(opts.Path, opts.MaxFileSize), nil
	case BackendBolt:
		path := opts.Path
		if path == "" {
			path = DefaultBoltPath
		}
		return OpenBolt(ctx, path, opts.MaxFileSize, opts.Retry)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("persist: unknown backend %q", opts.Backend)
	}
}
