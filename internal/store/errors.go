package store

import "errors"

var (
	ErrInvalidKey           = errors.New("store: invalid key")
	ErrInvalidTTL           = errors.New("store: invalid ttl")
	ErrSizeLimitExceeded    = errors.New("store: key or value exceeds allowed size")
	ErrKeyAlreadyExists     = errors.New("store: key already exists")
	ErrKeyNotFound          = errors.New("store: key does not exist or has expired")
	ErrBatchTooLarge        = errors.New("store: batch size exceeds limit")
	ErrStorageLimitExceeded = errors.New("store: backing storage limit exceeded")
	ErrPersistence          = errors.New("store: persistence failure")

	// ErrNoSnapshot is returned by Persister.Restore when there is no
	// backing state yet. NewStore treats it as an empty table.
	ErrNoSnapshot = errors.New("store: no snapshot")
)

// Error kinds as reported to callers.
const (
	KindInvalidKey           = "InvalidKey"
	KindInvalidTTL           = "InvalidTTL"
	KindSizeLimitExceeded    = "SizeLimitExceeded"
	KindKeyAlreadyExists     = "KeyAlreadyExists"
	KindKeyNotFound          = "KeyNotFound"
	KindBatchTooLarge        = "BatchTooLarge"
	KindStorageLimitExceeded = "StorageLimitExceeded"
	KindPersistenceFailure   = "PersistenceFailure"
)

// kinds is ordered: a storage limit failure also wraps ErrPersistence and
// must be reported as the more specific kind.
var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidKey, KindInvalidKey},
	{ErrInvalidTTL, KindInvalidTTL},
	{ErrSizeLimitExceeded, KindSizeLimitExceeded},
	{ErrKeyAlreadyExists, KindKeyAlreadyExists},
	{ErrKeyNotFound, KindKeyNotFound},
	{ErrBatchTooLarge, KindBatchTooLarge},
	{ErrStorageLimitExceeded, KindStorageLimitExceeded},
	{ErrPersistence, KindPersistenceFailure},
}

// Kind returns the reason string for an error produced by the Store, or ""
// if err is nil or not one of ours.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}
