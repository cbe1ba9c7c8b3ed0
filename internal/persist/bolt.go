package persist

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"filekv/internal/store"
)

const defaultBucket = "entries"

// BoltFile persists snapshots into a single bbolt bucket.
//
// Value layout: 1 flag byte (1 = has expiration) || 8 bytes big endian
// ExpiresAt unix seconds || 4 bytes big endian nanoseconds || raw value.
// Seconds plus nanos cover every time.Time, unlike UnixNano which stops at 2262.
type BoltFile struct {
	db      *bolt.DB
	bucket  []byte
	maxSize int64
}

// OpenBolt opens or creates the database at path. Another process holding
// the file lock makes bolt.Open time out; that is retried per policy.
func OpenBolt(ctx context.Context, path string, maxSize int64, policy RetryPolicy) (*BoltFile, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var db *bolt.DB
	err := Retry(ctx, policy, func() error {
		var err error
		db, err = bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}

	return &BoltFile{db: db, bucket: []byte(defaultBucket), maxSize: maxSize}, nil
}

// Persist replaces the bucket contents with snap in one transaction. The
// transaction is rolled back if the database would outgrow maxSize.
func (b *BoltFile) Persist(snap store.Snapshot) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(b.bucket) != nil {
			if err := tx.DeleteBucket(b.bucket); err != nil {
				return err
			}
		}
		bkt, err := tx.CreateBucket(b.bucket)
		if err != nil {
			return err
		}

		for _, r := range snap {
			if err := bkt.Put([]byte(r.Key), encodeValue(r)); err != nil {
				return err
			}
		}

		return checkSize(tx.Size(), b.maxSize)
	})
}

// Restore reads the bucket back. A database without the bucket has never
// been persisted to and yields store.ErrNoSnapshot.
func (b *BoltFile) Restore() (store.Snapshot, error) {
	var snap store.Snapshot
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(b.bucket)
		if bkt == nil {
			return store.ErrNoSnapshot
		}
		return bkt.ForEach(func(k, v []byte) error {
			rec, err := decodeValue(k, v)
			if err != nil {
				return err
			}
			snap = append(snap, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Close closes the underlying database.
func (b *BoltFile) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

const (
	valueHeaderSize = 13
	flagExpires     = 1
)

func encodeValue(r store.Record) []byte {
	buf := make([]byte, valueHeaderSize+len(r.Value))
	if !r.ExpiresAt.IsZero() {
		buf[0] = flagExpires
		binary.BigEndian.PutUint64(buf[1:9], uint64(r.ExpiresAt.Unix()))
		binary.BigEndian.PutUint32(buf[9:valueHeaderSize], uint32(r.ExpiresAt.Nanosecond()))
	}
	copy(buf[valueHeaderSize:], r.Value)
	return buf
}

func decodeValue(k, v []byte) (store.Record, error) {
	if len(v) < valueHeaderSize {
		return store.Record{}, fmt.Errorf("%w: key %q has a %d byte value", ErrCorruptSnapshot, k, len(v))
	}

	// bbolt memory is only valid inside the transaction, string() copies.
	rec := store.Record{Key: string(k), Value: string(v[valueHeaderSize:])}

	switch v[0] {
	case 0:
	case flagExpires:
		sec := int64(binary.BigEndian.Uint64(v[1:9]))
		nsec := binary.BigEndian.Uint32(v[9:valueHeaderSize])
		if nsec >= 1e9 {
			return store.Record{}, fmt.Errorf("%w: key %q has %d nanoseconds", ErrCorruptSnapshot, k, nsec)
		}
		rec.ExpiresAt = time.Unix(sec, int64(nsec))
	default:
		return store.Record{}, fmt.Errorf("%w: key %q has flag %#x", ErrCorruptSnapshot, k, v[0])
	}
	return rec, nil
}
