package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"

	"filekv/internal/store"
)

const fileFormatVersion = 1

// ErrCorruptSnapshot is returned by Restore when the backing file does not
// decode or its checksum does not match.
var ErrCorruptSnapshot = errors.New("persist: corrupt snapshot")

// fileRecord is the on-disk form of a store.Record. A nil ExpiresAt means
// the entry never expires.
type fileRecord struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// fileDocument is the whole backing file. Checksum is the xxhash64 of the
// raw Entries bytes, hex encoded.
type fileDocument struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Entries  json.RawMessage `json:"entries"`
}

// JSONFile persists snapshots as a single JSON document.
//
// Writes are atomic: the document goes to a temp file in the same
// directory, is fsynced, then renamed over the target.
type JSONFile struct {
	path    string
	maxSize int64
}

// NewJSONFile returns a JSONFile writing to path. maxSize <= 0 selects
// DefaultMaxFileSize.
func NewJSONFile(path string, maxSize int64) *JSONFile {
	if path == "" {
		path = DefaultPath
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &JSONFile{path: path, maxSize: maxSize}
}

// Path returns the backing file path.
func (f *JSONFile) Path() string {
	return f.path
}

func (f *JSONFile) Persist(snap store.Snapshot) error {
	data, err := encodeDocument(snap)
	if err != nil {
		return err
	}
	if err := checkSize(int64(len(data)), f.maxSize); err != nil {
		return err
	}
	return writeFileAtomic(f.path, data)
}

func (f *JSONFile) Restore() (store.Snapshot, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	if err := checkSize(info.Size(), f.maxSize); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

// Close is a no-op; JSONFile holds no open handles between calls.
func (f *JSONFile) Close() error {
	return nil
}

func encodeDocument(snap store.Snapshot) ([]byte, error) {
	records := make([]fileRecord, 0, len(snap))
	for _, r := range snap {
		rec := fileRecord{Key: r.Key, Value: r.Value}
		if !r.ExpiresAt.IsZero() {
			exp := r.ExpiresAt
			rec.ExpiresAt = &exp
		}
		records = append(records, rec)
	}

	entries, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("persist: encode entries: %w", err)
	}

	return json.Marshal(fileDocument{
		Version:  fileFormatVersion,
		Checksum: checksum(entries),
		Entries:  entries,
	})
}

func decodeDocument(data []byte) (store.Snapshot, error) {
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, doc.Version)
	}
	if got := checksum(doc.Entries); got != doc.Checksum {
		return nil, fmt.Errorf("%w: checksum %s, want %s", ErrCorruptSnapshot, got, doc.Checksum)
	}

	var records []fileRecord
	if err := json.Unmarshal(doc.Entries, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	snap := make(store.Snapshot, 0, len(records))
	for _, rec := range records {
		r := store.Record{Key: rec.Key, Value: rec.Value}
		if rec.ExpiresAt != nil {
			r.ExpiresAt = *rec.ExpiresAt
		}
		snap = append(snap, r)
	}
	return snap, nil
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

func checkSize(size, limit int64) error {
	if size <= limit {
		return nil
	}
	return fmt.Errorf("%w: %s exceeds %s",
		store.ErrStorageLimitExceeded,
		humanize.IBytes(uint64(size)),
		humanize.IBytes(uint64(limit)),
	)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Remove the temp file on any failure below; after a successful rename
	// this is a harmless ENOENT.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
