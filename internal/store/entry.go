package store

import "time"

// Entry represents a single value stored in the table.
//
// Entries are never mutated in place: Create inserts one, Delete or
// expiration removes it. Zero value of ExpiresAt means "no expiration".
type Entry struct {
	Value     string
	ExpiresAt time.Time
}

// IsExpired reports whether the entry is expired at the given time.
// An entry expires at ExpiresAt, not after it.
func (e Entry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}
