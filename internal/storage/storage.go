// Package storage provides the namespaced key-value store behind the
// activity and notification caches. Values are JSON-serialized arrays; keys
// are namespaced per identity per store (e.g. "activities_<id>"), so callers
// never contend on a key and no locking beyond the store's own is required.
//
// Writes are best-effort at the call site: callers catch ErrQuotaExceeded and
// degrade (retry with a smaller cap, then drop) rather than propagating.
package storage

import "errors"

// Errors
var (
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
	ErrClosed        = errors.New("storage: closed")
)

// Store is a flat key-value store.
type Store interface {
	// Get returns the value for key, and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Put writes the value for key. Returns ErrQuotaExceeded when the value
	// does not fit the store's capacity budget.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases the store.
	Close() error
}
