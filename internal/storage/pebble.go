package storage

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleOptions configures a Pebble-backed store.
type PebbleOptions struct {
	// MaxValueBytes caps the size of a single value. Writes above the cap
	// fail with ErrQuotaExceeded. Zero disables the cap.
	MaxValueBytes int
}

// Pebble implements Store on an embedded PebbleDB.
type Pebble struct {
	db   *pebble.DB
	opts PebbleOptions
}

// OpenPebble opens (or creates) a Pebble store at dir.
func OpenPebble(dir string, opts PebbleOptions) (*Pebble, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Pebble{db: db, opts: opts}, nil
}

func (p *Pebble) Get(key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pebble get: %w", err)
	}
	out := append([]byte(nil), v...)
	if err := closer.Close(); err != nil {
		return nil, false, fmt.Errorf("pebble get close: %w", err)
	}
	return out, true, nil
}

func (p *Pebble) Put(key string, value []byte) error {
	if p.opts.MaxValueBytes > 0 && len(value) > p.opts.MaxValueBytes {
		return ErrQuotaExceeded
	}
	if err := p.db.Set([]byte(key), value, pebble.NoSync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *Pebble) Delete(key string) error {
	if err := p.db.Delete([]byte(key), pebble.NoSync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

func (p *Pebble) Close() error { return p.db.Close() }
