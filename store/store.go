package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrRegionNotFound is returned when reading from a region that has
// never been created.
var ErrRegionNotFound = errors.New("store: region not found")

// Options configures Open.
type Options struct {
	// FileMode is the permission mask for the database file.
	FileMode uint32
	// Timeout bounds how long Open waits for the file lock. Zero waits
	// indefinitely.
	Timeout time.Duration
	// ReadOnly opens the database without write access.
	ReadOnly bool
}

// Store is a handle to the persistent key-value store. It enforces
// single-writer-multiple-reader discipline: any number of read
// transactions may run concurrently with at most one write transaction.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store file at path.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{FileMode: 0o600}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := bolt.Open(path, os.FileMode(opts.FileMode), &bolt.Options{
		Timeout:  opts.Timeout,
		ReadOnly: opts.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the store file.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// Path returns the path of the store file.
func (s *Store) Path() string { return s.db.Path() }

// Update runs fn inside a single write transaction. fn returning an
// error rolls back every write it performed.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// View runs fn against an immutable snapshot.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx: btx})
	})
}

// Begin starts an explicit transaction. Explicit read transactions back
// the pull-based facet iterators, whose lifetime exceeds a callback
// scope; the caller must Rollback (readers) or Commit (writers).
func (s *Store) Begin(writable bool) (*Tx, error) {
	btx, err := s.db.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	return &Tx{btx: btx}, nil
}

// Tx is a transaction over the store. Read transactions observe one
// immutable snapshot for their entire lifetime.
type Tx struct {
	btx *bolt.Tx
}

// Commit makes every write of the transaction durable atomically.
func (t *Tx) Commit() error {
	if err := t.btx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Safe to call after Commit.
func (t *Tx) Rollback() error {
	if err := t.btx.Rollback(); err != nil && !errors.Is(err, bolt.ErrTxClosed) {
		return fmt.Errorf("store: rollback: %w", err)
	}
	return nil
}

// Region returns the named region, or ErrRegionNotFound if it was never
// created.
func (t *Tx) Region(name string) (*Region, error) {
	b := t.btx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, name)
	}
	return &Region{b: b}, nil
}

// CreateRegion returns the named region, creating it if needed. Only
// valid in a write transaction.
func (t *Tx) CreateRegion(name string) (*Region, error) {
	b, err := t.btx.CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("store: create region %q: %w", name, err)
	}
	return &Region{b: b}, nil
}

// Region is a sorted keyspace inside a transaction.
type Region struct {
	b *bolt.Bucket
}

// Get returns the value for key, or nil if absent. The returned slice
// is only valid for the lifetime of the transaction and must not be
// modified.
func (r *Region) Get(key []byte) []byte {
	return r.b.Get(key)
}

// Put stores key/value. The slices are copied before the call returns
// so the caller's buffers can be reused.
func (r *Region) Put(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if err := r.b.Put(k, v); err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	return nil
}

// Delete removes key if present.
func (r *Region) Delete(key []byte) error {
	if err := r.b.Delete(key); err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	return nil
}

// Len returns the number of keys in the region.
func (r *Region) Len() int {
	return r.b.Stats().KeyN
}
