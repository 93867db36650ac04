package store

import (
	"bytes"

	bolt "go.etcd.io/bbolt"
)

// Bound describes one end of a key range.
type Bound uint8

const (
	// BoundUnbounded leaves the range open on that side.
	BoundUnbounded Bound = iota
	// BoundIncluded includes the bound key itself.
	BoundIncluded
	// BoundExcluded excludes the bound key.
	BoundExcluded
)

// Cursor walks a region in one direction. It is bound to the snapshot
// of the transaction that created it; key and value slices are valid
// until the next call to Next.
//
// Reads against the memory-mapped file cannot fail mid-scan, so Cursor
// carries no error state; exhaustion is the only terminal condition.
type Cursor struct {
	c       *bolt.Cursor
	key     []byte
	val     []byte
	started bool
	done    bool

	reverse bool
	seek    []byte // ascending: first key; descending: upper bound key
	upper   Bound  // descending only
	lower   []byte // descending: inclusive lower bound, nil = unbounded
}

// Ascend returns a cursor over keys >= from, unbounded on the right.
// Callers detect their own logical end (e.g. a foreign field id).
func (r *Region) Ascend(from []byte) *Cursor {
	return &Cursor{c: r.b.Cursor(), seek: from}
}

// Descend returns a cursor over keys from the upper bound down to the
// inclusive lower bound. A nil lower scans to the start of the region;
// upper BoundUnbounded starts from the last key.
func (r *Region) Descend(lower, upperKey []byte, upper Bound) *Cursor {
	return &Cursor{
		c:       r.b.Cursor(),
		reverse: true,
		seek:    upperKey,
		upper:   upper,
		lower:   lower,
	}
}

// Next advances the cursor and reports whether a pair is available.
func (cu *Cursor) Next() bool {
	if cu.done {
		return false
	}

	var k, v []byte
	switch {
	case !cu.started && !cu.reverse:
		cu.started = true
		k, v = cu.c.Seek(cu.seek)
	case !cu.started && cu.reverse:
		cu.started = true
		k, v = cu.positionReverse()
	case cu.reverse:
		k, v = cu.c.Prev()
	default:
		k, v = cu.c.Next()
	}

	if k == nil || (cu.reverse && cu.lower != nil && bytes.Compare(k, cu.lower) < 0) {
		cu.done = true
		cu.key, cu.val = nil, nil
		return false
	}
	cu.key, cu.val = k, v
	return true
}

// positionReverse places the underlying cursor on the largest key that
// satisfies the upper bound.
func (cu *Cursor) positionReverse() ([]byte, []byte) {
	if cu.upper == BoundUnbounded {
		return cu.c.Last()
	}
	k, v := cu.c.Seek(cu.seek)
	switch {
	case k == nil:
		// Everything is smaller than the bound.
		return cu.c.Last()
	case bytes.Equal(k, cu.seek):
		if cu.upper == BoundIncluded {
			return k, v
		}
		return cu.c.Prev()
	default:
		// Seek landed past the bound.
		return cu.c.Prev()
	}
}

// Key returns the current key.
func (cu *Cursor) Key() []byte { return cu.key }

// Value returns the current value.
func (cu *Cursor) Value() []byte { return cu.val }
