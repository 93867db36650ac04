package store

import (
	"fmt"

	"github.com/hupe1980/facetgo/extsort"
)

// WriteSorted commits a sorted, duplicate-free stream into a region.
// Keys that already exist in the region are resolved through merge,
// existing value first, and overwritten; absent keys are inserted
// directly. The whole load lives inside the caller's write transaction:
// a later abort leaves the region untouched.
func WriteSorted(region *Region, it extsort.Iterator, merge extsort.MergeFunc) error {
	for it.Next() {
		key, val := it.Key(), it.Value()
		if existing := region.Get(key); existing != nil {
			merged, err := merge(key, [][]byte{existing, val})
			if err != nil {
				return err
			}
			val = merged
		}
		if err := region.Put(key, val); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("store: drain sorted stream: %w", err)
	}
	return nil
}

// WriteReader commits the contents of a raw chunk reader into a region.
// The reader must be sorted with unique keys (already coalesced); keys
// colliding with pre-existing entries are resolved through merge.
func WriteReader(region *Region, r *extsort.Reader, merge extsort.MergeFunc) error {
	return WriteSorted(region, r, merge)
}
