package facet

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/facetgo/store"
)

// DistributionFunc receives one facet value in ascending bound order
// together with the number of candidate documents carrying it and one
// representative document id. Returning false stops the traversal
// immediately; no further groups are read.
//
// The bound slice aliases store memory and is only valid during the
// call.
type DistributionFunc func(bound []byte, count uint64, docID uint32) (bool, error)

// Distribution computes the facet value distribution of a field over a
// candidate set. Values whose bitmap does not intersect the candidates
// are skipped without invoking fn; no value is visited twice.
//
// The traversal starts at the field's highest level and recurses into
// every group with a nonzero intersection, narrowing the candidate set
// on the way down. Recursion depth is bounded by the level count.
func Distribution(region *store.Region, fieldID uint16, candidates *roaring.Bitmap, fn DistributionFunc) error {
	if candidates == nil || candidates.IsEmpty() {
		return nil
	}
	highest, ok := HighestLevel(region, fieldID)
	if !ok {
		return nil
	}
	first, ok := FirstBound(region, fieldID)
	if !ok {
		return nil
	}
	d := &distribution{region: region, fieldID: fieldID, fn: fn}
	_, err := d.iterate(candidates, highest, first, UnboundedGroup)
	return err
}

type distribution struct {
	region  *store.Region
	fieldID uint16
	fn      DistributionFunc
}

// iterate scans up to limit sibling groups of one level starting at
// startBound. A limit of UnboundedGroup scans until the level or field
// boundary; ranges are right-open across field boundaries, so the
// boundary is detected on the key, never inferred as a tighter bound.
// The returned stop flag propagates a callback stop through every
// recursion level.
func (d *distribution) iterate(candidates *roaring.Bitmap, level uint8, startBound []byte, limit int) (bool, error) {
	cu := d.region.Ascend(GroupKey{FieldID: d.fieldID, Level: level, LeftBound: startBound}.Marshal())

	for taken := 0; limit == UnboundedGroup || taken < limit; taken++ {
		if !cu.Next() {
			return false, nil
		}
		key, err := UnmarshalGroupKey(cu.Key())
		if err != nil {
			return false, fmt.Errorf("facet: distribution scan: %w", err)
		}
		// Scanned past the logical end of this field's groups.
		if key.FieldID != d.fieldID || key.Level != level {
			return true, nil
		}
		value, err := UnmarshalGroupValue(cu.Value())
		if err != nil {
			return false, fmt.Errorf("facet: distribution scan: %w", err)
		}

		if level == 0 {
			common := candidates.AndCardinality(value.Bitmap)
			if common == 0 {
				continue
			}
			keep, err := d.fn(key.LeftBound, common, value.Bitmap.Minimum())
			if err != nil {
				return false, err
			}
			if !keep {
				return true, nil
			}
			continue
		}

		narrowed := roaring.And(candidates, value.Bitmap)
		if narrowed.IsEmpty() {
			continue
		}
		stop, err := d.iterate(narrowed, level-1, key.LeftBound, int(value.Size))
		if err != nil {
			return false, err
		}
		if stop {
			return true, nil
		}
	}
	return false, nil
}
