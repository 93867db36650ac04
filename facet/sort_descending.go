package facet

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/facetgo/store"
)

// DescendingIter lazily partitions a candidate set into document-id
// bitmaps ordered by strictly decreasing facet value. Each input
// document appears in exactly one emitted bitmap. The iterator is bound
// to the snapshot of the transaction its region came from.
type DescendingIter struct {
	region  *store.Region
	fieldID uint16
	stack   []descFrame
	cur     *roaring.Bitmap
	err     error
	done    bool
}

// descFrame is one suspended level of the traversal: the candidates
// still unaccounted for in this subtree, a reverse cursor over its
// sibling groups, the scan budget left on that cursor, and the current
// right bound below which the next child range ends.
type descFrame struct {
	candidates *roaring.Bitmap
	cursor     *store.Cursor
	remaining  int // sibling groups left to take, UnboundedGroup = no cap
	rightBound []byte
	rightKind  store.Bound
}

// SortDescending starts a descending facet sort of candidates over a
// field. The input bitmap is cloned; feeding the same inputs twice
// yields identical output.
func SortDescending(region *store.Region, fieldID uint16, candidates *roaring.Bitmap) (*DescendingIter, error) {
	it := &DescendingIter{region: region, fieldID: fieldID}

	highest, ok := HighestLevel(region, fieldID)
	if !ok {
		it.done = true
		return it, nil
	}
	first, ok := FirstBound(region, fieldID)
	if !ok {
		it.done = true
		return it, nil
	}
	last, ok := LastBound(region, fieldID)
	if !ok {
		it.done = true
		return it, nil
	}

	lower := GroupKey{FieldID: fieldID, Level: highest, LeftBound: first}.Marshal()
	upper := GroupKey{FieldID: fieldID, Level: highest, LeftBound: last}.Marshal()
	it.stack = append(it.stack, descFrame{
		candidates: candidates.Clone(),
		cursor:     region.Descend(lower, upper, store.BoundIncluded),
		remaining:  UnboundedGroup,
		rightBound: last,
		rightKind:  store.BoundIncluded,
	})
	return it, nil
}

// Next advances to the next emitted bitmap. After it returns false, Err
// reports whether the iteration ended cleanly.
func (it *DescendingIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}

outer:
	for len(it.stack) > 0 {
		frame := &it.stack[len(it.stack)-1]

		for frame.remaining == UnboundedGroup || frame.remaining > 0 {
			if !frame.cursor.Next() {
				break
			}
			if frame.remaining != UnboundedGroup {
				frame.remaining--
			}

			key, err := UnmarshalGroupKey(frame.cursor.Key())
			if err != nil {
				it.fail(err)
				return false
			}
			// Ranges are right-open across field boundaries; a foreign
			// field id marks the end of the whole iteration.
			if key.FieldID != it.fieldID {
				it.done = true
				return false
			}
			// All documents of this subtree were already emitted by
			// deeper levels; the rest of its siblings can't contribute.
			if frame.candidates.IsEmpty() {
				break
			}

			value, err := UnmarshalGroupValue(frame.cursor.Value())
			if err != nil {
				it.fail(err)
				return false
			}

			common := roaring.And(value.Bitmap, frame.candidates)
			if common.IsEmpty() {
				// Exclude this sibling from future child ranges.
				frame.rightBound = cloneBytes(key.LeftBound)
				frame.rightKind = store.BoundExcluded
				continue
			}

			frame.candidates.AndNot(common)

			if key.Level == 0 {
				frame.rightBound = cloneBytes(key.LeftBound)
				frame.rightKind = store.BoundExcluded
				it.cur = common
				return true
			}

			childLower := GroupKey{FieldID: it.fieldID, Level: key.Level - 1, LeftBound: key.LeftBound}.Marshal()
			var childUpper []byte
			childKind := frame.rightKind
			if childKind != store.BoundUnbounded {
				childUpper = GroupKey{FieldID: it.fieldID, Level: key.Level - 1, LeftBound: frame.rightBound}.Marshal()
			}

			prevBound, prevKind := frame.rightBound, frame.rightKind
			frame.rightBound = cloneBytes(key.LeftBound)
			frame.rightKind = store.BoundExcluded

			it.stack = append(it.stack, descFrame{
				candidates: common,
				cursor:     it.region.Descend(childLower, childUpper, childKind),
				remaining:  int(value.Size),
				rightBound: prevBound,
				rightKind:  prevKind,
			})
			continue outer
		}

		it.stack = it.stack[:len(it.stack)-1]
	}

	it.done = true
	return false
}

// Bitmap returns the current partition. The caller owns it.
func (it *DescendingIter) Bitmap() *roaring.Bitmap { return it.cur }

// Err returns the first fault encountered, or nil after clean
// exhaustion.
func (it *DescendingIter) Err() error { return it.err }

func (it *DescendingIter) fail(err error) {
	it.err = fmt.Errorf("facet: descending sort: %w", err)
	it.done = true
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}
