package facet

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/facetgo/store"
)

// Builder constructs the grouped levels of a field from its level-0
// entries. Levels are built once per settled field and are read-only
// between rebuilds; a rebuild is a whole-field replacement inside the
// caller's write transaction.
type Builder struct {
	// GroupSize is the fan-out: how many entries of level L one level
	// L+1 group summarizes. Bounded to 254 so the size byte never
	// collides with the UnboundedGroup sentinel.
	GroupSize uint8
	// MinLevelSize stops level construction: a level with fewer entries
	// than this does not get a parent level.
	MinLevelSize int
}

// DefaultBuilder mirrors the fan-out the index was designed around.
func DefaultBuilder() Builder {
	return Builder{GroupSize: 4, MinLevelSize: 5}
}

type levelEntry struct {
	bound  []byte
	bitmap *roaring.Bitmap
	size   uint8
}

// Rebuild drops every level >= 1 of the field and rebuilds them from
// its level-0 entries. A field with no level-0 entries ends up with no
// levels at all.
func (b Builder) Rebuild(region *store.Region, fieldID uint16) error {
	groupSize := int(b.GroupSize)
	if groupSize < 2 {
		groupSize = 2
	}
	if groupSize > 254 {
		groupSize = 254
	}
	minLevel := b.MinLevelSize
	if minLevel < 1 {
		minLevel = 1
	}

	if err := b.dropUpperLevels(region, fieldID); err != nil {
		return err
	}

	entries, err := readLevel(region, fieldID, 0)
	if err != nil {
		return err
	}

	level := uint8(0)
	for len(entries) > minLevel {
		level++
		groups := make([]levelEntry, 0, (len(entries)+groupSize-1)/groupSize)
		for i := 0; i < len(entries); i += groupSize {
			j := i + groupSize
			if j > len(entries) {
				j = len(entries)
			}
			bm := roaring.New()
			for _, e := range entries[i:j] {
				bm.Or(e.bitmap)
			}
			size := uint8(j - i)
			if j == len(entries) {
				size = UnboundedGroup
			}
			groups = append(groups, levelEntry{bound: entries[i].bound, bitmap: bm, size: size})
		}

		for _, g := range groups {
			key := GroupKey{FieldID: fieldID, Level: level, LeftBound: g.bound}.Marshal()
			val, err := GroupValue{Size: g.size, Bitmap: g.bitmap}.Marshal()
			if err != nil {
				return err
			}
			if err := region.Put(key, val); err != nil {
				return fmt.Errorf("facet: write level %d group: %w", level, err)
			}
		}

		entries = groups
	}
	return nil
}

// dropUpperLevels deletes every key of the field at level >= 1.
func (b Builder) dropUpperLevels(region *store.Region, fieldID uint16) error {
	var stale [][]byte
	cu := region.Ascend(levelPrefix(fieldID, 1))
	for cu.Next() {
		key, err := UnmarshalGroupKey(cu.Key())
		if err != nil {
			return fmt.Errorf("facet: drop levels: %w", err)
		}
		if key.FieldID != fieldID {
			break
		}
		stale = append(stale, append([]byte(nil), cu.Key()...))
	}
	for _, k := range stale {
		if err := region.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// readLevel loads every entry of (fieldID, level) with owned bounds and
// bitmaps.
func readLevel(region *store.Region, fieldID uint16, level uint8) ([]levelEntry, error) {
	var out []levelEntry
	cu := region.Ascend(levelPrefix(fieldID, level))
	for cu.Next() {
		if !samePrefix(cu.Key(), fieldID, level) {
			break
		}
		key, err := UnmarshalGroupKey(cu.Key())
		if err != nil {
			return nil, fmt.Errorf("facet: read level %d: %w", level, err)
		}
		value, err := UnmarshalGroupValue(cu.Value())
		if err != nil {
			return nil, fmt.Errorf("facet: read level %d: %w", level, err)
		}
		out = append(out, levelEntry{
			bound:  append([]byte(nil), key.LeftBound...),
			bitmap: value.Bitmap,
			size:   value.Size,
		})
	}
	return out, nil
}
