package facet

import (
	"github.com/hupe1980/facetgo/store"
)

// Read primitives over a field's level structure. All of them observe
// the snapshot of the transaction that produced the region; a field
// with no indexed values reports ok=false and callers short-circuit to
// empty results.

// HighestLevel returns the highest level present for a field.
func HighestLevel(region *store.Region, fieldID uint16) (uint8, bool) {
	var upperKey []byte
	upper := store.BoundUnbounded
	if fieldID < 0xFFFF {
		upperKey = levelPrefix(fieldID+1, 0)
		upper = store.BoundExcluded
	}
	cu := region.Descend(levelPrefix(fieldID, 0), upperKey, upper)
	if !cu.Next() {
		return 0, false
	}
	key, err := UnmarshalGroupKey(cu.Key())
	if err != nil || key.FieldID != fieldID {
		return 0, false
	}
	return key.Level, true
}

// FirstBound returns the smallest level-0 bound of a field.
func FirstBound(region *store.Region, fieldID uint16) ([]byte, bool) {
	cu := region.Ascend(levelPrefix(fieldID, 0))
	if !cu.Next() || !samePrefix(cu.Key(), fieldID, 0) {
		return nil, false
	}
	key, err := UnmarshalGroupKey(cu.Key())
	if err != nil {
		return nil, false
	}
	return append([]byte(nil), key.LeftBound...), true
}

// LastBound returns the largest level-0 bound of a field.
func LastBound(region *store.Region, fieldID uint16) ([]byte, bool) {
	cu := region.Descend(levelPrefix(fieldID, 0), levelPrefix(fieldID, 1), store.BoundExcluded)
	if !cu.Next() || !samePrefix(cu.Key(), fieldID, 0) {
		return nil, false
	}
	key, err := UnmarshalGroupKey(cu.Key())
	if err != nil {
		return nil, false
	}
	return append([]byte(nil), key.LeftBound...), true
}
