package facet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	keyPrefixLen = 3 // field id (2, big-endian) + level (1)

	// UnboundedGroup is the group size sentinel stored for the
	// rightmost group of a level: its children are scanned up to the
	// level boundary instead of a fixed count.
	UnboundedGroup = 0xFF
)

var (
	errShortGroupKey   = errors.New("facet: group key too short")
	errShortGroupValue = errors.New("facet: group value too short")
)

// GroupKey addresses one group of a field's facet index. Level 0 keys
// denote individual values; higher levels denote group boundaries.
type GroupKey struct {
	FieldID   uint16
	Level     uint8
	LeftBound []byte
}

// Marshal encodes the key so that byte-lexicographic order equals
// (field id, level, left bound) order.
func (k GroupKey) Marshal() []byte {
	out := make([]byte, keyPrefixLen+len(k.LeftBound))
	binary.BigEndian.PutUint16(out[0:2], k.FieldID)
	out[2] = k.Level
	copy(out[keyPrefixLen:], k.LeftBound)
	return out
}

// UnmarshalGroupKey decodes a persisted group key. The LeftBound slice
// aliases b.
func UnmarshalGroupKey(b []byte) (GroupKey, error) {
	if len(b) < keyPrefixLen {
		return GroupKey{}, errShortGroupKey
	}
	return GroupKey{
		FieldID:   binary.BigEndian.Uint16(b[0:2]),
		Level:     b[2],
		LeftBound: b[keyPrefixLen:],
	}, nil
}

// levelPrefix returns the 3-byte key prefix of (fieldID, level).
func levelPrefix(fieldID uint16, level uint8) []byte {
	out := make([]byte, keyPrefixLen)
	binary.BigEndian.PutUint16(out[0:2], fieldID)
	out[2] = level
	return out
}

// samePrefix reports whether key belongs to (fieldID, level).
func samePrefix(key []byte, fieldID uint16, level uint8) bool {
	return len(key) >= keyPrefixLen &&
		binary.BigEndian.Uint16(key[0:2]) == fieldID &&
		key[2] == level
}

// GroupValue is the persisted payload of a group: its child fan-out and
// the bitmap of all documents below it. Level 0 bitmaps are ground
// truth; higher levels are exactly the union of their children.
type GroupValue struct {
	Size   uint8
	Bitmap *roaring.Bitmap
}

// Marshal encodes the value as the size byte followed by the serialized
// bitmap.
func (v GroupValue) Marshal() ([]byte, error) {
	bm, err := v.Bitmap.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("facet: encode group bitmap: %w", err)
	}
	out := make([]byte, 1+len(bm))
	out[0] = v.Size
	copy(out[1:], bm)
	return out, nil
}

// UnmarshalGroupValue decodes a persisted group value into an owned
// bitmap.
func UnmarshalGroupValue(b []byte) (GroupValue, error) {
	if len(b) < 1 {
		return GroupValue{}, errShortGroupValue
	}
	rb := roaring.New()
	if err := rb.UnmarshalBinary(b[1:]); err != nil {
		return GroupValue{}, fmt.Errorf("facet: decode group bitmap: %w", err)
	}
	return GroupValue{Size: b[0], Bitmap: rb}, nil
}

// MergeGroupValues combines encoded group values that share a key by
// unioning their bitmaps. The size byte of the oldest value wins; for
// level 0 entries it is always 1.
func MergeGroupValues(key []byte, values [][]byte) ([]byte, error) {
	if len(values) == 1 {
		return values[0], nil
	}
	acc, err := UnmarshalGroupValue(values[0])
	if err != nil {
		return nil, fmt.Errorf("facet: merge group %q: %w", key, err)
	}
	for _, v := range values[1:] {
		next, err := UnmarshalGroupValue(v)
		if err != nil {
			return nil, fmt.Errorf("facet: merge group %q: %w", key, err)
		}
		acc.Bitmap.Or(next.Bitmap)
	}
	return acc.Marshal()
}
