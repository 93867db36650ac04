package extsort

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// MergeFunc combines the values of entries that share a key. The values
// are ordered oldest to newest: within a chunk by insertion order, across
// chunks by chunk creation order, and a pre-existing stored value always
// comes first.
//
// Implementations must be associative and insensitive to repeated
// application, because the same function is invoked inside a chunk, across
// chunks at merge time, and once more against the persistent store.
type MergeFunc func(key []byte, values [][]byte) ([]byte, error)

// MergeError reports a MergeFunc that refused to combine values.
//
// It aborts the enclosing bulk load; the write transaction must be
// discarded by the caller.
type MergeError struct {
	Key   []byte
	cause error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge conflict on key %q: %v", e.Key, e.cause)
}

func (e *MergeError) Unwrap() error { return e.cause }

func newMergeError(key []byte, cause error) *MergeError {
	return &MergeError{Key: append([]byte(nil), key...), cause: cause}
}

// KeepLatest resolves duplicate keys by keeping the newest value.
func KeepLatest(_ []byte, values [][]byte) ([]byte, error) {
	return values[len(values)-1], nil
}

// KeepFirst resolves duplicate keys by keeping the oldest value.
func KeepFirst(_ []byte, values [][]byte) ([]byte, error) {
	return values[0], nil
}

// UnionBitmaps resolves duplicate keys by deserializing every value as a
// roaring bitmap and returning the serialized union.
func UnionBitmaps(key []byte, values [][]byte) ([]byte, error) {
	if len(values) == 1 {
		return values[0], nil
	}
	acc := roaring.New()
	for _, v := range values {
		rb := roaring.New()
		if err := rb.UnmarshalBinary(v); err != nil {
			return nil, newMergeError(key, fmt.Errorf("decode bitmap: %w", err))
		}
		acc.Or(rb)
	}
	out, err := acc.MarshalBinary()
	if err != nil {
		return nil, newMergeError(key, fmt.Errorf("encode bitmap: %w", err))
	}
	return out, nil
}
