package facet

import (
	"encoding/binary"
	"errors"
	"math"
)

// Facet bounds are order-preserving byte encodings: comparing two
// encoded bounds byte-lexicographically gives the same order as
// comparing the values. Strings encode as their raw bytes; floats use
// the sign/exponent-normalized form below.

const f64BoundLen = 8

var errShortF64Bound = errors.New("facet: f64 bound must be 8 bytes")

// EncodeF64 encodes an f64 so that byte order matches numeric order.
// Positive values get their sign bit set; negative values are fully
// inverted, which reverses their (descending) raw-bit order.
func EncodeF64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	out := make([]byte, f64BoundLen)
	binary.BigEndian.PutUint64(out, bits)
	return out
}

// DecodeF64 reverses EncodeF64.
func DecodeF64(b []byte) (float64, error) {
	if len(b) != f64BoundLen {
		return 0, errShortF64Bound
	}
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}
