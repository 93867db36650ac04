package documents

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ValueKind tags the type of an encoded field value.
type ValueKind uint8

const (
	// KindString is a raw UTF-8 string.
	KindString ValueKind = iota
	// KindNumber is a float64.
	KindNumber
	// KindBool is a boolean.
	KindBool
	// KindNull is an explicit null.
	KindNull
)

// Value is one typed field value.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

func (v Value) appendTo(dst []byte) []byte {
	switch v.Kind {
	case KindString:
		dst = append(dst, byte(KindString))
		dst = binary.AppendUvarint(dst, uint64(len(v.Str)))
		return append(dst, v.Str...)
	case KindNumber:
		dst = append(dst, byte(KindNumber))
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.Num))
	case KindBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return append(dst, byte(KindBool), b)
	default:
		return append(dst, byte(KindNull))
	}
}

// FieldValue pairs a field id with its value.
type FieldValue struct {
	ID    uint16
	Value Value
}

var errTruncatedRecord = errors.New("documents: truncated record")

// Record is the compact encoding of one document: a count-prefixed
// sequence of (field id, value) pairs with strictly increasing field
// ids.
type Record []byte

// EncodeRecord builds a Record from fields. Field order is normalized;
// when a field id repeats, the last occurrence wins.
func EncodeRecord(fields []FieldValue) Record {
	sorted := make([]FieldValue, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	// Last write wins among duplicates.
	dedup := sorted[:0]
	for _, fv := range sorted {
		if n := len(dedup); n > 0 && dedup[n-1].ID == fv.ID {
			dedup[n-1] = fv
			continue
		}
		dedup = append(dedup, fv)
	}

	out := binary.AppendUvarint(nil, uint64(len(dedup)))
	for _, fv := range dedup {
		out = binary.BigEndian.AppendUint16(out, fv.ID)
		out = fv.Value.appendTo(out)
	}
	return out
}

// Visit calls fn for every field of the record in field id order.
func (r Record) Visit(fn func(fieldID uint16, value Value) error) error {
	b := []byte(r)
	n, read := binary.Uvarint(b)
	if read <= 0 {
		return errTruncatedRecord
	}
	b = b[read:]
	for i := uint64(0); i < n; i++ {
		if len(b) < 3 {
			return errTruncatedRecord
		}
		fieldID := binary.BigEndian.Uint16(b[0:2])
		value, rest, err := decodeValue(b[2:])
		if err != nil {
			return err
		}
		if err := fn(fieldID, value); err != nil {
			return err
		}
		b = rest
	}
	return nil
}

// Get returns the value of fieldID, if present.
func (r Record) Get(fieldID uint16) (Value, bool) {
	var out Value
	found := false
	_ = r.Visit(func(id uint16, v Value) error {
		if id == fieldID {
			out = v
			found = true
		}
		return nil
	})
	return out, found
}

func decodeValue(b []byte) (Value, []byte, error) {
	if len(b) < 1 {
		return Value{}, nil, errTruncatedRecord
	}
	kind := ValueKind(b[0])
	b = b[1:]
	switch kind {
	case KindString:
		n, read := binary.Uvarint(b)
		if read <= 0 || uint64(len(b[read:])) < n {
			return Value{}, nil, errTruncatedRecord
		}
		b = b[read:]
		return String(string(b[:n])), b[n:], nil
	case KindNumber:
		if len(b) < 8 {
			return Value{}, nil, errTruncatedRecord
		}
		return Number(math.Float64frombits(binary.BigEndian.Uint64(b[:8]))), b[8:], nil
	case KindBool:
		if len(b) < 1 {
			return Value{}, nil, errTruncatedRecord
		}
		return Bool(b[0] == 1), b[1:], nil
	case KindNull:
		return Null(), b, nil
	default:
		return Value{}, nil, fmt.Errorf("documents: unknown value kind %d", kind)
	}
}
