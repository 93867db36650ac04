package documents

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/facetgo/extsort"
)

// FieldMap assigns small integer ids to field names, in first-seen
// order, and remembers the mapping for the reverse direction.
type FieldMap struct {
	ids   map[string]uint16
	names []string
}

// NewFieldMap returns an empty field map.
func NewFieldMap() *FieldMap {
	return &FieldMap{ids: make(map[string]uint16)}
}

// ID returns the id for name, assigning the next free one on first use.
func (m *FieldMap) ID(name string) uint16 {
	if id, ok := m.ids[name]; ok {
		return id
	}
	id := uint16(len(m.names))
	m.ids[name] = id
	m.names = append(m.names, name)
	return id
}

// Name returns the name registered for id.
func (m *FieldMap) Name(id uint16) (string, bool) {
	if int(id) >= len(m.names) {
		return "", false
	}
	return m.names[id], true
}

// Len returns the number of registered fields.
func (m *FieldMap) Len() int { return len(m.names) }

// Names returns all field names in id order.
func (m *FieldMap) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// BatchBuilder writes the canonical batch encoding to a sink: one
// (big-endian uint32 document id, record) pair per document, ids
// incrementing from zero, framed as an uncompressed chunk stream.
type BatchBuilder struct {
	w      *extsort.Writer
	fields *FieldMap
	next   uint32
	keyBuf [4]byte
}

// NewBatchBuilder frames sink as a batch stream.
func NewBatchBuilder(sink io.Writer) (*BatchBuilder, error) {
	w, err := extsort.NewWriter(sink)
	if err != nil {
		return nil, fmt.Errorf("documents: create batch writer: %w", err)
	}
	return &BatchBuilder{w: w, fields: NewFieldMap()}, nil
}

// Fields exposes the builder's field name mapping.
func (b *BatchBuilder) Fields() *FieldMap { return b.fields }

// Append adds one document and returns its assigned id.
func (b *BatchBuilder) Append(fields []FieldValue) (uint32, error) {
	id := b.next
	binary.BigEndian.PutUint32(b.keyBuf[:], id)
	if err := b.w.Append(b.keyBuf[:], EncodeRecord(fields)); err != nil {
		return 0, fmt.Errorf("documents: append record: %w", err)
	}
	b.next++
	return id, nil
}

// Count returns the number of documents appended so far.
func (b *BatchBuilder) Count() int { return int(b.next) }

// Close flushes the stream. It does not close the sink.
func (b *BatchBuilder) Close() error {
	return b.w.Close()
}

// BatchReader reads a batch stream back as (doc id, record) pairs.
type BatchReader struct {
	r   *extsort.Reader
	id  uint32
	rec Record
	err error
}

// NewBatchReader opens a batch stream.
func NewBatchReader(r io.Reader) (*BatchReader, error) {
	cr, err := extsort.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("documents: open batch: %w", err)
	}
	return &BatchReader{r: cr}, nil
}

// Next advances to the next document.
func (br *BatchReader) Next() bool {
	if br.err != nil {
		return false
	}
	if !br.r.Next() {
		br.err = br.r.Err()
		return false
	}
	key := br.r.Key()
	if len(key) != 4 {
		br.err = fmt.Errorf("documents: malformed batch key of length %d", len(key))
		return false
	}
	br.id = binary.BigEndian.Uint32(key)
	br.rec = Record(br.r.Value())
	return true
}

// DocID returns the current document id.
func (br *BatchReader) DocID() uint32 { return br.id }

// Record returns the current record. Only valid until the next call to
// Next.
func (br *BatchReader) Record() Record { return br.rec }

// Err returns the first fault encountered.
func (br *BatchReader) Err() error { return br.err }
