package extsort

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

const (
	// DefaultMaxMemory is the default in-memory buffer budget.
	DefaultMaxMemory = 64 << 20

	// entryOverhead approximates the bookkeeping cost per buffered pair
	// (slice headers plus allocator slack).
	entryOverhead = 48
)

// ErrSorterFinalized is returned when pushing into a finalized sorter.
var ErrSorterFinalized = errors.New("extsort: sorter already finalized")

// SorterOptions configures a Sorter.
type SorterOptions struct {
	// MaxMemory is the in-memory buffer budget in bytes. Exceeding it
	// spills a sorted chunk to disk.
	MaxMemory int
	// MaxChunks bounds the number of spilled chunks held open at once.
	// When exceeded, existing chunks are merged into one. Zero means
	// unlimited.
	MaxChunks int
	// TempDir is where spilled chunks are created. Empty means the OS
	// default temp directory.
	TempDir string
	// Compression applies to spilled chunks.
	Compression CompressionType
	// CompressionLevel tunes the chunk compressor.
	CompressionLevel int
}

// Sorter accumulates key-value pairs in arbitrary order and produces a
// globally sorted, duplicate-free stream. Pairs sharing a key are
// coalesced through the MergeFunc.
//
// A Sorter exclusively owns its buffer and any chunks it spilled; it is
// not safe for concurrent use. Run one Sorter per worker and merge the
// resulting streams instead.
type Sorter struct {
	opts    SorterOptions
	merge   MergeFunc
	entries []sortEntry
	mem     int
	chunks  []*Reader
	spilled bool
	final   bool
}

type sortEntry struct {
	key []byte
	val []byte
	seq int // push order, ties broken oldest first
}

// NewSorter creates a Sorter that coalesces duplicate keys with merge.
func NewSorter(merge MergeFunc, optFns ...func(o *SorterOptions)) *Sorter {
	opts := SorterOptions{MaxMemory: DefaultMaxMemory}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = DefaultMaxMemory
	}
	return &Sorter{opts: opts, merge: merge}
}

// Push buffers one pair. The key and value are copied. When the memory
// budget is exceeded the buffer is sorted, coalesced and spilled as a
// chunk; once spilling has started the buffer no longer grows, so peak
// memory stays bounded by the first-spill footprint.
func (s *Sorter) Push(key, value []byte) error {
	if s.final {
		return ErrSorterFinalized
	}

	s.entries = append(s.entries, sortEntry{
		key: append([]byte(nil), key...),
		val: append([]byte(nil), value...),
		seq: len(s.entries),
	})
	s.mem += len(key) + len(value) + entryOverhead

	if s.mem >= s.opts.MaxMemory {
		if err := s.spill(); err != nil {
			return err
		}
	}
	return nil
}

// NumChunks returns the number of chunks currently spilled to disk.
func (s *Sorter) NumChunks() int { return len(s.chunks) }

// sortBuffer orders the buffer by key, oldest push first among equals.
func (s *Sorter) sortBuffer() {
	sort.Slice(s.entries, func(i, j int) bool {
		if c := bytes.Compare(s.entries[i].key, s.entries[j].key); c != 0 {
			return c < 0
		}
		return s.entries[i].seq < s.entries[j].seq
	})
}

// coalesced invokes fn for every distinct key in the sorted buffer with
// its merged value.
func (s *Sorter) coalesced(fn func(key, value []byte) error) error {
	values := make([][]byte, 0, 4)
	for i := 0; i < len(s.entries); {
		j := i + 1
		for j < len(s.entries) && bytes.Equal(s.entries[j].key, s.entries[i].key) {
			j++
		}
		out := s.entries[i].val
		if j-i > 1 {
			values = values[:0]
			for _, e := range s.entries[i:j] {
				values = append(values, e.val)
			}
			merged, err := s.merge(s.entries[i].key, values)
			if err != nil {
				return err
			}
			out = merged
		}
		if err := fn(s.entries[i].key, out); err != nil {
			return err
		}
		i = j
	}
	return nil
}

func (s *Sorter) spill() error {
	if len(s.entries) == 0 {
		return nil
	}
	s.sortBuffer()

	chunk, err := NewTempChunk(s.opts.TempDir, func(o *WriterOptions) {
		o.Compression = s.opts.Compression
		o.CompressionLevel = s.opts.CompressionLevel
	})
	if err != nil {
		return err
	}
	if err := s.coalesced(chunk.Append); err != nil {
		chunk.Discard()
		return err
	}
	r, err := chunk.Finish()
	if err != nil {
		return err
	}
	s.chunks = append(s.chunks, r)

	// Recycle the buffer at its high-water capacity instead of growing.
	s.entries = s.entries[:0]
	s.mem = 0
	s.spilled = true

	if s.opts.MaxChunks > 0 && len(s.chunks) >= s.opts.MaxChunks {
		return s.compactChunks()
	}
	return nil
}

// compactChunks folds all spilled chunks into a single one, bounding
// the number of open temp files.
func (s *Sorter) compactChunks() error {
	chunk, err := NewTempChunk(s.opts.TempDir, func(o *WriterOptions) {
		o.Compression = s.opts.Compression
		o.CompressionLevel = s.opts.CompressionLevel
	})
	if err != nil {
		return err
	}

	sources := make([]Iterator, len(s.chunks))
	for i, r := range s.chunks {
		sources[i] = r
	}
	merger := NewMerger(s.merge, sources...)
	if err := merger.WriteTo(chunk.w); err != nil {
		chunk.Discard()
		return err
	}
	for _, r := range s.chunks {
		r.Close()
	}
	s.chunks = s.chunks[:0]

	r, err := chunk.Finish()
	if err != nil {
		return err
	}
	s.chunks = append(s.chunks, r)
	return nil
}

// Stream finalizes the sorter and returns the globally sorted,
// duplicate-free merge of all spilled chunks plus the in-memory
// remainder. The caller must drain the iterator before calling Close.
func (s *Sorter) Stream() (Iterator, error) {
	if s.final {
		return nil, ErrSorterFinalized
	}
	s.final = true

	s.sortBuffer()
	mem := &bufferIterator{sorter: s, pos: -1}

	if len(s.chunks) == 0 {
		return mem, nil
	}

	// Chunks are older than the resident buffer, so they come first.
	sources := make([]Iterator, 0, len(s.chunks)+1)
	for _, r := range s.chunks {
		sources = append(sources, r)
	}
	sources = append(sources, mem)
	return NewMerger(s.merge, sources...), nil
}

// Close discards all spilled chunks and releases the buffer.
func (s *Sorter) Close() error {
	var err error
	for _, r := range s.chunks {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("extsort: close chunk: %w", cerr)
		}
	}
	s.chunks = nil
	s.entries = nil
	s.final = true
	return err
}

// bufferIterator exposes the sorted in-memory remainder as a virtual
// chunk, coalescing duplicate keys on the fly.
type bufferIterator struct {
	sorter *Sorter
	pos    int
	key    []byte
	val    []byte
	err    error
}

func (it *bufferIterator) Next() bool {
	if it.err != nil {
		return false
	}
	entries := it.sorter.entries
	if it.pos < 0 {
		it.pos = 0
	} else if it.pos < len(entries) {
		k := entries[it.pos].key
		for it.pos < len(entries) && bytes.Equal(entries[it.pos].key, k) {
			it.pos++
		}
	}
	if it.pos >= len(entries) {
		return false
	}

	i := it.pos
	j := i + 1
	for j < len(entries) && bytes.Equal(entries[j].key, entries[i].key) {
		j++
	}
	it.key = entries[i].key
	it.val = entries[i].val
	if j-i > 1 {
		values := make([][]byte, 0, j-i)
		for _, e := range entries[i:j] {
			values = append(values, e.val)
		}
		merged, err := it.sorter.merge(it.key, values)
		if err != nil {
			it.err = err
			return false
		}
		it.val = merged
	}
	return true
}

func (it *bufferIterator) Key() []byte   { return it.key }
func (it *bufferIterator) Value() []byte { return it.val }
func (it *bufferIterator) Err() error    { return it.err }
