package extsort

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Chunk stream constants.
const (
	// Magic identifies a chunk stream (ASCII: "FGO1").
	Magic = 0x46474f31
	// FormatVersion is the current chunk stream version.
	FormatVersion = 1

	headerSize = 8
)

// CompressionType selects how the body of a chunk stream is compressed.
type CompressionType uint8

const (
	// CompressionNone stores the body uncompressed.
	CompressionNone CompressionType = iota
	// CompressionFast compresses the body with LZ4.
	CompressionFast
	// CompressionHigh compresses the body with zstd.
	CompressionHigh
)

var (
	// ErrKeyOrder is returned when a key is appended out of order.
	ErrKeyOrder = errors.New("extsort: keys must be appended in strictly increasing order")
	// ErrWriterClosed is returned when appending to a closed writer.
	ErrWriterClosed = errors.New("extsort: writer is closed")

	errInvalidMagic   = errors.New("extsort: invalid chunk magic")
	errInvalidVersion = errors.New("extsort: unsupported chunk version")
)

// WriterOptions configures a chunk Writer.
type WriterOptions struct {
	// Compression selects the body compression.
	Compression CompressionType
	// CompressionLevel tunes the compressor. Zero means the codec default.
	// For CompressionHigh it is interpreted as a zstd level (1-22), for
	// CompressionFast as an LZ4 level (0-9).
	CompressionLevel int
}

// Writer writes a sorted key-value stream. Keys must be appended in
// strictly increasing lexicographic order; the resulting stream has
// unique keys by construction.
type Writer struct {
	raw     io.Writer
	body    *bufio.Writer
	comp    io.Closer // lz4 or zstd writer, nil when uncompressed
	lastKey []byte
	count   int
	scratch [binary.MaxVarintLen64]byte
	closed  bool
}

// NewWriter writes a chunk stream header to w and returns a Writer for
// the body. The Writer must be closed to flush compressor frames.
func NewWriter(w io.Writer, optFns ...func(o *WriterOptions)) (*Writer, error) {
	opts := WriterOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[0:4], Magic)
	header[4] = FormatVersion
	header[5] = byte(opts.Compression)
	if _, err := w.Write(header[:]); err != nil {
		return nil, fmt.Errorf("extsort: write chunk header: %w", err)
	}

	cw := &Writer{raw: w}
	switch opts.Compression {
	case CompressionNone:
		cw.body = bufio.NewWriter(w)
	case CompressionFast:
		lw := lz4.NewWriter(w)
		if opts.CompressionLevel > 0 {
			level := lz4.CompressionLevel(1 << (8 + opts.CompressionLevel))
			if err := lw.Apply(lz4.CompressionLevelOption(level)); err != nil {
				return nil, fmt.Errorf("extsort: configure lz4 writer: %w", err)
			}
		}
		cw.comp = lw
		cw.body = bufio.NewWriter(lw)
	case CompressionHigh:
		level := zstd.SpeedDefault
		if opts.CompressionLevel > 0 {
			level = zstd.EncoderLevelFromZstd(opts.CompressionLevel)
		}
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("extsort: create zstd writer: %w", err)
		}
		cw.comp = zw
		cw.body = bufio.NewWriter(zw)
	default:
		return nil, fmt.Errorf("extsort: unknown compression type %d", opts.Compression)
	}

	return cw, nil
}

// Append writes one key-value pair. The key must be strictly greater
// than the previously appended key.
func (w *Writer) Append(key, value []byte) error {
	if w.closed {
		return ErrWriterClosed
	}
	if w.lastKey != nil && bytes.Compare(key, w.lastKey) <= 0 {
		return fmt.Errorf("%w: %q after %q", ErrKeyOrder, key, w.lastKey)
	}

	if err := w.writeBlob(key); err != nil {
		return err
	}
	if err := w.writeBlob(value); err != nil {
		return err
	}

	w.lastKey = append(w.lastKey[:0], key...)
	w.count++
	return nil
}

func (w *Writer) writeBlob(b []byte) error {
	n := binary.PutUvarint(w.scratch[:], uint64(len(b)))
	if _, err := w.body.Write(w.scratch[:n]); err != nil {
		return fmt.Errorf("extsort: write chunk entry: %w", err)
	}
	if _, err := w.body.Write(b); err != nil {
		return fmt.Errorf("extsort: write chunk entry: %w", err)
	}
	return nil
}

// Len returns the number of pairs appended so far.
func (w *Writer) Len() int { return w.count }

// Close flushes buffered data and terminates the compression frame.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.body.Flush(); err != nil {
		return fmt.Errorf("extsort: flush chunk body: %w", err)
	}
	if w.comp != nil {
		if err := w.comp.Close(); err != nil {
			return fmt.Errorf("extsort: close chunk compressor: %w", err)
		}
	}
	return nil
}

// Chunk is a temp-file backed chunk under construction. Finish seals it
// and hands back a Reader over its contents; Discard removes the backing
// file without reading it.
type Chunk struct {
	f *os.File
	w *Writer
}

// NewTempChunk creates a chunk backed by a new temporary file in dir
// (or the OS default temp directory when dir is empty). The file is
// removed by Reader.Close or by Discard.
func NewTempChunk(dir string, optFns ...func(o *WriterOptions)) (*Chunk, error) {
	f, err := os.CreateTemp(dir, "facetgo-chunk-*")
	if err != nil {
		return nil, fmt.Errorf("extsort: create chunk file: %w", err)
	}
	w, err := NewWriter(f, optFns...)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &Chunk{f: f, w: w}, nil
}

// Append writes one pair, see Writer.Append.
func (c *Chunk) Append(key, value []byte) error {
	return c.w.Append(key, value)
}

// Len returns the number of pairs appended so far.
func (c *Chunk) Len() int { return c.w.Len() }

// Finish seals the chunk and returns a Reader positioned at the first
// pair. The Reader owns the backing file and removes it on Close.
func (c *Chunk) Finish() (*Reader, error) {
	if err := c.w.Close(); err != nil {
		c.Discard()
		return nil, err
	}
	if _, err := c.f.Seek(0, io.SeekStart); err != nil {
		c.Discard()
		return nil, fmt.Errorf("extsort: rewind chunk file: %w", err)
	}
	r, err := NewReader(c.f)
	if err != nil {
		c.Discard()
		return nil, err
	}
	r.tempPath = c.f.Name()
	return r, nil
}

// Discard closes and removes the backing file.
func (c *Chunk) Discard() {
	c.f.Close()
	os.Remove(c.f.Name())
}
