package extsort

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Iterator is a pull-based stream of sorted key-value pairs. Next
// advances to the next pair and reports whether one is available; after
// it returns false, Err distinguishes clean exhaustion from a fault.
//
// Key and Value return slices that are only valid until the next call
// to Next; callers that retain them must copy.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
}

// Reader reads a chunk stream produced by a Writer. It implements
// Iterator.
type Reader struct {
	raw      io.Reader
	body     *bufio.Reader
	dec      *zstd.Decoder
	key      []byte
	val      []byte
	err      error
	done     bool
	tempPath string
}

// NewReader validates the chunk header of r and returns a Reader over
// its pairs.
func NewReader(r io.Reader) (*Reader, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("extsort: read chunk header: %w", err)
	}
	if binary.BigEndian.Uint32(header[0:4]) != Magic {
		return nil, errInvalidMagic
	}
	if header[4] != FormatVersion {
		return nil, fmt.Errorf("%w: %d", errInvalidVersion, header[4])
	}

	cr := &Reader{raw: r}
	switch CompressionType(header[5]) {
	case CompressionNone:
		cr.body = bufio.NewReader(r)
	case CompressionFast:
		cr.body = bufio.NewReader(lz4.NewReader(r))
	case CompressionHigh:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("extsort: create zstd reader: %w", err)
		}
		cr.dec = dec
		cr.body = bufio.NewReader(dec)
	default:
		return nil, fmt.Errorf("extsort: unknown compression type %d", header[5])
	}

	return cr, nil
}

// Next advances to the next pair.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	key, ok, err := r.readBlob(r.key)
	if err != nil {
		r.err = err
		return false
	}
	if !ok {
		r.done = true
		return false
	}
	r.key = key

	val, ok, err := r.readBlob(r.val)
	if err == nil && !ok {
		err = fmt.Errorf("extsort: truncated chunk entry: %w", io.ErrUnexpectedEOF)
	}
	if err != nil {
		r.err = err
		return false
	}
	r.val = val

	return true
}

// readBlob reads one length-prefixed blob into dst, growing it as
// needed. A clean EOF before the length prefix reports ok=false.
func (r *Reader) readBlob(dst []byte) ([]byte, bool, error) {
	n, err := binary.ReadUvarint(r.body)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dst, false, nil
		}
		return dst, false, fmt.Errorf("extsort: read chunk entry: %w", err)
	}
	if uint64(cap(dst)) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	if _, err := io.ReadFull(r.body, dst); err != nil {
		return dst, false, fmt.Errorf("extsort: read chunk entry: %w", err)
	}
	return dst, true, nil
}

// Key returns the current key. Valid until the next call to Next.
func (r *Reader) Key() []byte { return r.key }

// Value returns the current value. Valid until the next call to Next.
func (r *Reader) Value() []byte { return r.val }

// Err returns the first fault encountered, or nil after clean
// exhaustion.
func (r *Reader) Err() error { return r.err }

// Close releases the decompressor and, for temp-file backed chunks,
// closes and removes the backing file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
		r.dec = nil
	}
	var err error
	if c, ok := r.raw.(io.Closer); ok {
		err = c.Close()
	}
	if r.tempPath != "" {
		if rmErr := os.Remove(r.tempPath); rmErr != nil && err == nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = rmErr
		}
		r.tempPath = ""
	}
	return err
}
