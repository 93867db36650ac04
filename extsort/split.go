package extsort

// SplitIter lazily re-chunks one sorted stream into bounded-size
// pieces. Ordering is preserved; only the chunk boundaries change.
type SplitIter struct {
	src     Iterator
	maxSize int
	dir     string
	optFns  []func(o *WriterOptions)
	done    bool
}

// Split re-chunks src into temp-file backed chunks of approximately
// maxSize bytes each. It is used to cap the per-unit memory of later
// parallel stages processing one chunk at a time.
func Split(src Iterator, maxSize int, dir string, optFns ...func(o *WriterOptions)) *SplitIter {
	return &SplitIter{src: src, maxSize: maxSize, dir: dir, optFns: optFns}
}

// Next returns the next bounded chunk, or nil when the source is
// exhausted. Returned readers own their backing file; closing one
// removes it.
func (s *SplitIter) Next() (*Reader, error) {
	if s.done {
		return nil, nil
	}

	chunk, err := NewTempChunk(s.dir, s.optFns...)
	if err != nil {
		return nil, err
	}

	size := 0
	for s.src.Next() {
		key, val := s.src.Key(), s.src.Value()
		if err := chunk.Append(key, val); err != nil {
			chunk.Discard()
			return nil, err
		}
		size += len(key) + len(val)
		if size >= s.maxSize {
			return chunk.Finish()
		}
	}
	if err := s.src.Err(); err != nil {
		chunk.Discard()
		return nil, err
	}

	s.done = true
	if chunk.Len() == 0 {
		chunk.Discard()
		return nil, nil
	}
	return chunk.Finish()
}
