package extsort

import (
	"bytes"
	"container/heap"
)

// Merger performs a k-way merge over any number of sorted sources,
// applying a MergeFunc whenever the same key occurs in more than one
// source. It implements Iterator; the output is globally sorted with
// unique keys.
//
// Source order matters for the MergeFunc: values for a shared key are
// passed oldest first, in the order the sources were given.
type Merger struct {
	merge   MergeFunc
	h       sourceHeap
	popped  []*mergeSource
	values  [][]byte
	key     []byte
	val     []byte
	err     error
	started bool
}

// NewMerger creates a Merger over sources, which must each yield keys in
// strictly increasing order. Older sources come first.
func NewMerger(merge MergeFunc, sources ...Iterator) *Merger {
	m := &Merger{merge: merge}
	m.h = make(sourceHeap, 0, len(sources))
	for i, src := range sources {
		m.h = append(m.h, &mergeSource{it: src, order: i})
	}
	return m
}

type mergeSource struct {
	it    Iterator
	order int
}

type sourceHeap []*mergeSource

func (h sourceHeap) Len() int { return len(h) }

func (h sourceHeap) Less(i, j int) bool {
	if c := bytes.Compare(h[i].it.Key(), h[j].it.Key()); c != 0 {
		return c < 0
	}
	return h[i].order < h[j].order
}

func (h sourceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *sourceHeap) Push(x any) { *h = append(*h, x.(*mergeSource)) }

func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

func (m *Merger) init() bool {
	live := m.h[:0]
	for _, src := range m.h {
		if src.it.Next() {
			live = append(live, src)
			continue
		}
		if err := src.it.Err(); err != nil {
			m.err = err
			return false
		}
	}
	m.h = live
	heap.Init(&m.h)
	return true
}

// Next advances to the next merged pair.
func (m *Merger) Next() bool {
	if m.err != nil {
		return false
	}
	if !m.started {
		m.started = true
		if !m.init() {
			return false
		}
	}
	if m.h.Len() == 0 {
		return false
	}

	// Pop every source currently positioned on the smallest key. The
	// heap tie-breaks on source order, so values come out oldest first.
	m.popped = m.popped[:0]
	m.values = m.values[:0]

	first := heap.Pop(&m.h).(*mergeSource)
	m.key = append(m.key[:0], first.it.Key()...)
	m.values = append(m.values, first.it.Value())
	m.popped = append(m.popped, first)

	for m.h.Len() > 0 && bytes.Equal(m.h[0].it.Key(), m.key) {
		src := heap.Pop(&m.h).(*mergeSource)
		m.values = append(m.values, src.it.Value())
		m.popped = append(m.popped, src)
	}

	if len(m.values) == 1 {
		m.val = append(m.val[:0], m.values[0]...)
	} else {
		merged, err := m.merge(m.key, m.values)
		if err != nil {
			m.err = err
			return false
		}
		m.val = append(m.val[:0], merged...)
	}

	for _, src := range m.popped {
		if src.it.Next() {
			heap.Push(&m.h, src)
			continue
		}
		if err := src.it.Err(); err != nil {
			m.err = err
			return false
		}
	}

	return true
}

// Key returns the current key. Valid until the next call to Next.
func (m *Merger) Key() []byte { return m.key }

// Value returns the current merged value. Valid until the next call to
// Next.
func (m *Merger) Value() []byte { return m.val }

// Err returns the first fault encountered by the merge or any source.
func (m *Merger) Err() error { return m.err }

// WriteTo drains the merger into w.
func (m *Merger) WriteTo(w *Writer) error {
	for m.Next() {
		if err := w.Append(m.Key(), m.Value()); err != nil {
			return err
		}
	}
	return m.Err()
}
