package extsort

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceIter adapts an in-memory sorted pair list to the Iterator
// interface for merger tests.
type sliceIter struct {
	pairs [][2]string
	pos   int
}

func (s *sliceIter) Next() bool {
	if s.pos >= len(s.pairs) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceIter) Key() []byte   { return []byte(s.pairs[s.pos-1][0]) }
func (s *sliceIter) Value() []byte { return []byte(s.pairs[s.pos-1][1]) }
func (s *sliceIter) Err() error    { return nil }

func TestMergerInterleaves(t *testing.T) {
	a := &sliceIter{pairs: [][2]string{{"a", "1"}, {"c", "3"}, {"e", "5"}}}
	b := &sliceIter{pairs: [][2]string{{"b", "2"}, {"d", "4"}, {"f", "6"}}}

	m := NewMerger(KeepLatest, a, b)
	require.Equal(t,
		[][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}, {"f", "6"}},
		drain(t, m),
	)
}

func TestMergerValuesOrderedOldestFirst(t *testing.T) {
	a := &sliceIter{pairs: [][2]string{{"k", "old"}}}
	b := &sliceIter{pairs: [][2]string{{"k", "mid"}}}
	c := &sliceIter{pairs: [][2]string{{"k", "new"}}}

	var seen [][]string
	concat := func(key []byte, values [][]byte) ([]byte, error) {
		var row []string
		for _, v := range values {
			row = append(row, string(v))
		}
		seen = append(seen, row)
		return bytes.Join(values, []byte(",")), nil
	}

	m := NewMerger(concat, a, b, c)
	require.Equal(t, [][2]string{{"k", "old,mid,new"}}, drain(t, m))
	require.Equal(t, [][]string{{"old", "mid", "new"}}, seen)
}

func TestMergerKeepFirst(t *testing.T) {
	a := &sliceIter{pairs: [][2]string{{"k", "old"}}}
	b := &sliceIter{pairs: [][2]string{{"k", "new"}}}

	m := NewMerger(KeepFirst, a, b)
	require.Equal(t, [][2]string{{"k", "old"}}, drain(t, m))
}

func TestMergerEmptySources(t *testing.T) {
	m := NewMerger(KeepLatest, &sliceIter{}, &sliceIter{pairs: [][2]string{{"x", "1"}}}, &sliceIter{})
	require.Equal(t, [][2]string{{"x", "1"}}, drain(t, m))
}

func TestMergerPropagatesMergeError(t *testing.T) {
	a := &sliceIter{pairs: [][2]string{{"k", "1"}}}
	b := &sliceIter{pairs: [][2]string{{"k", "2"}}}

	refuse := func(key []byte, values [][]byte) ([]byte, error) {
		return nil, newMergeError(key, errors.New("type mismatch"))
	}

	m := NewMerger(refuse, a, b)
	require.False(t, m.Next())

	var merr *MergeError
	require.ErrorAs(t, m.Err(), &merr)
	require.Equal(t, []byte("k"), merr.Key)
}
