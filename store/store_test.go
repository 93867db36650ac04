package store

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facetgo/extsort"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seed(t *testing.T, st *Store, region string, pairs map[string]string) {
	t.Helper()
	require.NoError(t, st.Update(func(tx *Tx) error {
		r, err := tx.CreateRegion(region)
		if err != nil {
			return err
		}
		for k, v := range pairs {
			if err := r.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestRegionLifecycle(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.View(func(tx *Tx) error {
		_, err := tx.Region("missing")
		require.ErrorIs(t, err, ErrRegionNotFound)
		return nil
	}))

	seed(t, st, "r", map[string]string{"a": "1"})

	require.NoError(t, st.View(func(tx *Tx) error {
		r, err := tx.Region("r")
		require.NoError(t, err)
		require.Equal(t, []byte("1"), r.Get([]byte("a")))
		require.Nil(t, r.Get([]byte("zzz")))
		require.Equal(t, 1, r.Len())
		return nil
	}))
}

func TestUpdateRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "r", map[string]string{"a": "1"})

	boom := errors.New("boom")
	err := st.Update(func(tx *Tx) error {
		r, err := tx.Region("r")
		require.NoError(t, err)
		require.NoError(t, r.Put([]byte("b"), []byte("2")))
		require.NoError(t, r.Delete([]byte("a")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed transaction is visible.
	require.NoError(t, st.View(func(tx *Tx) error {
		r, err := tx.Region("r")
		require.NoError(t, err)
		require.Equal(t, []byte("1"), r.Get([]byte("a")))
		require.Nil(t, r.Get([]byte("b")))
		return nil
	}))
}

func TestCursorAscend(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "r", map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})

	require.NoError(t, st.View(func(tx *Tx) error {
		r, err := tx.Region("r")
		require.NoError(t, err)

		var keys []string
		cu := r.Ascend([]byte("b"))
		for cu.Next() {
			keys = append(keys, string(cu.Key()))
		}
		require.Equal(t, []string{"b", "c", "d"}, keys)

		// Seek between keys lands on the next one.
		cu = r.Ascend([]byte("bb"))
		require.True(t, cu.Next())
		require.Equal(t, "c", string(cu.Key()))
		return nil
	}))
}

func TestCursorDescend(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "r", map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})

	collect := func(lower, upper []byte, bound Bound) []string {
		var keys []string
		require.NoError(t, st.View(func(tx *Tx) error {
			r, err := tx.Region("r")
			require.NoError(t, err)
			cu := r.Descend(lower, upper, bound)
			for cu.Next() {
				keys = append(keys, string(cu.Key()))
			}
			return nil
		}))
		return keys
	}

	require.Equal(t, []string{"d", "c", "b", "a"}, collect(nil, nil, BoundUnbounded))
	require.Equal(t, []string{"c", "b"}, collect([]byte("b"), []byte("c"), BoundIncluded))
	require.Equal(t, []string{"b"}, collect([]byte("b"), []byte("c"), BoundExcluded))
	require.Equal(t, []string{"c", "b", "a"}, collect(nil, []byte("cc"), BoundIncluded))
	require.Empty(t, collect([]byte("x"), nil, BoundUnbounded))
}

func TestWriteSortedMergesConflicts(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "r", map[string]string{"b": "old", "d": "keep"})

	var buf bytes.Buffer
	w, err := extsort.NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.Append([]byte("a"), []byte("new-a")))
	require.NoError(t, w.Append([]byte("b"), []byte("new-b")))
	require.NoError(t, w.Close())

	concat := func(key []byte, values [][]byte) ([]byte, error) {
		out := values[0]
		for _, v := range values[1:] {
			out = append(append([]byte(nil), out...), v...)
		}
		return out, nil
	}

	require.NoError(t, st.Update(func(tx *Tx) error {
		r, err := tx.Region("r")
		require.NoError(t, err)
		reader, err := extsort.NewReader(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)
		return WriteReader(r, reader, concat)
	}))

	require.NoError(t, st.View(func(tx *Tx) error {
		r, err := tx.Region("r")
		require.NoError(t, err)
		require.Equal(t, []byte("new-a"), r.Get([]byte("a")))
		// Existing value comes first in the merge.
		require.Equal(t, []byte("oldnew-b"), r.Get([]byte("b")))
		require.Equal(t, []byte("keep"), r.Get([]byte("d")))
		return nil
	}))
}
