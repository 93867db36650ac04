package extsort

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitKeepsOrderAndContent(t *testing.T) {
	dir := t.TempDir()

	var pairs [][2]string
	for i := 0; i < 200; i++ {
		var key [4]byte
		binary.BigEndian.PutUint32(key[:], uint32(i))
		pairs = append(pairs, [2]string{string(key[:]), fmt.Sprintf("record-%03d", i)})
	}
	src := &sliceIter{pairs: pairs}

	split := Split(src, 256, dir)

	var got [][2]string
	chunks := 0
	for {
		r, err := split.Next()
		require.NoError(t, err)
		if r == nil {
			break
		}
		chunks++
		for r.Next() {
			got = append(got, [2]string{string(r.Key()), string(r.Value())})
		}
		require.NoError(t, r.Err())
		require.NoError(t, r.Close())
	}

	require.Greater(t, chunks, 1)
	require.Equal(t, pairs, got)
}

func TestSplitEmptySource(t *testing.T) {
	split := Split(&sliceIter{}, 1024, t.TempDir())
	r, err := split.Next()
	require.NoError(t, err)
	require.Nil(t, r)
}
