package facet

import (
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facetgo/store"
)

func allCandidates() *roaring.Bitmap {
	c := roaring.New()
	c.AddRange(0, 256)
	return c
}

func TestDistributionSimple(t *testing.T) {
	st := newTestStore(t)
	populate(t, st, simpleValues())

	viewRegion(t, st, func(region *store.Region) {
		var values []float64
		err := Distribution(region, 0, allCandidates(), func(bound []byte, count uint64, docID uint32) (bool, error) {
			f, err := DecodeF64(bound)
			require.NoError(t, err)
			require.EqualValues(t, 1, count)
			require.EqualValues(t, f, docID)
			values = append(values, f)
			return true, nil
		})
		require.NoError(t, err)

		require.Len(t, values, 256)
		for i, f := range values {
			require.Equal(t, float64(i), f)
		}
	})
}

func TestDistributionRandom(t *testing.T) {
	st := newTestStore(t)
	values := randomValues()
	populate(t, st, values)

	viewRegion(t, st, func(region *store.Region) {
		got := make(map[float64]uint64)
		err := Distribution(region, 0, allCandidates(), func(bound []byte, count uint64, _ uint32) (bool, error) {
			f, err := DecodeF64(bound)
			require.NoError(t, err)
			got[f] = count
			return true, nil
		})
		require.NoError(t, err)

		// Candidates cover 0..255; doc key+100 may fall outside.
		candidates := allCandidates()
		for value, bm := range values {
			want := candidates.AndCardinality(bm)
			require.Equal(t, want, got[value], "value %v", value)
		}
		require.Len(t, got, len(values))
	})
}

func TestDistributionSkipsZeroIntersections(t *testing.T) {
	st := newTestStore(t)
	populate(t, st, simpleValues())

	viewRegion(t, st, func(region *store.Region) {
		candidates := roaring.BitmapOf(10, 20, 30)
		var seen []uint32
		err := Distribution(region, 0, candidates, func(_ []byte, count uint64, docID uint32) (bool, error) {
			require.EqualValues(t, 1, count)
			seen = append(seen, docID)
			return true, nil
		})
		require.NoError(t, err)
		require.Equal(t, []uint32{10, 20, 30}, seen)
	})
}

// Returning stop after N callbacks must result in exactly N callbacks,
// regardless of index size: no further groups are read.
func TestDistributionEarlyStop(t *testing.T) {
	for name, values := range map[string]map[float64]*roaring.Bitmap{
		"simple": simpleValues(),
		"random": randomValues(),
	} {
		t.Run(name, func(t *testing.T) {
			st := newTestStore(t)
			populate(t, st, values)

			viewRegion(t, st, func(region *store.Region) {
				const stopAfter = 50
				calls := 0
				err := Distribution(region, 0, allCandidates(), func([]byte, uint64, uint32) (bool, error) {
					calls++
					return calls < stopAfter, nil
				})
				require.NoError(t, err)
				require.Equal(t, stopAfter, calls)
			})
		})
	}
}

func TestDistributionCallbackError(t *testing.T) {
	st := newTestStore(t)
	populate(t, st, simpleValues())

	viewRegion(t, st, func(region *store.Region) {
		wantErr := errors.New("callback failure")
		calls := 0
		err := Distribution(region, 0, allCandidates(), func([]byte, uint64, uint32) (bool, error) {
			calls++
			return false, wantErr
		})
		require.ErrorIs(t, err, wantErr)
		require.Equal(t, 1, calls)
	})
}

func TestDistributionEmptyInputs(t *testing.T) {
	st := newTestStore(t)
	populate(t, st, simpleValues())

	viewRegion(t, st, func(region *store.Region) {
		// Empty candidate set short-circuits.
		err := Distribution(region, 0, roaring.New(), func([]byte, uint64, uint32) (bool, error) {
			t.Fatal("callback must not fire")
			return false, nil
		})
		require.NoError(t, err)

		// Unindexed field short-circuits.
		err = Distribution(region, 9, allCandidates(), func([]byte, uint64, uint32) (bool, error) {
			t.Fatal("callback must not fire")
			return false, nil
		})
		require.NoError(t, err)
	})
}
