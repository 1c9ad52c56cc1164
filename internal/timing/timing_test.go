package timing

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifferentiate(t *testing.T) {
	before := []int64{100, 200, 300, 400}
	after := []int64{150, 260, 290, 400}
	got := make([]int64, len(before))

	Differentiate(got, before, after)
	assert.Equal(t, []int64{50, 60, -10, 0}, got)
}

func TestDifferentiateMismatchedLengths(t *testing.T) {
	assert.Panics(t, func() {
		Differentiate(make([]int64, 2), make([]int64, 3), make([]int64, 2))
	})
}

func TestPercentilesKnownPositions(t *testing.T) {
	// 2 dropped on each side, 10 valid values 10..100 shuffled.
	deltas := []int64{9999, -5, 70, 10, 100, 40, 20, 90, 60, 30, 50, 80, 8888, 7777}
	orig := slices.Clone(deltas)
	dst := make([]int64, 4)

	Percentiles(dst, deltas, 2, make([]int64, len(deltas)))

	// positions (i+1)*10/5 = 2, 4, 6, 8 in the sorted window
	assert.Equal(t, []int64{30, 50, 70, 90}, dst)
	assert.Equal(t, orig, deltas, "input order must be preserved")
}

// TestPercentilesProperties checks monotonicity and window bounds on random
// batches of different shapes.
func TestPercentilesProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3^0xDEADBEEF))
	shapes := []struct {
		n, drop, k int
	}{
		{150, 20, 5},
		{50, 0, 5},
		{11, 5, 3},
		{1000, 100, 9},
		{42, 10, 1},
	}

	for _, s := range shapes {
		for round := 0; round < 50; round++ {
			deltas := make([]int64, s.n)
			for i := range deltas {
				deltas[i] = rng.Int64N(10_000) - 100
			}
			dst := make([]int64, s.k)
			Percentiles(dst, deltas, s.drop, make([]int64, s.n))

			window := deltas[s.drop : s.n-s.drop]
			lo, hi := slices.Min(window), slices.Max(window)
			require.True(t, slices.IsSorted(dst), "thresholds not ascending: %v", dst)
			for _, v := range dst {
				require.GreaterOrEqual(t, v, lo)
				require.LessOrEqual(t, v, hi)
			}
		}
	}
}

func TestPercentilesEmptyWindow(t *testing.T) {
	dst := []int64{1, 2, 3}
	Percentiles(dst, []int64{5, 6, 7, 8}, 2, make([]int64, 4))
	assert.Equal(t, []int64{0, 0, 0}, dst)
}

func TestPercentilesClampsToWindow(t *testing.T) {
	// More cut points than samples: positions collapse but stay in range.
	dst := make([]int64, 5)
	Percentiles(dst, []int64{7, 3}, 0, make([]int64, 2))
	assert.Equal(t, []int64{3, 3, 7, 7, 7}, dst)
}
