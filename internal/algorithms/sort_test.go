package algorithms

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsortAscending(t *testing.T) {
	keys := []float64{3.5, -1, 2, 2, 0}
	idx := Argsort(keys)
	assert.Equal(t, []int{1, 4, 2, 3, 0}, idx)
}

func TestArgsortStability(t *testing.T) {
	keys := make([]float64, 100)
	for i := range keys {
		keys[i] = float64(i % 5)
	}
	idx := Argsort(keys)
	// Within each group of equal keys the original order must be preserved.
	prev := -1
	for _, i := range idx {
		if keys[i] == 0 {
			require.Greater(t, i, prev)
			prev = i
		}
	}
}

func TestSortIndicesByKey(t *testing.T) {
	vals := []float64{0.9, 0.1, 0.5}
	idx := []int{0, 1, 2}
	SortIndicesByKey(idx, func(i int) float64 { return vals[i] })
	assert.Equal(t, []int{1, 2, 0}, idx)
}

func TestParallelSortStableFuncLarge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 20000)
	for i := range x {
		x[i] = rng.Float64()
	}
	ParallelSortStableFunc(x, func(a, b float64) int {
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	assert.True(t, sort.Float64sAreSorted(x))
}
