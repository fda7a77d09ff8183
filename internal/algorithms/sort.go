package algorithms

import (
	"math"
	"runtime"
	"slices"
	"sync"
)

// Argsort returns a permutation of 0..len(keys)-1 that sorts keys in
// ascending order. The sort is stable so equal keys keep their original
// order, which the SMO working-set scan relies on.
func Argsort(keys []float64) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	ArgsortInto(keys, idx)
	return idx
}

// ArgsortInto stable-sorts an existing index permutation by the given keys.
func ArgsortInto(keys []float64, idx []int) {
	ParallelSortStableFunc(idx, func(a, b int) int {
		ka, kb := keys[a], keys[b]
		if ka < kb {
			return -1
		}
		if ka > kb {
			return 1
		}
		return 0
	})
}

// SortIndicesByKey stable-sorts idx in place by key(i) ascending. Used by
// the decision tree to order a node's sample slice by one feature.
func SortIndicesByKey(idx []int, key func(int) float64) {
	slices.SortStableFunc(idx, func(a, b int) int {
		ka, kb := key(a), key(b)
		if ka < kb {
			return -1
		}
		if ka > kb {
			return 1
		}
		return 0
	})
}

// ParallelSortStableFunc sorts the slice x in ascending order as determined by the cmp function.
// It is a parallelized version of slices.SortStableFunc, using goroutines to improve performance on large datasets.
// The function maintains stability: equal elements preserve their original order.
func ParallelSortStableFunc[S ~[]E, E any](x S, cmp func(E, E) int) {
	n := len(x)
	if n <= 1 {
		return
	}

	// Use sequential sort for small arrays
	if n < 4910 {
		slices.SortStableFunc(x, cmp)
		return
	}

	// Determine optimal number of goroutines based on data size
	numGoroutines := min(getOptimalGoroutines(n), runtime.NumCPU())

	// Sort chunks in parallel, then merge with the stable merge
	sortChunksOptimized(x, cmp, numGoroutines)
	ParallelMergeStable(x, cmp, numGoroutines)
}

// ParallelMergeStable merges the sorted chunks in the slice x.
// It assumes x is divided into numChunks sorted sub-slices.
func ParallelMergeStable[S ~[]E, E any](x S, cmp func(E, E) int, numChunks int) {
	n := len(x)
	if numChunks <= 1 {
		return
	}

	chunkSize := n / numChunks
	temp := make(S, n)
	copy(temp, x)

	// Merge pairs of chunks
	for size := 1; size < numChunks; size *= 2 {
		for left := 0; left < numChunks-size; left += 2 * size {
			mid := left + size
			right := min(left+2*size, numChunks)

			leftStart := left * chunkSize
			midStart := mid * chunkSize
			rightEnd := right * chunkSize
			if right == numChunks {
				rightEnd = n
			}

			mergeStable(temp[leftStart:midStart], temp[midStart:rightEnd], x[leftStart:rightEnd], cmp)
		}
		copy(temp, x)
	}
}

// sortChunksOptimized sorts data chunks in parallel with consistent chunking.
func sortChunksOptimized[S ~[]E, E any](x S, cmp func(E, E) int, numChunks int) {
	n := len(x)
	chunkSize := n / numChunks
	if chunkSize == 0 {
		chunkSize = 1
	}

	var wg sync.WaitGroup
	for i := range numChunks {
		start := i * chunkSize
		end := start + chunkSize
		if i == numChunks-1 {
			end = n
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			slices.SortStableFunc(x[start:end], cmp)
		}(start, end)
	}
	wg.Wait()
}

// mergeStable merges two sorted slices a and b into dst, maintaining stability.
func mergeStable[S ~[]E, E any](a, b, dst S, cmp func(E, E) int) {
	i, j, k := 0, 0, 0
	for i < len(a) && j < len(b) {
		if cmp(a[i], b[j]) <= 0 {
			dst[k] = a[i]
			i++
		} else {
			dst[k] = b[j]
			j++
		}
		k++
	}
	for i < len(a) {
		dst[k] = a[i]
		i++
		k++
	}
	for j < len(b) {
		dst[k] = b[j]
		j++
		k++
	}
}

// getOptimalGoroutines returns the optimal number of goroutines for a given data size.
func getOptimalGoroutines(n int) int {
	// Adaptive growth strategy: slow growth for small datasets, faster growth for large datasets
	if n < 10000 {
		if n < 5500 {
			return 2
		} else if n < 6500 {
			return 3
		} else if n < 7500 {
			return 4
		} else if n < 8500 {
			return 5
		} else {
			return 6
		}
	} else if n < 50000 {
		return 6 + (n-10000)/5000 // Increases by 1 every 5000 elements
	} else if n < 200000 {
		return 12 + (n-50000)/15000 // Increases by 1 every 15000 elements
	} else {
		goroutines := int(math.Sqrt(float64(n)) / 50)
		if goroutines > runtime.NumCPU() {
			goroutines = runtime.NumCPU()
		}
		if goroutines < 16 {
			goroutines = 16
		}
		return goroutines
	}
}
