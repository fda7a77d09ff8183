package tree

import (
	"math"
	"testing"

	"github.com/HazelnutParadise/mlearn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadrantToy is the 8x2 toy whose Gini root split is on feature 0 between
// 0.4 and 0.6; the class-1 point (0.4, 0.6) shares its feature-0 value with a
// class-0 point, so that split leaves one impure child.
func quadrantToy() (*mlearn.Matrix, []int) {
	X, _ := mlearn.NewMatrix(8, 2, []float64{
		0.1, 0.3,
		0.4, 0.7,
		0.4, 0.6,
		0.6, 0.7,
		0.6, 0.3,
		0.9, 0.3,
		0.9, 0.7,
		0.1, 0.1,
	})
	return X, []int{0, 0, 1, 1, 1, 1, 1, 0}
}

func TestRootSplitOnQuadrantToy(t *testing.T) {
	X, y := quadrantToy()
	params := DefaultParams()
	params.MaxDepth = 1
	params.Seed = 1
	tr := New(params)
	require.NoError(t, tr.SetData(X, y, 0, 0))
	require.NoError(t, tr.Fit())

	feature, threshold := tr.RootSplit()
	assert.Equal(t, 0, feature)
	assert.GreaterOrEqual(t, threshold, 0.4)
	assert.LessOrEqual(t, threshold, 0.6)
}

// fourQuadrants labels points by quadrant of the unit square.
func fourQuadrants() (*mlearn.Matrix, []int) {
	coords := make([]float64, 0, 40)
	labels := make([]int, 0, 20)
	pts := [][2]float64{
		{0.1, 0.1}, {0.3, 0.2}, {0.2, 0.4}, {0.4, 0.3}, {0.15, 0.35},
		{0.7, 0.1}, {0.9, 0.2}, {0.8, 0.4}, {0.6, 0.3}, {0.85, 0.35},
		{0.1, 0.7}, {0.3, 0.9}, {0.2, 0.6}, {0.4, 0.8}, {0.15, 0.75},
		{0.7, 0.7}, {0.9, 0.9}, {0.8, 0.6}, {0.6, 0.8}, {0.85, 0.75},
	}
	for i, p := range pts {
		coords = append(coords, p[0], p[1])
		labels = append(labels, i/5)
	}
	X, _ := mlearn.NewMatrix(20, 2, coords)
	return X, labels
}

func TestFourQuadrantsPerfectAtDepthTwo(t *testing.T) {
	X, y := fourQuadrants()
	params := DefaultParams()
	params.MaxDepth = 2
	params.Seed = 3
	tr := New(params)
	require.NoError(t, tr.SetData(X, y, 0, 0))
	require.NoError(t, tr.Fit())
	score, err := tr.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestChildRangesPartitionParent(t *testing.T) {
	X, y := fourQuadrants()
	params := DefaultParams()
	params.MaxDepth = 4
	params.Seed = 7
	tr := New(params)
	require.NoError(t, tr.SetData(X, y, 0, 0))
	require.NoError(t, tr.Fit())

	for i := 0; i < tr.NNodes(); i++ {
		start, end, left, right, leaf := tr.NodeRange(i)
		if leaf {
			continue
		}
		ls, le, _, _, _ := tr.NodeRange(left)
		rs, re, _, _, _ := tr.NodeRange(right)
		// The left and right slices are disjoint and their union is exactly
		// the parent's range.
		assert.Equal(t, start, ls)
		assert.Equal(t, le+1, rs)
		assert.Equal(t, end, re)
	}
}

func TestPredictEqualsLeafMajorityOnTrainingData(t *testing.T) {
	X, y := fourQuadrants()
	params := DefaultParams()
	params.MaxDepth = 4
	params.Seed = 7
	tr := New(params)
	require.NoError(t, tr.SetData(X, y, 0, 0))
	require.NoError(t, tr.Fit())
	pred, err := tr.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y, pred)
}

func TestPredictProbaRowsSumToOne(t *testing.T) {
	X, y := quadrantToy()
	params := DefaultParams()
	params.MaxDepth = 1
	params.Seed = 1
	tr := New(params)
	require.NoError(t, tr.SetData(X, y, 0, 0))
	require.NoError(t, tr.Fit())
	probs, err := tr.PredictProba(X)
	require.NoError(t, err)
	for _, row := range probs {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
	logProbs, err := tr.PredictLogProba(X)
	require.NoError(t, err)
	for i, row := range logProbs {
		for j, lp := range row {
			if probs[i][j] == 0 {
				assert.True(t, math.IsInf(lp, -1))
			} else {
				assert.InDelta(t, math.Log(probs[i][j]), lp, 1e-12)
			}
		}
	}
}

func TestConstantLabelsGrowNoSplit(t *testing.T) {
	X, _ := mlearn.NewMatrix(6, 2, []float64{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12,
	})
	tr := New(DefaultParams())
	require.NoError(t, tr.SetData(X, []int{1, 1, 1, 1, 1, 1}, 0, 0))
	require.NoError(t, tr.Fit())
	assert.Equal(t, 1, tr.NNodes())
}

func TestConstantFeaturesGrowNoSplit(t *testing.T) {
	X, _ := mlearn.NewMatrix(4, 2, []float64{
		1, 1, 1, 1, 1, 1, 1, 1,
	})
	tr := New(DefaultParams())
	require.NoError(t, tr.SetData(X, []int{0, 1, 0, 1}, 0, 0))
	require.NoError(t, tr.Fit())
	assert.Equal(t, 1, tr.NNodes())
}

func TestAllCriteriaSeparateToy(t *testing.T) {
	X, y := quadrantToy()
	for _, crit := range []Criterion{Gini, CrossEntropy, Misclassification} {
		params := DefaultParams()
		params.Criterion = crit
		params.MaxDepth = 3
		params.Seed = 1
		tr := New(params)
		require.NoError(t, tr.SetData(X, y, 0, 0))
		require.NoError(t, tr.Fit())
		score, err := tr.Score(X, y)
		require.NoError(t, err)
		assert.Equal(t, 1.0, score, "criterion %v", crit)
	}
}

func TestBuildOrderSameLeavesOnToy(t *testing.T) {
	X, y := fourQuadrants()
	predictions := make([][]int, 2)
	for i, order := range []BuildOrder{DepthFirst, BreadthFirst} {
		params := DefaultParams()
		params.MaxDepth = 3
		params.Order = order
		params.Seed = 5
		tr := New(params)
		require.NoError(t, tr.SetData(X, y, 0, 0))
		require.NoError(t, tr.Fit())
		pred, err := tr.Predict(X)
		require.NoError(t, err)
		predictions[i] = pred
	}
	assert.Equal(t, predictions[0], predictions[1])
}

func TestDeterministicRefitWithBootstrap(t *testing.T) {
	X, y := fourQuadrants()
	build := func() []int {
		params := DefaultParams()
		params.MaxDepth = 5
		params.Seed = 77
		params.Bootstrap = true
		params.MaxFeatures = 1
		tr := New(params)
		require.NoError(t, tr.SetData(X, y, 0, 0))
		require.NoError(t, tr.Fit())
		return append([]int(nil), tr.SamplesIdx()...)
	}
	assert.Equal(t, build(), build())
}
