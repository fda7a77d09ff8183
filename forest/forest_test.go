package forest

import (
	"testing"

	"github.com/HazelnutParadise/mlearn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// fourQuadrantData labels 20 points of the unit square by quadrant, K = 4.
func fourQuadrantData() (*mlearn.Matrix, []int) {
	pts := [][2]float64{
		{0.1, 0.1}, {0.3, 0.2}, {0.2, 0.4}, {0.4, 0.3}, {0.15, 0.35},
		{0.7, 0.1}, {0.9, 0.2}, {0.8, 0.4}, {0.6, 0.3}, {0.85, 0.35},
		{0.1, 0.7}, {0.3, 0.9}, {0.2, 0.6}, {0.4, 0.8}, {0.15, 0.75},
		{0.7, 0.7}, {0.9, 0.9}, {0.8, 0.6}, {0.6, 0.8}, {0.85, 0.75},
	}
	coords := make([]float64, 0, 40)
	labels := make([]int, 0, 20)
	for i, p := range pts {
		coords = append(coords, p[0], p[1])
		labels = append(labels, i/5)
	}
	X, _ := mlearn.NewMatrix(20, 2, coords)
	return X, labels
}

// threeClassSynthetic draws a 200x10 problem whose first two features carry
// the class structure.
func threeClassSynthetic(seed uint64) (*mlearn.Matrix, []int) {
	norm := distuv.Normal{Mu: 0, Sigma: 0.5, Src: rand.NewSource(seed)}
	centers := [][2]float64{{0, 0}, {3, 0}, {0, 3}}
	n := 200
	data := make([]float64, 0, n*10)
	labels := make([]int, 0, n)
	for i := 0; i < n; i++ {
		c := i % 3
		data = append(data, centers[c][0]+norm.Rand(), centers[c][1]+norm.Rand())
		for j := 2; j < 10; j++ {
			data = append(data, norm.Rand())
		}
		labels = append(labels, c)
	}
	X, _ := mlearn.NewMatrix(n, 10, data)
	return X, labels
}

func TestSingleTreeForestPerfectOnQuadrants(t *testing.T) {
	X, y := fourQuadrantData()
	params := DefaultParams()
	params.NTrees = 1
	params.Bootstrap = false
	params.Features = FeaturesAll
	params.Seed = 5
	params.Tree.MaxDepth = 2
	f := New(params)
	require.NoError(t, f.SetData(X, y))
	require.NoError(t, f.Fit())
	score, err := f.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestForestOnThreeClassSynthetic(t *testing.T) {
	X, y := threeClassSynthetic(13)
	params := DefaultParams()
	params.NTrees = 50
	params.Seed = 77
	params.Tree.MaxDepth = 5
	f := New(params)
	require.NoError(t, f.SetData(X, y))
	require.NoError(t, f.Fit())
	score, err := f.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.85)
}

func TestBootstrapFactorShrinksEffectiveSamples(t *testing.T) {
	X, y := threeClassSynthetic(21)
	params := DefaultParams()
	params.NTrees = 5
	params.Seed = 1
	params.BootstrapFactor = 0.5
	f := New(params)
	require.NoError(t, f.SetData(X, y))
	require.NoError(t, f.Fit())
	assert.Equal(t, 100, f.NObs())
}

func TestPredictProbaRowsSumToOne(t *testing.T) {
	X, y := fourQuadrantData()
	params := DefaultParams()
	params.NTrees = 10
	params.Seed = 9
	params.Tree.MaxDepth = 3
	f := New(params)
	require.NoError(t, f.SetData(X, y))
	require.NoError(t, f.Fit())
	probs, err := f.PredictProba(X)
	require.NoError(t, err)
	for _, row := range probs {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}
}

func TestPerTreeSeedsIndependentOfWorkerCount(t *testing.T) {
	X, y := fourQuadrantData()
	run := func(workers int) []int64 {
		mlearn.Config.SetNumWorkers(workers)
		defer mlearn.Config.SetNumWorkers(0)
		params := DefaultParams()
		params.NTrees = 8
		params.Seed = 123
		params.Tree.MaxDepth = 3
		f := New(params)
		require.NoError(t, f.SetData(X, y))
		require.NoError(t, f.Fit())
		seeds := make([]int64, f.NTrees())
		for i := range seeds {
			seeds[i] = f.Tree(i).Seed()
		}
		return seeds
	}
	assert.Equal(t, run(1), run(4))
}

func TestBlockedPredictionMatchesSmallBlocks(t *testing.T) {
	X, y := threeClassSynthetic(31)
	params := DefaultParams()
	params.NTrees = 9
	params.Seed = 4
	params.Tree.MaxDepth = 4
	f := New(params)
	require.NoError(t, f.SetData(X, y))
	require.NoError(t, f.Fit())
	pred1, err := f.Predict(X)
	require.NoError(t, err)

	params.BlockSize = 7
	g := New(params)
	require.NoError(t, g.SetData(X, y))
	require.NoError(t, g.Fit())
	pred2, err := g.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, pred1, pred2)
}

func TestFeatureSelectionCounts(t *testing.T) {
	X, y := threeClassSynthetic(8)
	params := DefaultParams()
	params.NTrees = 3
	params.Seed = 2
	params.Features = FeaturesLog2
	params.Tree.MaxDepth = 3
	f := New(params)
	require.NoError(t, f.SetData(X, y))
	require.NoError(t, f.Fit())
	assert.Equal(t, 3, f.NTrees())

	// Custom count flows through to the trees.
	params.Features = FeaturesCustom
	params.CustomFeatures = 4
	g := New(params)
	require.NoError(t, g.SetData(X, y))
	require.NoError(t, g.Fit())
	assert.Equal(t, 3, g.NTrees())
}
