package cluster

import (
	"testing"

	"github.com/HazelnutParadise/mlearn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// blobs draws nPer points around each centre with the given spread.
func blobs(centers [][2]float64, nPer int, sigma float64, seed uint64) (*mlearn.Matrix, []int) {
	norm := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewSource(seed)}
	data := make([]float64, 0, len(centers)*nPer*2)
	truth := make([]int, 0, len(centers)*nPer)
	for c, ctr := range centers {
		for i := 0; i < nPer; i++ {
			data = append(data, ctr[0]+norm.Rand(), ctr[1]+norm.Rand())
			truth = append(truth, c)
		}
	}
	X, _ := mlearn.NewMatrix(len(centers)*nPer, 2, data)
	return X, truth
}

func TestDBSCANFindsTwoClustersAndNoise(t *testing.T) {
	X, _ := mlearn.NewMatrix(9, 2, []float64{
		0, 0, 0.1, 0, 0, 0.1, 0.1, 0.1,
		5, 5, 5.1, 5, 5, 5.1, 5.1, 5.1,
		20, 20,
	})
	params := DefaultDBSCANParams()
	params.Eps = 0.5
	params.MinSamples = 3
	d := NewDBSCAN(params)
	require.NoError(t, d.SetData(X))
	require.NoError(t, d.Compute())

	assert.Equal(t, 2, d.NClusters())
	labels := d.Labels()
	assert.Equal(t, labels[0], labels[3])
	assert.Equal(t, labels[4], labels[7])
	assert.NotEqual(t, labels[0], labels[4])
	assert.Equal(t, NoiseLabel, labels[8])
	assert.NotEmpty(t, d.CoreSampleIndices())
}

func TestDBSCANBorderPointAdoptedByCluster(t *testing.T) {
	// The point at 1.4 is within eps of the cluster edge but has too few
	// neighbours to be core: it must end as border, not noise.
	X, _ := mlearn.NewMatrix(5, 1, []float64{0, 0.4, 0.8, 1.0, 1.4})
	params := DefaultDBSCANParams()
	params.Eps = 0.45
	params.MinSamples = 3
	d := NewDBSCAN(params)
	require.NoError(t, d.SetData(X))
	require.NoError(t, d.Compute())
	labels := d.Labels()
	assert.Equal(t, labels[0], labels[4])
}

func TestKMeansRecoversBlobs(t *testing.T) {
	X, _ := blobs([][2]float64{{0, 0}, {6, 0}, {0, 6}}, 30, 0.4, 17)
	params := DefaultKMeansParams()
	params.NClusters = 3
	params.Seed = 3
	k := NewKMeans(params)
	require.NoError(t, k.SetData(X))
	require.NoError(t, k.Compute())

	labels := k.Labels()
	// Every true cluster maps onto exactly one k-means label.
	for c := 0; c < 3; c++ {
		seen := labels[c*30]
		for i := 0; i < 30; i++ {
			assert.Equal(t, seen, labels[c*30+i])
		}
	}
	assert.Greater(t, k.Inertia(), 0.0)
	assert.LessOrEqual(t, k.NIter(), params.MaxIter)
}

func TestKMeansPredictMatchesTraining(t *testing.T) {
	X, _ := blobs([][2]float64{{0, 0}, {6, 6}}, 20, 0.3, 5)
	params := DefaultKMeansParams()
	params.NClusters = 2
	params.Seed = 9
	k := NewKMeans(params)
	require.NoError(t, k.SetData(X))
	require.NoError(t, k.Compute())
	pred, err := k.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, k.Labels(), pred)

	dists, err := k.Transform(X)
	require.NoError(t, err)
	_, cols := dists.Dims()
	assert.Equal(t, 2, cols)
}

func TestKMeansDeterministicWithSeed(t *testing.T) {
	X, _ := blobs([][2]float64{{0, 0}, {4, 4}}, 15, 0.5, 21)
	run := func() []int {
		params := DefaultKMeansParams()
		params.NClusters = 2
		params.Seed = 42
		k := NewKMeans(params)
		require.NoError(t, k.SetData(X))
		require.NoError(t, k.Compute())
		return k.Labels()
	}
	assert.Equal(t, run(), run())
}

func TestKMeansRejectsTooManyClusters(t *testing.T) {
	X, _ := mlearn.NewMatrix(2, 1, []float64{0, 1})
	params := DefaultKMeansParams()
	params.NClusters = 5
	k := NewKMeans(params)
	require.NoError(t, k.SetData(X))
	assert.Error(t, k.Compute())
}
