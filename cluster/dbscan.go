// Package cluster provides density-based (DBSCAN) and centroid-based
// (k-means) clustering over dense data.
package cluster

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
)

// NoiseLabel marks samples that belong to no cluster.
const NoiseLabel = -1

// DBSCANMetric selects the neighbourhood distance.
type DBSCANMetric int

const (
	DBSCANEuclidean DBSCANMetric = iota
	DBSCANSqEuclidean
	DBSCANMinkowski
)

// DBSCANParams holds the clustering controls. Only the brute-force
// neighbourhood search is available; LeafSize is kept for interface
// compatibility with tree-based searches.
type DBSCANParams struct {
	Eps        float64
	MinSamples int
	Metric     DBSCANMetric
	// P is the Minkowski exponent when Metric is DBSCANMinkowski.
	P        float64
	LeafSize int
}

// DefaultDBSCANParams mirrors the registry defaults.
func DefaultDBSCANParams() DBSCANParams {
	return DBSCANParams{Eps: 0.5, MinSamples: 5, Metric: DBSCANEuclidean, P: 2, LeafSize: 30}
}

// DBSCAN is the fitted clustering.
type DBSCAN struct {
	params DBSCANParams
	trace  mlearn.ErrorTrace

	X    *mlearn.Matrix
	n, p int

	labels            []int
	neighbors         [][]int
	coreSampleIndices []int
	nClusters         int
	computed          bool
}

// NewDBSCAN returns a DBSCAN clusterer.
func NewDBSCAN(params DBSCANParams) *DBSCAN {
	return &DBSCAN{params: params}
}

// SetData validates and stores the input matrix.
func (d *DBSCAN) SetData(X *mlearn.Matrix) error {
	d.trace.Reset()
	if X == nil {
		return d.trace.Errorf(mlearn.StatusInvalidPointer, "cluster.DBSCAN.SetData: X must not be nil.")
	}
	d.X = X
	d.n, d.p = X.Dims()
	d.computed = false
	return nil
}

func (d *DBSCAN) distance(i, j int) float64 {
	a, b := d.X.RawRow(i), d.X.RawRow(j)
	switch d.params.Metric {
	case DBSCANMinkowski:
		sum := 0.0
		for t := range a {
			sum += math.Pow(math.Abs(a[t]-b[t]), d.params.P)
		}
		return math.Pow(sum, 1/d.params.P)
	default:
		sum := 0.0
		for t := range a {
			diff := a[t] - b[t]
			sum += diff * diff
		}
		if d.params.Metric == DBSCANSqEuclidean {
			return sum
		}
		return math.Sqrt(sum)
	}
}

// Compute materialises every eps-neighbourhood, then expands clusters from
// unvisited core points: density-reachable points join the cluster and noise
// encountered during expansion is relabelled as border.
func (d *DBSCAN) Compute() error {
	if d.X == nil {
		return d.trace.Errorf(mlearn.StatusNoData, "cluster.DBSCAN.Compute: no data has been passed, call SetData first.")
	}
	if d.params.Eps <= 0 {
		return d.trace.Errorf(mlearn.StatusInvalidOption, "cluster.DBSCAN.Compute: eps must be positive.")
	}
	if d.params.MinSamples < 1 {
		return d.trace.Errorf(mlearn.StatusInvalidOption, "cluster.DBSCAN.Compute: min samples must be at least 1.")
	}

	d.neighbors = make([][]int, d.n)
	for i := 0; i < d.n; i++ {
		for j := 0; j < d.n; j++ {
			if d.distance(i, j) <= d.params.Eps {
				d.neighbors[i] = append(d.neighbors[i], j)
			}
		}
	}

	d.labels = make([]int, d.n)
	for i := range d.labels {
		d.labels[i] = NoiseLabel
	}
	d.coreSampleIndices = d.coreSampleIndices[:0]
	isCore := make([]bool, d.n)
	for i := 0; i < d.n; i++ {
		if len(d.neighbors[i]) >= d.params.MinSamples {
			isCore[i] = true
			d.coreSampleIndices = append(d.coreSampleIndices, i)
		}
	}

	visited := make([]bool, d.n)
	clusterID := 0
	for i := 0; i < d.n; i++ {
		if visited[i] || !isCore[i] {
			continue
		}
		// BFS through density-reachable points.
		visited[i] = true
		d.labels[i] = clusterID
		queue := append([]int(nil), d.neighbors[i]...)
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]
			if d.labels[q] == NoiseLabel {
				// Noise reached from a core point becomes a border point.
				d.labels[q] = clusterID
			}
			if visited[q] {
				continue
			}
			visited[q] = true
			d.labels[q] = clusterID
			if isCore[q] {
				queue = append(queue, d.neighbors[q]...)
			}
		}
		clusterID++
	}
	d.nClusters = clusterID
	d.computed = true
	return nil
}

// Labels returns the per-sample cluster id, with -1 for noise.
func (d *DBSCAN) Labels() []int { return append([]int(nil), d.labels...) }

// CoreSampleIndices returns the indices of the core points.
func (d *DBSCAN) CoreSampleIndices() []int { return append([]int(nil), d.coreSampleIndices...) }

// NClusters returns the number of clusters found.
func (d *DBSCAN) NClusters() int { return d.nClusters }

// Trace exposes the estimator's error trace.
func (d *DBSCAN) Trace() *mlearn.ErrorTrace { return &d.trace }
