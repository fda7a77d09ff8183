// Package pca implements principal component analysis over dense data with
// selectable preprocessing (covariance, correlation, raw svd), solver
// variants, optional QR pre-factorisation for tall matrices and the
// largest-entry sign convention.
package pca

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/stats"
	"gonum.org/v1/gonum/mat"
)

// Method selects the preprocessing applied before factorisation.
type Method int

const (
	// Covariance centers every column.
	Covariance Method = iota
	// Correlation centers and scales every column by its standard deviation.
	Correlation
	// SVD factorises the raw data.
	SVD
)

// Solver selects the factorisation driver. The gesvdx/gesvd/gesdd variants
// run the same SVD routine and give the same result; Auto resolves to Syevd
// when n > 3p and U is not stored, else to Gesdd. Syevd eigendecomposes
// X^T X instead of factorising X.
type Solver int

const (
	SolverAuto Solver = iota
	SolverGesvdx
	SolverGesvd
	SolverGesdd
	SolverSyevd
)

// Params holds the PCA options.
type Params struct {
	Method Method
	// NComponents caps the returned components; zero or anything above
	// min(n, p) falls back to min(n, p).
	NComponents int
	Solver      Solver
	// StoreU keeps the left singular vectors. Incompatible with Syevd.
	StoreU bool
	// Dof follows the shared convention: negative divides by n, zero by
	// n-1, positive by the value itself.
	Dof int
}

// DefaultParams mirrors the registry defaults of the driver.
func DefaultParams() Params {
	return Params{Method: Covariance, NComponents: 0, Solver: SolverAuto, StoreU: false, Dof: 0}
}

// PCA is the fitted estimator.
type PCA struct {
	params Params
	trace  mlearn.ErrorTrace

	X    *mlearn.Matrix
	n, p int

	nComponents int
	solver      Solver

	columnMeans []float64
	columnSdevs []float64

	sigma         []float64
	vt            *mat.Dense // nComponents x p
	u             *mat.Dense // n x nComponents, only when StoreU
	totalVariance float64

	computed bool
}

// New returns a PCA estimator with the given parameters.
func New(params Params) *PCA {
	return &PCA{params: params}
}

// SetData validates and stores the input matrix.
func (pc *PCA) SetData(X *mlearn.Matrix) error {
	pc.trace.Reset()
	if X == nil {
		return pc.trace.Errorf(mlearn.StatusInvalidPointer, "pca.SetData: X must not be nil.")
	}
	pc.X = X
	pc.n, pc.p = X.Dims()
	pc.computed = false
	return nil
}

func (pc *PCA) dofDivisor() float64 {
	switch {
	case pc.params.Dof < 0:
		return float64(pc.n)
	case pc.params.Dof == 0:
		return float64(pc.n - 1)
	default:
		return float64(pc.params.Dof)
	}
}

// standardize applies the method's preprocessing to a copy of the data and
// records the shift/scale for Transform and InverseTransform.
func (pc *PCA) standardize(A *mat.Dense) error {
	switch pc.params.Method {
	case Covariance:
		mean, err := stats.Mean(stats.AxisColumn, A)
		if err != nil {
			return err
		}
		pc.columnMeans = mean
		pc.columnSdevs = nil
		return stats.Standardize(stats.AxisColumn, A, mean, nil, pc.params.Dof)
	case Correlation:
		mean, variance, err := stats.Variance(stats.AxisColumn, A, pc.params.Dof, nil)
		if err != nil {
			return err
		}
		sdevs := make([]float64, len(variance))
		for i, v := range variance {
			sdevs[i] = math.Sqrt(v)
		}
		pc.columnMeans = mean
		pc.columnSdevs = sdevs
		return stats.Standardize(stats.AxisColumn, A, mean, sdevs, pc.params.Dof)
	default:
		pc.columnMeans = nil
		pc.columnSdevs = nil
		return nil
	}
}

// Fit runs the selected factorisation pipeline.
func (pc *PCA) Fit() error {
	if pc.X == nil {
		return pc.trace.Errorf(mlearn.StatusNoData, "pca.Fit: no data has been passed, call SetData first.")
	}
	minNP := pc.n
	if pc.p < minNP {
		minNP = pc.p
	}
	pc.nComponents = pc.params.NComponents
	if pc.nComponents <= 0 || pc.nComponents > minNP {
		pc.nComponents = minNP
	}

	pc.solver = pc.params.Solver
	if pc.solver == SolverAuto {
		if pc.n > 3*pc.p && !pc.params.StoreU {
			pc.solver = SolverSyevd
		} else {
			pc.solver = SolverGesdd
		}
	}
	if pc.solver == SolverSyevd && pc.params.StoreU {
		return pc.trace.Errorf(mlearn.StatusIncompatibleOptions,
			"pca.Fit: the 'store U' and 'syevd' options cannot be used together.")
	}

	A := mat.DenseCopyOf(pc.X.Dense())
	if err := pc.standardize(A); err != nil {
		return err
	}

	// Total variance of the standardised data under the dof convention.
	total := 0.0
	for i := 0; i < pc.n; i++ {
		row := A.RawRowView(i)
		for _, v := range row {
			total += v * v
		}
	}
	pc.totalVariance = total / pc.dofDivisor()

	var err error
	if pc.solver == SolverSyevd {
		err = pc.fitEigen(A)
	} else {
		err = pc.fitSVD(A)
	}
	if err != nil {
		return err
	}
	pc.applySignConvention()
	pc.computed = true
	return nil
}

// fitSVD runs the singular-value path, pre-factorising tall matrices with QR
// so only the p x p triangle is factorised.
func (pc *PCA) fitSVD(A *mat.Dense) error {
	useQR := float64(pc.n)/float64(pc.p) > 1.2
	var svd mat.SVD
	var qr mat.QR
	target := mat.Matrix(A)
	if useQR {
		qr.Factorize(A)
		R := mat.NewDense(pc.n, pc.p, nil)
		qr.RTo(R)
		target = R.Slice(0, pc.p, 0, pc.p)
	}
	kind := mat.SVDThin
	if !pc.params.StoreU {
		kind = mat.SVDThinV
	}
	if ok := svd.Factorize(target, kind); !ok {
		return pc.trace.Errorf(mlearn.StatusInternalError,
			"pca.Fit: SVD failed to converge; check the input for NaN values.")
	}
	values := svd.Values(nil)
	var vt mat.Dense
	svd.VTo(&vt)
	k := pc.nComponents
	pc.sigma = append([]float64(nil), values[:k]...)
	pc.vt = mat.NewDense(k, pc.p, nil)
	for j := 0; j < k; j++ {
		for c := 0; c < pc.p; c++ {
			pc.vt.Set(j, c, vt.At(c, j))
		}
	}
	if pc.params.StoreU {
		var u mat.Dense
		svd.UTo(&u)
		if useQR {
			// Recover the full-height left vectors by applying Q to the
			// reduced ones.
			var q mat.Dense
			qr.QTo(&q)
			ur := mat.NewDense(pc.n, k, nil)
			for r := 0; r < pc.p; r++ {
				for j := 0; j < k; j++ {
					ur.Set(r, j, u.At(r, j))
				}
			}
			full := mat.NewDense(pc.n, k, nil)
			full.Mul(&q, ur)
			pc.u = full
		} else {
			pc.u = mat.NewDense(pc.n, k, nil)
			for r := 0; r < pc.n; r++ {
				for j := 0; j < k; j++ {
					pc.u.Set(r, j, u.At(r, j))
				}
			}
		}
	}
	return nil
}

// fitEigen runs the syevd path: eigendecompose X^T X, reverse the ascending
// eigenvalue order, square-root the non-negative eigenvalues into singular
// values and transpose the reversed eigenvectors into components.
func (pc *PCA) fitEigen(A *mat.Dense) error {
	var gram mat.SymDense
	gram.SymOuterK(1, A.T())
	var eig mat.EigenSym
	if ok := eig.Factorize(&gram, true); !ok {
		return pc.trace.Errorf(mlearn.StatusInternalError,
			"pca.Fit: eigendecomposition failed; check the input for NaN values.")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	k := pc.nComponents
	pc.sigma = make([]float64, k)
	pc.vt = mat.NewDense(k, pc.p, nil)
	for j := 0; j < k; j++ {
		src := len(values) - 1 - j
		ev := values[src]
		if ev < 0 {
			ev = 0
		}
		pc.sigma[j] = math.Sqrt(ev)
		for c := 0; c < pc.p; c++ {
			pc.vt.Set(j, c, vectors.At(c, src))
		}
	}
	return nil
}

// applySignConvention flips every component so its largest-magnitude entry
// is non-negative, keeping U in sync when stored.
func (pc *PCA) applySignConvention() {
	for j := 0; j < pc.nComponents; j++ {
		maxAbs, maxVal := 0.0, 0.0
		for c := 0; c < pc.p; c++ {
			v := pc.vt.At(j, c)
			if math.Abs(v) > maxAbs {
				maxAbs = math.Abs(v)
				maxVal = v
			}
		}
		if maxVal >= 0 {
			continue
		}
		for c := 0; c < pc.p; c++ {
			pc.vt.Set(j, c, -pc.vt.At(j, c))
		}
		if pc.u != nil {
			for r := 0; r < pc.n; r++ {
				pc.u.Set(r, j, -pc.u.At(r, j))
			}
		}
	}
}

func (pc *PCA) checkComputed() error {
	if !pc.computed {
		return pc.trace.Errorf(mlearn.StatusOutOfDate, "pca: the model has not been fitted yet.")
	}
	return nil
}

// standardizeLike applies the stored shift/scale to new data.
func (pc *PCA) standardizeLike(A *mat.Dense) {
	if pc.columnMeans == nil && pc.columnSdevs == nil {
		return
	}
	n, p := A.Dims()
	for i := 0; i < n; i++ {
		row := A.RawRowView(i)
		for j := 0; j < p; j++ {
			if pc.columnMeans != nil {
				row[j] -= pc.columnMeans[j]
			}
			if pc.columnSdevs != nil && pc.columnSdevs[j] != 0 {
				row[j] /= pc.columnSdevs[j]
			}
		}
	}
}

// Transform projects new data onto the fitted components.
func (pc *PCA) Transform(X *mlearn.Matrix) (*mat.Dense, error) {
	if err := pc.checkComputed(); err != nil {
		return nil, err
	}
	m, p := X.Dims()
	if p != pc.p {
		return nil, pc.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"pca.Transform: data has %d features, expected %d.", p, pc.p)
	}
	A := mat.DenseCopyOf(X.Dense())
	pc.standardizeLike(A)
	out := mat.NewDense(m, pc.nComponents, nil)
	out.Mul(A, pc.vt.T())
	return out, nil
}

// InverseTransform maps scores back to the original feature space,
// un-standardising with the stored shift and scale.
func (pc *PCA) InverseTransform(Y *mat.Dense) (*mat.Dense, error) {
	if err := pc.checkComputed(); err != nil {
		return nil, err
	}
	m, k := Y.Dims()
	if k != pc.nComponents {
		return nil, pc.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"pca.InverseTransform: data has %d components, expected %d.", k, pc.nComponents)
	}
	out := mat.NewDense(m, pc.p, nil)
	out.Mul(Y, pc.vt)
	for i := 0; i < m; i++ {
		row := out.RawRowView(i)
		for j := 0; j < pc.p; j++ {
			if pc.columnSdevs != nil && pc.columnSdevs[j] != 0 {
				row[j] *= pc.columnSdevs[j]
			}
			if pc.columnMeans != nil {
				row[j] += pc.columnMeans[j]
			}
		}
	}
	return out, nil
}

// Scores returns the projection of the training data.
func (pc *PCA) Scores() (*mat.Dense, error) {
	if err := pc.checkComputed(); err != nil {
		return nil, err
	}
	return pc.Transform(pc.X)
}

// Components returns the nComponents x p component matrix (V^T rows).
func (pc *PCA) Components() *mat.Dense { return pc.vt }

// U returns the stored left singular vectors, or nil when not requested.
func (pc *PCA) U() *mat.Dense { return pc.u }

// Sigma returns the singular values of the retained components.
func (pc *PCA) Sigma() []float64 { return append([]float64(nil), pc.sigma...) }

// Variance returns sigma^2 divided by the dof divisor per component.
func (pc *PCA) Variance() []float64 {
	out := make([]float64, len(pc.sigma))
	div := pc.dofDivisor()
	for i, s := range pc.sigma {
		out[i] = s * s / div
	}
	return out
}

// TotalVariance returns the total variance of the standardised data.
func (pc *PCA) TotalVariance() float64 { return pc.totalVariance }

// ColumnMeans returns the column means used by the covariance and
// correlation methods. It is an unknown query for the raw svd method.
func (pc *PCA) ColumnMeans() ([]float64, error) {
	if pc.params.Method == SVD {
		return nil, pc.trace.Warnf(mlearn.StatusUnknownQuery,
			"pca.ColumnMeans: column means are only computed when the method is covariance or correlation.")
	}
	return append([]float64(nil), pc.columnMeans...), nil
}

// ColumnSdevs returns the column standard deviations used by the
// correlation method only.
func (pc *PCA) ColumnSdevs() ([]float64, error) {
	if pc.params.Method != Correlation {
		return nil, pc.trace.Warnf(mlearn.StatusUnknownQuery,
			"pca.ColumnSdevs: column standard deviations are only computed when the method is correlation.")
	}
	return append([]float64(nil), pc.columnSdevs...), nil
}

// Trace exposes the estimator's error trace.
func (pc *PCA) Trace() *mlearn.ErrorTrace { return &pc.trace }

// Info returns the estimator info vector.
func (pc *PCA) Info() map[string]any {
	return map[string]any{
		"n_samples":      pc.n,
		"n_features":     pc.p,
		"n_components":   pc.nComponents,
		"solver":         int(pc.solver),
		"total_variance": pc.totalVariance,
	}
}
