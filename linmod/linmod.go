// Package linmod provides linear and logistic regression fitted through the
// optim facade.
package linmod

import (
	"math"

	"github.com/HazelnutParadise/mlearn"
	"github.com/HazelnutParadise/mlearn/optim"
)

// Params holds the shared model controls.
type Params struct {
	FitIntercept bool
	// L2 is the ridge penalty strength; zero disables regularisation.
	L2 float64
	// MaxIterations caps the solver; zero picks the solver default.
	MaxIterations int
	// Tol is the gradient-norm convergence threshold.
	Tol float64
}

// DefaultParams mirrors the registry defaults.
func DefaultParams() Params {
	return Params{FitIntercept: true, L2: 0, MaxIterations: 0, Tol: 1e-8}
}

// Linear is an ordinary (optionally ridge-penalised) least-squares model.
type Linear struct {
	params Params
	trace  mlearn.ErrorTrace

	X *mlearn.Matrix
	y []float64
	p int

	coef      []float64
	intercept float64
	computed  bool
}

// NewLinear returns a linear regression model.
func NewLinear(params Params) *Linear {
	return &Linear{params: params}
}

// SetData validates and stores the training set.
func (l *Linear) SetData(X *mlearn.Matrix, y []float64) error {
	l.trace.Reset()
	if X == nil || y == nil {
		return l.trace.Errorf(mlearn.StatusInvalidPointer, "linmod.Linear.SetData: X and y must not be nil.")
	}
	n, p := X.Dims()
	if len(y) != n {
		return l.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"linmod.Linear.SetData: y has length %d, expected %d.", len(y), n)
	}
	l.X = X
	l.y = y
	l.p = p
	l.computed = false
	return nil
}

// nvars returns the optimisation dimension (weights plus optional intercept).
func (l *Linear) nvars() int {
	if l.params.FitIntercept {
		return l.p + 1
	}
	return l.p
}

func (l *Linear) linearPredict(w []float64, row []float64) float64 {
	v := 0.0
	for j, x := range row {
		v += w[j] * x
	}
	if l.params.FitIntercept {
		v += w[l.p]
	}
	return v
}

// Fit solves the least-squares problem through the residual interface of
// the optim facade.
func (l *Linear) Fit() error {
	if l.X == nil {
		return l.trace.Errorf(mlearn.StatusNoData, "linmod.Linear.Fit: no data has been passed, call SetData first.")
	}
	n, _ := l.X.Dims()
	nv := l.nvars()
	problem := optim.NewProblem(nv).
		SetResiduals(n, func(res, w []float64) {
			for i := 0; i < n; i++ {
				res[i] = l.linearPredict(w, l.X.RawRow(i)) - l.y[i]
			}
		}).
		SetResidualJacobian(func(jac []float64, w []float64) {
			for i := 0; i < n; i++ {
				row := l.X.RawRow(i)
				for j := 0; j < l.p; j++ {
					jac[i*nv+j] = row[j]
				}
				if l.params.FitIntercept {
					jac[i*nv+l.p] = 1
				}
			}
		})
	if l.params.L2 > 0 {
		problem.SetObjective(func(w []float64) float64 {
			sum := 0.0
			for i := 0; i < n; i++ {
				r := l.linearPredict(w, l.X.RawRow(i)) - l.y[i]
				sum += r * r
			}
			pen := 0.0
			for j := 0; j < l.p; j++ {
				pen += w[j] * w[j]
			}
			return sum/2 + l.params.L2*pen/2
		}).SetGradient(func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < n; i++ {
				row := l.X.RawRow(i)
				r := l.linearPredict(w, row) - l.y[i]
				for j := 0; j < l.p; j++ {
					grad[j] += r * row[j]
				}
				if l.params.FitIntercept {
					grad[l.p] += r
				}
			}
			for j := 0; j < l.p; j++ {
				grad[j] += l.params.L2 * w[j]
			}
		})
	}
	settings := optim.DefaultSettings()
	if l.params.MaxIterations > 0 {
		settings.MaxIterations = l.params.MaxIterations
	}
	if l.params.Tol > 0 {
		settings.GradTol = l.params.Tol
	}
	res, err := problem.Solve(make([]float64, nv), settings)
	if err != nil {
		return l.trace.Errorf(mlearn.StatusNumericalDifficulties, "linmod.Linear.Fit: %v", err)
	}
	l.coef = append([]float64(nil), res.X[:l.p]...)
	if l.params.FitIntercept {
		l.intercept = res.X[l.p]
	}
	l.computed = true
	return nil
}

// Predict returns fitted values for new data.
func (l *Linear) Predict(X *mlearn.Matrix) ([]float64, error) {
	if !l.computed {
		return nil, l.trace.Errorf(mlearn.StatusOutOfDate, "linmod.Linear: the model has not been fitted yet.")
	}
	m, p := X.Dims()
	if p != l.p {
		return nil, l.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"linmod.Linear.Predict: data has %d features, expected %d.", p, l.p)
	}
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		row := X.RawRow(i)
		v := l.intercept
		for j, x := range row {
			v += l.coef[j] * x
		}
		out[i] = v
	}
	return out, nil
}

// Score returns the coefficient of determination R^2.
func (l *Linear) Score(X *mlearn.Matrix, y []float64) (float64, error) {
	pred, err := l.Predict(X)
	if err != nil {
		return 0, err
	}
	meanY := 0.0
	for _, v := range y {
		meanY += v
	}
	meanY /= float64(len(y))
	ssRes, ssTot := 0.0, 0.0
	for i := range y {
		ssRes += (y[i] - pred[i]) * (y[i] - pred[i])
		ssTot += (y[i] - meanY) * (y[i] - meanY)
	}
	if ssTot == 0 {
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// Coefficients returns the fitted weights.
func (l *Linear) Coefficients() []float64 { return append([]float64(nil), l.coef...) }

// Intercept returns the fitted intercept (zero when not fitted).
func (l *Linear) Intercept() float64 { return l.intercept }

// Logistic is a binary logistic-regression classifier.
type Logistic struct {
	params Params
	trace  mlearn.ErrorTrace

	X      *mlearn.Matrix
	labels []int
	p      int

	coef      []float64
	intercept float64
	computed  bool
}

// NewLogistic returns a logistic regression model.
func NewLogistic(params Params) *Logistic {
	return &Logistic{params: params}
}

// SetData validates and stores the training set; labels must be 0/1.
func (l *Logistic) SetData(X *mlearn.Matrix, y []float64) error {
	l.trace.Reset()
	if X == nil || y == nil {
		return l.trace.Errorf(mlearn.StatusInvalidPointer, "linmod.Logistic.SetData: X and y must not be nil.")
	}
	n, p := X.Dims()
	if len(y) != n {
		return l.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"linmod.Logistic.SetData: y has length %d, expected %d.", len(y), n)
	}
	labels, k, err := mlearn.ValidateLabels(y)
	if err != nil {
		return l.trace.Errorf(mlearn.StatusInvalidInput, "linmod.Logistic.SetData: labels must be whole numbers.")
	}
	if k != 2 {
		return l.trace.Errorf(mlearn.StatusInvalidInput, "linmod.Logistic.SetData: exactly two classes are required, got %d.", k)
	}
	l.X = X
	l.labels = labels
	l.p = p
	l.computed = false
	return nil
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// Fit minimises the (optionally ridge-penalised) cross-entropy through the
// optim facade.
func (l *Logistic) Fit() error {
	if l.X == nil {
		return l.trace.Errorf(mlearn.StatusNoData, "linmod.Logistic.Fit: no data has been passed, call SetData first.")
	}
	n, _ := l.X.Dims()
	nv := l.p
	if l.params.FitIntercept {
		nv++
	}
	margin := func(w, row []float64) float64 {
		v := 0.0
		for j, x := range row {
			v += w[j] * x
		}
		if l.params.FitIntercept {
			v += w[l.p]
		}
		return v
	}
	problem := optim.NewProblem(nv).
		SetObjective(func(w []float64) float64 {
			sum := 0.0
			for i := 0; i < n; i++ {
				m := margin(w, l.X.RawRow(i))
				// log(1+exp(-z)) with the stable branch for negative z
				z := m
				if l.labels[i] == 0 {
					z = -m
				}
				if z > 0 {
					sum += math.Log1p(math.Exp(-z))
				} else {
					sum += -z + math.Log1p(math.Exp(z))
				}
			}
			for j := 0; j < l.p; j++ {
				sum += l.params.L2 * w[j] * w[j] / 2
			}
			return sum
		}).
		SetGradient(func(grad, w []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < n; i++ {
				row := l.X.RawRow(i)
				pHat := sigmoid(margin(w, row))
				d := pHat - float64(l.labels[i])
				for j := 0; j < l.p; j++ {
					grad[j] += d * row[j]
				}
				if l.params.FitIntercept {
					grad[l.p] += d
				}
			}
			for j := 0; j < l.p; j++ {
				grad[j] += l.params.L2 * w[j]
			}
		})
	settings := optim.DefaultSettings()
	if l.params.MaxIterations > 0 {
		settings.MaxIterations = l.params.MaxIterations
	}
	if l.params.Tol > 0 {
		settings.GradTol = l.params.Tol
	}
	res, err := problem.Solve(make([]float64, nv), settings)
	if err != nil {
		return l.trace.Errorf(mlearn.StatusNumericalDifficulties, "linmod.Logistic.Fit: %v", err)
	}
	l.coef = append([]float64(nil), res.X[:l.p]...)
	if l.params.FitIntercept {
		l.intercept = res.X[l.p]
	}
	l.computed = true
	return nil
}

// PredictProba returns P(class 1) per sample.
func (l *Logistic) PredictProba(X *mlearn.Matrix) ([]float64, error) {
	if !l.computed {
		return nil, l.trace.Errorf(mlearn.StatusOutOfDate, "linmod.Logistic: the model has not been fitted yet.")
	}
	m, p := X.Dims()
	if p != l.p {
		return nil, l.trace.Errorf(mlearn.StatusInvalidArrayDimension,
			"linmod.Logistic.PredictProba: data has %d features, expected %d.", p, l.p)
	}
	out := make([]float64, m)
	for i := 0; i < m; i++ {
		row := X.RawRow(i)
		v := l.intercept
		for j, x := range row {
			v += l.coef[j] * x
		}
		out[i] = sigmoid(v)
	}
	return out, nil
}

// Predict thresholds the class-1 probability at one half.
func (l *Logistic) Predict(X *mlearn.Matrix) ([]int, error) {
	probs, err := l.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

// Score returns the mean accuracy.
func (l *Logistic) Score(X *mlearn.Matrix, y []float64) (float64, error) {
	pred, err := l.Predict(X)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range pred {
		if float64(pred[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred)), nil
}

// Coefficients returns the fitted weights.
func (l *Logistic) Coefficients() []float64 { return append([]float64(nil), l.coef...) }

// Intercept returns the fitted intercept.
func (l *Logistic) Intercept() float64 { return l.intercept }
