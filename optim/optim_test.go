package optim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadraticUnconstrained(t *testing.T) {
	// f(x) = (x0-1)^2 + (x1+2)^2
	p := NewProblem(2).
		SetObjective(func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + (x[1]+2)*(x[1]+2)
		}).
		SetGradient(func(grad, x []float64) {
			grad[0] = 2 * (x[0] - 1)
			grad[1] = 2 * (x[1] + 2)
		})
	res, err := p.Solve([]float64{0, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-5)
	assert.InDelta(t, -2, res.X[1], 1e-5)
	assert.Less(t, res.GradNorm, 1e-4)
}

func TestQuadraticWithBoxConstraints(t *testing.T) {
	// Unconstrained minimum at (1, -2); the box pins both coordinates.
	p := NewProblem(2).
		SetObjective(func(x []float64) float64 {
			return (x[0]-1)*(x[0]-1) + (x[1]+2)*(x[1]+2)
		}).
		SetGradient(func(grad, x []float64) {
			grad[0] = 2 * (x[0] - 1)
			grad[1] = 2 * (x[1] + 2)
		}).
		SetBounds([]float64{0, 0}, []float64{0.5, 3})
	res, err := p.Solve([]float64{0.2, 1}, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.X[0], 1e-6)
	assert.InDelta(t, 0, res.X[1], 1e-6)
}

func TestResidualLeastSquares(t *testing.T) {
	// Fit y = a + b*t over three points, expressed through residuals only.
	ts := []float64{0, 1, 2}
	ys := []float64{1, 3, 5}
	p := NewProblem(2).
		SetResiduals(3, func(res, x []float64) {
			for i := range ts {
				res[i] = x[0] + x[1]*ts[i] - ys[i]
			}
		}).
		SetResidualJacobian(func(jac []float64, x []float64) {
			for i := range ts {
				jac[i*2] = 1
				jac[i*2+1] = ts[i]
			}
		})
	res, err := p.Solve([]float64{0, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-4)
	assert.InDelta(t, 2, res.X[1], 1e-4)
}

func TestMonitorEarlyStop(t *testing.T) {
	calls := 0
	p := NewProblem(1).
		SetObjective(func(x []float64) float64 { return x[0] * x[0] }).
		SetGradient(func(grad, x []float64) { grad[0] = 2 * x[0] }).
		SetMonitor(func(x []float64, obj, gradNorm float64, iter int) int {
			calls++
			if iter >= 1 {
				return 1
			}
			return 0
		})
	res, err := p.Solve([]float64{100}, DefaultSettings())
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestTimeLimitOnBoundedPath(t *testing.T) {
	p := NewProblem(1).
		SetObjective(func(x []float64) float64 {
			time.Sleep(2 * time.Millisecond)
			return x[0] * x[0]
		}).
		SetGradient(func(grad, x []float64) { grad[0] = 2 * x[0] }).
		SetBounds([]float64{-1e6}, []float64{1e6})
	settings := DefaultSettings()
	settings.TimeLimit = time.Millisecond
	settings.GradTol = 1e-300
	res, err := p.Solve([]float64{1000}, settings)
	require.NoError(t, err)
	assert.True(t, res.Stopped)
}

func TestMissingCallbacksRejected(t *testing.T) {
	_, err := NewProblem(2).Solve([]float64{0, 0}, DefaultSettings())
	assert.Error(t, err)
}
