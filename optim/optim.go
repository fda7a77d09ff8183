// Package optim is the nonlinear-solver facade used by the linear and
// logistic models: a problem builder that registers objective, gradient,
// residual and monitor callbacks. The unconstrained path delegates to
// gonum's L-BFGS. When box constraints are set, the problem is solved by
// steepest-descent steps on the projected gradient with a backtracking line
// search; that path keeps no L-BFGS curvature history.
package optim

import (
	"errors"
	"math"
	"time"

	"github.com/HazelnutParadise/mlearn"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Monitor receives the iterate, objective, gradient norm and iteration
// index after every outer iteration. A non-zero return requests an early
// stop; cancellation is cooperative and only observed between iterations.
type Monitor func(x []float64, obj, gradNorm float64, iter int) int

// Problem collects the callbacks and constraints registered by the caller.
type Problem struct {
	nvar int
	nres int

	lower, upper []float64
	weights      []float64

	objective func(x []float64) float64
	gradient  func(grad, x []float64)
	residual  func(res, x []float64)
	resJac    func(jac []float64, x []float64) // nres x nvar, row-major
	hessProd  func(dst, x, v []float64)
	step      func(x []float64)
	monitor   Monitor
}

// NewProblem starts a problem over nvar variables.
func NewProblem(nvar int) *Problem {
	return &Problem{nvar: nvar}
}

// SetResiduals declares a least-squares structure with nres residuals.
func (p *Problem) SetResiduals(nres int, residual func(res, x []float64)) *Problem {
	p.nres = nres
	p.residual = residual
	return p
}

// SetResidualJacobian registers the nres x nvar Jacobian callback.
func (p *Problem) SetResidualJacobian(jac func(jac []float64, x []float64)) *Problem {
	p.resJac = jac
	return p
}

// SetBounds registers elementwise box constraints; nil means unbounded.
func (p *Problem) SetBounds(lower, upper []float64) *Problem {
	p.lower = lower
	p.upper = upper
	return p
}

// SetWeights registers per-residual weights.
func (p *Problem) SetWeights(w []float64) *Problem {
	p.weights = w
	return p
}

// SetObjective registers the objective callback.
func (p *Problem) SetObjective(f func(x []float64) float64) *Problem {
	p.objective = f
	return p
}

// SetGradient registers the gradient callback.
func (p *Problem) SetGradient(g func(grad, x []float64)) *Problem {
	p.gradient = g
	return p
}

// SetHessianProduct registers the Hessian-vector product callback.
func (p *Problem) SetHessianProduct(h func(dst, x, v []float64)) *Problem {
	p.hessProd = h
	return p
}

// SetStep registers a callback invoked on every accepted iterate.
func (p *Problem) SetStep(fn func(x []float64)) *Problem {
	p.step = fn
	return p
}

// SetMonitor registers the per-iteration monitor.
func (p *Problem) SetMonitor(m Monitor) *Problem {
	p.monitor = m
	return p
}

// Settings holds the solver controls.
type Settings struct {
	MaxIterations int
	// TimeLimit stops the solve cooperatively; zero means no limit.
	TimeLimit time.Duration
	// GradTol is the convergence threshold on the projected gradient norm.
	GradTol float64
}

// DefaultSettings mirrors the registry defaults.
func DefaultSettings() Settings {
	return Settings{MaxIterations: 1000, GradTol: 1e-6}
}

// Result carries the final iterate and convergence diagnostics.
type Result struct {
	X          []float64
	Objective  float64
	GradNorm   float64
	Iterations int
	// Stopped is true when the monitor or the time limit ended the solve
	// before convergence.
	Stopped bool
}

// errMonitorStop is the sentinel the gonum recorder uses to request a stop.
var errMonitorStop = errors.New("monitor requested stop")

// objectiveFn resolves the effective objective: either the registered one or
// the weighted least-squares reduction of the residual callback.
func (p *Problem) objectiveFn() (func(x []float64) float64, error) {
	if p.objective != nil {
		return p.objective, nil
	}
	if p.residual == nil {
		return nil, mlearn.StatusInvalidOption
	}
	res := make([]float64, p.nres)
	return func(x []float64) float64 {
		p.residual(res, x)
		sum := 0.0
		for i, r := range res {
			w := 1.0
			if p.weights != nil {
				w = p.weights[i]
			}
			sum += w * r * r
		}
		return sum / 2
	}, nil
}

// gradientFn resolves the effective gradient: registered, assembled from the
// residual Jacobian, or a forward-difference fallback.
func (p *Problem) gradientFn(obj func(x []float64) float64) func(grad, x []float64) {
	if p.gradient != nil {
		return p.gradient
	}
	if p.residual != nil && p.resJac != nil {
		res := make([]float64, p.nres)
		jac := make([]float64, p.nres*p.nvar)
		return func(grad, x []float64) {
			p.residual(res, x)
			p.resJac(jac, x)
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < p.nres; i++ {
				w := 1.0
				if p.weights != nil {
					w = p.weights[i]
				}
				for j := 0; j < p.nvar; j++ {
					grad[j] += w * res[i] * jac[i*p.nvar+j]
				}
			}
		}
	}
	const h = 1e-8
	return func(grad, x []float64) {
		f0 := obj(x)
		xh := append([]float64(nil), x...)
		for j := range grad {
			xh[j] = x[j] + h
			grad[j] = (obj(xh) - f0) / h
			xh[j] = x[j]
		}
	}
}

func (p *Problem) bounded() bool { return p.lower != nil || p.upper != nil }

func (p *Problem) project(x []float64) {
	for j := range x {
		if p.lower != nil && x[j] < p.lower[j] {
			x[j] = p.lower[j]
		}
		if p.upper != nil && x[j] > p.upper[j] {
			x[j] = p.upper[j]
		}
	}
}

// Solve minimises the registered problem starting from x0.
func (p *Problem) Solve(x0 []float64, settings Settings) (*Result, error) {
	if len(x0) != p.nvar {
		mlearn.LogWarning("optim.Solve: x0 has length %d, expected %d.", len(x0), p.nvar)
		return nil, mlearn.StatusInvalidArrayDimension
	}
	obj, err := p.objectiveFn()
	if err != nil {
		mlearn.LogWarning("optim.Solve: neither an objective nor residuals were registered.")
		return nil, err
	}
	grad := p.gradientFn(obj)
	if settings.MaxIterations <= 0 {
		settings.MaxIterations = DefaultSettings().MaxIterations
	}
	if settings.GradTol <= 0 {
		settings.GradTol = DefaultSettings().GradTol
	}
	if p.bounded() {
		return p.solveProjected(x0, settings, obj, grad)
	}
	return p.solveLBFGS(x0, settings, obj, grad)
}

// monitorRecorder adapts the monitor to gonum's Recorder; a requested stop
// surfaces as errMonitorStop, which Solve treats as a clean early exit.
type monitorRecorder struct {
	p    *Problem
	iter int
}

func (r *monitorRecorder) Init() error { return nil }

func (r *monitorRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	if r.p.step != nil {
		r.p.step(loc.X)
	}
	if r.p.monitor != nil {
		gradNorm := 0.0
		if loc.Gradient != nil {
			gradNorm = floats.Norm(loc.Gradient, 2)
		}
		if r.p.monitor(loc.X, loc.F, gradNorm, r.iter) != 0 {
			return errMonitorStop
		}
	}
	r.iter++
	return nil
}

func (p *Problem) solveLBFGS(x0 []float64, settings Settings, obj func([]float64) float64, grad func(grad, x []float64)) (*Result, error) {
	problem := optimize.Problem{
		Func: obj,
		Grad: grad,
	}
	rec := &monitorRecorder{p: p}
	gs := optimize.Settings{
		MajorIterations:   settings.MaxIterations,
		Runtime:           settings.TimeLimit,
		GradientThreshold: settings.GradTol,
		Recorder:          rec,
	}
	result, err := optimize.Minimize(problem, x0, &gs, &optimize.LBFGS{})
	stopped := false
	if err != nil {
		if errors.Is(err, errMonitorStop) {
			stopped = true
		} else {
			mlearn.LogWarning("optim.Solve: %v", err)
			return nil, mlearn.StatusNumericalDifficulties
		}
	}
	g := make([]float64, p.nvar)
	grad(g, result.X)
	return &Result{
		X:          result.X,
		Objective:  result.F,
		GradNorm:   floats.Norm(g, 2),
		Iterations: result.Stats.MajorIterations,
		Stopped:    stopped,
	}, nil
}

// solveProjected is the box-constrained driver: steepest-descent steps on
// the projected gradient with a backtracking line search. The monitor and
// the time limit are observed between outer iterations only.
func (p *Problem) solveProjected(x0 []float64, settings Settings, obj func([]float64) float64, grad func(grad, x []float64)) (*Result, error) {
	x := append([]float64(nil), x0...)
	p.project(x)
	g := make([]float64, p.nvar)
	trial := make([]float64, p.nvar)
	deadline := time.Time{}
	if settings.TimeLimit > 0 {
		deadline = time.Now().Add(settings.TimeLimit)
	}

	f := obj(x)
	iter := 0
	stopped := false
	for ; iter < settings.MaxIterations; iter++ {
		grad(g, x)

		// Projected gradient: zero the components pushing out of the box.
		pg := 0.0
		for j := range g {
			blocked := (p.lower != nil && x[j] <= p.lower[j] && g[j] > 0) ||
				(p.upper != nil && x[j] >= p.upper[j] && g[j] < 0)
			if !blocked {
				pg += g[j] * g[j]
			}
		}
		pg = math.Sqrt(pg)
		if p.monitor != nil && p.monitor(x, f, pg, iter) != 0 {
			stopped = true
			break
		}
		if pg < settings.GradTol {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			stopped = true
			break
		}

		step := 1.0
		improved := false
		for ls := 0; ls < 40; ls++ {
			for j := range trial {
				trial[j] = x[j] - step*g[j]
			}
			p.project(trial)
			if ft := obj(trial); ft < f {
				copy(x, trial)
				f = ft
				improved = true
				break
			}
			step /= 2
		}
		if p.step != nil {
			p.step(x)
		}
		if !improved {
			break
		}
	}
	grad(g, x)
	return &Result{
		X:          x,
		Objective:  f,
		GradNorm:   floats.Norm(g, 2),
		Iterations: iter,
		Stopped:    stopped,
	}, nil
}
