package sketch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMaxIterations = 100
	// DefaultTolerance is the residual norm below which a solve counts as
	// converged.
	DefaultTolerance = 1e-9
	// DefaultMinStep is the step length below which the optimizer considers
	// itself stuck.
	DefaultMinStep = 1e-12
)

// Armijo backtracking parameters used by MethodSteepestDescent.
const (
	armijoC       = 1e-4
	armijoShrink  = 0.5
	armijoMaxIter = 60
)

type Method int

const (
	// MethodGaussNewton solves the linearized least-squares problem J Δ = -r
	// in every iteration. Over-determined systems get the least-squares
	// solution, under-determined ones the minimum-norm solution.
	MethodGaussNewton Method = iota
	// MethodSteepestDescent steps along the negative gradient of the cost,
	// with the step length chosen by Armijo backtracking.
	MethodSteepestDescent
)

func (m Method) String() string {
	switch m {
	case MethodGaussNewton:
		return "gauss-newton"
	case MethodSteepestDescent:
		return "steepest-descent"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod is the inverse of [Method.String].
func ParseMethod(s string) (Method, error) {
	switch s {
	case "gauss-newton":
		return MethodGaussNewton, nil
	case "steepest-descent":
		return MethodSteepestDescent, nil
	default:
		return 0, fmt.Errorf("unknown solve method %q", s)
	}
}

// SolveOptions configures [Solve]. Zero values select the defaults.
type SolveOptions struct {
	Method        Method
	MaxIterations int
	Tolerance     float64
	MinStep       float64
}

func (opts SolveOptions) withDefaults() SolveOptions {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MinStep <= 0 {
		opts.MinStep = DefaultMinStep
	}
	return opts
}

// Solution is the result of a successful solve.
type Solution struct {
	// X is the converged candidate, indexed by parameter id. Locked
	// parameters hold their stored values.
	X []float64
	// Iterations is the number of steps taken.
	Iterations int
	// ResidualNorm is the L2 norm of the residuals at X.
	ResidualNorm float64
}

type stepFunc func(p *Problem, x, r []float64) ([]float64, error)

// Solve searches for values of the problem's free parameters that satisfy
// all constraints, starting from the parameters' stored values.
//
// The optimizer minimizes ½‖r‖², where r is the vector of residuals, and
// stops as soon as ‖r‖ is at most the tolerance. When there are several
// solutions, as is common for under-constrained sketches, it finds one near
// the starting point, not a canonical one.
//
// On failure, the error is a [*SolveError] carrying the best candidate
// found. The context is checked once per iteration; canceling it aborts the
// solve between iterations.
//
// Solve doesn't modify the objects the problem was built from. Use
// [Objects.Apply] to commit the solution.
func Solve(ctx context.Context, p *Problem, opts SolveOptions) (Solution, error) {
	opts = opts.withDefaults()
	var step stepFunc
	switch opts.Method {
	case MethodGaussNewton:
		step = gaussNewtonStep
	case MethodSteepestDescent:
		step = steepestDescentStep
	default:
		return Solution{}, fmt.Errorf("unknown solve method %v", opts.Method)
	}

	x := p.Compact(p.Initial())
	best, bestNorm := x, math.Inf(1)
	fail := func(reason error, iterations int) (Solution, error) {
		return Solution{}, &SolveError{
			Reason:       reason,
			Best:         p.Expand(best),
			Iterations:   iterations,
			ResidualNorm: bestNorm,
		}
	}

	r, err := p.FreeResidual(x)
	if err != nil {
		return fail(err, 0)
	}
	norm := floats.Norm(r, 2)
	bestNorm = norm

	for it := 0; ; it++ {
		if norm <= opts.Tolerance {
			return Solution{X: p.Expand(x), Iterations: it, ResidualNorm: norm}, nil
		}
		if it == opts.MaxIterations || len(x) == 0 {
			return fail(ErrNonConvergence, it)
		}
		if err := ctx.Err(); err != nil {
			return fail(err, it)
		}

		delta, err := step(p, x, r)
		if err != nil {
			return fail(err, it)
		}
		if floats.Norm(delta, 2) < opts.MinStep {
			return fail(fmt.Errorf("%w: step length below %g", ErrNonConvergence, opts.MinStep), it)
		}
		next := slices.Clone(x)
		floats.Add(next, delta)
		r, err = p.FreeResidual(next)
		if err != nil {
			return fail(err, it+1)
		}
		x, norm = next, floats.Norm(r, 2)
		if norm < bestNorm {
			best, bestNorm = x, norm
		}
	}
}

func gaussNewtonStep(p *Problem, x, r []float64) ([]float64, error) {
	jac, err := p.FreeJacobian(x)
	if err != nil {
		return nil, err
	}
	// Rows of constraints sitting on a kink with a zero subgradient, and
	// columns of parameters no constraint depends on, carry no information
	// and would make the system rank-deficient.
	rows, cols := activeRowsCols(jac)
	out := make([]float64, len(x))
	if len(rows) == 0 || len(cols) == 0 {
		return out, nil
	}
	a := mat.NewDense(len(rows), len(cols), nil)
	rhs := mat.NewVecDense(len(rows), nil)
	for i, ri := range rows {
		for j, cj := range cols {
			a.Set(i, j, jac.At(ri, cj))
		}
		rhs.SetVec(i, -r[ri])
	}
	var delta mat.VecDense
	if err := delta.SolveVec(a, rhs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	for j, cj := range cols {
		v := delta.AtVec(j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite step", ErrSingular)
		}
		out[cj] = v
	}
	return out, nil
}

// activeRowsCols returns the indices of the rows and columns of m that have
// at least one non-zero entry.
func activeRowsCols(m *mat.Dense) (rows, cols []int) {
	if m.IsEmpty() {
		return nil, nil
	}
	nr, nc := m.Dims()
	colActive := make([]bool, nc)
	for i := range nr {
		active := false
		for j := range nc {
			if m.At(i, j) != 0 {
				active = true
				colActive[j] = true
			}
		}
		if active {
			rows = append(rows, i)
		}
	}
	for j, active := range colActive {
		if active {
			cols = append(cols, j)
		}
	}
	return rows, cols
}

func steepestDescentStep(p *Problem, x, r []float64) ([]float64, error) {
	grad, err := p.Gradient(x)
	if err != nil {
		return nil, err
	}
	gg := floats.Dot(grad, grad)
	cost := 0.5 * floats.Dot(r, r)
	trial := make([]float64, len(x))
	alpha := 1.0
	for range armijoMaxIter {
		floats.AddScaledTo(trial, x, -alpha, grad)
		c, err := p.Cost(trial)
		switch {
		case err == nil && c <= cost-armijoC*alpha*gg:
			delta := make([]float64, len(x))
			floats.ScaleTo(delta, -alpha, grad)
			return delta, nil
		case err != nil && !errors.Is(err, ErrEvaluation):
			return nil, err
		}
		// Either the trial point doesn't decrease the cost sufficiently, or
		// it lies outside of the formulas' domain. Try a shorter step.
		alpha *= armijoShrink
	}
	// No acceptable step; report a null step and let the caller give up.
	return make([]float64, len(x)), nil
}
