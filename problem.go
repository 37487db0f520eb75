package sketch

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Problem is a snapshot of a sketch's parameters and constraints, prepared
// for solving. It is built immediately before a solve by [NewProblem] and
// isn't meant to outlive it.
//
// A Problem works in two coordinate systems. A candidate is indexed by
// parameter id and covers every parameter, locked or not; entries for locked
// parameters are ignored in favor of their stored value. A free vector is
// indexed by free index and covers only unlocked parameters. It is what the
// optimizer actually searches. [Problem.Expand] and [Problem.Compact]
// convert between the two.
//
// Problem is not safe for concurrent use.
type Problem struct {
	params      []Parameter
	constraints []Constraint
	bindings    []binding
	// free maps free indices to parameter ids.
	free []ParameterID
	// index maps parameter ids to free indices, or -1 for locked parameters.
	index []int
}

// NewProblem validates the constraints against objs and snapshots the
// parameters. Later changes to objs don't affect the problem.
//
// Every id referenced by a constraint must exist, or the returned error
// matches [ErrNotFound]. Constraints of unknown kinds are rejected with
// [ErrUnsupportedConstraint]. Both are wrapped in a [*ConstraintError]
// naming the constraint.
func NewProblem(objs *Objects, constraints []Constraint) (*Problem, error) {
	p := &Problem{
		params:      slices.Clone(objs.parameters),
		constraints: slices.Clone(constraints),
		bindings:    make([]binding, len(constraints)),
		index:       make([]int, len(objs.parameters)),
	}
	for i, c := range constraints {
		f, err := lookupFormula(c.Kind)
		if err != nil {
			return nil, &ConstraintError{Index: i, Kind: c.Kind, Err: err}
		}
		b, err := f.bind(objs, c)
		if err != nil {
			return nil, &ConstraintError{Index: i, Kind: c.Kind, Err: err}
		}
		p.bindings[i] = b
	}
	for id, param := range p.params {
		if param.Locked {
			p.index[id] = -1
			continue
		}
		p.index[id] = len(p.free)
		p.free = append(p.free, ParameterID(id))
	}
	return p, nil
}

// NumConstraints returns the number of residuals.
func (p *Problem) NumConstraints() int { return len(p.constraints) }

// NumParameters returns the length of candidates.
func (p *Problem) NumParameters() int { return len(p.params) }

// NumFree returns the length of free vectors.
func (p *Problem) NumFree() int { return len(p.free) }

// FreeParameter returns the id of the parameter at free index i.
func (p *Problem) FreeParameter(i int) ParameterID { return p.free[i] }

// FreeIndex returns the free index of a parameter, or false if it is locked.
func (p *Problem) FreeIndex(id ParameterID) (int, bool) {
	if id < 0 || int(id) >= len(p.index) || p.index[id] < 0 {
		return 0, false
	}
	return p.index[id], true
}

// Initial returns the candidate made of the parameters' stored values.
func (p *Problem) Initial() []float64 {
	x := make([]float64, len(p.params))
	for i, param := range p.params {
		x[i] = param.Value
	}
	return x
}

// Expand turns a free vector into a candidate, filling in locked parameters
// with their stored values.
func (p *Problem) Expand(free []float64) []float64 {
	x := p.Initial()
	for i, id := range p.free {
		x[id] = free[i]
	}
	return x
}

// Compact turns a candidate into a free vector.
func (p *Problem) Compact(x []float64) []float64 {
	free := make([]float64, len(p.free))
	for i, id := range p.free {
		free[i] = x[id]
	}
	return free
}

func (p *Problem) env(x []float64) (env, error) {
	if len(x) != len(p.params) {
		return env{}, fmt.Errorf("candidate has %d entries, problem has %d parameters", len(x), len(p.params))
	}
	return env{params: p.params, x: x}, nil
}

// Residual evaluates every constraint at the candidate x, in constraint
// order. A residual of zero means the constraint is satisfied.
func (p *Problem) Residual(x []float64) ([]float64, error) {
	e, err := p.env(x)
	if err != nil {
		return nil, err
	}
	r := make([]float64, len(p.constraints))
	for i, c := range p.constraints {
		f, err := lookupFormula(c.Kind)
		if err == nil {
			r[i], err = f.residual(e, p.bindings[i])
		}
		if err != nil {
			return nil, &ConstraintError{Index: i, Kind: c.Kind, Err: err}
		}
	}
	return r, nil
}

// gradients calls add(i, id, v) for each partial derivative v of residual i
// with respect to free parameter id.
func (p *Problem) gradients(x []float64, add func(i int, id ParameterID, v float64)) error {
	e, err := p.env(x)
	if err != nil {
		return err
	}
	for i, c := range p.constraints {
		f, err := lookupFormula(c.Kind)
		if err == nil {
			err = f.gradient(e, p.bindings[i], func(id ParameterID, v float64) {
				// Locked parameters are constants, not variables.
				if !p.params[id].Locked {
					add(i, id, v)
				}
			})
		}
		if err != nil {
			return &ConstraintError{Index: i, Kind: c.Kind, Err: err}
		}
	}
	return nil
}

// Jacobian returns the matrix of partial derivatives of the residuals at
// the candidate x. Rows correspond to constraints, columns to parameter
// ids. Columns of locked parameters are exactly zero.
//
// If there are no constraints or no parameters, the result is an empty
// matrix.
func (p *Problem) Jacobian(x []float64) (*mat.Dense, error) {
	if len(p.constraints) == 0 || len(p.params) == 0 {
		if _, err := p.env(x); err != nil {
			return nil, err
		}
		return &mat.Dense{}, nil
	}
	jac := mat.NewDense(len(p.constraints), len(p.params), nil)
	err := p.gradients(x, func(i int, id ParameterID, v float64) {
		jac.Set(i, int(id), jac.At(i, int(id))+v)
	})
	if err != nil {
		return nil, err
	}
	return jac, nil
}

// FreeResidual is like [Problem.Residual] but takes a free vector.
func (p *Problem) FreeResidual(free []float64) ([]float64, error) {
	if len(free) != len(p.free) {
		return nil, fmt.Errorf("free vector has %d entries, problem has %d free parameters", len(free), len(p.free))
	}
	return p.Residual(p.Expand(free))
}

// FreeJacobian is like [Problem.Jacobian] but takes a free vector and only
// has columns for free parameters, in free index order.
func (p *Problem) FreeJacobian(free []float64) (*mat.Dense, error) {
	if len(free) != len(p.free) {
		return nil, fmt.Errorf("free vector has %d entries, problem has %d free parameters", len(free), len(p.free))
	}
	if len(p.constraints) == 0 || len(p.free) == 0 {
		return &mat.Dense{}, nil
	}
	jac := mat.NewDense(len(p.constraints), len(p.free), nil)
	err := p.gradients(p.Expand(free), func(i int, id ParameterID, v float64) {
		j := p.index[id]
		jac.Set(i, j, jac.At(i, j)+v)
	})
	if err != nil {
		return nil, err
	}
	return jac, nil
}

// Cost returns ½‖r‖², half the squared L2 norm of the residuals at the free
// vector. This is the quantity the optimizer minimizes.
func (p *Problem) Cost(free []float64) (float64, error) {
	r, err := p.FreeResidual(free)
	if err != nil {
		return 0, err
	}
	return 0.5 * floats.Dot(r, r), nil
}

// Gradient returns the gradient of [Problem.Cost] with respect to the free
// vector, Jᵀr.
func (p *Problem) Gradient(free []float64) ([]float64, error) {
	r, err := p.FreeResidual(free)
	if err != nil {
		return nil, err
	}
	grad := make([]float64, len(p.free))
	err = p.gradients(p.Expand(free), func(i int, id ParameterID, v float64) {
		grad[p.index[id]] += v * r[i]
	})
	if err != nil {
		return nil, err
	}
	return grad, nil
}
