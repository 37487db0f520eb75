package sketch

import (
	"math"
	"strconv"
)

// Expr is a closed-form scalar expression over parameters, used as the
// target of [Distance] constraints. Expressions are built with [Const],
// [Param], [Add], [Sub], [Mul], [Div], and [Sqrt]; there is no parser.
//
// Expressions are evaluated against the same bindings as the constraint
// using them: a locked parameter contributes its stored value, a free
// parameter the solver's current candidate. They can be differentiated
// exactly with respect to every parameter they read.
//
// The String method renders expressions in the following grammar:
//
//	expr = number | "p" id | "(" expr op expr ")" | "sqrt(" expr ")"
//	op   = "+" | "-" | "*" | "/"
type Expr interface {
	String() string

	eval(e env) (float64, error)
	// deriv calls add(p, scale·∂expr/∂p) for every parameter p the
	// expression reads. A parameter may be reported more than once.
	deriv(e env, scale float64, add func(ParameterID, float64)) error
	refs(yield func(ParameterID))
}

// Const returns an expression with the constant value v.
func Const(v float64) Expr { return constExpr(v) }

// Param returns an expression reading the parameter with the given id.
func Param(id ParameterID) Expr { return paramExpr(id) }

func Add(a, b Expr) Expr { return binaryExpr{'+', a, b} }
func Sub(a, b Expr) Expr { return binaryExpr{'-', a, b} }
func Mul(a, b Expr) Expr { return binaryExpr{'*', a, b} }

// Div returns a/b. Evaluating it fails with [ErrEvaluation] if b is zero.
func Div(a, b Expr) Expr { return binaryExpr{'/', a, b} }

// Sqrt returns the square root of a. Evaluating it fails with
// [ErrEvaluation] if a is negative. Differentiating it also fails if a is
// zero.
func Sqrt(a Expr) Expr { return sqrtExpr{a} }

// checkExpr returns an error if x or any of its operands is nil.
func checkExpr(x Expr) error {
	switch x := x.(type) {
	case nil:
		return evalErrorf("expression has a nil operand")
	case binaryExpr:
		if err := checkExpr(x.a); err != nil {
			return err
		}
		return checkExpr(x.b)
	case sqrtExpr:
		return checkExpr(x.a)
	default:
		return nil
	}
}

type constExpr float64

func (c constExpr) String() string { return strconv.FormatFloat(float64(c), 'g', -1, 64) }

func (c constExpr) eval(env) (float64, error) { return float64(c), nil }

func (constExpr) deriv(env, float64, func(ParameterID, float64)) error { return nil }

func (constExpr) refs(func(ParameterID)) {}

type paramExpr ParameterID

func (p paramExpr) String() string { return "p" + strconv.Itoa(int(p)) }

func (p paramExpr) eval(e env) (float64, error) { return e.value(ParameterID(p)), nil }

func (p paramExpr) deriv(e env, scale float64, add func(ParameterID, float64)) error {
	add(ParameterID(p), scale)
	return nil
}

func (p paramExpr) refs(yield func(ParameterID)) { yield(ParameterID(p)) }

type binaryExpr struct {
	op   byte
	a, b Expr
}

func (x binaryExpr) String() string {
	return "(" + x.a.String() + " " + string(x.op) + " " + x.b.String() + ")"
}

func (x binaryExpr) eval(e env) (float64, error) {
	va, err := x.a.eval(e)
	if err != nil {
		return 0, err
	}
	vb, err := x.b.eval(e)
	if err != nil {
		return 0, err
	}
	switch x.op {
	case '+':
		return va + vb, nil
	case '-':
		return va - vb, nil
	case '*':
		return va * vb, nil
	case '/':
		if vb == 0 {
			return 0, evalErrorf("division by zero in %s", x)
		}
		return va / vb, nil
	default:
		panic("unreachable")
	}
}

func (x binaryExpr) deriv(e env, scale float64, add func(ParameterID, float64)) error {
	switch x.op {
	case '+':
		if err := x.a.deriv(e, scale, add); err != nil {
			return err
		}
		return x.b.deriv(e, scale, add)
	case '-':
		if err := x.a.deriv(e, scale, add); err != nil {
			return err
		}
		return x.b.deriv(e, -scale, add)
	}

	va, err := x.a.eval(e)
	if err != nil {
		return err
	}
	vb, err := x.b.eval(e)
	if err != nil {
		return err
	}
	switch x.op {
	case '*':
		// (ab)' = a'b + ab'
		if err := x.a.deriv(e, scale*vb, add); err != nil {
			return err
		}
		return x.b.deriv(e, scale*va, add)
	case '/':
		// (a/b)' = a'/b - ab'/b²
		if vb == 0 {
			return evalErrorf("division by zero in %s", x)
		}
		if err := x.a.deriv(e, scale/vb, add); err != nil {
			return err
		}
		return x.b.deriv(e, -scale*va/(vb*vb), add)
	default:
		panic("unreachable")
	}
}

func (x binaryExpr) refs(yield func(ParameterID)) {
	x.a.refs(yield)
	x.b.refs(yield)
}

type sqrtExpr struct {
	a Expr
}

func (x sqrtExpr) String() string { return "sqrt(" + x.a.String() + ")" }

func (x sqrtExpr) eval(e env) (float64, error) {
	v, err := x.a.eval(e)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, evalErrorf("square root of negative value %g in %s", v, x)
	}
	return math.Sqrt(v), nil
}

func (x sqrtExpr) deriv(e env, scale float64, add func(ParameterID, float64)) error {
	v, err := x.a.eval(e)
	if err != nil {
		return err
	}
	if v <= 0 {
		return evalErrorf("%s is not differentiable at %g", x, v)
	}
	return x.a.deriv(e, scale/(2*math.Sqrt(v)), add)
}

func (x sqrtExpr) refs(yield func(ParameterID)) { x.a.refs(yield) }
