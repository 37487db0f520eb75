package sketch

import (
	"errors"
	"math"
	"testing"
)

func TestExprString(t *testing.T) {
	tests := []struct {
		e    Expr
		want string
	}{
		{Const(2), "2"},
		{Const(-0.5), "-0.5"},
		{Param(3), "p3"},
		{Add(Param(0), Const(1)), "(p0 + 1)"},
		{Div(Sqrt(Mul(Param(1), Param(1))), Sub(Const(4), Param(2))), "(sqrt((p1 * p1)) / (4 - p2))"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestExprEval(t *testing.T) {
	e := env{
		params: []Parameter{Free(0), Fixed(3), Free(0)},
		x:      []float64{2, 100, 9},
	}
	tests := []struct {
		e    Expr
		want float64
	}{
		{Const(1.5), 1.5},
		{Param(0), 2},
		// Locked parameters read their stored value, not the candidate.
		{Param(1), 3},
		{Add(Param(0), Param(1)), 5},
		{Sub(Param(0), Param(1)), -1},
		{Mul(Param(0), Param(1)), 6},
		{Div(Param(1), Param(0)), 1.5},
		{Sqrt(Param(2)), 3},
	}
	for _, tt := range tests {
		got, err := tt.e.eval(e)
		if err != nil {
			t.Errorf("%s: %s", tt.e, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %g, want %g", tt.e, got, tt.want)
		}
	}
}

func TestExprDerivMatchesFiniteDifferences(t *testing.T) {
	const h = 1e-6
	const tol = 1e-6
	params := []Parameter{Free(0), Free(0), Free(0)}
	x := []float64{1.25, -0.75, 4}
	exprs := []Expr{
		Add(Mul(Param(0), Param(1)), Param(2)),
		Div(Param(0), Sub(Param(2), Param(1))),
		Sqrt(Add(Mul(Param(0), Param(0)), Param(2))),
		Mul(Div(Const(3), Param(2)), Sqrt(Param(2))),
		Sub(Param(1), Param(1)),
	}
	for _, ex := range exprs {
		got := make([]float64, len(x))
		err := ex.deriv(env{params: params, x: x}, 1, func(id ParameterID, v float64) {
			got[id] += v
		})
		if err != nil {
			t.Errorf("%s: %s", ex, err)
			continue
		}
		for j := range x {
			xp := append([]float64(nil), x...)
			xm := append([]float64(nil), x...)
			xp[j] += h
			xm[j] -= h
			vp, err := ex.eval(env{params: params, x: xp})
			if err != nil {
				t.Fatal(err)
			}
			vm, err := ex.eval(env{params: params, x: xm})
			if err != nil {
				t.Fatal(err)
			}
			want := (vp - vm) / (2 * h)
			if d := math.Abs(got[j] - want); d > tol {
				t.Errorf("%s: ∂/∂p%d: got %g, want %g", ex, j, got[j], want)
			}
		}
	}
}

func TestExprEvaluationErrors(t *testing.T) {
	e := env{params: []Parameter{Free(0)}, x: []float64{0}}
	for _, ex := range []Expr{
		Div(Const(1), Param(0)),
		Sqrt(Sub(Param(0), Const(1))),
		Add(Const(1), Div(Const(1), Const(0))),
	} {
		if _, err := ex.eval(e); !errors.Is(err, ErrEvaluation) {
			t.Errorf("%s: got error %v, want ErrEvaluation", ex, err)
		}
	}
	// The square root is defined at zero, but its derivative isn't.
	ex := Sqrt(Param(0))
	if _, err := ex.eval(e); err != nil {
		t.Errorf("%s: got error %v, want none", ex, err)
	}
	if err := ex.deriv(e, 1, func(ParameterID, float64) {}); !errors.Is(err, ErrEvaluation) {
		t.Errorf("%s: got error %v, want ErrEvaluation", ex, err)
	}
}

func TestExprRefs(t *testing.T) {
	var got []ParameterID
	Div(Sqrt(Param(4)), Add(Const(1), Mul(Param(2), Param(4)))).refs(func(id ParameterID) {
		got = append(got, id)
	})
	diff(t, []ParameterID{4, 2, 4}, got)
}
