package sketch

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
)

var methods = []Method{MethodGaussNewton, MethodSteepestDescent}

func TestSolvePointOnCircle(t *testing.T) {
	for _, m := range methods {
		t.Run(m.String(), func(t *testing.T) {
			objs, pt, origin, c := circleScene()
			cs := []Constraint{PointOnCircle(pt, c)}
			p, err := NewProblem(objs, cs)
			if err != nil {
				t.Fatal(err)
			}
			sol, err := Solve(context.Background(), p, SolveOptions{Method: m})
			if err != nil {
				t.Fatal(err)
			}
			if sol.ResidualNorm > DefaultTolerance {
				t.Errorf("got residual norm %g, want at most %g", sol.ResidualNorm, DefaultTolerance)
			}
			if err := objs.Apply(sol); err != nil {
				t.Fatal(err)
			}

			o, _ := objs.Coord(origin)
			diff(t, Pt3(0, 0, 0), o)
			q, _ := objs.Coord(pt)
			circle, _ := objs.Circle(c)
			r, _ := objs.Parameter(circle.Radius)
			if d := math.Abs(q.Distance(o) - r.Value); d > DefaultTolerance {
				t.Errorf("point is %g away from the circle", d)
			}

			// Re-solving a satisfied sketch takes no steps.
			p, err = NewProblem(objs, cs)
			if err != nil {
				t.Fatal(err)
			}
			again, err := Solve(context.Background(), p, SolveOptions{Method: m})
			if err != nil {
				t.Fatal(err)
			}
			if again.Iterations != 0 {
				t.Errorf("got %d iterations, want 0", again.Iterations)
			}
		})
	}
}

func TestSolveGaussNewtonMinimumNorm(t *testing.T) {
	// With J = [-1 0 0 -1] and r = 25, the minimum-norm step splits the
	// correction evenly between the point and the radius.
	objs, pt, _, c := circleScene()
	p, err := NewProblem(objs, []Constraint{PointOnCircle(pt, c)})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Solve(context.Background(), p, SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if sol.Iterations != 1 {
		t.Errorf("got %d iterations, want 1", sol.Iterations)
	}
	want := []float64{0, 0, 0, -37.5, 0, 0, 37.5}
	diff(t, want, sol.X, cmpopts.EquateApprox(0, 1e-9))
}

func TestSolveTriangle(t *testing.T) {
	for _, m := range methods {
		t.Run(m.String(), func(t *testing.T) {
			var objs Objects
			a := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
			b := objs.AddPoint(Free(2), Free(0), Fixed(0))
			c := objs.AddPoint(Free(2), Free(3), Fixed(0))
			cs := []Constraint{
				Distance(a, b, Const(3)),
				Distance(b, c, Const(4)),
				Distance(a, c, Const(5)),
			}
			p, err := NewProblem(&objs, cs)
			if err != nil {
				t.Fatal(err)
			}
			opts := SolveOptions{Method: m}
			if m == MethodSteepestDescent {
				opts.MaxIterations = 10000
				opts.Tolerance = 1e-6
			}
			sol, err := Solve(context.Background(), p, opts)
			if err != nil {
				t.Fatal(err)
			}
			r, err := p.Residual(sol.X)
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range r {
				if math.Abs(v) > opts.withDefaults().Tolerance {
					t.Errorf("constraint %d has residual %g", i, v)
				}
			}
		})
	}
}

func TestSolvePointOnLine(t *testing.T) {
	var objs Objects
	a := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	b := objs.AddPoint(Fixed(1), Fixed(1), Fixed(0))
	pt := objs.AddPoint(Free(3), Free(1), Free(0))
	seg, _ := objs.AddSegment(a, b)
	p, err := NewProblem(&objs, []Constraint{PointOnLine(pt, seg)})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Solve(context.Background(), p, SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := objs.Apply(sol); err != nil {
		t.Fatal(err)
	}
	got, _ := objs.Coord(pt)
	diff(t, Pt3(2, 2, 0), got, cmpopts.EquateApprox(0, 1e-9))
}

func TestSolveSatisfiedPointOnLineWithOthers(t *testing.T) {
	// The point starts on the line, where PointOnLine has a zero
	// subgradient, and the parameter k is free but unused. Neither may make
	// the linearized system singular.
	var objs Objects
	a := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	b := objs.AddPoint(Fixed(1), Fixed(0), Fixed(0))
	pt := objs.AddPoint(Free(5), Free(0), Free(0))
	k := objs.AddParameter(Free(7))
	seg, _ := objs.AddSegment(a, b)
	p, err := NewProblem(&objs, []Constraint{
		PointOnLine(pt, seg),
		Distance(pt, a, Const(3)),
	})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Solve(context.Background(), p, SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := objs.Apply(sol); err != nil {
		t.Fatal(err)
	}
	got, _ := objs.Coord(pt)
	diff(t, Pt3(3, 0, 0), got, cmpopts.EquateApprox(0, 1e-9))
	if v := sol.X[k]; v != 7 {
		t.Errorf("unused parameter changed to %g", v)
	}
}

func TestSolveLockedCoincidentPoints(t *testing.T) {
	var objs Objects
	origin := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	pt := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	c, _ := objs.AddCircle(origin, Free(5))
	p, err := NewProblem(&objs, []Constraint{PointOnCircle(pt, c)})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Solve(context.Background(), p, SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if sol.Iterations != 1 {
		t.Errorf("got %d iterations, want 1", sol.Iterations)
	}
	diff(t, []float64{0, 0, 0, 0, 0, 0, 0}, sol.X)
}

func TestSolveSingular(t *testing.T) {
	// Two copies of the same constraint over the same two free parameters
	// produce identical rows.
	var objs Objects
	origin := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	pt := objs.AddPoint(Free(-50), Fixed(0), Fixed(0))
	c, _ := objs.AddCircle(origin, Free(25))
	p, err := NewProblem(&objs, []Constraint{PointOnCircle(pt, c), PointOnCircle(pt, c)})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Solve(context.Background(), p, SolveOptions{})
	if !errors.Is(err, ErrSingular) {
		t.Fatalf("got error %v, want ErrSingular", err)
	}
	var se *SolveError
	if !errors.As(err, &se) {
		t.Fatalf("got error %T, want *SolveError", err)
	}
	diff(t, p.Initial(), se.Best)
	if want := math.Sqrt(2 * 25 * 25); math.Abs(se.ResidualNorm-want) > 1e-9 {
		t.Errorf("got residual norm %g, want %g", se.ResidualNorm, want)
	}
}

func TestSolveIterationLimit(t *testing.T) {
	var objs Objects
	a := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	b := objs.AddPoint(Free(2), Free(0), Fixed(0))
	c := objs.AddPoint(Free(2), Free(3), Fixed(0))
	p, err := NewProblem(&objs, []Constraint{
		Distance(a, b, Const(3)),
		Distance(b, c, Const(4)),
		Distance(a, c, Const(5)),
	})
	if err != nil {
		t.Fatal(err)
	}
	initial, err := p.Residual(p.Initial())
	if err != nil {
		t.Fatal(err)
	}
	_, err = Solve(context.Background(), p, SolveOptions{MaxIterations: 1})
	if !errors.Is(err, ErrNonConvergence) {
		t.Fatalf("got error %v, want ErrNonConvergence", err)
	}
	var se *SolveError
	if !errors.As(err, &se) {
		t.Fatalf("got error %T, want *SolveError", err)
	}
	if se.Iterations != 1 {
		t.Errorf("got %d iterations, want 1", se.Iterations)
	}
	if len(se.Best) != p.NumParameters() {
		t.Errorf("best candidate has %d entries, want %d", len(se.Best), p.NumParameters())
	}
	var initialNorm float64
	for _, v := range initial {
		initialNorm += v * v
	}
	if se.ResidualNorm >= math.Sqrt(initialNorm) {
		t.Errorf("best residual norm %g is no better than the initial %g", se.ResidualNorm, math.Sqrt(initialNorm))
	}
}

func TestSolveNothingFree(t *testing.T) {
	var objs Objects
	a := objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	b := objs.AddPoint(Fixed(1), Fixed(0), Fixed(0))

	p, err := NewProblem(&objs, []Constraint{Distance(a, b, Const(1))})
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Solve(context.Background(), p, SolveOptions{})
	if err != nil {
		t.Fatalf("satisfied locked sketch: %s", err)
	}
	diff(t, p.Initial(), sol.X)

	p, err = NewProblem(&objs, []Constraint{Distance(a, b, Const(5))})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Solve(context.Background(), p, SolveOptions{})
	if !errors.Is(err, ErrNonConvergence) {
		t.Errorf("got error %v, want ErrNonConvergence", err)
	}
}

func TestSolveNoConstraints(t *testing.T) {
	objs, _, _, _ := circleScene()
	p, err := NewProblem(objs, nil)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := Solve(context.Background(), p, SolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	diff(t, p.Initial(), sol.X)
}

func TestSolveCanceled(t *testing.T) {
	objs, pt, _, c := circleScene()
	p, err := NewProblem(objs, []Constraint{PointOnCircle(pt, c)})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Solve(ctx, p, SolveOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got error %v, want context.Canceled", err)
	}
}

func TestSolveEvaluationError(t *testing.T) {
	var objs Objects
	a := objs.AddPoint(Free(0), Free(0), Free(0))
	b := objs.AddPoint(Free(1), Free(0), Free(0))
	k := objs.AddParameter(Fixed(0))
	p, err := NewProblem(&objs, []Constraint{Distance(a, b, Div(Const(1), Param(k)))})
	if err != nil {
		t.Fatal(err)
	}
	_, err = Solve(context.Background(), p, SolveOptions{})
	if !errors.Is(err, ErrEvaluation) {
		t.Errorf("got error %v, want ErrEvaluation", err)
	}
}

func TestSolveDoesNotModifyObjects(t *testing.T) {
	objs, pt, _, c := circleScene()
	before := objs.Clone()
	p, err := NewProblem(objs, []Constraint{PointOnCircle(pt, c)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Solve(context.Background(), p, SolveOptions{}); err != nil {
		t.Fatal(err)
	}
	diff(t, before.parameters, objs.parameters)
}

func TestParseMethod(t *testing.T) {
	for _, m := range methods {
		got, err := ParseMethod(m.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != m {
			t.Errorf("got %v, want %v", got, m)
		}
	}
	if _, err := ParseMethod("newton"); err == nil {
		t.Error("parsing an unknown method succeeded")
	}
}
