package sketch

import "fmt"

// env resolves parameter values for a single evaluation. Locked parameters
// read their stored value, free parameters the candidate.
type env struct {
	params []Parameter
	// x is the candidate, indexed by parameter id.
	x []float64
}

func (e env) value(id ParameterID) float64 {
	if p := e.params[id]; p.Locked {
		return p.Value
	}
	return e.x[id]
}

func (e env) point(ids [3]ParameterID) Point3 {
	return Point3{X: e.value(ids[0]), Y: e.value(ids[1]), Z: e.value(ids[2])}
}

// anyFree reports whether any coordinate of the points is free.
func (e env) anyFree(points ...[3]ParameterID) bool {
	for _, ids := range points {
		for _, id := range ids {
			if !e.params[id].Locked {
				return true
			}
		}
	}
	return false
}

// binding maps the roles a formula reads to the parameters playing them. The
// meaning of each slot depends on the constraint kind, see the bind
// functions.
type binding struct {
	p      [3][3]ParameterID
	r      ParameterID
	target Expr
}

// A formula is the residual of one constraint kind and its partial
// derivatives. The two must be kept in lock-step.
type formula struct {
	bind     func(objs *Objects, c Constraint) (binding, error)
	residual func(e env, b binding) (float64, error)
	// gradient calls add(p, ∂residual/∂p) for every parameter p the residual
	// reads. A parameter playing several roles is reported once per role.
	gradient func(e env, b binding, add func(ParameterID, float64)) error
}

// formulas must have an entry for every ConstraintKind.
var formulas = map[ConstraintKind]formula{
	PointOnCircleKind: {
		bind:     bindPointOnCircle,
		residual: pointOnCircleResidual,
		gradient: pointOnCircleGradient,
	},
	PointOnLineKind: {
		bind:     bindPointOnLine,
		residual: pointOnLineResidual,
		gradient: pointOnLineGradient,
	},
	DistanceKind: {
		bind:     bindDistance,
		residual: distanceResidual,
		gradient: distanceGradient,
	},
}

func lookupFormula(kind ConstraintKind) (formula, error) {
	f, ok := formulas[kind]
	if !ok {
		return formula{}, fmt.Errorf("%w: %s", ErrUnsupportedConstraint, kind)
	}
	return f, nil
}

func pointParams(objs *Objects, id PointID) ([3]ParameterID, error) {
	pt, err := objs.Point(id)
	if err != nil {
		return [3]ParameterID{}, err
	}
	return [3]ParameterID{pt.X, pt.Y, pt.Z}, nil
}

func addVec(add func(ParameterID, float64), ids [3]ParameterID, v Vec3) {
	add(ids[0], v.X)
	add(ids[1], v.Y)
	add(ids[2], v.Z)
}

// PointOnCircle: p[0] is the point, p[1] the circle's origin, r its radius.
//
//	residual = sqrt((x-a)² + (y-b)² + (z-d)²) - r

func bindPointOnCircle(objs *Objects, c Constraint) (binding, error) {
	var b binding
	circle, err := objs.Circle(c.Circle)
	if err != nil {
		return b, err
	}
	if b.p[0], err = pointParams(objs, c.Point); err != nil {
		return b, err
	}
	if b.p[1], err = pointParams(objs, circle.Origin); err != nil {
		return b, err
	}
	b.r = circle.Radius
	return b, nil
}

func pointOnCircleResidual(e env, b binding) (float64, error) {
	return e.point(b.p[0]).Distance(e.point(b.p[1])) - e.value(b.r), nil
}

func pointOnCircleGradient(e env, b binding, add func(ParameterID, float64)) error {
	d := e.point(b.p[0]).Sub(e.point(b.p[1]))
	dist := d.Hypot()
	if dist == 0 {
		if e.anyFree(b.p[0], b.p[1]) {
			return evalErrorf("point coincides with circle origin, derivative is undefined")
		}
		// Only locked columns are undefined, and those are zero.
	} else {
		n := d.Mul(1 / dist)
		addVec(add, b.p[0], n)
		addVec(add, b.p[1], n.Negate())
	}
	add(b.r, -1)
	return nil
}

// PointOnLine: p[0] is the point, p[1] and p[2] the segment's endpoints A
// and B. With w = P-A and u = B-A,
//
//	residual = |w × u| / |u|
//
// which is the distance of P from the infinite line through A and B.

func bindPointOnLine(objs *Objects, c Constraint) (binding, error) {
	var b binding
	seg, err := objs.Segment(c.Segment)
	if err != nil {
		return b, err
	}
	if b.p[0], err = pointParams(objs, c.Point); err != nil {
		return b, err
	}
	if b.p[1], err = pointParams(objs, seg.A); err != nil {
		return b, err
	}
	if b.p[2], err = pointParams(objs, seg.B); err != nil {
		return b, err
	}
	return b, nil
}

func pointOnLineVectors(e env, b binding) (w, u Vec3, l float64, err error) {
	p, pa, pb := e.point(b.p[0]), e.point(b.p[1]), e.point(b.p[2])
	u = pb.Sub(pa)
	w = p.Sub(pa)
	l = u.Hypot()
	if l == 0 {
		return w, u, l, evalErrorf("segment endpoints coincide, line is undefined")
	}
	return w, u, l, nil
}

func pointOnLineResidual(e env, b binding) (float64, error) {
	w, u, l, err := pointOnLineVectors(e, b)
	if err != nil {
		return 0, err
	}
	return w.Cross(u).Hypot() / l, nil
}

func pointOnLineGradient(e env, b binding, add func(ParameterID, float64)) error {
	w, u, l, err := pointOnLineVectors(e, b)
	if err != nil {
		return err
	}
	c := w.Cross(u)
	cl := c.Hypot()
	// On the line, the distance has a kink; use the zero subgradient.
	var cn Vec3
	if cl > 0 {
		cn = c.Mul(1 / cl)
	}
	// ∂f/∂w = (u × ĉ) / |u|
	// ∂f/∂u = (ĉ × w) / |u| - |c| u / |u|³
	dw := u.Cross(cn).Mul(1 / l)
	du := cn.Cross(w).Mul(1 / l).Sub(u.Mul(cl / (l * l * l)))
	addVec(add, b.p[0], dw)
	addVec(add, b.p[1], dw.Add(du).Negate())
	addVec(add, b.p[2], du)
	return nil
}

// Distance: p[0] and p[1] are the two points.
//
//	residual = |P - Q| - target

func bindDistance(objs *Objects, c Constraint) (binding, error) {
	var b binding
	var err error
	if c.Target == nil {
		return b, evalErrorf("distance constraint has no target")
	}
	if err := checkExpr(c.Target); err != nil {
		return b, err
	}
	if b.p[0], err = pointParams(objs, c.Point); err != nil {
		return b, err
	}
	if b.p[1], err = pointParams(objs, c.Other); err != nil {
		return b, err
	}
	c.Target.refs(func(id ParameterID) {
		if err != nil {
			return
		}
		_, err = objs.Parameter(id)
	})
	if err != nil {
		return b, err
	}
	b.target = c.Target
	return b, nil
}

func distanceResidual(e env, b binding) (float64, error) {
	t, err := b.target.eval(e)
	if err != nil {
		return 0, err
	}
	return e.point(b.p[0]).Distance(e.point(b.p[1])) - t, nil
}

func distanceGradient(e env, b binding, add func(ParameterID, float64)) error {
	d := e.point(b.p[0]).Sub(e.point(b.p[1]))
	dist := d.Hypot()
	if dist == 0 {
		if e.anyFree(b.p[0], b.p[1]) {
			return evalErrorf("points coincide, derivative is undefined")
		}
	} else {
		n := d.Mul(1 / dist)
		addVec(add, b.p[0], n)
		addVec(add, b.p[1], n.Negate())
	}
	return b.target.deriv(e, -1, add)
}
