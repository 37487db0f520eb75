// Package sketch implements a parametric 2D/3D sketch solver. Given
// geometric entities whose coordinates are parameters, and constraints
// relating those entities, it computes parameter values that satisfy the
// constraints as closely as possible.
//
// # Parameters and entities
//
// All scalar values of a sketch live in a single pool of parameters, owned
// by [Objects]. Each [Parameter] is either free, in which case the solver
// may change it, or locked, in which case it is an input that the solver
// only reads.
//
// Entities don't hold values. A [Point] refers to the three parameters
// holding its coordinates, a [Segment] refers to two points, and a [Circle]
// refers to a point for its origin and a parameter for its radius. All
// references are typed integer ids ([ParameterID], [PointID], [SegmentID],
// [CircleID]) into append-only arenas. Ids are assigned in call order,
// starting at zero, and never change.
//
// # Constraints
//
// The package supports the following constraints:
//   - [PointOnCircle]: a point lies on a circle's boundary
//   - [PointOnLine]: a point lies on the infinite line through a segment
//   - [Distance]: the distance between two points equals an [Expr]
//
// Each constraint kind has a residual, a signed scalar that is zero when the
// constraint is satisfied, and hand-derived partial derivatives of that
// residual. There is no automatic differentiation and no default: a
// constraint of a kind without formulas is rejected with
// [ErrUnsupportedConstraint] instead of silently contributing nothing.
//
// # Solving
//
// [NewProblem] snapshots a sketch's parameters and constraints and assigns
// every free parameter an index in the vector the optimizer searches.
// [Solve] then minimizes ½‖r‖², where r is the vector of residuals, with
// either Gauss-Newton iterations or steepest descent, until ‖r‖ drops below
// the tolerance. Solving doesn't modify the sketch; [Objects.Apply] commits
// a solution, so that a solve can be attempted speculatively and discarded.
//
//	var objs sketch.Objects
//	origin := objs.AddPoint(sketch.Fixed(0), sketch.Fixed(0), sketch.Fixed(0))
//	pt := objs.AddPoint(sketch.Free(-50), sketch.Free(0), sketch.Free(0))
//	circle, _ := objs.AddCircle(origin, sketch.Free(25))
//
//	p, err := sketch.NewProblem(&objs, []sketch.Constraint{sketch.PointOnCircle(pt, circle)})
//	...
//	sol, err := sketch.Solve(ctx, p, sketch.SolveOptions{})
//	...
//	err = objs.Apply(sol)
//
// # Shapes
//
// [Project] turns a solved sketch into a flat list of [Shape] values, which
// is all a renderer needs. [WriteSVG] draws shapes as a top-down view of the
// XY plane.
//
// # Concurrency
//
// Solving is synchronous and single-threaded. Objects and Problem are not
// safe for concurrent use; to solve on another goroutine, hand it a clone.
// See package honnef.co/go/sketch/worker for a solver that runs on its own
// goroutine and communicates with a renderer over channels.
package sketch
