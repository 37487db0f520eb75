package sketch

import (
	"fmt"
	"slices"
)

// Parameter is a single scalar degree of freedom.
type Parameter struct {
	// Value is the parameter's current value. For free parameters, it is the
	// initial guess of the next solve.
	Value float64
	// Locked parameters are inputs. The solver reads them but never changes
	// them, for example because a user has overridden the value or because
	// the sketch is being evaluated with the parameter given as an input.
	Locked bool
}

// Free returns an unlocked parameter with initial value v.
func Free(v float64) Parameter { return Parameter{Value: v} }

// Fixed returns a locked parameter with value v.
func Fixed(v float64) Parameter { return Parameter{Value: v, Locked: true} }

func (p Parameter) String() string {
	if p.Locked {
		return fmt.Sprintf("fixed(%g)", p.Value)
	}
	return fmt.Sprintf("free(%g)", p.Value)
}

type (
	ParameterID int
	PointID     int
	SegmentID   int
	CircleID    int
)

// Point is a point entity. It owns no values, only references to the three
// parameters holding its coordinates.
type Point struct {
	X ParameterID
	Y ParameterID
	Z ParameterID
}

// Segment is a line segment between two points. A segment whose endpoints
// are the same point is allowed, but geometrically meaningless.
type Segment struct {
	A PointID
	B PointID
}

type Circle struct {
	Origin PointID
	Radius ParameterID
}

// Objects is the entity graph: an append-only arena of parameters, points,
// segments, and circles. Ids are dense, start at zero, and are assigned in
// call order, separately for each kind. Once assigned, an id is never reused
// or renumbered.
//
// The zero value is an empty Objects ready for use.
//
// Objects is not safe for concurrent use. To hand a sketch to another
// goroutine, give it a [Objects.Clone].
type Objects struct {
	parameters []Parameter
	points     []Point
	segments   []Segment
	circles    []Circle
}

// Clone returns a deep copy of objs.
func (objs *Objects) Clone() *Objects {
	return &Objects{
		parameters: slices.Clone(objs.parameters),
		points:     slices.Clone(objs.points),
		segments:   slices.Clone(objs.segments),
		circles:    slices.Clone(objs.circles),
	}
}

func (objs *Objects) NumParameters() int { return len(objs.parameters) }
func (objs *Objects) NumPoints() int     { return len(objs.points) }
func (objs *Objects) NumSegments() int   { return len(objs.segments) }
func (objs *Objects) NumCircles() int    { return len(objs.circles) }

// AddParameter appends p and returns its id.
func (objs *Objects) AddParameter(p Parameter) ParameterID {
	objs.parameters = append(objs.parameters, p)
	return ParameterID(len(objs.parameters) - 1)
}

// AddPoint allocates three parameters, in x, y, z order, and a point
// referring to them.
func (objs *Objects) AddPoint(x, y, z Parameter) PointID {
	objs.points = append(objs.points, Point{
		X: objs.AddParameter(x),
		Y: objs.AddParameter(y),
		Z: objs.AddParameter(z),
	})
	return PointID(len(objs.points) - 1)
}

// AddSegment adds a segment between two existing points.
func (objs *Objects) AddSegment(a, b PointID) (SegmentID, error) {
	if _, err := objs.Point(a); err != nil {
		return 0, err
	}
	if _, err := objs.Point(b); err != nil {
		return 0, err
	}
	objs.segments = append(objs.segments, Segment{A: a, B: b})
	return SegmentID(len(objs.segments) - 1), nil
}

// AddCircle adds a circle around an existing point, allocating a parameter
// for its radius. If origin doesn't exist, no parameter is allocated.
func (objs *Objects) AddCircle(origin PointID, radius Parameter) (CircleID, error) {
	if _, err := objs.Point(origin); err != nil {
		return 0, err
	}
	objs.circles = append(objs.circles, Circle{
		Origin: origin,
		Radius: objs.AddParameter(radius),
	})
	return CircleID(len(objs.circles) - 1), nil
}

func (objs *Objects) Parameter(id ParameterID) (Parameter, error) {
	if id < 0 || int(id) >= len(objs.parameters) {
		return Parameter{}, &NotFoundError{Entity: "parameter", ID: int(id)}
	}
	return objs.parameters[id], nil
}

func (objs *Objects) Point(id PointID) (Point, error) {
	if id < 0 || int(id) >= len(objs.points) {
		return Point{}, &NotFoundError{Entity: "point", ID: int(id)}
	}
	return objs.points[id], nil
}

func (objs *Objects) Segment(id SegmentID) (Segment, error) {
	if id < 0 || int(id) >= len(objs.segments) {
		return Segment{}, &NotFoundError{Entity: "segment", ID: int(id)}
	}
	return objs.segments[id], nil
}

func (objs *Objects) Circle(id CircleID) (Circle, error) {
	if id < 0 || int(id) >= len(objs.circles) {
		return Circle{}, &NotFoundError{Entity: "circle", ID: int(id)}
	}
	return objs.circles[id], nil
}

// Coord resolves a point's current coordinates.
func (objs *Objects) Coord(id PointID) (Point3, error) {
	pt, err := objs.Point(id)
	if err != nil {
		return Point3{}, err
	}
	// Point parameters are allocated by AddPoint, so they always exist.
	return Point3{
		X: objs.parameters[pt.X].Value,
		Y: objs.parameters[pt.Y].Value,
		Z: objs.parameters[pt.Z].Value,
	}, nil
}

// SetParameter changes a parameter's value without changing whether it is
// locked.
func (objs *Objects) SetParameter(id ParameterID, v float64) error {
	if _, err := objs.Parameter(id); err != nil {
		return err
	}
	objs.parameters[id].Value = v
	return nil
}

// Lock locks or unlocks a parameter.
func (objs *Objects) Lock(id ParameterID, locked bool) error {
	if _, err := objs.Parameter(id); err != nil {
		return err
	}
	objs.parameters[id].Locked = locked
	return nil
}

// Apply commits a solution, copying the solved value of every free
// parameter into objs. Locked parameters are left untouched.
//
// The solution must have been computed for a [Problem] built from objs, or
// from a clone of it that hasn't had parameters added since.
func (objs *Objects) Apply(sol Solution) error {
	if len(sol.X) != len(objs.parameters) {
		return fmt.Errorf("solution has %d parameters, objects have %d", len(sol.X), len(objs.parameters))
	}
	for i := range objs.parameters {
		if !objs.parameters[i].Locked {
			objs.parameters[i].Value = sol.X[i]
		}
	}
	return nil
}
