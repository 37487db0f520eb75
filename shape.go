package sketch

import "fmt"

type ShapeKind int

const (
	PointShape ShapeKind = iota + 1
	LineShape
	CircleShape
	// SphereShape is reserved for volumetric entities. [Project] doesn't
	// produce it yet.
	SphereShape
)

func (k ShapeKind) String() string {
	switch k {
	case PointShape:
		return "Point"
	case LineShape:
		return "Line"
	case CircleShape:
		return "Circle"
	case SphereShape:
		return "Sphere"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// Shape is a fully determined piece of geometry, ready for rendering. Which
// fields are meaningful depends on Kind:
//
//   - PointShape: P0
//   - LineShape: P0, P1
//   - CircleShape, SphereShape: P0 (the origin), Radius
type Shape struct {
	// ID identifies the entity the shape was projected from. It is stable
	// across additions to the sketch; see [Project].
	ID     int
	Kind   ShapeKind
	P0     Point3
	P1     Point3
	Radius float64
}

func (s Shape) String() string {
	switch s.Kind {
	case PointShape:
		return fmt.Sprintf("#%d Point%v", s.ID, s.P0)
	case LineShape:
		return fmt.Sprintf("#%d Line%v%v", s.ID, s.P0, s.P1)
	case CircleShape, SphereShape:
		return fmt.Sprintf("#%d %s%v r=%g", s.ID, s.Kind, s.P0, s.Radius)
	default:
		return fmt.Sprintf("#%d %s", s.ID, s.Kind)
	}
}

// Shape ids interleave the id spaces of the projected entity kinds.
const (
	segmentShapeID = iota
	circleShapeID
	pointShapeID
	numShapeIDKinds
)

// Project resolves every entity of objs to concrete geometry, using the
// parameters' current values.
//
// Shapes are returned in a fixed order: one line per segment, then one
// circle per circle, each in id order, then a point marker for every point
// that isn't an endpoint of a segment or the origin of a circle, also in id
// order.
//
// A shape's ID is 3i for segment i, 3i+1 for circle i, and 3i+2 for point i,
// so ids don't change when entities are added.
func Project(objs *Objects) []Shape {
	shapes := make([]Shape, 0, len(objs.segments)+len(objs.circles)+len(objs.points))
	referenced := make([]bool, len(objs.points))
	// Entities can only be added with valid references, so lookups can't
	// fail.
	coord := func(id PointID) Point3 {
		pt, err := objs.Coord(id)
		if err != nil {
			panic(fmt.Sprintf("internal error: %s", err))
		}
		referenced[id] = true
		return pt
	}

	for i, seg := range objs.segments {
		shapes = append(shapes, Shape{
			ID:   i*numShapeIDKinds + segmentShapeID,
			Kind: LineShape,
			P0:   coord(seg.A),
			P1:   coord(seg.B),
		})
	}
	for i, c := range objs.circles {
		shapes = append(shapes, Shape{
			ID:     i*numShapeIDKinds + circleShapeID,
			Kind:   CircleShape,
			P0:     coord(c.Origin),
			Radius: objs.parameters[c.Radius].Value,
		})
	}
	for i := range objs.points {
		if referenced[i] {
			continue
		}
		shapes = append(shapes, Shape{
			ID:   i*numShapeIDKinds + pointShapeID,
			Kind: PointShape,
			P0:   coord(PointID(i)),
		})
	}
	return shapes
}
