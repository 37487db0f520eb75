package sketch

import "fmt"

type ConstraintKind int

const (
	PointOnCircleKind ConstraintKind = iota + 1
	PointOnLineKind
	DistanceKind
)

func (k ConstraintKind) String() string {
	switch k {
	case PointOnCircleKind:
		return "PointOnCircle"
	case PointOnLineKind:
		return "PointOnLine"
	case DistanceKind:
		return "Distance"
	default:
		return fmt.Sprintf("ConstraintKind(%d)", int(k))
	}
}

// Constraint is a geometric relation between entities. Which fields are
// meaningful depends on Kind:
//
//   - PointOnCircleKind: Point, Circle
//   - PointOnLineKind: Point, Segment
//   - DistanceKind: Point, Other, Target
//
// Use the constructor functions rather than filling in the struct by hand.
type Constraint struct {
	Kind    ConstraintKind
	Point   PointID
	Other   PointID
	Segment SegmentID
	Circle  CircleID
	Target  Expr
}

// PointOnCircle constrains pt to lie on the boundary of c, that is, its
// distance from the circle's origin equals the radius.
func PointOnCircle(pt PointID, c CircleID) Constraint {
	return Constraint{Kind: PointOnCircleKind, Point: pt, Circle: c}
}

// PointOnLine constrains pt to lie on the infinite line through the
// endpoints of seg.
func PointOnLine(pt PointID, seg SegmentID) Constraint {
	return Constraint{Kind: PointOnLineKind, Point: pt, Segment: seg}
}

// Distance constrains the euclidean distance between a and b to equal
// target.
func Distance(a, b PointID, target Expr) Constraint {
	return Constraint{Kind: DistanceKind, Point: a, Other: b, Target: target}
}

func (c Constraint) String() string {
	switch c.Kind {
	case PointOnCircleKind:
		return fmt.Sprintf("PointOnCircle(point %d, circle %d)", c.Point, c.Circle)
	case PointOnLineKind:
		return fmt.Sprintf("PointOnLine(point %d, segment %d)", c.Point, c.Segment)
	case DistanceKind:
		return fmt.Sprintf("Distance(point %d, point %d, %v)", c.Point, c.Other, c.Target)
	default:
		return c.Kind.String()
	}
}
