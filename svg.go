package sketch

import (
	"fmt"
	"io"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
)

type PathElementKind int

const (
	// Move directly to the point without drawing anything, starting a new
	// subpath.
	MoveToKind PathElementKind = iota + 1
	// Draw a line from the current location to the point.
	LineToKind
	// Draw a cubic bezier using the current location and the three points.
	CubicToKind
	// Close off the path.
	ClosePathKind
)

// PathElement is a drawing command of a 2D Bézier path, in view
// coordinates.
//
// A valid path has MoveTo at the beginning of each subpath.
type PathElement struct {
	Kind PathElementKind
	P0   Vec2
	P1   Vec2
	P2   Vec2
}

func MoveTo(pt Vec2) PathElement {
	return PathElement{Kind: MoveToKind, P0: pt}
}

func LineTo(pt Vec2) PathElement {
	return PathElement{Kind: LineToKind, P0: pt}
}

func CubicTo(p0, p1, p2 Vec2) PathElement {
	return PathElement{Kind: CubicToKind, P0: p0, P1: p1, P2: p2}
}

func ClosePath() PathElement {
	return PathElement{Kind: ClosePathKind}
}

// PathElements returns the outline of the shape, projected orthographically
// onto the XY plane and then mapped through view.
//
// Circles are approximated with cubic Béziers to within tolerance, measured
// in view units. The radius is scaled by the view's scale factor, so view
// should scale uniformly. Point shapes have no outline and produce no
// elements; see [WriteSVG] for how they are drawn.
func (s Shape) PathElements(view Affine, tolerance float64) iter.Seq[PathElement] {
	switch s.Kind {
	case LineShape:
		return func(yield func(PathElement) bool) {
			_ = yield(MoveTo(s.P0.XY().Transform(view))) &&
				yield(LineTo(s.P1.XY().Transform(view)))
		}
	case CircleShape, SphereShape:
		return slices.Values(appendCircle(nil, s.P0.XY().Transform(view), s.Radius*view.scaleFactor(), tolerance))
	default:
		return func(func(PathElement) bool) {}
	}
}

// circleSubdivision returns the number of cubic arcs needed to approximate
// a circle of the given radius to within tolerance, and the length of their
// control arms relative to the radius.
func circleSubdivision(radius, tolerance float64) (n int, arm float64) {
	e := math.Abs(radius) / tolerance
	if e < 1/1.9608e-4 {
		// http://spencermortensen.com/articles/bezier-circle/
		return 4, 0.551915024494
	}
	n = int(math.Ceil(math.Pow(1.1163*e, 1.0/6)))
	return n, 4.0 / 3 * math.Tan(math.Pi/2/float64(n))
}

// appendCircle appends a closed, counter-clockwise path approximating the
// circle to dst. Every arc starts and ends on the circle, with its control
// points on the tangents at either end.
func appendCircle(dst []PathElement, center Vec2, radius, tolerance float64) []PathElement {
	n, arm := circleSubdivision(radius, tolerance)
	// at returns the i-th arc boundary and the scaled tangent there.
	at := func(i int) (pt, tangent Vec2) {
		sin, cos := 0.0, 1.0
		if i%n != 0 {
			sin, cos = math.Sincos(2 * math.Pi * float64(i) / float64(n))
		}
		pt = V2(center.X+radius*cos, center.Y+radius*sin)
		return pt, V2(-radius*arm*sin, radius*arm*cos)
	}
	p0, t0 := at(0)
	dst = append(dst, MoveTo(p0))
	for i := 1; i <= n; i++ {
		p1, t1 := at(i)
		dst = append(dst, CubicTo(p0.Add(t0), p1.Sub(t1), p1))
		p0, t0 = p1, t1
	}
	return append(dst, ClosePath())
}

// SVGOptions specifies optional settings for [WriteSVG].
type SVGOptions struct {
	// View maps the XY plane to SVG user units. The zero value is treated
	// as [FlipY], so that y points up like in the sketch.
	View Affine
	// Tolerance for approximating circles, in SVG user units. Defaults to
	// 0.01.
	Tolerance float64
	// PointRadius is the radius of the dot drawn for point shapes, in SVG
	// user units. Defaults to 0.05.
	PointRadius float64
	// StrokeWidth defaults to 0.02.
	StrokeWidth float64
	// Padding is added around the shapes' bounding box to form the view box.
	Padding float64
	// The maximum precision with which to format coordinates. A value of 0
	// chooses the highest precision necessary to unambiguously represent any
	// given coordinate.
	MaxPrecision int
}

func (opts SVGOptions) withDefaults() SVGOptions {
	if opts.View == (Affine{}) {
		opts.View = FlipY
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 0.01
	}
	if opts.PointRadius <= 0 {
		opts.PointRadius = 0.05
	}
	if opts.StrokeWidth <= 0 {
		opts.StrokeWidth = 0.02
	}
	return opts
}

// WriteSVG writes a standalone SVG document drawing shapes, as a
// top-down orthographic view of the XY plane. Each shape becomes one path
// element carrying the shape's ID in a data-id attribute. Lines and circles
// are stroked, points are drawn as filled dots.
//
// The output only depends on the shapes and options, so projecting the same
// sketch twice produces identical documents.
func WriteSVG(w io.Writer, shapes []Shape, opts SVGOptions) error {
	opts = opts.withDefaults()

	paths := make([][]PathElement, len(shapes))
	bbox := emptyRect
	for i, s := range shapes {
		if s.Kind == PointShape {
			paths[i] = appendCircle(nil, s.P0.XY().Transform(opts.View), opts.PointRadius, opts.Tolerance)
		} else {
			paths[i] = slices.Collect(s.PathElements(opts.View, opts.Tolerance))
		}
		bbox = bbox.Union(BoundingBox(paths[i]))
	}
	if bbox.IsInf() {
		bbox = Rect{}
	}
	bbox = bbox.Inflate(opts.Padding, opts.Padding)

	format := formatter(opts.MaxPrecision)
	var err error
	writef := func(s string, v ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, s, v...)
	}
	writef(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="%s %s %s %s">`+"\n",
		format(bbox.X0), format(bbox.Y0), format(bbox.Width()), format(bbox.Height()))
	for i, s := range shapes {
		paint := fmt.Sprintf(`fill="none" stroke="black" stroke-width="%s"`, format(opts.StrokeWidth))
		if s.Kind == PointShape {
			paint = `fill="black"`
		}
		var d strings.Builder
		if err := writePathData(&d, paths[i], format); err != nil {
			return err
		}
		writef(`<path data-id="%d" d="%s" %s/>`+"\n", s.ID, d.String(), paint)
	}
	writef("</svg>\n")
	return err
}

func (el PathElement) points() []Vec2 {
	switch el.Kind {
	case MoveToKind, LineToKind:
		return []Vec2{el.P0}
	case CubicToKind:
		return []Vec2{el.P0, el.P1, el.P2}
	default:
		return nil
	}
}

func formatter(maxPrec int) func(float64) string {
	return func(n float64) string {
		if n == 0 {
			// Turn negative zero, as produced by flipping the y axis, into 0.
			n = 0
		}
		if maxPrec <= 0 {
			return strconv.FormatFloat(n, 'f', -1, 64)
		} else {
			s := strconv.FormatFloat(n, 'f', maxPrec, 64)
			s = strings.TrimRight(s, "0")
			s = strings.TrimSuffix(s, ".")
			if s == "-0" {
				// Tiny negative values round to zero.
				s = "0"
			}
			return s
		}
	}
}

// writePathData converts path elements to SVG path commands.
func writePathData(w io.Writer, els []PathElement, format func(float64) string) error {
	var err error
	writef := func(s string, v ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, s, v...)
	}
	for i, el := range els {
		if i > 0 {
			writef(" ")
		}
		switch el.Kind {
		case MoveToKind:
			writef("M%s,%s", format(el.P0.X), format(el.P0.Y))
		case LineToKind:
			writef("L%s,%s", format(el.P0.X), format(el.P0.Y))
		case CubicToKind:
			writef("C%s,%s %s,%s %s,%s",
				format(el.P0.X), format(el.P0.Y),
				format(el.P1.X), format(el.P1.Y),
				format(el.P2.X), format(el.P2.Y))
		case ClosePathKind:
			writef("Z")
		default:
			panic("unreachable")
		}
	}
	return err
}
