package sketch

import (
	"testing"
)

func TestBoundingBox(t *testing.T) {
	els := []PathElement{
		MoveTo(V2(1, 2)),
		LineTo(V2(-3, 4)),
		CubicTo(V2(0, 10), V2(5, -1), V2(2, 2)),
		ClosePath(),
	}
	got := BoundingBox(els)
	diff(t, Rect{X0: -3, Y0: -1, X1: 5, Y1: 10}, got)
	if w, h := got.Width(), got.Height(); w != 8 || h != 11 {
		t.Errorf("got size %gx%g, want 8x11", w, h)
	}
	diff(t, Rect{X0: -4, Y0: -2, X1: 6, Y1: 11}, got.Inflate(1, 1))
}

func TestBoundingBoxEmpty(t *testing.T) {
	if r := BoundingBox(nil); !r.IsInf() {
		t.Errorf("got %v, want an infinite rectangle", r)
	}
	if r := BoundingBox([]PathElement{ClosePath()}); !r.IsInf() {
		t.Errorf("got %v, want an infinite rectangle", r)
	}
}

func TestRectUnionWithEmpty(t *testing.T) {
	r := Rect{X0: 1, Y0: 2, X1: 3, Y1: 4}
	diff(t, r, emptyRect.Union(r))
	diff(t, r, r.Union(emptyRect))
}
