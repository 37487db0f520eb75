package sketch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func diff(t *testing.T, want, got any, opts ...cmp.Option) {
	t.Helper()
	if d := cmp.Diff(want, got, opts...); d != "" {
		t.Error(d)
	}
}

// circleScene builds the canonical test sketch: a locked origin at (0, 0,
// 0), a free circle around it with radius 25, and a free point at (-50, 0,
// 0).
func circleScene() (objs *Objects, pt PointID, origin PointID, c CircleID) {
	objs = &Objects{}
	origin = objs.AddPoint(Fixed(0), Fixed(0), Fixed(0))
	pt = objs.AddPoint(Free(-50), Free(0), Free(0))
	c, err := objs.AddCircle(origin, Free(25))
	if err != nil {
		panic(err)
	}
	return objs, pt, origin, c
}
