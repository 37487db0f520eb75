package main

import (
	"math"

	"honnef.co/go/sketch"
	"honnef.co/go/sketch/worker"
)

// demoScene builds the demo sketch:
//
//   - a fixed triangle, tilted out of the XY plane
//   - a circle around a fixed origin whose free radius follows a driver point
//     moving on a circle of radius 2 around (0, 0, 0)
//   - a free point held on the line through one of the triangle's edges
//   - a free point kept at distance 1 from the driver
func demoScene() worker.Scene {
	var objs sketch.Objects
	fixed := func(x, y, z float64) sketch.PointID {
		return objs.AddPoint(sketch.Fixed(x), sketch.Fixed(y), sketch.Fixed(z))
	}
	free := func(x, y, z float64) sketch.PointID {
		return objs.AddPoint(sketch.Free(x), sketch.Free(y), sketch.Free(z))
	}
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	a := fixed(0, -1, -2)
	b := fixed(-1, 1, -1)
	c := fixed(1, 1, -1)
	_, err := objs.AddSegment(a, b)
	must(err)
	bc, err := objs.AddSegment(b, c)
	must(err)
	_, err = objs.AddSegment(c, a)
	must(err)

	origin := fixed(-3, 3, -3)
	circle, err := objs.AddCircle(origin, sketch.Free(0.5))
	must(err)
	driver := fixed(0, 2, 0)
	onLine := free(0.5, 0.5, 0)
	follower := free(3, 0, 0)

	d, err := objs.Point(driver)
	must(err)

	return worker.Scene{
		Objects: &objs,
		Constraints: []sketch.Constraint{
			sketch.PointOnCircle(driver, circle),
			sketch.PointOnLine(onLine, bc),
			sketch.Distance(follower, driver, sketch.Const(1)),
		},
		Animate: func(objs *sketch.Objects, t float64) error {
			sin, cos := math.Sincos(t)
			if err := objs.SetParameter(d.X, 2*sin); err != nil {
				return err
			}
			return objs.SetParameter(d.Y, 2*cos)
		},
	}
}
