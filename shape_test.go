package sketch

import (
	"testing"
)

func shapeScene() *Objects {
	var objs Objects
	p0 := objs.AddPoint(Free(0), Free(0), Free(0))
	p1 := objs.AddPoint(Free(1), Free(0), Free(0))
	p2 := objs.AddPoint(Fixed(5), Fixed(5), Fixed(0))
	p3 := objs.AddPoint(Free(7), Free(7), Free(7))
	objs.AddPoint(Free(9), Free(9), Free(9))
	objs.AddSegment(p0, p1)
	objs.AddSegment(p1, p3)
	objs.AddCircle(p2, Free(2))
	return &objs
}

func TestProject(t *testing.T) {
	got := Project(shapeScene())
	want := []Shape{
		{ID: 0, Kind: LineShape, P0: Pt3(0, 0, 0), P1: Pt3(1, 0, 0)},
		{ID: 3, Kind: LineShape, P0: Pt3(1, 0, 0), P1: Pt3(7, 7, 7)},
		{ID: 1, Kind: CircleShape, P0: Pt3(5, 5, 0), Radius: 2},
		{ID: 14, Kind: PointShape, P0: Pt3(9, 9, 9)},
	}
	diff(t, want, got)
}

func TestProjectIDsAreStable(t *testing.T) {
	objs := shapeScene()
	before := Project(objs)

	p5 := objs.AddPoint(Free(-1), Free(-1), Free(0))
	objs.AddCircle(p5, Free(0.5))
	objs.AddPoint(Free(3), Free(2), Free(1))
	after := Project(objs)

	byID := make(map[int]Shape)
	for _, s := range after {
		if _, ok := byID[s.ID]; ok {
			t.Fatalf("duplicate shape id %d", s.ID)
		}
		byID[s.ID] = s
	}
	for _, s := range before {
		diff(t, s, byID[s.ID])
	}
	diff(t, Shape{ID: 4, Kind: CircleShape, P0: Pt3(-1, -1, 0), Radius: 0.5}, byID[4])
	diff(t, Shape{ID: 20, Kind: PointShape, P0: Pt3(3, 2, 1)}, byID[20])
	if _, ok := byID[17]; ok {
		t.Error("circle origin was projected as a point")
	}
}

func TestProjectUsesCurrentValues(t *testing.T) {
	objs := shapeScene()
	if err := objs.SetParameter(0, 0.5); err != nil {
		t.Fatal(err)
	}
	if got := Project(objs)[0].P0; got != Pt3(0.5, 0, 0) {
		t.Errorf("got %v, want (0.5, 0, 0)", got)
	}
}

func TestProjectEmpty(t *testing.T) {
	if got := Project(&Objects{}); len(got) != 0 {
		t.Errorf("got %d shapes, want none", len(got))
	}
}

func TestShapeString(t *testing.T) {
	tests := []struct {
		s    Shape
		want string
	}{
		{Shape{ID: 14, Kind: PointShape, P0: Pt3(9, 9, 9)}, "#14 Point(9, 9, 9)"},
		{Shape{ID: 0, Kind: LineShape, P0: Pt3(0, 0, 0), P1: Pt3(1, 0, 0)}, "#0 Line(0, 0, 0)(1, 0, 0)"},
		{Shape{ID: 1, Kind: CircleShape, P0: Pt3(5, 5, 0), Radius: 2}, "#1 Circle(5, 5, 0) r=2"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}
