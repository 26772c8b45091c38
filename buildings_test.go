package v2vsim

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestBuildingBlocksSegment(t *testing.T) {
	building := strip(1, 40, -5, 60, 5)

	cases := []struct {
		name    string
		p, q    orb.Point
		blocked bool
	}{
		{"through", orb.Point{0, 0}, orb.Point{100, 0}, true},
		{"beside", orb.Point{0, 10}, orb.Point{100, 10}, false},
		{"short of", orb.Point{0, 0}, orb.Point{30, 0}, false},
		{"inside", orb.Point{45, 0}, orb.Point{55, 0}, true},
		{"one end inside", orb.Point{0, 0}, orb.Point{50, 0}, true},
		{"touching the wall", orb.Point{0, 5}, orb.Point{100, 5}, true},
		{"touching a corner", orb.Point{30, 15}, orb.Point{50, -5}, true},
	}
	for _, c := range cases {
		if got := building.BlocksSegment(c.p, c.q); got != c.blocked {
			t.Errorf("Segment %s the building must give blocked=%t, but got %t", c.name, c.blocked, got)
		}
	}
}

func TestBuildingsCollection(t *testing.T) {
	buildings := NewBuildings(strip(1, 0, 0, 10, 10))
	buildings.Add(strip(2, 100, 0, 110, 10))
	if buildings.Count() != 2 {
		t.Errorf("Expected 2 buildings, but got %d", buildings.Count())
	}

	if !buildings.BlocksSegment(orb.Point{-5, 5}, orb.Point{15, 5}) {
		t.Errorf("Segment through the first building must be blocked")
	}
	if !buildings.BlocksSegment(orb.Point{95, 5}, orb.Point{115, 5}) {
		t.Errorf("Segment through the second building must be blocked")
	}
	if buildings.BlocksSegment(orb.Point{-5, 50}, orb.Point{115, 50}) {
		t.Errorf("Segment above both buildings must be clear")
	}
}

func TestBoundaryArea(t *testing.T) {
	boundary := Boundary{Geom: orb.Polygon{orb.Ring{
		{0, 0}, {200, 0}, {200, 100}, {0, 100}, {0, 0},
	}}}
	if area := boundary.Area(); math.Abs(area-20000) > 1e-6 {
		t.Errorf("Boundary area must be 20000 m2, but got %f", area)
	}
}
