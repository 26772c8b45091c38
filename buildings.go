package v2vsim

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Building is an obstacle polygon blocking radio sightlines
type Building struct {
	ID    int64
	Geom  orb.Polygon
	bound orb.Bound
}

func NewBuilding(id int64, geom orb.Polygon) *Building {
	return &Building{
		ID:    id,
		Geom:  geom,
		bound: geom.Bound(),
	}
}

// BlocksSegment reports whether the segment p-q crosses the building.
// A sightline touching the building boundary counts as blocked.
func (building *Building) BlocksSegment(p, q orb.Point) bool {
	segmentBound := orb.MultiPoint{p, q}.Bound()
	if !building.bound.Intersects(segmentBound) {
		return false
	}
	if len(building.Geom) == 0 {
		return false
	}
	// Exterior ring crossings; holes are irrelevant since the wave already
	// passed through the building shell to reach one
	ring := building.Geom[0]
	for i := 1; i < len(ring); i++ {
		if segmentsCross(p, q, ring[i-1], ring[i]) {
			return true
		}
	}
	// Segment fully inside the building
	if planar.PolygonContains(building.Geom, p) || planar.PolygonContains(building.Geom, q) {
		return true
	}
	return false
}

// Buildings is a collection of obstacle polygons
type Buildings struct {
	items []*Building
}

func NewBuildings(items ...*Building) *Buildings {
	return &Buildings{items: items}
}

func (buildings *Buildings) Add(building *Building) {
	buildings.items = append(buildings.items, building)
}

func (buildings *Buildings) Items() []*Building {
	return buildings.items
}

func (buildings *Buildings) Count() int {
	return len(buildings.items)
}

// BlocksSegment reports whether any building blocks the segment p-q
func (buildings *Buildings) BlocksSegment(p, q orb.Point) bool {
	for _, building := range buildings.items {
		if building.BlocksSegment(p, q) {
			return true
		}
	}
	return false
}

// Boundary is the outline polygon of the simulated place
type Boundary struct {
	Geom orb.Polygon
}

// Area returns the boundary area in square meters
func (boundary Boundary) Area() float64 {
	return planar.Area(boundary.Geom)
}
