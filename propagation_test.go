package v2vsim

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func strip(id int64, minX, minY, maxX, maxY float64) *Building {
	return NewBuilding(id, orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}})
}

func TestPairsAreNLOS(t *testing.T) {
	points := []orb.Point{{0, 0}, {100, 0}, {200, 0}}
	buildings := NewBuildings(strip(1, 40, -5, 60, 5))

	nlos := PairsAreNLOS(points, buildings, 0)
	expected := []bool{true, true, false}
	if len(nlos) != len(expected) {
		t.Errorf("Expected %d condensed pairs, but got %d", len(expected), len(nlos))
		return
	}
	for k := range expected {
		if nlos[k] != expected[k] {
			i, j := condensedPair(k, len(points))
			t.Errorf("Pair (%d,%d) NLOS flag must be %t, but got %t", i, j, expected[k], nlos[k])
		}
	}
}

func TestPairsAreNLOSCutoff(t *testing.T) {
	points := []orb.Point{{0, 0}, {100, 0}, {200, 0}}
	buildings := NewBuildings()

	// Pair (0,2) is 200 m apart: beyond the cutoff it counts as NLOS even
	// with no building in between
	nlos := PairsAreNLOS(points, buildings, 150)
	expected := []bool{false, true, false}
	for k := range expected {
		if nlos[k] != expected[k] {
			i, j := condensedPair(k, len(points))
			t.Errorf("Pair (%d,%d) NLOS flag must be %t, but got %t", i, j, expected[k], nlos[k])
		}
	}
}

func TestVehiclesAreNLOS(t *testing.T) {
	center := orb.Point{0, 0}
	others := []orb.Point{{100, 0}, {0, 100}}
	buildings := NewBuildings(strip(1, 40, -5, 60, 5))

	nlos := VehiclesAreNLOS(center, others, buildings)
	if !nlos[0] {
		t.Errorf("Sightline through a building must be NLOS")
	}
	if nlos[1] {
		t.Errorf("Unobstructed sightline must not be NLOS")
	}
}

func TestVehiclesAreOLOS(t *testing.T) {
	center := orb.Point{0, 0}
	others := []orb.Point{{100, 0}, {100, 50}}
	// Building just below the first sightline: the direct segment stays clear
	// but the 2 m inflated corridor grazes it
	buildings := NewBuildings(strip(1, 40, -4, 60, -1))

	nlos := VehiclesAreNLOS(center, others, buildings)
	if nlos[0] || nlos[1] {
		t.Errorf("Neither sightline crosses the building directly: %v", nlos)
	}

	olos := VehiclesAreOLOS(center, others, buildings, 2.0)
	if !olos[0] {
		t.Errorf("Grazing sightline must be OLOS")
	}
	if olos[1] {
		t.Errorf("Clear sightline must be LOS")
	}
}

// cornerNetwork builds an L-shaped street pair with a building blocking the
// diagonal between the open endpoints
func cornerNetwork(t *testing.T) (*StreetGraph, *Buildings, *WaveRouter) {
	graph := NewStreetGraph()
	graph.AddIntersection(1, orb.Point{0, 0})
	graph.AddIntersection(2, orb.Point{100, 0})
	graph.AddIntersection(3, orb.Point{100, 100})
	graph.AddStreet(&Street{ID: 0, Source: 1, Target: 2, Geom: orb.LineString{{0, 0}, {100, 0}}, LengthMeters: 100})
	graph.AddStreet(&Street{ID: 1, Source: 2, Target: 3, Geom: orb.LineString{{100, 0}, {100, 100}}, LengthMeters: 100})

	buildings := NewBuildings(strip(1, 55, 35, 85, 65))

	wave := BuildWaveGraph(graph, buildings, 250)
	router, err := wave.Router()
	if err != nil {
		t.Fatal(err)
	}
	return graph, buildings, router
}

func TestClassifyNLOSLinksOrthogonal(t *testing.T) {
	_, _, router := cornerNetwork(t)

	center := &VehicleGraph{
		Index: 0, Point: orb.Point{50, 0},
		SourceNode: 1, TargetNode: 2,
		ToSourceLength: 50, ToTargetLength: 50,
	}
	other := &VehicleGraph{
		Index: 1, Point: orb.Point{100, 50},
		SourceNode: 2, TargetNode: 3,
		ToSourceLength: 50, ToTargetLength: 50,
	}

	paths, err := ClassifyNLOSLinks(router, center, []*VehicleGraph{other}, math.Pi/4)
	if err != nil {
		t.Error(err)
		return
	}
	path := paths[0]
	if !path.Reachable {
		t.Errorf("Vehicles on connected streets must be reachable")
	}
	if !path.Orthogonal {
		t.Errorf("Route bending 90 degrees at the intersection must be orthogonal, turn angle was %f", path.TurnAngle)
	}
	if path.Corner != (orb.Point{100, 0}) {
		t.Errorf("Diffraction corner must be the shared intersection, but got %v", path.Corner)
	}
	if math.Abs(path.TurnAngle-math.Pi/2) > 1e-9 {
		t.Errorf("Turn angle must be pi/2, but got %f", path.TurnAngle)
	}
	if math.Abs(path.RouteLength-100) > 1e-9 {
		t.Errorf("Best route length must be 100, but got %f", path.RouteLength)
	}
}

func TestClassifyNLOSLinksParallel(t *testing.T) {
	graph := NewStreetGraph()
	graph.AddIntersection(1, orb.Point{0, 0})
	graph.AddIntersection(2, orb.Point{300, 0})
	graph.AddStreet(&Street{ID: 0, Source: 1, Target: 2, Geom: orb.LineString{{0, 0}, {300, 0}}, LengthMeters: 300})

	// The building sits on the street itself, so the only route around it
	// doubles back through an endpoint
	buildings := NewBuildings(strip(1, 95, -5, 105, 5))
	wave := BuildWaveGraph(graph, buildings, 250)
	router, err := wave.Router()
	if err != nil {
		t.Fatal(err)
	}

	center := &VehicleGraph{
		Index: 0, Point: orb.Point{50, 0},
		SourceNode: 1, TargetNode: 2,
		ToSourceLength: 50, ToTargetLength: 250,
	}
	other := &VehicleGraph{
		Index: 1, Point: orb.Point{250, 0},
		SourceNode: 1, TargetNode: 2,
		ToSourceLength: 250, ToTargetLength: 50,
	}

	paths, err := ClassifyNLOSLinks(router, center, []*VehicleGraph{other}, math.Pi/4)
	if err != nil {
		t.Error(err)
		return
	}
	path := paths[0]
	if !path.Reachable {
		t.Errorf("Vehicles on the same street must be reachable")
	}
	if path.Orthogonal {
		t.Errorf("A doubled-back route must be parallel, turn angle was %f", path.TurnAngle)
	}
}

func TestClassifyNLOSLinksUnreachable(t *testing.T) {
	graph := NewStreetGraph()
	graph.AddIntersection(1, orb.Point{0, 0})
	graph.AddIntersection(2, orb.Point{100, 0})
	graph.AddIntersection(3, orb.Point{1000, 1000})
	graph.AddIntersection(4, orb.Point{1100, 1000})
	graph.AddStreet(&Street{ID: 0, Source: 1, Target: 2, Geom: orb.LineString{{0, 0}, {100, 0}}, LengthMeters: 100})
	graph.AddStreet(&Street{ID: 1, Source: 3, Target: 4, Geom: orb.LineString{{1000, 1000}, {1100, 1000}}, LengthMeters: 100})

	wave := BuildWaveGraph(graph, NewBuildings(), 250)
	router, err := wave.Router()
	if err != nil {
		t.Fatal(err)
	}

	center := &VehicleGraph{
		Index: 0, Point: orb.Point{50, 0},
		SourceNode: 1, TargetNode: 2,
		ToSourceLength: 50, ToTargetLength: 50,
	}
	other := &VehicleGraph{
		Index: 1, Point: orb.Point{1050, 1000},
		SourceNode: 3, TargetNode: 4,
		ToSourceLength: 50, ToTargetLength: 50,
	}

	paths, err := ClassifyNLOSLinks(router, center, []*VehicleGraph{other}, math.Pi/4)
	if err != nil {
		t.Error(err)
		return
	}
	if paths[0].Reachable {
		t.Errorf("Vehicles on disconnected street components must be unreachable")
	}
	if paths[0].Orthogonal {
		t.Errorf("Unreachable links must be parallel")
	}
}

func TestFindCenterVehicle(t *testing.T) {
	points := []orb.Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {51, 51}}
	if idx := FindCenterVehicle(points); idx != 4 {
		t.Errorf("Vehicle 4 is closest to the centroid, but got %d", idx)
	}

	// the four corners are equidistant to the centroid
	symmetric := []orb.Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}
	if idx := FindCenterVehicle(symmetric); idx != 0 {
		t.Errorf("Centroid ties must break to the lowest index, but got %d", idx)
	}
}
