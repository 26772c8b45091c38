package v2vsim

import (
	"math"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// staticProvider serves a fixed city block: four streets around a square with
// a single building in the middle
type staticProvider struct{}

func (staticProvider) Load(place string) (*MapData, error) {
	graph := NewStreetGraph()
	graph.AddIntersection(1, orb.Point{0, 0})
	graph.AddIntersection(2, orb.Point{200, 0})
	graph.AddIntersection(3, orb.Point{200, 200})
	graph.AddIntersection(4, orb.Point{0, 200})
	graph.AddStreet(&Street{ID: 0, Source: 1, Target: 2, Geom: orb.LineString{{0, 0}, {200, 0}}, LengthMeters: 200})
	graph.AddStreet(&Street{ID: 1, Source: 2, Target: 3, Geom: orb.LineString{{200, 0}, {200, 200}}, LengthMeters: 200})
	graph.AddStreet(&Street{ID: 2, Source: 3, Target: 4, Geom: orb.LineString{{200, 200}, {0, 200}}, LengthMeters: 200})
	graph.AddStreet(&Street{ID: 3, Source: 4, Target: 1, Geom: orb.LineString{{0, 200}, {0, 0}}, LengthMeters: 200})

	buildings := NewBuildings(strip(1, 50, 50, 150, 150))
	boundary := Boundary{Geom: orb.Polygon{orb.Ring{
		{0, 0}, {200, 0}, {200, 200}, {0, 200}, {0, 0},
	}}}
	return &MapData{Streets: graph, Buildings: buildings, Boundary: boundary}, nil
}

func sortedIdxs(t *testing.T, vehicles *Vehicles, label string) []int {
	t.Helper()
	idxs, err := vehicles.GetIdxs(label)
	if err != nil {
		t.Fatal(err)
	}
	sorted := make([]int, len(idxs))
	copy(sorted, idxs)
	sort.Ints(sorted)
	return sorted
}

// checkPartition verifies that the part keys split the expected vehicle set
// without overlap or leftovers
func checkPartition(t *testing.T, vehicles *Vehicles, expected []int, parts ...string) {
	t.Helper()
	var combined []int
	for _, part := range parts {
		combined = append(combined, sortedIdxs(t, vehicles, part)...)
	}
	sort.Ints(combined)
	for i := 1; i < len(combined); i++ {
		if combined[i] == combined[i-1] {
			t.Errorf("Keys %v must be disjoint, but vehicle %d appears twice", parts, combined[i])
			return
		}
	}
	if len(combined) != len(expected) {
		t.Errorf("Keys %v must cover %d vehicles, but got %d", parts, len(expected), len(combined))
		return
	}
	for i := range expected {
		if combined[i] != expected[i] {
			t.Errorf("Keys %v must cover the expected set exactly, but differ at %d", parts, i)
			return
		}
	}
}

func TestPlaceVehiclesDensity(t *testing.T) {
	sim := NewSimulation(staticProvider{}, "block",
		WithDensity(DensityAbsolute, 20),
		WithSeed(5),
	)
	network, err := sim.PrepareNetwork()
	if err != nil {
		t.Error(err)
		return
	}
	if network.Vehicles.Count() != 20 {
		t.Errorf("Absolute density 20 must place 20 vehicles, but got %d", network.Vehicles.Count())
	}
	if network.Wave == nil {
		t.Errorf("Wave propagation graph must be derived when the provider supplies none")
	}
	if area := network.Boundary.Area(); math.Abs(area-40000) > 1e-6 {
		t.Errorf("Boundary area must be 40000 m2, but got %f", area)
	}
}

func TestPlaceVehiclesNegativeDensity(t *testing.T) {
	sim := NewSimulation(staticProvider{}, "block",
		WithDensity(DensityAbsolute, -5),
	)
	if _, err := sim.PrepareNetwork(); !errors.Is(err, ErrInvalidDensity) {
		t.Errorf("Negative density must fail the run with an invalid density error, but got %v", err)
	}
}

func TestRunMultiRatioBounds(t *testing.T) {
	sim := NewSimulation(staticProvider{}, "block",
		WithDensity(DensityAbsolute, 15),
		WithSeed(5),
		WithIterations(4),
	)
	ratios, err := sim.RunMultiSeries()
	if err != nil {
		t.Error(err)
		return
	}
	if len(ratios) != 4 {
		t.Errorf("Expected 4 connectivity ratios, but got %d", len(ratios))
	}
	for i, ratio := range ratios {
		if ratio < 0 || ratio > 1 {
			t.Errorf("Connectivity ratio %d must be in [0;1], but got %f", i, ratio)
		}
		if ratio <= 0 {
			t.Errorf("The largest component always holds at least one vehicle, but ratio %d was %f", i, ratio)
		}
	}
}

func TestRunMultiClusterKeys(t *testing.T) {
	sim := NewSimulation(staticProvider{}, "block",
		WithDensity(DensityAbsolute, 12),
		WithSeed(9),
	)
	network, err := sim.PrepareNetwork()
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := sim.RunMulti(network); err != nil {
		t.Error(err)
		return
	}

	vehicles := network.Vehicles
	if vehicles.RelationSize() != 12*11/2 {
		t.Errorf("All-pairs relation store must hold %d entries, but got %d", 12*11/2, vehicles.RelationSize())
	}
	checkPartition(t, vehicles, identityIdxs(12), "cluster_max", "not_cluster_max")
}

func TestRunMultiTwoVehiclesInSight(t *testing.T) {
	// two vehicles 50 m apart on an empty street see each other and form a
	// fully connected network
	graph := NewStreetGraph()
	graph.AddIntersection(1, orb.Point{0, 0})
	graph.AddIntersection(2, orb.Point{200, 0})
	graph.AddStreet(&Street{ID: 0, Source: 1, Target: 2, Geom: orb.LineString{{0, 0}, {200, 0}}, LengthMeters: 200})

	vehicles, err := GenerateVehiclesAt(graph, []orb.Point{{50, 0}, {100, 0}})
	if err != nil {
		t.Error(err)
		return
	}
	network := &Network{
		Streets:   graph,
		Wave:      BuildWaveGraph(graph, NewBuildings(), 250),
		Buildings: NewBuildings(),
		Vehicles:  vehicles,
	}

	sim := NewSimulation(staticProvider{}, "street", WithRangeThresholds(250, 140))
	ratio, err := sim.RunMulti(network)
	if err != nil {
		t.Error(err)
		return
	}
	if ratio != 1.0 {
		t.Errorf("Two vehicles in sight and in range must be fully connected, but got ratio %f", ratio)
	}
	nlos, err := vehicles.GetNLOS("all_pairs")
	if err != nil {
		t.Error(err)
		return
	}
	if nlos[0] {
		t.Errorf("Clear sightline on an empty map must not be NLOS")
	}
}

func TestRunMultiDeterminism(t *testing.T) {
	run := func() []float64 {
		sim := NewSimulation(staticProvider{}, "block",
			WithDensity(DensityAbsolute, 15),
			WithSeed(21),
			WithIterations(3),
		)
		ratios, err := sim.RunMultiSeries()
		if err != nil {
			t.Fatal(err)
		}
		return ratios
	}
	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Same seed must yield identical ratio %d: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestRunSingleClassification(t *testing.T) {
	sim := NewSimulation(staticProvider{}, "block",
		WithDensity(DensityAbsolute, 16),
		WithSeed(13),
	)
	network, err := sim.RunSingleCenter()
	if err != nil {
		t.Error(err)
		return
	}
	vehicles := network.Vehicles

	centerIdxs, err := vehicles.GetIdxs("center")
	if err != nil {
		t.Error(err)
		return
	}
	if len(centerIdxs) != 1 {
		t.Errorf("Exactly one center vehicle expected, but got %d", len(centerIdxs))
	}
	otherIdxs := sortedIdxs(t, vehicles, "other")
	if len(otherIdxs) != 15 {
		t.Errorf("15 other vehicles expected, but got %d", len(otherIdxs))
	}
	if vehicles.RelationSize() != 15 {
		t.Errorf("Single-center relation store must hold 15 entries, but got %d", vehicles.RelationSize())
	}

	// every refinement stage splits its parent class exactly
	checkPartition(t, vehicles, otherIdxs, "nlos", "olos_los")
	checkPartition(t, vehicles, sortedIdxs(t, vehicles, "olos_los"), "olos", "los")
	checkPartition(t, vehicles, sortedIdxs(t, vehicles, "nlos"), "orth", "par")
	checkPartition(t, vehicles, otherIdxs, "in_range", "out_range")
}

func TestRunSingleParallelUnreachable(t *testing.T) {
	sim := NewSimulation(staticProvider{}, "block",
		WithDensity(DensityAbsolute, 16),
		WithSeed(13),
		WithMaxPathloss(1000),
	)
	network, err := sim.RunSingleCenter()
	if err != nil {
		t.Error(err)
		return
	}
	vehicles := network.Vehicles

	parLosses, err := vehicles.GetPathlosses("par")
	if err != nil {
		t.Error(err)
		return
	}
	for i, loss := range parLosses {
		if !math.IsInf(loss, 1) {
			t.Errorf("Parallel NLOS pathloss %d must be +Inf, but got %f", i, loss)
		}
	}

	// with a generous pathloss limit only the parallel links stay out of range
	parIdxs := sortedIdxs(t, vehicles, "par")
	outIdxs := sortedIdxs(t, vehicles, "out_range")
	if len(parIdxs) != len(outIdxs) {
		t.Errorf("Out-of-range set must equal the parallel set: %v vs %v", outIdxs, parIdxs)
		return
	}
	for i := range parIdxs {
		if parIdxs[i] != outIdxs[i] {
			t.Errorf("Out-of-range set must equal the parallel set: %v vs %v", outIdxs, parIdxs)
			return
		}
	}

	losLosses, err := vehicles.GetPathlosses("los")
	if err != nil {
		t.Error(err)
		return
	}
	for i, loss := range losLosses {
		if loss <= 0 || math.IsInf(loss, 0) {
			t.Errorf("Line of sight pathloss %d must be positive and finite, but got %f", i, loss)
		}
	}
}
