package v2vsim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Network bundles the static map structures and the generated vehicles of one
// simulation run
type Network struct {
	Streets   *StreetGraph
	Wave      *WaveGraph
	Buildings *Buildings
	Boundary  Boundary
	Vehicles  *Vehicles
}

// Simulation carries the parameters of a connectivity simulation run
type Simulation struct {
	provider MapProvider
	place    string

	densityType DensityType
	density     float64

	maxDistOLOSLOS float64
	maxDistNLOS    float64
	maxPathloss    float64
	olosMargin     float64
	maxAngleDelta  float64

	shortcutMaxDist float64
	iterations      int
	verbose         bool

	pathloss PathlossModel
	rng      *rand.Rand
}

// NewSimulation builds a simulation with defaults matching a typical urban
// V2V measurement setup: 250 m OLOS/LOS range, 140 m NLOS range, 150 dB max
// pathloss, 2 m vehicle body margin.
func NewSimulation(provider MapProvider, place string, options ...func(*Simulation)) *Simulation {
	sim := &Simulation{
		provider:        provider,
		place:           place,
		densityType:     DensityAbsolute,
		density:         100,
		maxDistOLOSLOS:  250,
		maxDistNLOS:     140,
		maxPathloss:     150,
		olosMargin:      2,
		maxAngleDelta:   math.Pi / 4,
		shortcutMaxDist: 250,
		iterations:      1,
		pathloss:        NewLogDistancePathloss(),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, option := range options {
		option(sim)
	}
	return sim
}

func WithDensity(densityType DensityType, density float64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.densityType = densityType
		sim.density = density
	}
}

func WithRangeThresholds(maxDistOLOSLOS, maxDistNLOS float64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.maxDistOLOSLOS = maxDistOLOSLOS
		sim.maxDistNLOS = maxDistNLOS
	}
}

func WithMaxPathloss(maxPathloss float64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.maxPathloss = maxPathloss
	}
}

func WithOLOSMargin(margin float64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.olosMargin = margin
	}
}

func WithMaxAngleDelta(delta float64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.maxAngleDelta = delta
	}
}

func WithShortcutMaxDist(maxDist float64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.shortcutMaxDist = maxDist
	}
}

func WithIterations(iterations int) func(*Simulation) {
	return func(sim *Simulation) {
		sim.iterations = iterations
	}
}

func WithSeed(seed int64) func(*Simulation) {
	return func(sim *Simulation) {
		sim.rng = rand.New(rand.NewSource(seed))
	}
}

func WithPathlossModel(model PathlossModel) func(*Simulation) {
	return func(sim *Simulation) {
		sim.pathloss = model
	}
}

func WithVerbose(verbose bool) func(*Simulation) {
	return func(sim *Simulation) {
		sim.verbose = verbose
	}
}

// PrepareNetwork loads the map data for the configured place, derives the
// wave graph when the provider did not supply one and places vehicles on the
// streets according to the configured density
func (sim *Simulation) PrepareNetwork() (*Network, error) {
	if sim.verbose {
		fmt.Printf("Loading map data for '%s'...\n", sim.place)
	}
	st := time.Now()
	data, err := sim.provider.Load(sim.place)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't load map data for place '%s'", sim.place)
	}
	if err := data.Streets.AddMissingGeometry(); err != nil {
		return nil, errors.Wrap(err, "Can't complete street geometry")
	}
	if data.Wave == nil {
		if sim.verbose {
			fmt.Printf("\tGenerating graph for wave propagation... ")
		}
		data.Wave = BuildWaveGraph(data.Streets, data.Buildings, sim.shortcutMaxDist)
		if sim.verbose {
			fmt.Printf("Done in %v\n", time.Since(st))
		}
	}

	network := &Network{
		Streets:   data.Streets,
		Wave:      data.Wave,
		Buildings: data.Buildings,
		Boundary:  data.Boundary,
	}
	if err := sim.PlaceVehicles(network); err != nil {
		return nil, err
	}
	if sim.verbose {
		fmt.Printf("Network prepared in %v: %d streets, %d buildings, %d vehicles\n",
			time.Since(st), len(network.Streets.Streets()), network.Buildings.Count(), network.Vehicles.Count())
	}
	return network, nil
}

// PlaceVehicles generates a fresh vehicle placement on the network's streets
func (sim *Simulation) PlaceVehicles(network *Network) error {
	lengths := network.Streets.StreetLengths()
	count, err := CountFromDensity(sim.densityType, sim.density, network.Streets.TotalLength(), network.Boundary.Area())
	if err != nil {
		return err
	}
	streetIdxs, err := ChooseRandomStreets(lengths, count, sim.rng)
	if err != nil {
		return err
	}
	vehicles, err := GenerateVehicles(network.Streets, streetIdxs, sim.rng)
	if err != nil {
		return errors.Wrap(err, "Can't generate vehicles")
	}
	network.Vehicles = vehicles
	return nil
}

// RunMulti simulates all pairwise connections using distances only and
// returns the network connectivity ratio: the fraction of vehicles inside the
// largest in-range component. The relation store is populated with pairwise
// distances, NLOS flags and the 'cluster_max' / 'not_cluster_max' keys.
func (sim *Simulation) RunMulti(network *Network) (float64, error) {
	vehicles := network.Vehicles
	n := vehicles.Count()
	if n == 0 {
		return 0, errors.Wrap(ErrInvalidDensity, "No vehicles to simulate")
	}
	vehicles.Allocate(n * (n - 1) / 2)
	allPairs := identityIdxs(n * (n - 1) / 2)
	if err := vehicles.AddRelationKey("all_pairs", allPairs); err != nil {
		return 0, err
	}

	if sim.verbose {
		fmt.Printf("Determining propagation conditions... ")
	}
	st := time.Now()
	points, _ := vehicles.Get("all")
	maxDist := math.Max(sim.maxDistOLOSLOS, sim.maxDistNLOS)
	nlos := PairsAreNLOS(points, network.Buildings, maxDist)
	if err := vehicles.SetNLOS("all_pairs", nlos); err != nil {
		return 0, err
	}
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	if sim.verbose {
		fmt.Printf("Determining in range vehicles... ")
	}
	st = time.Now()
	distances := PairwiseDistances(points)
	if err := vehicles.SetDistances("all_pairs", distances); err != nil {
		return 0, err
	}
	inRange, err := InRangePairs(distances, nlos, sim.maxDistOLOSLOS, sim.maxDistNLOS)
	if err != nil {
		return 0, err
	}
	largest := LargestComponent(n, inRange)
	if err := vehicles.AddKey("cluster_max", largest); err != nil {
		return 0, err
	}
	if err := vehicles.AddKey("not_cluster_max", complementIndices(n, largest)); err != nil {
		return 0, err
	}
	ratio := ConnectivityRatio(n, largest)
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
		fmt.Printf("Network connectivity: %.2f %%\n", ratio*100)
	}
	return ratio, nil
}

// RunMultiSeries runs the all-pairs simulation for the configured number of
// iterations, placing fresh vehicles each time, and returns the per-iteration
// connectivity ratios
func (sim *Simulation) RunMultiSeries() ([]float64, error) {
	network, err := sim.PrepareNetwork()
	if err != nil {
		return nil, err
	}
	ratios := make([]float64, sim.iterations)
	for i := 0; i < sim.iterations; i++ {
		if i > 0 {
			if err := sim.PlaceVehicles(network); err != nil {
				return nil, errors.Wrapf(err, "Can't place vehicles for iteration %d", i)
			}
		}
		ratio, err := sim.RunMulti(network)
		if err != nil {
			return nil, errors.Wrapf(err, "Iteration %d failed", i)
		}
		ratios[i] = ratio
	}
	return ratios, nil
}

// RunSingle classifies the links between the center vehicle (the one closest
// to the centroid of all positions) and every other vehicle, scores them with
// the pathloss model and partitions the others into 'in_range' / 'out_range'.
// All classification subsets are registered as keys on the relation store.
func (sim *Simulation) RunSingle(network *Network) error {
	vehicles := network.Vehicles
	n := vehicles.Count()
	if n < 2 {
		return errors.Wrap(ErrInvalidDensity, "Need at least 2 vehicles for the single-center simulation")
	}
	vehicles.Allocate(n - 1)

	points, _ := vehicles.Get("all")
	centerIdx := FindCenterVehicle(points)
	otherIdxs := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != centerIdx {
			otherIdxs = append(otherIdxs, i)
		}
	}
	if err := vehicles.AddKey("center", []int{centerIdx}); err != nil {
		return err
	}
	if err := vehicles.AddKey("other", otherIdxs); err != nil {
		return err
	}
	// In the single-center layout relation r holds the link center <->
	// otherIdxs[r]
	if err := vehicles.AddRelationKey("other", identityIdxs(n-1)); err != nil {
		return err
	}

	center := points[centerIdx]
	others, err := vehicles.Get("other")
	if err != nil {
		return err
	}

	if sim.verbose {
		fmt.Printf("Determining propagation conditions... ")
	}
	st := time.Now()
	isNLOS := VehiclesAreNLOS(center, others, network.Buildings)
	if err := vehicles.SetNLOS("other", isNLOS); err != nil {
		return err
	}
	nlosRel, olosLosRel := partitionIdxs(isNLOS)
	if err := addSubset(vehicles, "nlos", otherIdxs, nlosRel); err != nil {
		return err
	}
	if err := addSubset(vehicles, "olos_los", otherIdxs, olosLosRel); err != nil {
		return err
	}
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	if sim.verbose {
		fmt.Printf("Determining OLOS and LOS... ")
	}
	st = time.Now()
	olosLosPoints := selectPoints(others, olosLosRel)
	isOLOS := VehiclesAreOLOS(center, olosLosPoints, network.Buildings, sim.olosMargin)
	olosSub, losSub := partitionIdxs(isOLOS)
	olosRel := selectIdxs(olosLosRel, olosSub)
	losRel := selectIdxs(olosLosRel, losSub)
	if err := addSubset(vehicles, "olos", otherIdxs, olosRel); err != nil {
		return err
	}
	if err := addSubset(vehicles, "los", otherIdxs, losRel); err != nil {
		return err
	}
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	if sim.verbose {
		fmt.Printf("Determining orthogonal and parallel... ")
	}
	st = time.Now()
	router, err := network.Wave.Router()
	if err != nil {
		return errors.Wrap(err, "Can't build wave graph router")
	}
	graphs, _ := vehicles.GetGraphs("all")
	centerGraph := graphs[centerIdx]
	nlosGraphs := make([]*VehicleGraph, len(nlosRel))
	for i, rel := range nlosRel {
		nlosGraphs[i] = graphs[otherIdxs[rel]]
	}
	nlosPaths, err := ClassifyNLOSLinks(router, centerGraph, nlosGraphs, sim.maxAngleDelta)
	if err != nil {
		return err
	}
	var orthRel, parRel []int
	var orthPaths []NLOSPath
	for i, path := range nlosPaths {
		if path.Orthogonal {
			orthRel = append(orthRel, nlosRel[i])
			orthPaths = append(orthPaths, path)
		} else {
			parRel = append(parRel, nlosRel[i])
		}
	}
	if err := addSubset(vehicles, "orth", otherIdxs, orthRel); err != nil {
		return err
	}
	if err := addSubset(vehicles, "par", otherIdxs, parRel); err != nil {
		return err
	}
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	if sim.verbose {
		fmt.Printf("Calculating pathlosses... ")
	}
	st = time.Now()
	allDistances := make([]float64, len(others))
	for i, other := range others {
		allDistances[i] = distance(center, other)
	}
	if err := vehicles.SetDistances("other", allDistances); err != nil {
		return err
	}
	if err := vehicles.SetPathlosses("olos", applyPathloss(sim.pathloss.OLOS, allDistances, olosRel)); err != nil {
		return err
	}
	if err := vehicles.SetPathlosses("los", applyPathloss(sim.pathloss.LOS, allDistances, losRel)); err != nil {
		return err
	}
	// The diffracted route is approximated by the two airline legs through
	// the corner; the center vehicle is the receiver
	orthLosses := make([]float64, len(orthRel))
	for i, rel := range orthRel {
		corner := orthPaths[i].Corner
		orthLosses[i] = sim.pathloss.NLOSOrthogonal(distance(center, corner), distance(others[rel], corner))
	}
	if err := vehicles.SetPathlosses("orth", orthLosses); err != nil {
		return err
	}
	// Parallel NLOS links have no diffracting corner and are unreachable by policy
	parLosses := make([]float64, len(parRel))
	for i := range parLosses {
		parLosses[i] = math.Inf(1)
	}
	if err := vehicles.SetPathlosses("par", parLosses); err != nil {
		return err
	}
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	if sim.verbose {
		fmt.Printf("Determining in range vehicles... ")
	}
	st = time.Now()
	losses, err := vehicles.GetPathlosses("other")
	if err != nil {
		return err
	}
	var inRangeRel, outRangeRel []int
	for rel, loss := range losses {
		if loss < sim.maxPathloss {
			inRangeRel = append(inRangeRel, rel)
		} else {
			outRangeRel = append(outRangeRel, rel)
		}
	}
	if err := addSubset(vehicles, "in_range", otherIdxs, inRangeRel); err != nil {
		return err
	}
	if err := addSubset(vehicles, "out_range", otherIdxs, outRangeRel); err != nil {
		return err
	}
	if sim.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}
	return nil
}

// RunSingleCenter prepares the network and runs the single-center simulation,
// returning the populated network
func (sim *Simulation) RunSingleCenter() (*Network, error) {
	network, err := sim.PrepareNetwork()
	if err != nil {
		return nil, err
	}
	if err := sim.RunSingle(network); err != nil {
		return nil, err
	}
	return network, nil
}

// addSubset registers the same subset under both domains: vehicle indices for
// coordinate lookups and relation positions for the flat relation arrays
func addSubset(vehicles *Vehicles, label string, otherIdxs []int, relIdxs []int) error {
	vehicleIdxs := make([]int, len(relIdxs))
	for i, rel := range relIdxs {
		vehicleIdxs[i] = otherIdxs[rel]
	}
	if err := vehicles.AddKey(label, vehicleIdxs); err != nil {
		return err
	}
	return vehicles.AddRelationKey(label, relIdxs)
}

func identityIdxs(n int) []int {
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	return idxs
}

// partitionIdxs splits positions by flag value: first the set positions, then the clear ones
func partitionIdxs(flags []bool) ([]int, []int) {
	var set, clear []int
	for i, flag := range flags {
		if flag {
			set = append(set, i)
		} else {
			clear = append(clear, i)
		}
	}
	return set, clear
}

func selectPoints(points []orb.Point, idxs []int) []orb.Point {
	selected := make([]orb.Point, len(idxs))
	for i, idx := range idxs {
		selected[i] = points[idx]
	}
	return selected
}

func selectIdxs(source []int, positions []int) []int {
	selected := make([]int, len(positions))
	for i, pos := range positions {
		selected[i] = source[pos]
	}
	return selected
}

func applyPathloss(model func(float64) float64, distances []float64, relIdxs []int) []float64 {
	losses := make([]float64, len(relIdxs))
	for i, rel := range relIdxs {
		losses[i] = model(distances[rel])
	}
	return losses
}
