package v2vsim

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// VehicleGraph is the local attachment record of a single vehicle: the vehicle
// point plus the two sub-segments connecting it to the endpoints of its
// hosting street. The two sub-segment lengths sum to the street length.
type VehicleGraph struct {
	Index          int
	Point          orb.Point
	StreetID       EdgeID
	SourceNode     NodeID
	TargetNode     NodeID
	ToSource       orb.LineString
	ToTarget       orb.LineString
	ToSourceLength float64
	ToTargetLength float64
}

// Vehicles holds per-vehicle attributes and flat relation arrays with named
// index subsets. Vehicle positions are immutable after creation; only derived
// relational attributes and subset keys are added later.
type Vehicles struct {
	points []orb.Point
	graphs []*VehicleGraph

	pathlosses []float64
	distances  []float64
	nlos       []bool

	vehicleKeys  map[string][]int
	relationKeys map[string][]int
}

// NewVehicles wraps generated vehicle points and their attachment graphs.
// Relation arrays stay empty until Allocate is called.
func NewVehicles(points []orb.Point, graphs []*VehicleGraph) *Vehicles {
	return &Vehicles{
		points:       points,
		graphs:       graphs,
		vehicleKeys:  make(map[string][]int),
		relationKeys: make(map[string][]int),
	}
}

// Count returns the number of vehicles
func (vehicles *Vehicles) Count() int {
	return len(vehicles.points)
}

// Allocate sizes the relation arrays (pathloss, distance, NLOS flag) to the
// given relation count, zero-initialized. All previously registered
// relation-scoped keys are invalidated.
func (vehicles *Vehicles) Allocate(size int) {
	vehicles.pathlosses = make([]float64, size)
	vehicles.distances = make([]float64, size)
	vehicles.nlos = make([]bool, size)
	vehicles.relationKeys = make(map[string][]int)
}

// RelationSize returns the current relation array allocation
func (vehicles *Vehicles) RelationSize() int {
	return len(vehicles.pathlosses)
}

func validateIndices(idxs []int, bound int, label string) error {
	for _, idx := range idxs {
		if idx < 0 || idx >= bound {
			return errors.Wrapf(ErrShapeMismatch, "Index %d of key '%s' is out of domain [0;%d)", idx, label, bound)
		}
	}
	return nil
}

// AddKey registers a named subset of vehicle indices. Overwriting an existing
// key is allowed.
func (vehicles *Vehicles) AddKey(label string, idxs []int) error {
	if err := validateIndices(idxs, len(vehicles.points), label); err != nil {
		return err
	}
	owned := make([]int, len(idxs))
	copy(owned, idxs)
	vehicles.vehicleKeys[label] = owned
	return nil
}

// AddRelationKey registers a named subset of relation indices
func (vehicles *Vehicles) AddRelationKey(label string, idxs []int) error {
	if err := validateIndices(idxs, len(vehicles.pathlosses), label); err != nil {
		return err
	}
	owned := make([]int, len(idxs))
	copy(owned, idxs)
	vehicles.relationKeys[label] = owned
	return nil
}

func (vehicles *Vehicles) vehicleIdxs(label string) ([]int, error) {
	idxs, ok := vehicles.vehicleKeys[label]
	if !ok {
		return nil, errors.Wrapf(ErrMissingKey, "Vehicle key '%s'", label)
	}
	return idxs, nil
}

func (vehicles *Vehicles) relationIdxs(label string) ([]int, error) {
	idxs, ok := vehicles.relationKeys[label]
	if !ok {
		return nil, errors.Wrapf(ErrMissingKey, "Relation key '%s'", label)
	}
	return idxs, nil
}

// GetIdxs returns the vehicle indices defined by a key
func (vehicles *Vehicles) GetIdxs(label string) ([]int, error) {
	return vehicles.vehicleIdxs(label)
}

// GetRelationIdxs returns the relation indices defined by a key
func (vehicles *Vehicles) GetRelationIdxs(label string) ([]int, error) {
	return vehicles.relationIdxs(label)
}

// Get returns the positions of the vehicles selected by the key, or of all
// vehicles when the label is empty or "all"
func (vehicles *Vehicles) Get(label string) ([]orb.Point, error) {
	if label == "" || label == "all" {
		return vehicles.points, nil
	}
	idxs, err := vehicles.vehicleIdxs(label)
	if err != nil {
		return nil, err
	}
	points := make([]orb.Point, len(idxs))
	for i, idx := range idxs {
		points[i] = vehicles.points[idx]
	}
	return points, nil
}

// GetGraphs returns the local attachment graphs of the vehicles selected by
// the key, or of all vehicles when the label is empty or "all"
func (vehicles *Vehicles) GetGraphs(label string) ([]*VehicleGraph, error) {
	if label == "" || label == "all" {
		return vehicles.graphs, nil
	}
	idxs, err := vehicles.vehicleIdxs(label)
	if err != nil {
		return nil, err
	}
	graphs := make([]*VehicleGraph, len(idxs))
	for i, idx := range idxs {
		graphs[i] = vehicles.graphs[idx]
	}
	return graphs, nil
}

func scatterFloats(target []float64, idxs []int, values []float64, label string) error {
	if len(values) != len(idxs) {
		return errors.Wrapf(ErrShapeMismatch, "Key '%s' selects %d relations but %d values given", label, len(idxs), len(values))
	}
	for i, idx := range idxs {
		target[idx] = values[i]
	}
	return nil
}

func gatherFloats(source []float64, idxs []int) []float64 {
	values := make([]float64, len(idxs))
	for i, idx := range idxs {
		values[i] = source[idx]
	}
	return values
}

// SetPathlosses scatter-writes pathloss values for the relations selected by the key
func (vehicles *Vehicles) SetPathlosses(label string, values []float64) error {
	idxs, err := vehicles.relationIdxs(label)
	if err != nil {
		return err
	}
	return scatterFloats(vehicles.pathlosses, idxs, values, label)
}

// GetPathlosses gather-reads pathloss values for the relations selected by the
// key, or all values when the label is empty or "all"
func (vehicles *Vehicles) GetPathlosses(label string) ([]float64, error) {
	if label == "" || label == "all" {
		return vehicles.pathlosses, nil
	}
	idxs, err := vehicles.relationIdxs(label)
	if err != nil {
		return nil, err
	}
	return gatherFloats(vehicles.pathlosses, idxs), nil
}

// SetDistances scatter-writes distance values for the relations selected by the key
func (vehicles *Vehicles) SetDistances(label string, values []float64) error {
	idxs, err := vehicles.relationIdxs(label)
	if err != nil {
		return err
	}
	return scatterFloats(vehicles.distances, idxs, values, label)
}

// GetDistances gather-reads distance values for the relations selected by the
// key, or all values when the label is empty or "all"
func (vehicles *Vehicles) GetDistances(label string) ([]float64, error) {
	if label == "" || label == "all" {
		return vehicles.distances, nil
	}
	idxs, err := vehicles.relationIdxs(label)
	if err != nil {
		return nil, err
	}
	return gatherFloats(vehicles.distances, idxs), nil
}

// SetNLOS scatter-writes NLOS flags for the relations selected by the key
func (vehicles *Vehicles) SetNLOS(label string, values []bool) error {
	idxs, err := vehicles.relationIdxs(label)
	if err != nil {
		return err
	}
	if len(values) != len(idxs) {
		return errors.Wrapf(ErrShapeMismatch, "Key '%s' selects %d relations but %d values given", label, len(idxs), len(values))
	}
	for i, idx := range idxs {
		vehicles.nlos[idx] = values[i]
	}
	return nil
}

// GetNLOS gather-reads NLOS flags for the relations selected by the key, or
// all flags when the label is empty or "all"
func (vehicles *Vehicles) GetNLOS(label string) ([]bool, error) {
	if label == "" || label == "all" {
		return vehicles.nlos, nil
	}
	idxs, err := vehicles.relationIdxs(label)
	if err != nil {
		return nil, err
	}
	values := make([]bool, len(idxs))
	for i, idx := range idxs {
		values[i] = vehicles.nlos[idx]
	}
	return values, nil
}

// String lists vehicle count and the registered keys
func (vehicles *Vehicles) String() string {
	labels := make([]string, 0, len(vehicles.vehicleKeys)+1)
	labels = append(labels, "all")
	for label := range vehicles.vehicleKeys {
		labels = append(labels, label)
	}
	sort.Strings(labels[1:])
	return fmt.Sprintf("%d vehicles, allowed keys: %s", len(vehicles.points), strings.Join(labels, ", "))
}
