package v2vsim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// DensityType selects how the vehicle density parameter is interpreted
type DensityType string

const (
	// DensityAbsolute treats the density value as an absolute vehicle count
	DensityAbsolute = DensityType("absolute")
	// DensityLength treats the density value as vehicles per meter of street
	DensityLength = DensityType("length")
	// DensityArea treats the density value as vehicles per square meter of boundary area
	DensityArea = DensityType("area")
)

// CountFromDensity resolves a density specification to an absolute vehicle count
func CountFromDensity(densityType DensityType, density float64, totalStreetLength float64, boundaryArea float64) (int, error) {
	if density < 0 {
		return 0, errors.Wrapf(ErrInvalidDensity, "Density %f is negative", density)
	}
	switch densityType {
	case DensityAbsolute:
		return int(density), nil
	case DensityLength:
		if totalStreetLength <= 0 {
			return 0, errors.Wrap(ErrInvalidDensity, "Total street length is zero")
		}
		return int(math.Round(density * totalStreetLength)), nil
	case DensityArea:
		if boundaryArea <= 0 {
			return 0, errors.Wrap(ErrInvalidDensity, "Boundary area is zero")
		}
		return int(math.Round(density * boundaryArea)), nil
	default:
		return 0, errors.Wrapf(ErrInvalidDensity, "Density type '%s' is not supported", densityType)
	}
}

// ChooseRandomStreets draws street indices independently with replacement,
// probability of street i proportional to lengths[i]
func ChooseRandomStreets(lengths []float64, count int, rng *rand.Rand) ([]int, error) {
	if count < 0 {
		return nil, errors.Wrapf(ErrInvalidDensity, "Vehicle count %d is negative", count)
	}
	total := 0.0
	cumulative := make([]float64, len(lengths))
	for i, length := range lengths {
		if length < 0 {
			return nil, errors.Wrapf(ErrInvalidDensity, "Street %d has negative length", i)
		}
		total += length
		cumulative[i] = total
	}
	if total <= 0 {
		return nil, errors.Wrap(ErrInvalidDensity, "Total street length is zero")
	}
	idxs := make([]int, count)
	for i := 0; i < count; i++ {
		draw := rng.Float64() * total
		idxs[i] = sort.SearchFloat64s(cumulative, draw)
		if idxs[i] >= len(lengths) {
			idxs[i] = len(lengths) - 1
		}
		// Zero-length streets share a cumulative value with their predecessor
		// and can never be drawn; SearchFloat64s may still land on one when
		// the draw hits the shared value exactly, so skip forward
		for idxs[i] < len(lengths)-1 && lengths[idxs[i]] == 0 {
			idxs[i]++
		}
	}
	return idxs, nil
}

// GenerateVehicles drops one vehicle at a uniformly random point along each of
// the selected streets and builds its local attachment graph
func GenerateVehicles(streets *StreetGraph, streetIdxs []int, rng *rand.Rand) (*Vehicles, error) {
	edges := streets.Streets()
	points := make([]orb.Point, len(streetIdxs))
	graphs := make([]*VehicleGraph, len(streetIdxs))
	for i, streetIdx := range streetIdxs {
		if streetIdx < 0 || streetIdx >= len(edges) {
			return nil, errors.Wrapf(ErrGeometry, "Street index %d is out of range [0;%d)", streetIdx, len(edges))
		}
		street := edges[streetIdx]
		graph, err := attachVehicle(i, street, rng.Float64())
		if err != nil {
			return nil, errors.Wrapf(err, "Can't place vehicle %d on street %d", i, street.ID)
		}
		points[i] = graph.Point
		graphs[i] = graph
	}
	return NewVehicles(points, graphs), nil
}

// attachVehicle splits the street geometry at the given arc length fraction
// and builds the vehicle's attachment record
func attachVehicle(index int, street *Street, fraction float64) (*VehicleGraph, error) {
	point, toSource, toTarget, err := splitLineAtFraction(street.Geom, fraction)
	if err != nil {
		return nil, err
	}
	return &VehicleGraph{
		Index:          index,
		Point:          point,
		StreetID:       street.ID,
		SourceNode:     street.Source,
		TargetNode:     street.Target,
		ToSource:       toSource,
		ToTarget:       toTarget,
		ToSourceLength: lineLength(toSource),
		ToTargetLength: lineLength(toTarget),
	}, nil
}

// StreetsFromVehiclePoints finds for each point the nearest street by
// point-to-geometry distance (ties broken by lowest street index) and snaps
// the point onto that street. Returns the street indices and snapped points.
func StreetsFromVehiclePoints(streets *StreetGraph, points []orb.Point) ([]int, []orb.Point, error) {
	edges := streets.Streets()
	if len(edges) == 0 {
		return nil, nil, errors.Wrap(ErrGeometry, "Street graph has no edges")
	}
	streetIdxs := make([]int, len(points))
	snapped := make([]orb.Point, len(points))
	for i, point := range points {
		bestDist := math.Inf(1)
		bestIdx := 0
		var bestPoint orb.Point
		for idx, street := range edges {
			candidate, _ := projectOntoLine(street.Geom, point)
			d := distance(candidate, point)
			if d < bestDist {
				bestDist = d
				bestIdx = idx
				bestPoint = candidate
			}
		}
		streetIdxs[i] = bestIdx
		snapped[i] = bestPoint
	}
	return streetIdxs, snapped, nil
}

// GenerateVehiclesAt places vehicles at externally supplied points by snapping
// each point to its nearest street and building the attachment graph there
func GenerateVehiclesAt(streets *StreetGraph, points []orb.Point) (*Vehicles, error) {
	streetIdxs, snapped, err := StreetsFromVehiclePoints(streets, points)
	if err != nil {
		return nil, err
	}
	edges := streets.Streets()
	graphs := make([]*VehicleGraph, len(snapped))
	for i, point := range snapped {
		street := edges[streetIdxs[i]]
		_, fraction := projectOntoLine(street.Geom, point)
		graph, err := attachVehicle(i, street, fraction)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't place vehicle %d on street %d", i, street.ID)
		}
		graphs[i] = graph
	}
	vehiclePoints := make([]orb.Point, len(graphs))
	for i, graph := range graphs {
		vehiclePoints[i] = graph.Point
	}
	return NewVehicles(vehiclePoints, graphs), nil
}
