package v2vsim

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Propagation condition of a vehicle pair. Exactly one condition holds for
// any pair after full classification.
type Condition int

const (
	ConditionLOS Condition = iota
	ConditionOLOS
	ConditionNLOSOrthogonal
	ConditionNLOSParallel
)

func (condition Condition) String() string {
	switch condition {
	case ConditionLOS:
		return "los"
	case ConditionOLOS:
		return "olos"
	case ConditionNLOSOrthogonal:
		return "nlos_orthogonal"
	case ConditionNLOSParallel:
		return "nlos_parallel"
	}
	return "unknown"
}

// PairsAreNLOS classifies every unordered pair of the given points as NLOS or
// not. The result uses the condensed triangular layout: pair (i, j) with
// i < j lives at condensedIndex(i, j, n).
//
// Pairs whose straight-line distance exceeds maxDist are reported NLOS
// without the geometry test; they are out of radio range either way. Pass
// maxDist <= 0 to disable the cutoff.
func PairsAreNLOS(points []orb.Point, buildings *Buildings, maxDist float64) []bool {
	n := len(points)
	nlos := make([]bool, n*(n-1)/2)
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if maxDist > 0 && distance(points[i], points[j]) > maxDist {
				nlos[k] = true
			} else {
				nlos[k] = buildings.BlocksSegment(points[i], points[j])
			}
			k++
		}
	}
	return nlos
}

// VehiclesAreNLOS classifies the sightline from the center vehicle to every
// other vehicle as NLOS or not
func VehiclesAreNLOS(center orb.Point, others []orb.Point, buildings *Buildings) []bool {
	nlos := make([]bool, len(others))
	for i, other := range others {
		nlos[i] = buildings.BlocksSegment(center, other)
	}
	return nlos
}

// VehiclesAreOLOS refines non-NLOS links: a link is OLOS when a sightline
// inflated by the given margin (the vehicle body radius) still grazes a
// building. The inflated sightline is realised as the two segments offset
// perpendicularly by +-margin. Obstacles narrower than the margin can fit
// strictly between the offset lines undetected, and the corridor carries no
// end caps.
func VehiclesAreOLOS(center orb.Point, others []orb.Point, buildings *Buildings, margin float64) []bool {
	olos := make([]bool, len(others))
	for i, other := range others {
		leftP, leftQ := offsetSegment(center, other, margin)
		rightP, rightQ := offsetSegment(center, other, -margin)
		olos[i] = buildings.BlocksSegment(leftP, leftQ) || buildings.BlocksSegment(rightP, rightQ)
	}
	return olos
}

// NLOSPath describes the street-graph route of an NLOS link: whether a usable
// diffraction corner exists, where it is, and the route legs on both sides.
type NLOSPath struct {
	Orthogonal  bool
	Corner      orb.Point
	TurnAngle   float64
	RouteLength float64
	Reachable   bool
}

// ClassifyNLOSLinks decides, for each NLOS link between the center vehicle and
// the given vehicles, whether the shortest route through the wave graph bends
// through an intersection near a right angle (orthogonal, diffraction-capable)
// or runs essentially straight (parallel, unreachable by policy).
//
// The corner is the route vertex with the largest bend; a link is orthogonal
// when that bend is within maxAngleDelta of pi/2. Unreachable vehicles are
// parallel by definition.
func ClassifyNLOSLinks(router *WaveRouter, center *VehicleGraph, others []*VehicleGraph, maxAngleDelta float64) ([]NLOSPath, error) {
	paths := make([]NLOSPath, len(others))
	for i, other := range others {
		path, err := classifyNLOSLink(router, center, other, maxAngleDelta)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't classify link between center and vehicle %d", other.Index)
		}
		paths[i] = path
	}
	return paths, nil
}

func classifyNLOSLink(router *WaveRouter, center *VehicleGraph, other *VehicleGraph, maxAngleDelta float64) (NLOSPath, error) {
	// Vehicles attach to the wave graph through their street endpoints. The
	// best route is the cheapest of the four endpoint combinations, each
	// costing attachment sub-segment + graph route + attachment sub-segment.
	type attachment struct {
		node NodeID
		cost float64
	}
	centerAttachments := []attachment{
		{center.SourceNode, center.ToSourceLength},
		{center.TargetNode, center.ToTargetLength},
	}
	otherAttachments := []attachment{
		{other.SourceNode, other.ToSourceLength},
		{other.TargetNode, other.ToTargetLength},
	}

	bestCost := math.Inf(1)
	var bestRoute []NodeID
	for _, from := range centerAttachments {
		for _, to := range otherAttachments {
			cost, route := router.ShortestPath(from.node, to.node)
			if cost < 0 {
				continue
			}
			total := from.cost + cost + to.cost
			if total < bestCost {
				bestCost = total
				bestRoute = route
			}
		}
	}
	if bestRoute == nil {
		// No street route between the vehicles: no diffracting corner exists
		return NLOSPath{Orthogonal: false, Reachable: false}, nil
	}

	routePoints, err := router.PathPoints(bestRoute)
	if err != nil {
		return NLOSPath{}, err
	}
	// Full course: center vehicle -> route intersections -> other vehicle
	course := make([]orb.Point, 0, len(routePoints)+2)
	course = append(course, center.Point)
	course = append(course, routePoints...)
	course = append(course, other.Point)

	bestBend := 0.0
	corner := routePoints[0]
	for v := 1; v < len(course)-1; v++ {
		bend := turnAngle(course[v-1], course[v], course[v+1])
		if bend > bestBend {
			bestBend = bend
			corner = course[v]
		}
	}

	return NLOSPath{
		Orthogonal:  math.Abs(bestBend-math.Pi/2) <= maxAngleDelta,
		Corner:      corner,
		TurnAngle:   bestBend,
		RouteLength: bestCost,
		Reachable:   true,
	}, nil
}

// FindCenterVehicle returns the index of the vehicle closest to the centroid
// of all vehicle positions, ties broken by the lowest index
func FindCenterVehicle(points []orb.Point) int {
	centroid := centroidOfPoints(points)
	bestIdx := 0
	bestDist := math.Inf(1)
	for i, point := range points {
		d := distance(point, centroid)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx
}
