package v2vsim

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

const geomEpsilon = 1e-9

// distance returns euclidean distance between two points
func distance(p, q orb.Point) float64 {
	return planar.Distance(p, q)
}

// crossProduct returns z-component of (a-o) x (b-o)
func crossProduct(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// onSegment reports whether point r (known to be collinear with p-q) lies within the segment's bounding box
func onSegment(p, q, r orb.Point) bool {
	return math.Min(p[0], q[0])-geomEpsilon <= r[0] && r[0] <= math.Max(p[0], q[0])+geomEpsilon &&
		math.Min(p[1], q[1])-geomEpsilon <= r[1] && r[1] <= math.Max(p[1], q[1])+geomEpsilon
}

// segmentsCross reports whether segments p1-p2 and p3-p4 share at least one point.
// Touching endpoints and collinear overlaps count as crossing.
func segmentsCross(p1, p2, p3, p4 orb.Point) bool {
	d1 := crossProduct(p3, p4, p1)
	d2 := crossProduct(p3, p4, p2)
	d3 := crossProduct(p1, p2, p3)
	d4 := crossProduct(p1, p2, p4)

	if ((d1 > geomEpsilon && d2 < -geomEpsilon) || (d1 < -geomEpsilon && d2 > geomEpsilon)) &&
		((d3 > geomEpsilon && d4 < -geomEpsilon) || (d3 < -geomEpsilon && d4 > geomEpsilon)) {
		return true
	}
	if math.Abs(d1) <= geomEpsilon && onSegment(p3, p4, p1) {
		return true
	}
	if math.Abs(d2) <= geomEpsilon && onSegment(p3, p4, p2) {
		return true
	}
	if math.Abs(d3) <= geomEpsilon && onSegment(p1, p2, p3) {
		return true
	}
	if math.Abs(d4) <= geomEpsilon && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

// lineLength returns total euclidean length of given line
func lineLength(line orb.LineString) float64 {
	return planar.Length(line)
}

// pointOnSegmentByFraction returns a point on given segment assuming knowledge about fraction
func pointOnSegmentByFraction(p, q orb.Point, fraction float64) orb.Point {
	return orb.Point{
		(1-fraction)*p[0] + fraction*q[0],
		(1-fraction)*p[1] + fraction*q[1],
	}
}

// lineInterpolate returns the point at the given fraction [0;1] of the line's arc length
func lineInterpolate(line orb.LineString, fraction float64) (orb.Point, error) {
	if len(line) < 2 {
		return orb.Point{}, errors.Wrap(ErrGeometry, "Line must contain at least 2 points")
	}
	if fraction <= 0 {
		return line[0], nil
	}
	if fraction >= 1 {
		return line[len(line)-1], nil
	}
	total := lineLength(line)
	if total == 0 {
		return orb.Point{}, errors.Wrap(ErrGeometry, "Can't interpolate interior point of zero-length line")
	}
	target := fraction * total
	walked := 0.0
	for i := 1; i < len(line); i++ {
		segment := distance(line[i-1], line[i])
		if walked+segment >= target {
			if segment == 0 {
				return line[i], nil
			}
			return pointOnSegmentByFraction(line[i-1], line[i], (target-walked)/segment), nil
		}
		walked += segment
	}
	return line[len(line)-1], nil
}

// splitLineAtFraction splits the line at the given fraction [0;1] of its arc length.
// Both halves contain the split point, so their lengths sum to the original length.
func splitLineAtFraction(line orb.LineString, fraction float64) (orb.Point, orb.LineString, orb.LineString, error) {
	if len(line) < 2 {
		return orb.Point{}, nil, nil, errors.Wrap(ErrGeometry, "Line must contain at least 2 points")
	}
	total := lineLength(line)
	if total == 0 && fraction > 0 && fraction < 1 {
		return orb.Point{}, nil, nil, errors.Wrap(ErrGeometry, "Can't split zero-length line at interior point")
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	target := fraction * total
	walked := 0.0
	before := orb.LineString{line[0]}
	for i := 1; i < len(line); i++ {
		segment := distance(line[i-1], line[i])
		if walked+segment >= target && segment > 0 {
			splitPt := pointOnSegmentByFraction(line[i-1], line[i], (target-walked)/segment)
			before = append(before, splitPt)
			after := orb.LineString{splitPt}
			if distance(splitPt, line[i]) > geomEpsilon {
				after = append(after, line[i])
			}
			after = append(after, line[i+1:]...)
			if len(after) < 2 {
				after = append(after, splitPt)
			}
			return splitPt, before, after, nil
		}
		walked += segment
		before = append(before, line[i])
	}
	splitPt := line[len(line)-1]
	return splitPt, before, orb.LineString{splitPt, splitPt}, nil
}

// projectOntoSegment returns the closest point of segment p-q to point r and its fraction along the segment
func projectOntoSegment(p, q, r orb.Point) (orb.Point, float64) {
	dx := q[0] - p[0]
	dy := q[1] - p[1]
	lengthSquared := dx*dx + dy*dy
	if lengthSquared == 0 {
		return p, 0
	}
	t := ((r[0]-p[0])*dx + (r[1]-p[1])*dy) / lengthSquared
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return orb.Point{p[0] + t*dx, p[1] + t*dy}, t
}

// projectOntoLine returns the closest point of the line to point r together with
// the fraction [0;1] of the line's arc length at which it lies
func projectOntoLine(line orb.LineString, r orb.Point) (orb.Point, float64) {
	total := lineLength(line)
	bestDist := math.Inf(1)
	bestPoint := line[0]
	bestAlong := 0.0
	walked := 0.0
	for i := 1; i < len(line); i++ {
		candidate, t := projectOntoSegment(line[i-1], line[i], r)
		d := distance(candidate, r)
		segment := distance(line[i-1], line[i])
		if d < bestDist {
			bestDist = d
			bestPoint = candidate
			bestAlong = walked + t*segment
		}
		walked += segment
	}
	if total == 0 {
		return bestPoint, 0
	}
	return bestPoint, bestAlong / total
}

// turnAngle returns the absolute deviation from a straight course at vertex b
// when travelling a -> b -> c. Result is in [0; pi]: 0 means no bend.
func turnAngle(a, b, c orb.Point) float64 {
	angleIn := math.Atan2(b[1]-a[1], b[0]-a[0])
	angleOut := math.Atan2(c[1]-b[1], c[0]-b[0])
	angle := angleOut - angleIn
	if angle < -math.Pi {
		angle += 2 * math.Pi
	}
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	return math.Abs(angle)
}

// centroidOfPoints returns arithmetic mean of given points
func centroidOfPoints(points []orb.Point) orb.Point {
	if len(points) == 0 {
		return orb.Point{}
	}
	x, y := 0.0, 0.0
	for _, pt := range points {
		x += pt[0]
		y += pt[1]
	}
	count := float64(len(points))
	return orb.Point{x / count, y / count}
}

// offsetSegment shifts segment p-q perpendicularly by the given distance.
// Positive distance offsets to the left of the travel direction.
func offsetSegment(p, q orb.Point, offset float64) (orb.Point, orb.Point) {
	dx := q[0] - p[0]
	dy := q[1] - p[1]
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		return p, q
	}
	shiftX := -dy / length * offset
	shiftY := dx / length * offset
	return orb.Point{p[0] + shiftX, p[1] + shiftY}, orb.Point{q[0] + shiftX, q[1] + shiftY}
}

// convexHull returns the convex hull of the given points as a closed ring (Andrew's monotone chain)
func convexHull(points []orb.Point) orb.Ring {
	if len(points) < 3 {
		ring := make(orb.Ring, 0, len(points)+1)
		ring = append(ring, points...)
		if len(ring) > 0 {
			ring = append(ring, ring[0])
		}
		return ring
	}
	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	var lower []orb.Point
	for _, pt := range sorted {
		for len(lower) >= 2 && crossProduct(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	var upper []orb.Point
	for i := len(sorted) - 1; i >= 0; i-- {
		pt := sorted[i]
		for len(upper) >= 2 && crossProduct(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}

	hull := append(lower[:len(lower)-1], upper...)
	return orb.Ring(hull)
}
