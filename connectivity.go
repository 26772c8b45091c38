package v2vsim

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// condensedIndex maps the unordered pair (i, j), i < j, of n vehicles to its
// position in the condensed triangular relation layout
func condensedIndex(i, j, n int) int {
	if i > j {
		i, j = j, i
	}
	return i*n - i*(i+1)/2 + (j - i - 1)
}

// condensedPair is the inverse of condensedIndex
func condensedPair(k, n int) (int, int) {
	i := n - 2 - int(math.Floor(math.Sqrt(float64(4*n*(n-1)-8*k-7))/2.0-0.5))
	j := k + i + 1 - i*n + i*(i+1)/2
	return i, j
}

// PairwiseDistances returns the straight-line distance of every unordered
// pair in the condensed triangular layout. Distances are symmetric by
// construction.
func PairwiseDistances(points []orb.Point) []float64 {
	n := len(points)
	distances := make([]float64, n*(n-1)/2)
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			distances[k] = distance(points[i], points[j])
			k++
		}
	}
	return distances
}

// InRangePairs marks every pair whose distance is below the range threshold of
// its propagation condition
func InRangePairs(distances []float64, nlos []bool, maxDistOLOSLOS, maxDistNLOS float64) ([]bool, error) {
	if len(distances) != len(nlos) {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d distances but %d NLOS flags", len(distances), len(nlos))
	}
	inRange := make([]bool, len(distances))
	for k := range distances {
		if nlos[k] {
			inRange[k] = distances[k] < maxDistNLOS
		} else {
			inRange[k] = distances[k] < maxDistOLOSLOS
		}
	}
	return inRange, nil
}

// LargestComponent returns the vertices of the largest connected component of
// the undirected graph over n vehicles whose edges are the in-range pairs.
// Ties go to the component containing the lowest vehicle index.
func LargestComponent(n int, inRange []bool) []int {
	adjacency := make([][]int, n)
	for k, ok := range inRange {
		if !ok {
			continue
		}
		i, j := condensedPair(k, n)
		adjacency[i] = append(adjacency[i], j)
		adjacency[j] = append(adjacency[j], i)
	}

	visited := make([]bool, n)
	var best []int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		component := []int{start}
		visited[start] = true
		for cursor := 0; cursor < len(component); cursor++ {
			for _, neighbor := range adjacency[component[cursor]] {
				if !visited[neighbor] {
					visited[neighbor] = true
					component = append(component, neighbor)
				}
			}
		}
		if len(component) > len(best) {
			best = component
		}
	}
	return best
}

// ConnectivityRatio returns the fraction of vehicles inside the largest
// in-range component, in [0;1]
func ConnectivityRatio(n int, largestComponent []int) float64 {
	if n == 0 {
		return 0
	}
	return float64(len(largestComponent)) / float64(n)
}

// complementIndices returns the vehicles outside the given subset
func complementIndices(n int, subset []int) []int {
	member := make([]bool, n)
	for _, idx := range subset {
		member[idx] = true
	}
	var complement []int
	for i := 0; i < n; i++ {
		if !member[i] {
			complement = append(complement, i)
		}
	}
	return complement
}
