package v2vsim

import (
	"sort"

	"github.com/LdDl/ch"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

type NodeID int64
type EdgeID int64

// Intersection is a node of the street graph
type Intersection struct {
	ID   NodeID
	Geom orb.Point
}

// Street is a directed edge of the street graph carrying its full geometry.
// Coordinates are euclidean (meters).
type Street struct {
	ID           EdgeID
	OSMWayID     int64
	Source       NodeID
	Target       NodeID
	Geom         orb.LineString
	LengthMeters float64
}

// StreetGraph is a directed graph of intersections and street segments
type StreetGraph struct {
	nodes map[NodeID]*Intersection
	edges []*Street
}

func NewStreetGraph() *StreetGraph {
	return &StreetGraph{
		nodes: make(map[NodeID]*Intersection),
	}
}

func (graph *StreetGraph) AddIntersection(id NodeID, pt orb.Point) {
	graph.nodes[id] = &Intersection{ID: id, Geom: pt}
}

func (graph *StreetGraph) AddStreet(street *Street) error {
	if _, ok := graph.nodes[street.Source]; !ok {
		return errors.Wrapf(ErrGeometry, "Source node %d not found for street %d", street.Source, street.ID)
	}
	if _, ok := graph.nodes[street.Target]; !ok {
		return errors.Wrapf(ErrGeometry, "Target node %d not found for street %d", street.Target, street.ID)
	}
	graph.edges = append(graph.edges, street)
	return nil
}

// Node returns the intersection for the given identifier
func (graph *StreetGraph) Node(id NodeID) (*Intersection, bool) {
	node, ok := graph.nodes[id]
	return node, ok
}

// Streets returns all street segments in insertion order
func (graph *StreetGraph) Streets() []*Street {
	return graph.edges
}

func (graph *StreetGraph) NumNodes() int {
	return len(graph.nodes)
}

// NodePoints returns the coordinates of every intersection
func (graph *StreetGraph) NodePoints() []orb.Point {
	points := make([]orb.Point, 0, len(graph.nodes))
	for _, node := range graph.nodes {
		points = append(points, node.Geom)
	}
	return points
}

// StreetLengths returns the length of every street segment, index-aligned with Streets()
func (graph *StreetGraph) StreetLengths() []float64 {
	lengths := make([]float64, len(graph.edges))
	for i, edge := range graph.edges {
		lengths[i] = edge.LengthMeters
	}
	return lengths
}

// TotalLength returns the summed length of all street segments
func (graph *StreetGraph) TotalLength() float64 {
	total := 0.0
	for _, edge := range graph.edges {
		total += edge.LengthMeters
	}
	return total
}

// AddMissingGeometry synthesizes a straight segment between endpoint coordinates
// for every street that carries no geometry, and fills missing lengths
func (graph *StreetGraph) AddMissingGeometry() error {
	for _, edge := range graph.edges {
		if len(edge.Geom) >= 2 {
			if edge.LengthMeters == 0 {
				edge.LengthMeters = lineLength(edge.Geom)
			}
			continue
		}
		source, ok := graph.nodes[edge.Source]
		if !ok {
			return errors.Wrapf(ErrGeometry, "Source node %d not found for street %d", edge.Source, edge.ID)
		}
		target, ok := graph.nodes[edge.Target]
		if !ok {
			return errors.Wrapf(ErrGeometry, "Target node %d not found for street %d", edge.Target, edge.ID)
		}
		edge.Geom = orb.LineString{source.Geom, target.Geom}
		edge.LengthMeters = distance(source.Geom, target.Geom)
	}
	return nil
}

// WaveEdge is an undirected edge of the wave graph
type WaveEdge struct {
	Source       NodeID
	Target       NodeID
	Geom         orb.LineString
	LengthMeters float64
	LOSShortcut  bool
}

// WaveGraph is the undirected variant of the street graph used for propagation
// reasoning. Radio waves do not respect driving directions, so every street
// contributes a single undirected edge; additional line-of-sight shortcut
// edges connect intersections that can see each other across open space.
type WaveGraph struct {
	nodes     map[NodeID]*Intersection
	edges     []*WaveEdge
	adjacency map[NodeID]map[NodeID]struct{}
}

func newWaveGraph() *WaveGraph {
	return &WaveGraph{
		nodes:     make(map[NodeID]*Intersection),
		adjacency: make(map[NodeID]map[NodeID]struct{}),
	}
}

func (wave *WaveGraph) addNode(node *Intersection) {
	if _, ok := wave.nodes[node.ID]; !ok {
		wave.nodes[node.ID] = node
	}
}

func (wave *WaveGraph) addEdge(edge *WaveEdge) {
	if edge.Source == edge.Target {
		return
	}
	if wave.hasEdge(edge.Source, edge.Target) {
		return
	}
	wave.edges = append(wave.edges, edge)
	if _, ok := wave.adjacency[edge.Source]; !ok {
		wave.adjacency[edge.Source] = make(map[NodeID]struct{})
	}
	if _, ok := wave.adjacency[edge.Target]; !ok {
		wave.adjacency[edge.Target] = make(map[NodeID]struct{})
	}
	wave.adjacency[edge.Source][edge.Target] = struct{}{}
	wave.adjacency[edge.Target][edge.Source] = struct{}{}
}

func (wave *WaveGraph) hasEdge(from, to NodeID) bool {
	if neighbors, ok := wave.adjacency[from]; ok {
		if _, ok := neighbors[to]; ok {
			return true
		}
	}
	return false
}

// Node returns the intersection for the given identifier
func (wave *WaveGraph) Node(id NodeID) (*Intersection, bool) {
	node, ok := wave.nodes[id]
	return node, ok
}

// Edges returns all undirected edges including shortcut edges
func (wave *WaveGraph) Edges() []*WaveEdge {
	return wave.edges
}

// BuildWaveGraph derives the undirected wave graph from the street graph and
// augments it with line-of-sight shortcut edges between intersections closer
// than shortcutMaxDist whose sightline does not cross any building
func BuildWaveGraph(streets *StreetGraph, buildings *Buildings, shortcutMaxDist float64) *WaveGraph {
	wave := newWaveGraph()
	for _, node := range streets.nodes {
		wave.addNode(node)
	}
	for _, street := range streets.edges {
		wave.addEdge(&WaveEdge{
			Source:       street.Source,
			Target:       street.Target,
			Geom:         street.Geom,
			LengthMeters: street.LengthMeters,
		})
	}
	wave.addShortcutsIfLOS(buildings, shortcutMaxDist)
	return wave
}

// addShortcutsIfLOS connects every pair of mutually visible intersections with
// a straight shortcut edge
func (wave *WaveGraph) addShortcutsIfLOS(buildings *Buildings, maxDist float64) {
	ids := make([]NodeID, 0, len(wave.nodes))
	for id := range wave.nodes {
		ids = append(ids, id)
	}
	// Deterministic order keeps shortcut edge ordering reproducible
	sortNodeIDs(ids)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			from := wave.nodes[ids[i]]
			to := wave.nodes[ids[j]]
			if wave.hasEdge(from.ID, to.ID) {
				continue
			}
			dist := distance(from.Geom, to.Geom)
			if maxDist > 0 && dist > maxDist {
				continue
			}
			if buildings != nil && buildings.BlocksSegment(from.Geom, to.Geom) {
				continue
			}
			wave.addEdge(&WaveEdge{
				Source:       from.ID,
				Target:       to.ID,
				Geom:         orb.LineString{from.Geom, to.Geom},
				LengthMeters: dist,
				LOSShortcut:  true,
			})
		}
	}
}

func sortNodeIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// WaveRouter answers shortest path queries over the wave graph using
// contraction hierarchies
type WaveRouter struct {
	graph ch.Graph
	wave  *WaveGraph
}

// Router builds a contracted routing graph over the wave graph. Build it once
// per simulation run and reuse it for every query.
func (wave *WaveGraph) Router() (*WaveRouter, error) {
	router := &WaveRouter{wave: wave}
	for _, edge := range wave.edges {
		source := int64(edge.Source)
		target := int64(edge.Target)
		if err := router.graph.CreateVertex(source); err != nil {
			return nil, errors.Wrap(err, "Can't create source vertex")
		}
		if err := router.graph.CreateVertex(target); err != nil {
			return nil, errors.Wrap(err, "Can't create target vertex")
		}
		// Undirected: one edge in each direction
		if err := router.graph.AddEdge(source, target, edge.LengthMeters); err != nil {
			return nil, errors.Wrap(err, "Can't add forward edge")
		}
		if err := router.graph.AddEdge(target, source, edge.LengthMeters); err != nil {
			return nil, errors.Wrap(err, "Can't add backward edge")
		}
	}
	router.graph.PrepareContractionHierarchies()
	return router, nil
}

// ShortestPath returns the path cost and the node sequence between two
// intersections. A negative cost means the target is unreachable.
func (router *WaveRouter) ShortestPath(from, to NodeID) (float64, []NodeID) {
	if from == to {
		return 0, []NodeID{from}
	}
	cost, vertices := router.graph.ShortestPath(int64(from), int64(to))
	if cost < 0 {
		return cost, nil
	}
	path := make([]NodeID, len(vertices))
	for i, v := range vertices {
		path[i] = NodeID(v)
	}
	return cost, path
}

// PathPoints maps a node path to intersection coordinates
func (router *WaveRouter) PathPoints(path []NodeID) ([]orb.Point, error) {
	points := make([]orb.Point, len(path))
	for i, id := range path {
		node, ok := router.wave.nodes[id]
		if !ok {
			return nil, errors.Wrapf(ErrGeometry, "Node %d is not a part of the wave graph", id)
		}
		points[i] = node.Geom
	}
	return points, nil
}
