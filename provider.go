package v2vsim

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// MapData is everything the simulation needs to know about a place. Wave may
// be nil; it is then derived from streets and buildings.
type MapData struct {
	Streets   *StreetGraph
	Buildings *Buildings
	Boundary  Boundary
	Wave      *WaveGraph
}

// MapProvider supplies the street graph, building polygons and boundary for a
// named place
type MapProvider interface {
	Load(place string) (*MapData, error)
}

// OSMScanner is a scanner over OSM objects regardless of the encoding
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// Default set of highway tag values treated as drivable streets
var defaultHighwayTags = map[string]struct{}{
	"motorway": {}, "motorway_link": {}, "trunk": {}, "trunk_link": {},
	"primary": {}, "primary_link": {}, "secondary": {}, "secondary_link": {},
	"tertiary": {}, "tertiary_link": {}, "residential": {}, "unclassified": {},
	"road": {}, "living_street": {},
}

// OSMProvider reads streets and buildings from a local *.osm / *.osm.pbf file
type OSMProvider struct {
	Filename string
	// HighwayTags overrides the default set of accepted highway values
	HighwayTags map[string]struct{}
	Verbose     bool
}

type rawWay struct {
	id       int64
	nodes    []osm.NodeID
	building bool
}

// Load scans the file twice (ways, then nodes), projects coordinates onto a
// local euclidean plane in meters and assembles the street graph, building
// polygons and the boundary hull
func (provider *OSMProvider) Load(place string) (*MapData, error) {
	highwayTags := provider.HighwayTags
	if highwayTags == nil {
		highwayTags = defaultHighwayTags
	}

	file, err := os.Open(provider.Filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open file '%s'", provider.Filename)
	}
	defer file.Close()

	if provider.Verbose {
		fmt.Printf("\tProcessing ways... ")
	}
	st := time.Now()
	var streetWays, buildingWays []rawWay
	nodesNeeded := make(map[osm.NodeID]struct{})
	{
		scanner, err := newOSMScanner(provider.Filename, file)
		if err != nil {
			return nil, err
		}
		defer scanner.Close()
		for scanner.Scan() {
			obj := scanner.Object()
			if obj.ObjectID().Type() != "way" {
				continue
			}
			way := obj.(*osm.Way)
			highway := way.Tags.Find("highway")
			building := way.Tags.Find("building")
			_, isStreet := highwayTags[highway]
			isBuilding := building != "" && building != "no"
			if !isStreet && !isBuilding {
				continue
			}
			raw := rawWay{id: int64(way.ID), building: isBuilding, nodes: make([]osm.NodeID, 0, len(way.Nodes))}
			for _, node := range way.Nodes {
				raw.nodes = append(raw.nodes, node.ID)
				nodesNeeded[node.ID] = struct{}{}
			}
			if isStreet {
				streetWays = append(streetWays, raw)
			} else {
				buildingWays = append(buildingWays, raw)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "Can't scan ways")
		}
	}
	if provider.Verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	if provider.Verbose {
		fmt.Printf("\tProcessing nodes... ")
	}
	st = time.Now()
	nodeCoords := make(map[osm.NodeID]orb.Point)
	{
		scanner, err := newOSMScanner(provider.Filename, file)
		if err != nil {
			return nil, err
		}
		defer scanner.Close()
		for scanner.Scan() {
			obj := scanner.Object()
			if obj.ObjectID().Type() != "node" {
				continue
			}
			node := obj.(*osm.Node)
			if _, ok := nodesNeeded[node.ID]; ok {
				nodeCoords[node.ID] = orb.Point{node.Lon, node.Lat}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "Can't scan nodes")
		}
	}
	if provider.Verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	projection := newLocalProjection(nodeCoords)
	streets, err := assembleStreetGraph(streetWays, nodeCoords, projection)
	if err != nil {
		return nil, errors.Wrap(err, "Can't assemble street graph")
	}
	buildings := assembleBuildings(buildingWays, nodeCoords, projection)
	boundary := Boundary{Geom: orb.Polygon{convexHull(streets.NodePoints())}}

	return &MapData{
		Streets:   streets,
		Buildings: buildings,
		Boundary:  boundary,
	}, nil
}

func newOSMScanner(filename string, file *os.File) (OSMScanner, error) {
	ext := filepath.Ext(filename)
	switch ext {
	case ".osm", ".xml":
		return osmxml.New(context.Background(), file), nil
	case ".pbf":
		return osmpbf.New(context.Background(), file, 4), nil
	default:
		return nil, fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, filename)
	}
}

// localProjection maps lon/lat onto a tangent plane in meters around the
// dataset's mean latitude
type localProjection struct {
	lon0, lat0 float64
	cosLat0    float64
}

const meanEarthRadiusMeters = 6371000.0

func newLocalProjection(coords map[osm.NodeID]orb.Point) localProjection {
	if len(coords) == 0 {
		return localProjection{cosLat0: 1}
	}
	lon, lat := 0.0, 0.0
	for _, pt := range coords {
		lon += pt[0]
		lat += pt[1]
	}
	count := float64(len(coords))
	lat0 := lat / count
	return localProjection{
		lon0:    lon / count,
		lat0:    lat0,
		cosLat0: math.Cos(lat0 * math.Pi / 180),
	}
}

func (projection localProjection) project(pt orb.Point) orb.Point {
	x := (pt[0] - projection.lon0) * math.Pi / 180 * meanEarthRadiusMeters * projection.cosLat0
	y := (pt[1] - projection.lat0) * math.Pi / 180 * meanEarthRadiusMeters
	return orb.Point{x, y}
}

// assembleStreetGraph splits street ways at crossing nodes so that graph
// edges run between intersections, carrying the full way geometry in between
func assembleStreetGraph(ways []rawWay, coords map[osm.NodeID]orb.Point, projection localProjection) (*StreetGraph, error) {
	// Crossing nodes: way endpoints plus nodes shared by more than one way
	usage := make(map[osm.NodeID]int)
	for _, way := range ways {
		for i, nodeID := range way.nodes {
			usage[nodeID]++
			if i == 0 || i == len(way.nodes)-1 {
				usage[nodeID]++
			}
		}
	}

	graph := NewStreetGraph()
	addedNodes := make(map[osm.NodeID]struct{})
	edgeID := EdgeID(0)
	for _, way := range ways {
		var segment []osm.NodeID
		for i, nodeID := range way.nodes {
			if _, ok := coords[nodeID]; !ok {
				// Way references a node outside the extract; break the segment
				segment = nil
				continue
			}
			segment = append(segment, nodeID)
			crossing := usage[nodeID] > 1 || i == len(way.nodes)-1
			if !crossing || len(segment) < 2 {
				continue
			}
			geom := make(orb.LineString, len(segment))
			for g, id := range segment {
				geom[g] = projection.project(coords[id])
			}
			source := NodeID(segment[0])
			target := NodeID(segment[len(segment)-1])
			for _, endpoint := range []osm.NodeID{segment[0], segment[len(segment)-1]} {
				if _, ok := addedNodes[endpoint]; !ok {
					graph.AddIntersection(NodeID(endpoint), projection.project(coords[endpoint]))
					addedNodes[endpoint] = struct{}{}
				}
			}
			street := &Street{
				ID:           edgeID,
				OSMWayID:     way.id,
				Source:       source,
				Target:       target,
				Geom:         geom,
				LengthMeters: lineLength(geom),
			}
			if err := graph.AddStreet(street); err != nil {
				return nil, err
			}
			edgeID++
			segment = []osm.NodeID{nodeID}
		}
	}
	return graph, nil
}

func assembleBuildings(ways []rawWay, coords map[osm.NodeID]orb.Point, projection localProjection) *Buildings {
	buildings := NewBuildings()
	for _, way := range ways {
		ring := make(orb.Ring, 0, len(way.nodes))
		complete := true
		for _, nodeID := range way.nodes {
			pt, ok := coords[nodeID]
			if !ok {
				complete = false
				break
			}
			ring = append(ring, projection.project(pt))
		}
		if !complete || len(ring) < 4 {
			continue
		}
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		buildings.Add(NewBuilding(way.id, orb.Polygon{ring}))
	}
	return buildings
}
