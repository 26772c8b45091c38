package v2vsim

import (
	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// GeoJSON converters for the persisted map cache. Every cache blob is a
// feature collection; identifiers and graph topology travel as feature
// properties.

func lineToCoordinates(line orb.LineString) [][]float64 {
	coords := make([][]float64, len(line))
	for i, pt := range line {
		coords[i] = []float64{pt[0], pt[1]}
	}
	return coords
}

func coordinatesToLine(coords [][]float64) (orb.LineString, error) {
	line := make(orb.LineString, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, errors.Wrap(ErrGeometry, "Coordinate must contain X and Y")
		}
		line[i] = orb.Point{coord[0], coord[1]}
	}
	return line, nil
}

// StreetsToGeoJSON encodes the street graph as a feature collection of
// linestrings with topology in the properties
func StreetsToGeoJSON(streets *StreetGraph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, street := range streets.Streets() {
		feature := geojson.NewLineStringFeature(lineToCoordinates(street.Geom))
		feature.SetProperty("id", float64(street.ID))
		feature.SetProperty("osm_way_id", float64(street.OSMWayID))
		feature.SetProperty("source", float64(street.Source))
		feature.SetProperty("target", float64(street.Target))
		feature.SetProperty("length", street.LengthMeters)
		fc.AddFeature(feature)
	}
	return fc
}

// StreetsFromGeoJSON decodes a street graph encoded by StreetsToGeoJSON
func StreetsFromGeoJSON(fc *geojson.FeatureCollection) (*StreetGraph, error) {
	graph := NewStreetGraph()
	var pending []*Street
	for i, feature := range fc.Features {
		if feature.Geometry == nil || !feature.Geometry.IsLineString() {
			return nil, errors.Wrapf(ErrGeometry, "Feature %d is not a linestring", i)
		}
		geom, err := coordinatesToLine(feature.Geometry.LineString)
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d", i)
		}
		if len(geom) < 2 {
			return nil, errors.Wrapf(ErrGeometry, "Feature %d has less than 2 points", i)
		}
		id, err := feature.PropertyFloat64("id")
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d misses 'id'", i)
		}
		source, err := feature.PropertyFloat64("source")
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d misses 'source'", i)
		}
		target, err := feature.PropertyFloat64("target")
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d misses 'target'", i)
		}
		length, err := feature.PropertyFloat64("length")
		if err != nil {
			length = lineLength(geom)
		}
		osmWayID, err := feature.PropertyFloat64("osm_way_id")
		if err != nil {
			osmWayID = 0
		}
		street := &Street{
			ID:           EdgeID(id),
			OSMWayID:     int64(osmWayID),
			Source:       NodeID(source),
			Target:       NodeID(target),
			Geom:         geom,
			LengthMeters: length,
		}
		graph.AddIntersection(street.Source, geom[0])
		graph.AddIntersection(street.Target, geom[len(geom)-1])
		pending = append(pending, street)
	}
	for _, street := range pending {
		if err := graph.AddStreet(street); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

// BuildingsToGeoJSON encodes the building polygons as a feature collection
func BuildingsToGeoJSON(buildings *Buildings) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, building := range buildings.Items() {
		polygon := make([][][]float64, len(building.Geom))
		for r, ring := range building.Geom {
			polygon[r] = lineToCoordinates(orb.LineString(ring))
		}
		feature := geojson.NewPolygonFeature(polygon)
		feature.SetProperty("id", float64(building.ID))
		fc.AddFeature(feature)
	}
	return fc
}

// BuildingsFromGeoJSON decodes building polygons encoded by BuildingsToGeoJSON
func BuildingsFromGeoJSON(fc *geojson.FeatureCollection) (*Buildings, error) {
	buildings := NewBuildings()
	for i, feature := range fc.Features {
		if feature.Geometry == nil || !feature.Geometry.IsPolygon() {
			return nil, errors.Wrapf(ErrGeometry, "Feature %d is not a polygon", i)
		}
		polygon := make(orb.Polygon, len(feature.Geometry.Polygon))
		for r, ring := range feature.Geometry.Polygon {
			line, err := coordinatesToLine(ring)
			if err != nil {
				return nil, errors.Wrapf(err, "Feature %d ring %d", i, r)
			}
			polygon[r] = orb.Ring(line)
		}
		id, err := feature.PropertyFloat64("id")
		if err != nil {
			id = float64(i)
		}
		buildings.Add(NewBuilding(int64(id), polygon))
	}
	return buildings, nil
}

// BoundaryToGeoJSON encodes the boundary polygon as a single-feature collection
func BoundaryToGeoJSON(boundary Boundary) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	polygon := make([][][]float64, len(boundary.Geom))
	for r, ring := range boundary.Geom {
		polygon[r] = lineToCoordinates(orb.LineString(ring))
	}
	fc.AddFeature(geojson.NewPolygonFeature(polygon))
	return fc
}

// BoundaryFromGeoJSON decodes a boundary encoded by BoundaryToGeoJSON
func BoundaryFromGeoJSON(fc *geojson.FeatureCollection) (Boundary, error) {
	if len(fc.Features) == 0 {
		return Boundary{}, errors.Wrap(ErrGeometry, "Boundary collection is empty")
	}
	feature := fc.Features[0]
	if feature.Geometry == nil || !feature.Geometry.IsPolygon() {
		return Boundary{}, errors.Wrap(ErrGeometry, "Boundary feature is not a polygon")
	}
	polygon := make(orb.Polygon, len(feature.Geometry.Polygon))
	for r, ring := range feature.Geometry.Polygon {
		line, err := coordinatesToLine(ring)
		if err != nil {
			return Boundary{}, errors.Wrapf(err, "Boundary ring %d", r)
		}
		polygon[r] = orb.Ring(line)
	}
	return Boundary{Geom: polygon}, nil
}

// WaveToGeoJSON encodes the wave graph edges (streets and LOS shortcuts) as a
// feature collection
func WaveToGeoJSON(wave *WaveGraph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, edge := range wave.Edges() {
		feature := geojson.NewLineStringFeature(lineToCoordinates(edge.Geom))
		feature.SetProperty("source", float64(edge.Source))
		feature.SetProperty("target", float64(edge.Target))
		feature.SetProperty("length", edge.LengthMeters)
		feature.SetProperty("shortcut", edge.LOSShortcut)
		fc.AddFeature(feature)
	}
	return fc
}

// WaveFromGeoJSON decodes a wave graph encoded by WaveToGeoJSON
func WaveFromGeoJSON(fc *geojson.FeatureCollection) (*WaveGraph, error) {
	wave := newWaveGraph()
	for i, feature := range fc.Features {
		if feature.Geometry == nil || !feature.Geometry.IsLineString() {
			return nil, errors.Wrapf(ErrGeometry, "Feature %d is not a linestring", i)
		}
		geom, err := coordinatesToLine(feature.Geometry.LineString)
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d", i)
		}
		if len(geom) < 2 {
			return nil, errors.Wrapf(ErrGeometry, "Feature %d has less than 2 points", i)
		}
		source, err := feature.PropertyFloat64("source")
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d misses 'source'", i)
		}
		target, err := feature.PropertyFloat64("target")
		if err != nil {
			return nil, errors.Wrapf(err, "Feature %d misses 'target'", i)
		}
		length, err := feature.PropertyFloat64("length")
		if err != nil {
			length = lineLength(geom)
		}
		shortcut, err := feature.PropertyBool("shortcut")
		if err != nil {
			shortcut = false
		}
		wave.addNode(&Intersection{ID: NodeID(source), Geom: geom[0]})
		wave.addNode(&Intersection{ID: NodeID(target), Geom: geom[len(geom)-1]})
		wave.addEdge(&WaveEdge{
			Source:       NodeID(source),
			Target:       NodeID(target),
			Geom:         geom,
			LengthMeters: length,
			LOSShortcut:  shortcut,
		})
	}
	return wave, nil
}
