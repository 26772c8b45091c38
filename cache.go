package v2vsim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

// PlaceToFilename encodes a place name into a filesystem-safe cache key
func PlaceToFilename(place string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(place) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

// FileCache serves map data from GeoJSON blobs on disk and falls back to the
// wrapped provider on a miss. Four independent blobs exist per place:
// streets, buildings, boundary and the wave graph. A partial miss regenerates
// only the missing blob: an absent wave graph is rebuilt from the cached
// streets and buildings without consulting the source provider.
type FileCache struct {
	Dir    string
	Source MapProvider
	// ShortcutMaxDist bounds LOS shortcut edges when the wave graph has to be rebuilt
	ShortcutMaxDist float64
	Verbose         bool
}

func (cache *FileCache) blobPath(place, kind string) string {
	return filepath.Join(cache.Dir, fmt.Sprintf("%s_%s.geojson", PlaceToFilename(place), kind))
}

func (cache *FileCache) readCollection(place, kind string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(cache.blobPath(place, kind))
	if err != nil {
		return nil, errors.Wrapf(ErrCacheMiss, "Blob '%s' for place '%s': %s", kind, place, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		// Unreadable blobs count as missing and trigger regeneration
		return nil, errors.Wrapf(ErrCacheMiss, "Blob '%s' for place '%s' is corrupt: %s", kind, place, err)
	}
	return fc, nil
}

func (cache *FileCache) writeCollection(place, kind string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return errors.Wrapf(err, "Can't marshal blob '%s'", kind)
	}
	if err := os.MkdirAll(cache.Dir, 0o755); err != nil {
		return errors.Wrap(err, "Can't create cache directory")
	}
	if err := os.WriteFile(cache.blobPath(place, kind), data, 0o644); err != nil {
		return errors.Wrapf(err, "Can't write blob '%s'", kind)
	}
	return nil
}

// Load returns the map data for the place, reading from cache when possible
func (cache *FileCache) Load(place string) (*MapData, error) {
	data, err := cache.loadCore(place)
	if err != nil {
		return nil, err
	}

	waveFC, waveErr := cache.readCollection(place, "wave")
	if waveErr == nil {
		wave, err := WaveFromGeoJSON(waveFC)
		if err == nil {
			data.Wave = wave
			return data, nil
		}
	}
	if cache.Verbose {
		fmt.Printf("Generating graph for wave propagation... ")
	}
	st := time.Now()
	if err := data.Streets.AddMissingGeometry(); err != nil {
		return nil, errors.Wrap(err, "Can't complete street geometry")
	}
	data.Wave = BuildWaveGraph(data.Streets, data.Buildings, cache.ShortcutMaxDist)
	if cache.Verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}
	if err := cache.writeCollection(place, "wave", WaveToGeoJSON(data.Wave)); err != nil {
		return nil, err
	}
	return data, nil
}

// loadCore reads the streets / buildings / boundary blobs; any miss refetches
// all three from the source provider
func (cache *FileCache) loadCore(place string) (*MapData, error) {
	streetsFC, errStreets := cache.readCollection(place, "streets")
	buildingsFC, errBuildings := cache.readCollection(place, "buildings")
	boundaryFC, errBoundary := cache.readCollection(place, "boundary")

	if errStreets == nil && errBuildings == nil && errBoundary == nil {
		streets, err := StreetsFromGeoJSON(streetsFC)
		if err != nil {
			return nil, errors.Wrap(err, "Can't decode cached streets")
		}
		buildings, err := BuildingsFromGeoJSON(buildingsFC)
		if err != nil {
			return nil, errors.Wrap(err, "Can't decode cached buildings")
		}
		boundary, err := BoundaryFromGeoJSON(boundaryFC)
		if err != nil {
			return nil, errors.Wrap(err, "Can't decode cached boundary")
		}
		if cache.Verbose {
			fmt.Printf("Loaded '%s' from cache\n", place)
		}
		return &MapData{Streets: streets, Buildings: buildings, Boundary: boundary}, nil
	}

	if cache.Source == nil {
		return nil, errors.Wrapf(ErrCacheMiss, "No cached data for place '%s' and no source provider", place)
	}
	if cache.Verbose {
		fmt.Printf("Cache miss for '%s', loading from source\n", place)
	}
	data, err := cache.Source.Load(place)
	if err != nil {
		return nil, err
	}
	if err := cache.writeCollection(place, "streets", StreetsToGeoJSON(data.Streets)); err != nil {
		return nil, err
	}
	if err := cache.writeCollection(place, "buildings", BuildingsToGeoJSON(data.Buildings)); err != nil {
		return nil, err
	}
	if err := cache.writeCollection(place, "boundary", BoundaryToGeoJSON(data.Boundary)); err != nil {
		return nil, err
	}
	if data.Wave != nil {
		if err := cache.writeCollection(place, "wave", WaveToGeoJSON(data.Wave)); err != nil {
			return nil, err
		}
	}
	return data, nil
}
