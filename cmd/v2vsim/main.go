package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/akkkkka/v2vsim"
	"github.com/paulmach/orb/encoding/wkt"
	log "github.com/sirupsen/logrus"
)

var (
	osmFileName   = flag.String("file", "my_map.osm.pbf", "Filename of *.osm / *.osm.pbf file with streets and buildings")
	place         = flag.String("place", "", "Place name used as cache key (defaults to the file name)")
	cacheDir      = flag.String("cache", "data", "Directory for cached map blobs")
	simMode       = flag.String("mode", "multi", "Simulation mode. Expected values: multi (all-pairs connectivity) / single (center vehicle pathlosses)")
	densityType   = flag.String("density-type", "absolute", "Vehicle density type. Expected values: absolute / length / area")
	density       = flag.Float64("density", 100, "Vehicle density magnitude (count, vehicles per meter or vehicles per square meter)")
	maxDistOLOS   = flag.Float64("olos-los-range", 250, "Maximum OLOS/LOS connection range (meters)")
	maxDistNLOS   = flag.Float64("nlos-range", 140, "Maximum NLOS connection range (meters)")
	maxPathloss   = flag.Float64("max-pathloss", 150, "Maximum connectable pathloss (dB, single mode)")
	olosMargin    = flag.Float64("margin", 2, "Vehicle body radius for the OLOS grazing test (meters)")
	maxAngleDelta = flag.Float64("max-angle-delta", math.Pi/4, "Maximum deviation from a right angle for an NLOS link to count as orthogonal (radians)")
	iterations    = flag.Int("iterations", 1, "Number of placement iterations (multi mode)")
	seed          = flag.Int64("seed", 0, "Random seed; 0 uses the current time")
	out           = flag.String("out", "results.csv", "Filename of 'Comma-Separated Values' (CSV) formatted output")
	verbose       = flag.Bool("verbose", true, "Print simulation progress")
)

func main() {
	flag.Parse()

	placeName := *place
	if placeName == "" {
		placeName = *osmFileName
	}

	provider := &v2vsim.FileCache{
		Dir:             *cacheDir,
		Source:          &v2vsim.OSMProvider{Filename: *osmFileName, Verbose: *verbose},
		ShortcutMaxDist: *maxDistOLOS,
		Verbose:         *verbose,
	}

	options := []func(*v2vsim.Simulation){
		v2vsim.WithDensity(v2vsim.DensityType(*densityType), *density),
		v2vsim.WithRangeThresholds(*maxDistOLOS, *maxDistNLOS),
		v2vsim.WithMaxPathloss(*maxPathloss),
		v2vsim.WithOLOSMargin(*olosMargin),
		v2vsim.WithMaxAngleDelta(*maxAngleDelta),
		v2vsim.WithShortcutMaxDist(*maxDistOLOS),
		v2vsim.WithIterations(*iterations),
		v2vsim.WithVerbose(*verbose),
	}
	if *seed != 0 {
		options = append(options, v2vsim.WithSeed(*seed))
	}
	sim := v2vsim.NewSimulation(provider, placeName, options...)

	switch *simMode {
	case "multi":
		ratios, err := sim.RunMultiSeries()
		if err != nil {
			log.WithError(err).Fatal("Simulation failed")
		}
		if err := writeRatios(*out, ratios); err != nil {
			log.WithError(err).Fatal("Can't write results")
		}
		log.WithFields(log.Fields{"iterations": len(ratios), "out": *out}).Info("Connectivity series written")
	case "single":
		network, err := sim.RunSingleCenter()
		if err != nil {
			log.WithError(err).Fatal("Simulation failed")
		}
		if err := writeLinkReport(*out, network.Vehicles); err != nil {
			log.WithError(err).Fatal("Can't write results")
		}
		log.WithFields(log.Fields{"vehicles": network.Vehicles.Count(), "out": *out}).Info("Link report written")
	default:
		log.Fatalf("Simulation mode '%s' is not supported", *simMode)
	}
}

func writeRatios(fname string, ratios []float64) error {
	file, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	if err := writer.Write([]string{"iteration", "connectivity"}); err != nil {
		return err
	}
	for i, ratio := range ratios {
		if err := writer.Write([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%f", ratio),
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeLinkReport(fname string, vehicles *v2vsim.Vehicles) error {
	file, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	if err := writer.Write([]string{"vehicle", "geom", "condition", "pathloss", "in_range"}); err != nil {
		return err
	}

	conditions := map[int]string{}
	for _, label := range []string{"los", "olos", "orth", "par"} {
		idxs, err := vehicles.GetIdxs(label)
		if err != nil {
			return err
		}
		for _, idx := range idxs {
			conditions[idx] = label
		}
	}
	inRange := map[int]bool{}
	inRangeIdxs, err := vehicles.GetIdxs("in_range")
	if err != nil {
		return err
	}
	for _, idx := range inRangeIdxs {
		inRange[idx] = true
	}

	otherIdxs, err := vehicles.GetIdxs("other")
	if err != nil {
		return err
	}
	losses, err := vehicles.GetPathlosses("other")
	if err != nil {
		return err
	}
	points, err := vehicles.Get("all")
	if err != nil {
		return err
	}
	for rel, idx := range otherIdxs {
		if err := writer.Write([]string{
			fmt.Sprintf("%d", idx),
			wkt.MarshalString(points[idx]),
			conditions[idx],
			fmt.Sprintf("%f", losses[rel]),
			fmt.Sprintf("%t", inRange[idx]),
		}); err != nil {
			return err
		}
	}
	return nil
}
