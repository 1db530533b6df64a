// Command geoclusterdemo loads a GeoJSON-like point file, builds an
// immutable cluster index, and prints the clusters and leaves visible
// at a given zoom as JSON.
package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mapengine/geocluster"
)

// demoPoint is the on-disk point shape: a longitude/latitude pair plus
// a free-form property bag folded into cluster aggregates.
type demoPoint struct {
	Lon  float64        `json:"lon"`
	Lat  float64        `json:"lat"`
	Tags map[string]any `json:"tags"`
}

func importPoints(path string) ([]demoPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var points []demoPoint
	if err := json.NewDecoder(f).Decode(&points); err != nil {
		return nil, err
	}
	return points, nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	input := flag.String("in", "testdata/points.json", "path to a JSON array of {lon,lat,tags}")
	zoom := flag.Int("zoom", 8, "zoom level to render")
	radius := flag.Float64("radius", 40, "cluster radius in pixels at tile extent")
	minPoints := flag.Int("min-points", 2, "minimum points to form a cluster")
	flag.Parse()

	points, err := importPoints(*input)
	if err != nil {
		log.Fatal().Err(err).Str("path", *input).Msg("failed to load points")
	}
	log.Info().Int("count", len(points)).Str("path", *input).Msg("loaded points")

	opts := geocluster.Options[demoPoint]{
		Radius:    *radius,
		MinPoints: *minPoints,
		GetX:      func(p demoPoint) float64 { return p.Lon },
		GetY:      func(p demoPoint) float64 { return p.Lat },
		MapPointToProperties: func(p demoPoint) any {
			agg := map[string]int{}
			for k := range p.Tags {
				agg[k] = 1
			}
			return agg
		},
		ReduceProperties: func(acc, other any) {
			a := acc.(map[string]int)
			o := other.(map[string]int)
			for k, v := range o {
				a[k] += v
			}
		},
	}

	ix, err := geocluster.New(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid options")
	}
	if err := ix.Load(points); err != nil {
		log.Fatal().Err(err).Msg("load failed")
	}

	results, err := ix.Search(-180, -85, 180, 85, *zoom)
	if err != nil {
		log.Fatal().Err(err).Msg("search failed")
	}
	log.Info().Int("zoom", *zoom).Int("elements", len(results)).Msg("rendered layer")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Fatal().Err(err).Msg("encode failed")
	}
}
