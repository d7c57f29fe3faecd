// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/paulmach/orb/geojson"
	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/cacheutil"
	"github.com/staranto/isoctl/internal/config"
	"github.com/staranto/isoctl/internal/geocode"
	"github.com/staranto/isoctl/internal/graph"
	"github.com/staranto/isoctl/internal/meta"
	"github.com/staranto/isoctl/internal/mirror"
	"github.com/staranto/isoctl/internal/osm"
	"github.com/staranto/isoctl/internal/output"
	"github.com/staranto/isoctl/internal/store"
	"github.com/staranto/isoctl/internal/traveltime"
)

// DefaultArrivalTime is used when no arrival time is configured. Being long
// past, it is normally replaced by the current time.
const DefaultArrivalTime = "2024-06-29T09:30:00-10:00"

// IsochronesDir holds the per-search GeoPackages.
const IsochronesDir = "isochrones"

// IsochronesFile is the raw time-map response.
const IsochronesFile = "isochrones.geojson"

// SearchesFile records which searches produced the per-search files.
const SearchesFile = IsochronesDir + "/searches.json"

var (
	DefaultTimes = []int{10, 20, 30}
	FullTimes    = []int{10, 20, 30, 45, 60, 90, 120}
)

// Preset is a canned place, destination and file naming.
type Preset struct {
	Place       string
	Destination string
	Suffix      string
}

var (
	FullPreset  = Preset{Place: "Sydney, NSW, Australia", Destination: "Central Station, Sydney, Australia"}
	SmallPreset = Preset{Place: "Parramatta, NSW, Australia", Destination: "Parramatta Station, Sydney, Australia", Suffix: "_small"}
)

func (p Preset) BoundaryName() string { return "boundary" + p.Suffix + ".gpkg" }
func (p Preset) NetworkName() string  { return "network" + p.Suffix + ".graphml" }

// IsochroneName is the store name of the i-th search result.
func IsochroneName(i int) string {
	return fmt.Sprintf("%s/isochrone_%d.gpkg", IsochronesDir, i)
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// presetFor applies --place and --destination overrides to the preset
// chosen by --small.
func presetFor(cmd *cli.Command) Preset {
	p := FullPreset
	if cmd.Bool("small") {
		p = SmallPreset
	}
	if v := cmd.String("place"); v != "" {
		p.Place = v
	}
	if v := cmd.String("destination"); v != "" {
		p.Destination = v
	}
	return p
}

// parseTimes reads a list of minutes such as "10,20,30". Brackets and spaces
// are tolerated so a YAML list from the config file parses too. An empty
// string yields nil.
func parseTimes(s string) ([]int, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })

	var times []int
	for _, f := range fields {
		m, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid travel time %q", f)
		}
		if m <= 0 {
			return nil, fmt.Errorf("%w: %d", traveltime.ErrInvalidTravelTime, m)
		}
		times = append(times, m)
	}
	return times, nil
}

// timesFor resolves --times, then --full-times, then the defaults.
func timesFor(cmd *cli.Command) ([]int, error) {
	if v := cmd.String("times"); v != "" {
		return parseTimes(v)
	}
	if cmd.Bool("full-times") {
		return FullTimes, nil
	}
	return DefaultTimes, nil
}

// parseCoords reads "lat,lng". Ranges are left to the time-map API.
func parseCoords(s string) (traveltime.Coords, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 { //nolint:mnd
		return traveltime.Coords{}, errors.New("must be lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return traveltime.Coords{}, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return traveltime.Coords{}, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return traveltime.Coords{Lat: lat, Lng: lng}, nil
}

// dataDir resolves and creates the data directory.
func dataDir(cmd *cli.Command, subdirs ...string) (string, error) {
	dir := cacheutil.Dir(cmd.String("data-dir"))
	if err := cacheutil.EnsureDir(dir, subdirs...); err != nil {
		return "", err
	}
	return dir, nil
}

// newStore opens the store over the data directory, with the S3 mirror when
// a bucket is configured.
func newStore(ctx context.Context, cmd *cli.Command, subdirs ...string) (*store.Store, error) {
	dir, err := dataDir(cmd, subdirs...)
	if err != nil {
		return nil, err
	}

	mc := mirror.Config{
		Bucket:   cmd.String("mirror-bucket"),
		Prefix:   cmd.String("mirror-prefix"),
		Region:   cmd.String("mirror-region"),
		Profile:  cmd.String("mirror-profile"),
		Endpoint: cmd.String("mirror-endpoint"),
	}
	if !mc.Enabled() {
		return store.New(dir), nil
	}

	m, err := mirror.New(ctx, mc)
	if err != nil {
		return nil, err
	}
	log.WithField("bucket", mc.Bucket).Debug("mirror enabled")
	return store.New(dir, store.WithMirror(m)), nil
}

func outputOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
	}
}

// stdout is where command results go.
func stdout(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

func seconds(key string, def int) time.Duration {
	n, _ := config.GetInt(key, def)
	return time.Duration(n) * time.Second
}

func newGeocoder() *geocode.Client {
	baseURL, _ := config.GetString("nominatim.base_url", "")
	userAgent, _ := config.GetString("nominatim.user_agent", "")
	return geocode.NewClient(geocode.Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   seconds("nominatim.timeout", 0),
	})
}

func newOverpass() *osm.Client {
	baseURL, _ := config.GetString("overpass.base_url", "")
	return osm.NewClient(osm.Config{
		BaseURL: baseURL,
		Timeout: seconds("overpass.timeout", 0),
	})
}

func newTravelTime(cmd *cli.Command) (*traveltime.Client, error) {
	appID := cmd.String("app-id")
	if appID == "" {
		appID = config.Credential("TRAVELTIME_APPLICATION_ID", "APP_ID")
	}
	apiKey := cmd.String("api-key")
	if apiKey == "" {
		apiKey = config.Credential("TRAVELTIME_API_KEY", "API_KEY")
	}
	baseURL, _ := config.GetString("traveltime.base_url", "")

	return traveltime.NewClient(traveltime.Config{
		ApplicationID: appID,
		APIKey:        apiKey,
		BaseURL:       baseURL,
		Timeout:       seconds("traveltime.timeout", 0),
	})
}

// obtainBoundary geocodes place on a miss.
func obtainBoundary(ctx context.Context, s *store.Store, gc *geocode.Client, p Preset) (*geojson.FeatureCollection, error) {
	return store.Obtain(ctx, s, p.BoundaryName(), func(ctx context.Context) (*geojson.FeatureCollection, error) {
		place, err := gc.Geocode(ctx, p.Place)
		if err != nil {
			return nil, err
		}
		return place.BoundaryCollection()
	})
}

// obtainNetwork fetches the walk network inside boundary on a miss.
func obtainNetwork(ctx context.Context, s *store.Store, oc *osm.Client, p Preset, boundary *geojson.FeatureCollection) (*graph.Graph, error) {
	return store.Obtain(ctx, s, p.NetworkName(), func(ctx context.Context) (*graph.Graph, error) {
		if len(boundary.Features) == 0 {
			return nil, fmt.Errorf("%s has no features", p.BoundaryName())
		}
		g, err := oc.WalkNetwork(ctx, boundary.Features[0].Geometry)
		if err != nil {
			return nil, err
		}
		g.Name = p.Place
		return g, nil
	})
}

// destinationCoords uses --coords when set and geocodes the destination
// otherwise.
func destinationCoords(ctx context.Context, cmd *cli.Command, gc *geocode.Client, p Preset) (traveltime.Coords, string, error) {
	if v := cmd.String("coords"); v != "" {
		c, err := parseCoords(v)
		return c, v, err
	}

	place, err := gc.Geocode(ctx, p.Destination)
	if err != nil {
		return traveltime.Coords{}, "", err
	}
	lat, lng := place.Coords()
	return traveltime.Coords{Lat: lat, Lng: lng}, place.DisplayName, nil
}

// buildBatch normalizes the arrival time against now and builds the batch.
func buildBatch(cmd *cli.Command, origin traveltime.Coords, now time.Time) (*traveltime.Batch, error) {
	arrival, err := traveltime.NormalizeArrivalTime(cmd.String("arrival-time"), now)
	if err != nil {
		return nil, err
	}
	times, err := timesFor(cmd)
	if err != nil {
		return nil, err
	}
	return traveltime.BuildBatch(origin, arrival, times)
}
