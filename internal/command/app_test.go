// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/staranto/isoctl/internal/traveltime"
)

// run executes isoctl with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	args = append([]string{"isoctl"}, args...)
	app, err := InitApp(context.Background(), args)
	require.NoError(t, err)

	var out bytes.Buffer
	app.Writer = &out
	err = app.Run(context.Background(), args)
	return out.String(), err
}

func decodeRows(t *testing.T, s string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &rows))
	return rows
}

func TestInitApp(t *testing.T) {
	app, err := InitApp(context.Background(), []string{"isoctl", "--help"})
	require.NoError(t, err)

	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"batch", "cache", "completion", "download", "isochrones"}, names)

	for _, c := range app.Commands {
		for i := 1; i < len(c.Flags); i++ {
			assert.LessOrEqual(t, c.Flags[i-1].Names()[0], c.Flags[i].Names()[0], c.Name)
		}
	}
}

func TestBatchCommand(t *testing.T) {
	arrival := time.Now().Add(48 * time.Hour).Truncate(time.Second).Format(time.RFC3339)

	out, err := run(t, "batch", "--coords=-33.8832,151.2067", "--times", "10,20",
		"--arrival-time", arrival, "-o", "json")
	require.NoError(t, err)

	var b traveltime.Batch
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	require.Len(t, b.ArrivalSearches, 2)
	assert.Equal(t, "isochrone-10", b.ArrivalSearches[0].ID)
	assert.Equal(t, 1200, b.ArrivalSearches[1].TravelTime)
	assert.Equal(t, arrival, b.ArrivalSearches[0].ArrivalTime)
	assert.Equal(t, traveltime.Coords{Lat: -33.8832, Lng: 151.2067}, b.ArrivalSearches[0].Coords)
}

func TestBatchCommand_DefaultsAndYAML(t *testing.T) {
	out, err := run(t, "batch", "--coords=-33.8832,151.2067", "--full-times", "-o", "yaml")
	require.NoError(t, err)

	var b traveltime.Batch
	require.NoError(t, yaml.Unmarshal([]byte(out), &b))
	require.Len(t, b.ArrivalSearches, len(FullTimes))

	// The default arrival time is long past, so now is used instead.
	at, err := time.Parse(time.RFC3339, b.ArrivalSearches[0].ArrivalTime)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), at, time.Minute)
}

func TestBatchCommand_Errors(t *testing.T) {
	_, err := run(t, "batch", "--coords=-33.8,151.2", "--times", "10", "--full-times")
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = run(t, "batch", "--coords=-33.8,151.2", "--times", "10,-1")
	assert.Error(t, err)

	_, err = run(t, "batch", "--coords", "north")
	assert.Error(t, err)
}

func TestCacheCommands(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "isochrones"), 0o755))
	for name, body := range map[string]string{
		"boundary.gpkg":               "x",
		"network.graphml":             "xx",
		"isochrones.geojson":          "{}",
		"isochrones/isochrone_0.gpkg": "xxx",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "network.graphml"), old, old))

	out, err := run(t, "cache", "ls", "-d", dir, "-o", "json", "-s", "name")
	require.NoError(t, err)
	rows := decodeRows(t, out)
	require.Len(t, rows, 4)
	assert.Equal(t, "boundary.gpkg", rows[0]["name"])
	assert.Equal(t, "vector-geometry", rows[0]["kind"])
	assert.Equal(t, "response", rows[1]["kind"])
	assert.Equal(t, "isochrones/isochrone_0.gpkg", rows[2]["name"])
	assert.Equal(t, "graph", rows[3]["kind"])
	assert.Equal(t, float64(2), rows[3]["bytes"])

	out, err = run(t, "cache", "ls", "-d", dir, "-o", "json", "-f", "kind=graph")
	require.NoError(t, err)
	assert.Len(t, decodeRows(t, out), 1)

	out, err = run(t, "cache", "purge", "--hours", "1", "-d", dir, "-o", "json")
	require.NoError(t, err)
	rows = decodeRows(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "network.graphml", rows[0]["name"])
	assert.NoFileExists(t, filepath.Join(dir, "network.graphml"))
	assert.FileExists(t, filepath.Join(dir, "boundary.gpkg"))

	_, err = run(t, "cache", "purge", "--hours", "0", "-d", dir)
	assert.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "complete -F _isoctl isoctl")

	out, err = run(t, "completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, out, "#compdef isoctl")
}

const placeResponse = `[{
  "lat": "-33.8148", "lon": "151.0017",
  "display_name": "Parramatta, New South Wales, Australia",
  "geojson": {"type": "Polygon", "coordinates": [[[150.99, -33.80], [151.02, -33.80], [151.02, -33.83], [150.99, -33.83], [150.99, -33.80]]]}
}]`

const stationResponse = `[{
  "lat": "-33.8173", "lon": "151.0034",
  "display_name": "Parramatta Station, New South Wales, Australia",
  "geojson": {"type": "Point", "coordinates": [151.0034, -33.8173]}
}]`

const networkResponse = `{"elements": [
  {"type": "node", "id": 1, "lat": -33.81, "lon": 151.00},
  {"type": "node", "id": 2, "lat": -33.815, "lon": 151.005},
  {"type": "node", "id": 3, "lat": -33.82, "lon": 151.01},
  {"type": "way", "id": 100, "nodes": [1, 2, 3], "tags": {"highway": "footway"}}
]}`

func isochroneFeature(id string, d float64) string {
	return fmt.Sprintf(`{"type": "Feature", "properties": {"search_id": %q},
  "geometry": {"type": "MultiPolygon", "coordinates": [[[[151.0, -33.81], [%[2]g, -33.81], [%[2]g, -33.82], [151.0, -33.82], [151.0, -33.81]]]]}}`,
		id, 151.0+d)
}

type fakeRemotes struct {
	srv      *httptest.Server
	searches atomic.Int32
	networks atomic.Int32
	timeMaps atomic.Int32
	// lastBatch is the most recent time-map request body.
	lastBatch atomic.Pointer[traveltime.Batch]
}

func newFakeRemotes(t *testing.T) *fakeRemotes {
	t.Helper()
	f := &fakeRemotes{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			f.searches.Add(1)
			if strings.Contains(r.URL.Query().Get("q"), "Station") {
				_, _ = io.WriteString(w, stationResponse)
			} else {
				_, _ = io.WriteString(w, placeResponse)
			}
		case "/interpreter":
			f.networks.Add(1)
			_, _ = io.WriteString(w, networkResponse)
		case "/time-map":
			f.timeMaps.Add(1)
			assert.Equal(t, "app", r.Header.Get("X-Application-Id"))
			assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
			var b traveltime.Batch
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&b))
			f.lastBatch.Store(&b)
			features := make([]string, 0, len(b.ArrivalSearches))
			for i, a := range b.ArrivalSearches {
				features = append(features, isochroneFeature(a.ID, 0.01*float64(i+1)))
			}
			_, _ = fmt.Fprintf(w, `{"type": "FeatureCollection", "features": [%s]}`, strings.Join(features, ", "))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)

	cfgPath := filepath.Join(t.TempDir(), "isoctl.yaml")
	cfgBody := fmt.Sprintf("nominatim:\n  base_url: %[1]s\noverpass:\n  base_url: %[1]s/interpreter\ntraveltime:\n  base_url: %[1]s\n", f.srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))
	t.Setenv("ISOCTL_CFG", cfgPath)
	t.Setenv("TRAVELTIME_APPLICATION_ID", "app")
	t.Setenv("TRAVELTIME_API_KEY", "key")

	return f
}

func TestDownloadCommand(t *testing.T) {
	f := newFakeRemotes(t)
	dir := t.TempDir()

	out, err := run(t, "download", "--small", "-d", dir, "-o", "json", "-s", "name")
	require.NoError(t, err)
	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "boundary_small.gpkg", rows[0]["name"])
	assert.Equal(t, float64(1), rows[0]["features"])
	assert.Equal(t, "network_small.graphml", rows[1]["name"])
	assert.Equal(t, float64(3), rows[1]["nodes"])
	assert.Equal(t, float64(4), rows[1]["edges"])
	assert.Equal(t, "Parramatta, NSW, Australia", rows[1]["place"])

	assert.FileExists(t, filepath.Join(dir, "boundary_small.gpkg"))
	assert.FileExists(t, filepath.Join(dir, "network_small.graphml"))

	// Cached files are reused.
	_, err = run(t, "download", "--small", "-d", dir, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.searches.Load())
	assert.Equal(t, int32(1), f.networks.Load())

	_, err = run(t, "download", "--small", "--refresh", "-d", dir, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.searches.Load())
	assert.Equal(t, int32(2), f.networks.Load())
}

func TestIsochronesCommand(t *testing.T) {
	f := newFakeRemotes(t)
	dir := t.TempDir()
	args := []string{"isochrones", "--small", "--times", "10,20", "-d", dir, "-o", "json", "-s", "index"}

	out, err := run(t, args...)
	require.NoError(t, err)
	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "isochrone-10", rows[0]["id"])
	assert.Equal(t, float64(10), rows[0]["minutes"])
	assert.Equal(t, float64(1), rows[0]["features"])
	assert.Equal(t, "isochrones/isochrone_1.gpkg", rows[1]["file"])
	assert.Greater(t, rows[1]["area_km2"], rows[0]["area_km2"])

	for _, name := range []string{
		"boundary_small.gpkg", "network_small.graphml", "isochrones.geojson",
		"isochrones/isochrone_0.gpkg", "isochrones/isochrone_1.gpkg",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Equal(t, int32(1), f.timeMaps.Load())
	assert.Len(t, f.lastBatch.Load().ArrivalSearches, 2)
	assert.FileExists(t, filepath.Join(dir, SearchesFile))
	// One lookup for the boundary, one for the destination.
	assert.Equal(t, int32(2), f.searches.Load())

	// Every per-search file exists, so the API is not called again.
	out, err = run(t, args...)
	require.NoError(t, err)
	assert.Len(t, decodeRows(t, out), 2)
	assert.Equal(t, int32(1), f.timeMaps.Load())

	_, err = run(t, append(args, "--refresh")...)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.timeMaps.Load())
}

func TestIsochronesCommand_SkipNetworkWithCoords(t *testing.T) {
	f := newFakeRemotes(t)
	dir := t.TempDir()

	_, err := run(t, "isochrones", "--skip-network", "--coords=-33.8173,151.0034",
		"--times", "10,20", "-d", dir, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, int32(0), f.searches.Load())
	assert.Equal(t, int32(0), f.networks.Load())
	assert.NoFileExists(t, filepath.Join(dir, "network.graphml"))
	assert.FileExists(t, filepath.Join(dir, "isochrones", "isochrone_1.gpkg"))
}

func TestIsochronesCommand_ReusesOnlyMatchingSearches(t *testing.T) {
	f := newFakeRemotes(t)
	dir := t.TempDir()
	isochrones := func(args ...string) []map[string]any {
		t.Helper()
		out, err := run(t, append([]string{"isochrones", "--skip-network", "-d", dir, "-o", "json", "-s", "index"}, args...)...)
		require.NoError(t, err)
		return decodeRows(t, out)
	}

	isochrones("--coords=-33.8173,151.0034", "--times", "10,20")
	isochrones("--coords=-33.8173,151.0034", "--times", "10,20")
	assert.Equal(t, int32(1), f.timeMaps.Load())

	// Other times are fetched, not relabelled from the old files.
	rows := isochrones("--coords=-33.8173,151.0034", "--times", "45,60")
	assert.Equal(t, int32(2), f.timeMaps.Load())
	require.Len(t, rows, 2)
	assert.Equal(t, "isochrone-45", rows[0]["id"])
	assert.Equal(t, float64(60), rows[1]["minutes"])

	// So is another destination.
	rows = isochrones("--coords=40.7,-74.0", "--times", "45,60")
	assert.Equal(t, int32(3), f.timeMaps.Load())
	assert.Len(t, rows, 2)
	assert.Equal(t, traveltime.Coords{Lat: 40.7, Lng: -74.0}, f.lastBatch.Load().ArrivalSearches[0].Coords)

	// And another arrival time.
	arrival := time.Now().Add(24 * time.Hour).Truncate(time.Second).Format(time.RFC3339)
	isochrones("--coords=40.7,-74.0", "--times", "45,60", "--arrival-time", arrival)
	assert.Equal(t, int32(4), f.timeMaps.Load())

	// A shorter list whose files all exist still needs its own request.
	rows = isochrones("--coords=40.7,-74.0", "--times", "45", "--arrival-time", arrival)
	assert.Equal(t, int32(5), f.timeMaps.Load())
	require.Len(t, rows, 1)
	assert.Equal(t, "isochrone-45", rows[0]["id"])

	isochrones("--coords=40.7,-74.0", "--times", "45", "--arrival-time", arrival)
	assert.Equal(t, int32(5), f.timeMaps.Load())
}

func TestIsochronesCommand_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error_code": 2, "description": "bad arrival_time"}`)
	}))
	defer srv.Close()

	cfgPath := filepath.Join(t.TempDir(), "isoctl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("traveltime:\n  base_url: "+srv.URL+"\n"), 0o644))
	t.Setenv("ISOCTL_CFG", cfgPath)
	t.Setenv("TRAVELTIME_APPLICATION_ID", "app")
	t.Setenv("TRAVELTIME_API_KEY", "key")

	_, err := run(t, "isochrones", "--skip-network", "--coords=-33.8,151.0", "-d", t.TempDir())
	var rerr *traveltime.RemoteRequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusUnprocessableEntity, rerr.StatusCode)
	assert.ErrorContains(t, err, "bad arrival_time")
}
