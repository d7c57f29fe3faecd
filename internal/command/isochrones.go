// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/isoctl/internal/meta"
	"github.com/staranto/isoctl/internal/output"
	"github.com/staranto/isoctl/internal/store"
	"github.com/staranto/isoctl/internal/traveltime"
)

// IsochronesCommandAction resolves the destination, builds the arrival
// searches and saves one GeoPackage per search. Cached results are reused
// unless --refresh is given.
func IsochronesCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	p := presetFor(cmd)
	s, err := newStore(ctx, cmd, IsochronesDir)
	if err != nil {
		return err
	}

	var (
		origin traveltime.Coords
		label  string
	)

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		origin, label, err = destinationCoords(ectx, cmd, newGeocoder(), p)
		return err
	})
	if !cmd.Bool("skip-network") {
		eg.Go(func() error {
			boundary, err := obtainBoundary(ectx, s, newGeocoder(), p)
			if err != nil {
				return err
			}
			g, err := obtainNetwork(ectx, s, newOverpass(), p, boundary)
			if err != nil {
				return err
			}
			log.WithField("nodes", len(g.Nodes)).
				WithField("edges", len(g.Edges)).
				Infof("walk network for %s", g.Name)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	log.WithField("lat", origin.Lat).WithField("lng", origin.Lng).Infof("destination %s", label)

	batch, err := buildBatch(cmd, origin, time.Now())
	if err != nil {
		return err
	}

	results, err := isochrones(ctx, cmd, s, batch)
	if err != nil {
		return err
	}

	rows := make([]output.Row, 0, len(results))
	for i, fc := range results {
		a := batch.ArrivalSearches[i]
		km2 := area(fc) / 1e6 //nolint:mnd
		rows = append(rows, output.Row{
			"index":    i,
			"id":       a.ID,
			"minutes":  a.Minutes(),
			"features": len(fc.Features),
			"area_km2": math.Round(km2*100) / 100, //nolint:mnd
			"area":     humanize.CommafWithDigits(km2, 2) + " km²",
			"file":     IsochroneName(i),
		})
	}

	return output.Spit(stdout(cmd), rows,
		[]string{"index", "id", "minutes", "features", "area", "file"}, outputOptions(cmd))
}

// searchRecord identifies the batch that produced the per-search files. The
// requested arrival time is kept rather than the normalized one, which moves
// with the clock when the request is out of window.
type searchRecord struct {
	Coords      traveltime.Coords `json:"coords"`
	ArrivalTime string            `json:"arrival_time"`
	IDs         []string          `json:"ids"`
}

func newSearchRecord(batch *traveltime.Batch, arrivalTime string) searchRecord {
	r := searchRecord{ArrivalTime: arrivalTime, IDs: make([]string, 0, len(batch.ArrivalSearches))}
	for _, a := range batch.ArrivalSearches {
		r.Coords = a.Coords
		r.IDs = append(r.IDs, a.ID)
	}
	return r
}

func (r searchRecord) equal(o searchRecord) bool {
	return r.Coords == o.Coords && r.ArrivalTime == o.ArrivalTime && slices.Equal(r.IDs, o.IDs)
}

// isochrones returns one collection per arrival search. The API is not called
// when --refresh is not set, every per-search file is on disk and they were
// produced by the same searches.
func isochrones(ctx context.Context, cmd *cli.Command, s *store.Store, batch *traveltime.Batch) ([]*geojson.FeatureCollection, error) {
	n := len(batch.ArrivalSearches)
	record := newSearchRecord(batch, cmd.String("arrival-time"))

	if !cmd.Bool("refresh") {
		if results, ok := loadIsochrones(ctx, s, record, n); ok {
			log.Infof("using %d cached isochrones", n)
			return results, nil
		}
	}

	client, err := newTravelTime(cmd)
	if err != nil {
		return nil, err
	}

	fc, raw, err := client.TimeMap(ctx, batch)
	if err != nil {
		return nil, err
	}

	// A partial rewrite below must not be taken for the old searches.
	if err := s.Remove(SearchesFile); err != nil {
		return nil, fmt.Errorf("failed to remove %s: %w", SearchesFile, err)
	}
	if err := writeFile(s.Path(IsochronesFile), raw); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", IsochronesFile, err)
	}

	results, err := traveltime.GroupBySearchID(batch, fc)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		if err := s.Save(ctx, IsochroneName(i), r); err != nil {
			return nil, err
		}
		log.Debugf("saved %s", IsochroneName(i))
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeFile(s.Path(SearchesFile), data); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", SearchesFile, err)
	}
	return results, nil
}

func loadIsochrones(ctx context.Context, s *store.Store, want searchRecord, n int) ([]*geojson.FeatureCollection, bool) {
	data, err := os.ReadFile(s.Path(SearchesFile))
	if err != nil {
		log.Debugf("no usable %s: %v", SearchesFile, err)
		return nil, false
	}
	var got searchRecord
	if err := json.Unmarshal(data, &got); err != nil || !got.equal(want) {
		log.Debugf("cached isochrones were made for other searches")
		return nil, false
	}

	results := make([]*geojson.FeatureCollection, 0, n)
	for i := range n {
		name := IsochroneName(i)
		if !s.Exists(name) {
			return nil, false
		}
		v, err := s.Load(ctx, name)
		if err != nil {
			log.WithError(err).Warnf("ignoring unreadable %s", name)
			return nil, false
		}
		fc, ok := v.(*geojson.FeatureCollection)
		if !ok {
			return nil, false
		}
		results = append(results, fc)
	}
	return results, true
}

// area is the summed geodesic area of fc in square metres.
func area(fc *geojson.FeatureCollection) float64 {
	var total float64
	for _, f := range fc.Features {
		total += math.Abs(geo.Area(f.Geometry))
	}
	return total
}

// writeFile replaces path with data through a temporary sibling.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// IsochronesCommandBuilder constructs the cli.Command for "isochrones".
func IsochronesCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	flags := []cli.Flag{
		NewPlaceFlag("isochrones"),
		NewRefreshFlag("isochrones"),
		&cli.BoolFlag{
			Name:        "skip-network",
			Usage:       "do not obtain the boundary and walk network",
			HideDefault: true,
		},
	}
	flags = append(flags, NewSearchFlags("isochrones")...)
	flags = append(flags, NewCredentialFlags()...)
	flags = append(flags, NewMirrorFlags()...)
	flags = append(flags, NewGlobalFlags("isochrones")...)

	return &cli.Command{
		Name:      "isochrones",
		Usage:     "fetch public transport isochrones for the destination",
		UsageText: `isoctl isochrones [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := SearchFlagsValidator(ctx, c); err != nil {
				return err
			}
			return IsochronesCommandAction(ctx, c)
		},
	}
}
