// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package gpkg

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"
)

// SRSID is the only spatial reference system written: WGS 84 lon/lat.
const SRSID = 4326

const (
	applicationID = 0x47504B47 // "GPKG"
	userVersion   = 10300
)

var ErrNoFeatureTable = errors.New("geopackage has no feature table")

var schema = []string{
	fmt.Sprintf("PRAGMA application_id = %d", applicationID),
	fmt.Sprintf("PRAGMA user_version = %d", userVersion),
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`INSERT INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system'),
		('WGS 84 geodetic', 4326, 'EPSG', 4326, 'GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]', 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
	)`,
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// LayerName derives the feature table name from a file path: the file stem
// with anything other than letters, digits and underscores replaced.
func LayerName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := nonIdent.ReplaceAllString(stem, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "layer_" + name
	}
	return name
}

// Write creates a new GeoPackage at path holding fc as a single feature
// table named layer, or LayerName(path) when layer is empty. The file must
// not already exist.
func Write(ctx context.Context, path, layer string, fc *geojson.FeatureCollection) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialise geopackage: %w", err)
		}
	}

	if layer == "" {
		layer = LayerName(path)
	}
	bound, geomType := summarize(fc)

	stmts := []struct {
		query string
		args  []any
	}{
		{
			query: fmt.Sprintf(`CREATE TABLE %q (
				fid INTEGER PRIMARY KEY AUTOINCREMENT,
				geom BLOB,
				feature_id TEXT,
				properties TEXT
			)`, layer),
		},
		{
			query: `INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
				VALUES (?, 'features', ?, ?, ?, ?, ?, ?)`,
			args: []any{layer, layer, bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y(), SRSID},
		},
		{
			query: `INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', ?, ?, 0, 0)`,
			args:  []any{layer, geomType, SRSID},
		},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("failed to create layer %s: %w", layer, err)
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (geom, feature_id, properties) VALUES (?, ?, ?)`, layer))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for i, f := range fc.Features {
		blob, err := EncodeGeometry(f.Geometry)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		id, err := marshalOptional(f.ID)
		if err != nil {
			return fmt.Errorf("feature %d: id: %w", i, err)
		}
		props, err := marshalOptional(f.Properties)
		if err != nil {
			return fmt.Errorf("feature %d: properties: %w", i, err)
		}
		if _, err := insert.ExecContext(ctx, blob, id, props); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	log.Debugf("wrote %d features to %s (layer %s)", len(fc.Features), path, layer)
	return nil
}

// Read loads the first feature table of the GeoPackage at path. The caller
// checks that path exists; opening a missing path creates an empty database.
func Read(ctx context.Context, path string) (*geojson.FeatureCollection, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	var layer, column string
	err = db.QueryRowContext(ctx, `SELECT c.table_name, g.column_name
		FROM gpkg_contents c JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features' ORDER BY c.table_name LIMIT 1`).Scan(&layer, &column)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFeatureTable)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT %q, feature_id, properties FROM %q ORDER BY fid`, column, layer))
	if err != nil {
		return nil, fmt.Errorf("failed to read layer %s: %w", layer, err)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var (
			blob  []byte
			id    sql.NullString
			props sql.NullString
		)
		if err := rows.Scan(&blob, &id, &props); err != nil {
			return nil, err
		}

		geom, err := DecodeGeometry(blob)
		if err != nil {
			return nil, fmt.Errorf("layer %s: %w", layer, err)
		}
		f := geojson.NewFeature(geom)
		if id.Valid {
			if err := json.Unmarshal([]byte(id.String), &f.ID); err != nil {
				return nil, fmt.Errorf("layer %s: id: %w", layer, err)
			}
		}
		if props.Valid {
			if err := json.Unmarshal([]byte(props.String), &f.Properties); err != nil {
				return nil, fmt.Errorf("layer %s: properties: %w", layer, err)
			}
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return fc, nil
}

// EncodeGeometry produces a GeoPackage geometry blob: the standard header
// (magic, version, flags, srs id, no envelope) followed by little endian WKB.
func EncodeGeometry(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}

	blob := make([]byte, 8, 8+len(body))
	blob[0], blob[1] = 'G', 'P'
	blob[2] = 0    // version 1
	blob[3] = 0x01 // little endian, no envelope
	binary.LittleEndian.PutUint32(blob[4:], uint32(SRSID))
	return append(blob, body...), nil
}

// DecodeGeometry parses a GeoPackage geometry blob. Envelopes are skipped.
func DecodeGeometry(blob []byte) (orb.Geometry, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, errors.New("invalid geopackage geometry header")
	}

	var envelope int
	switch (blob[3] >> 1) & 0x07 {
	case 0:
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, fmt.Errorf("invalid envelope indicator in flags 0x%02x", blob[3])
	}
	if len(blob) < 8+envelope {
		return nil, errors.New("truncated geopackage geometry")
	}

	g, err := wkb.Unmarshal(blob[8+envelope:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	return g, nil
}

func marshalOptional(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case geojson.Properties:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// summarize returns the overall bound of fc and the geometry type name to
// register for the layer: the shared type, or GEOMETRY when mixed or empty.
func summarize(fc *geojson.FeatureCollection) (orb.Bound, string) {
	var (
		bound    orb.Bound
		geomType string
		first    = true
	)
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		t := strings.ToUpper(f.Geometry.GeoJSONType())
		if first {
			bound, geomType, first = b, t, false
			continue
		}
		bound = bound.Union(b)
		if t != geomType {
			geomType = "GEOMETRY"
		}
	}
	if geomType == "" {
		geomType = "GEOMETRY"
	}
	return bound, geomType
}
