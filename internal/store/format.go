// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format tags how a resource is serialized on disk.
type Format int

const (
	FormatUnknown Format = iota
	// FormatVectorGeometry is a GeoJSON feature collection stored as a
	// GeoPackage (.gpkg).
	FormatVectorGeometry
	// FormatGraph is a street graph stored as GraphML (.graphml).
	FormatGraph
)

var suffixes = map[string]Format{
	".gpkg":    FormatVectorGeometry,
	".graphml": FormatGraph,
}

func (f Format) String() string {
	switch f {
	case FormatVectorGeometry:
		return "vector-geometry"
	case FormatGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// FormatOf infers the format of a resource from its name suffix. Matching is
// case-insensitive.
func FormatOf(name string) (Format, error) {
	if f, ok := suffixes[strings.ToLower(filepath.Ext(name))]; ok {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}
