// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package osm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// WalkFilter selects ways a pedestrian can use. It mirrors the OSMnx "walk"
// network type.
const WalkFilter = `["highway"]["area"!~"yes"]` +
	`["highway"!~"abandoned|bus_guideway|construction|cycleway|motor|no|planned|platform|proposed|raceway|razed"]` +
	`["foot"!~"no"]["service"!~"private"]`

var ErrNoPolygon = errors.New("boundary has no polygon")

// Rings returns the outer ring of every polygon in g. Holes are ignored
// since Overpass poly filters cannot express them.
func Rings(g orb.Geometry) ([]orb.Ring, error) {
	var rings []orb.Ring
	switch v := g.(type) {
	case orb.Polygon:
		if len(v) > 0 {
			rings = append(rings, v[0])
		}
	case orb.MultiPolygon:
		for _, p := range v {
			if len(p) > 0 {
				rings = append(rings, p[0])
			}
		}
	case orb.Collection:
		for _, c := range v {
			r, err := Rings(c)
			if err != nil && !errors.Is(err, ErrNoPolygon) {
				return nil, err
			}
			rings = append(rings, r...)
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrNoPolygon, g)
	}

	if len(rings) == 0 {
		return nil, ErrNoPolygon
	}
	return rings, nil
}

// polyFilter renders r as an Overpass poly filter, which wants "lat lon"
// pairs. The closing point is dropped.
func polyFilter(r orb.Ring) string {
	pts := r
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}

	coords := make([]string, 0, 2*len(pts))
	for _, p := range pts {
		coords = append(coords,
			strconv.FormatFloat(p.Lat(), 'f', -1, 64),
			strconv.FormatFloat(p.Lon(), 'f', -1, 64))
	}
	return `(poly:"` + strings.Join(coords, " ") + `")`
}

// WalkQuery builds the Overpass QL query for the walkable ways inside
// boundary, along with their nodes.
func WalkQuery(boundary orb.Geometry, timeout int) (string, error) {
	rings, err := Rings(boundary)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];(", timeout)
	for _, r := range rings {
		sb.WriteString("way")
		sb.WriteString(WalkFilter)
		sb.WriteString(polyFilter(r))
		sb.WriteString(";")
	}
	// Recursing inside the first union would only see the last statement's
	// ways, so the node lookup runs over the whole union result.
	sb.WriteString(");(._;>;);out;")

	return sb.String(), nil
}
