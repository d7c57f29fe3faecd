// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/staranto/isoctl/internal/gpkg"
	"github.com/staranto/isoctl/internal/graph"
)

// codec reads and writes one Format. encode writes to tmp; final is the path
// the file will be renamed to and is only used for naming inside the file.
type codec interface {
	decode(ctx context.Context, path string) (any, error)
	encode(ctx context.Context, tmp, final string, v any) error
}

type vectorCodec struct{}

func (vectorCodec) decode(ctx context.Context, path string) (any, error) {
	return gpkg.Read(ctx, path)
}

func (vectorCodec) encode(ctx context.Context, tmp, final string, v any) error {
	fc, ok := v.(*geojson.FeatureCollection)
	if !ok || fc == nil {
		return fmt.Errorf("cannot store %T as %s", v, FormatVectorGeometry)
	}
	return gpkg.Write(ctx, tmp, gpkg.LayerName(final), fc)
}

type graphCodec struct{}

func (graphCodec) decode(_ context.Context, path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return graph.DecodeGraphML(bufio.NewReader(f))
}

func (graphCodec) encode(_ context.Context, tmp, _ string, v any) error {
	g, ok := v.(*graph.Graph)
	if !ok || g == nil {
		return fmt.Errorf("cannot store %T as %s", v, FormatGraph)
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:mnd
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := graph.EncodeGraphML(w, g); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
