// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/meta"
	"github.com/staranto/isoctl/internal/output"
)

// DownloadCommandAction obtains the boundary and walk network of the place
// through the store. --refresh drops the cached files first.
func DownloadCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	p := presetFor(cmd)
	s, err := newStore(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("refresh") {
		for _, name := range []string{p.BoundaryName(), p.NetworkName()} {
			if err := s.Remove(name); err != nil {
				return fmt.Errorf("failed to remove %s: %w", name, err)
			}
			log.Debugf("removed %s", name)
		}
	}

	boundary, err := obtainBoundary(ctx, s, newGeocoder(), p)
	if err != nil {
		return err
	}

	g, err := obtainNetwork(ctx, s, newOverpass(), p, boundary)
	if err != nil {
		return err
	}

	rows := []output.Row{
		{
			"name":     p.BoundaryName(),
			"kind":     "boundary",
			"place":    p.Place,
			"features": len(boundary.Features),
			"path":     s.Path(p.BoundaryName()),
		},
		{
			"name":   p.NetworkName(),
			"kind":   "network",
			"place":  g.Name,
			"nodes":  len(g.Nodes),
			"edges":  len(g.Edges),
			"length": humanize.SIWithDigits(g.TotalLength(), 1, "m"),
			"path":   s.Path(p.NetworkName()),
		},
	}

	return output.Spit(stdout(cmd), rows,
		[]string{"name", "kind", "place", "features", "nodes", "edges", "length"}, outputOptions(cmd))
}

// DownloadCommandBuilder constructs the cli.Command for "download".
func DownloadCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "download the place boundary and walk network",
		UsageText: `isoctl download [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append(append([]cli.Flag{
			NewPlaceFlag("download"),
			NewRefreshFlag("boundary and network"),
			NewSmallFlag(),
		}, NewMirrorFlags()...), NewGlobalFlags("download")...),
		Action: DownloadCommandAction,
	}
}
