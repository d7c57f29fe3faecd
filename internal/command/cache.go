// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/isoctl/internal/cacheutil"
	"github.com/staranto/isoctl/internal/meta"
	"github.com/staranto/isoctl/internal/output"
	"github.com/staranto/isoctl/internal/store"
)

var cacheColumns = []string{"name", "kind", "size", "age"}

func entryRows(entries []cacheutil.Entry) []output.Row {
	rows := make([]output.Row, 0, len(entries))
	for _, e := range entries {
		kind := "other"
		if f, err := store.FormatOf(e.Name); err == nil {
			kind = f.String()
		} else if strings.EqualFold(path.Ext(e.Name), ".geojson") {
			kind = "response"
		}
		rows = append(rows, output.Row{
			"name":     e.Name,
			"kind":     kind,
			"size":     humanize.Bytes(uint64(e.Size)), //nolint:gosec
			"bytes":    e.Size,
			"age":      humanize.Time(e.ModTime),
			"modified": e.ModTime.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return rows
}

// CacheLsCommandAction lists the files in the data directory.
func CacheLsCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	entries, err := cacheutil.List(cacheutil.Dir(cmd.String("data-dir")))
	if err != nil {
		return err
	}
	return output.Spit(stdout(cmd), entryRows(entries), cacheColumns, outputOptions(cmd))
}

// CachePurgeCommandAction removes data files older than --hours and lists
// what it removed.
func CachePurgeCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	hours := cmd.Int("hours")
	if err := PositiveIntValidator(hours); err != nil {
		return fmt.Errorf("invalid value for --hours: %w", err)
	}

	removed, err := cacheutil.Purge(cacheutil.Dir(cmd.String("data-dir")), int(hours))
	if err != nil {
		return err
	}
	log.Infof("purged %d files", len(removed))
	return output.Spit(stdout(cmd), entryRows(removed), cacheColumns, outputOptions(cmd))
}

// CacheCommandBuilder constructs the cli.Command for "cache" and its ls and
// purge subcommands.
func CacheCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "cache",
		Usage:     "inspect or purge the data directory",
		UsageText: `isoctl cache [ls|purge] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list cached files",
				UsageText: `isoctl cache ls [options]`,
				Metadata: map[string]any{
					"meta": meta,
				},
				Flags:  NewGlobalFlags("cache"),
				Action: CacheLsCommandAction,
			},
			{
				Name:      "purge",
				Usage:     "remove cached files older than --hours",
				UsageText: `isoctl cache purge --hours N [options]`,
				Metadata: map[string]any{
					"meta": meta,
				},
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:     "hours",
						Usage:    "age in hours beyond which files are removed",
						Required: true,
					},
				}, NewGlobalFlags("cache")...),
				Action: CachePurgeCommandAction,
			},
		},
	}
}
